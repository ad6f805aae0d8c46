package sanitize

// DeriveRestrictions maps the final sanitize level to usage capability flags.
// Pure lookup: normal and strict keep both capabilities, paranoid revokes
// both. Restrictions are recomputed from the level, never stored mutably.
func DeriveRestrictions(level Level) UsageRestrictions {
	switch level {
	case LevelNormal, LevelStrict:
		return UsageRestrictions{AIAllowed: true, ExportAllowed: true}
	default:
		return UsageRestrictions{AIAllowed: false, ExportAllowed: false}
	}
}
