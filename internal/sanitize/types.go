package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Level is the sanitization aggressiveness. Levels are strictly ordered:
// escalation only ever moves toward LevelParanoid.
type Level int

const (
	LevelNormal Level = iota + 1
	LevelStrict
	LevelParanoid
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelStrict:
		return "strict"
	case LevelParanoid:
		return "paranoid"
	default:
		return "unspecified"
	}
}

// ParseLevel converts a stored level name back to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "normal":
		return LevelNormal, nil
	case "strict":
		return LevelStrict, nil
	case "paranoid":
		return LevelParanoid, nil
	default:
		return 0, fmt.Errorf("ParseLevel: unknown level %q", s)
	}
}

// Kind classifies a single detection.
type Kind int

const (
	KindOther Kind = iota
	KindNumericSequence
	KindLink
	KindName
	KindQuote
	KindEmail
	KindPhone
	KindNationalID
)

// String returns the kind name used in reason codes and audit fields.
func (k Kind) String() string {
	switch k {
	case KindEmail:
		return "email"
	case KindPhone:
		return "phone"
	case KindNationalID:
		return "national_id"
	case KindNumericSequence:
		return "numeric_sequence"
	case KindLink:
		return "link"
	case KindName:
		return "name"
	case KindQuote:
		return "quote"
	default:
		return "other"
	}
}

// Severity orders kinds for overlap resolution: when two findings cover the
// same span the higher-severity kind wins.
func (k Kind) Severity() int {
	switch k {
	case KindNationalID:
		return 4
	case KindPhone:
		return 3
	case KindEmail:
		return 2
	case KindNumericSequence:
		return 1
	default:
		return 0
	}
}

// Finding is a single detected span. It carries a hash of the matched value,
// never the value itself — the raw text only exists inside the masking pass.
type Finding struct {
	Kind      Kind
	Start     int
	End       int
	ValueHash string
}

// hashValue produces the non-reversible value reference stored on a Finding.
func hashValue(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

// Result is the immutable outcome of one detect+mask+gate pass at one level.
type Result struct {
	Level       Level
	MaskedText  string
	Findings    []Finding
	GatePassed  bool
	GateReasons []string
}

// UsageRestrictions are the capability flags derived from the final level.
type UsageRestrictions struct {
	AIAllowed     bool `json:"ai_allowed"`
	ExportAllowed bool `json:"export_allowed"`
}
