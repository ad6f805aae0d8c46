package privacy

// Forbidden metadata keys, the single source of truth consulted by both
// Sanitize and AssertClean. Two classes: keys that would carry document
// content into an event record, and keys that would identify a source.
// The sets are versioned with the code; adding a key here is a behavior
// change for every event writer.

var forbiddenContentKeys = map[string]struct{}{
	"body":       {},
	"text":       {},
	"content":    {},
	"transcript": {},
	"raw":        {},
	"payload":    {},
	"note":       {},
	"excerpt":    {},
	"quote":      {},
	"prompt":     {},
}

var forbiddenSourceKeys = map[string]struct{}{
	"filename":    {},
	"file_name":   {},
	"path":        {},
	"filepath":    {},
	"url":         {},
	"ip":          {},
	"ip_address":  {},
	"user_agent":  {},
	"email":       {},
	"phone":       {},
	"hostname":    {},
	"author":      {},
	"source_name": {},
}

// Forbidden reports whether a metadata key may never reach storage.
func Forbidden(key string) bool {
	if _, ok := forbiddenContentKeys[key]; ok {
		return true
	}
	_, ok := forbiddenSourceKeys[key]
	return ok
}

// ForbiddenKeys returns every forbidden key. Test helper surface:
// callers that need to enumerate the policy get one list, not two.
func ForbiddenKeys() []string {
	keys := make([]string, 0, len(forbiddenContentKeys)+len(forbiddenSourceKeys))
	for k := range forbiddenContentKeys {
		keys = append(keys, k)
	}
	for k := range forbiddenSourceKeys {
		keys = append(keys, k)
	}
	return keys
}
