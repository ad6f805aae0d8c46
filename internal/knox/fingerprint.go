package knox

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/arbetsytan/knox/internal/sanitize"
)

// InputDoc is one contributing document: already-masked text plus the
// level it was sanitized at. Raw text never enters this package.
type InputDoc struct {
	ID         int64
	MaskedText string
	Level      sanitize.Level
}

// Fingerprint computes the deterministic identity of a compile request:
// SHA-256 over the sorted document ids with their content hashes, the
// policy id, version and ruleset hash, and the template id. Identical
// inputs always produce the identical fingerprint regardless of
// document order. The ruleset hash keeps a detection-rule change from
// serving reports cached under the old rules.
func Fingerprint(docs []InputDoc, policy Policy, templateID string) string {
	sorted := make([]InputDoc, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h := sha256.New()
	for _, d := range sorted {
		content := sha256.Sum256([]byte(d.MaskedText))
		fmt.Fprintf(h, "doc:%d:%s\n", d.ID, hex.EncodeToString(content[:]))
	}
	fmt.Fprintf(h, "policy:%s:%s:%s\n", policy.ID, policy.Version, policy.RulesetHash)
	fmt.Fprintf(h, "template:%s\n", templateID)
	return hex.EncodeToString(h.Sum(nil))
}
