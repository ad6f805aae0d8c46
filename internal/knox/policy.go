package knox

import (
	"fmt"

	"github.com/arbetsytan/knox/internal/config"
	"github.com/arbetsytan/knox/internal/sanitize"
)

// Mode distinguishes internal briefs from material prepared for
// publication outside the organization. External is the stricter mode.
type Mode string

const (
	ModeInternal Mode = "internal"
	ModeExternal Mode = "external"
)

// Policy is the immutable compilation policy selected per request.
// Values are resolved from configuration at request time and never
// mutated afterwards.
type Policy struct {
	ID                string
	Version           string
	RulesetHash       string
	Mode              Mode
	SanitizeMinLevel  sanitize.Level
	QuoteLimitWords   int
	RiskBudget        int
	ForbiddenElements []string
}

// ResolvePolicy builds a Policy from the named configuration entry and
// the active ruleset hash.
func ResolvePolicy(name string, snap *config.Snapshot) (Policy, error) {
	pc, ok := snap.Config.Policies[name]
	if !ok {
		return Policy{}, fmt.Errorf("unknown policy %q", name)
	}
	level, err := sanitize.ParseLevel(pc.SanitizeMinLevel)
	if err != nil {
		return Policy{}, fmt.Errorf("policy %q: %w", name, err)
	}
	return Policy{
		ID:                name,
		Version:           pc.Version,
		RulesetHash:       snap.RulesetHash,
		Mode:              Mode(pc.Mode),
		SanitizeMinLevel:  level,
		QuoteLimitWords:   pc.QuoteLimitWords,
		RiskBudget:        pc.RiskBudget,
		ForbiddenElements: append([]string(nil), pc.ForbiddenElements...),
	}, nil
}
