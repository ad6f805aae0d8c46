package privacy

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Mode selects the fail-closed behavior for forbidden keys that survive
// sanitization. Development aborts the write so the defect is found in
// testing; production drops the key and lets the write proceed.
type Mode int

const (
	ModeProduction Mode = iota
	ModeDevelopment
)

func (m Mode) String() string {
	if m == ModeDevelopment {
		return "development"
	}
	return "production"
}

// ParseMode maps an environment string to a Mode. Anything that is not
// explicitly a development environment is treated as production.
func ParseMode(env string) Mode {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "development", "local":
		return ModeDevelopment
	default:
		return ModeProduction
	}
}

// Guard is the only legitimate path for event metadata into storage.
// It is stateless apart from its injected mode and is safe for
// concurrent use.
type Guard struct {
	mode   Mode
	logger *zap.Logger
}

func NewGuard(mode Mode, logger *zap.Logger) *Guard {
	return &Guard{mode: mode, logger: logger}
}

// Mode returns the injected environment mode.
func (g *Guard) Mode() Mode {
	return g.mode
}

// Sanitize returns a copy of meta with every forbidden key dropped.
// Other keys pass through untouched. Never fails; a nil or all-forbidden
// map yields an empty map.
func (g *Guard) Sanitize(meta map[string]any, context string) map[string]any {
	out := make(map[string]any, len(meta))
	var dropped int
	for k, v := range meta {
		if Forbidden(k) {
			dropped++
			continue
		}
		out[k] = v
	}
	if dropped > 0 {
		// Key names are safe to log; values never are.
		g.logger.Debug("metadata keys dropped",
			zap.String("context", context),
			zap.Int("dropped", dropped))
	}
	return out
}

// AssertClean re-checks an already-sanitized map. A forbidden key here
// is a programming error: in development it aborts the write with a
// fatal error, in production the key is dropped in place and the write
// proceeds. Returns the map that is safe to persist.
func (g *Guard) AssertClean(meta map[string]any, context string) (map[string]any, error) {
	var leaked []string
	for k := range meta {
		if Forbidden(k) {
			leaked = append(leaked, k)
		}
	}
	if len(leaked) == 0 {
		return meta, nil
	}
	sort.Strings(leaked)

	if g.mode == ModeDevelopment {
		return nil, fmt.Errorf("privacy assertion failed in %s: forbidden metadata keys %v survived sanitization", context, leaked)
	}

	g.logger.Warn("forbidden metadata keys survived sanitization, dropped",
		zap.String("context", context),
		zap.Strings("keys", leaked))
	for _, k := range leaked {
		delete(meta, k)
	}
	return meta, nil
}

// Apply guards a proposed metadata map end to end: Sanitize then
// AssertClean, the mandatory two-step before any event, log, or audit
// write. In development a caller proposing forbidden keys is itself a
// defect, so Apply fails on the raw map before anything is silently
// repaired; in production the keys are dropped and the write proceeds.
func (g *Guard) Apply(meta map[string]any, context string) (map[string]any, error) {
	if g.mode == ModeDevelopment {
		if _, err := g.AssertClean(meta, context); err != nil {
			return nil, err
		}
	}
	return g.AssertClean(g.Sanitize(meta, context), context)
}
