package sanitize

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// state is the escalation controller's position.
type state int

const (
	stateStart state = iota
	stateNormal
	stateStrict
	stateParanoid
	stateDone
)

// levelFor maps a pipeline state to the level it evaluates.
func levelFor(s state) Level {
	switch s {
	case stateNormal:
		return LevelNormal
	case stateStrict:
		return LevelStrict
	default:
		return LevelParanoid
	}
}

// next returns the successor state given the gate outcome at the current one.
// The machine escalates on gate failure and terminates on pass; paranoid is
// the floor and always terminal.
func next(s state, gatePassed bool) state {
	switch s {
	case stateStart:
		return stateNormal
	case stateNormal:
		if gatePassed {
			return stateDone
		}
		return stateStrict
	case stateStrict:
		if gatePassed {
			return stateDone
		}
		return stateParanoid
	case stateParanoid:
		return stateDone
	default:
		return stateDone
	}
}

// Pipeline runs the full escalation: normalize once, then detect+mask+gate
// fresh per level until the gate admits the result or paranoid is reached.
// The detector is swappable so a configuration reload takes effect on
// the next request; a Sanitize run in flight keeps the detector it
// started with. Safe for concurrent use.
type Pipeline struct {
	detector atomic.Pointer[Detector]
	logger   *zap.Logger
}

// NewPipeline creates a Pipeline around the given detector.
func NewPipeline(detector *Detector, logger *zap.Logger) *Pipeline {
	p := &Pipeline{logger: logger}
	p.detector.Store(detector)
	return p
}

// Detector exposes the pipeline's detector for callers that need to re-scan
// text under the same ruleset (compile gates).
func (p *Pipeline) Detector() *Detector {
	return p.detector.Load()
}

// SwapDetector installs a detector built from new rules. Runs already
// in flight finish under the old rules.
func (p *Pipeline) SwapDetector(d *Detector) {
	p.detector.Store(d)
}

// Sanitize runs the whole escalation for one raw text. It never fails:
// a gate failure at every level is absorbed by the paranoid floor, and the
// returned Result is always admissible. Results from earlier levels are
// discarded whole, never patched.
func (p *Pipeline) Sanitize(raw string) Result {
	text := Normalize(raw)
	detector := p.detector.Load()

	var result Result
	for s := next(stateStart, false); s != stateDone; s = next(s, result.GatePassed) {
		level := levelFor(s)
		findings := detector.Detect(text, level)
		masked := Mask(text, findings)
		passed, reasons := detector.Gate(masked, level)

		result = Result{
			Level:       level,
			MaskedText:  masked,
			Findings:    findings,
			GatePassed:  passed,
			GateReasons: reasons,
		}

		// Metadata only: level, counts, reasons. Never text.
		p.logger.Debug("sanitize pass",
			zap.String("level", level.String()),
			zap.Int("findings", len(findings)),
			zap.Bool("gate_passed", passed),
			zap.Strings("gate_reasons", reasons),
		)
	}

	return result
}
