package knox

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arbetsytan/knox/internal/knox/generate"
	"github.com/arbetsytan/knox/internal/sanitize"
)

// ReportStore persists compiled reports keyed by fingerprint.
// GetReportByFingerprint returns (nil, nil) when no report exists.
type ReportStore interface {
	GetReportByFingerprint(ctx context.Context, fingerprint string) (*Report, error)
	InsertReport(ctx context.Context, report *Report) error
}

// Compiler drives the full report compilation flow: fingerprint,
// memoization, input gate, generation, output gate, persistence.
type Compiler struct {
	detector atomic.Pointer[sanitize.Detector]
	gen      generate.Generator
	store    ReportStore
	flights  *flightGroup
	logger   *zap.Logger
	timeout  time.Duration
	attempts int
}

// NewCompiler wires a compiler. timeout bounds one generation run end
// to end; attempts is the per-run generation retry budget.
func NewCompiler(detector *sanitize.Detector, gen generate.Generator, store ReportStore, logger *zap.Logger, timeout time.Duration, attempts int) *Compiler {
	if attempts < 1 {
		attempts = 1
	}
	c := &Compiler{
		gen:      gen,
		store:    store,
		flights:  newFlightGroup(),
		logger:   logger,
		timeout:  timeout,
		attempts: attempts,
	}
	c.detector.Store(detector)
	return c
}

// SwapDetector installs a detector built from reloaded rules. Compiles
// already in flight keep the detector they started with.
func (c *Compiler) SwapDetector(d *sanitize.Detector) {
	c.detector.Store(d)
}

// CompileRequest carries only already-masked material. Raw document
// text must never reach this type.
type CompileRequest struct {
	ProjectID  int64
	Policy     Policy
	TemplateID string
	Documents  []InputDoc
}

// Compile returns the report for the request's fingerprint, producing
// it at most once across concurrent identical requests. A persisted
// report is returned as-is with no recomputation; refusals are returned
// as *Refusal errors.
func (c *Compiler) Compile(ctx context.Context, req CompileRequest) (*Report, error) {
	fp := Fingerprint(req.Documents, req.Policy, req.TemplateID)
	log := c.logger.With(
		zap.String("fingerprint", fp),
		zap.String("policy_id", req.Policy.ID),
		zap.String("template_id", req.TemplateID),
		zap.Int("document_count", len(req.Documents)))

	if rep, err := c.store.GetReportByFingerprint(ctx, fp); err != nil {
		return nil, fmt.Errorf("report lookup: %w", err)
	} else if rep != nil {
		log.Debug("report served from cache")
		return rep, nil
	}

	rep, shared, err := c.flights.do(ctx, fp, c.timeout, func(runCtx context.Context) (*Report, error) {
		return c.compileOnce(runCtx, req, fp, log)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug("joined in-flight compile")
	}
	return rep, nil
}

func (c *Compiler) compileOnce(ctx context.Context, req CompileRequest, fp string, log *zap.Logger) (*Report, error) {
	start := time.Now()

	// A racer may have persisted between the caller's cache check and
	// this slot starting.
	if rep, err := c.store.GetReportByFingerprint(ctx, fp); err == nil && rep != nil {
		return rep, nil
	}

	if ref := c.inputGate(req.Documents, req.Policy); ref != nil {
		log.Info("compile refused",
			zap.String("stage", ref.Stage),
			zap.Strings("reasons", ref.Reasons))
		return nil, ref
	}

	content, err := c.generateContent(ctx, req)
	if err != nil {
		return nil, err
	}

	if ref := c.outputGate(content, req.Documents, req.Policy); ref != nil {
		log.Info("compile refused",
			zap.String("stage", ref.Stage),
			zap.Strings("reasons", ref.Reasons))
		return nil, ref
	}

	rep := &Report{
		ID:            uuid.New(),
		ProjectID:     req.ProjectID,
		Fingerprint:   fp,
		PolicyID:      req.Policy.ID,
		PolicyVersion: req.Policy.Version,
		TemplateID:    req.TemplateID,
		Content:       content,
		CreatedAt:     time.Now().UTC(),
	}
	if err := c.store.InsertReport(ctx, rep); err != nil {
		return nil, fmt.Errorf("persist report: %w", err)
	}

	log.Info("compile successful", zap.Duration("latency", time.Since(start)))
	return rep, nil
}

// generateContent invokes the backend with retries: a parse or
// validation failure gets one colder, more insistent retry before the
// run fails.
func (c *Compiler) generateContent(ctx context.Context, req CompileRequest) (ReportContent, error) {
	prompt := buildPrompt(req.Policy, req.TemplateID, req.Documents)

	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		p := prompt
		if attempt > 0 {
			p += retryReminder
		}
		raw, err := c.gen.Generate(ctx, generate.Request{
			Prompt:      p,
			Mode:        string(req.Policy.Mode),
			Temperature: temperatureFor(req.Policy.Mode, attempt),
		})
		if err != nil {
			// The run deadline expiring is a refusal in its own right:
			// the material was admissible, the backend just never
			// answered in time. Caller cancellation stays a plain error.
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ReportContent{}, &Refusal{Stage: StageGeneration, Reasons: []string{ReasonGenerationTimeout}}
			}
			if ctx.Err() != nil {
				return ReportContent{}, fmt.Errorf("generation: %w", err)
			}
			lastErr = err
			continue
		}
		content, err := ParseContent(raw, req.TemplateID)
		if err != nil {
			lastErr = err
			continue
		}
		return content, nil
	}
	return ReportContent{}, fmt.Errorf("generation failed after %d attempts: %w", c.attempts, lastErr)
}
