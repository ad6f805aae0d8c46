package knox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arbetsytan/knox/internal/knox/generate"
	"github.com/arbetsytan/knox/internal/sanitize"
)

// memStore is an in-memory ReportStore.
type memStore struct {
	mu   sync.Mutex
	byFP map[string]*Report
}

func newMemStore() *memStore {
	return &memStore{byFP: make(map[string]*Report)}
}

func (s *memStore) GetReportByFingerprint(ctx context.Context, fp string) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byFP[fp], nil
}

func (s *memStore) InsertReport(ctx context.Context, rep *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byFP[rep.Fingerprint] = rep
	return nil
}

// scriptedGen returns queued outputs in order, repeating the last one,
// and counts invocations. A nonzero delay makes it block ctx-aware so
// cancellation paths can be exercised.
type scriptedGen struct {
	mu      sync.Mutex
	calls   int
	outputs []string
	errs    []error
	delay   time.Duration
}

func (g *scriptedGen) Generate(ctx context.Context, req generate.Request) (string, error) {
	g.mu.Lock()
	i := g.calls
	g.calls++
	delay := g.delay
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if len(g.outputs) == 0 {
		return "", errors.New("no scripted output")
	}
	if i >= len(g.outputs) {
		i = len(g.outputs) - 1
	}
	return g.outputs[i], nil
}

func (g *scriptedGen) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func newTestCompiler(gen generate.Generator, store ReportStore, attempts int) *Compiler {
	det := sanitize.NewDetector(sanitize.DefaultRuleset())
	return NewCompiler(det, gen, store, zap.NewNop(), 5*time.Second, attempts)
}

func testRequest() CompileRequest {
	return CompileRequest{
		ProjectID:  7,
		Policy:     testPolicy(),
		TemplateID: "weekly",
		Documents: []InputDoc{
			{ID: 1, MaskedText: "Ärendet rör [EMAIL] och [PHONE].", Level: sanitize.LevelNormal},
			{ID: 2, MaskedText: "Möte hölls under veckan.", Level: sanitize.LevelStrict},
		},
	}
}

func TestCompile_SuccessPersistsAndCaches(t *testing.T) {
	gen := &scriptedGen{outputs: []string{validReportJSON}}
	store := newMemStore()
	c := newTestCompiler(gen, store, 2)

	first, err := c.Compile(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if first.Content.Title != "Lägesrapport" || first.ProjectID != 7 {
		t.Errorf("unexpected report: %+v", first)
	}

	second, err := c.Compile(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("second Compile: %v", err)
	}
	if second.ID != first.ID {
		t.Error("identical request produced a different report")
	}
	if gen.callCount() != 1 {
		t.Errorf("generation called %d times, want 1", gen.callCount())
	}
}

func TestCompile_ConcurrentIdenticalRequestsGenerateOnce(t *testing.T) {
	gen := &scriptedGen{outputs: []string{validReportJSON}, delay: 50 * time.Millisecond}
	store := newMemStore()
	c := newTestCompiler(gen, store, 2)

	const n = 8
	var wg sync.WaitGroup
	reports := make([]*Report, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i], errs[i] = c.Compile(context.Background(), testRequest())
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("waiter %d: %v", i, errs[i])
		}
		if reports[i].ID != reports[0].ID {
			t.Errorf("waiter %d got a different report", i)
		}
	}
	if gen.callCount() != 1 {
		t.Errorf("generation called %d times, want 1", gen.callCount())
	}
}

func TestCompile_InputGateRefusalSkipsGeneration(t *testing.T) {
	gen := &scriptedGen{outputs: []string{validReportJSON}}
	c := newTestCompiler(gen, newMemStore(), 2)

	req := testRequest()
	req.Documents = []InputDoc{{ID: 1, MaskedText: "kontakta anna@example.com", Level: sanitize.LevelNormal}}

	_, err := c.Compile(context.Background(), req)
	var ref *Refusal
	if !errors.As(err, &ref) {
		t.Fatalf("expected *Refusal, got %v", err)
	}
	if ref.Stage != StageInputGate {
		t.Errorf("stage = %q, want %q", ref.Stage, StageInputGate)
	}
	if gen.callCount() != 0 {
		t.Errorf("generation ran despite input refusal: %d calls", gen.callCount())
	}
}

func TestCompile_OutputGateRefusalIsNotCached(t *testing.T) {
	leaky := `{"title":"Rapport","executive_summary":"Ring anna@example.com idag.","confidence":"low"}`
	gen := &scriptedGen{outputs: []string{leaky, validReportJSON}}
	store := newMemStore()
	c := newTestCompiler(gen, store, 1)

	_, err := c.Compile(context.Background(), testRequest())
	var ref *Refusal
	if !errors.As(err, &ref) {
		t.Fatalf("expected *Refusal, got %v", err)
	}
	if ref.Stage != StageOutputGate {
		t.Errorf("stage = %q, want %q", ref.Stage, StageOutputGate)
	}

	// A failed compile releases the slot: the next caller retries.
	rep, err := c.Compile(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("retry Compile: %v", err)
	}
	if rep.Content.Title != "Lägesrapport" {
		t.Errorf("unexpected retry report: %+v", rep.Content)
	}
}

func TestCompile_RetriesInvalidJSONOnce(t *testing.T) {
	gen := &scriptedGen{outputs: []string{"det här är inte JSON", validReportJSON}}
	c := newTestCompiler(gen, newMemStore(), 2)

	rep, err := c.Compile(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if rep.Content.Title != "Lägesrapport" {
		t.Errorf("unexpected content: %+v", rep.Content)
	}
	if gen.callCount() != 2 {
		t.Errorf("generation called %d times, want 2", gen.callCount())
	}
}

func TestCompile_FailsAfterAttemptBudget(t *testing.T) {
	gen := &scriptedGen{outputs: []string{"skräp", "mer skräp"}}
	c := newTestCompiler(gen, newMemStore(), 2)

	if _, err := c.Compile(context.Background(), testRequest()); err == nil {
		t.Fatal("expected error after exhausted attempts")
	}
	if gen.callCount() != 2 {
		t.Errorf("generation called %d times, want 2", gen.callCount())
	}
}

func TestCompile_CallerCancellation(t *testing.T) {
	gen := &scriptedGen{outputs: []string{validReportJSON}, delay: 5 * time.Second}
	c := newTestCompiler(gen, newMemStore(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Compile(ctx, testRequest())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled compile did not return")
	}
}

func TestCompile_GenerationTimeoutIsRefusalAndReleasesSlot(t *testing.T) {
	gen := &scriptedGen{outputs: []string{validReportJSON}, delay: time.Second}
	det := sanitize.NewDetector(sanitize.DefaultRuleset())
	c := NewCompiler(det, gen, newMemStore(), zap.NewNop(), 30*time.Millisecond, 1)

	_, err := c.Compile(context.Background(), testRequest())
	var ref *Refusal
	if !errors.As(err, &ref) {
		t.Fatalf("got %v, want a *Refusal", err)
	}
	if ref.Stage != StageGeneration {
		t.Errorf("stage = %q, want %q", ref.Stage, StageGeneration)
	}
	if len(ref.Reasons) != 1 || ref.Reasons[0] != ReasonGenerationTimeout {
		t.Errorf("reasons = %v, want [%s]", ref.Reasons, ReasonGenerationTimeout)
	}

	// The slot is free afterwards; a fast backend succeeds.
	gen.mu.Lock()
	gen.delay = 0
	gen.mu.Unlock()
	if _, err := c.Compile(context.Background(), testRequest()); err != nil {
		t.Fatalf("compile after timeout: %v", err)
	}
}
