package knox

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arbetsytan/knox/internal/sanitize"
)

func gateCompiler(t *testing.T) *Compiler {
	t.Helper()
	det := sanitize.NewDetector(sanitize.DefaultRuleset())
	return NewCompiler(det, nil, nil, zap.NewNop(), time.Second, 1)
}

func contentWith(summary string) ReportContent {
	return ReportContent{
		TemplateID:       "weekly",
		Language:         "sv",
		Title:            "Lägesrapport",
		ExecutiveSummary: summary,
		Confidence:       "medium",
	}
}

func TestInputGate_RefusesEmptyMaterial(t *testing.T) {
	c := gateCompiler(t)
	ref := c.inputGate(nil, testPolicy())
	if ref == nil {
		t.Fatal("expected refusal for empty material")
	}
	if ref.Stage != StageInputGate || !hasReason(ref, ReasonNoDocuments) {
		t.Errorf("unexpected refusal: %+v", ref)
	}
}

func TestInputGate_RefusesLevelBelowPolicyMinimum(t *testing.T) {
	c := gateCompiler(t)
	policy := testPolicy()
	policy.ID = "external"
	policy.Mode = ModeExternal
	policy.SanitizeMinLevel = sanitize.LevelStrict

	docs := []InputDoc{{ID: 1, MaskedText: "rent underlag utan siffror", Level: sanitize.LevelNormal}}
	ref := c.inputGate(docs, policy)
	if ref == nil || !hasReason(ref, ReasonInsufficientLevel) {
		t.Errorf("expected insufficient level refusal, got %+v", ref)
	}
}

func TestInputGate_RefusesResidueInMaskedText(t *testing.T) {
	c := gateCompiler(t)
	docs := []InputDoc{{ID: 1, MaskedText: "kontakta anna@example.com direkt", Level: sanitize.LevelNormal}}
	ref := c.inputGate(docs, testPolicy())
	if ref == nil {
		t.Fatal("expected refusal for residual address")
	}
	if !hasReason(ref, ReasonAdmissionFailed) || !hasReason(ref, sanitize.ReasonEmail) {
		t.Errorf("unexpected reasons: %v", ref.Reasons)
	}
}

func TestInputGate_PassesCleanMaskedDocuments(t *testing.T) {
	c := gateCompiler(t)
	docs := []InputDoc{
		{ID: 1, MaskedText: "Ärendet rör [EMAIL] och [PHONE].", Level: sanitize.LevelNormal},
		{ID: 2, MaskedText: "Möte hölls under veckan.", Level: sanitize.LevelStrict},
	}
	if ref := c.inputGate(docs, testPolicy()); ref != nil {
		t.Errorf("unexpected refusal: %+v", ref)
	}
}

func TestOutputGate_PassesCleanReport(t *testing.T) {
	c := gateCompiler(t)
	docs := []InputDoc{{ID: 1, MaskedText: "Ärendet rör [EMAIL] och [PHONE].", Level: sanitize.LevelNormal}}
	if ref := c.outputGate(contentWith("Projektet fortskrider enligt plan."), docs, testPolicy()); ref != nil {
		t.Errorf("unexpected refusal: %+v", ref)
	}
}

func TestOutputGate_RefusesResidualPII(t *testing.T) {
	c := gateCompiler(t)
	docs := []InputDoc{{ID: 1, MaskedText: "underlag", Level: sanitize.LevelNormal}}
	ref := c.outputGate(contentWith("Kontakta anna@example.com för detaljer."), docs, testPolicy())
	if ref == nil {
		t.Fatal("expected refusal for residual address")
	}
	if ref.Stage != StageOutputGate || !hasReason(ref, sanitize.ReasonEmail) {
		t.Errorf("unexpected refusal: %+v", ref)
	}
}

func TestOutputGate_RefusesVerbatimQuote(t *testing.T) {
	c := gateCompiler(t)
	policy := testPolicy()
	policy.QuoteLimitWords = 3

	docs := []InputDoc{{
		ID:         1,
		MaskedText: "styrelsen beslutade att avveckla verksamheten i norra regionen",
		Level:      sanitize.LevelStrict,
	}}
	ref := c.outputGate(contentWith("Enligt underlaget har styrelsen beslutade att avveckla delar av arbetet."), docs, policy)
	if ref == nil || !hasReason(ref, ReasonQuoteLimitExceeded) {
		t.Errorf("expected quote refusal, got %+v", ref)
	}

	// Under the budget the same material passes.
	if ref := c.outputGate(contentWith("Styrelsen beslutade enligt plan."), docs, policy); ref != nil {
		t.Errorf("short overlap refused: %+v", ref)
	}
}

func TestOutputGate_RefusesReidentification(t *testing.T) {
	c := gateCompiler(t)
	docs := []InputDoc{{ID: 1, MaskedText: "möte i rum [NUM] imorgon", Level: sanitize.LevelStrict}}
	ref := c.outputGate(contentWith("Ett möte i rum 417 har bokats."), docs, testPolicy())
	if ref == nil || !hasReason(ref, ReasonReidentification) {
		t.Errorf("expected re-identification refusal, got %+v", ref)
	}

	// The same context without a specific value is fine.
	if ref := c.outputGate(contentWith("Ett möte i rum på kontoret är planerat."), docs, testPolicy()); ref != nil {
		t.Errorf("generic phrasing refused: %+v", ref)
	}
}

func hasReason(ref *Refusal, reason string) bool {
	for _, r := range ref.Reasons {
		if r == reason {
			return true
		}
	}
	return false
}
