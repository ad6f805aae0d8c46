package generate

import "context"

// Fixture generators return a fixed, valid report JSON per policy mode.
// They exist for test mode: compile flows can be exercised end to end
// with no completion backend running, and the output is deterministic.

const internalFixture = `{
  "template_id": "weekly",
  "language": "sv",
  "title": "Intern Rapport - Vecka 1",
  "executive_summary": "Detta är en sammanfattning av interna händelser.",
  "themes": [
    {"name": "Säkerhet", "bullets": ["Ökad övervakning", "Nya protokoll"]}
  ],
  "timeline_high_level": ["Vecka 1: Incident A", "Vecka 2: Åtgärd B"],
  "risks": [
    {"risk": "Dataintrång", "mitigation": "Förbättrad kryptering"}
  ],
  "open_questions": ["Vad hände med servern?"],
  "next_steps": ["Granska loggar"],
  "confidence": "high"
}`

const externalFixture = `{
  "template_id": "weekly",
  "language": "sv",
  "title": "Extern Sammanfattning",
  "executive_summary": "En översiktlig sammanfattning för extern användning.",
  "themes": [],
  "timeline_high_level": [],
  "risks": [],
  "open_questions": [],
  "next_steps": [],
  "confidence": "medium"
}`

// FixtureGenerator serves the built-in fixtures. It still honors ctx so
// cancellation paths are testable.
type FixtureGenerator struct{}

func (FixtureGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.Mode == "internal" {
		return internalFixture, nil
	}
	return externalFixture, nil
}
