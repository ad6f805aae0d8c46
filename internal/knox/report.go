package knox

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Theme is one thematic section of a compiled report.
type Theme struct {
	Name    string   `json:"name"`
	Bullets []string `json:"bullets"`
}

// Risk pairs a publication risk with its mitigation.
type Risk struct {
	Risk       string `json:"risk"`
	Mitigation string `json:"mitigation"`
}

// ReportContent is the structured body of a compiled report, the JSON
// shape the generation backend is instructed to produce.
type ReportContent struct {
	TemplateID        string   `json:"template_id"`
	Language          string   `json:"language"`
	Title             string   `json:"title"`
	ExecutiveSummary  string   `json:"executive_summary"`
	Themes            []Theme  `json:"themes"`
	TimelineHighLevel []string `json:"timeline_high_level"`
	Risks             []Risk   `json:"risks"`
	OpenQuestions     []string `json:"open_questions"`
	NextSteps         []string `json:"next_steps"`
	Confidence        string   `json:"confidence"`
}

// textFields returns every free-text field of the content joined for
// scanning. Field order is fixed so scans are deterministic.
func (c ReportContent) textFields() string {
	var b strings.Builder
	b.WriteString(c.Title)
	b.WriteString("\n")
	b.WriteString(c.ExecutiveSummary)
	for _, t := range c.Themes {
		b.WriteString("\n")
		b.WriteString(t.Name)
		for _, bl := range t.Bullets {
			b.WriteString("\n")
			b.WriteString(bl)
		}
	}
	for _, s := range c.TimelineHighLevel {
		b.WriteString("\n")
		b.WriteString(s)
	}
	for _, r := range c.Risks {
		b.WriteString("\n")
		b.WriteString(r.Risk)
		b.WriteString("\n")
		b.WriteString(r.Mitigation)
	}
	for _, s := range c.OpenQuestions {
		b.WriteString("\n")
		b.WriteString(s)
	}
	for _, s := range c.NextSteps {
		b.WriteString("\n")
		b.WriteString(s)
	}
	return b.String()
}

// Report is a persisted compilation outcome, keyed by input fingerprint.
type Report struct {
	ID            uuid.UUID     `json:"id"`
	ProjectID     int64         `json:"project_id"`
	Fingerprint   string        `json:"fingerprint"`
	PolicyID      string        `json:"policy_id"`
	PolicyVersion string        `json:"policy_version"`
	TemplateID    string        `json:"template_id"`
	Content       ReportContent `json:"content"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Refusal stages, ordered by pipeline position.
const (
	StageInputGate  = "input_gate"
	StageGeneration = "generation"
	StageOutputGate = "output_gate"
)

// Refusal is an explicit compile rejection. It carries only the stage
// and non-content reason codes, never text from the material or the
// generated output.
type Refusal struct {
	Stage   string   `json:"stage"`
	Reasons []string `json:"reasons"`
}

func (r *Refusal) Error() string {
	return fmt.Sprintf("compile refused at %s: %s", r.Stage, strings.Join(r.Reasons, ", "))
}
