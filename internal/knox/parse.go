package knox

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseContent extracts and validates report content from raw
// completion text. Models wrap JSON in markdown fences or prose often
// enough that the parser strips both before decoding.
func ParseContent(raw, templateID string) (ReportContent, error) {
	text := strings.TrimSpace(raw)

	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	} else if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+len("```"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return ReportContent{}, fmt.Errorf("no JSON object in completion output")
	}

	var content ReportContent
	if err := json.Unmarshal([]byte(text[start:end+1]), &content); err != nil {
		return ReportContent{}, fmt.Errorf("invalid report JSON: %w", err)
	}

	if content.TemplateID == "" {
		content.TemplateID = templateID
	}
	if content.Language == "" {
		content.Language = "sv"
	}
	if err := content.validate(); err != nil {
		return ReportContent{}, err
	}
	return content, nil
}

func (c ReportContent) validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("report missing title")
	}
	if strings.TrimSpace(c.ExecutiveSummary) == "" {
		return fmt.Errorf("report missing executive_summary")
	}
	switch c.Confidence {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("report confidence %q not one of low/medium/high", c.Confidence)
	}
	return nil
}
