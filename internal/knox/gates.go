package knox

import (
	"strings"

	"github.com/arbetsytan/knox/internal/sanitize"
)

// Refusal reason codes. Reasons carry no content, only codes; document
// admission reasons from the sanitize gate pass through as-is.
const (
	ReasonNoDocuments        = "no_documents"
	ReasonInsufficientLevel  = "insufficient_sanitize_level"
	ReasonAdmissionFailed    = "document_admission_failed"
	ReasonQuoteLimitExceeded = "quote_limit_exceeded"
	ReasonReidentification   = "reidentification_risk"
	ReasonGenerationTimeout  = "generation_timeout"
)

// inputGate refuses compilation when the underlying material is
// insufficient: no documents, a document sanitized below the policy
// minimum, or masked content that fails a fresh admission scan. The
// compile is refused outright rather than silently degraded.
func (c *Compiler) inputGate(docs []InputDoc, policy Policy) *Refusal {
	if len(docs) == 0 {
		return &Refusal{Stage: StageInputGate, Reasons: []string{ReasonNoDocuments}}
	}

	var reasons []string
	for _, d := range docs {
		if d.Level < policy.SanitizeMinLevel {
			appendOnce(&reasons, ReasonInsufficientLevel)
		}
		if passed, gateReasons := c.detector.Load().Gate(d.MaskedText, d.Level); !passed {
			appendOnce(&reasons, ReasonAdmissionFailed)
			for _, r := range gateReasons {
				appendOnce(&reasons, r)
			}
		}
	}
	if len(reasons) > 0 {
		return &Refusal{Stage: StageInputGate, Reasons: reasons}
	}
	return nil
}

// outputGate scans the generated report before it may be persisted or
// exposed: residual PII via the same detector that sanitized the input,
// verbatim quotations beyond the policy budget, and a re-identification
// heuristic. Any violation aborts the report.
func (c *Compiler) outputGate(content ReportContent, docs []InputDoc, policy Policy) *Refusal {
	text := content.textFields()
	var reasons []string

	// Residual PII. The strict gate is used regardless of policy mode:
	// generated output has no second chance at a higher level.
	if passed, gateReasons := c.detector.Load().Gate(text, sanitize.LevelStrict); !passed {
		for _, r := range gateReasons {
			appendOnce(&reasons, r)
		}
	}

	if hasVerbatimQuote(text, docs, policy.QuoteLimitWords) {
		appendOnce(&reasons, ReasonQuoteLimitExceeded)
	}

	if reconstructsMaskedEntity(text, docs) {
		appendOnce(&reasons, ReasonReidentification)
	}

	if len(reasons) > 0 {
		return &Refusal{Stage: StageOutputGate, Reasons: reasons}
	}
	return nil
}

// hasVerbatimQuote reports whether the output contains a run of more
// than limit consecutive words that also appears in any input document.
func hasVerbatimQuote(output string, docs []InputDoc, limit int) bool {
	n := limit + 1
	out := tokenize(output)
	if len(out) < n {
		return false
	}

	grams := make(map[string]struct{})
	for _, d := range docs {
		words := tokenize(d.MaskedText)
		for i := 0; i+n <= len(words); i++ {
			grams[strings.Join(words[i:i+n], " ")] = struct{}{}
		}
	}
	if len(grams) == 0 {
		return false
	}

	for i := 0; i+n <= len(out); i++ {
		if _, ok := grams[strings.Join(out[i:i+n], " ")]; ok {
			return true
		}
	}
	return false
}

// Context words considered on each side of a placeholder when checking
// whether output could restore a masked value.
const reidContextWords = 4

// reconstructsMaskedEntity checks whether the output repeats the words
// surrounding any mask placeholder in the input and, right where the
// placeholder sat, supplies a specific value (a digit run or an address)
// instead. That pairing makes a unique reconstruction of the masked
// entity plausible, so the report is refused.
func reconstructsMaskedEntity(output string, docs []InputDoc) bool {
	placeholders := make(map[string]struct{})
	for _, p := range sanitize.Placeholders() {
		placeholders[strings.ToLower(p)] = struct{}{}
	}

	out := tokenize(output)

	for _, d := range docs {
		words := tokenize(d.MaskedText)
		for i, w := range words {
			if _, ok := placeholders[w]; !ok {
				continue
			}
			start := i - reidContextWords
			if start < 0 {
				start = 0
			}
			ctx := words[start:i]
			if len(ctx) < 2 {
				// One word of context is too generic to anchor on.
				continue
			}
			for _, j := range findSequence(out, ctx) {
				end := j + reidContextWords
				if end > len(out) {
					end = len(out)
				}
				for _, cand := range out[j:end] {
					if isSpecificValue(cand) {
						return true
					}
				}
			}
		}
	}
	return false
}

// findSequence returns the positions immediately after each occurrence
// of seq in words.
func findSequence(words, seq []string) []int {
	var after []int
	for i := 0; i+len(seq) <= len(words); i++ {
		match := true
		for k, s := range seq {
			if words[i+k] != s {
				match = false
				break
			}
		}
		if match {
			after = append(after, i+len(seq))
		}
	}
	return after
}

// isSpecificValue reports whether a word looks like a concrete
// identity-bearing value rather than prose.
func isSpecificValue(w string) bool {
	if strings.Contains(w, "@") {
		return true
	}
	digits := 0
	for _, c := range w {
		if c >= '0' && c <= '9' {
			digits++
			if digits >= 2 {
				return true
			}
		}
	}
	return false
}

// tokenize lowercases and splits text into words with edge punctuation
// trimmed. Bracketed placeholder tokens survive intact.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `,.;:!?"'()`)
		if f != "" {
			words = append(words, f)
		}
	}
	return words
}

func appendOnce(reasons *[]string, reason string) {
	for _, r := range *reasons {
		if r == reason {
			return
		}
	}
	*reasons = append(*reasons, reason)
}
