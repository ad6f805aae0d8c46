package sanitize

import "strings"

// Placeholder tokens, one per finding kind. A placeholder is a fixed literal:
// it leaks neither the length nor the position structure of the original value.
const (
	tokenEmail      = "[EMAIL]"
	tokenPhone      = "[PHONE]"
	tokenNationalID = "[REDACTED]"
	tokenNumeric    = "[NUM]"
	tokenLink       = "[LINK]"
	tokenName       = "[NAME]"
	tokenOther      = "[REDACTED]"
)

// allTokens is consulted by the gate to neutralize placeholders before
// re-scanning masked text.
var allTokens = []string{
	tokenEmail, tokenPhone, tokenNationalID, tokenNumeric, tokenLink, tokenName,
}

// Placeholders returns the mask tokens the pipeline can emit. Consumers
// re-scanning masked text (the admission gate, report output checks)
// use this to recognize placeholder positions.
func Placeholders() []string {
	return append([]string(nil), allTokens...)
}

// placeholderFor maps a finding kind to its mask token.
func placeholderFor(kind Kind) string {
	switch kind {
	case KindEmail:
		return tokenEmail
	case KindPhone:
		return tokenPhone
	case KindNationalID:
		return tokenNationalID
	case KindNumericSequence:
		return tokenNumeric
	case KindLink:
		return tokenLink
	case KindName:
		return tokenName
	default:
		return tokenOther
	}
}

// Mask replaces every finding span with its kind's placeholder token.
// Findings must be non-overlapping and ordered by start (the Detector's
// contract). Pure function: identical (text, findings) always produces
// identical output.
func Mask(text string, findings []Finding) string {
	if len(findings) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, f := range findings {
		if f.Start < prev || f.End > len(text) {
			// Defective span; skip rather than corrupt surrounding text.
			continue
		}
		b.WriteString(text[prev:f.Start])
		b.WriteString(placeholderFor(f.Kind))
		prev = f.End
	}
	b.WriteString(text[prev:])
	return b.String()
}
