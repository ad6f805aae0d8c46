package sanitize

import (
	"regexp"
	"strings"
)

// Gate reason codes. Generic by construction: a reason never carries the
// matched value, only the class of residue found.
const (
	ReasonEmail      = "email_detected"
	ReasonPhone      = "phone_detected"
	ReasonNationalID = "national_id_detected"
	ReasonBirthdate  = "birthdate_like_sequence_detected"
	ReasonUnmaskedID = "unmasked_id_detected"
	ReasonLongNumber = "long_number_detected"
)

var (
	// Compact YYYYMMDD sequences that parse as plausible dates.
	birthdateRe = regexp.MustCompile(`\b(19|20)\d{2}(0[1-9]|1[0-2])(0[1-9]|[12]\d|3[01])\b`)
	isoNearbyRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

	// A bare 10-digit run is the short national-id form (YYMMDDXXXX).
	// It slips past the normal-level masking rules, so the gate treats it
	// as identity residue.
	tenDigitRe = regexp.MustCompile(`\b\d{10}\b`)
)

// Gate re-scans already-masked text for residual PII. This secondary pass is
// the fail-closed contract: the masking pass is never trusted on its own.
// It returns whether the text is admissible at the given level plus the full
// ordered list of residue reasons (recorded even when non-blocking).
func (d *Detector) Gate(masked string, level Level) (bool, []string) {
	neutral := neutralizeTokens(masked)
	var reasons []string

	appendOnce := func(reason string) {
		for _, r := range reasons {
			if r == reason {
				return
			}
		}
		reasons = append(reasons, reason)
	}

	for _, re := range nationalIDRes {
		if re.MatchString(neutral) {
			appendOnce(ReasonNationalID)
			break
		}
	}
	if tenDigitRe.MatchString(neutral) {
		appendOnce(ReasonNationalID)
	}

	for _, loc := range birthdateRe.FindAllStringIndex(neutral, -1) {
		// A compact date next to an explicit ISO date is calendar text,
		// not an identity number.
		ctx := contextWindow(neutral, loc[0], loc[1], 20)
		if !isoNearbyRe.MatchString(ctx) {
			appendOnce(ReasonBirthdate)
			break
		}
	}

	if emailRe.MatchString(neutral) {
		appendOnce(ReasonEmail)
	}

	for _, re := range phoneRes {
		for _, loc := range re.FindAllStringIndex(neutral, -1) {
			v := neutral[loc[0]:loc[1]]
			if isoDateRe.MatchString(v) {
				continue
			}
			if countDigits(v) >= 7 {
				appendOnce(ReasonPhone)
			}
		}
	}

	if labeledIDRe.MatchString(neutral) {
		appendOnce(ReasonUnmaskedID)
	}

	if d.longResidue.MatchString(neutral) {
		appendOnce(ReasonLongNumber)
	}

	return len(blockingReasons(reasons, level)) == 0, reasons
}

// blockingReasons filters residue reasons down to the set that blocks
// admission at the given level. Paranoid is the terminal level: nothing
// blocks it, residue is recorded for transparency only.
func blockingReasons(reasons []string, level Level) []string {
	if level >= LevelParanoid {
		return nil
	}
	var blocking []string
	for _, r := range reasons {
		switch r {
		case ReasonEmail, ReasonPhone, ReasonNationalID, ReasonBirthdate:
			blocking = append(blocking, r)
		case ReasonUnmaskedID, ReasonLongNumber:
			if level >= LevelStrict {
				blocking = append(blocking, r)
			}
		}
	}
	return blocking
}

// neutralizeTokens replaces mask placeholders with a digit-free stand-in so
// the residue patterns cannot false-positive on the placeholders themselves.
func neutralizeTokens(text string) string {
	for _, tok := range allTokens {
		text = strings.ReplaceAll(text, tok, "[TOKEN]")
	}
	return text
}

func contextWindow(s string, start, end, radius int) string {
	lo := start - radius
	if lo < 0 {
		lo = 0
	}
	hi := end + radius
	if hi > len(s) {
		hi = len(s)
	}
	return s[lo:hi]
}
