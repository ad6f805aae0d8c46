package sanitize

import (
	"regexp"
	"sort"
	"strconv"
)

// Ruleset holds the tunable detection thresholds. The digit-run boundaries
// between strict and paranoid are policy data, not algorithm invariants,
// so they live in configuration rather than in the pattern tables.
type Ruleset struct {
	// StrictMinDigits is the minimum total digit count for strict-level
	// digit-cluster findings (spaced or hyphenated sequences).
	StrictMinDigits int
	// GateLongDigits is the residual digit-run length the admission gate
	// treats as a long-number violation.
	GateLongDigits int
	// NameLabels are line-start labels whose remainder is masked as a name
	// at paranoid level (e.g. court-document role labels).
	NameLabels []string
}

// DefaultRuleset mirrors the production policy file defaults.
func DefaultRuleset() Ruleset {
	return Ruleset{
		StrictMinDigits: 5,
		GateLongDigits:  9,
		NameLabels:      []string{"Sökande", "Motpart", "Ombud", "Applicant", "Counterpart", "Counsel"},
	}
}

// Pre-compiled detection patterns — targeted per PII type, additive per level.
var (
	emailRe = regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`)

	// National identity numbers: YYYYMMDD-XXXX, 12-digit, and short YYMMDD-XXXX forms.
	nationalIDRes = []*regexp.Regexp{
		regexp.MustCompile(`\b(19|20)\d{6}[- ]\d{4}\b`),
		regexp.MustCompile(`\b(19|20)\d{10}\b`),
		regexp.MustCompile(`\b\d{6}-\d{4}\b`),
	}

	// Phone formats: country-code, area-code with separators, mobile prefixes.
	phoneRes = []*regexp.Regexp{
		regexp.MustCompile(`\+\d{1,3}\s?\d{1,3}[- ]?\d{2,3}[- ]?\d{2,3}[- ]?\d{2,4}`),
		regexp.MustCompile(`\b0\d{1,2}[- ]\d{2,3}[- ]?\d{2,3}[- ]?\d{2,4}\b`),
		regexp.MustCompile(`\b07\d[- ]\d{2,3}[- ]?\d{2,3}[- ]?\d{2,4}\b`),
	}

	// Very long standalone runs are treated as identifiers at every level.
	longDigitRe = regexp.MustCompile(`\b\d{11,}\b`)

	// Labeled identifiers: "Dok.Id 12345", "ID: 12345".
	labeledIDRe = regexp.MustCompile(`(?i)\b(?:Dok\.Id|ID:|Id:|ID)\s*\d+`)

	// Spaced/hyphenated digit clusters like "24 698" or "322-9448".
	digitClusterRe = regexp.MustCompile(`\b\d{1,4}(?:[- ]\d{1,4}){1,4}\b`)

	// ISO-style dates are allowed and excluded from cluster findings.
	isoDateRe = regexp.MustCompile(`^(19|20)\d{2}[- ]\d{2}[- ]\d{2}$`)

	digitRunRe = regexp.MustCompile(`\d+`)
	urlRe      = regexp.MustCompile(`https?://[^\s]+`)
)

// Detector scans normalized text for typed findings at a given level.
// Detection is stateless and deterministic: the same (text, level) pair
// always yields the same ordered finding set.
type Detector struct {
	rules       Ruleset
	nameLabel   []*regexp.Regexp
	longResidue *regexp.Regexp
}

// NewDetector compiles the per-ruleset patterns once.
func NewDetector(rules Ruleset) *Detector {
	labels := make([]*regexp.Regexp, 0, len(rules.NameLabels))
	for _, l := range rules.NameLabels {
		labels = append(labels, regexp.MustCompile(`(?im)^(`+regexp.QuoteMeta(l)+`)[ \t]+(.+)$`))
	}
	return &Detector{
		rules:       rules,
		nameLabel:   labels,
		longResidue: regexp.MustCompile(`\b\d{` + strconv.Itoa(rules.GateLongDigits) + `,}\b`),
	}
}

// Rules returns the active ruleset (read-only).
func (d *Detector) Rules() Ruleset {
	return d.rules
}

// Detect returns findings for the text at the given level, ordered by span
// start, with overlaps resolved toward the higher-severity kind.
func (d *Detector) Detect(text string, level Level) []Finding {
	var raw []Finding

	add := func(kind Kind, start, end int) {
		raw = append(raw, Finding{
			Kind:      kind,
			Start:     start,
			End:       end,
			ValueHash: hashValue(text[start:end]),
		})
	}

	// Normal rules apply at every level.
	for _, loc := range emailRe.FindAllStringIndex(text, -1) {
		add(KindEmail, loc[0], loc[1])
	}
	for _, re := range nationalIDRes {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			add(KindNationalID, loc[0], loc[1])
		}
	}
	for _, re := range phoneRes {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if isoDateRe.MatchString(text[loc[0]:loc[1]]) {
				continue
			}
			add(KindPhone, loc[0], loc[1])
		}
	}
	for _, loc := range longDigitRe.FindAllStringIndex(text, -1) {
		add(KindNumericSequence, loc[0], loc[1])
	}

	if level >= LevelStrict {
		for _, loc := range labeledIDRe.FindAllStringIndex(text, -1) {
			add(KindNumericSequence, loc[0], loc[1])
		}
		for _, loc := range digitClusterRe.FindAllStringIndex(text, -1) {
			v := text[loc[0]:loc[1]]
			if isoDateRe.MatchString(v) {
				continue
			}
			if countDigits(v) >= d.rules.StrictMinDigits {
				add(KindNumericSequence, loc[0], loc[1])
			}
		}
		for _, loc := range digitRunRe.FindAllStringIndex(text, -1) {
			if loc[1]-loc[0] >= d.rules.StrictMinDigits {
				add(KindNumericSequence, loc[0], loc[1])
			}
		}
	}

	if level >= LevelParanoid {
		for _, loc := range urlRe.FindAllStringIndex(text, -1) {
			add(KindLink, loc[0], loc[1])
		}
		for _, loc := range digitRunRe.FindAllStringIndex(text, -1) {
			add(KindNumericSequence, loc[0], loc[1])
		}
		for _, re := range d.nameLabel {
			for _, sub := range re.FindAllStringSubmatchIndex(text, -1) {
				// Group 2 is the remainder of the labeled line.
				if sub[4] >= 0 && sub[5] > sub[4] {
					add(KindName, sub[4], sub[5])
				}
			}
		}
	}

	return resolveOverlaps(raw)
}

// resolveOverlaps sorts findings by position and drops lower-severity
// findings whose span intersects an already-kept one.
func resolveOverlaps(findings []Finding) []Finding {
	if len(findings) == 0 {
		return nil
	}

	// Higher severity first, then longer span, then position. The sweep
	// below keeps the first claimant of any region.
	sort.Slice(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Kind.Severity() != b.Kind.Severity() {
			return a.Kind.Severity() > b.Kind.Severity()
		}
		if al, bl := a.End-a.Start, b.End-b.Start; al != bl {
			return al > bl
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.Kind > b.Kind
	})

	kept := make([]Finding, 0, len(findings))
	for _, f := range findings {
		overlap := false
		for _, k := range kept {
			if f.Start < k.End && k.Start < f.End {
				overlap = true
				break
			}
		}
		if !overlap {
			kept = append(kept, f)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}

func countDigits(s string) int {
	n := 0
	for _, c := range s {
		if c >= '0' && c <= '9' {
			n++
		}
	}
	return n
}
