package sanitize

import (
	"regexp"
	"strings"
)

var (
	blankRunRe  = regexp.MustCompile(`\n{3,}`)
	spaceRunRe  = regexp.MustCompile(`[ \t]{2,}`)
	spacedComma = regexp.MustCompile(` ,(\s)`)
	spacedStop  = regexp.MustCompile(` \.(\s|$)`)
)

// fillerPrefixes are transcription artifacts stripped from sentence starts.
// The table is ordered and fixed: normalization must be deterministic.
var fillerPrefixes = []string{
	"eh, ",
	"ehm, ",
	"hmm, ",
	"mm, ",
}

// Normalize cleans raw extracted text before detection: line endings,
// whitespace runs, and known transcription artifacts. It never fails;
// text without artifacts passes through with only whitespace cleanup.
func Normalize(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = blankRunRe.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, " \t")
		line = spaceRunRe.ReplaceAllString(line, " ")
		for _, filler := range fillerPrefixes {
			if rest, ok := cutFillerPrefix(line, filler); ok {
				line = rest
				break
			}
		}
		lines[i] = line
	}
	text = strings.Join(lines, "\n")

	text = spacedComma.ReplaceAllString(text, ",$1")
	text = spacedStop.ReplaceAllString(text, ".$1")

	return strings.TrimSpace(text)
}

// cutFillerPrefix removes a filler word at the start of a line, case-insensitively.
func cutFillerPrefix(line, filler string) (string, bool) {
	if len(line) < len(filler) {
		return line, false
	}
	if strings.EqualFold(line[:len(filler)], filler) {
		return line[len(filler):], true
	}
	return line, false
}
