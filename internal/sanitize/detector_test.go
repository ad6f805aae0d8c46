package sanitize

import (
	"strings"
	"testing"
)

func TestDetector_NormalLevel(t *testing.T) {
	d := NewDetector(DefaultRuleset())

	tests := []struct {
		name    string
		text    string
		want    Kind
		wantHit bool
	}{
		{"email simple", "Contact anna@example.com for details", KindEmail, true},
		{"email with plus", "reply to user+tag@company.org", KindEmail, true},
		{"national id dashed", "born 19780126-1234 in town", KindNationalID, true},
		{"national id 12 digits", "id 197801261234 on file", KindNationalID, true},
		{"national id short form", "ref 780126-1234 noted", KindNationalID, true},
		{"mobile with separators", "call 070-123 45 67 today", KindPhone, true},
		{"area code phone", "office 08-123 45 67", KindPhone, true},
		{"country code phone", "+46 70 123 45 67", KindPhone, true},
		{"very long digit run", "serial 123456789012345", KindNumericSequence, true},
		{"plain text", "the weather today is sunny and warm", KindOther, false},
		{"short number", "order 12345 shipped", KindOther, false},
		{"iso date", "meeting on 2025-11-20", KindOther, false},
		{"year", "founded in 2024", KindOther, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := d.Detect(tt.text, LevelNormal)
			if !tt.wantHit {
				if len(findings) != 0 {
					t.Fatalf("expected no findings, got %d (first kind %s)", len(findings), findings[0].Kind)
				}
				return
			}
			if len(findings) == 0 {
				t.Fatalf("expected a %s finding, got none", tt.want)
			}
			found := false
			for _, f := range findings {
				if f.Kind == tt.want {
					found = true
				}
			}
			if !found {
				t.Errorf("expected kind %s among findings, got %v", tt.want, findings)
			}
		})
	}
}

func TestDetector_StrictAddsNumericRules(t *testing.T) {
	d := NewDetector(DefaultRuleset())

	tests := []struct {
		name string
		text string
	}{
		{"labeled id", "Dok.Id 123456 attached"},
		{"colon id", "ID: 2448 on page two"},
		{"spaced digit cluster", "amount 24 698 total"},
		{"hyphenated cluster", "code 322-9448 assigned"},
		{"standalone five digits", "zip 41234 area"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Detect(tt.text, LevelNormal); len(got) != 0 {
				t.Fatalf("normal level should not flag %q, got %v", tt.name, got)
			}
			if got := d.Detect(tt.text, LevelStrict); len(got) == 0 {
				t.Errorf("strict level should flag %q", tt.name)
			}
		})
	}

	// ISO dates stay untouched at strict.
	if got := d.Detect("published 2025-11-20 in the register", LevelStrict); len(got) != 0 {
		t.Errorf("strict level must not flag ISO dates, got %v", got)
	}
}

func TestDetector_ParanoidFlagsAllDigitsAndLabeledNames(t *testing.T) {
	d := NewDetector(DefaultRuleset())

	findings := d.Detect("agent 007 met 3 people at https://example.com/x\nSökande Anna Larsson", LevelParanoid)

	var kinds []string
	for _, f := range findings {
		kinds = append(kinds, f.Kind.String())
	}
	joined := strings.Join(kinds, ",")
	for _, want := range []string{"numeric_sequence", "link", "name"} {
		if !strings.Contains(joined, want) {
			t.Errorf("paranoid findings missing kind %s (got %s)", want, joined)
		}
	}
}

func TestDetector_Deterministic(t *testing.T) {
	d := NewDetector(DefaultRuleset())
	text := "Kontakt: anna@example.com, 070-123 45 67, id 19780126-1234, ref 24 698"

	for _, level := range []Level{LevelNormal, LevelStrict, LevelParanoid} {
		first := d.Detect(text, level)
		for i := 0; i < 5; i++ {
			again := d.Detect(text, level)
			if len(again) != len(first) {
				t.Fatalf("level %s: run %d returned %d findings, first run %d", level, i, len(again), len(first))
			}
			for j := range again {
				if again[j] != first[j] {
					t.Fatalf("level %s: finding %d differs between runs: %+v vs %+v", level, j, again[j], first[j])
				}
			}
		}
	}
}

func TestDetector_OverlapSeverity(t *testing.T) {
	d := NewDetector(DefaultRuleset())

	// A dashed national id also resembles a digit cluster at strict level;
	// the national_id finding must win the span.
	findings := d.Detect("id 19780126-1234 noted", LevelStrict)
	if len(findings) == 0 {
		t.Fatal("expected findings")
	}
	for _, f := range findings {
		if f.Kind == KindNumericSequence && f.Start <= 4 {
			t.Errorf("numeric_sequence claimed the national id span: %+v", f)
		}
	}
	if findings[0].Kind != KindNationalID {
		t.Errorf("expected national_id to win overlap, got %s", findings[0].Kind)
	}
}

func TestDetector_FindingsNeverCarryValues(t *testing.T) {
	d := NewDetector(DefaultRuleset())
	findings := d.Detect("mail anna@example.com now", LevelNormal)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	f := findings[0]
	if f.ValueHash == "" || len(f.ValueHash) != 64 {
		t.Errorf("expected sha256 hex value hash, got %q", f.ValueHash)
	}
	if strings.Contains(f.ValueHash, "@") {
		t.Errorf("value hash leaks raw value: %q", f.ValueHash)
	}
}
