package sanitize

import "testing"

func TestGate_CleanTextPasses(t *testing.T) {
	d := NewDetector(DefaultRuleset())

	for _, level := range []Level{LevelNormal, LevelStrict, LevelParanoid} {
		passed, reasons := d.Gate("a perfectly ordinary [EMAIL] summary with [NUM] tokens", level)
		if !passed {
			t.Errorf("level %s: expected pass, got reasons %v", level, reasons)
		}
		if len(reasons) != 0 {
			t.Errorf("level %s: expected no reasons, got %v", level, reasons)
		}
	}
}

func TestGate_ResidueBlocksByLevel(t *testing.T) {
	d := NewDetector(DefaultRuleset())

	tests := []struct {
		name         string
		text         string
		reason       string
		blocksNormal bool
		blocksStrict bool
	}{
		{"residual email", "leftover anna@example.com text", ReasonEmail, true, true},
		{"residual phone", "call 070-123 45 67 now", ReasonPhone, true, true},
		{"residual national id", "id 19780126-1234 here", ReasonNationalID, true, true},
		{"compact birthdate", "subject born 19780126 per file", ReasonBirthdate, true, true},
		{"labeled id", "Dok.Id 889900 remains", ReasonUnmaskedID, false, true},
		{"long digit run", "acct 123456789 open", ReasonLongNumber, false, true},
		{"ten digit id form", "ref 7801261234 filed", ReasonNationalID, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passedNormal, reasonsNormal := d.Gate(tt.text, LevelNormal)
			if passedNormal == tt.blocksNormal {
				t.Errorf("normal: passed=%v, want blocked=%v (reasons %v)", passedNormal, tt.blocksNormal, reasonsNormal)
			}
			if !containsReason(reasonsNormal, tt.reason) {
				t.Errorf("normal: reasons %v missing %s", reasonsNormal, tt.reason)
			}

			passedStrict, reasonsStrict := d.Gate(tt.text, LevelStrict)
			if passedStrict == tt.blocksStrict {
				t.Errorf("strict: passed=%v, want blocked=%v (reasons %v)", passedStrict, tt.blocksStrict, reasonsStrict)
			}

			// Paranoid is terminal: residue recorded, never blocking.
			passedParanoid, reasonsParanoid := d.Gate(tt.text, LevelParanoid)
			if !passedParanoid {
				t.Errorf("paranoid must always pass, reasons %v", reasonsParanoid)
			}
			if !containsReason(reasonsParanoid, tt.reason) {
				t.Errorf("paranoid: reasons %v missing %s for transparency", reasonsParanoid, tt.reason)
			}
		})
	}
}

func TestGate_TokensDoNotFalsePositive(t *testing.T) {
	d := NewDetector(DefaultRuleset())
	masked := "[EMAIL] wrote to [PHONE] about [REDACTED] and [NUM] with [LINK] from [NAME]"
	passed, reasons := d.Gate(masked, LevelStrict)
	if !passed || len(reasons) != 0 {
		t.Errorf("placeholder tokens must not trigger the gate: passed=%v reasons=%v", passed, reasons)
	}
}

func TestGate_ISODatesAllowed(t *testing.T) {
	d := NewDetector(DefaultRuleset())
	passed, reasons := d.Gate("hearing on 2025-11-20 at the district office", LevelStrict)
	if !passed {
		t.Errorf("ISO dates are allowed, got reasons %v", reasons)
	}
}

func containsReason(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}
