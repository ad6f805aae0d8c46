package sanitize

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"crlf", "rad ett\r\nrad två", "rad ett\nrad två"},
		{"bare cr", "rad ett\rrad två", "rad ett\nrad två"},
		{"blank line runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"trailing spaces", "a   \nb\t\n", "a\nb"},
		{"space runs", "ett  ord   till", "ett ord till"},
		{"spaced comma", "hej , du", "hej, du"},
		{"spaced full stop", "slut . Nästa", "slut. Nästa"},
		{"filler at line start", "eh, vi börjar nu", "vi börjar nu"},
		{"filler case insensitive", "Ehm, sedan då", "sedan då"},
		{"trim", "  kärnan  ", "kärnan"},
		{"empty", "", ""},
		{"no-op", "ren text utan problem", "ren text utan problem"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	in := "eh, rad ett  \r\n\r\n\r\n\r\nrad , två . Klart"
	once := Normalize(in)
	twice := Normalize(once)
	if once != twice {
		t.Errorf("not idempotent: %q vs %q", once, twice)
	}
}
