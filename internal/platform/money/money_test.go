package money

import "testing"

func TestFormatRendersMinorUnits(t *testing.T) {
	cases := []struct {
		minor int64
		code  string
		want  string
	}{
		{450, "USD", "$ 4.50"},
		{0, "USD", "$ 0.00"},
		{12345, "USD", "$ 123.45"},
		{-550, "USD", "-$ 5.50"},
		{450, "EUR", "€ 4.50"},
	}
	for _, tc := range cases {
		if got := Format(tc.minor, tc.code); got != tc.want {
			t.Fatalf("Format(%d, %q) = %q, want %q", tc.minor, tc.code, got, tc.want)
		}
	}
}

func TestFormatFallsBackToUSDForUnknownCodes(t *testing.T) {
	if got := Format(450, "???"); got != "$ 4.50" {
		t.Fatalf("unexpected fallback rendering %q", got)
	}
}
