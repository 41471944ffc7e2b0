package phone

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"0671234567":   "+380671234567",
		" 0501234567 ": "+380501234567",
		"":             "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeFallsBackToPrefix(t *testing.T) {
	// Not a valid Ukrainian number, still gets the fixed prefix.
	if got := Normalize("0000000000"); got != "+380000000000" {
		t.Fatalf("Normalize fallback = %q", got)
	}
}
