package textutil

import "testing"

func TestSanitizeToken(t *testing.T) {
	cases := map[string]string{
		"":              "unknown",
		"  ":            "unknown",
		"t1_swi_aseg":   "t1_swi_aseg",
		"No FLAIR":      "no_flair",
		"../etc/passwd": "etc_passwd",
		"Left-Caudate":  "left-caudate",
	}
	for in, want := range cases {
		if got := SanitizeToken(in); got != want {
			t.Fatalf("SanitizeToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsToken(t *testing.T) {
	if !IsToken("core") {
		t.Fatal("expected core to be a token")
	}
	if IsToken("Core") || IsToken("a/b") || IsToken("") {
		t.Fatal("expected non-token values to be rejected")
	}
}

func TestFoldKey(t *testing.T) {
	if FoldKey("Left-Caudate") != FoldKey("left-caudate ") {
		t.Fatal("expected case-insensitive keys to match")
	}
	if FoldKey("SN_L") == FoldKey("SN_R") {
		t.Fatal("distinct names must not fold together")
	}
}
