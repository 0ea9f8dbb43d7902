package password

import (
	"errors"
	"strings"
	"testing"
)

func TestGenerateDefaults(t *testing.T) {
	pw, err := Generate(0, "")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if len(pw) != DefaultGeneratedLength {
		t.Fatalf("len = %d, want %d", len(pw), DefaultGeneratedLength)
	}
	if strings.ContainsAny(pw, specialChars) {
		t.Fatalf("default charsets must not include specials: %q", pw)
	}
}

func TestGenerateCoversEveryClass(t *testing.T) {
	for i := 0; i < 50; i++ {
		pw, err := Generate(4, "luds")
		if err != nil {
			t.Fatalf("Generate error: %v", err)
		}
		for _, set := range []string{lowerChars, upperChars, digitChars, specialChars} {
			if !strings.ContainsAny(pw, set) {
				t.Fatalf("%q is missing a character from %q", pw, set)
			}
		}
	}
}

func TestGenerateAvoidsLookAlikes(t *testing.T) {
	pw, err := Generate(200, "lud")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if strings.ContainsAny(pw, "0O1lI") {
		t.Fatalf("generated password contains look-alike glyphs: %q", pw)
	}
}

func TestGenerateUnknownCharset(t *testing.T) {
	if _, err := Generate(8, "lx"); !errors.Is(err, ErrCharset) {
		t.Fatalf("expected ErrCharset, got %v", err)
	}
}
