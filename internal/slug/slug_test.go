package slug

import (
	"strings"
	"testing"
)

// TestGenerate exercises the slug generator with category names, punctuation,
// accented characters, whitespace and boundary conditions.
func TestGenerate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		// --- Normal names ---
		{name: "single word", input: "Vehicles", want: "vehicles"},
		{name: "two words", input: "Real Estate", want: "real-estate"},
		{name: "already lowercase", input: "boats", want: "boats"},
		{name: "with number", input: "Phones 2026", want: "phones-2026"},

		// --- Separators collapse to one hyphen ---
		{name: "ampersand", input: "Cars & Trucks", want: "cars-trucks"},
		{name: "slash", input: "Audio/Video", want: "audio-video"},
		{name: "apostrophe", input: "Kids' Toys", want: "kids-toys"},
		{name: "parentheses and dots", input: "Version (2.0) [Beta]", want: "version-2-0-beta"},
		{name: "comma and colon", input: "Home: Garden, Tools", want: "home-garden-tools"},
		{name: "tabs and newlines", input: "hello\tworld\nagain", want: "hello-world-again"},
		{name: "multiple spaces", input: "hello    world", want: "hello-world"},
		{name: "existing hyphens", input: "well-known fact", want: "well-known-fact"},
		{name: "hyphen runs", input: "hello---world", want: "hello-world"},
		{name: "underscore", input: "snake_case_name", want: "snake-case-name"},

		// --- Accents are folded ---
		{name: "french accents", input: "Électroménager", want: "electromenager"},
		{name: "spanish accents", input: "Señales y Vehículos", want: "senales-y-vehiculos"},
		{name: "german umlauts", input: "Über die Brücke", want: "uber-die-brucke"},

		// --- Compatibility forms are folded ---
		{name: "ligature", input: "ﬁsh & ﬂowers", want: "fish-flowers"},
		{name: "fullwidth latin", input: "Ｃａｒｓ", want: "cars"},
		{name: "superscript digit", input: "Area m²", want: "area-m2"},

		// --- Unicode without a latin base is dropped ---
		{name: "emoji", input: "Pets 🐶", want: "pets"},
		{name: "han characters", input: "汽车 Cars", want: "cars"},

		// --- Trimming ---
		{name: "leading and trailing spaces", input: "  hello world  ", want: "hello-world"},
		{name: "leading and trailing punctuation", input: "--!hello world?--", want: "hello-world"},

		// --- Edge cases ---
		{name: "empty string", input: "", want: ""},
		{name: "only spaces", input: "     ", want: ""},
		{name: "only special characters", input: "!@#$%^&*()", want: ""},
		{name: "single character", input: "A", want: "a"},
		{name: "date-like string", input: "2026-02-25", want: "2026-02-25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(tt.input)
			if got != tt.want {
				t.Errorf("Generate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestGenerate_Idempotent verifies that generating a slug from an already
// valid slug produces the same result.
func TestGenerate_Idempotent(t *testing.T) {
	for _, s := range []string{"vehicles", "real-estate", "a", "123", "phones-2026"} {
		t.Run(s, func(t *testing.T) {
			if got := Generate(s); got != s {
				t.Errorf("Generate(%q) = %q, want idempotent result %q", s, got, s)
			}
			if !Valid(Generate(s)) {
				t.Errorf("Valid(Generate(%q)) = false", s)
			}
		})
	}
}

func TestGenerate_TruncatesToMaxLen(t *testing.T) {
	got := Generate(strings.Repeat("ab ", 100))
	if len(got) > MaxLen {
		t.Fatalf("len = %d, want <= %d", len(got), MaxLen)
	}
	if strings.HasSuffix(got, "-") {
		t.Errorf("truncated slug %q ends with a hyphen", got)
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"vehicles", true},
		{"real-estate", true},
		{"phones-2026", true},
		{"", false},
		{"Vehicles", false},
		{"-vehicles", false},
		{"vehicles-", false},
		{"real--estate", false},
		{"real estate", false},
		{"café", false},
		{strings.Repeat("a", MaxLen+1), false},
	}

	for _, tt := range tests {
		if got := Valid(tt.input); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
