package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestToolName(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		max  int
		want string
	}{
		{"plain", "Notion", 0, "Notion"},
		{"whitespace collapsed", "  Visual   Studio\tCode ", 0, "Visual Studio Code"},
		{"control chars stripped", "Fig\x00ma\x1b", 0, "Figma"},
		{"newlines collapsed", "OBS\nStudio", 0, "OBS Studio"},
		{"truncated", "abcdefghij", 5, "abcde"},
		{"truncation trims trailing space", "abcd efgh", 5, "abcd"},
		{"truncation backs off to rune boundary", strings.Repeat("a", 99) + "é", 100, strings.Repeat("a", 99)},
		{"truncation never splits a wide rune", "日本語", 4, "日"},
		{"empty", "   ", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToolName(tt.raw, tt.max)
			if got != tt.want {
				t.Errorf("ToolName(%q, %d) = %q, want %q", tt.raw, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("ToolName(%q, %d) = %q is not valid UTF-8", tt.raw, tt.max, got)
			}
		})
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"simple", "Notion", "notion"},
		{"spaces to dashes", "Visual Studio Code", "visual-studio-code"},
		{"special chars stripped", "C++ / CLion!", "c-clion"},
		{"repeated dashes collapsed", "a -- b", "a-b"},
		{"leading trailing trimmed", " -notion- ", "notion"},
		{"only disallowed", "!!!", ""},
		{"unicode stripped", "日本語", ""},
		{"already canonical", "obs-studio", "obs-studio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slug(tt.raw); got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

// Valid slugs must survive Slug unchanged.
func TestSlugRoundTrip(t *testing.T) {
	for _, s := range []string{"notion", "obs-studio", "k9s", "a1-b2-c3"} {
		if got := Slug(s); got != s {
			t.Errorf("Slug(%q) = %q, want unchanged", s, got)
		}
	}
}

func TestValidSlug(t *testing.T) {
	tests := []struct {
		slug string
		want bool
	}{
		{"notion", true},
		{"obs-studio", true},
		{"a1", true},
		{"", false},
		{"a", false},
		{"-notion", false},
		{"Notion", false},
		{"no tion", false},
	}

	for _, tt := range tests {
		if got := ValidSlug(tt.slug); got != tt.want {
			t.Errorf("ValidSlug(%q) = %v, want %v", tt.slug, got, tt.want)
		}
	}
}
