package entities

import "testing"

func TestParseActionVocabulary(t *testing.T) {
	for _, id := range Actions() {
		if got := ParseAction(string(id)); got != id {
			t.Errorf("ParseAction(%q) = %q, want %q", id, got, id)
		}
	}
}

func TestParseActionFallsBackToDefault(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "unknown word", raw: "weather"},
		{name: "near miss casing", raw: "Text"},
		{name: "whitespace", raw: " text"},
		{name: "sentence", raw: "the user wants text recognition"},
		{name: "legacy id", raw: "barcode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseAction(tt.raw); got != DefaultAction {
				t.Errorf("ParseAction(%q) = %q, want default %q", tt.raw, got, DefaultAction)
			}
		})
	}
}

func TestActionIsValid(t *testing.T) {
	if !ActionMusic.IsValid() {
		t.Error("expected music to be a vocabulary member")
	}
	if ActionID("playlist").IsValid() {
		t.Error("expected playlist to be outside the vocabulary")
	}
}
