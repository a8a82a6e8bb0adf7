package backend

import "testing"

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain json", `{"cards":[]}`, `{"cards":[]}`},
		{"json fence", "```json\n{\"cards\":[]}\n```", `{"cards":[]}`},
		{"bare fence", "```\n{\"cards\":[]}\n```", `{"cards":[]}`},
		{"leading whitespace", "  \n```json\n{}\n```  ", `{}`},
		{"no closing fence", "```json\n{}", `{}`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanJSONBlock(tt.in); got != tt.want {
				t.Errorf("CleanJSONBlock(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestJoinCandidates(t *testing.T) {
	got := JoinCandidates([]string{`{"a":1}`, `{"b":2}`})
	want := "Set 1:\n{\"a\":1}\n\nSet 2:\n{\"b\":2}\n\n"
	if got != want {
		t.Errorf("JoinCandidates() = %q, want %q", got, want)
	}

	if JoinCandidates(nil) != "" {
		t.Error("JoinCandidates(nil) should be empty")
	}
}

func TestCardCount(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{"three cards", `{"cards":[{},{},{}]}`, 3},
		{"empty deck", `{"cards":[]}`, 0},
		{"missing key", `{"deck":[]}`, 0},
		{"invalid json", `nope`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CardCount(tt.payload); got != tt.want {
				t.Errorf("CardCount(%q) = %d, want %d", tt.payload, got, tt.want)
			}
		})
	}
}
