package parsers

import (
	"strings"
	"testing"
)

func TestParseQAPairs(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{
			name:    "bare json",
			content: `[{"question": "What time do you close?", "answer": "We are open until 5 pm."}]`,
			want:    1,
		},
		{
			name: "json fence",
			content: "Here you go:\n```json\n[" +
				`{"question": "Q1", "answer": "A1"}, {"question": "Q2", "answer": "A2"}` +
				"]\n```\nDone.",
			want: 2,
		},
		{
			name:    "plain fence",
			content: "```\n[{\"question\": \"Q1\", \"answer\": \"A1\"}]\n```",
			want:    1,
		},
		{
			name:    "skips empty fields",
			content: `[{"question": "Q1", "answer": ""}, {"question": " ", "answer": "A"}, {"question": "Q3", "answer": "A3"}]`,
			want:    1,
		},
		{
			name:    "empty list",
			content: `[]`,
			want:    0,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pairs, err := ParseQAPairs(tc.content)
			if err != nil {
				t.Fatalf("ParseQAPairs: %v", err)
			}
			if len(pairs) != tc.want {
				t.Fatalf("pairs = %d, want %d (%+v)", len(pairs), tc.want, pairs)
			}
		})
	}
}

func TestParseQAPairsKeepsOrderAndTrims(t *testing.T) {
	pairs, err := ParseQAPairs(`[{"question": " First? ", "answer": " One. "}, {"question": "Second?", "answer": "Two."}]`)
	if err != nil {
		t.Fatalf("ParseQAPairs: %v", err)
	}
	if pairs[0].Question != "First?" || pairs[0].Answer != "One." {
		t.Fatalf("pair 0 = %+v", pairs[0])
	}
	if pairs[1].Question != "Second?" {
		t.Fatalf("pair 1 = %+v", pairs[1])
	}
}

func TestParseQAPairsInvalid(t *testing.T) {
	for _, content := range []string{"", "not json", `{"question": "Q"}`, "```json\n[{]\n```"} {
		if _, err := ParseQAPairs(content); err == nil {
			t.Fatalf("ParseQAPairs(%q) should fail", content)
		}
	}
	if _, err := ParseQAPairs(strings.Repeat("x", maxContentLen+1)); err == nil {
		t.Fatal("oversized content should fail")
	}
}
