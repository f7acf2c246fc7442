package handler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIssueIDs(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
		ok   bool
	}{
		{"array", `["a","b"]`, []string{"a", "b"}, true},
		{"comma string", `"a, b ,,c"`, []string{"a", "b", "c"}, true},
		{"empty array", `[]`, []string{}, true},
		{"blank string", `"  "`, nil, true},
		{"number", `42`, nil, false},
		{"object", `{"id":"a"}`, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseIssueIDs(json.RawMessage(tc.raw))
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
