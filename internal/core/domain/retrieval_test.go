package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcome_IsValid(t *testing.T) {
	tests := []struct {
		outcome Outcome
		valid   bool
	}{
		{OutcomeDirect, true},
		{OutcomeClarify, true},
		{OutcomeSummarize, true},
		{Outcome("guess"), false},
		{Outcome(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.outcome.IsValid())
		})
	}
}

func TestRetrievalResult_ContextLength(t *testing.T) {
	r := RetrievalResult{
		Matches: []Match{
			{Content: "hello"},
			{Content: " world"},
		},
	}
	assert.Equal(t, 11, r.ContextLength())

	empty := RetrievalResult{}
	assert.Equal(t, 0, empty.ContextLength())
}

func TestRetrievalResult_ContextLengthCountsRunes(t *testing.T) {
	// Multi-byte text must count characters, not bytes, so the routing
	// ceiling is not hit early.
	r := RetrievalResult{
		Matches: []Match{
			{Content: "héllo"},
			{Content: "日本語"},
		},
	}
	assert.Equal(t, 8, r.ContextLength())
}

func TestRetrievalResult_Sources(t *testing.T) {
	r := RetrievalResult{
		Matches: []Match{
			{Filename: "deploy.md", Score: 0.9},
			{Filename: "runbook.md", Score: 0.8},
			{Filename: "deploy.md", Score: 0.7},
			{Filename: "", Score: 0.6},
		},
	}

	sources := r.Sources()
	assert.Equal(t, []string{"deploy.md", "runbook.md"}, sources)
}
