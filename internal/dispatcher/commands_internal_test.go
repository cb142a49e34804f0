package dispatcher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatCommandError_CategoryHeaders(t *testing.T) {
	t.Parallel()

	err := errors.New("backend exploded")

	tests := []struct {
		category string
		header   string
	}{
		{CategoryAI, "🤖 AI Processing Error"},
		{CategoryContent, "📝 Content Processing Error"},
		{CategoryAnalysis, "🔬 Analysis Error"},
		{CategorySearch, "🔍 Search Error"},
		{CategoryRoleplay, "🎭 Roleplay Error"},
		{CategoryClear, "🧹 Clear Context Error"},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			t.Parallel()
			got := formatCommandError(tt.category, err)
			assert.Contains(t, got, tt.header)
			assert.Contains(t, got, "backend exploded")
		})
	}

	assert.Contains(t, formatCommandError("bogus", err), "❌ Unknown Error")
}

func TestUsageHint_NamesCommandWithPrefix(t *testing.T) {
	t.Parallel()

	cmd := &commandSpec{name: "ask", usage: "ask <question> (or reply to a message with a question)"}
	hint := usageHint(".", cmd)

	assert.Contains(t, hint, "Usage")
	assert.Contains(t, hint, ".ask")
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       string
		max      int
		expected string
	}{
		{name: "short passes through", in: "hello", max: 10, expected: "hello"},
		{name: "exact length passes through", in: "hello", max: 5, expected: "hello"},
		{name: "cut with ellipsis", in: "hello world", max: 6, expected: "hello…"},
		{name: "multibyte safe", in: "héllo wörld", max: 6, expected: "héllo…"},
		{name: "tiny limit", in: "hello", max: 1, expected: "…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, truncate(tt.in, tt.max))
		})
	}
}
