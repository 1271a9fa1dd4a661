package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDirectives(t *testing.T) {
	b, err := NewBuilder()
	require.NoError(t, err)

	tests := []struct {
		name   string
		input  Input
		prefix string
	}{
		{
			name:   "summarize",
			input:  Input{Operation: "summarize", Content: "some text"},
			prefix: "Please provide a comprehensive summary",
		},
		{
			name:   "analyze",
			input:  Input{Operation: "analyze", Content: "some text"},
			prefix: "Please analyze the following content in detail.",
		},
		{
			name:   "extract key points",
			input:  Input{Operation: "extract_key_points", Content: "some text"},
			prefix: "Extract and list the key points",
		},
		{
			name:   "fact check",
			input:  Input{Operation: "fact_check", Content: "some text"},
			prefix: "Review the following content and verify the factual claims",
		},
		{
			name:   "sentiment analysis",
			input:  Input{Operation: "sentiment_analysis", Content: "some text"},
			prefix: "Analyze the sentiment and tone",
		},
		{
			name:   "expand",
			input:  Input{Operation: "expand", Content: "some text"},
			prefix: "Expand on the following content",
		},
		{
			name:   "simplify",
			input:  Input{Operation: "simplify", Content: "some text"},
			prefix: "Simplify the following content",
		},
		{
			name:   "generate questions",
			input:  Input{Operation: "generate_questions", Content: "some text"},
			prefix: "Generate thoughtful questions",
		},
		{
			name:   "categorize",
			input:  Input{Operation: "categorize", Content: "some text"},
			prefix: "Categorize and organize the following content",
		},
		{
			name:   "validate",
			input:  Input{Operation: "validate", Content: "some text"},
			prefix: "Validate the following content for accuracy",
		},
		{
			name:   "outline",
			input:  Input{Operation: "outline", Content: "some text"},
			prefix: "Create a structured outline",
		},
		{
			name:   "unknown operation falls back",
			input:  Input{Operation: "conjure", Content: "some text"},
			prefix: "Please process the following content:",
		},
		{
			name:   "empty operation falls back",
			input:  Input{Operation: "", Content: "some text"},
			prefix: "Please process the following content:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Build(tt.input)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(got, tt.prefix),
				"prompt %q should start with %q", got, tt.prefix)
			assert.True(t, strings.HasSuffix(got, "\n\n"+tt.input.Content),
				"content must be appended verbatim after a blank line")
		})
	}
}

func TestBuildTranslate(t *testing.T) {
	b, err := NewBuilder()
	require.NoError(t, err)

	t.Run("uses target language", func(t *testing.T) {
		got, err := b.Build(Input{Operation: "translate", Content: "hola", TargetLanguage: "French"})
		require.NoError(t, err)
		assert.Contains(t, got, "Translate the following content to French.")
	})

	t.Run("defaults to English", func(t *testing.T) {
		got, err := b.Build(Input{Operation: "translate", Content: "hola"})
		require.NoError(t, err)
		assert.Contains(t, got, "Translate the following content to English.")
	})
}

func TestBuildRewrite(t *testing.T) {
	b, err := NewBuilder()
	require.NoError(t, err)

	t.Run("with tone", func(t *testing.T) {
		got, err := b.Build(Input{Operation: "rewrite", Content: "text", Tone: "formal"})
		require.NoError(t, err)
		assert.Contains(t, got, "Use a formal tone. Maintain the original meaning.")
	})

	t.Run("without tone", func(t *testing.T) {
		got, err := b.Build(Input{Operation: "rewrite", Content: "text"})
		require.NoError(t, err)
		assert.NotContains(t, got, "Use a")
		assert.Contains(t, got, "readability. Maintain the original meaning.")
	})
}

func TestBuildContentVerbatim(t *testing.T) {
	b, err := NewBuilder()
	require.NoError(t, err)

	// Content with template syntax, quotes and unicode must pass through
	// untouched
	content := "{{.Sneaky}} \"quoted\" éè \n\nmultiple\nlines"
	got, err := b.Build(Input{Operation: "summarize", Content: content})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(got, "\n\n"+content))
}

func TestBuildDeterministic(t *testing.T) {
	b, err := NewBuilder()
	require.NoError(t, err)

	in := Input{Operation: "analyze", Content: "same input"}
	first, err := b.Build(in)
	require.NoError(t, err)
	second, err := b.Build(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestOperations(t *testing.T) {
	b, err := NewBuilder()
	require.NoError(t, err)
	assert.Len(t, b.Operations(), 13)
	assert.Contains(t, b.Operations(), "summarize")
	assert.Contains(t, b.Operations(), "outline")
}
