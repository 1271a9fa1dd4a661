package validation

import (
	"strings"
	"testing"

	"github.com/nlowel/scribe/server/processing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequest(t *testing.T) {
	v := NewValidator(nil, 0)

	tests := []struct {
		name    string
		req     *processing.Request
		wantErr string
	}{
		{
			name: "valid request",
			req:  &processing.Request{Content: "some text", Operation: "summarize"},
		},
		{
			name: "unknown operation is still valid",
			req:  &processing.Request{Content: "some text", Operation: "conjure"},
		},
		{
			name:    "missing content",
			req:     &processing.Request{Operation: "summarize"},
			wantErr: "content is required",
		},
		{
			name:    "missing operation",
			req:     &processing.Request{Content: "some text"},
			wantErr: "operation is required",
		},
		{
			name:    "nil request",
			req:     nil,
			wantErr: "request cannot be nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateRequest(tt.req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateRequestTokenBudget(t *testing.T) {
	counter, err := NewTokenCounter("cl100k_base")
	require.NoError(t, err)

	v := NewValidator(counter, 10)

	t.Run("within budget", func(t *testing.T) {
		err := v.ValidateRequest(&processing.Request{Content: "short", Operation: "summarize"})
		assert.NoError(t, err)
	})

	t.Run("over budget", func(t *testing.T) {
		long := strings.Repeat("token budget exceeded ", 50)
		err := v.ValidateRequest(&processing.Request{Content: long, Operation: "summarize"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceed maximum")
	})

	t.Run("zero budget disables check", func(t *testing.T) {
		unlimited := NewValidator(counter, 0)
		long := strings.Repeat("token budget exceeded ", 50)
		err := unlimited.ValidateRequest(&processing.Request{Content: long, Operation: "summarize"})
		assert.NoError(t, err)
	})
}

func TestCountTokens(t *testing.T) {
	counter, err := NewTokenCounter("cl100k_base")
	require.NoError(t, err)

	assert.Greater(t, counter.CountTokens("hello world"), 0)
	assert.Equal(t, 0, counter.CountTokens(""))
}

func TestNewTokenCounterUnknownEncoding(t *testing.T) {
	_, err := NewTokenCounter("no-such-encoding")
	assert.Error(t, err)
}
