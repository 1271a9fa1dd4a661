// Package validation checks incoming process requests before they reach the
// pipeline: structural validation via struct tags and an optional content
// token budget.
package validation

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/nlowel/scribe/server/processing"
	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer defines the interface for token counting
type Tokenizer interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
	CountTokens(text string) int
}

// tiktokenWrapper wraps tiktoken to implement our Tokenizer interface
type tiktokenWrapper struct {
	*tiktoken.Tiktoken
}

func (t *tiktokenWrapper) CountTokens(text string) int {
	return len(t.Encode(text, nil, nil))
}

// TokenCounter estimates how many tokens a piece of content costs upstream.
// The estimate uses a tiktoken encoding, which approximates rather than
// matches the upstream tokenizer; the budget should carry headroom.
type TokenCounter struct {
	encoding Tokenizer
}

// NewTokenCounter creates a token counter for the named tiktoken encoding,
// e.g. cl100k_base.
func NewTokenCounter(encodingName string) (*TokenCounter, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding %s: %v", encodingName, err)
	}
	return &TokenCounter{encoding: &tiktokenWrapper{encoding}}, nil
}

// CountTokens counts the tokens in text.
func (tc *TokenCounter) CountTokens(text string) int {
	return tc.encoding.CountTokens(text)
}

// Validator checks process requests. A nil TokenCounter or a zero budget
// disables the token check.
type Validator struct {
	validate  *validator.Validate
	counter   *TokenCounter
	maxTokens int
}

// NewValidator creates a validator with the given content token budget.
// maxTokens <= 0 disables the budget check.
func NewValidator(counter *TokenCounter, maxTokens int) *Validator {
	return &Validator{
		validate:  validator.New(),
		counter:   counter,
		maxTokens: maxTokens,
	}
}

// ValidateRequest checks the request's struct tags and, when a budget is
// configured, its content token count. Returns a descriptive error on the
// first failed check.
func (v *Validator) ValidateRequest(req *processing.Request) error {
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}

	if err := v.validate.Struct(req); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				switch fe.Field() {
				case "Content":
					return fmt.Errorf("content is required")
				case "Operation":
					return fmt.Errorf("operation is required")
				}
			}
		}
		return fmt.Errorf("invalid request: %v", err)
	}

	if v.counter != nil && v.maxTokens > 0 {
		if n := v.counter.CountTokens(req.Content); n > v.maxTokens {
			return fmt.Errorf("content tokens (%d) exceed maximum (%d)", n, v.maxTokens)
		}
	}

	return nil
}
