package gemini

import (
	"encoding/json"
	"fmt"
)

// Envelope mirrors the generateContent response shape. Only the fields the
// extraction path needs are declared; everything else in the body is
// ignored.
type Envelope struct {
	Candidates []Candidate    `json:"candidates"`
	Error      *UpstreamError `json:"error"`
}

// Candidate is one generated answer.
type Candidate struct {
	Content Content `json:"content"`
}

// Content holds the ordered parts of a candidate.
type Content struct {
	Parts []Part `json:"parts"`
}

// Part is a single text fragment.
type Part struct {
	Text string `json:"text"`
}

// UpstreamError is the error object some envelopes carry instead of
// candidates.
type UpstreamError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// OutcomeKind classifies what an envelope contained.
type OutcomeKind int

const (
	// OutcomeText means the first candidate carried non-empty text.
	OutcomeText OutcomeKind = iota
	// OutcomeUpstreamError means the envelope carried an error object.
	OutcomeUpstreamError
	// OutcomeNoCandidates means the envelope had no usable candidates,
	// typically because safety filtering removed them.
	OutcomeNoCandidates
	// OutcomeEmptyText means a candidate existed but its text was missing
	// or empty.
	OutcomeEmptyText
)

// Outcome is the result of unpacking an envelope. Exactly one interpretation
// applies; Result renders it as the string handed back to the caller.
type Outcome struct {
	Kind    OutcomeKind
	Text    string // populated for OutcomeText
	Message string // populated for OutcomeUpstreamError
}

// Result renders the outcome as a response string. Degenerate envelopes
// produce fixed diagnostic strings rather than errors, so a filtered or
// empty answer still flows back through the normal success path.
func (o Outcome) Result() string {
	switch o.Kind {
	case OutcomeUpstreamError:
		return "Error: " + o.Message
	case OutcomeNoCandidates:
		return "No response generated. Content may have been filtered."
	case OutcomeEmptyText:
		return "Empty response from AI model."
	default:
		return o.Text
	}
}

// Extract unpacks a raw response body. It checks, in order: a parsable
// envelope, an error object, the presence of candidates, and non-empty text
// in the first part of the first candidate. Extra candidates and parts are
// ignored. Only an unparsable body is an error.
func Extract(raw []byte) (Outcome, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if env.Error != nil {
		return Outcome{Kind: OutcomeUpstreamError, Message: env.Error.Message}, nil
	}

	if len(env.Candidates) == 0 {
		return Outcome{Kind: OutcomeNoCandidates}, nil
	}

	parts := env.Candidates[0].Content.Parts
	if len(parts) == 0 || parts[0].Text == "" {
		return Outcome{Kind: OutcomeEmptyText}, nil
	}

	return Outcome{Kind: OutcomeText, Text: parts[0].Text}, nil
}
