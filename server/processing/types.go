package processing

// Request is the body accepted by the process endpoint. Operation does not
// need to match a known directive; unknown operations take the generic
// fallback prompt.
type Request struct {
	Content        string `json:"content" validate:"required,min=1"`
	Operation      string `json:"operation" validate:"required,min=1"`
	Tone           string `json:"tone,omitempty"`
	TargetLanguage string `json:"targetLanguage,omitempty"`
}

// Result is the body returned on success. Degenerate upstream answers are
// reported here as diagnostic strings, not as errors.
type Result struct {
	Result string `json:"result"`
}
