// Package prompt turns processing requests into upstream model prompts.
//
// Each supported operation maps to a fixed directive template; unknown
// operations fall back to a generic directive. The request content is always
// appended verbatim after the directive, separated by a blank line, so the
// builder never alters or truncates user-supplied text.
package prompt

import (
	"fmt"
	"strings"
	"text/template"
)

// Input carries the fields that shape a prompt. Operation selects the
// directive, Content is appended verbatim, and Tone/TargetLanguage refine
// the rewrite and translate directives respectively.
type Input struct {
	Operation      string
	Content        string
	Tone           string
	TargetLanguage string
}

// DefaultTargetLanguage is used by the translate directive when the request
// does not name one.
const DefaultTargetLanguage = "English"

// fallbackDirective is used for any operation not in the directive table.
const fallbackDirective = "Please process the following content:"

// directiveTemplates maps each supported operation to its directive text.
// Directives are full sentences instructing the model what to do with the
// content that follows; translate and rewrite interpolate request fields.
var directiveTemplates = map[string]string{
	"summarize": "Please provide a comprehensive summary of the following content. " +
		"Focus on the main points, key findings, and essential information. " +
		"Keep it concise but informative.",
	"analyze": "Please analyze the following content in detail. " +
		"Identify key themes, patterns, strengths, weaknesses, and implications. " +
		"Provide insights and critical evaluation.",
	"extract_key_points": "Extract and list the key points from the following content. " +
		"Present them as clear, actionable bullet points.",
	"fact_check": "Review the following content and verify the factual claims made. " +
		"Identify any statements that may be inaccurate, misleading, or require verification. " +
		"Provide sources or context where possible.",
	"sentiment_analysis": "Analyze the sentiment and tone of the following content. " +
		"Identify whether it's positive, negative, or neutral, and explain the emotional undertones.",
	"translate": "Translate the following content to {{.TargetLanguage}}. " +
		"Maintain the original meaning and tone.",
	"expand": "Expand on the following content by adding more detail, examples, and explanations. " +
		"Make it more comprehensive while maintaining accuracy.",
	"simplify": "Simplify the following content to make it easier to understand. " +
		"Use plain language and break down complex concepts.",
	"generate_questions": "Generate thoughtful questions based on the following content. " +
		"Create questions that test understanding and encourage deeper thinking.",
	"rewrite": "Rewrite the following content to improve clarity, style, and readability. " +
		"{{if .Tone}}Use a {{.Tone}} tone. {{end}}Maintain the original meaning.",
	"categorize": "Categorize and organize the following content into logical sections or themes. " +
		"Identify the main categories and explain the classification.",
	"validate": "Validate the following content for accuracy, completeness, and logical consistency. " +
		"Identify any gaps, errors, or areas that need improvement.",
	"outline": "Create a structured outline of the following content. " +
		"Organize it hierarchically with main topics and subtopics.",
}

// Builder renders prompts from pre-compiled directive templates.
type Builder struct {
	templates map[string]*template.Template
}

// NewBuilder compiles the directive table. Compilation failures are
// programming errors in the directive texts, so they surface immediately.
func NewBuilder() (*Builder, error) {
	templates := make(map[string]*template.Template, len(directiveTemplates))
	for name, text := range directiveTemplates {
		t, err := template.New(name).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse directive template %s: %w", name, err)
		}
		templates[name] = t
	}
	return &Builder{templates: templates}, nil
}

// Operations returns the names of all operations with a dedicated directive.
func (b *Builder) Operations() []string {
	ops := make([]string, 0, len(b.templates))
	for name := range b.templates {
		ops = append(ops, name)
	}
	return ops
}

// Build renders the prompt for the given input. The directive is chosen by
// exact, case-sensitive operation match; anything else gets the generic
// fallback. Building is deterministic and stateless, so the same input
// always yields the same prompt.
func (b *Builder) Build(in Input) (string, error) {
	directive := fallbackDirective
	if t, ok := b.templates[in.Operation]; ok {
		data := in
		if data.TargetLanguage == "" {
			data.TargetLanguage = DefaultTargetLanguage
		}
		var buf strings.Builder
		if err := t.Execute(&buf, data); err != nil {
			return "", fmt.Errorf("failed to execute directive template %s: %w", in.Operation, err)
		}
		directive = buf.String()
	}
	return directive + "\n\n" + in.Content, nil
}
