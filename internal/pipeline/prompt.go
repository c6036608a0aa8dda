package pipeline

import (
	"fmt"
	"strings"
	"text/template"
)

// DefaultTemplate frames the model as explaining a concept to a layperson,
// with the retrieved text inserted verbatim.
const DefaultTemplate = `You are explaining a Data Science concept to a layperson.
Here is the context:
{{.Context}}

Explain this in simple terms with an example if possible.
`

// PromptComposer renders retrieved context into the prompt sent to the chat model.
type PromptComposer struct {
	tmpl *template.Template
}

// NewPromptComposer parses text as a text/template with a {{.Context}} field.
func NewPromptComposer(text string) (*PromptComposer, error) {
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &PromptComposer{tmpl: tmpl}, nil
}

// DefaultComposer returns a composer for DefaultTemplate.
func DefaultComposer() *PromptComposer {
	return &PromptComposer{tmpl: template.Must(template.New("prompt").Parse(DefaultTemplate))}
}

// Compose renders the prompt for the given context text.
func (p *PromptComposer) Compose(contextText string) (string, error) {
	var b strings.Builder
	if err := p.tmpl.Execute(&b, struct{ Context string }{Context: contextText}); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}
