// Package pipeline runs the retrieve-then-explain flow: nearest knowledge
// document, fixed prompt, single chat completion.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/rainfall-insights/internal/domain"
)

// ErrEmptyTerm is returned when Explain is called with a blank term.
var ErrEmptyTerm = errors.New("term is required")

// Retriever finds the knowledge documents nearest to a query.
type Retriever interface {
	Nearest(ctx context.Context, query string, k int) ([]domain.Match, error)
	Terms() []string
}

// Explainer composes a prompt from the nearest document and asks the chat
// model to explain it. It holds no per-request state.
type Explainer struct {
	retriever Retriever
	composer  *PromptComposer
	completer domain.Completer
	logger    *slog.Logger
}

// New creates an Explainer. A nil composer selects DefaultComposer.
func New(r Retriever, composer *PromptComposer, c domain.Completer, logger *slog.Logger) *Explainer {
	if composer == nil {
		composer = DefaultComposer()
	}
	return &Explainer{
		retriever: r,
		composer:  composer,
		completer: c,
		logger:    logger,
	}
}

// Terms returns the selectable corpus terms.
func (e *Explainer) Terms() []string {
	return e.retriever.Terms()
}

// Explain retrieves the single nearest document for term and returns the
// model's explanation of it verbatim. There is no retry or fallback.
func (e *Explainer) Explain(ctx context.Context, term string) (domain.ExplanationResult, error) {
	if strings.TrimSpace(term) == "" {
		return domain.ExplanationResult{}, ErrEmptyTerm
	}
	start := time.Now()

	matches, err := e.retriever.Nearest(ctx, term, 1)
	if err != nil {
		return domain.ExplanationResult{}, fmt.Errorf("retrieve %q: %w", term, err)
	}
	if len(matches) == 0 {
		return domain.ExplanationResult{}, &domain.CorpusLookupMissError{Term: term}
	}
	doc := matches[0].Document

	prompt, err := e.composer.Compose(doc.Text)
	if err != nil {
		return domain.ExplanationResult{}, err
	}

	explanation, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		e.logger.Warn("completion failed", "term", term, "error", err)
		return domain.ExplanationResult{}, err
	}

	e.logger.Debug("explanation generated",
		"term", term,
		"matched_term", doc.Term,
		"score", matches[0].Score,
		"prompt_chars", len(prompt),
		"duration", time.Since(start),
	)

	return domain.ExplanationResult{
		Term:        term,
		MatchedTerm: doc.Term,
		Context:     doc.Text,
		Explanation: explanation,
		Model:       e.completer.Model(),
		GeneratedAt: domain.Now(),
	}, nil
}
