package domain

import "time"

// KnowledgeDocument is one glossary entry of the knowledge corpus.
type KnowledgeDocument struct {
	Term string `json:"term"`
	Text string `json:"text"`
}

// Match is a retrieved document with its similarity score (higher is closer).
type Match struct {
	Document KnowledgeDocument `json:"document"`
	Score    float64           `json:"score"`
}

// ExplanationResult is the response to an explanation request.
type ExplanationResult struct {
	Term        string    `json:"term"`
	MatchedTerm string    `json:"matched_term"`
	Context     string    `json:"context"`
	Explanation string    `json:"explanation"`
	Model       string    `json:"model,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}
