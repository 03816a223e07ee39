package domain

// ScoredChunk is a ranked match returned by a tenant collection query.
type ScoredChunk struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// QueryContext carries one ask request through retrieval and synthesis. It is never persisted.
type QueryContext struct {
	Question   string        `json:"question"`
	TenantID   string        `json:"tenant_id"`
	Candidates []ScoredChunk `json:"candidates"`
	Context    string        `json:"context"`
	Prompt     string        `json:"prompt,omitempty"`
	Answer     string        `json:"answer,omitempty"`
}

type AnswerOutcome string

const (
	OutcomeAnswered         AnswerOutcome = "answered"
	OutcomeNoInformation    AnswerOutcome = "no_information"
	OutcomeProviderFallback AnswerOutcome = "provider_fallback"
)

type Answer struct {
	Text    string        `json:"answer"`
	Outcome AnswerOutcome `json:"outcome"`
	Sources []ScoredChunk `json:"sources,omitempty"`
}
