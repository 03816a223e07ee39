package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
	"github.com/kirillkom/tenant-rag/internal/core/ports"
)

const (
	DefaultRefusalAnswer       = "Sorry, I don't have that information."
	DefaultNoInformationAnswer = "I couldn't find relevant information to answer that question. Please try rephrasing or ask something else."
	DefaultApologyAnswer       = "I'm having trouble generating a response. Please try again."
)

// AnswerTexts are the fixed strings returned to end users.
type AnswerTexts struct {
	Refusal       string
	NoInformation string
	Apology       string
}

func DefaultAnswerTexts() AnswerTexts {
	return AnswerTexts{
		Refusal:       DefaultRefusalAnswer,
		NoInformation: DefaultNoInformationAnswer,
		Apology:       DefaultApologyAnswer,
	}
}

func (t AnswerTexts) normalize() AnswerTexts {
	def := DefaultAnswerTexts()
	if strings.TrimSpace(t.Refusal) == "" {
		t.Refusal = def.Refusal
	}
	if strings.TrimSpace(t.NoInformation) == "" {
		t.NoInformation = def.NoInformation
	}
	if strings.TrimSpace(t.Apology) == "" {
		t.Apology = def.Apology
	}
	return t
}

// AnswerSynthesizer makes exactly one model call per question and never returns an error.
type AnswerSynthesizer struct {
	generator ports.AnswerGenerator
	texts     AnswerTexts
}

func NewAnswerSynthesizer(generator ports.AnswerGenerator, texts AnswerTexts) *AnswerSynthesizer {
	return &AnswerSynthesizer{
		generator: generator,
		texts:     texts.normalize(),
	}
}

func (s *AnswerSynthesizer) Texts() AnswerTexts {
	return s.texts
}

func (s *AnswerSynthesizer) Synthesize(ctx context.Context, tenantName, question, contextText string) domain.Answer {
	prompt := s.BuildPrompt(tenantName, question, contextText)

	reply, err := s.generator.GenerateFromPrompt(ctx, prompt)
	if err != nil {
		slog.Warn("answer_generation_failed", "tenant_name", tenantName, "error", err.Error())
		return domain.Answer{Text: s.texts.Apology, Outcome: domain.OutcomeProviderFallback}
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		slog.Warn("answer_generation_empty", "tenant_name", tenantName)
		return domain.Answer{Text: s.texts.Apology, Outcome: domain.OutcomeProviderFallback}
	}

	if reduced, ok := reduceVerbatimEcho(reply, question, contextText); ok {
		slog.Info("answer_verbatim_echo_reduced", "tenant_name", tenantName)
		reply = reduced
	}
	return domain.Answer{Text: reply, Outcome: domain.OutcomeAnswered}
}

// BuildPrompt renders the grounded prompt sent to the model.
func (s *AnswerSynthesizer) BuildPrompt(tenantName, question, contextText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a helpful and concise customer support assistant for %q.\n", tenantName)
	b.WriteString("Answer the question below using ONLY the information in the provided context.\n")
	b.WriteString("Extract or paraphrase only the relevant sentence(s) that address the question.\n")
	b.WriteString("Do NOT copy or repeat the entire context.\n")
	fmt.Fprintf(&b, "If the answer is not found in the context, reply exactly: %q\n\n", s.texts.Refusal)
	b.WriteString("CONTEXT:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nQUESTION: ")
	b.WriteString(question)
	b.WriteString("\n\nANSWER:")
	return b.String()
}

// reduceVerbatimEcho detects a reply that reproduces a whole multi-sentence context passage
// and replaces it with the passage sentence that best matches the question.
func reduceVerbatimEcho(reply, question, contextText string) (string, bool) {
	normalizedReply := strings.ToLower(collapseSpace(reply))
	queryTokens := toTokenSet(question)

	for _, passage := range strings.Split(contextText, contextSeparator) {
		sentences := splitSentences(passage)
		if len(sentences) < 2 {
			continue
		}
		if !strings.Contains(normalizedReply, strings.ToLower(collapseSpace(passage))) {
			continue
		}

		best, bestScore := sentences[0], -1.0
		for _, sentence := range sentences {
			score := tokenOverlap(queryTokens, toTokenSet(sentence))
			if score > bestScore {
				best, bestScore = sentence, score
			}
		}
		return best, true
	}
	return "", false
}
