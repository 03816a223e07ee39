package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
)

func TestSynthesizeKeepsParaphrasedAnswer(t *testing.T) {
	gen := &generatorFake{reply: "You can return unused items within 30 days."}
	s := NewAnswerSynthesizer(gen, AnswerTexts{})

	answer := s.Synthesize(context.Background(), "Acme", "What is the return policy?", acmeReturnPolicy)
	if answer.Text != gen.reply || answer.Outcome != domain.OutcomeAnswered {
		t.Fatalf("unexpected answer %#v", answer)
	}
}

func TestSynthesizeReducesWholePassageEcho(t *testing.T) {
	gen := &generatorFake{reply: "Sure! " + acmeShipping + " Let me know if you need more."}
	s := NewAnswerSynthesizer(gen, AnswerTexts{})

	answer := s.Synthesize(context.Background(), "Acme", "How long does delivery take?", acmeReturnPolicy+"\n\n"+acmeShipping)
	if answer.Text != "Standard delivery takes 3-5 business days." {
		t.Fatalf("unexpected reduced answer %q", answer.Text)
	}
}

func TestSynthesizeRefusalPassesThrough(t *testing.T) {
	gen := &generatorFake{reply: DefaultRefusalAnswer}
	s := NewAnswerSynthesizer(gen, AnswerTexts{})

	answer := s.Synthesize(context.Background(), "Acme", "Do you sell cars?", acmeShipping)
	if answer.Text != DefaultRefusalAnswer || answer.Outcome != domain.OutcomeAnswered {
		t.Fatalf("unexpected answer %#v", answer)
	}
}

func TestSynthesizeUsesConfiguredTexts(t *testing.T) {
	gen := &generatorFake{reply: ""}
	s := NewAnswerSynthesizer(gen, AnswerTexts{Apology: "Try later.", Refusal: "No idea."})

	answer := s.Synthesize(context.Background(), "Acme", "q", "context")
	if answer.Text != "Try later." {
		t.Fatalf("unexpected apology %q", answer.Text)
	}
	if s.Texts().NoInformation != DefaultNoInformationAnswer {
		t.Fatalf("blank texts must fall back to defaults")
	}
	if prompt := s.BuildPrompt("Acme", "q", "context"); !containsAll(prompt, `"No idea."`, "CONTEXT:\ncontext", "QUESTION: q") {
		t.Fatalf("unexpected prompt %q", prompt)
	}
}

func containsAll(s string, parts ...string) bool {
	for _, part := range parts {
		if !strings.Contains(s, part) {
			return false
		}
	}
	return true
}
