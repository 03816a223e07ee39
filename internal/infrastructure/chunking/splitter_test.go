package chunking

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNewSplitterNormalizesOptions(t *testing.T) {
	s := NewSplitter(0, -5)
	if s.ChunkSize != DefaultChunkSize || s.Overlap != 0 {
		t.Fatalf("unexpected defaults: %+v", s)
	}
	s = NewSplitter(100, 150)
	if s.Overlap >= s.ChunkSize {
		t.Fatalf("overlap must be reduced below chunk size, got %+v", s)
	}
}

func TestSplitShortTextYieldsSingleChunk(t *testing.T) {
	s := NewSplitter(1000, 200)
	text := "Our return policy allows returns within 30 days. Shipping is free over $50."
	chunks := s.Split(text)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %q", len(chunks), chunks)
	}
	if chunks[0] != text {
		t.Fatalf("expected chunk to equal input, got %q", chunks[0])
	}
}

func TestSplitWhitespaceYieldsNoChunks(t *testing.T) {
	s := NewSplitter(100, 20)
	for _, text := range []string{"", "   ", "\n\n\t \r\n"} {
		if chunks := s.Split(text); len(chunks) != 0 {
			t.Fatalf("expected no chunks for %q, got %q", text, chunks)
		}
	}
}

func TestSplitRespectsSizeAndNeverEmitsBlankChunks(t *testing.T) {
	s := NewSplitter(120, 40)
	chunks := s.Split(longText(40))
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			t.Fatalf("chunk %d is blank", i)
		}
		if n := utf8.RuneCountInString(chunk); n > s.ChunkSize {
			t.Fatalf("chunk %d has %d runes, limit %d", i, n, s.ChunkSize)
		}
	}
}

func TestSplitOverlapKeepsBoundarySentencesRetrievable(t *testing.T) {
	s := NewSplitter(120, 60)
	chunks := s.Split(longText(20))
	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1])
		curWords := strings.Fields(chunks[i])
		if overlapWords(prevWords, curWords) == 0 {
			t.Fatalf("chunk %d does not start with a tail of chunk %d:\n%q\n%q", i, i-1, chunks[i-1], chunks[i])
		}
	}
}

func TestSplitReconstructsSourceMinusOverlaps(t *testing.T) {
	text := longText(30) + "\n\nA second paragraph starts here. It has two sentences."
	s := NewSplitter(150, 50)
	chunks := s.Split(text)

	var words []string
	for i, chunk := range chunks {
		cur := strings.Fields(chunk)
		if i > 0 {
			cur = cur[overlapWords(strings.Fields(chunks[i-1]), cur):]
		}
		words = append(words, cur...)
	}

	if got, want := strings.Join(words, " "), strings.Join(strings.Fields(text), " "); got != want {
		t.Fatalf("reconstruction mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestSplitCutsOversizedSentence(t *testing.T) {
	s := NewSplitter(50, 10)
	sentence := strings.Repeat("word ", 40) + strings.Repeat("x", 120)
	chunks := s.Split(sentence)
	for i, chunk := range chunks {
		if n := utf8.RuneCountInString(chunk); n > 50 {
			t.Fatalf("chunk %d has %d runes", i, n)
		}
	}
	if got := strings.Join(strings.Fields(strings.Join(chunks, " ")), ""); !strings.Contains(got, strings.Repeat("x", 120)) {
		t.Fatalf("long word content lost")
	}
}

func TestSplitStripsControlCharacters(t *testing.T) {
	s := NewSplitter(200, 20)
	chunks := s.Split("Returns\x00 are\x07 accepted.\r\nShipping\x1b is free.")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %q", chunks)
	}
	if chunks[0] != "Returns are accepted. Shipping is free." {
		t.Fatalf("unexpected sanitized chunk %q", chunks[0])
	}
}

func TestSplitPreservesParagraphBreak(t *testing.T) {
	s := NewSplitter(200, 20)
	chunks := s.Split("First paragraph.\n\n  \nSecond paragraph.")
	if len(chunks) != 1 || chunks[0] != "First paragraph.\nSecond paragraph." {
		t.Fatalf("unexpected chunks %q", chunks)
	}
}

func longText(sentences int) string {
	parts := make([]string, 0, sentences)
	for i := 0; i < sentences; i++ {
		parts = append(parts, fmt.Sprintf("Sentence number %d describes policy item %d.", i, i*7))
	}
	return strings.Join(parts, " ")
}

// overlapWords returns the longest k such that the last k words of prev open cur.
func overlapWords(prev, cur []string) int {
	best := 0
	for k := 1; k < len(prev) && k <= len(cur); k++ {
		match := true
		for j := 0; j < k; j++ {
			if prev[len(prev)-k+j] != cur[j] {
				match = false
				break
			}
		}
		if match {
			best = k
		}
	}
	return best
}
