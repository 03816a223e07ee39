package chunking

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Splitter accumulates sentence and paragraph units into chunks of at most ChunkSize runes.
// Each chunk after the first opens with the trailing units of its predecessor that fit in Overlap runes.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

type unit struct {
	text          string
	size          int
	paragraphEnds bool
}

func (s *Splitter) Split(text string) []string {
	units := s.units(Sanitize(text))
	if len(units) == 0 {
		return nil
	}

	var (
		out     []string
		current []unit
		size    int
	)
	flush := func() {
		if len(current) > 0 {
			out = append(out, joinUnits(current))
		}
	}

	for _, u := range units {
		if len(current) > 0 && size+1+u.size > s.ChunkSize {
			flush()
			current = s.overlapTail(current)
			size = unitsSize(current)
			if len(current) > 0 && size+1+u.size > s.ChunkSize {
				current = nil
				size = 0
			}
		}
		if len(current) > 0 {
			size++
		}
		current = append(current, u)
		size += u.size
	}
	flush()
	return out
}

// overlapTail keeps the longest run of trailing units within Overlap, never the whole chunk.
func (s *Splitter) overlapTail(prev []unit) []unit {
	if s.Overlap <= 0 || len(prev) < 2 {
		return nil
	}
	start := len(prev)
	size := 0
	for i := len(prev) - 1; i >= 1; i-- {
		next := size + prev[i].size
		if size > 0 {
			next++
		}
		if next > s.Overlap {
			break
		}
		size = next
		start = i
	}
	if start == len(prev) {
		return nil
	}
	tail := make([]unit, len(prev)-start)
	copy(tail, prev[start:])
	return tail
}

func (s *Splitter) units(text string) []unit {
	var out []unit
	for _, paragraph := range splitParagraphs(text) {
		sentences := splitSentences(paragraph)
		for i, sentence := range sentences {
			pieces := s.fit(sentence)
			for j, piece := range pieces {
				out = append(out, unit{
					text:          piece,
					size:          utf8.RuneCountInString(piece),
					paragraphEnds: i == len(sentences)-1 && j == len(pieces)-1,
				})
			}
		}
	}
	return out
}

// fit cuts an oversized sentence at word boundaries, and inside a word only when one word exceeds ChunkSize.
func (s *Splitter) fit(sentence string) []string {
	if utf8.RuneCountInString(sentence) <= s.ChunkSize {
		return []string{sentence}
	}
	var (
		out  []string
		b    strings.Builder
		size int
	)
	emit := func() {
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
			size = 0
		}
	}
	for _, word := range strings.Fields(sentence) {
		runes := []rune(word)
		for len(runes) > s.ChunkSize {
			emit()
			out = append(out, string(runes[:s.ChunkSize]))
			runes = runes[s.ChunkSize:]
		}
		if len(runes) == 0 {
			continue
		}
		extra := len(runes)
		if size > 0 {
			extra++
		}
		if size+extra > s.ChunkSize {
			emit()
			extra = len(runes)
		}
		if size > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(string(runes))
		size += extra
	}
	emit()
	return out
}

func joinUnits(units []unit) string {
	var b strings.Builder
	for i, u := range units {
		if i > 0 {
			if units[i-1].paragraphEnds {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(u.text)
	}
	return b.String()
}

func unitsSize(units []unit) int {
	size := 0
	for i, u := range units {
		if i > 0 {
			size++
		}
		size += u.size
	}
	return size
}

func splitParagraphs(text string) []string {
	var (
		out   []string
		lines []string
	)
	flush := func() {
		if block := strings.Join(strings.Fields(strings.Join(lines, " ")), " "); block != "" {
			out = append(out, block)
		}
		lines = lines[:0]
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		lines = append(lines, line)
	}
	flush()
	return out
}

// splitSentences breaks after '.', '!' or '?' when followed by a space. The paragraph
// is already whitespace-normalized, so every boundary is a single space.
func splitSentences(paragraph string) []string {
	var out []string
	start := 0
	for i := 0; i < len(paragraph)-1; i++ {
		switch paragraph[i] {
		case '.', '!', '?':
			if paragraph[i+1] == ' ' {
				out = append(out, paragraph[start:i+1])
				start = i + 2
			}
		}
	}
	if start < len(paragraph) {
		out = append(out, paragraph[start:])
	}
	return out
}

// Sanitize drops control characters except newline and tab and normalizes line endings.
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
}
