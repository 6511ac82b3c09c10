package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Chunk is one content-bounded slice of a lesson document, sized for a
// single LLM extraction call.
type Chunk struct {
	Index             int    `json:"index"`
	Content           string `json:"content"`
	EstimatedConcepts int    `json:"estimated_concepts"`
	EstimatedSeconds  int    `json:"estimated_seconds"`
}

// Analysis is the result of chunking one lesson document.
type Analysis struct {
	Chunks           []Chunk `json:"chunks"`
	TotalLength      int     `json:"total_length"`
	EstimatedSeconds int     `json:"estimated_seconds"`
}

// Chunker splits lesson content on paragraph and sentence boundaries.
// It is deterministic: identical input always yields identical chunks,
// which extraction resumability depends on.
type Chunker struct {
	maxChars int
}

// New creates a Chunker with the given target chunk size in characters.
func New(maxChars int) *Chunker {
	if maxChars < 100 {
		maxChars = 100
	}
	return &Chunker{maxChars: maxChars}
}

// Analyze splits the content into chunks and estimates concept yield and
// processing time per chunk.
func (c *Chunker) Analyze(content string) (*Analysis, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("chunker: content is empty")
	}

	blocks := blockTexts([]byte(content))

	// Blocks larger than the limit are re-split on sentence boundaries
	// so no unit exceeds the target size.
	var units []string
	for _, b := range blocks {
		if len(b) <= c.maxChars {
			units = append(units, b)
			continue
		}
		units = append(units, packSentences(splitSentences(b), c.maxChars)...)
	}

	analysis := &Analysis{TotalLength: len(content)}
	for _, part := range packUnits(units, c.maxChars) {
		chunk := Chunk{
			Index:             len(analysis.Chunks),
			Content:           part,
			EstimatedConcepts: estimateConcepts(part),
		}
		chunk.EstimatedSeconds = 5 + 2*chunk.EstimatedConcepts
		analysis.Chunks = append(analysis.Chunks, chunk)
		analysis.EstimatedSeconds += chunk.EstimatedSeconds
	}
	return analysis, nil
}

// blockTexts parses markdown into block-level content units. Plain text
// works too: goldmark treats blank-line separated runs as paragraphs.
func blockTexts(source []byte) []string {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var blocks []string
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		lines := n.Lines()
		if lines.Len() == 0 {
			return ast.WalkContinue, nil
		}
		var b strings.Builder
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(source))
		}
		if t := strings.TrimSpace(b.String()); t != "" {
			blocks = append(blocks, t)
		}
		return ast.WalkSkipChildren, nil
	})

	if len(blocks) == 0 {
		if t := strings.TrimSpace(string(source)); t != "" {
			blocks = append(blocks, t)
		}
	}
	return blocks
}

// splitSentences breaks a block after sentence-ending punctuation
// followed by whitespace. A block with no such boundary is split on
// word boundaries as a last resort by packSentences.
func splitSentences(block string) []string {
	var sentences []string
	runes := []rune(block)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			s := strings.TrimSpace(string(runes[start : i+1]))
			if s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// packSentences joins sentences into units no longer than maxChars.
// Oversized single sentences fall back to word-boundary splitting so a
// boundary never lands mid-token.
func packSentences(sentences []string, maxChars int) []string {
	var units []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			units = append(units, current.String())
			current.Reset()
		}
	}

	for _, s := range sentences {
		if len(s) > maxChars {
			flush()
			units = append(units, splitWords(s, maxChars)...)
			continue
		}
		if current.Len() > 0 && current.Len()+1+len(s) > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(s)
	}
	flush()
	return units
}

// splitWords splits on spaces, keeping each piece under maxChars.
func splitWords(s string, maxChars int) []string {
	var parts []string
	var current strings.Builder
	for _, word := range strings.Fields(s) {
		if current.Len() > 0 && current.Len()+1+len(word) > maxChars {
			parts = append(parts, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// packUnits greedily packs content units into chunks up to maxChars,
// joining with a blank line to keep paragraph separation visible to
// the extraction model.
func packUnits(units []string, maxChars int) []string {
	var chunks []string
	var current strings.Builder
	for _, u := range units {
		if current.Len() > 0 && current.Len()+2+len(u) > maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(u)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// estimateConcepts guesses how many concepts a chunk will yield: roughly
// one per 250 characters, nudged up by list-heavy content where each
// line tends to be a vocabulary item.
func estimateConcepts(chunk string) int {
	est := len(chunk) / 250
	listLines := 0
	for _, line := range strings.Split(chunk, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "*") {
			listLines++
		}
	}
	est += listLines / 2
	if est < 1 {
		est = 1
	}
	return est
}
