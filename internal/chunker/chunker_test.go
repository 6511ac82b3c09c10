package chunker

import (
	"strings"
	"testing"
)

const lesson = `# Present Tense

The present tense describes actions happening now. It is the first tense
most learners meet.

## Conjugation

Regular verbs follow a fixed pattern:

- hablar: hablo, hablas, habla
- comer: como, comes, come
- vivir: vivo, vives, vive

Practice each form until it feels automatic. Irregular verbs must be
memorized separately.`

func TestAnalyzeDeterministic(t *testing.T) {
	c := New(200)

	first, err := c.Analyze(lesson)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	second, err := c.Analyze(lesson)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(first.Chunks) != len(second.Chunks) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first.Chunks), len(second.Chunks))
	}
	for i := range first.Chunks {
		if first.Chunks[i].Content != second.Chunks[i].Content {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestAnalyzeNoEmptyChunks(t *testing.T) {
	c := New(150)
	analysis, err := c.Analyze(lesson)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(analysis.Chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	for _, ch := range analysis.Chunks {
		if strings.TrimSpace(ch.Content) == "" {
			t.Errorf("chunk %d is empty", ch.Index)
		}
		if ch.EstimatedConcepts < 1 {
			t.Errorf("chunk %d has estimate %d", ch.Index, ch.EstimatedConcepts)
		}
	}
}

func TestAnalyzeRespectsSizeLimit(t *testing.T) {
	c := New(150)
	analysis, err := c.Analyze(lesson)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	for _, ch := range analysis.Chunks {
		if len(ch.Content) > 150 {
			t.Errorf("chunk %d is %d chars, over the 150 limit", ch.Index, len(ch.Content))
		}
	}
}

func TestAnalyzeNeverSplitsMidWord(t *testing.T) {
	long := strings.Repeat("conjugation practice drills ", 40)
	c := New(120)
	analysis, err := c.Analyze(long)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	for _, ch := range analysis.Chunks {
		for _, word := range strings.Fields(ch.Content) {
			switch word {
			case "conjugation", "practice", "drills":
			default:
				t.Fatalf("chunk %d contains split token %q", ch.Index, word)
			}
		}
	}
}

func TestAnalyzeEmptyContent(t *testing.T) {
	c := New(200)
	if _, err := c.Analyze("   \n\n  "); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestAnalyzeIndexesAndTotals(t *testing.T) {
	c := New(150)
	analysis, err := c.Analyze(lesson)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis.TotalLength != len(lesson) {
		t.Errorf("total length %d, want %d", analysis.TotalLength, len(lesson))
	}
	sum := 0
	for i, ch := range analysis.Chunks {
		if ch.Index != i {
			t.Errorf("chunk %d has index %d", i, ch.Index)
		}
		sum += ch.EstimatedSeconds
	}
	if analysis.EstimatedSeconds != sum {
		t.Errorf("estimated seconds %d, want sum %d", analysis.EstimatedSeconds, sum)
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("First point. Second point! Third point? Tail without period")
	want := []string{"First point.", "Second point!", "Third point?", "Tail without period"}
	if len(got) != len(want) {
		t.Fatalf("got %d sentences, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPlainTextParagraphs(t *testing.T) {
	plain := "First paragraph here.\n\nSecond paragraph here.\n\nThird paragraph here."
	c := New(30)
	analysis, err := c.Analyze(plain)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(analysis.Chunks) < 2 {
		t.Errorf("expected paragraph-level chunks, got %d", len(analysis.Chunks))
	}
}
