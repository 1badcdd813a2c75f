package textproc

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseSentences(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"single no terminator", "Hi there", []string{"Hi there"}},
		{"single terminated", "Hi there.", []string{"Hi there."}},
		{"two sentences", "Hello. World!", []string{"Hello.", "World!"}},
		{"question mark", "Who? You.", []string{"Who?", "You."}},
		{"leading/trailing whitespace trimmed", "  Hello world.   ", []string{"Hello world."}},
		{"trailing fragment kept", "Hello. World", []string{"Hello.", "World"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseSentences(tc.text)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseSentences(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestParseSentencesForceCutsOverlongRun(t *testing.T) {
	text := strings.Repeat("a", MaxSentenceLength+50)
	got := ParseSentences(text)
	if len(got) < 2 {
		t.Fatalf("expected overlong run to be force-cut into multiple sentences, got %d", len(got))
	}
	for _, s := range got {
		if len(s) >= MaxSentenceLength {
			t.Fatalf("sentence %q exceeds MaxSentenceLength", s)
		}
	}
}

func TestParseWords(t *testing.T) {
	cases := []struct {
		name     string
		sentence string
		want     []string
	}{
		{"empty", "", nil},
		{"single word", "Hello", []string{"Hello"}},
		{"multiple words", "Hello World", []string{"Hello", "World"}},
		{"extra whitespace ignored", "  Hello   World  ", []string{"Hello", "World"}},
		{"tabs and newlines", "Hello\tWorld\n", []string{"Hello", "World"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseWords(tc.sentence)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseWords(%q) = %v, want %v", tc.sentence, got, tc.want)
			}
		})
	}
}

func TestRebuildText(t *testing.T) {
	got := RebuildText([]string{"Hello.", "World!"})
	want := "Hello. World!"
	if got != want {
		t.Fatalf("RebuildText = %q, want %q", got, want)
	}
}

func TestInsertWord(t *testing.T) {
	t.Run("insert at start", func(t *testing.T) {
		got, ok := InsertWord("World", 0, "Hello")
		if !ok || got != "Hello World" {
			t.Fatalf("got %q, ok=%v", got, ok)
		}
	})

	t.Run("insert at end", func(t *testing.T) {
		got, ok := InsertWord("Hello", 1, "World")
		if !ok || got != "Hello World" {
			t.Fatalf("got %q, ok=%v", got, ok)
		}
	})

	t.Run("insert into empty sentence", func(t *testing.T) {
		got, ok := InsertWord("", 0, "Hello")
		if !ok || got != "Hello" {
			t.Fatalf("got %q, ok=%v", got, ok)
		}
	})

	t.Run("out of range index rejected", func(t *testing.T) {
		_, ok := InsertWord("Hello", 5, "World")
		if ok {
			t.Fatal("expected ok=false for out-of-range index")
		}
	})

	t.Run("negative index rejected", func(t *testing.T) {
		_, ok := InsertWord("Hello", -1, "World")
		if ok {
			t.Fatal("expected ok=false for negative index")
		}
	})
}

// TestWriteCommitSentenceSplitting mirrors end-to-end scenario S3: an
// insertion containing a terminator splits the target sentence into two
// when it is re-parsed after the edit.
func TestWriteCommitSentenceSplitting(t *testing.T) {
	sentences := ParseSentences("Hi there")
	if len(sentences) != 1 {
		t.Fatalf("setup: want 1 sentence, got %v", sentences)
	}

	edited, ok := InsertWord(sentences[0], 2, "there.")
	if !ok {
		t.Fatal("InsertWord failed")
	}
	edited, ok = InsertWord(edited, 3, "New")
	if !ok {
		t.Fatal("InsertWord failed")
	}

	reparsed := ParseSentences(edited)
	if len(reparsed) != 2 {
		t.Fatalf("expected re-parse to split into 2 sentences, got %v", reparsed)
	}

	spliced := SpliceSentences(sentences, 0, reparsed)
	got := RebuildText(spliced)
	want := "Hi there there. New"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSpliceSentences(t *testing.T) {
	sentences := []string{"A.", "B.", "C."}
	got := SpliceSentences(sentences, 1, []string{"X.", "Y."})
	want := []string{"A.", "X.", "Y.", "C."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestStats(t *testing.T) {
	text := "Hello World. Second sentence!"
	wordCount, charCount, sentenceCount := Stats(text)

	if charCount != len(text) {
		t.Fatalf("charCount = %d, want %d", charCount, len(text))
	}
	if sentenceCount != 2 {
		t.Fatalf("sentenceCount = %d, want 2", sentenceCount)
	}
	if wordCount != 4 {
		t.Fatalf("wordCount = %d, want 4", wordCount)
	}
}

func TestStatsEmptyText(t *testing.T) {
	wordCount, charCount, sentenceCount := Stats("")
	if wordCount != 0 || charCount != 0 || sentenceCount != 0 {
		t.Fatalf("got (%d, %d, %d), want all zero", wordCount, charCount, sentenceCount)
	}
}
