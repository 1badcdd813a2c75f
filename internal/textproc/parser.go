package textproc

import (
	"strings"
	"unicode"

	"golang.org/x/exp/slices"
)

// Size limits mirrored from the original service's common.h. They bound a
// single sentence/word rather than the whole document; WRITE-COMMIT's
// 8192-byte wire payload cap is enforced separately at the transport
// boundary.
const (
	MaxSentenceLength = 1024
	MaxWordLength     = 128
)

// ParseSentences splits text into sentences, cutting at '.', '!', or '?'
// (the terminator stays attached to the sentence it ends) and trimming
// each resulting sentence of leading/trailing whitespace. A trailing run
// with no terminator becomes one final sentence. A run that reaches
// MaxSentenceLength-1 bytes without hitting a terminator is force-cut
// there, same as the original parser, so every sentence is shorter than
// MaxSentenceLength.
func ParseSentences(text string) []string {
	var sentences []string
	var cur strings.Builder

	flush := func() {
		s := strings.TrimSpace(cur.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		cur.Reset()
	}

	for _, r := range text {
		cur.WriteRune(r)

		switch r {
		case '.', '!', '?':
			flush()
			continue
		}

		if cur.Len() >= MaxSentenceLength-1 {
			flush()
		}
	}

	if cur.Len() > 0 {
		flush()
	}

	return sentences
}

// ParseWords splits a sentence into whitespace-delimited words, ignoring
// empty runs and truncating any single word to MaxWordLength.
func ParseWords(sentence string) []string {
	fields := strings.FieldsFunc(sentence, unicode.IsSpace)
	var words []string
	for _, w := range fields {
		if len(w) > MaxWordLength {
			w = w[:MaxWordLength]
		}
		words = append(words, w)
	}
	return words
}

// RebuildText joins sentences with single spaces.
func RebuildText(sentences []string) string {
	return strings.Join(sentences, " ")
}

// InsertWord parses sentence into words, splices word in at wordIndex
// (0 <= wordIndex <= word count, insertion at the end permitted), and
// rejoins the result with single spaces. Returns ok=false if wordIndex is
// out of range; the caller (WRITE-COMMIT) treats that as INVALID_INDEX
// and aborts the whole commit without mutating anything.
func InsertWord(sentence string, wordIndex int, word string) (result string, ok bool) {
	words := ParseWords(sentence)
	if wordIndex < 0 || wordIndex > len(words) {
		return "", false
	}

	words = slices.Insert(words, wordIndex, word)
	return strings.Join(words, " "), true
}

// SpliceSentences replaces the sentence at index with replacement (which
// may be zero, one, or several sentences — WRITE-COMMIT re-parses the
// edited sentence and a terminator introduced by an edit can split it
// into more than one), preserving every sentence before and after index.
func SpliceSentences(sentences []string, index int, replacement []string) []string {
	out := make([]string, 0, len(sentences)-1+len(replacement))
	out = append(out, sentences[:index]...)
	out = append(out, replacement...)
	out = append(out, sentences[index+1:]...)
	return out
}

// Stats returns word_count, char_count, and sentence_count for text,
// matching get_text_stats: char_count is the raw byte length of text,
// sentence_count is len(ParseSentences(text)), and word_count sums
// len(ParseWords(s)) over every parsed sentence.
func Stats(text string) (wordCount, charCount, sentenceCount int) {
	charCount = len(text)

	sentences := ParseSentences(text)
	sentenceCount = len(sentences)

	for _, s := range sentences {
		wordCount += len(ParseWords(s))
	}

	return wordCount, charCount, sentenceCount
}
