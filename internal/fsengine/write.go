package fsengine

import (
	"os"
	"time"

	"github.com/dreamware/distfs/internal/atomicfile"
	"github.com/dreamware/distfs/internal/distfserr"
	"github.com/dreamware/distfs/internal/textproc"
)

// WordEdit is one word-insertion within a WRITE-COMMIT: insert word at
// wordIndex within the target sentence (0 <= wordIndex <= current word
// count of that sentence, insertion at the end permitted).
type WordEdit struct {
	WordIndex int
	Word      string
}

// WriteCommit applies edits to the sentence at sentenceIndex within
// filename's content. sentenceIndex == current sentence count appends a
// new sentence built entirely from edits.
//
// Edits are applied one after another, and each edit's word index is
// validated against the sentence as changed by the edits before it; if
// any edit is out of range, the whole commit is rejected with
// INVALID_INDEX and the file is left byte-for-byte unchanged — validation
// happens before the undo snapshot is taken, so a rejected commit never
// disturbs undo history either.
//
// Parameters:
//   - filename: path relative to the engine's files directory
//   - requester: username whose ACL permission is checked before the write
//   - sentenceIndex: 0-based sentence to edit, or the current sentence
//     count to append a new one
//   - edits: (word_index, word) pairs applied in order, each against the
//     word sequence left by the edits before it
//
// Returns:
//   - an error if requester lacks write access, filename is unknown, or
//     any edit's word_index falls outside [0, current_word_count]
//
// Example:
//
//	err := engine.WriteCommit("notes.txt", "alice", 0, []fsengine.WordEdit{
//		{WordIndex: 0, Word: "Hello"},
//		{WordIndex: 1, Word: "World"},
//	})
func (e *Engine) WriteCommit(filename, requester string, sentenceIndex int, edits []WordEdit) error {
	m, err := e.loadMeta(filename)
	if err != nil {
		return err
	}
	if !m.PermissionFor(requester).Satisfies(PermWrite) {
		return distfserr.PermissionDenied("requires write access")
	}

	unlock := e.locks.Lock(filename)
	defer unlock()

	data, err := os.ReadFile(e.contentPath(filename))
	if err != nil {
		return err
	}
	text := string(data)
	sentences := textproc.ParseSentences(text)

	var target string
	appending := sentenceIndex == len(sentences)
	switch {
	case appending:
		target = ""
	case sentenceIndex >= 0 && sentenceIndex < len(sentences):
		target = sentences[sentenceIndex]
	default:
		return distfserr.InvalidIndex("sentence index out of range")
	}

	for _, ed := range edits {
		next, ok := textproc.InsertWord(target, ed.WordIndex, ed.Word)
		if !ok {
			return distfserr.InvalidIndex("word index out of range")
		}
		target = next
	}

	// Validation above succeeded for every edit in sequence; now it is
	// safe to snapshot the pre-commit content to undo.
	if err := atomicfile.Write(e.undoPath(filename), data, 0o644); err != nil {
		return err
	}

	edited := textproc.ParseSentences(target)
	if len(edited) == 0 {
		edited = []string{""}
	}

	var newSentences []string
	if appending {
		newSentences = append(append([]string{}, sentences...), edited...)
	} else {
		newSentences = textproc.SpliceSentences(sentences, sentenceIndex, edited)
	}

	newText := textproc.RebuildText(newSentences)
	if err := atomicfile.Write(e.contentPath(filename), []byte(newText), 0o644); err != nil {
		return err
	}

	wordCount, charCount, _ := textproc.Stats(newText)
	m.WordCount = wordCount
	m.CharCount = charCount
	m.Modified = time.Now().UTC()
	m.LastAccessor = requester
	return e.saveMeta(m)
}

// Undo swaps a file's content with its most recent undo snapshot,
// effectively reverting the last WRITE-COMMIT. Requires PermWrite.
// Running Undo twice in a row restores the pre-undo content, since the
// swap is symmetric.
func (e *Engine) Undo(filename, requester string) error {
	m, err := e.loadMeta(filename)
	if err != nil {
		return err
	}
	if !m.PermissionFor(requester).Satisfies(PermWrite) {
		return distfserr.PermissionDenied("requires write access")
	}

	unlock := e.locks.Lock(filename)
	defer unlock()

	current, err := os.ReadFile(e.contentPath(filename))
	if err != nil {
		return err
	}
	undo, err := os.ReadFile(e.undoPath(filename))
	if os.IsNotExist(err) {
		return distfserr.InvalidCommand("no undo history for this file")
	}
	if err != nil {
		return err
	}

	if err := atomicfile.Write(e.contentPath(filename), undo, 0o644); err != nil {
		return err
	}
	if err := atomicfile.Write(e.undoPath(filename), current, 0o644); err != nil {
		return err
	}

	wordCount, charCount, _ := textproc.Stats(string(undo))
	m.WordCount = wordCount
	m.CharCount = charCount
	m.Modified = time.Now().UTC()
	m.LastAccessor = requester
	return e.saveMeta(m)
}
