package registry

import (
	"path/filepath"
	"testing"
	"time"
)

func TestStoreSaveReplayRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "file_registry.txt"))

	now := time.Now().Truncate(time.Second)
	records := []FileRecord{
		{
			Filename:     "notes.txt",
			Owner:        "alice",
			NodeID:       "node-1",
			Created:      now,
			Modified:     now,
			Accessed:     now,
			LastAccessor: "alice",
			WordCount:    2,
			CharCount:    11,
		},
		{
			Filename: "todo.txt",
			Owner:    "bob",
			NodeID:   "node-2",
			Created:  now,
			Modified: now,
			Accessed: now,
		},
	}

	if err := store.Save(records); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Replay()
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}

	byName := make(map[string]FileRecord)
	for _, r := range got {
		byName[r.Filename] = r
	}

	notes, ok := byName["notes.txt"]
	if !ok {
		t.Fatal("notes.txt missing after replay")
	}
	if notes.Owner != "alice" || notes.NodeID != "node-1" || notes.WordCount != 2 || notes.CharCount != 11 {
		t.Fatalf("notes.txt mismatch: %+v", notes)
	}
	if !notes.Created.Equal(now) {
		t.Fatalf("Created = %v, want %v", notes.Created, now)
	}
}

func TestStoreReplayMissingFileReturnsEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	records, err := store.Replay()
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

// TestRegistryDurability is invariant 6: CREATE then coordinator restart
// then VIEW lists the file.
func TestRegistryDurability(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "file_registry.txt")

	r1, err := New(8, NewStore(storePath))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r1.RegisterNode("node-1", "h1", 6000, 6001)
	if _, err := r1.CreateFile("notes.txt", "alice"); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	// Simulate a coordinator restart: a fresh Registry over the same store.
	r2, err := New(8, NewStore(storePath))
	if err != nil {
		t.Fatalf("New (restart): %v", err)
	}

	files := r2.ViewFiles()
	if len(files) != 1 || files[0].Filename != "notes.txt" {
		t.Fatalf("ViewFiles after restart = %+v", files)
	}
}
