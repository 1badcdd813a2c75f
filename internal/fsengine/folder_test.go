package fsengine

import "testing"

func TestCreateFolderAndView(t *testing.T) {
	e := newTestEngine(t)
	if err := e.CreateFolder("docs"); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if err := e.CreateFolder("docs"); err == nil {
		t.Fatal("expected FILE_EXISTS creating duplicate folder, got nil")
	}

	if err := e.Create("docs/a.txt", "alice"); err != nil {
		t.Fatalf("Create nested file: %v", err)
	}

	entries, err := e.ViewFolder("docs")
	if err != nil {
		t.Fatalf("ViewFolder: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "a.txt" || entries[0].IsDir {
		t.Fatalf("entries = %+v, want single file a.txt", entries)
	}
}

func TestViewFolderMissing(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.ViewFolder("nope"); err == nil {
		t.Fatal("expected error viewing nonexistent folder, got nil")
	}
}

func TestMoveFileRequiresOwner(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Create("a.txt", "alice"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := e.Move("a.txt", "b.txt", "bob"); err == nil {
		t.Fatal("expected UNAUTHORIZED moving a file owned by alice, got nil")
	}

	if err := e.Move("a.txt", "b.txt", "alice"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, err := e.Read("a.txt", "alice"); err == nil {
		t.Fatal("expected source to be gone after move, got nil error")
	}
	if _, err := e.Read("b.txt", "alice"); err != nil {
		t.Fatalf("Read moved file: %v", err)
	}
}

func TestMoveRejectsExistingDest(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Create("a.txt", "alice"); err != nil {
		t.Fatalf("Create a: %v", err)
	}
	if err := e.Create("b.txt", "alice"); err != nil {
		t.Fatalf("Create b: %v", err)
	}
	if err := e.Move("a.txt", "b.txt", "alice"); err == nil {
		t.Fatal("expected FILE_EXISTS moving onto existing dest, got nil")
	}
}

func TestMoveCarriesUndoHistory(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Create("a.txt", "alice"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := e.WriteCommit("a.txt", "alice", 0, []WordEdit{{WordIndex: 0, Word: "v1."}}); err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	if err := e.WriteCommit("a.txt", "alice", 1, []WordEdit{{WordIndex: 0, Word: "v2."}}); err != nil {
		t.Fatalf("second WriteCommit: %v", err)
	}

	if err := e.Move("a.txt", "b.txt", "alice"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if err := e.Undo("b.txt", "alice"); err != nil {
		t.Fatalf("Undo after move: %v", err)
	}
	if got := readContent(t, e, "b.txt", "alice"); got != "v1." {
		t.Fatalf("content after move+undo = %q, want %q", got, "v1.")
	}
}
