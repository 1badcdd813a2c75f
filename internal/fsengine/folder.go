package fsengine

import (
	"os"
	"sort"

	"github.com/dreamware/distfs/internal/distfserr"
)

// CreateFolder makes an empty folder at path, as a plain directory under
// the files root. Folders have no metadata sidecar of their own; access
// control is evaluated per-file within them.
func (e *Engine) CreateFolder(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	full := e.contentPath(path)
	if _, err := os.Stat(full); err == nil {
		return distfserr.Exists(path)
	}
	return os.MkdirAll(full, 0o755)
}

// Move renames a file or folder from src to dest, relocating its
// metadata and undo snapshot alongside it. Checkpoints stay keyed to
// the old filename and are not renamed, the same way DELETE leaves
// them behind (spec.md doesn't require either to follow the file).
// Only the owner of a file may move it; directories move
// unconditionally since they carry no ACL of their own.
func (e *Engine) Move(src, dest, requester string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	srcContent := e.contentPath(src)
	st, err := os.Stat(srcContent)
	if err != nil {
		if os.IsNotExist(err) {
			return distfserr.NotFound(src)
		}
		return err
	}

	if _, err := os.Stat(e.contentPath(dest)); err == nil {
		return distfserr.Exists(dest)
	}

	if st.IsDir() {
		return os.Rename(srcContent, e.contentPath(dest))
	}

	m, err := e.loadMeta(src)
	if err != nil {
		return err
	}
	if m.Owner != requester {
		return distfserr.Unauthorized("only the owner may move this file")
	}

	if err := os.Rename(srcContent, e.contentPath(dest)); err != nil {
		return err
	}
	if err := os.Rename(e.undoPath(src), e.undoPath(dest)); err != nil && !os.IsNotExist(err) {
		return err
	}

	m.Filename = dest
	if err := os.Remove(e.metaPath(src)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return e.saveMeta(m)
}

// FolderEntry is one item returned by ViewFolder.
type FolderEntry struct {
	Name  string
	IsDir bool
}

// ViewFolder lists the immediate contents of path, relative to the
// engine's files directory (use "" for the files directory itself).
func (e *Engine) ViewFolder(path string) ([]FolderEntry, error) {
	full := e.contentPath(path)
	items, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, distfserr.NotFound(path)
		}
		return nil, err
	}

	entries := make([]FolderEntry, 0, len(items))
	for _, it := range items {
		entries = append(entries, FolderEntry{Name: it.Name(), IsDir: it.IsDir()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}
