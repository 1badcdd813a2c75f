package fsengine

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dreamware/distfs/internal/atomicfile"
	"github.com/dreamware/distfs/internal/distfserr"
	"github.com/dreamware/distfs/internal/textproc"
)

const defaultCheckpointTag = "default"

// Engine is a storage node's on-disk file engine. One Engine instance
// serves one node's data directory.
type Engine struct {
	nodeID string
	root   string

	filesDir       string
	metaDir        string
	undoDir        string
	checkpointsDir string

	// mu serializes structural operations: create, delete, folder
	// moves and ACL edits (checkpoint/revert do not take it). It is coarser than the
	// per-file lock table, which guards concurrent content access.
	mu sync.Mutex

	locks *lockTable
}

// New builds an Engine rooted at dataDir for the given node ID, creating
// the directory layout if absent.
func New(nodeID, dataDir string) (*Engine, error) {
	e := &Engine{
		nodeID:         nodeID,
		root:           dataDir,
		filesDir:       filepath.Join(dataDir, "files"),
		metaDir:        filepath.Join(dataDir, "metadata"),
		undoDir:        filepath.Join(dataDir, "undo"),
		checkpointsDir: filepath.Join(dataDir, "checkpoints"),
		locks:          newLockTable(),
	}
	for _, dir := range []string{e.filesDir, e.metaDir, e.undoDir, e.checkpointsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Engine) contentPath(filename string) string {
	return filepath.Join(e.filesDir, filename)
}

func (e *Engine) metaPath(filename string) string {
	return filepath.Join(e.metaDir, filename+".meta")
}

func (e *Engine) undoPath(filename string) string {
	return filepath.Join(e.undoDir, filename+".undo")
}

func (e *Engine) checkpointPath(filename, tag string) string {
	if tag == "" {
		tag = defaultCheckpointTag
	}
	return filepath.Join(e.checkpointsDir, filename+"_"+tag+".ckpt")
}

func (e *Engine) loadMeta(filename string) (*Meta, error) {
	data, err := os.ReadFile(e.metaPath(filename))
	if os.IsNotExist(err) {
		return nil, distfserr.NotFound(filename)
	}
	if err != nil {
		return nil, err
	}
	return decodeMeta(data)
}

func (e *Engine) saveMeta(m *Meta) error {
	return atomicfile.Write(e.metaPath(m.Filename), encodeMeta(m), 0o644)
}

func (e *Engine) exists(filename string) bool {
	_, err := os.Stat(e.metaPath(filename))
	return err == nil
}

// Create makes a new, empty file owned by owner. Fails if filename
// already exists.
func (e *Engine) Create(filename, owner string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.exists(filename) {
		return distfserr.Exists(filename)
	}
	now := time.Now().UTC()
	m := &Meta{
		Filename:     filename,
		Owner:        owner,
		Created:      now,
		Modified:     now,
		Accessed:     now,
		LastAccessor: owner,
	}
	if err := atomicfile.Write(e.contentPath(filename), []byte{}, 0o644); err != nil {
		return err
	}
	return e.saveMeta(m)
}

// Read returns a file's full content, recording requester as the last
// accessor. requester must have at least PermRead.
//
// Parameters:
//   - filename: path relative to the engine's files directory
//   - requester: username whose ACL permission is checked before the read
//
// Returns:
//   - the file's content bytes, or an error if filename is unknown or
//     requester lacks read access
//
// Example:
//
//	data, err := engine.Read("notes.txt", "alice")
func (e *Engine) Read(filename, requester string) ([]byte, error) {
	m, err := e.loadMeta(filename)
	if err != nil {
		return nil, err
	}
	if !m.PermissionFor(requester).Satisfies(PermRead) {
		return nil, distfserr.PermissionDenied("requires read access")
	}

	unlock := e.locks.RLock(filename)
	defer unlock()

	data, err := os.ReadFile(e.contentPath(filename))
	if os.IsNotExist(err) {
		return nil, distfserr.NotFound(filename)
	}
	if err != nil {
		return nil, err
	}

	m.Accessed = time.Now().UTC()
	m.LastAccessor = requester
	if err := e.saveMeta(m); err != nil {
		return nil, err
	}
	return data, nil
}

// Delete removes a file's content, metadata and undo snapshot. Only the
// owner may delete. Checkpoints are retained (Open Question decision:
// checkpoint history outlives the file it was taken from).
func (e *Engine) Delete(filename, requester string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.loadMeta(filename)
	if err != nil {
		return err
	}
	if m.Owner != requester {
		return distfserr.Unauthorized("only the owner may perform this operation")
	}

	unlock := e.locks.Lock(filename)
	defer unlock()

	for _, path := range []string{e.contentPath(filename), e.metaPath(filename), e.undoPath(filename)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Info is the non-byte-size subset of file metadata: owner, timestamps,
// ACL and counters, available to anyone with at least PermRead.
type Info struct {
	Filename      string
	Owner         string
	Created       time.Time
	Modified      time.Time
	Accessed      time.Time
	LastAccessor  string
	WordCount     int
	CharCount     int
	SentenceCount int
	ACL           []ACLEntry
}

// FileInfo additionally carries the node identity and on-disk byte size,
// returned by the FILEINFO command as opposed to plain INFO.
type FileInfo struct {
	Info
	NodeID string
	Bytes  int64
}

// Info returns a file's metadata summary for requester.
func (e *Engine) Info(filename, requester string) (Info, error) {
	m, err := e.loadMeta(filename)
	if err != nil {
		return Info{}, err
	}
	if !m.PermissionFor(requester).Satisfies(PermRead) {
		return Info{}, distfserr.PermissionDenied("requires read access")
	}

	unlock := e.locks.RLock(filename)
	defer unlock()

	data, err := os.ReadFile(e.contentPath(filename))
	if err != nil && !os.IsNotExist(err) {
		return Info{}, err
	}
	_, _, sentenceCount := textproc.Stats(string(data))

	return Info{
		Filename:      m.Filename,
		Owner:         m.Owner,
		Created:       m.Created,
		Modified:      m.Modified,
		Accessed:      m.Accessed,
		LastAccessor:  m.LastAccessor,
		WordCount:     m.WordCount,
		CharCount:     m.CharCount,
		SentenceCount: sentenceCount,
		ACL:           append([]ACLEntry(nil), m.ACL...),
	}, nil
}

// FileInfo is Info plus the node's own identity and the content's byte
// size on disk.
func (e *Engine) FileInfo(filename, requester string) (FileInfo, error) {
	info, err := e.Info(filename, requester)
	if err != nil {
		return FileInfo{}, err
	}
	st, err := os.Stat(e.contentPath(filename))
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Info: info, NodeID: e.nodeID, Bytes: st.Size()}, nil
}

// Copy duplicates source's content into a new file dest, owned by
// requester with an empty ACL. requester needs PermRead on source; dest
// must not already exist.
func (e *Engine) Copy(source, dest, requester string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	srcMeta, err := e.loadMeta(source)
	if err != nil {
		return err
	}
	if !srcMeta.PermissionFor(requester).Satisfies(PermRead) {
		return distfserr.PermissionDenied("requires read access")
	}
	if e.exists(dest) {
		return distfserr.Exists(dest)
	}

	unlockSrc := e.locks.RLock(source)
	data, err := os.ReadFile(e.contentPath(source))
	unlockSrc()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	destMeta := &Meta{
		Filename:     dest,
		Owner:        requester,
		Created:      now,
		Modified:     now,
		Accessed:     now,
		LastAccessor: requester,
		WordCount:    srcMeta.WordCount,
		CharCount:    srcMeta.CharCount,
	}
	if err := atomicfile.Write(e.contentPath(dest), data, 0o644); err != nil {
		return err
	}
	return e.saveMeta(destMeta)
}

// AddAccess grants target PermRead or PermWrite on filename. Only the
// owner may change the ACL. Fails if target already holds a grant or
// the ACL is already at MaxACLEntries.
func (e *Engine) AddAccess(filename, requester, target string, perm Permission) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.loadMeta(filename)
	if err != nil {
		return err
	}
	if m.Owner != requester {
		return distfserr.Unauthorized("only the owner may perform this operation")
	}
	if m.PermissionFor(target) != PermNone {
		return distfserr.InvalidParameters(target + " already has an access grant")
	}
	if len(m.ACL) >= MaxACLEntries {
		return distfserr.InvalidParameters("acl is full")
	}
	m.SetPermission(target, perm)
	return e.saveMeta(m)
}

// RemAccess revokes target's ACL entry on filename. Only the owner may
// change the ACL. Fails if target has no existing grant.
func (e *Engine) RemAccess(filename, requester, target string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.loadMeta(filename)
	if err != nil {
		return err
	}
	if m.Owner != requester {
		return distfserr.Unauthorized("only the owner may perform this operation")
	}
	if m.PermissionFor(target) == PermNone {
		return distfserr.InvalidParameters(target + " has no access grant")
	}
	m.RemovePermission(target)
	return e.saveMeta(m)
}

// Stream returns a file's content split into words, for requester with
// at least PermRead. Intended for chunked delivery over the wire
// protocol by the caller.
func (e *Engine) Stream(filename, requester string) ([]string, error) {
	data, err := e.Read(filename, requester)
	if err != nil {
		return nil, err
	}
	var words []string
	for _, s := range textproc.ParseSentences(string(data)) {
		words = append(words, textproc.ParseWords(s)...)
	}
	return words, nil
}
