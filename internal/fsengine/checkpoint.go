package fsengine

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dreamware/distfs/internal/atomicfile"
	"github.com/dreamware/distfs/internal/distfserr"
	"github.com/dreamware/distfs/internal/textproc"
)

// checkpointHeaderPrefix tags the epoch-seconds line written at the top
// of every checkpoint file, ahead of the captured content.
const checkpointHeaderPrefix = "checkpoint-epoch:"

// Checkpoint snapshots filename's current content under tag, for
// requesters with at least PermRead (a checkpoint is a bookmark, not a
// mutation, so read access suffices). Re-checkpointing the same tag
// overwrites the prior snapshot.
func (e *Engine) Checkpoint(filename, requester, tag string) error {
	m, err := e.loadMeta(filename)
	if err != nil {
		return err
	}
	if !m.PermissionFor(requester).Satisfies(PermRead) {
		return distfserr.PermissionDenied("requires read access")
	}

	unlock := e.locks.RLock(filename)
	data, err := os.ReadFile(e.contentPath(filename))
	unlock()
	if err != nil {
		return err
	}

	header := fmt.Sprintf("%s%d\n", checkpointHeaderPrefix, time.Now().UTC().Unix())
	return atomicfile.Write(e.checkpointPath(filename, tag), append([]byte(header), data...), 0o644)
}

// CheckpointInfo is a checkpoint's metadata without its content, as
// returned by ListCheckpoints.
type CheckpointInfo struct {
	Tag     string
	TakenAt time.Time
}

// ViewCheckpoint returns a checkpoint's captured content as of when it
// was taken.
func (e *Engine) ViewCheckpoint(filename, requester, tag string) ([]byte, error) {
	m, err := e.loadMeta(filename)
	if err != nil {
		return nil, err
	}
	if !m.PermissionFor(requester).Satisfies(PermRead) {
		return nil, distfserr.PermissionDenied("requires read access")
	}

	_, content, err := e.readCheckpoint(filename, tag)
	return content, err
}

func (e *Engine) readCheckpoint(filename, tag string) (time.Time, []byte, error) {
	raw, err := os.ReadFile(e.checkpointPath(filename, tag))
	if os.IsNotExist(err) {
		return time.Time{}, nil, distfserr.NotFound(filename + "@" + tag)
	}
	if err != nil {
		return time.Time{}, nil, err
	}

	nl := strings.IndexByte(string(raw), '\n')
	if nl < 0 || !strings.HasPrefix(string(raw), checkpointHeaderPrefix) {
		return time.Time{}, nil, distfserr.Internal(fmt.Errorf("fsengine: malformed checkpoint file for %s@%s", filename, tag))
	}
	header := string(raw[len(checkpointHeaderPrefix):nl])
	epoch, err := strconv.ParseInt(header, 10, 64)
	if err != nil {
		return time.Time{}, nil, distfserr.Internal(err)
	}
	return time.Unix(epoch, 0).UTC(), raw[nl+1:], nil
}

// Revert replaces filename's current content with checkpoint tag's
// snapshot, first pushing the current content to undo so Undo can
// recover the pre-revert state. Requires PermWrite.
func (e *Engine) Revert(filename, requester, tag string) error {
	m, err := e.loadMeta(filename)
	if err != nil {
		return err
	}
	if !m.PermissionFor(requester).Satisfies(PermWrite) {
		return distfserr.PermissionDenied("requires write access")
	}

	_, content, err := e.readCheckpoint(filename, tag)
	if err != nil {
		return err
	}

	unlock := e.locks.Lock(filename)
	defer unlock()

	current, err := os.ReadFile(e.contentPath(filename))
	if err != nil {
		return err
	}
	if err := atomicfile.Write(e.undoPath(filename), current, 0o644); err != nil {
		return err
	}
	if err := atomicfile.Write(e.contentPath(filename), content, 0o644); err != nil {
		return err
	}

	wordCount, charCount, _ := textproc.Stats(string(content))
	m.WordCount = wordCount
	m.CharCount = charCount
	m.Modified = time.Now().UTC()
	m.LastAccessor = requester
	return e.saveMeta(m)
}

// ListCheckpoints returns every checkpoint tag taken for filename,
// ordered by tag name.
func (e *Engine) ListCheckpoints(filename, requester string) ([]CheckpointInfo, error) {
	m, err := e.loadMeta(filename)
	if err != nil {
		return nil, err
	}
	if !m.PermissionFor(requester).Satisfies(PermRead) {
		return nil, distfserr.PermissionDenied("requires read access")
	}

	items, err := os.ReadDir(e.checkpointsDir)
	if err != nil {
		return nil, err
	}

	prefix := filename + "_"
	const suffix = ".ckpt"
	var out []CheckpointInfo
	for _, it := range items {
		name := it.Name()
		if it.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		tag := strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)
		takenAt, _, err := e.readCheckpoint(filename, tag)
		if err != nil {
			continue
		}
		out = append(out, CheckpointInfo{Tag: tag, TakenAt: takenAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out, nil
}
