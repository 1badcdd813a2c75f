// Package fsengine implements a storage node's on-disk textual file
// engine: sentence/word-indexed editing (via internal/textproc),
// per-file access control, undo and checkpoint history, folders, and
// atomic on-disk persistence with read/write locking.
//
// # Directory layout
//
//	<root>/
//	  files/<path>              content bytes and folder subtrees
//	  metadata/<file>.meta       sidecar: key:value lines + acl:user:R|W
//	  undo/<file>.undo           prior content snapshot
//	  checkpoints/<file>_<tag>.ckpt   epoch line + content
//
// # Locking
//
// A coarse node mutex (Engine.mu) serializes structural operations
// (create, delete, folder moves, ACL changes); checkpoint and revert do
// not take it. A
// per-file reader/writer lock table (internal/fsengine/lock.go) guards
// individual file bodies so concurrent READs can proceed in parallel
// while a WRITE-COMMIT excludes them; this table is keyed by path with
// reference counting, mirroring the original service's
// get_or_create_file_lock/file_unlock/file_lock_remove trio.
package fsengine
