// Package registry implements the coordinator's in-memory directory: the
// file, user, node, sentence-lease, and access-request tables described
// in the system's data model, plus the placement rule, health-adjacent
// bookkeeping, the LRU lookup cache, and flat-file persistence.
//
// # Architecture
//
//	┌───────────────────────────────────────────┐
//	│                Registry                     │
//	├───────────────────────────────────────────┤
//	│  files     map[filename]*FileRecord         │
//	│  users     map[username]*UserRecord         │
//	│  nodes     map[nodeID]*NodeRecord            │
//	│  leases    map[LeaseKey]*SentenceLease      │
//	│  requests  map[(filename,requester)]*AccessRequest │
//	│  cache     *lru  (filename -> NodeID)        │
//	│  mu        sync.Mutex  (single coarse lock)  │
//	└───────────────────────────────────────────┘
//
// All five tables are guarded by a single mutex, held only across the
// critical section of each operation — there is no per-table locking,
// matching the "one coarse lock is adequate" stance for this system's
// scale.
//
// # Placement
//
// CREATE picks the connected node with the fewest files, breaking ties by
// registration order (the order nodes first registered with the
// coordinator, tracked separately from the map since Go map iteration
// order is unspecified). This is a one-time decision: once a FileRecord
// names a node, it is never moved, even as other nodes join or leave —
// unlike a consistent-hash ring, whose entire purpose is minimizing
// remapping on membership change, this placement has nothing to remap.
//
// # Persistence
//
// Every mutating operation appends/rewrites a flat text file
// (file_registry.txt); on startup the registry replays that file to
// rebuild the files table. User, node, lease, and access-request state
// is process-lifetime only (per the data model: UserRecord's lifetime is
// "process lifetime", leases and requests are not documented as
// surviving a coordinator restart).
package registry
