package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/dreamware/distfs/internal/distfserr"
)

// Registry is the coordinator's directory: files, users, nodes, leases,
// and access requests, all guarded by a single coarse mutex. See doc.go
// for the rationale.
type Registry struct {
	mu sync.Mutex

	files    map[string]*FileRecord
	users    map[string]*UserRecord
	nodes    map[string]*NodeRecord
	leases   map[LeaseKey]*SentenceLease
	requests map[RequestKey]*AccessRequest

	cache *lru

	nextRegistrationOrder int

	store *Store // nil disables persistence (used by tests)
}

// New builds an empty Registry with the given LRU cache capacity. If
// store is non-nil its on-disk file_registry.txt is replayed into the
// files table immediately.
func New(cacheSize int, store *Store) (*Registry, error) {
	r := &Registry{
		files:    make(map[string]*FileRecord),
		users:    make(map[string]*UserRecord),
		nodes:    make(map[string]*NodeRecord),
		leases:   make(map[LeaseKey]*SentenceLease),
		requests: make(map[RequestKey]*AccessRequest),
		cache:    newLRU(cacheSize),
		store:    store,
	}

	if store != nil {
		records, err := store.Replay()
		if err != nil {
			return nil, err
		}
		for _, fr := range records {
			fr := fr
			r.files[fr.Filename] = &fr
		}
	}

	return r, nil
}

// RegisterUser adds or refreshes a UserRecord. Re-registration (same
// username reconnecting) simply updates the address and is not an error.
func (r *Registry) RegisterUser(username, address string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[username]; ok {
		u.Address = address
		return
	}
	r.users[username] = &UserRecord{
		Username:   username,
		Address:    address,
		Registered: time.Now(),
	}
}

// ListUsers returns all registered usernames.
func (r *Registry) ListUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.users))
	for name := range r.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterNode adds or re-registers a storage node. A re-registration
// (node restarted with the same id) resets Connected and FileCount stays
// as previously recorded — the coordinator trusts its own registry over
// a node's restart-time claim, since files already placed there have not
// moved.
func (r *Registry) RegisterNode(nodeID, host string, coordPort, clientPort int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n, ok := r.nodes[nodeID]; ok {
		n.Host = host
		n.CoordPort = coordPort
		n.ClientPort = clientPort
		n.Connected = true
		n.LastHeartbeat = time.Now()
		return
	}

	r.nodes[nodeID] = &NodeRecord{
		NodeID:             nodeID,
		Host:               host,
		CoordPort:          coordPort,
		ClientPort:         clientPort,
		Connected:          true,
		LastHeartbeat:      time.Now(),
		registrationOrder:  r.nextRegistrationOrder,
	}
	r.nextRegistrationOrder++
}

// Heartbeat records that nodeID is alive, clearing any prior unhealthy
// mark. Unknown node-ids are ignored (a node that never registered has
// nothing for the coordinator to track).
func (r *Registry) Heartbeat(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n, ok := r.nodes[nodeID]; ok {
		n.LastHeartbeat = time.Now()
		n.Connected = true
	}
}

// NodeSnapshot returns a defensive copy of a NodeRecord, for callers
// (health monitor, EXEC) that need to read node state outside the
// registry's own lock.
func (r *Registry) NodeSnapshot(nodeID string) (NodeRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[nodeID]
	if !ok {
		return NodeRecord{}, false
	}
	return *n, true
}

// MarkUnhealthy clears a node's Connected flag. Called by the health
// monitor when a heartbeat has lapsed past the liveness threshold.
func (r *Registry) MarkUnhealthy(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n, ok := r.nodes[nodeID]; ok {
		n.Connected = false
	}
}

// LivenessSweep returns the node-ids whose last heartbeat is older than
// threshold and which are still marked Connected — callers (the health
// monitor) then call MarkUnhealthy on each.
func (r *Registry) LivenessSweep(threshold time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var stale []string
	for id, n := range r.nodes {
		if n.Connected && now.Sub(n.LastHeartbeat) > threshold {
			stale = append(stale, id)
		}
	}
	return stale
}

// CreateFile places a new file on the least-loaded connected node,
// breaking ties by registration order, and persists the updated
// registry. Returns distfserr.Exists if filename is already registered
// and distfserr.NoNodes if no node is connected.
func (r *Registry) CreateFile(filename, owner string) (Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.files[filename]; exists {
		return Endpoint{}, distfserr.Exists(filename)
	}

	node := r.pickPlacementNodeLocked()
	if node == nil {
		return Endpoint{}, distfserr.NoNodes()
	}

	now := time.Now()
	fr := &FileRecord{
		Filename: filename,
		Owner:    owner,
		NodeID:   node.NodeID,
		Created:  now,
		Modified: now,
		Accessed: now,
	}
	r.files[filename] = fr
	node.FileCount++
	r.cache.Put(filename, node.NodeID)

	if err := r.persistLocked(); err != nil {
		// Persistence failures are logged by the caller (which has the
		// logger); in-memory state still advances per the error
		// handling design (§7): the operation is not aborted.
		return Endpoint{NodeID: node.NodeID, Host: node.Host, ClientPort: node.ClientPort}, err
	}

	return Endpoint{NodeID: node.NodeID, Host: node.Host, ClientPort: node.ClientPort}, nil
}

// pickPlacementNodeLocked selects the connected node with the fewest
// files, ties broken by earliest registration. Caller must hold r.mu.
func (r *Registry) pickPlacementNodeLocked() *NodeRecord {
	var best *NodeRecord
	for _, n := range r.nodes {
		if !n.Connected {
			continue
		}
		if best == nil {
			best = n
			continue
		}
		if n.FileCount < best.FileCount {
			best = n
			continue
		}
		if n.FileCount == best.FileCount && n.registrationOrder < best.registrationOrder {
			best = n
		}
	}
	return best
}

// LookupFile resolves filename to its hosting node's endpoint, consulting
// the LRU cache first and falling back to the files table on a miss or a
// stale/disconnected cache entry.
//
// Parameters:
//   - filename: the registry key to resolve
//
// Returns:
//   - the hosting node's dial endpoint, distfserr.NotFound if filename is
//     unknown, or distfserr.StorageDown if the hosting node is currently
//     marked unhealthy
//
// Example:
//
//	endpoint, err := reg.LookupFile("notes.txt")
func (r *Registry) LookupFile(filename string) (Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lookupFileLocked(filename)
}

func (r *Registry) lookupFileLocked(filename string) (Endpoint, error) {
	if nodeID, ok := r.cache.Get(filename); ok {
		if node, ok := r.nodes[nodeID]; ok && node.Connected {
			return Endpoint{NodeID: node.NodeID, Host: node.Host, ClientPort: node.ClientPort}, nil
		}
	}

	fr, ok := r.files[filename]
	if !ok {
		r.cache.Invalidate(filename)
		return Endpoint{}, distfserr.NotFound(filename)
	}

	node, ok := r.nodes[fr.NodeID]
	if !ok || !node.Connected {
		return Endpoint{}, distfserr.StorageDown(fr.NodeID)
	}

	r.cache.Put(filename, node.NodeID)
	return Endpoint{NodeID: node.NodeID, Host: node.Host, ClientPort: node.ClientPort}, nil
}

// FileRecordSnapshot returns a defensive copy of a FileRecord.
func (r *Registry) FileRecordSnapshot(filename string) (FileRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fr, ok := r.files[filename]
	if !ok {
		return FileRecord{}, false
	}
	return *fr, true
}

// ViewFiles returns the VIEW projection of every known file.
func (r *Registry) ViewFiles() []FileSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]FileSummary, 0, len(r.files))
	for _, fr := range r.files {
		out = append(out, FileSummary{
			Filename:  fr.Filename,
			Owner:     fr.Owner,
			WordCount: fr.WordCount,
			CharCount: fr.CharCount,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out
}

// UpdateFileCounters refreshes the cached word/char counts and
// modified/accessed timestamps for filename after a storage-node write,
// so VIEW reflects current content without the coordinator re-reading
// the file body.
func (r *Registry) UpdateFileCounters(filename string, wordCount, charCount int, accessor string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fr, ok := r.files[filename]
	if !ok {
		return
	}
	fr.WordCount = wordCount
	fr.CharCount = charCount
	fr.LastAccessor = accessor
	fr.Modified = time.Now()
	fr.Accessed = fr.Modified

	_ = r.persistLocked()
}

// DeleteFile removes filename from the registry. Only the owner may
// delete a file: Registry checks requester against the recorded owner
// itself and returns distfserr.Unauthorized otherwise, since it is the
// single source of truth for who owns what.
func (r *Registry) DeleteFile(filename, requester string) (nodeID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fr, ok := r.files[filename]
	if !ok {
		return "", distfserr.NotFound(filename)
	}
	if fr.Owner != requester {
		return "", distfserr.Unauthorized("only the owner may delete " + filename)
	}

	nodeID = fr.NodeID
	delete(r.files, filename)
	r.cache.Invalidate(filename)

	if err := r.persistLocked(); err != nil {
		return nodeID, err
	}
	return nodeID, nil
}

// AcquireLease grants holder an exclusive reservation on
// (filename, sentenceIndex). Re-entrant: repeated acquisition by the
// current holder succeeds. Returns distfserr.NotFound if the file is
// unknown and distfserr.Locked if another user holds the lease.
func (r *Registry) AcquireLease(filename string, sentenceIndex int, holder string) (Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.files[filename]; !ok {
		return Endpoint{}, distfserr.NotFound(filename)
	}

	key := LeaseKey{Filename: filename, SentenceIndex: sentenceIndex}
	if lease, ok := r.leases[key]; ok {
		if lease.Holder != holder {
			return Endpoint{}, distfserr.Locked(lease.Holder)
		}
		return r.lookupFileLocked(filename)
	}

	r.leases[key] = &SentenceLease{
		Filename:      filename,
		SentenceIndex: sentenceIndex,
		Holder:        holder,
		Granted:       time.Now(),
	}
	return r.lookupFileLocked(filename)
}

// ReleaseLease removes a lease held by holder. Returns
// distfserr.InvalidParameters if no such lease exists and
// distfserr.Unauthorized if it is held by someone else.
func (r *Registry) ReleaseLease(filename string, sentenceIndex int, holder string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := LeaseKey{Filename: filename, SentenceIndex: sentenceIndex}
	lease, ok := r.leases[key]
	if !ok {
		return distfserr.InvalidParameters("no lease held on this sentence")
	}
	if lease.Holder != holder {
		return distfserr.Unauthorized("lease held by " + lease.Holder)
	}

	delete(r.leases, key)
	return nil
}

// RequestAccess records a new pending AccessRequest, overwriting any
// prior denied entry for the same (filename, requester) pair — a fresh
// request after a DENY is allowed (see DESIGN.md Open Question
// decisions).
func (r *Registry) RequestAccess(filename, requester string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fr, ok := r.files[filename]
	if !ok {
		return distfserr.NotFound(filename)
	}

	key := RequestKey{Filename: filename, Requester: requester}
	r.requests[key] = &AccessRequest{
		Filename:  filename,
		Requester: requester,
		Owner:     fr.Owner,
		Requested: time.Now(),
		Pending:   true,
	}
	return nil
}

// ViewRequests returns all pending access requests for files owned by
// owner.
func (r *Registry) ViewRequests(owner string) []AccessRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []AccessRequest
	for _, req := range r.requests {
		if req.Pending && req.Owner == owner {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Filename != out[j].Filename {
			return out[i].Filename < out[j].Filename
		}
		return out[i].Requester < out[j].Requester
	})
	return out
}

// ResolveRequest marks a pending request granted or denied. Only the
// file's current owner may resolve it. Returns the resolved
// AccessRequest so the caller (coordinator) can act on it (APPROVE
// contacts the hosting node to update its ACL).
func (r *Registry) ResolveRequest(filename, requester, resolver string, grant bool) (AccessRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fr, ok := r.files[filename]
	if !ok {
		return AccessRequest{}, distfserr.NotFound(filename)
	}
	if fr.Owner != resolver {
		return AccessRequest{}, distfserr.Unauthorized("only the owner may resolve access requests")
	}

	key := RequestKey{Filename: filename, Requester: requester}
	req, ok := r.requests[key]
	if !ok || !req.Pending {
		return AccessRequest{}, distfserr.InvalidParameters("no pending request from " + requester)
	}

	req.Pending = false
	req.Granted = grant
	return *req, nil
}

// persistLocked rewrites the flat registry file. Caller must hold r.mu.
// A nil store makes this a no-op, used by unit tests that don't want a
// filesystem dependency.
func (r *Registry) persistLocked() error {
	if r.store == nil {
		return nil
	}
	records := make([]FileRecord, 0, len(r.files))
	for _, fr := range r.files {
		records = append(records, *fr)
	}
	return r.store.Save(records)
}
