package registry

import "time"

// FileRecord is the coordinator's metadata entry for one file. The
// coordinator never holds file bytes; NodeID names the single storage
// node currently responsible for the content.
type FileRecord struct {
	Filename     string
	Owner        string
	NodeID       string
	Created      time.Time
	Modified     time.Time
	Accessed     time.Time
	LastAccessor string
	WordCount    int
	CharCount    int
}

// UserRecord is a registered client identity. Lifetime is the
// coordinator process's lifetime — there is no expiry.
type UserRecord struct {
	Username   string
	Address    string
	Registered time.Time
}

// NodeRecord is a registered storage node. Connected flips to false when
// the health monitor observes a lapsed heartbeat; FileCount drives
// placement and is incremented by CreateFile, never decremented (a
// deleted file's slot is not reclaimed for placement purposes, matching
// the data model's silence on file_count being anything but
// monotonically-informative for load balancing).
type NodeRecord struct {
	NodeID        string
	Host          string
	CoordPort     int
	ClientPort    int
	Connected     bool
	LastHeartbeat time.Time
	FileCount     int
	ReplicaNodeID string

	// registrationOrder breaks placement ties deterministically; lower
	// values registered earlier. Not exported: callers never need to
	// see it, only the registry's own placement logic.
	registrationOrder int
}

// SentenceLease is a coordinator-held exclusive reservation on
// (filename, sentence_index), required before WRITE-COMMIT.
type SentenceLease struct {
	Filename      string
	SentenceIndex int
	Holder        string
	Granted       time.Time
}

// LeaseKey identifies a SentenceLease.
type LeaseKey struct {
	Filename      string
	SentenceIndex int
}

// AccessRequest is a pending or resolved request by a non-owner for read
// access to a file.
type AccessRequest struct {
	Filename  string
	Requester string
	Owner     string
	Requested time.Time
	Pending   bool
	Granted   bool
}

// RequestKey identifies an AccessRequest.
type RequestKey struct {
	Filename  string
	Requester string
}

// FileSummary is the VIEW projection of a FileRecord: owner and counts,
// without the internal node-placement or timestamp detail.
type FileSummary struct {
	Filename  string
	Owner     string
	WordCount int
	CharCount int
}

// Endpoint names a storage node's client-facing address.
type Endpoint struct {
	NodeID     string
	Host       string
	ClientPort int
}
