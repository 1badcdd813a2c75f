// Package wire implements distfs's fixed-size binary record protocol: the
// single request/response record type that flows between clients,
// coordinator, and storage nodes over raw TCP.
//
// # Record layout
//
// Every record on the wire is exactly RecordSize bytes:
//
//	msg_type   uint32   one of MsgRegisterNode, MsgRegisterUser, MsgCommand, MsgResponse, MsgNodeCommand
//	command    uint32   operation code, request records only
//	error_code uint32   0 (CodeSuccess) on success, response records only
//	username   [64]byte zero-padded ASCII
//	filename   [256]byte zero-padded ASCII
//	data       [8192]byte zero-padded ASCII payload
//	data_len   uint32   valid byte count within data
//
// Multi-argument payloads are packed into data as `|`-separated ASCII
// fields (e.g. "src|dst", "filename|tag"). Endpoint advertisements use
// the same separator ("host|port"). STREAM replies pack words as
// "|WORD|w1|WORD|w2...".
//
// Senders encode the record once and loop in WriteRecord until every
// byte is written; receivers
// loop in ReadRecord until RecordSize bytes have arrived or the peer
// closes the connection — partial reads from a TCP stream are normal
// and must not be mistaken for a short record.
package wire
