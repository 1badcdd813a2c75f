package wire

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// WriteRecord sends r over conn, looping until the entire RecordSize-byte
// frame has been written. Short writes are routine on a TCP socket and are
// not errors in themselves.
func WriteRecord(conn net.Conn, r Record) error {
	buf, err := r.Encode()
	if err != nil {
		return err
	}

	written := 0
	for written < len(buf) {
		n, err := conn.Write(buf[written:])
		if err != nil {
			return fmt.Errorf("wire: write: %w", err)
		}
		written += n
	}
	return nil
}

// ReadRecord reads one RecordSize-byte frame from conn, looping until the
// full frame has arrived or the peer closes the connection mid-frame (an
// error, since a partial record is never a valid record).
func ReadRecord(conn net.Conn) (Record, error) {
	buf := make([]byte, RecordSize)
	read := 0
	for read < len(buf) {
		n, err := conn.Read(buf[read:])
		read += n
		if err != nil {
			if err == io.EOF && read == 0 {
				return Record{}, io.EOF
			}
			return Record{}, fmt.Errorf("wire: read: %w", err)
		}
	}
	return Decode(buf)
}

// Call performs one request/response round trip: write req, read and
// return the response. Call sets no deadline of its own; a conn obtained
// from Dial already carries one, so the round trip cannot block
// indefinitely on a peer.
func Call(conn net.Conn, req Record) (Record, error) {
	if err := WriteRecord(conn, req); err != nil {
		return Record{}, err
	}
	return ReadRecord(conn)
}

// Dial connects to addr with a bounded timeout and sets a read/write
// deadline of the same length on the returned connection, so every
// operation on it is time-bounded.
func Dial(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// SplitArgs splits a `|`-separated data payload into its component
// fields, as used for multi-argument commands ("src|dst",
// "filename|tag") and endpoint advertisements ("host|port").
func SplitArgs(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	return strings.Split(string(data), "|")
}

// JoinArgs packs fields into a `|`-separated ASCII payload.
func JoinArgs(fields ...string) []byte {
	return []byte(strings.Join(fields, "|"))
}

// Endpoint formats a host/port pair the way endpoint advertisements are
// packed on the wire ("host|port").
func Endpoint(host string, port int) []byte {
	return JoinArgs(host, strconv.Itoa(port))
}

// ParseEndpoint parses a "host|port" payload.
func ParseEndpoint(data []byte) (host string, port int, err error) {
	parts := SplitArgs(data)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("wire: malformed endpoint %q", string(data))
	}
	port, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, fmt.Errorf("wire: malformed endpoint port %q: %w", parts[1], err)
	}
	return parts[0], port, nil
}

// NodeRegistration parses a node registration payload of the form
// "node_id|host|coord_port|client_port".
type NodeRegistration struct {
	NodeID     string
	Host       string
	CoordPort  int
	ClientPort int
}

// ParseNodeRegistration decodes a MsgRegisterNode record's data field.
func ParseNodeRegistration(data []byte) (NodeRegistration, error) {
	parts := SplitArgs(data)
	if len(parts) != 4 {
		return NodeRegistration{}, fmt.Errorf("wire: malformed node registration %q", string(data))
	}
	coordPort, err := strconv.Atoi(parts[2])
	if err != nil {
		return NodeRegistration{}, fmt.Errorf("wire: malformed coord_port %q: %w", parts[2], err)
	}
	clientPort, err := strconv.Atoi(parts[3])
	if err != nil {
		return NodeRegistration{}, fmt.Errorf("wire: malformed client_port %q: %w", parts[3], err)
	}
	return NodeRegistration{
		NodeID:     parts[0],
		Host:       parts[1],
		CoordPort:  coordPort,
		ClientPort: clientPort,
	}, nil
}

// EncodeNodeRegistration packs a NodeRegistration into its wire payload.
func EncodeNodeRegistration(reg NodeRegistration) []byte {
	return JoinArgs(reg.NodeID, reg.Host, strconv.Itoa(reg.CoordPort), strconv.Itoa(reg.ClientPort))
}
