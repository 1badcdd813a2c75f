package main

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dreamware/distfs/internal/registry"
	"github.com/dreamware/distfs/internal/wire"
)

func TestGetenvDefault(t *testing.T) {
	if got := getenv("DISTFS_TEST_UNSET_VAR", "fallback"); got != "fallback" {
		t.Fatalf("getenv = %q, want fallback", got)
	}
}

func TestGetenvOverride(t *testing.T) {
	t.Setenv("DISTFS_TEST_VAR", "value")
	if got := getenv("DISTFS_TEST_VAR", "fallback"); got != "value" {
		t.Fatalf("getenv = %q, want value", got)
	}
}

func TestGetDurationParsesOrFallsBack(t *testing.T) {
	t.Setenv("DISTFS_TEST_DURATION", "45s")
	if got := getDuration("DISTFS_TEST_DURATION", time.Second); got != 45*time.Second {
		t.Fatalf("getDuration = %v, want 45s", got)
	}
	if got := getDuration("DISTFS_TEST_DURATION_UNSET", time.Minute); got != time.Minute {
		t.Fatalf("getDuration fallback = %v, want 1m", got)
	}
}

func TestGetIntParsesOrFallsBack(t *testing.T) {
	t.Setenv("DISTFS_TEST_INT", "7")
	if got := getInt("DISTFS_TEST_INT", 1); got != 7 {
		t.Fatalf("getInt = %d, want 7", got)
	}
	if got := getInt("DISTFS_TEST_INT_UNSET", 3); got != 3 {
		t.Fatalf("getInt fallback = %d, want 3", got)
	}
}

func newTestServer(t *testing.T) *server {
	t.Helper()
	reg, err := registry.New(64, nil)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	return &server{reg: reg, validate: validator.New()}
}

func TestHandleRegisterNode(t *testing.T) {
	s := newTestServer(t)
	req := wire.Record{
		MsgType: wire.MsgRegisterNode,
		Data:    wire.EncodeNodeRegistration(wire.NodeRegistration{NodeID: "node-1", Host: "127.0.0.1", CoordPort: 6000, ClientPort: 6001}),
	}
	req.DataLen = uint32(len(req.Data))

	resp := s.dispatch(req)
	if resp.ErrorCode != wire.CodeSuccess {
		t.Fatalf("error code = %d, want success", resp.ErrorCode)
	}

	snap, ok := s.reg.NodeSnapshot("node-1")
	if !ok {
		t.Fatal("node-1 not registered")
	}
	if snap.Host != "127.0.0.1" || snap.ClientPort != 6001 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestHandleHeartbeatRefreshesLastHeartbeat(t *testing.T) {
	s := newTestServer(t)
	s.reg.RegisterNode("node-1", "127.0.0.1", 6000, 6001)
	s.reg.MarkUnhealthy("node-1")

	resp := s.dispatch(wire.NewHeartbeat("node-1"))
	if resp.ErrorCode != wire.CodeSuccess {
		t.Fatalf("error code = %d, want success", resp.ErrorCode)
	}

	snap, ok := s.reg.NodeSnapshot("node-1")
	if !ok {
		t.Fatal("node-1 missing after heartbeat")
	}
	if !snap.Connected {
		t.Fatal("heartbeat should mark the node connected again")
	}
}

func TestHandleHeartbeatRejectsEmptyNodeID(t *testing.T) {
	s := newTestServer(t)
	resp := s.dispatch(wire.NewHeartbeat(""))
	if resp.ErrorCode == wire.CodeSuccess {
		t.Fatal("expected error for an empty node id")
	}
}

func TestHandleRegisterUserRejectsEmptyUsername(t *testing.T) {
	s := newTestServer(t)
	resp := s.dispatch(wire.Record{MsgType: wire.MsgRegisterUser})
	if resp.ErrorCode == wire.CodeSuccess {
		t.Fatal("expected error registering with empty username")
	}
}

func TestCmdViewEmptyRegistry(t *testing.T) {
	s := newTestServer(t)
	resp := s.dispatch(wire.NewCommand(wire.CmdView, "alice", "", nil))
	if resp.ErrorCode != wire.CodeSuccess {
		t.Fatalf("error code = %d, want success", resp.ErrorCode)
	}
	if resp.DataLen != 0 {
		t.Fatalf("expected empty payload for empty registry, got %q", resp.Data[:resp.DataLen])
	}
}

func TestCmdListReturnsRegisteredUsernames(t *testing.T) {
	s := newTestServer(t)
	s.reg.RegisterUser("alice", "hash-a")
	s.reg.RegisterUser("bob", "hash-b")

	resp := s.dispatch(wire.NewCommand(wire.CmdList, "alice", "", nil))
	if resp.ErrorCode != wire.CodeSuccess {
		t.Fatalf("error code = %s", wire.CodeName(resp.ErrorCode))
	}
	names := wire.SplitArgs(resp.Data[:resp.DataLen])
	if len(names) != 2 {
		t.Fatalf("names = %v, want 2 entries", names)
	}
}

func TestCmdCreateFailsWithoutNodes(t *testing.T) {
	s := newTestServer(t)
	resp := s.dispatch(wire.NewCommand(wire.CmdCreate, "alice", "a.txt", nil))
	if resp.ErrorCode == wire.CodeSuccess {
		t.Fatal("expected failure creating a file with no connected nodes")
	}
}

func TestCmdLockAcquireAndReleaseRoundTrip(t *testing.T) {
	s := newTestServer(t)
	startFakeNode(t, s.reg, "node-1")

	create := s.dispatch(wire.NewCommand(wire.CmdCreate, "alice", "a.txt", nil))
	if create.ErrorCode != wire.CodeSuccess {
		t.Fatalf("create failed: code=%d", create.ErrorCode)
	}

	acquire := s.dispatch(wire.NewCommand(wire.CmdLockAcquire, "alice", "a.txt", []byte("0")))
	if acquire.ErrorCode != wire.CodeSuccess {
		t.Fatalf("lock acquire failed: code=%d", acquire.ErrorCode)
	}

	// A different holder is rejected while alice holds the lease.
	denied := s.dispatch(wire.NewCommand(wire.CmdLockAcquire, "bob", "a.txt", []byte("0")))
	if denied.ErrorCode == wire.CodeSuccess {
		t.Fatal("expected bob's acquire to be rejected while alice holds the lease")
	}

	release := s.dispatch(wire.NewCommand(wire.CmdLockRelease, "alice", "a.txt", []byte("0")))
	if release.ErrorCode != wire.CodeSuccess {
		t.Fatalf("lock release failed: code=%d", release.ErrorCode)
	}
}

func TestCmdRequestAccessLifecycle(t *testing.T) {
	s := newTestServer(t)
	startFakeNode(t, s.reg, "node-1")

	create := s.dispatch(wire.NewCommand(wire.CmdCreate, "alice", "a.txt", nil))
	if create.ErrorCode != wire.CodeSuccess {
		t.Fatalf("create failed: code=%d", create.ErrorCode)
	}

	reqAccess := s.dispatch(wire.NewCommand(wire.CmdRequestAccess, "bob", "a.txt", nil))
	if reqAccess.ErrorCode != wire.CodeSuccess {
		t.Fatalf("request access failed: code=%d", reqAccess.ErrorCode)
	}

	view := s.dispatch(wire.NewCommand(wire.CmdViewRequests, "alice", "", nil))
	if view.ErrorCode != wire.CodeSuccess || view.DataLen == 0 {
		t.Fatalf("expected a pending request, got code=%d len=%d", view.ErrorCode, view.DataLen)
	}

	approve := s.dispatch(wire.NewCommand(wire.CmdApproveRequest, "alice", "a.txt", []byte("bob")))
	if approve.ErrorCode != wire.CodeSuccess {
		t.Fatalf("approve failed: code=%d", approve.ErrorCode)
	}
}

// startFakeNode registers a minimal node with the registry and spins up a
// TCP listener standing in for a real storage node, so CREATE/DELETE/etc
// forwarding has somewhere to connect. It replies CodeSuccess to every
// command it receives.
func startFakeNode(t *testing.T, reg *registry.Registry, nodeID string) net.Listener {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	reg.RegisterNode(nodeID, host, port, port)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				for {
					req, err := wire.ReadRecord(conn)
					if err != nil {
						return
					}
					resp := wire.NewResponse(wire.CodeSuccess, wire.JoinArgs("0", "0"))
					if err := wire.WriteRecord(conn, resp); err != nil {
						return
					}
				}
			}()
		}
	}()

	return ln
}
