// Package main implements the distfs coordinator: the cluster's single
// control plane for file/user/node registration, sentence-lease
// arbitration, least-loaded file placement, access-request brokering,
// liveness monitoring, and EXEC orchestration.
//
// Architecture:
//
//	┌────────────────────────────────────────────┐
//	│               Coordinator                   │
//	├──────────────────────────────────────────────┤
//	│  TCP listener (fixed-size wire.Record frames)│
//	│    MsgRegisterNode / MsgRegisterUser         │
//	│    MsgCommand  -> dispatch(Command)          │
//	├──────────────────────────────────────────────┤
//	│  Components:                                 │
//	│    registry.Registry  - files/users/nodes/   │
//	│                         leases/requests       │
//	│    healthmon.Monitor   - passive liveness sweep│
//	│    fsengine (on nodes) - reached via wire.Call│
//	└──────────────────────────────────────────────┘
//
// Configuration is read from environment variables (see SPEC_FULL.md
// §10.3): COORDINATOR_LISTEN, DISTFS_DATA_DIR, COORDINATOR_LOG_LEVEL,
// HEARTBEAT_THRESHOLD, HEALTH_TICK_INTERVAL, LRU_CACHE_SIZE.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/dreamware/distfs/internal/atomicfile"
	"github.com/dreamware/distfs/internal/distfserr"
	"github.com/dreamware/distfs/internal/healthmon"
	"github.com/dreamware/distfs/internal/logging"
	"github.com/dreamware/distfs/internal/registry"
	"github.com/dreamware/distfs/internal/wire"
)

func main() {
	cfg := loadConfig()
	logging.Init(logging.Config{Level: logging.ParseLevel(cfg.logLevel), JSONOutput: true})
	log := logging.WithComponent("coordinator")

	store := registry.NewStore(filepath.Join(cfg.dataDir, "file_registry.txt"))
	reg, err := registry.New(cfg.lruCacheSize, store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load registry from disk")
	}

	health := healthmon.New(reg, cfg.healthTickInterval, cfg.heartbeatThreshold, log)
	health.SetOnUnhealthy(func(nodeID string) {
		log.Warn().Str("node_id", nodeID).Msg("node marked unhealthy; its files are unreachable until it reconnects")
	})

	ctx, cancel := context.WithCancel(context.Background())
	go health.Start(ctx)

	srv := &server{reg: reg, logger: log, validate: validator.New()}

	ln, err := net.Listen("tcp", cfg.listen)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.listen).Msg("failed to listen")
	}
	log.Info().Str("addr", cfg.listen).Msg("coordinator listening")

	go srv.acceptLoop(ln)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("coordinator shutting down")
	cancel()
	health.Stop()
	ln.Close()
}

type config struct {
	listen             string
	dataDir            string
	logLevel           string
	heartbeatThreshold time.Duration
	healthTickInterval time.Duration
	lruCacheSize       int
}

func loadConfig() config {
	return config{
		listen:             getenv("COORDINATOR_LISTEN", ":5000"),
		dataDir:            getenv("DISTFS_DATA_DIR", "./data/coordinator"),
		logLevel:           getenv("COORDINATOR_LOG_LEVEL", "info"),
		heartbeatThreshold: getDuration("HEARTBEAT_THRESHOLD", 30*time.Second),
		healthTickInterval: getDuration("HEALTH_TICK_INTERVAL", 10*time.Second),
		lruCacheSize:       getInt("LRU_CACHE_SIZE", 1024),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// server holds the coordinator's runtime state: the registry and the
// health monitor are each internally synchronized, so server itself
// needs no additional locking.
type server struct {
	reg      *registry.Registry
	logger   zerolog.Logger
	validate *validator.Validate
}

func (s *server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *server) handleConn(conn net.Conn) {
	defer conn.Close()
	for {
		req, err := wire.ReadRecord(conn)
		if err != nil {
			return
		}

		resp := s.dispatch(req)
		if err := wire.WriteRecord(conn, resp); err != nil {
			return
		}
	}
}

func (s *server) dispatch(req wire.Record) wire.Record {
	switch req.MsgType {
	case wire.MsgRegisterNode:
		return s.handleRegisterNode(req)
	case wire.MsgRegisterUser:
		return s.handleRegisterUser(req)
	case wire.MsgCommand:
		return s.handleCommand(req)
	case wire.MsgNodeCommand:
		return s.handleHeartbeat(req)
	default:
		return errorResponse(distfserr.InvalidCommand("unknown message type"))
	}
}

func (s *server) handleRegisterNode(req wire.Record) wire.Record {
	reg, err := wire.ParseNodeRegistration(req.Data[:req.DataLen])
	if err != nil {
		return errorResponse(distfserr.InvalidParameters(err.Error()))
	}
	s.reg.RegisterNode(reg.NodeID, reg.Host, reg.CoordPort, reg.ClientPort)
	s.logger.Info().Str("node_id", reg.NodeID).Str("host", reg.Host).Msg("node registered")
	return wire.NewResponse(wire.CodeSuccess, nil)
}

// handleHeartbeat records liveness for the node named in req.Username,
// sent periodically between a node's full MsgRegisterNode calls so the
// health monitor's passive sweep sees a fresh LastHeartbeat without the
// node re-announcing its host/ports every time.
func (s *server) handleHeartbeat(req wire.Record) wire.Record {
	if req.Username == "" {
		return errorResponse(distfserr.InvalidParameters("node id required"))
	}
	s.reg.Heartbeat(req.Username)
	return wire.NewResponse(wire.CodeSuccess, nil)
}

func (s *server) handleRegisterUser(req wire.Record) wire.Record {
	if req.Username == "" {
		return errorResponse(distfserr.InvalidParameters("username required"))
	}
	s.reg.RegisterUser(req.Username, string(req.Data[:req.DataLen]))
	return wire.NewResponse(wire.CodeSuccess, nil)
}

func (s *server) handleCommand(req wire.Record) wire.Record {
	switch req.Command {
	case wire.CmdView:
		return s.cmdView()
	case wire.CmdList:
		return s.cmdList()
	case wire.CmdCreate:
		return s.cmdCreate(req)
	case wire.CmdDelete:
		return s.cmdDelete(req)
	case wire.CmdLockAcquire:
		return s.cmdLockAcquire(req)
	case wire.CmdLockRelease:
		return s.cmdLockRelease(req)
	case wire.CmdRequestAccess:
		return s.cmdRequestAccess(req)
	case wire.CmdViewRequests:
		return s.cmdViewRequests(req)
	case wire.CmdApproveRequest:
		return s.cmdResolveRequest(req, true)
	case wire.CmdDenyRequest:
		return s.cmdResolveRequest(req, false)
	case wire.CmdExec:
		return s.cmdExec(req)
	case wire.CmdRead, wire.CmdWrite, wire.CmdWriteCommit, wire.CmdInfo, wire.CmdFileInfo,
		wire.CmdAddAccess, wire.CmdRemAccess, wire.CmdStream, wire.CmdUndo, wire.CmdCopy,
		wire.CmdCreateFolder, wire.CmdMove, wire.CmdViewFolder, wire.CmdCheckpoint,
		wire.CmdViewCheckpoint, wire.CmdRevert, wire.CmdListCheckpoints:
		return s.forwardByFilename(req)
	default:
		return errorResponse(distfserr.InvalidCommand(fmt.Sprintf("unknown command %d", req.Command)))
	}
}

func (s *server) cmdView() wire.Record {
	files := s.reg.ViewFiles()
	lines := make([]string, 0, len(files))
	for _, f := range files {
		lines = append(lines, fmt.Sprintf("%s|%s|%d|%d", f.Filename, f.Owner, f.WordCount, f.CharCount))
	}
	return wire.NewResponse(wire.CodeSuccess, wire.JoinArgs(lines...))
}

// cmdList returns every registered username, per spec.md's LIST command.
func (s *server) cmdList() wire.Record {
	return wire.NewResponse(wire.CodeSuccess, wire.JoinArgs(s.reg.ListUsers()...))
}

func (s *server) cmdCreate(req wire.Record) wire.Record {
	if req.Username == "" || req.Filename == "" {
		return errorResponse(distfserr.InvalidParameters("username and filename required"))
	}

	endpoint, err := s.reg.CreateFile(req.Filename, req.Username)
	if err != nil {
		if endpoint.NodeID == "" {
			return errorResponse(err)
		}
		s.logger.Error().Err(err).Str("filename", req.Filename).Msg("failed to persist registry")
	}

	_, callErr := forwardToNode(endpoint, wire.NewCommand(wire.CmdCreate, req.Username, req.Filename, nil))
	if callErr != nil {
		s.reg.DeleteFile(req.Filename, req.Username)
		return errorResponse(distfserr.StorageDown(endpoint.NodeID))
	}
	return wire.NewResponse(wire.CodeSuccess, []byte(endpoint.NodeID))
}

func (s *server) cmdDelete(req wire.Record) wire.Record {
	endpoint, err := s.reg.LookupFile(req.Filename)
	if err != nil {
		return errorResponse(err)
	}

	if _, err := forwardToNode(endpoint, wire.NewCommand(wire.CmdDelete, req.Username, req.Filename, nil)); err != nil {
		return errorResponse(distfserr.StorageDown(endpoint.NodeID))
	}

	if _, err := s.reg.DeleteFile(req.Filename, req.Username); err != nil {
		return errorResponse(err)
	}
	return wire.NewResponse(wire.CodeSuccess, nil)
}

func (s *server) cmdLockAcquire(req wire.Record) wire.Record {
	idx, err := strconv.Atoi(string(req.Data[:req.DataLen]))
	if err != nil {
		return errorResponse(distfserr.InvalidParameters("sentence index must be numeric"))
	}
	endpoint, err := s.reg.AcquireLease(req.Filename, idx, req.Username)
	if err != nil {
		return errorResponse(err)
	}
	return wire.NewResponse(wire.CodeSuccess, []byte(endpoint.NodeID))
}

func (s *server) cmdLockRelease(req wire.Record) wire.Record {
	idx, err := strconv.Atoi(string(req.Data[:req.DataLen]))
	if err != nil {
		return errorResponse(distfserr.InvalidParameters("sentence index must be numeric"))
	}
	if err := s.reg.ReleaseLease(req.Filename, idx, req.Username); err != nil {
		return errorResponse(err)
	}
	return wire.NewResponse(wire.CodeSuccess, nil)
}

func (s *server) cmdRequestAccess(req wire.Record) wire.Record {
	if err := s.reg.RequestAccess(req.Filename, req.Username); err != nil {
		return errorResponse(err)
	}
	return wire.NewResponse(wire.CodeSuccess, nil)
}

func (s *server) cmdViewRequests(req wire.Record) wire.Record {
	reqs := s.reg.ViewRequests(req.Username)
	lines := make([]string, 0, len(reqs))
	for _, r := range reqs {
		lines = append(lines, fmt.Sprintf("%s|%s", r.Filename, r.Requester))
	}
	return wire.NewResponse(wire.CodeSuccess, wire.JoinArgs(lines...))
}

func (s *server) cmdResolveRequest(req wire.Record, grant bool) wire.Record {
	args := wire.SplitArgs(req.Data[:req.DataLen])
	if len(args) != 1 || args[0] == "" {
		return errorResponse(distfserr.InvalidParameters("requester username required"))
	}
	requester := args[0]

	resolved, err := s.reg.ResolveRequest(req.Filename, requester, req.Username, grant)
	if err != nil {
		return errorResponse(err)
	}

	if grant {
		endpoint, lookupErr := s.reg.LookupFile(req.Filename)
		if lookupErr == nil {
			forwardToNode(endpoint, wire.NewCommand(wire.CmdAddAccess, req.Username, req.Filename,
				wire.JoinArgs(resolved.Requester, "R")))
		}
	}
	return wire.NewResponse(wire.CodeSuccess, nil)
}

// cmdExec acts as a client of the hosting node: it reads the file's
// content over the wire, writes it to a coordinator-private temp path,
// marks it executable, runs it capturing combined stdout+stderr, and
// removes the temp file before replying. A non-zero exit is reported as
// EXEC_FAILED with the captured output attached. The temp path is unique
// per call so concurrent EXECs from different clients never collide.
func (s *server) cmdExec(req wire.Record) wire.Record {
	endpoint, err := s.reg.LookupFile(req.Filename)
	if err != nil {
		return errorResponse(err)
	}

	readResp, err := forwardToNode(endpoint, wire.NewCommand(wire.CmdRead, req.Username, req.Filename, nil))
	if err != nil {
		return errorResponse(distfserr.StorageDown(endpoint.NodeID))
	}
	if readResp.ErrorCode != wire.CodeSuccess {
		return readResp
	}
	data := readResp.Data[:readResp.DataLen]

	tmpPath := filepath.Join(os.TempDir(), atomicfile.TempName("distfs-exec"))
	if err := atomicfile.Write(tmpPath, data, 0o755); err != nil {
		return errorResponse(distfserr.Internal(err))
	}
	defer os.Remove(tmpPath)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, tmpPath)
	output, runErr := cmd.CombinedOutput()
	if runErr != nil {
		return errorResponse(distfserr.ExecFailed(string(output)))
	}
	return wire.NewResponse(wire.CodeSuccess, output)
}

// forwardByFilename handles every command whose semantics belong to
// fsengine: look up the hosting node and relay the request record
// byte-for-byte, returning the node's response unmodified.
func (s *server) forwardByFilename(req wire.Record) wire.Record {
	endpoint, err := s.reg.LookupFile(req.Filename)
	if err != nil {
		return errorResponse(err)
	}
	resp, err := forwardToNode(endpoint, req)
	if err != nil {
		return errorResponse(distfserr.StorageDown(endpoint.NodeID))
	}

	if req.Command == wire.CmdWriteCommit || req.Command == wire.CmdWrite {
		if resp.ErrorCode == wire.CodeSuccess {
			args := wire.SplitArgs(resp.Data[:resp.DataLen])
			if len(args) == 2 {
				wc, _ := strconv.Atoi(args[0])
				cc, _ := strconv.Atoi(args[1])
				s.reg.UpdateFileCounters(req.Filename, wc, cc, req.Username)
			}
		}
	}
	return resp
}

func forwardToNode(endpoint registry.Endpoint, req wire.Record) (wire.Record, error) {
	addr := net.JoinHostPort(endpoint.Host, strconv.Itoa(endpoint.ClientPort))
	conn, err := wire.Dial(addr, 5*time.Second)
	if err != nil {
		return wire.Record{}, err
	}
	defer conn.Close()
	return wire.Call(conn, req)
}

func errorResponse(err error) wire.Record {
	return wire.NewResponse(distfserr.Code(err), []byte(err.Error()))
}
