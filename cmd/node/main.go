// Package main implements a distfs storage node: the on-disk text file
// engine that holds content, metadata, ACL, undo and checkpoint state
// for the files the coordinator has placed on it.
//
// Architecture:
//
//	┌────────────────────────────────────────────┐
//	│                 Storage node                 │
//	├──────────────────────────────────────────────┤
//	│  TCP listener (fixed-size wire.Record frames)│
//	│    MsgCommand -> dispatch(Command)           │
//	│    dialed only by the coordinator, which     │
//	│    proxies client traffic byte-for-byte       │
//	├──────────────────────────────────────────────┤
//	│  Components:                                  │
//	│    fsengine.Engine - content/meta/undo/       │
//	│                      checkpoint trees         │
//	└──────────────────────────────────────────────┘
//
// On startup, a node registers with the coordinator and then sends a
// periodic heartbeat (see wire.NewHeartbeat) so the coordinator's
// passive liveness sweep never marks it unhealthy while it's running.
//
// Configuration is read from environment variables: NODE_ID (required),
// NODE_LISTEN, NODE_HOST, COORDINATOR_ADDR (required), DISTFS_DATA_DIR,
// NODE_LOG_LEVEL, HEARTBEAT_INTERVAL.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dreamware/distfs/internal/distfserr"
	"github.com/dreamware/distfs/internal/fsengine"
	"github.com/dreamware/distfs/internal/logging"
	"github.com/dreamware/distfs/internal/wire"
)

// logFatal is a variable so tests can intercept a fatal configuration or
// registration error without killing the test process.
var logFatal = func(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	cfg := loadConfig()
	logging.Init(logging.Config{Level: logging.ParseLevel(cfg.logLevel), JSONOutput: true})
	log := logging.WithNodeID(cfg.nodeID)

	engine, err := fsengine.New(cfg.nodeID, cfg.dataDir)
	if err != nil {
		logFatal("failed to initialize file engine: %v", err)
		return
	}

	srv := &server{engine: engine, logger: log}

	ln, err := net.Listen("tcp", cfg.listen)
	if err != nil {
		logFatal("failed to listen on %s: %v", cfg.listen, err)
		return
	}
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		logFatal("failed to parse listener address: %v", err)
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		logFatal("failed to parse listener port: %v", err)
		return
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("node listening")

	go srv.acceptLoop(ln)

	ctx, cancel := context.WithCancel(context.Background())
	go registerAndHeartbeat(ctx, cfg, port, log)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("node shutting down")
	cancel()
	ln.Close()
}

type config struct {
	nodeID            string
	listen            string
	host              string
	coordinatorAddr   string
	dataDir           string
	logLevel          string
	heartbeatInterval time.Duration
}

func loadConfig() config {
	return config{
		nodeID:            mustGetenv("NODE_ID"),
		listen:            getenv("NODE_LISTEN", ":0"),
		host:              getenv("NODE_HOST", "127.0.0.1"),
		coordinatorAddr:   mustGetenv("COORDINATOR_ADDR"),
		dataDir:           getenv("DISTFS_DATA_DIR", "./data/node"),
		logLevel:          getenv("NODE_LOG_LEVEL", "info"),
		heartbeatInterval: getDuration("HEARTBEAT_INTERVAL", 10*time.Second),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustGetenv(k string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	logFatal("missing required env %s", k)
	return ""
}

func getDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// registerAndHeartbeat registers with the coordinator, retrying with a
// fixed backoff, then sends a heartbeat every interval until ctx is
// canceled. Registration failure after all retries is fatal: a node
// that the coordinator doesn't know about can never receive forwarded
// traffic.
func registerAndHeartbeat(ctx context.Context, cfg config, port int, log zerolog.Logger) {
	reg := wire.NodeRegistration{NodeID: cfg.nodeID, Host: cfg.host, CoordPort: port, ClientPort: port}

	payload := wire.EncodeNodeRegistration(reg)
	regReq := wire.Record{MsgType: wire.MsgRegisterNode, Data: payload, DataLen: uint32(len(payload))}

	var lastErr error
	for i := 0; i < 10; i++ {
		if lastErr = callCoordinator(cfg.coordinatorAddr, regReq); lastErr == nil {
			log.Info().Str("coordinator", cfg.coordinatorAddr).Msg("registered with coordinator")
			break
		}
		log.Warn().Err(lastErr).Int("attempt", i+1).Msg("register retry")
		time.Sleep(400 * time.Millisecond)
	}
	if lastErr != nil {
		logFatal("failed to register with coordinator: %v", lastErr)
		return
	}

	ticker := time.NewTicker(cfg.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := callCoordinator(cfg.coordinatorAddr, wire.NewHeartbeat(cfg.nodeID)); err != nil {
				log.Warn().Err(err).Msg("heartbeat failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

func callCoordinator(addr string, req wire.Record) error {
	conn, err := wire.Dial(addr, 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := wire.Call(conn, req)
	if err != nil {
		return err
	}
	if resp.ErrorCode != wire.CodeSuccess {
		return fmt.Errorf("coordinator responded %s", wire.CodeName(resp.ErrorCode))
	}
	return nil
}

// server dispatches wire.Record commands forwarded by the coordinator to
// the file engine. It is dialed only by the coordinator (see the
// coordinator-proxy design decision in DESIGN.md); no end-user client
// connects to a node directly.
type server struct {
	engine *fsengine.Engine
	logger zerolog.Logger
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
	if req.MsgType != wire.MsgCommand {
		return errorResponse(distfserr.InvalidCommand("node only accepts command records"))
	}

	switch req.Command {
	case wire.CmdCreate:
		return s.cmdCreate(req)
	case wire.CmdRead:
		return s.cmdRead(req)
	case wire.CmdDelete:
		return s.cmdDelete(req)
	case wire.CmdWriteCommit, wire.CmdWrite:
		return s.cmdWriteCommit(req)
	case wire.CmdUndo:
		return s.cmdUndo(req)
	case wire.CmdInfo:
		return s.cmdInfo(req)
	case wire.CmdFileInfo:
		return s.cmdFileInfo(req)
	case wire.CmdCopy:
		return s.cmdCopy(req)
	case wire.CmdAddAccess:
		return s.cmdAddAccess(req)
	case wire.CmdRemAccess:
		return s.cmdRemAccess(req)
	case wire.CmdStream:
		return s.cmdStream(req)
	case wire.CmdCreateFolder:
		return s.cmdCreateFolder(req)
	case wire.CmdMove:
		return s.cmdMove(req)
	case wire.CmdViewFolder:
		return s.cmdViewFolder(req)
	case wire.CmdCheckpoint:
		return s.cmdCheckpoint(req)
	case wire.CmdViewCheckpoint:
		return s.cmdViewCheckpoint(req)
	case wire.CmdRevert:
		return s.cmdRevert(req)
	case wire.CmdListCheckpoints:
		return s.cmdListCheckpoints(req)
	default:
		return errorResponse(distfserr.InvalidCommand(fmt.Sprintf("unknown command %d", req.Command)))
	}
}

func (s *server) cmdCreate(req wire.Record) wire.Record {
	if err := s.engine.Create(req.Filename, req.Username); err != nil {
		return errorResponse(err)
	}
	return wire.NewResponse(wire.CodeSuccess, nil)
}

func (s *server) cmdRead(req wire.Record) wire.Record {
	data, err := s.engine.Read(req.Filename, req.Username)
	if err != nil {
		return errorResponse(err)
	}
	return wire.NewResponse(wire.CodeSuccess, data)
}

func (s *server) cmdDelete(req wire.Record) wire.Record {
	if err := s.engine.Delete(req.Filename, req.Username); err != nil {
		return errorResponse(err)
	}
	return wire.NewResponse(wire.CodeSuccess, nil)
}

// cmdWriteCommit parses the "sentence_index|word_index|word|word_index|word|..."
// payload into a sentence index and an ordered list of word edits.
func (s *server) cmdWriteCommit(req wire.Record) wire.Record {
	fields := wire.SplitArgs(req.Data[:req.DataLen])
	if len(fields) < 1 || len(fields)%2 != 1 {
		return errorResponse(distfserr.InvalidParameters("malformed write-commit payload"))
	}
	sentenceIndex, err := strconv.Atoi(fields[0])
	if err != nil {
		return errorResponse(distfserr.InvalidParameters("sentence index must be numeric"))
	}
	var edits []fsengine.WordEdit
	for i := 1; i < len(fields); i += 2 {
		wordIndex, err := strconv.Atoi(fields[i])
		if err != nil {
			return errorResponse(distfserr.InvalidParameters("word index must be numeric"))
		}
		edits = append(edits, fsengine.WordEdit{WordIndex: wordIndex, Word: fields[i+1]})
	}

	if err := s.engine.WriteCommit(req.Filename, req.Username, sentenceIndex, edits); err != nil {
		return errorResponse(err)
	}

	info, err := s.engine.Info(req.Filename, req.Username)
	if err != nil {
		return errorResponse(err)
	}
	return wire.NewResponse(wire.CodeSuccess, wire.JoinArgs(
		strconv.Itoa(info.WordCount), strconv.Itoa(info.CharCount)))
}

func (s *server) cmdUndo(req wire.Record) wire.Record {
	if err := s.engine.Undo(req.Filename, req.Username); err != nil {
		return errorResponse(err)
	}
	return wire.NewResponse(wire.CodeSuccess, nil)
}

func (s *server) cmdInfo(req wire.Record) wire.Record {
	info, err := s.engine.Info(req.Filename, req.Username)
	if err != nil {
		return errorResponse(err)
	}
	return wire.NewResponse(wire.CodeSuccess, encodeInfo(info))
}

func (s *server) cmdFileInfo(req wire.Record) wire.Record {
	fi, err := s.engine.FileInfo(req.Filename, req.Username)
	if err != nil {
		return errorResponse(err)
	}
	payload := append(encodeInfo(fi.Info), []byte("|"+fi.NodeID+"|"+strconv.FormatInt(fi.Bytes, 10))...)
	return wire.NewResponse(wire.CodeSuccess, payload)
}

// encodeInfo packs an fsengine.Info as "owner|word_count|char_count|sentence_count".
func encodeInfo(info fsengine.Info) []byte {
	return wire.JoinArgs(info.Owner, strconv.Itoa(info.WordCount), strconv.Itoa(info.CharCount), strconv.Itoa(info.SentenceCount))
}

func (s *server) cmdCopy(req wire.Record) wire.Record {
	args := wire.SplitArgs(req.Data[:req.DataLen])
	if len(args) != 1 || args[0] == "" {
		return errorResponse(distfserr.InvalidParameters("destination filename required"))
	}
	if err := s.engine.Copy(req.Filename, args[0], req.Username); err != nil {
		return errorResponse(err)
	}
	return wire.NewResponse(wire.CodeSuccess, nil)
}

// cmdAddAccess parses a "target|perm" payload.
func (s *server) cmdAddAccess(req wire.Record) wire.Record {
	args := wire.SplitArgs(req.Data[:req.DataLen])
	if len(args) != 2 {
		return errorResponse(distfserr.InvalidParameters("target and permission required"))
	}
	perm, err := fsengine.ParsePermission(args[1])
	if err != nil {
		return errorResponse(distfserr.InvalidParameters(err.Error()))
	}
	if err := s.engine.AddAccess(req.Filename, req.Username, args[0], perm); err != nil {
		return errorResponse(err)
	}
	return wire.NewResponse(wire.CodeSuccess, nil)
}

func (s *server) cmdRemAccess(req wire.Record) wire.Record {
	args := wire.SplitArgs(req.Data[:req.DataLen])
	if len(args) != 1 || args[0] == "" {
		return errorResponse(distfserr.InvalidParameters("target required"))
	}
	if err := s.engine.RemAccess(req.Filename, req.Username, args[0]); err != nil {
		return errorResponse(err)
	}
	return wire.NewResponse(wire.CodeSuccess, nil)
}

// cmdStream packs words as "|WORD|w1|WORD|w2..." per the wire protocol.
func (s *server) cmdStream(req wire.Record) wire.Record {
	words, err := s.engine.Stream(req.Filename, req.Username)
	if err != nil {
		return errorResponse(err)
	}
	var b strings.Builder
	for _, w := range words {
		b.WriteString("|WORD|")
		b.WriteString(w)
	}
	return wire.NewResponse(wire.CodeSuccess, []byte(b.String()))
}

func (s *server) cmdCreateFolder(req wire.Record) wire.Record {
	if err := s.engine.CreateFolder(req.Filename); err != nil {
		return errorResponse(err)
	}
	return wire.NewResponse(wire.CodeSuccess, nil)
}

func (s *server) cmdMove(req wire.Record) wire.Record {
	args := wire.SplitArgs(req.Data[:req.DataLen])
	if len(args) != 1 || args[0] == "" {
		return errorResponse(distfserr.InvalidParameters("destination path required"))
	}
	if err := s.engine.Move(req.Filename, args[0], req.Username); err != nil {
		return errorResponse(err)
	}
	return wire.NewResponse(wire.CodeSuccess, nil)
}

func (s *server) cmdViewFolder(req wire.Record) wire.Record {
	entries, err := s.engine.ViewFolder(req.Filename)
	if err != nil {
		return errorResponse(err)
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		kind := "F"
		if e.IsDir {
			kind = "D"
		}
		lines = append(lines, e.Name+":"+kind)
	}
	return wire.NewResponse(wire.CodeSuccess, wire.JoinArgs(lines...))
}

func (s *server) cmdCheckpoint(req wire.Record) wire.Record {
	args := wire.SplitArgs(req.Data[:req.DataLen])
	if len(args) != 1 || args[0] == "" {
		return errorResponse(distfserr.InvalidParameters("checkpoint tag required"))
	}
	if err := s.engine.Checkpoint(req.Filename, req.Username, args[0]); err != nil {
		return errorResponse(err)
	}
	return wire.NewResponse(wire.CodeSuccess, nil)
}

func (s *server) cmdViewCheckpoint(req wire.Record) wire.Record {
	args := wire.SplitArgs(req.Data[:req.DataLen])
	if len(args) != 1 || args[0] == "" {
		return errorResponse(distfserr.InvalidParameters("checkpoint tag required"))
	}
	content, err := s.engine.ViewCheckpoint(req.Filename, req.Username, args[0])
	if err != nil {
		return errorResponse(err)
	}
	return wire.NewResponse(wire.CodeSuccess, content)
}

func (s *server) cmdRevert(req wire.Record) wire.Record {
	args := wire.SplitArgs(req.Data[:req.DataLen])
	if len(args) != 1 || args[0] == "" {
		return errorResponse(distfserr.InvalidParameters("checkpoint tag required"))
	}
	if err := s.engine.Revert(req.Filename, req.Username, args[0]); err != nil {
		return errorResponse(err)
	}
	return wire.NewResponse(wire.CodeSuccess, nil)
}

func (s *server) cmdListCheckpoints(req wire.Record) wire.Record {
	checkpoints, err := s.engine.ListCheckpoints(req.Filename, req.Username)
	if err != nil {
		return errorResponse(err)
	}
	lines := make([]string, 0, len(checkpoints))
	for _, c := range checkpoints {
		lines = append(lines, c.Tag+":"+strconv.FormatInt(c.TakenAt.Unix(), 10))
	}
	return wire.NewResponse(wire.CodeSuccess, wire.JoinArgs(lines...))
}

func errorResponse(err error) wire.Record {
	return wire.NewResponse(distfserr.Code(err), []byte(err.Error()))
}
