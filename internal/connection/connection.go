// Package connection runs the session state machine for one accepted
// socket.
package connection

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/unaxfromsibiria/roomb-go/internal/dispatch"
	"github.com/unaxfromsibiria/roomb-go/internal/protocol"
	"github.com/unaxfromsibiria/roomb-go/internal/session"
	"github.com/unaxfromsibiria/roomb-go/internal/wire"
)

// ConnectionFinishTimeout bounds the retry loop that records a
// closed connection's CUID.
const ConnectionFinishTimeout = 60 * time.Second

// Handle drives the request/response loop for one accepted socket
// until the connection closes. It owns the socket and closes it
// before returning.
func Handle(conn net.Conn, table *dispatch.Table, node, secret string, bufSize int) {
	defer conn.Close()

	addr := conn.RemoteAddr().String()
	label := addr
	framer := wire.NewFramer(conn, bufSize, label)
	state := &session.ConnectionState{}
	logConnectionOpened(addr)

	for {
		frame, ok, err := framer.ReadFrame()
		if err != nil {
			if err != io.EOF {
				slog.Debug("connection read ended", "addr", addr, "error", err)
			}
			break
		}
		if !ok {
			// Malformed frame: dropped already, connection stays open.
			continue
		}

		// The CUID is minted once per connection on its first frame and
		// then forced onto every subsequent frame, overriding whatever
		// the client echoes back in "cid"; the server is the sole
		// source of truth for this connection's identity.
		if state.Cuid == "" {
			state.Cuid = session.MintCuid(node, addr)
		}
		frame.Cid = state.Cuid

		full := wire.Fold(&state.Pending, frame)

		if protocol.NeedAuth(state.Pending.Target) && !state.Authenticated {
			slog.Warn("authentication required, closing connection", "addr", addr, "target", state.Pending.Target)
			state.Closed = true
			break
		}

		if !full {
			continue
		}

		cmd := state.Pending
		cmd.Cuid = state.Cuid
		cmd.Full = true
		state.Pending = protocol.Command{}

		snap := state.Snapshot()
		idx, posted := table.Post(cmd, snap, true)
		if !posted {
			slog.Error("failed to post command", "addr", addr, "cuid", cmd.Cuid)
			break
		}

		ans, returnedSnap, got := table.Await(idx, cmd.Cuid, true)
		if !got {
			slog.Error("no answer received for command", "addr", addr, "cuid", cmd.Cuid)
			break
		}
		state.ApplySnapshot(returnedSnap)
		logRequestCompleted(addr, cmd.Cuid, cmd.Target, ans.Target)

		if shouldClose := applyAnswer(conn, ans, state, addr); shouldClose {
			state.Closed = true
			break
		}

		time.Sleep(dispatch.NotargetDelay)
	}

	closeConnection(table, state, addr)
}

// applyAnswer writes the answer frame (unless Skip) and reports
// whether the connection must close.
func applyAnswer(conn net.Conn, ans protocol.Answer, state *session.ConnectionState, addr string) bool {
	switch ans.Target {
	case protocol.AnswerSkip:
		return false
	case protocol.AnswerQuit, protocol.AnswerError:
		writeFrame(conn, ans.Frame(), addr)
		return true
	case protocol.AnswerWhoAreYou:
		writeFrame(conn, ans.Frame(), addr)
		state.Authenticated = true
		return false
	default:
		writeFrame(conn, ans.Frame(), addr)
		return false
	}
}

func writeFrame(conn net.Conn, frame protocol.ServerFrame, addr string) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("failed to encode server frame", "addr", addr, "error", err)
		return
	}
	if _, err := conn.Write(data); err != nil {
		slog.Debug("connection write error", "addr", addr, "error", err)
	}
}

// closeConnection retries inserting the connection's CUID into the
// table's closed set until it succeeds or ConnectionFinishTimeout
// elapses.
func closeConnection(table *dispatch.Table, state *session.ConnectionState, addr string) {
	slog.Debug("connection closed", "addr", addr, "cuid", state.Cuid)
	logConnectionClosed(addr, state.Cuid)
	if state.Cuid == "" {
		return
	}

	deadline := time.Now().Add(ConnectionFinishTimeout)
	for {
		table.MarkClosed(state.Cuid)
		if table.IsClosed(state.Cuid) {
			return
		}
		if time.Now().After(deadline) {
			slog.Error("could not record closed connection before timeout", "addr", addr, "cuid", state.Cuid)
			return
		}
		time.Sleep(dispatch.StdLoopDelay)
	}
}
