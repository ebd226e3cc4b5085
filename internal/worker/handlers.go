package worker

import (
	"encoding/json"
	"log/slog"

	"github.com/unaxfromsibiria/roomb-go/internal/protocol"
	"github.com/unaxfromsibiria/roomb-go/internal/session"
)

// Handler executes one command against a mutable session snapshot and
// returns the answer target/data.
type Handler func(secret string, cmd protocol.Command, snap *session.Snapshot) (protocol.AnswerTarget, string)

// Handlers maps each command target to its handler.
var Handlers = map[protocol.CommandTarget]Handler{
	protocol.Unknown:    handleUnknown,
	protocol.Quit:       handleQuit,
	protocol.SignIn:     handleSignIn,
	protocol.Auth:       handleAuth,
	protocol.ClientData: handleClientData,
}

func handleUnknown(_ string, _ protocol.Command, _ *session.Snapshot) (protocol.AnswerTarget, string) {
	return protocol.AnswerUnknown, ""
}

func handleQuit(_ string, cmd protocol.Command, _ *session.Snapshot) (protocol.AnswerTarget, string) {
	if cmd.Data != "" {
		slog.Info("client quit", "cuid", cmd.Cuid, "data", cmd.Data)
	}
	return protocol.AnswerQuit, protocol.QuitMessage
}

func handleSignIn(_ string, _ protocol.Command, snap *session.Snapshot) (protocol.AnswerTarget, string) {
	nonce := session.RandomPrintableASCII(protocol.VerificationLineSize)
	snap.Nonce = nonce
	return protocol.AnswerVerificationRequest, string(nonce)
}

func handleAuth(secret string, cmd protocol.Command, snap *session.Snapshot) (protocol.AnswerTarget, string) {
	prefix, clientDigest := session.SplitAuthPayload(cmd.Data)
	expected := session.ComputeAuthDigest([]byte(prefix), snap.Nonce, secret)
	if expected == clientDigest {
		return protocol.AnswerWhoAreYou, "OK"
	}
	return protocol.AnswerError, protocol.AuthFailedMessage
}

func handleClientData(_ string, cmd protocol.Command, snap *session.Snapshot) (protocol.AnswerTarget, string) {
	var payload protocol.ClientDataPayload
	if err := json.Unmarshal([]byte(cmd.Data), &payload); err != nil {
		slog.Warn("malformed ClientData payload", "cuid", cmd.Cuid, "error", err)
		return protocol.AnswerError, ""
	}
	if payload.Group != 0 {
		snap.Group = payload.Group
	}
	if payload.Cid != "" {
		snap.Cuid = payload.Cid
	}
	return protocol.AnswerWait, ""
}
