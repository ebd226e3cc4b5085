package worker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/unaxfromsibiria/roomb-go/internal/protocol"
	"github.com/unaxfromsibiria/roomb-go/internal/session"
)

func TestHandleSignIn_IssuesNonceOfExpectedLength(t *testing.T) {
	var snap session.Snapshot
	target, data := handleSignIn("secret", protocol.Command{}, &snap)

	if target != protocol.AnswerVerificationRequest {
		t.Fatalf("target = %v", target)
	}
	if len(snap.Nonce) != protocol.VerificationLineSize {
		t.Fatalf("nonce len = %d", len(snap.Nonce))
	}
	if data != string(snap.Nonce) {
		t.Fatal("returned data should equal the stored nonce")
	}
}

func TestHandleAuth_AcceptsMatchingDigest(t *testing.T) {
	secret := "shared-secret"
	var snap session.Snapshot
	_, nonce := handleSignIn(secret, protocol.Command{}, &snap)

	prefix := strings.Repeat("z", protocol.VerificationLineSize)
	digest := session.ComputeAuthDigest([]byte(prefix), snap.Nonce, secret)

	cmd := protocol.Command{Data: prefix + digest}
	target, data := handleAuth(secret, cmd, &snap)

	if target != protocol.AnswerWhoAreYou {
		t.Fatalf("target = %v, data = %q, nonce=%q", target, data, nonce)
	}
	if data != "OK" {
		t.Fatalf("data = %q", data)
	}
}

func TestHandleAuth_RejectsWrongSecret(t *testing.T) {
	var snap session.Snapshot
	handleSignIn("real-secret", protocol.Command{}, &snap)

	prefix := strings.Repeat("z", protocol.VerificationLineSize)
	digest := session.ComputeAuthDigest([]byte(prefix), snap.Nonce, "wrong-secret")

	cmd := protocol.Command{Data: prefix + digest}
	target, data := handleAuth("real-secret", cmd, &snap)

	if target != protocol.AnswerError || data != protocol.AuthFailedMessage {
		t.Fatalf("target=%v data=%q, want Error/%q", target, data, protocol.AuthFailedMessage)
	}
}

func TestHandleClientData_UpdatesGroupAndCuid(t *testing.T) {
	snap := session.Snapshot{Group: protocol.GroupService, Cuid: "original"}
	cmd := protocol.Command{Data: fmt.Sprintf(`{"group":%d,"cid":"resumed"}`, protocol.GroupManager)}

	target, _ := handleClientData("secret", cmd, &snap)
	if target != protocol.AnswerWait {
		t.Fatalf("target = %v", target)
	}
	if snap.Group != protocol.GroupManager {
		t.Fatalf("group = %v, want %v", snap.Group, protocol.GroupManager)
	}
	if snap.Cuid != "resumed" {
		t.Fatalf("cuid = %q, want resumed", snap.Cuid)
	}
}

func TestHandleClientData_RepeatedCallIsIdempotent(t *testing.T) {
	snap := session.Snapshot{Group: protocol.GroupManager, Cuid: "resumed"}
	cmd := protocol.Command{Data: `{"group":2,"cid":"resumed"}`}

	for i := 0; i < 3; i++ {
		target, _ := handleClientData("secret", cmd, &snap)
		if target != protocol.AnswerWait {
			t.Fatalf("iteration %d: target = %v", i, target)
		}
	}
	if snap.Group != protocol.GroupManager || snap.Cuid != "resumed" {
		t.Fatalf("snapshot mutated unexpectedly: %+v", snap)
	}
}

func TestHandleClientData_MalformedPayloadReturnsError(t *testing.T) {
	var snap session.Snapshot
	target, _ := handleClientData("secret", protocol.Command{Data: "not-json"}, &snap)
	if target != protocol.AnswerError {
		t.Fatalf("target = %v, want AnswerError", target)
	}
}

func TestHandleQuit_ReturnsQuitMessage(t *testing.T) {
	target, data := handleQuit("secret", protocol.Command{}, &session.Snapshot{})
	if target != protocol.AnswerQuit || data != protocol.QuitMessage {
		t.Fatalf("target=%v data=%q", target, data)
	}
}

func TestHandlers_RegistersAllTargets(t *testing.T) {
	for _, target := range []protocol.CommandTarget{
		protocol.Unknown, protocol.Quit, protocol.SignIn, protocol.Auth, protocol.ClientData,
	} {
		if _, ok := Handlers[target]; !ok {
			t.Fatalf("no handler registered for %v", target)
		}
	}
}
