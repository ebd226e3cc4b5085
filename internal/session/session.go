// Package session holds per-connection authentication state: the
// session snapshot that rides along a dispatch-table slot, the
// connection-local state the wire framer accumulates into, CUID
// minting, and the nonce/SHA-1 handshake math.
package session

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/unaxfromsibiria/roomb-go/internal/protocol"
)

// Snapshot is the per-slot side-channel a connection task copies into
// a dispatch slot and a worker mutates and hands back.
type Snapshot struct {
	Cuid  string
	Nonce []byte
	Group protocol.Group
}

// NewSnapshot returns a snapshot with the default group.
func NewSnapshot() Snapshot {
	return Snapshot{Group: protocol.GroupService}
}

// State is the logical position of a connection in the fixed session
// state machine. It is derived, not stored independently, so it can
// never drift from the fields that drive it.
type State int

const (
	StateFresh State = iota
	StateChallenged
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "Fresh"
	case StateChallenged:
		return "Challenged"
	case StateAuthenticated:
		return "Authenticated"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ConnectionState is the per-connection state that lives outside the
// dispatch table for the lifetime of one accepted socket.
type ConnectionState struct {
	Authenticated bool
	Cuid          string
	Nonce         []byte
	Closed        bool

	// Pending is the command currently being assembled out of frames;
	// it becomes the posted Command once Full is true.
	Pending protocol.Command
}

// State reports the derived position in the state machine, used for
// logging and tests.
func (c *ConnectionState) State() State {
	switch {
	case c.Closed:
		return StateClosed
	case c.Authenticated:
		return StateAuthenticated
	case len(c.Nonce) > 0:
		return StateChallenged
	default:
		return StateFresh
	}
}

// ApplySnapshot folds a worker-returned snapshot back into connection
// state.
func (c *ConnectionState) ApplySnapshot(s Snapshot) {
	if s.Cuid != "" {
		c.Cuid = s.Cuid
	}
	if len(s.Nonce) > 0 {
		c.Nonce = s.Nonce
	}
}

// Snapshot builds the side-channel value to post alongside a command.
func (c *ConnectionState) Snapshot() Snapshot {
	return Snapshot{Cuid: c.Cuid, Nonce: c.Nonce, Group: protocol.GroupService}
}

// RandomPrintableASCII draws n independent uniform samples from byte
// values [48, 126), the nonce alphabet a SignIn challenge uses.
func RandomPrintableASCII(n int) []byte {
	const lo, hi = 48, 126
	// Bytes at or above limit are rejected so the modulo below maps
	// onto [lo, hi) without favouring the low values.
	const limit = 256 - 256%(hi-lo)
	raw := make([]byte, n)
	out := make([]byte, 0, n)
	for len(out) < n {
		if _, err := rand.Read(raw); err != nil {
			// crypto/rand.Read on the standard reader does not fail in
			// practice; degrade to a fixed-low fill rather than panic.
			for len(out) < n {
				out = append(out, lo)
			}
			break
		}
		for _, b := range raw {
			if int(b) < limit && len(out) < n {
				out = append(out, byte(lo+int(b)%(hi-lo)))
			}
		}
	}
	return out
}

// ComputeAuthDigest recomputes the SHA-1 hex digest the client is
// expected to have produced: SHA1(clientEchoedPrefix, storedNonce,
// secret). The client-echoed prefix is accepted on the wire but not
// itself checked against the stored nonce.
func ComputeAuthDigest(clientEchoedPrefix, storedNonce []byte, secret string) string {
	h := sha1.New()
	h.Write(clientEchoedPrefix)
	h.Write(storedNonce)
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}

// SplitAuthPayload splits an Auth command's data into the client's
// echoed 128-byte nonce prefix and the trailing hex digest.
func SplitAuthPayload(data string) (prefix, digest string) {
	if len(data) <= protocol.VerificationLineSize {
		return data, ""
	}
	return data[:protocol.VerificationLineSize], data[protocol.VerificationLineSize:]
}

// mintEntropy folds a fresh UUID's bytes into a 4-digit decimal
// string, giving the CUID's random component an independent entropy
// source from the wall clock it is paired with, so two connections
// accepted within the same clock tick still mint distinct CUIDs.
func mintEntropy() string {
	id := uuid.New()
	n := 0
	for _, b := range id[:2] {
		n = (n*256 + int(b)) % 10000
	}
	return fmt.Sprintf("%04d", n)
}

// MintCuid mints a CUID: "{node}-{addr}-{4-digit-random}-{sec}{nsec}".
func MintCuid(node, addr string) string {
	now := time.Now()
	return fmt.Sprintf("%s-%s-%s-%d%d", node, addr, mintEntropy(), now.Unix(), now.Nanosecond())
}
