// Package wire reassembles socket reads into logical commands.
package wire

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/unaxfromsibiria/roomb-go/internal/protocol"
)

// ErrEndOfStream is returned when a read yields 0 or 1 bytes, the
// boundary condition treated as connection end.
var ErrEndOfStream = errors.New("wire: end of stream")

// Framer reads one JSON record per socket read and decodes it into a
// ClientFrame.
type Framer struct {
	r     io.Reader
	buf   []byte
	label string
}

// NewFramer creates a Framer reading up to bufSize bytes at a time
// from r. label is used in diagnostic log lines (e.g. the remote
// address).
func NewFramer(r io.Reader, bufSize int, label string) *Framer {
	return &Framer{r: r, buf: make([]byte, bufSize), label: label}
}

// ReadFrame performs one socket read and attempts to decode it as a
// ClientFrame. It returns (frame, true, nil) on a well-formed frame,
// (zero, false, nil) when the read was non-empty but failed to
// decode (the caller should drop it and keep the connection open),
// and (zero, false, err) on end-of-stream or a read error.
func (f *Framer) ReadFrame() (protocol.ClientFrame, bool, error) {
	n, err := f.r.Read(f.buf)
	if err != nil {
		return protocol.ClientFrame{}, false, err
	}
	if n <= 1 {
		return protocol.ClientFrame{}, false, ErrEndOfStream
	}

	var frame protocol.ClientFrame
	if err := json.Unmarshal(f.buf[:n], &frame); err != nil {
		slog.Warn("malformed frame dropped", "addr", f.label, "error", err)
		return protocol.ClientFrame{}, false, nil
	}
	return frame, true, nil
}

// Fold merges a frame into the in-progress command: the first frame
// of a new command calls Setup, a continuation frame calls Append.
// Fold returns true once the command is complete (full=true).
func Fold(cmd *protocol.Command, frame protocol.ClientFrame) bool {
	if cmd.IsNew() {
		cmd.Setup(frame)
	} else {
		cmd.Append(frame)
	}
	return cmd.Full
}
