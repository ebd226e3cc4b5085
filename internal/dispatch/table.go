// Package dispatch implements the bounded, slot-based request/answer
// exchange between connection handlers and worker goroutines.
package dispatch

import (
	"sync"
	"time"

	"github.com/unaxfromsibiria/roomb-go/internal/protocol"
	"github.com/unaxfromsibiria/roomb-go/internal/session"
)

const (
	// StdLoopDelay is the sleep applied on lock contention.
	StdLoopDelay = 10 * time.Millisecond
	// NotargetDelay is the sleep applied when no work is available.
	NotargetDelay = 100 * time.Millisecond
	// MinPoolSize is the floor applied to the slot count (mirrors
	// config.MinCommandPoolSize; duplicated here so this package has
	// no dependency on internal/config).
	MinPoolSize = 8
)

// slot is one cell shared by the command, answer, and session
// vectors; the three stay index-aligned for the lifetime of one
// request/response cycle.
type slot struct {
	cmd  protocol.Command
	ans  protocol.Answer
	sess session.Snapshot
}

// Table is the process-wide dispatch table: B fixed slots behind one
// table-wide mutex, plus a closed_cuids set behind its own mutex.
type Table struct {
	mu    sync.Mutex
	slots []slot

	closedMu  sync.Mutex
	closedSet map[string]struct{}
}

// New creates a Table with size = max(MinCommandPoolSize, size).
func New(size int) *Table {
	if size < MinPoolSize {
		size = MinPoolSize
	}
	return &Table{
		slots:     make([]slot, size),
		closedSet: make(map[string]struct{}),
	}
}

// Size returns the number of slots B.
func (t *Table) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

// Grow extends the table to newSize slots when a config reload raises
// the configured command buffer size. In-flight slots keep their
// index, so a live table is only ever extended, never truncated: a
// newSize at or below the current size is a no-op.
func (t *Table) Grow(newSize int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if newSize <= len(t.slots) {
		return
	}
	t.slots = append(t.slots, make([]slot, newSize-len(t.slots))...)
}

// Post claims a free command slot, copies cmd and the session
// snapshot into it, and returns the slot index.
// When wait is true and the table is full, Post retries with
// StdLoopDelay until a slot frees; when wait is false it returns
// (-1, false) immediately.
func (t *Table) Post(cmd protocol.Command, snap session.Snapshot, wait bool) (int, bool) {
	for {
		idx, ok := t.tryPost(cmd, snap)
		if ok {
			return idx, true
		}
		if !wait {
			return -1, false
		}
		time.Sleep(StdLoopDelay)
	}
}

func (t *Table) tryPost(cmd protocol.Command, snap session.Snapshot) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.slots {
		s := &t.slots[i]
		if s.cmd.Busy || s.cmd.Full {
			continue
		}
		s.cmd.Busy = true
		cmd.Busy = true
		s.cmd = cmd
		s.cmd.Busy = false
		s.sess = snap
		return i, true
	}
	return -1, false
}

// Await waits for the answer posted at slot idx whose Cuid matches
// expectedCuid, returning a copy of that answer and the session
// snapshot a worker wrote back. A stale answer for a different CUID
// is left untouched and retried.
func (t *Table) Await(idx int, expectedCuid string, wait bool) (protocol.Answer, session.Snapshot, bool) {
	for {
		ans, snap, ok := t.tryAwait(idx, expectedCuid)
		if ok {
			return ans, snap, true
		}
		if !wait {
			return protocol.Answer{}, session.Snapshot{}, false
		}
		time.Sleep(StdLoopDelay)
	}
}

func (t *Table) tryAwait(idx int, expectedCuid string) (protocol.Answer, session.Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.slots[idx]
	if s.ans.Busy {
		return protocol.Answer{}, session.Snapshot{}, false
	}
	if s.ans.Sent || s.ans.Cuid != expectedCuid {
		// Either nothing posted yet, or a stale/foreign answer, not
		// ours; leave the slot alone and retry.
		return protocol.Answer{}, session.Snapshot{}, false
	}
	ans := s.ans
	snap := s.sess
	s.ans.Reset()
	s.sess = session.Snapshot{}
	return ans, snap, true
}

// ClaimCommand finds the first slot with Full=true, Busy=false,
// claims it, and returns a copy of the command plus its session
// snapshot. The command slot is cleared and released before
// ClaimCommand returns, freeing it for new posts while the worker
// executes the handler.
func (t *Table) ClaimCommand() (int, protocol.Command, session.Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.slots {
		s := &t.slots[i]
		if !s.cmd.Full || s.cmd.Busy {
			continue
		}
		s.cmd.Busy = true
		cmd := s.cmd
		snap := s.sess
		s.cmd.Reset()
		return i, cmd, snap, true
	}
	return -1, protocol.Command{}, session.Snapshot{}, false
}

// PublishAnswer writes the mutated session snapshot and the answer
// into slot idx, the same index the command was claimed from: command
// and answer stay coupled to one slot for the lifetime of a
// request/response cycle.
func (t *Table) PublishAnswer(idx int, snap session.Snapshot, ans protocol.Answer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.slots[idx]
	s.sess = snap
	ans.Busy = false
	ans.Sent = false
	s.ans = ans
}

// MarkClosed records a CUID as belonging to a now-closed connection.
// closed_cuids is only written and checked for membership; nothing
// acts on its contents.
func (t *Table) MarkClosed(cuid string) {
	if cuid == "" {
		return
	}
	t.closedMu.Lock()
	defer t.closedMu.Unlock()
	t.closedSet[cuid] = struct{}{}
}

// IsClosed reports whether cuid has been recorded as closed. The
// connection handler's close path uses it to confirm its own insert;
// no other code reads this set.
func (t *Table) IsClosed(cuid string) bool {
	t.closedMu.Lock()
	defer t.closedMu.Unlock()
	_, ok := t.closedSet[cuid]
	return ok
}
