package protocol

import "fmt"

// Command is one logical client request, possibly assembled from
// several partial frames.
type Command struct {
	Cuid   string
	Target CommandTarget
	Data   string
	Part   bool // last frame folded into this command was partial
	Full   bool // command is complete and ready for a worker
	Busy   bool // slot exclusion flag; not meaningful outside a dispatch slot
}

// Reset clears the command back to its zero value, the shape a freed
// dispatch slot must be in.
func (c *Command) Reset() {
	*c = Command{}
}

// IsNew reports whether this command has not yet received any frame.
func (c *Command) IsNew() bool {
	return c.Data == "" && !c.Full && !c.Part
}

// Setup installs the first frame of a new command.
func (c *Command) Setup(frame ClientFrame) {
	c.Target = frame.Target
	c.Data = frame.Data
	c.Part = frame.Part
	c.Full = !frame.Part
	if frame.Cid != "" {
		c.Cuid = frame.Cid
	}
}

// Append folds a continuation frame (part=true on the prior frame)
// into the in-progress command.
func (c *Command) Append(frame ClientFrame) {
	c.Data += frame.Data
	c.Part = frame.Part
	c.Full = !frame.Part
	if frame.Cid != "" {
		c.Cuid = frame.Cid
	}
}

// String renders a short log-friendly description.
func (c *Command) String() string {
	return fmt.Sprintf("Command{cuid=%s target=%s full=%v part=%v}", c.Cuid, c.Target, c.Full, c.Part)
}

// Answer is one logical server reply.
type Answer struct {
	Cuid   string
	Target AnswerTarget
	Data   string
	Sent   bool // true once consumed by the connection task
	Busy   bool
}

// Reset clears the answer back to its zero value.
func (a *Answer) Reset() {
	*a = Answer{}
}

// Frame renders this answer as the wire-level ServerFrame.
func (a *Answer) Frame() ServerFrame {
	return ServerFrame{Target: a.Target, Cid: a.Cuid, Data: a.Data}
}
