package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/unaxfromsibiria/roomb-go/internal/dispatch"
	"github.com/unaxfromsibiria/roomb-go/internal/protocol"
)

// Pool runs N long-lived goroutines scanning a dispatch.Table for
// full command slots. N can grow while the pool is running, driven by
// a config reload that raises the worker count.
type Pool struct {
	table  *dispatch.Table
	secret string

	mu sync.Mutex
	n  int
	wg sync.WaitGroup
}

// NewPool creates a worker pool of size n bound to table.
func NewPool(table *dispatch.Table, secret string, n int) *Pool {
	if n <= 0 {
		n = 1
	}
	return &Pool{table: table, secret: secret, n: n}
}

// Run starts the initial N worker goroutines and blocks until ctx is
// cancelled and every running worker, including any started later by
// GrowTo, has returned.
func (p *Pool) Run(ctx context.Context) {
	p.mu.Lock()
	n := p.n
	p.mu.Unlock()

	for i := 0; i < n; i++ {
		p.spawn(ctx, i)
	}
	<-ctx.Done()
	p.wg.Wait()
}

// GrowTo raises the running worker count to n by starting additional
// goroutines under ctx. Shrinking is not supported: a worker can be
// mid-ClaimCommand with no safe way to interrupt it short of dropping
// an in-flight command, so a smaller n is a no-op.
func (p *Pool) GrowTo(ctx context.Context, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.n < n {
		p.spawn(ctx, p.n)
		p.n++
	}
}

func (p *Pool) spawn(ctx context.Context, id int) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.loop(ctx, id)
	}()
}

func (p *Pool) loop(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		idx, cmd, snap, ok := p.table.ClaimCommand()
		if !ok {
			time.Sleep(dispatch.NotargetDelay)
			continue
		}

		handler, known := Handlers[cmd.Target]
		if !known {
			handler = handleUnknown
		}
		target, data := handler(p.secret, cmd, &snap)

		ans := protocol.Answer{Cuid: cmd.Cuid, Target: target, Data: data}
		p.table.PublishAnswer(idx, snap, ans)

		slog.Debug("worker processed command", "worker", id, "slot", idx, "cuid", cmd.Cuid, "target", cmd.Target, "answer", target)
	}
}
