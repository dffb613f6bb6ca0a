package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	serr "minimg/internal/errors"
)

// DefaultWorkers is the prefetch pool size used when none is configured
const DefaultWorkers = 4

// Pool is a fixed set of workers that decode claimed slots in the background.
// A slot is claimed before it is queued and claims never revert, so the queue
// never holds more than one entry per slot and can be sized to the store.
type Pool struct {
	store  *Store
	load   func(ctx context.Context, idx int)
	onFail func(error)

	ctx    context.Context
	tasks  chan int
	group  errgroup.Group
	mu     sync.Mutex
	closed bool

	queued   atomic.Int64
	inflight atomic.Int64
}

// NewPool starts workers goroutines. load must decode idx and Resolve it;
// once ctx is done, queued slots are resolved as abandoned instead. onFail,
// if not nil, is called when a worker dies from a panic.
func NewPool(ctx context.Context, workers int, store *Store, load func(ctx context.Context, idx int), onFail func(error)) *Pool {
	if workers < 1 {
		workers = DefaultWorkers
	}
	p := &Pool{
		store:  store,
		load:   load,
		onFail: onFail,
		ctx:    ctx,
		tasks:  make(chan int, store.Len()),
	}
	for w := 0; w < workers; w++ {
		p.group.Go(p.work)
	}
	return p
}

func (p *Pool) work() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError("prefetch worker", r)
			if p.onFail != nil {
				p.onFail(err)
			}
		}
	}()
	for idx := range p.tasks {
		p.queued.Add(-1)
		if p.ctx.Err() != nil {
			p.store.Resolve(idx, Outcome{Err: serr.NewDecodeError(p.store.Path(idx), idx, serr.ChannelClosed,
				fmt.Errorf("abandoned at shutdown"))})
			continue
		}
		p.inflight.Add(1)
		p.load(p.ctx, idx)
		p.inflight.Add(-1)
	}
	return nil
}

// Prefetch claims every Unread slot in [lo, hi), nearest to focus first, and
// queues it. Slots already Reading, Read or Err are skipped. It returns the
// number of slots queued and never blocks.
func (p *Pool) Prefetch(focus, lo, hi int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0
	}

	n := 0
	for _, idx := range nearestFirst(focus, lo, hi) {
		if p.store.Peek(idx).State != Unread {
			continue
		}
		if !p.store.TryClaim(idx) {
			continue
		}
		p.queued.Add(1)
		p.tasks <- idx
		n++
	}
	return n
}

// Pending returns the number of queued and running decodes
func (p *Pool) Pending() (queued, running int64) {
	return p.queued.Load(), p.inflight.Load()
}

// Close stops accepting work and waits for the workers to exit. Running
// decodes finish; queued ones are abandoned if the pool context is done and
// decoded otherwise. It returns the first worker failure.
func (p *Pool) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()
	return p.group.Wait()
}

func panicError(where string, r interface{}) error {
	if err, ok := r.(error); ok {
		return serr.Wrapf(err, "%s panicked", where)
	}
	return serr.Newf("%s panicked: %v", where, r)
}
