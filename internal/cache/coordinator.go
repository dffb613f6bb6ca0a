package cache

import (
	"sync/atomic"

	"minimg/internal/log"
)

// CoordinatorState is the state of the request loop
type CoordinatorState int32

const (
	Idle CoordinatorState = iota
	Resolving
	Terminated
)

func (s CoordinatorState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resolving:
		return "resolving"
	default:
		return "terminated"
	}
}

// coordinator is the single goroutine that owns the focus index. It turns
// requests into resolved slots, publishes results and schedules prefetch.
type coordinator struct {
	l     *Loader
	focus atomic.Int64
	state atomic.Int32
	done  chan struct{}
}

func newCoordinator(l *Loader, start int) *coordinator {
	c := &coordinator{l: l, done: make(chan struct{})}
	c.focus.Store(int64(start))
	return c
}

// Focus returns the index of the last resolved request
func (c *coordinator) Focus() int {
	return int(c.focus.Load())
}

// State returns the current loop state
func (c *coordinator) State() CoordinatorState {
	return CoordinatorState(c.state.Load())
}

func (c *coordinator) run() {
	l := c.l
	defer func() {
		if r := recover(); r != nil {
			l.fail(panicError("coordinator", r))
		}
		c.state.Store(int32(Terminated))
		close(c.done)
	}()

	for {
		c.state.Store(int32(Idle))

		var req Request
		select {
		case req = <-l.requests:
		case <-l.ctx.Done():
			return
		}
		req, exit := c.coalesce(req)
		if exit {
			l.log.Debug("Coordinator received exit")
			return
		}

		c.state.Store(int32(Resolving))
		if !c.resolve(req) {
			return
		}
	}
}

// coalesce drains every request already queued behind req and keeps only the
// newest one. Exit anywhere in the queue wins.
func (c *coordinator) coalesce(req Request) (Request, bool) {
	for {
		if req.IsExit() {
			return req, true
		}
		select {
		case next := <-c.l.requests:
			c.l.coalesced.Add(1)
			c.l.log.With(log.F("dropped", req.String()), log.F("kept", next.String())).Debug("Coalesced request")
			req = next
		default:
			return req, false
		}
	}
}

// resolve makes sure the target slot is terminal, publishes it and schedules
// the new window. It returns false if the loader is shutting down.
func (c *coordinator) resolve(req Request) bool {
	l := c.l
	n := l.store.Len()
	idx := req.target(c.Focus(), n)
	logger := l.log.With(log.F("request", req.String()), log.F("index", idx))

	slot := l.store.Peek(idx)
	switch slot.State {
	case Unread:
		if l.store.TryClaim(idx) {
			logger.Debug("Cache miss, decoding inline")
			l.load(idx)
			l.inline.Add(1)
		}
	case Read, Err:
		l.hits.Add(1)
	}

	slot, err := l.store.Wait(l.ctx, idx)
	if err != nil {
		return false
	}

	res := Result{Seq: req.seq, Index: idx, Total: n, Path: slot.Path}
	if slot.State == Read {
		res.Image = slot.Image
	} else {
		res.Err = slot.Err
	}
	c.publish(res)
	logger.With(log.F("state", slot.State.String())).Debug("Resolved request")

	lo, hi := Window(idx, n, l.radius)
	if queued := l.pool.Prefetch(idx, lo, hi); queued > 0 {
		logger.With(log.F("lo", lo), log.F("hi", hi), log.F("queued", queued)).Debug("Prefetch scheduled")
	}
	c.focus.Store(int64(idx))
	return true
}

// publish hands res to the consumer without blocking, replacing any result
// the consumer has not picked up yet.
func (c *coordinator) publish(res Result) {
	for {
		select {
		case c.l.results <- res:
			return
		default:
		}
		select {
		case <-c.l.results:
		default:
		}
	}
}
