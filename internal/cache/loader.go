// Package cache is the lookahead image loader behind the viewer. It decodes
// the requested image synchronously, keeps a window of neighbours warm with a
// bounded pool of background decoders, and answers navigation requests with
// last-request-wins semantics.
//
// A Loader owns three cooperating parts: a Store of per-image slots, a Pool
// of prefetch workers, and a coordinator goroutine that serializes requests.
// Viewers talk to it with Send/Poll (non-blocking) or Navigate (blocking).
package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"minimg/internal/decode"
	serr "minimg/internal/errors"
	"minimg/internal/log"
)

// DefaultRadius is the number of neighbours kept warm on each side
const DefaultRadius = 5

// requestBuffer bounds the number of unprocessed requests; when full, the
// oldest pending request is dropped since a newer one supersedes it anyway.
const requestBuffer = 64

// Decoder turns a path into an image. It must be safe for concurrent use.
type Decoder interface {
	Decode(path string) (*decode.Image, error)
}

// DecoderFunc adapts a function to Decoder
type DecoderFunc func(path string) (*decode.Image, error)

// Decode calls f(path)
func (f DecoderFunc) Decode(path string) (*decode.Image, error) {
	return f(path)
}

// Option configures a Loader
type Option func(*Loader)

// WithDecoder replaces the default file decoder
func WithDecoder(d Decoder) Option {
	return func(l *Loader) { l.decoder = d }
}

// WithSession sets the session id used in log lines
func WithSession(id string) Option {
	return func(l *Loader) { l.session = id }
}

// Stats is a snapshot of loader activity
type Stats struct {
	Counts
	State         CoordinatorState
	Focus         int
	InlineDecodes int64
	Prefetched    int64
	Hits          int64
	Coalesced     int64
	Queued        int64
	Running       int64
}

// Loader is the handle to a running lookahead cache
type Loader struct {
	store   *Store
	pool    *Pool
	decoder Decoder
	radius  int
	session string
	log     *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	requests chan Request
	results  chan Result
	seq      atomic.Uint64
	coord    *coordinator

	fatalMu sync.Mutex
	fatal   error

	shutdownOnce sync.Once
	shutdownErr  error

	inline     atomic.Int64
	prefetched atomic.Int64
	hits       atomic.Int64
	coalesced  atomic.Int64
}

// New starts a loader over paths, focused on start. radius is the number of
// neighbours kept warm on each side and workers the size of the prefetch
// pool. An empty path list is rejected before any goroutine starts. The
// start image is resolved immediately and its result is the first one
// delivered.
func New(paths []string, start, radius, workers int, opts ...Option) (*Loader, error) {
	if len(paths) == 0 {
		return nil, serr.ErrEmptyPathList
	}
	if start < 0 || start >= len(paths) {
		return nil, serr.Wrapf(serr.ErrIndexOutOfRange, "start index %d of %d", start, len(paths))
	}
	if radius < 0 {
		return nil, serr.NewConfigError("radius must be >= 0", "radius", serr.InvalidConfig, nil)
	}
	if workers < 1 {
		return nil, serr.NewConfigError("workers must be >= 1", "workers", serr.InvalidConfig, nil)
	}

	l := &Loader{
		store:    NewStore(paths),
		radius:   radius,
		requests: make(chan Request, requestBuffer),
		results:  make(chan Result, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.decoder == nil {
		l.decoder = decode.NewFileDecoder()
	}
	if l.session == "" {
		l.session = uuid.New().String()
	}
	l.log = log.LogWithFields(log.F("session", l.session))

	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.pool = NewPool(l.ctx, workers, l.store, l.prefetch, l.fail)
	l.coord = newCoordinator(l, start)

	l.log.With(log.F("images", len(paths)), log.F("start", start), log.F("radius", radius), log.F("workers", workers)).
		Info("Loader started")

	go l.coord.run()
	if _, err := l.Send(Move(Stay)); err != nil {
		return nil, err
	}
	return l, nil
}

// Len returns the number of images
func (l *Loader) Len() int {
	return l.store.Len()
}

// Path returns the path of image idx
func (l *Loader) Path(idx int) string {
	return l.store.Path(idx)
}

// Peek returns a copy of slot idx without waiting
func (l *Loader) Peek(idx int) (Slot, error) {
	if idx < 0 || idx >= l.store.Len() {
		return Slot{}, serr.Wrapf(serr.ErrIndexOutOfRange, "peek %d of %d", idx, l.store.Len())
	}
	return l.store.Peek(idx), nil
}

// Send queues a request without blocking and returns its sequence number.
// When the queue is full the oldest pending request is discarded.
func (l *Loader) Send(req Request) (uint64, error) {
	select {
	case <-l.coord.done:
		return 0, l.stoppedErr()
	default:
	}

	req.seq = l.seq.Add(1)
	for {
		select {
		case l.requests <- req:
			return req.seq, nil
		default:
		}
		select {
		case old := <-l.requests:
			if old.IsExit() {
				// never drop Exit
				req = old
			}
			l.coalesced.Add(1)
		default:
		}
	}
}

// Poll returns the latest unconsumed result, if any, without blocking
func (l *Loader) Poll() (Result, bool) {
	select {
	case r := <-l.results:
		return r, true
	default:
		return Result{}, false
	}
}

// Results exposes the result mailbox for use in select statements. Only the
// most recent unconsumed result is kept.
func (l *Loader) Results() <-chan Result {
	return l.results
}

// Done is closed when the coordinator has stopped
func (l *Loader) Done() <-chan struct{} {
	return l.coord.done
}

// Err returns the fatal error that stopped the loader, if any
func (l *Loader) Err() error {
	l.fatalMu.Lock()
	defer l.fatalMu.Unlock()
	return l.fatal
}

// Navigate sends req and waits for its result. A decode failure is returned
// both in the result and as the error; other errors mean the loader stopped
// or ctx expired.
func (l *Loader) Navigate(ctx context.Context, req Request) (Result, error) {
	if req.IsExit() {
		return Result{}, l.Shutdown(ctx)
	}
	seq, err := l.Send(req)
	if err != nil {
		return Result{}, err
	}
	for {
		select {
		case r := <-l.results:
			if r.Seq < seq {
				continue
			}
			return r, r.Err
		case <-l.coord.done:
			return Result{}, l.stoppedErr()
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
}

// State reports whether the coordinator is waiting for a request, resolving
// one, or has stopped for good
func (l *Loader) State() CoordinatorState {
	return l.coord.State()
}

// Stats returns a snapshot of the loader state
func (l *Loader) Stats() Stats {
	queued, running := l.pool.Pending()
	return Stats{
		Counts:        l.store.Counts(),
		State:         l.coord.State(),
		Focus:         l.coord.Focus(),
		InlineDecodes: l.inline.Load(),
		Prefetched:    l.prefetched.Load(),
		Hits:          l.hits.Load(),
		Coalesced:     l.coalesced.Load(),
		Queued:        queued,
		Running:       running,
	}
}

// Shutdown sends Exit, joins the coordinator and drains the prefetch pool.
// Running decodes are allowed to finish; queued ones are abandoned. If ctx
// expires before everything has stopped a ShutdownTimeout ChannelError is
// returned and the caller should treat the process as wedged. Otherwise the
// error, if any, is the fatal failure that stopped the loader.
func (l *Loader) Shutdown(ctx context.Context) error {
	l.shutdownOnce.Do(func() {
		l.shutdownErr = l.shutdown(ctx)
	})
	return l.shutdownErr
}

func (l *Loader) shutdown(ctx context.Context) error {
	_, _ = l.Send(Exit)
	l.cancel()

	select {
	case <-l.coord.done:
	case <-ctx.Done():
		return serr.NewChannelError("coordinator did not stop", "requests", serr.ShutdownTimeout, ctx.Err())
	}

	drained := make(chan error, 1)
	go func() { drained <- l.pool.Close() }()
	select {
	case err := <-drained:
		if err != nil {
			l.fail(err)
		}
	case <-ctx.Done():
		return serr.NewChannelError("prefetch workers did not stop", "tasks", serr.ShutdownTimeout, ctx.Err())
	}

	stats := l.Stats()
	l.log.With(log.F("read", stats.Read), log.F("errors", stats.Err), log.F("hits", stats.Hits),
		log.F("coalesced", stats.Coalesced)).Info("Loader stopped")
	return l.Err()
}

// load decodes idx, which the caller has claimed, and resolves it
func (l *Loader) load(idx int) {
	path := l.store.Path(idx)
	img, err := l.decoder.Decode(path)
	if err == nil && img == nil {
		err = serr.New("decoder returned no image")
	}
	if err != nil {
		kind := serr.KindOf(err)
		if kind == serr.Unknown {
			kind = serr.DecodeFailed
		}
		derr := serr.NewDecodeError(path, idx, kind, err)
		l.log.WithError(derr).Warn("Decode failed")
		l.store.Resolve(idx, Outcome{Err: derr})
		return
	}
	l.store.Resolve(idx, Outcome{Image: img})
}

func (l *Loader) prefetch(_ context.Context, idx int) {
	l.load(idx)
	l.prefetched.Add(1)
	l.log.With(log.F("index", idx)).Debug("Prefetched")
}

// fail records the first fatal error and stops the loader
func (l *Loader) fail(err error) {
	l.fatalMu.Lock()
	if l.fatal == nil {
		l.fatal = err
		l.log.WithError(err).Error("Loader failed")
	}
	l.fatalMu.Unlock()
	l.cancel()
}

func (l *Loader) stoppedErr() error {
	if err := l.Err(); err != nil {
		return err
	}
	return serr.ErrLoaderStopped
}
