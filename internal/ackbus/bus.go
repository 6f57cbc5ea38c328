package ackbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultStaleTimeout is how long Invoke waits for a response by default.
const DefaultStaleTimeout = 10 * time.Second

// HandlerFunc answers a request published for a key.
type HandlerFunc[Req, Res any] func(ctx context.Context, req Req) (Res, error)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
}

// Options configures a Bus.
type Options struct {
	// StaleTimeout bounds how long a request waits for its response.
	// Default: DefaultStaleTimeout.
	StaleTimeout time.Duration

	// Logger receives stale request warnings. Optional.
	Logger Logger
}

// Bus correlates requests published for a key K with the response of the
// single handler registered for that key.
type Bus[K comparable, Req, Res any] struct {
	staleTimeout time.Duration
	logger       Logger

	handlers   map[K]HandlerFunc[Req, Res]
	handlersMu sync.RWMutex

	pending   map[uuid.UUID]*request[K, Res]
	closed    bool
	pendingMu sync.Mutex
}

// request is one in-flight Invoke call.
type request[K comparable, Res any] struct {
	id        uuid.UUID
	key       K
	createdAt time.Time
	timer     *time.Timer

	// result has capacity 1 and receives exactly one value.
	result chan result[Res]
}

type result[Res any] struct {
	value Res
	err   error
}

// New creates an empty bus.
func New[K comparable, Req, Res any](opts Options) *Bus[K, Req, Res] {
	stale := opts.StaleTimeout
	if stale <= 0 {
		stale = DefaultStaleTimeout
	}

	return &Bus[K, Req, Res]{
		staleTimeout: stale,
		logger:       opts.Logger,
		handlers:     make(map[K]HandlerFunc[Req, Res]),
		pending:      make(map[uuid.UUID]*request[K, Res]),
	}
}

// StaleTimeout returns the configured response deadline.
func (b *Bus[K, Req, Res]) StaleTimeout() time.Duration {
	return b.staleTimeout
}

// Handle registers fn as the responder for key.
// A previous responder for the same key is replaced; the return value
// reports whether that happened.
func (b *Bus[K, Req, Res]) Handle(key K, fn HandlerFunc[Req, Res]) bool {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()

	_, replaced := b.handlers[key]
	b.handlers[key] = fn
	return replaced
}

// Unhandle removes the responder for key. Requests already dispatched to it
// still complete.
func (b *Bus[K, Req, Res]) Unhandle(key K) {
	b.handlersMu.Lock()
	delete(b.handlers, key)
	b.handlersMu.Unlock()
}

// HasHandler reports whether a responder is registered for key.
func (b *Bus[K, Req, Res]) HasHandler(key K) bool {
	b.handlersMu.RLock()
	defer b.handlersMu.RUnlock()
	_, ok := b.handlers[key]
	return ok
}

// Invoke publishes req for key and waits for the matching response.
//
// Returns:
//   - Res: the responder's value
//   - error: the responder's error, ErrHandlerPanic, ErrStale when nothing
//     answered within the stale timeout, ErrClosed, or ctx.Err()
func (b *Bus[K, Req, Res]) Invoke(ctx context.Context, key K, req Req) (Res, error) {
	var zero Res

	r, err := b.track(key)
	if err != nil {
		return zero, err
	}

	b.dispatch(ctx, r, req)

	select {
	case res := <-r.result:
		return res.value, res.err
	case <-ctx.Done():
		b.resolve(r.id, result[Res]{err: ctx.Err()})
		return zero, ctx.Err()
	}
}

// Pending returns the number of requests awaiting a response.
func (b *Bus[K, Req, Res]) Pending() int {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	return len(b.pending)
}

// Close fails every in-flight request with ErrClosed and rejects new ones.
// Safe to call multiple times.
func (b *Bus[K, Req, Res]) Close() {
	b.pendingMu.Lock()
	b.closed = true
	ids := make([]uuid.UUID, 0, len(b.pending))
	for id := range b.pending {
		ids = append(ids, id)
	}
	b.pendingMu.Unlock()

	for _, id := range ids {
		b.resolve(id, result[Res]{err: ErrClosed})
	}
}

// track registers a new waiter with its stale timer.
func (b *Bus[K, Req, Res]) track(key K) (*request[K, Res], error) {
	r := &request[K, Res]{
		id:        uuid.New(),
		key:       key,
		createdAt: time.Now(),
		result:    make(chan result[Res], 1),
	}

	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	b.pending[r.id] = r
	r.timer = time.AfterFunc(b.staleTimeout, func() {
		if b.resolve(r.id, result[Res]{err: fmt.Errorf("%w: %v after %v", ErrStale, key, b.staleTimeout)}) {
			b.logStale(r)
		}
	})

	return r, nil
}

// dispatch hands req to the registered responder, if any. Without a
// responder the waiter is left to go stale.
func (b *Bus[K, Req, Res]) dispatch(ctx context.Context, r *request[K, Res], req Req) {
	b.handlersMu.RLock()
	handler, ok := b.handlers[r.key]
	b.handlersMu.RUnlock()

	if !ok {
		return
	}

	go func() {
		// The responder outlives a cancelled caller but never the stale window.
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.staleTimeout)
		defer cancel()

		defer func() {
			if p := recover(); p != nil {
				b.resolve(r.id, result[Res]{err: fmt.Errorf("%w: %v", ErrHandlerPanic, p)})
			}
		}()

		value, err := handler(hctx, req)
		b.resolve(r.id, result[Res]{value: value, err: err})
	}()
}

// resolve delivers res to the waiter for id. Only the first call for an id
// has any effect; it reports whether this call was that one.
func (b *Bus[K, Req, Res]) resolve(id uuid.UUID, res result[Res]) bool {
	b.pendingMu.Lock()
	r, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.pendingMu.Unlock()

	if !ok {
		return false
	}

	r.timer.Stop()
	r.result <- res
	return true
}

func (b *Bus[K, Req, Res]) logStale(r *request[K, Res]) {
	if b.logger == nil {
		return
	}
	b.logger.Warn("ack request considered stale",
		"id", r.id.String(),
		"key", fmt.Sprint(r.key),
		"age", time.Since(r.createdAt).String(),
	)
}
