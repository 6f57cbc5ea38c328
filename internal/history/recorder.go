package history

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
)

const (
	// DefaultBufferSize is the number of transitions queued for writing.
	DefaultBufferSize = 256

	// defaultPruneInterval is how often Retention is enforced.
	defaultPruneInterval = time.Hour

	writeTimeout = 5 * time.Second
)

// Logger is the logging surface used by the recorder.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	// BufferSize defaults to DefaultBufferSize.
	BufferSize int

	// Retention prunes entries older than this. Zero disables pruning.
	Retention time.Duration

	// PruneInterval defaults to one hour.
	PruneInterval time.Duration

	Logger Logger
}

// Recorder persists runtime transitions without blocking the runtime's
// delivery goroutine. Transitions arriving while the buffer is full are
// dropped with a warning.
type Recorder struct {
	repo Repository
	opts RecorderOptions

	queue chan gpio.Transition

	mu      sync.Mutex
	unsub   func()
	cancel  context.CancelFunc
	done    chan struct{}
	dropped int
}

// NewRecorder creates a recorder writing to repo.
func NewRecorder(repo Repository, opts RecorderOptions) *Recorder {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.PruneInterval <= 0 {
		opts.PruneInterval = defaultPruneInterval
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Recorder{
		repo:  repo,
		opts:  opts,
		queue: make(chan gpio.Transition, opts.BufferSize),
	}
}

// Start subscribes to rt and begins writing. It returns immediately.
func (rec *Recorder) Start(ctx context.Context, rt *gpio.Runtime) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.done != nil {
		return
	}

	ctx, rec.cancel = context.WithCancel(ctx)
	rec.done = make(chan struct{})
	rec.unsub = rt.Subscribe(rec.Observe)

	go rec.run(ctx)
}

// Stop unsubscribes, drains queued transitions and waits for the writer.
func (rec *Recorder) Stop() {
	rec.mu.Lock()
	if rec.done == nil {
		rec.mu.Unlock()
		return
	}
	unsub, cancel, done := rec.unsub, rec.cancel, rec.done
	rec.mu.Unlock()

	unsub()
	cancel()
	<-done
}

// Observe queues t for writing.
func (rec *Recorder) Observe(t gpio.Transition) {
	select {
	case rec.queue <- t:
	default:
		rec.mu.Lock()
		rec.dropped++
		rec.mu.Unlock()
		rec.opts.Logger.Warn("history buffer full, transition dropped", "pin", t.Pin, "edge", t.Edge.String())
	}
}

// Dropped returns how many transitions were discarded on a full buffer.
func (rec *Recorder) Dropped() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.dropped
}

func (rec *Recorder) run(ctx context.Context) {
	defer close(rec.done)

	var prune <-chan time.Time
	if rec.opts.Retention > 0 {
		ticker := time.NewTicker(rec.opts.PruneInterval)
		defer ticker.Stop()
		prune = ticker.C
		rec.prune()
	}

	for {
		select {
		case t := <-rec.queue:
			rec.write(t)
		case <-prune:
			rec.prune()
		case <-ctx.Done():
			for {
				select {
				case t := <-rec.queue:
					rec.write(t)
				default:
					return
				}
			}
		}
	}
}

func (rec *Recorder) write(t gpio.Transition) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := rec.repo.Record(ctx, t); err != nil {
		rec.opts.Logger.Error("recording transition", "pin", t.Pin, "error", err)
	}
}

func (rec *Recorder) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	n, err := rec.repo.Prune(ctx, rec.opts.Retention)
	if err != nil {
		rec.opts.Logger.Error("pruning history", "error", err)
		return
	}
	if n > 0 {
		rec.opts.Logger.Info("pruned history", "rows", n, "retention", rec.opts.Retention.String())
	}
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
