package observer

import "sync"

// Lanes runs reports for one pin strictly one after another, in the
// order they were submitted, while different pins proceed in parallel.
// A pin's goroutine exists only while it has queued work.
//
// The zero value is ready to use.
type Lanes struct {
	mu    sync.Mutex
	queue map[int][]func()
	wg    sync.WaitGroup
}

// Submit queues fn behind earlier work for pin and returns immediately.
func (l *Lanes) Submit(pin int, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.queue == nil {
		l.queue = make(map[int][]func())
	}
	l.wg.Add(1)
	pending, busy := l.queue[pin]
	l.queue[pin] = append(pending, fn)
	if !busy {
		go l.drain(pin)
	}
}

// Wait blocks until all submitted work has run. Submit must not be called
// concurrently with Wait.
func (l *Lanes) Wait() {
	l.wg.Wait()
}

func (l *Lanes) drain(pin int) {
	for {
		l.mu.Lock()
		pending := l.queue[pin]
		if len(pending) == 0 {
			delete(l.queue, pin)
			l.mu.Unlock()
			return
		}
		fn := pending[0]
		l.queue[pin] = pending[1:]
		l.mu.Unlock()

		fn()
		l.wg.Done()
	}
}
