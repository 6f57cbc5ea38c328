package observer

import (
	"sync"
	"testing"
	"time"
)

func TestLanesKeepPerPinOrder(t *testing.T) {
	var (
		l   Lanes
		mu  sync.Mutex
		got = map[int][]int{}
	)

	for i := 0; i < 100; i++ {
		for _, pin := range []int{11, 12} {
			i, pin := i, pin
			l.Submit(pin, func() {
				if i%10 == 0 {
					time.Sleep(time.Millisecond)
				}
				mu.Lock()
				got[pin] = append(got[pin], i)
				mu.Unlock()
			})
		}
	}
	l.Wait()

	for _, pin := range []int{11, 12} {
		if len(got[pin]) != 100 {
			t.Fatalf("pin %d ran %d jobs, want 100", pin, len(got[pin]))
		}
		for i, v := range got[pin] {
			if v != i {
				t.Fatalf("pin %d job %d ran at position %d", pin, v, i)
			}
		}
	}
}

func TestLanesRunPinsIndependently(t *testing.T) {
	var l Lanes
	release := make(chan struct{})
	done := make(chan struct{})

	l.Submit(11, func() { <-release })
	l.Submit(12, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pin 12 waited behind a blocked pin 11")
	}
	close(release)
	l.Wait()
}

func TestLanesReuseAfterDrain(t *testing.T) {
	var l Lanes
	ran := 0
	l.Submit(11, func() { ran++ })
	l.Wait()
	l.Submit(11, func() { ran++ })
	l.Wait()
	if ran != 2 {
		t.Errorf("ran = %d, want 2", ran)
	}
}
