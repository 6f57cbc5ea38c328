// Package gpio implements digital GPIO pins whose state is mirrored between
// local hardware and a remote observer.
//
// Every pin belongs to a Runtime. The runtime owns the correlated event bus,
// the numbering scheme, the hardware backend and the observer pack, so
// several independent runtimes can coexist in one process.
//
// # Architecture
//
//	 hardware interrupt           observer report
//	        │                           │
//	        ▼                           ▼
//	 ┌──────────────┐  StateReceived ┌──────────┐
//	 │  edge detect │◄───────────────│  ackbus  │
//	 └──────┬───────┘                └──────────┘
//	        │ StateConfirmed
//	        ▼
//	 watchers, transition feed, observer Send
//
// Hardware changes and remote reports for one pin pass through the same
// intake and are confirmed in arrival order. Changes that arrived from the
// observer are never announced back to it.
//
// # Usage
//
//	rt := gpio.NewRuntime(gpio.Options{Backend: backend, Logger: log})
//	defer rt.Close()
//
//	button, err := rt.SetInput(11)
//	if err != nil {
//	    return err
//	}
//	button.SetResistor(gpio.PullUp)
//	button.Watch(gpio.Rising, func(state bool) {
//	    led.Write(state, nil)
//	})
//
// # Emulation
//
// With ForceEmulation set, or without a backend, pins are never bound to
// hardware. Reads return the cached state and writes only update it. Remote
// reports still drive the state machine, so an emulated runtime can mirror
// a remote board.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
// Callbacks are invoked without internal locks held.
package gpio
