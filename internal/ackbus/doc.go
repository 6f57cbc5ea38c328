// Package ackbus provides a correlated request/response bus.
//
// A plain publish/subscribe channel is fire-and-forget. Bus layers request
// correlation on top of it so that a publisher can await the answer of the
// single responder registered for a key:
//
//	bus := ackbus.New[Topic, Message, Reply](ackbus.Options{})
//	bus.Handle(topic, func(ctx context.Context, msg Message) (Reply, error) {
//	    return Reply{Edge: Rising}, nil
//	})
//	reply, err := bus.Invoke(ctx, topic, msg)
//
// Every Invoke carries a fresh random id. Responses are matched by id only, so
// concurrent calls for the same key never resolve each other. A call that gets
// no response within the stale timeout (10s by default) is dropped with a
// warning and fails with ErrStale.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package ackbus
