package observer

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
)

func TestMultiSendReachesEveryTransport(t *testing.T) {
	errFirst := errors.New("first down")
	var calls []string

	pack := Multi(
		gpio.Observers{Send: func(context.Context, gpio.Announcement) error {
			calls = append(calls, "a")
			return errFirst
		}},
		gpio.Observers{},
		gpio.Observers{Send: func(context.Context, gpio.Announcement) error {
			calls = append(calls, "b")
			return errors.New("second down")
		}},
		gpio.Observers{Send: func(context.Context, gpio.Announcement) error {
			calls = append(calls, "c")
			return nil
		}},
	)

	err := pack.Send(context.Background(), gpio.Announcement{Pin: 11})
	if !errors.Is(err, errFirst) {
		t.Errorf("Send() error = %v, want first error", err)
	}
	if len(calls) != 3 {
		t.Errorf("transports called = %v, want a b c", calls)
	}
}

func TestMultiReceiveRegistersEverywhere(t *testing.T) {
	var got []gpio.ReportHandler
	receive := func(h gpio.ReportHandler) { got = append(got, h) }

	pack := Multi(gpio.Observers{Receive: receive}, gpio.Observers{Receive: receive})

	handler := func(context.Context, gpio.Report) (gpio.Edge, error) { return gpio.Rising, nil }
	pack.Receive(handler)

	if len(got) != 2 {
		t.Fatalf("Receive registered %d times, want 2", len(got))
	}
	for i, h := range got {
		if edge, _ := h(context.Background(), gpio.Report{}); edge != gpio.Rising {
			t.Errorf("handler %d returned %v", i, edge)
		}
	}
}

func TestMultiEmpty(t *testing.T) {
	pack := Multi(gpio.Observers{})
	if pack.Send != nil || pack.Receive != nil {
		t.Error("Multi of empty packs should have nil callbacks")
	}
}

func TestMultiDrivesRuntime(t *testing.T) {
	rt := gpio.NewRuntime(gpio.Options{})
	defer rt.Close()

	sent := make(chan gpio.Announcement, 16)
	var handler gpio.ReportHandler

	rt.SetObservers(Multi(
		gpio.Observers{Send: func(_ context.Context, a gpio.Announcement) error {
			sent <- a
			return nil
		}},
		gpio.Observers{Receive: func(h gpio.ReportHandler) { handler = h }},
	))

	in, err := rt.SetInput(20)
	if err != nil {
		t.Fatalf("SetInput() error = %v", err)
	}
	if handler == nil {
		t.Fatal("runtime handler not registered")
	}

	edge, err := handler(context.Background(), gpio.Report{Pin: 20, State: true, Mode: gpio.Input})
	if err != nil || edge != gpio.Rising {
		t.Fatalf("handler() = (%v, %v), want (Rising, nil)", edge, err)
	}
	if !in.IsOn() {
		t.Error("pin not updated through combined pack")
	}
}
