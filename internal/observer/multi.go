package observer

import (
	"context"

	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
)

// Multi returns a pack whose Send delivers to every pack's Send and whose
// Receive hands the runtime's handler to every pack's Receive.
//
// Send attempts all transports and returns the first error. Packs with a
// nil callback are skipped.
func Multi(packs ...gpio.Observers) gpio.Observers {
	var sends []gpio.SendFunc
	var receives []gpio.ReceiveFunc
	for _, p := range packs {
		if p.Send != nil {
			sends = append(sends, p.Send)
		}
		if p.Receive != nil {
			receives = append(receives, p.Receive)
		}
	}

	var out gpio.Observers
	if len(sends) > 0 {
		out.Send = func(ctx context.Context, a gpio.Announcement) error {
			var first error
			for _, send := range sends {
				if err := send(ctx, a); err != nil && first == nil {
					first = err
				}
			}
			return first
		}
	}
	if len(receives) > 0 {
		out.Receive = func(handler gpio.ReportHandler) {
			for _, receive := range receives {
				receive(handler)
			}
		}
	}
	return out
}
