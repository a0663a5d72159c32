package capture

import (
	"context"
	"time"

	"github.com/YuvaBhargav/network-threat-detection-platform/internal/detect"
)

// Replay is a deterministic in-memory PacketSource used by tests and by
// offline replay of a fixed packet sequence. SpeedModifier scales the delay
// between packets relative to their recorded timestamps; 0 means "as fast
// as possible" (the default for tests).
type Replay struct {
	packets       []detect.Packet
	SpeedModifier float64
}

// NewReplay builds a Replay source over packets, played back as fast as
// possible.
func NewReplay(packets []detect.Packet) *Replay {
	return &Replay{packets: packets}
}

// Packets emits the configured packets in order, honoring ctx cancellation.
func (r *Replay) Packets(ctx context.Context) (<-chan detect.Packet, <-chan error) {
	out := make(chan detect.Packet, len(r.packets))
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		var prev time.Time
		for _, pkt := range r.packets {
			if r.SpeedModifier > 0 && !prev.IsZero() && !pkt.Timestamp.IsZero() {
				gap := pkt.Timestamp.Sub(prev)
				if gap > 0 {
					select {
					case <-time.After(time.Duration(float64(gap) / r.SpeedModifier)):
					case <-ctx.Done():
						return
					}
				}
			}
			prev = pkt.Timestamp

			select {
			case out <- pkt:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errs
}
