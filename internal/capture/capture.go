// Package capture decodes live or replayed packet streams into the plain
// detect.Packet shape the Detection Engine consumes, keeping gopacket types
// out of internal/detect entirely.
package capture

import (
	"context"

	"github.com/YuvaBhargav/network-threat-detection-platform/internal/detect"
)

// PacketSource yields decoded packets until ctx is canceled or the source is
// exhausted. The packet channel is closed when the source is done; a
// terminal error (if any) is sent on the error channel before it closes.
type PacketSource interface {
	Packets(ctx context.Context) (<-chan detect.Packet, <-chan error)
}
