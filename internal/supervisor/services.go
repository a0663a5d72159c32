package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/YuvaBhargav/network-threat-detection-platform/internal/capture"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/detect"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/logging"
)

// httpShutdownTimeout bounds how long HTTPServerService waits for in-flight
// requests to drain during a supervised shutdown.
const httpShutdownTimeout = 10 * time.Second

// CaptureService wraps a capture.PacketSource and feeds every decoded packet
// into the Detection Engine inline, as the capture task (§5).
type CaptureService struct {
	Source capture.PacketSource
	Engine *detect.Engine
}

// Serve drains packets until ctx is canceled or the source exhausts itself.
func (c *CaptureService) Serve(ctx context.Context) error {
	packets, errs := c.Source.Packets(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pkt, ok := <-packets:
			if !ok {
				select {
				case err := <-errs:
					return err
				default:
					return nil
				}
			}
			c.Engine.Process(pkt)
		case err := <-errs:
			if err != nil {
				logging.Error().Err(err).Msg("capture source reported an error")
				return err
			}
		}
	}
}

// HTTPServerService wraps an *http.Server as a suture.Service, following the
// teacher's convention of running ListenAndServe in a goroutine and shutting
// down gracefully on context cancellation.
type HTTPServerService struct {
	Server *http.Server
}

// Serve starts the HTTP server and blocks until ctx is canceled.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		if err := h.Server.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("http server shutdown did not complete cleanly")
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
