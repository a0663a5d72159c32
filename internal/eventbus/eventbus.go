// Package eventbus provides an embedded NATS core pub/sub broker used purely
// as a wakeup signal for tail-stream subscribers. The Event Log's
// monotonically increasing id remains the source of truth for ordering;
// the bus only tells a blocked subscriber "something changed, go re-read."
package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/YuvaBhargav/network-threat-detection-platform/internal/logging"
)

// NewThreatSubject is the topic published to whenever a new row lands in
// the threats view.
const NewThreatSubject = "netwatch.threats.new"

// Config holds the embedded server's bind settings.
type Config struct {
	Host     string
	Port     int
	StoreDir string
}

// DefaultConfig binds to localhost on an OS-assigned port with no
// persistent store directory (core pub/sub only, nothing durable).
func DefaultConfig() Config {
	return Config{Host: "127.0.0.1", Port: -1}
}

// Server wraps an embedded NATS server with lifecycle management, without
// JetStream: the bus carries no durable state, so a restart simply means
// subscribers miss nothing they couldn't re-derive from the Event Log.
type Server struct {
	ns        *server.Server
	clientURL string
}

// NewServer starts an embedded NATS server and waits for it to accept
// connections.
func NewServer(cfg Config) (*Server, error) {
	opts := &server.Options{
		ServerName: "netwatch-eventbus",
		Host:       cfg.Host,
		Port:       cfg.Port,
		StoreDir:   cfg.StoreDir,
		DontListen: false,
		NoLog:      true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server not ready within timeout")
	}

	return &Server{ns: ns, clientURL: ns.ClientURL()}, nil
}

// ClientURL returns the connection URL for clients.
func (s *Server) ClientURL() string {
	return s.clientURL
}

// Serve blocks until ctx is canceled, then shuts the embedded server down.
// Implements suture.Service so it can be registered in the supervisor tree.
func (s *Server) Serve(ctx context.Context) error {
	<-ctx.Done()
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
	return ctx.Err()
}

// Bus is a thin core pub/sub client over the embedded server.
type Bus struct {
	conn *nats.Conn
}

// Connect dials the embedded (or external) NATS server at url.
func Connect(url string) (*Bus, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to eventbus: %w", err)
	}
	return &Bus{conn: conn}, nil
}

// Close closes the connection without draining pending messages.
func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

// NotifyNewThreat publishes an empty wakeup message on NewThreatSubject.
// Never fatal: a publish failure just means subscribers fall back to their
// own periodic poll, matching the reference design's MAX(id) polling.
func (b *Bus) NotifyNewThreat() {
	if err := b.conn.Publish(NewThreatSubject, nil); err != nil {
		logging.Warn().Err(err).Msg("failed to publish eventbus wakeup")
	}
}

// Subscribe returns a channel of wakeup signals for topic. The channel is
// closed when ctx is canceled; a lost connection does not close it.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	raw := make(chan *nats.Msg, 64)
	sub, err := b.conn.ChanSubscribe(topic, raw)
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		defer sub.Unsubscribe() //nolint:errcheck
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-raw:
				if !ok {
					return
				}
				select {
				case out <- msg.Data:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
