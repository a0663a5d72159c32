// Package detect implements the per-source sliding-window detectors and the
// packet classification engine that drives them.
package detect

import "time"

// Kind identifies the category of a Threat Event.
type Kind string

const (
	KindDDoS            Kind = "DDoS"
	KindPortScan        Kind = "PortScan"
	KindSYNFlood        Kind = "SYNFlood"
	KindSQLInjection    Kind = "SQLInjection"
	KindXSS             Kind = "XSS"
	KindMaliciousIP     Kind = "MaliciousIP"
	KindMaliciousDomain Kind = "MaliciousDomain"
)

// Packet is the decoded-packet shape the engine classifies. Produced by any
// capture.PacketSource implementation.
type Packet struct {
	Timestamp time.Time

	HasIP         bool
	SrcIP, DstIP  string

	HasTCP    bool
	HasUDP    bool
	SrcPort   int
	DstPort   int
	TCPFlags  uint16

	Len int

	HasHTTP     bool
	HTTPMethod  string
	HTTPHost    string // Host header, lowercased, parsed at capture time
	HTTPPath    string // request-target from the request line, parsed at capture time
	HTTPPayload []byte // raw request bytes, URL-encoded, to be decoded by the web detector
}

const (
	tcpFlagSYN uint16 = 0x02
	tcpFlagACK uint16 = 0x10
)

// IsSYN reports whether the SYN flag is set.
func (p Packet) IsSYN() bool { return p.TCPFlags&tcpFlagSYN != 0 }

// IsACK reports whether the ACK flag is set.
func (p Packet) IsACK() bool { return p.TCPFlags&tcpFlagACK != 0 }

// ThreatEvent is the canonical record emitted by the engine.
type ThreatEvent struct {
	Timestamp     time.Time
	Kind          Kind
	SourceIP      string
	DestinationIP string
	Ports         any // int, []int, or string tag such as "HTTP"
	Meta          map[string]any
}
