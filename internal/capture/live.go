package capture

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/YuvaBhargav/network-threat-detection-platform/internal/detect"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/logging"
)

// LiveConfig configures a pcap-backed live capture.
type LiveConfig struct {
	Interface   string
	SnapLen     int32
	Promiscuous bool
	BPFFilter   string
}

// DefaultLiveConfig returns sane capture defaults.
func DefaultLiveConfig(iface string) LiveConfig {
	return LiveConfig{Interface: iface, SnapLen: 65536, Promiscuous: true}
}

// Live is a PacketSource backed by a live pcap handle.
type Live struct {
	cfg LiveConfig
}

// NewLive builds a Live source. The pcap handle is opened lazily in Packets
// so construction never fails on a missing interface at wiring time.
func NewLive(cfg LiveConfig) *Live {
	return &Live{cfg: cfg}
}

// Packets opens the pcap handle and decodes packets until ctx is canceled.
func (l *Live) Packets(ctx context.Context) (<-chan detect.Packet, <-chan error) {
	out := make(chan detect.Packet, 256)
	errs := make(chan error, 1)

	handle, err := pcap.OpenLive(l.cfg.Interface, l.cfg.SnapLen, l.cfg.Promiscuous, pcap.BlockForever)
	if err != nil {
		errs <- fmt.Errorf("opening interface %s: %w", l.cfg.Interface, err)
		close(out)
		close(errs)
		return out, errs
	}

	if l.cfg.BPFFilter != "" {
		if err := handle.SetBPFFilter(l.cfg.BPFFilter); err != nil {
			handle.Close()
			errs <- fmt.Errorf("setting bpf filter %q: %w", l.cfg.BPFFilter, err)
			close(out)
			close(errs)
			return out, errs
		}
	}

	src := gopacket.NewPacketSource(handle, handle.LinkType())
	src.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}

	go func() {
		defer handle.Close()
		defer close(out)
		defer close(errs)

		logging.Info().Str("interface", l.cfg.Interface).Msg("live capture started")
		packets := src.Packets()
		for {
			select {
			case <-ctx.Done():
				return
			case pkt, ok := <-packets:
				if !ok {
					return
				}
				decoded, ok := DecodePacket(pkt)
				if !ok {
					continue
				}
				select {
				case out <- decoded:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, errs
}

// DecodePacket converts a gopacket.Packet into the Detection Engine's plain
// Packet struct. Returns ok=false for packets with no IP layer at all,
// matching the engine's "skip non-IP traffic" dispatch rule.
func DecodePacket(pkt gopacket.Packet) (detect.Packet, bool) {
	out := detect.Packet{Timestamp: time.Now(), Len: len(pkt.Data())}
	if meta := pkt.Metadata(); meta != nil && !meta.Timestamp.IsZero() {
		out.Timestamp = meta.Timestamp
	}

	netLayer := pkt.NetworkLayer()
	if netLayer == nil {
		return out, false
	}
	flow := netLayer.NetworkFlow()
	out.HasIP = true
	out.SrcIP = flow.Src().String()
	out.DstIP = flow.Dst().String()

	if tcp, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
		out.HasTCP = true
		out.SrcPort = int(tcp.SrcPort)
		out.DstPort = int(tcp.DstPort)
		out.TCPFlags = tcpFlags(tcp)

		if payload := tcp.Payload; len(payload) > 0 && looksLikeHTTP(payload) {
			out.HasHTTP = true
			out.HTTPMethod = httpMethod(payload)
			out.HTTPHost = detect.ParseHTTPHost(payload)
			out.HTTPPath = detect.ParseHTTPPath(payload)
			out.HTTPPayload = payload
		}
	} else if udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		out.HasUDP = true
		out.SrcPort = int(udp.SrcPort)
		out.DstPort = int(udp.DstPort)
	}

	return out, true
}

func tcpFlags(tcp *layers.TCP) uint16 {
	var flags uint16
	if tcp.SYN {
		flags |= 0x02
	}
	if tcp.ACK {
		flags |= 0x10
	}
	if tcp.FIN {
		flags |= 0x01
	}
	if tcp.RST {
		flags |= 0x04
	}
	if tcp.PSH {
		flags |= 0x08
	}
	if tcp.URG {
		flags |= 0x20
	}
	return flags
}

var httpMethods = [][]byte{
	[]byte("GET "), []byte("POST "), []byte("PUT "), []byte("DELETE "),
	[]byte("HEAD "), []byte("OPTIONS "), []byte("PATCH "),
}

func looksLikeHTTP(payload []byte) bool {
	for _, m := range httpMethods {
		if bytes.HasPrefix(payload, m) {
			return true
		}
	}
	return bytes.HasPrefix(payload, []byte("HTTP/"))
}

func httpMethod(payload []byte) string {
	if i := bytes.IndexByte(payload, ' '); i > 0 {
		return string(payload[:i])
	}
	return ""
}
