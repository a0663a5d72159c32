package capture

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuvaBhargav/network-threat-detection-platform/internal/detect"
)

func buildTCPPacket(t *testing.T, srcIP, dstIP string, srcPort, dstPort int, syn, ack bool, payload []byte) gopacket.Packet {
	t.Helper()

	eth := &layers.Ethernet{EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP(srcIP).To4(),
		DstIP:    net.ParseIP(dstIP).To4(),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		SYN:     syn,
		ACK:     ack,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	layersToSerialize := []gopacket.SerializableLayer{eth, ip, tcp}
	if len(payload) > 0 {
		layersToSerialize = append(layersToSerialize, gopacket.Payload(payload))
	}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, layersToSerialize...))

	return gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
}

func TestDecodePacketExtractsIPAndTCP(t *testing.T) {
	pkt := buildTCPPacket(t, "192.0.2.1", "198.51.100.1", 5555, 80, true, false, nil)

	decoded, ok := DecodePacket(pkt)
	require.True(t, ok)
	assert.True(t, decoded.HasIP)
	assert.Equal(t, "192.0.2.1", decoded.SrcIP)
	assert.Equal(t, "198.51.100.1", decoded.DstIP)
	assert.True(t, decoded.HasTCP)
	assert.Equal(t, 80, decoded.DstPort)
	assert.True(t, decoded.IsSYN())
	assert.False(t, decoded.IsACK())
}

func TestDecodePacketRecognizesHTTPPayload(t *testing.T) {
	payload := []byte("GET /login?user=' OR 1=1 -- HTTP/1.1\r\nHost: example.com\r\n\r\n")
	pkt := buildTCPPacket(t, "192.0.2.1", "198.51.100.1", 5555, 80, false, true, payload)

	decoded, ok := DecodePacket(pkt)
	require.True(t, ok)
	assert.True(t, decoded.HasHTTP)
	assert.Equal(t, "GET", decoded.HTTPMethod)
	assert.Equal(t, "example.com", decoded.HTTPHost)
	assert.Equal(t, "/login?user=' OR 1=1 --", decoded.HTTPPath)
	assert.Contains(t, string(decoded.HTTPPayload), "OR 1=1")
}

func TestDecodePacketSkipsNonIPTraffic(t *testing.T) {
	eth := &layers.Ethernet{EthernetType: layers.EthernetTypeARP}
	arp := &layers.ARP{AddrType: layers.LinkTypeEthernet, Protocol: layers.EthernetTypeIPv4, HwAddressSize: 6, ProtAddressSize: 4}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, arp))

	pkt := gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
	_, ok := DecodePacket(pkt)
	assert.False(t, ok)
}

func TestReplayEmitsPacketsInOrder(t *testing.T) {
	packets := []detect.Packet{
		{SrcIP: "1.1.1.1", HasIP: true},
		{SrcIP: "2.2.2.2", HasIP: true},
		{SrcIP: "3.3.3.3", HasIP: true},
	}
	r := NewReplay(packets)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out, errs := r.Packets(ctx)
	var got []detect.Packet
	for pkt := range out {
		got = append(got, pkt)
	}
	require.NoError(t, drainErr(errs))
	require.Len(t, got, 3)
	assert.Equal(t, "1.1.1.1", got[0].SrcIP)
	assert.Equal(t, "3.3.3.3", got[2].SrcIP)
}

func TestReplayStopsOnContextCancel(t *testing.T) {
	packets := make([]detect.Packet, 100)
	for i := range packets {
		packets[i] = detect.Packet{SrcIP: "1.1.1.1"}
	}
	r := NewReplay(packets)
	r.SpeedModifier = 0.000001 // would otherwise take a long time if gaps were nonzero

	ctx, cancel := context.WithCancel(context.Background())
	out, _ := r.Packets(ctx)
	cancel()

	count := 0
	for range out {
		count++
	}
	assert.LessOrEqual(t, count, 100)
}

func drainErr(errs <-chan error) error {
	select {
	case err := <-errs:
		return err
	default:
		return nil
	}
}
