package main

import (
	"fmt"
	"io"
	"math/rand"
	"net"
	"sort"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// scannerIP is the source address of the synthetic port scan.
var scannerIP = net.IPv4(203, 0, 113, 66)

// scenario describes the traffic to synthesise.
type scenario struct {
	Start      time.Time
	Background int
	Gap        time.Duration
	ScanPorts  int
	ScanGap    time.Duration
	Seed       int64
}

type packet struct {
	ts   time.Time
	data []byte
}

// generate writes the scenario as an Ethernet pcap, in timestamp order, and
// returns the number of packets written.
func generate(w io.Writer, sc scenario) (int, error) {
	rng := rand.New(rand.NewSource(sc.Seed))
	packets := make([]packet, 0, sc.Background+sc.ScanPorts)

	// 1. Background: random hosts exchanging TCP and UDP with payloads.
	for i := 0; i < sc.Background; i++ {
		src := randomIP(rng)
		dst := randomIP(rng)
		payload := make([]byte, rng.Intn(1400)+50)
		rng.Read(payload)

		var data []byte
		var err error
		if rng.Intn(4) == 0 {
			data, err = udpPacket(src, dst, uint16(rng.Intn(64511)+1024), 53, payload)
		} else {
			data, err = tcpPacket(src, dst, uint16(rng.Intn(64511)+1024), uint16(rng.Intn(64511)+1024), false, payload)
		}
		if err != nil {
			return 0, err
		}
		packets = append(packets, packet{ts: sc.Start.Add(time.Duration(i) * sc.Gap), data: data})
	}

	// 2. Scan: one host sending SYNs to consecutive ports of one target.
	target := net.IPv4(192, 168, 1, 10)
	for i := 0; i < sc.ScanPorts; i++ {
		data, err := tcpPacket(scannerIP, target, 40000, uint16(i+1), true, nil)
		if err != nil {
			return 0, err
		}
		packets = append(packets, packet{ts: sc.Start.Add(time.Duration(i) * sc.ScanGap), data: data})
	}

	sort.SliceStable(packets, func(i, j int) bool { return packets[i].ts.Before(packets[j].ts) })

	// 3. Write.
	pcapWriter := pcapgo.NewWriter(w)
	if err := pcapWriter.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return 0, fmt.Errorf("failed to write pcap header: %w", err)
	}
	for i, p := range packets {
		ci := gopacket.CaptureInfo{Timestamp: p.ts, CaptureLength: len(p.data), Length: len(p.data)}
		if err := pcapWriter.WritePacket(ci, p.data); err != nil {
			return i, fmt.Errorf("failed to write packet: %w", err)
		}
	}
	return len(packets), nil
}

func randomIP(rng *rand.Rand) net.IP {
	return net.IPv4(10, byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(254)+1))
}

func ethernet() *layers.Ethernet {
	return &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
		EthernetType: layers.EthernetTypeIPv4,
	}
}

func ipv4(src, dst net.IP, proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{SrcIP: src, DstIP: dst, Version: 4, TTL: 64, Protocol: proto}
}

func tcpPacket(src, dst net.IP, sport, dport uint16, syn bool, payload []byte) ([]byte, error) {
	ip := ipv4(src, dst, layers.IPProtocolTCP)
	tcp := &layers.TCP{SrcPort: layers.TCPPort(sport), DstPort: layers.TCPPort(dport), SYN: syn, ACK: !syn, Window: 14600}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}
	return serialize(ethernet(), ip, tcp, gopacket.Payload(payload))
}

func udpPacket(src, dst net.IP, sport, dport uint16, payload []byte) ([]byte, error) {
	ip := ipv4(src, dst, layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: layers.UDPPort(sport), DstPort: layers.UDPPort(dport)}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}
	return serialize(ethernet(), ip, udp, gopacket.Payload(payload))
}

func serialize(ls ...gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		return nil, fmt.Errorf("failed to serialize layers: %w", err)
	}
	return buf.Bytes(), nil
}
