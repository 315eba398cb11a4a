package protocol

import (
	"NetSentinel/internal/model"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ErrUndecodable is returned for frames that carry no recognisable link or network layer.
var ErrUndecodable = errors.New("undecodable frame")

// Parser is the gopacket-backed model.Extractor. It holds no state and is safe
// for concurrent use.
type Parser struct {
	opts gopacket.DecodeOptions
}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{opts: gopacket.DecodeOptions{Lazy: true, NoCopy: true}}
}

// Extract decodes a raw frame into a FeatureRecord. IPv4 and IPv6 are
// recognised; frames without an IP layer (ARP and the like) are classified as
// Other with no addresses. Ports are only set for TCP and UDP.
func (p *Parser) Extract(frame model.RawFrame) (*model.FeatureRecord, error) {
	if len(frame.Data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrUndecodable)
	}

	packet := gopacket.NewPacket(frame.Data, frame.LinkType, p.opts)
	if packet.LinkLayer() == nil && packet.NetworkLayer() == nil {
		if errLayer := packet.ErrorLayer(); errLayer != nil {
			return nil, fmt.Errorf("%w: %v", ErrUndecodable, errLayer.Error())
		}
		return nil, ErrUndecodable
	}

	rec := &model.FeatureRecord{
		Timestamp: frame.Timestamp,
		Protocol:  model.ProtocolOther,
		Length:    len(frame.Data),
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	switch l := packet.NetworkLayer().(type) {
	case *layers.IPv4:
		rec.SrcIP = addrFrom(l.SrcIP)
		rec.DstIP = addrFrom(l.DstIP)
	case *layers.IPv6:
		rec.SrcIP = addrFrom(l.SrcIP)
		rec.DstIP = addrFrom(l.DstIP)
	default:
		// Not IP: no addresses, no ports.
		return rec, nil
	}

	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		rec.Protocol = model.ProtocolTCP
		rec.SrcPort = uint16(tcp.SrcPort)
		rec.DstPort = uint16(tcp.DstPort)
	} else if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		rec.Protocol = model.ProtocolUDP
		rec.SrcPort = uint16(udp.SrcPort)
		rec.DstPort = uint16(udp.DstPort)
	} else if packet.Layer(layers.LayerTypeICMPv4) != nil || packet.Layer(layers.LayerTypeICMPv6) != nil {
		rec.Protocol = model.ProtocolICMP
	}

	return rec, nil
}

func addrFrom(ip []byte) netip.Addr {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}
	}
	return addr.Unmap()
}
