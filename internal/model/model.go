package model

import (
	"net/netip"
	"time"

	"github.com/google/gopacket/layers"
)

// RawFrame is one captured traffic unit before decoding.
type RawFrame struct {
	Timestamp time.Time
	LinkType  layers.LinkType
	Data      []byte
	// Length is the original length on the wire; 0 when the source does not know it.
	Length int
}

// Protocol is the transport classification of a decoded frame.
type Protocol uint8

const (
	ProtocolOther Protocol = iota
	ProtocolTCP
	ProtocolUDP
	ProtocolICMP
)

// String returns the label used in metrics and API payloads.
func (p Protocol) String() string {
	switch p {
	case ProtocolTCP:
		return "TCP"
	case ProtocolUDP:
		return "UDP"
	case ProtocolICMP:
		return "ICMP"
	default:
		return "Other"
	}
}

// FeatureRecord holds the metadata extracted from a single frame.
// It is created by an Extractor and never modified afterwards.
//
// An invalid netip.Addr means the address layer was absent. Ports are only
// meaningful when HasPorts reports true.
type FeatureRecord struct {
	Timestamp time.Time
	SrcIP     netip.Addr
	DstIP     netip.Addr
	Protocol  Protocol
	SrcPort   uint16
	DstPort   uint16
	Length    int
}

// HasPorts reports whether the record carries transport ports (TCP or UDP).
func (r *FeatureRecord) HasPorts() bool {
	return r.Protocol == ProtocolTCP || r.Protocol == ProtocolUDP
}

// SourceKey returns the textual source address, or false when it is absent.
func (r *FeatureRecord) SourceKey() (string, bool) {
	if !r.SrcIP.IsValid() {
		return "", false
	}
	return r.SrcIP.String(), true
}
