package probe

import (
	"NetSentinel/internal/config"
	"NetSentinel/internal/model"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/gopacket/pcap"
)

// LiveSource captures from a network interface through libpcap.
type LiveSource struct {
	cfg config.CaptureConfig
}

// NewLiveSource creates a LiveSource for cfg.Interface.
func NewLiveSource(cfg config.CaptureConfig) *LiveSource {
	return &LiveSource{cfg: cfg}
}

// Name implements Source.
func (s *LiveSource) Name() string { return "live:" + s.cfg.Interface }

// Run implements Source. The read timeout bounds how long cancellation can
// go unnoticed.
func (s *LiveSource) Run(ctx context.Context, emit func(model.RawFrame)) error {
	if s.cfg.Interface == "" {
		return errors.New("no capture interface configured")
	}

	handle, err := pcap.OpenLive(s.cfg.Interface, s.cfg.SnapshotLength, s.cfg.Promiscuous, s.cfg.ReadTimeout)
	if err != nil {
		return fmt.Errorf("error opening device %s: %w", s.cfg.Interface, err)
	}
	defer handle.Close()

	if s.cfg.BPFFilter != "" {
		if err := handle.SetBPFFilter(s.cfg.BPFFilter); err != nil {
			return fmt.Errorf("invalid BPF filter %q: %w", s.cfg.BPFFilter, err)
		}
	}
	linkType := handle.LinkType()

	for ctx.Err() == nil {
		data, ci, err := handle.ReadPacketData()
		switch {
		case err == nil:
		case errors.Is(err, pcap.NextErrorTimeoutExpired):
			continue
		case errors.Is(err, io.EOF):
			return nil
		default:
			return fmt.Errorf("error reading from %s: %w", s.cfg.Interface, err)
		}
		emit(model.RawFrame{Timestamp: ci.Timestamp, LinkType: linkType, Data: data, Length: ci.Length})
	}
	return nil
}
