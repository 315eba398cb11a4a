package probe

import (
	"NetSentinel/internal/model"
	"NetSentinel/pkg/pcap"
	"context"
	"errors"
	"fmt"
	"io"
)

// ReplaySource feeds the frames of a capture file, then returns.
type ReplaySource struct {
	path string
}

// NewReplaySource creates a ReplaySource for path.
func NewReplaySource(path string) *ReplaySource {
	return &ReplaySource{path: path}
}

// Name implements Source.
func (s *ReplaySource) Name() string { return "replay:" + s.path }

// Run implements Source.
func (s *ReplaySource) Run(ctx context.Context, emit func(model.RawFrame)) error {
	reader, err := pcap.NewReader(s.path)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer reader.Close()

	linkType := reader.LinkType()
	for ctx.Err() == nil {
		data, ci, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error reading %s: %w", s.path, err)
		}
		emit(model.RawFrame{Timestamp: ci.Timestamp, LinkType: linkType, Data: data, Length: ci.Length})
	}
	return nil
}
