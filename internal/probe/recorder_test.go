package probe

import (
	"NetSentinel/internal/config"
	"NetSentinel/internal/model"
	"NetSentinel/pkg/pcap"
	"context"
	"testing"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRecorder_ReplaysThroughReplaySource(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(config.RecordConfig{Path: dir, BufferSize: 16}, layers.LinkTypeEthernet, 65535, zaptest.NewLogger(t))
	require.NoError(t, err)

	in := frames(5)
	for i := range in {
		in[i].Length = 100
		rec.Enqueue(in[i])
	}
	require.NoError(t, rec.Stop())
	require.NoError(t, rec.Stop())
	assert.Equal(t, uint64(5), rec.Written())

	reader, err := pcap.NewReader(rec.Path())
	require.NoError(t, err)
	assert.Equal(t, layers.LinkTypeEthernet, reader.LinkType())
	require.NoError(t, reader.Close())

	var out []model.RawFrame
	src := NewReplaySource(rec.Path())
	require.NoError(t, src.Run(context.Background(), func(f model.RawFrame) { out = append(out, f) }))

	require.Len(t, out, 5)
	for i, f := range out {
		assert.Equal(t, in[i].Data, f.Data)
		assert.Equal(t, 100, f.Length)
		assert.True(t, f.Timestamp.Equal(in[i].Timestamp), "frame %d timestamp", i)
		assert.Equal(t, layers.LinkTypeEthernet, f.LinkType)
	}
}

func TestReplaySource_MissingFile(t *testing.T) {
	err := NewReplaySource("/nonexistent/file.pcap").Run(context.Background(), func(model.RawFrame) {})
	assert.Error(t, err)
}

func TestReplaySource_StopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(config.RecordConfig{Path: dir}, layers.LinkTypeEthernet, 65535, nil)
	require.NoError(t, err)
	for _, f := range frames(10) {
		rec.Enqueue(f)
	}
	require.NoError(t, rec.Stop())

	ctx, cancel := context.WithCancel(context.Background())
	seen := 0
	err = NewReplaySource(rec.Path()).Run(ctx, func(model.RawFrame) {
		seen++
		if seen == 3 {
			cancel()
		}
	})
	require.NoError(t, err)
	assert.Equal(t, 3, seen)
}
