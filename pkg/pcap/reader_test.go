package pcap

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCapture(t *testing.T, packets [][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))
	for i, p := range packets {
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Unix(1700000000+int64(i), 0),
			CaptureLength: len(p),
			Length:        len(p) + 4,
		}
		require.NoError(t, w.WritePacket(ci, p))
	}
	return path
}

func TestReader_ReadsAllPackets(t *testing.T) {
	packets := [][]byte{
		make([]byte, 60),
		make([]byte, 98),
		make([]byte, 1514),
	}
	reader, err := NewReader(writeCapture(t, packets))
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, layers.LinkTypeEthernet, reader.LinkType())

	count := 0
	for {
		data, ci, err := reader.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Len(t, data, len(packets[count]))
		assert.Equal(t, len(packets[count])+4, ci.Length)
		assert.Equal(t, int64(1700000000+count), ci.Timestamp.Unix())
		count++
	}
	assert.Equal(t, len(packets), count)
}

func TestReader_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.pcap")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a capture file"), 0o644))

	_, err := NewReader(path)
	assert.Error(t, err)

	_, err = NewReader(filepath.Join(t.TempDir(), "missing.pcap"))
	assert.Error(t, err)
}
