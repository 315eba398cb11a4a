// Package pcap reads capture files in the classic pcap and pcapng formats.
package pcap

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Reader reads packets from a capture file.
type Reader struct {
	file *os.File
	r    packetReader
}

// NewReader opens filePath and detects its format.
func NewReader(filePath string) (*Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}

	r, err := pcapgo.NewReader(bufio.NewReader(file))
	if err == nil {
		return &Reader{file: file, r: r}, nil
	}

	// Not classic pcap; retry as pcapng from the start of the file.
	if _, serr := file.Seek(0, io.SeekStart); serr != nil {
		file.Close()
		return nil, serr
	}
	ng, ngErr := pcapgo.NewNgReader(bufio.NewReader(file), pcapgo.DefaultNgReaderOptions)
	if ngErr != nil {
		file.Close()
		return nil, fmt.Errorf("unrecognised capture file %s: %w", filePath, errors.Join(err, ngErr))
	}
	return &Reader{file: file, r: ng}, nil
}

// LinkType returns the link type of the capture.
func (r *Reader) LinkType() layers.LinkType {
	return r.r.LinkType()
}

// Next returns the next packet and its capture metadata. It returns io.EOF
// once the file is exhausted. The returned slice is owned by the caller.
func (r *Reader) Next() ([]byte, gopacket.CaptureInfo, error) {
	return r.r.ReadPacketData()
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
