package probe

import (
	"NetSentinel/internal/config"
	"NetSentinel/internal/model"
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"go.uber.org/zap"
)

// Recorder writes frames to a pcap file from a background goroutine.
type Recorder struct {
	frames  chan model.RawFrame
	file    *os.File
	buf     *bufio.Writer
	writer  *pcapgo.Writer
	logger  *zap.Logger
	wg      sync.WaitGroup
	once    sync.Once
	written atomic.Uint64
	dropped atomic.Uint64
}

// NewRecorder creates a timestamped pcap file under cfg.Path and starts the writer.
func NewRecorder(cfg config.RecordConfig, linkType layers.LinkType, snaplen uint32, logger *zap.Logger) (*Recorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Ensure the directory exists
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}

	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 10000
	}

	fileName := time.Now().Format("2006-01-02_15-04-05.000000000") + ".pcap"
	file, err := os.OpenFile(filepath.Join(cfg.Path, fileName), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording file: %w", err)
	}

	buf := bufio.NewWriter(file)
	writer := pcapgo.NewWriter(buf)
	if err := writer.WriteFileHeader(snaplen, linkType); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}

	r := &Recorder{
		frames: make(chan model.RawFrame, bufferSize),
		file:   file,
		buf:    buf,
		writer: writer,
		logger: logger,
	}
	r.wg.Add(1)
	go r.run()

	logger.Info("Recorder started", zap.String("file", file.Name()))
	return r, nil
}

// Path returns the file being written.
func (r *Recorder) Path() string {
	return r.file.Name()
}

// Enqueue hands frame to the writer, dropping it when the buffer is full.
func (r *Recorder) Enqueue(frame model.RawFrame) {
	select {
	case r.frames <- frame:
	default:
		if n := r.dropped.Add(1); n == 1 || n%1000 == 0 {
			r.logger.Warn("Recorder buffer full, dropping frame", zap.Uint64("dropped_total", n))
		}
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for frame := range r.frames {
		length := frame.Length
		if length < len(frame.Data) {
			length = len(frame.Data)
		}
		ci := gopacket.CaptureInfo{Timestamp: frame.Timestamp, CaptureLength: len(frame.Data), Length: length}
		if err := r.writer.WritePacket(ci, frame.Data); err != nil {
			r.logger.Error("Error writing frame", zap.Error(err))
			continue
		}
		r.written.Add(1)
	}
}

// Stop flushes pending frames and closes the file. Enqueue must not be called
// after Stop.
func (r *Recorder) Stop() error {
	var err error
	r.once.Do(func() {
		close(r.frames)
		r.wg.Wait()
		if ferr := r.buf.Flush(); ferr != nil {
			err = ferr
		}
		if cerr := r.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
		r.logger.Info("Recorder stopped",
			zap.Uint64("written", r.written.Load()),
			zap.Uint64("dropped", r.dropped.Load()))
	})
	return err
}

// Written returns the number of frames written.
func (r *Recorder) Written() uint64 {
	return r.written.Load()
}
