package main

import (
	"NetSentinel/internal/config"
	"NetSentinel/internal/logging"
	"NetSentinel/internal/model"
	"NetSentinel/internal/probe"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const progressEvery = 10000

var (
	configPath string
	iface      string
	record     bool
)

var rootCmd = &cobra.Command{
	Use:           "ns-probe",
	Short:         "Capture frames on an interface and publish them to NATS",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if iface != "" {
			cfg.Capture.Interface = iface
		}
		if cmd.Flags().Changed("record") {
			cfg.Probe.Record.Enabled = record
		}

		logger, err := logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		defer logger.Sync()

		return runProbe(cmd.Context(), cfg, logger)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the YAML configuration file")
	rootCmd.Flags().StringVarP(&iface, "iface", "i", "", "capture interface (overrides capture.interface)")
	rootCmd.Flags().BoolVar(&record, "record", false, "also write captured frames to a pcap file")
}

// forwarder publishes each frame and, when recording, hands it to the recorder.
type forwarder struct {
	cfg       *config.Config
	pub       *probe.Publisher
	rec       *probe.Recorder
	logger    *zap.Logger
	published uint64
	bytes     uint64
	failed    uint64
}

func (f *forwarder) emit(frame model.RawFrame) {
	// The link type is only known once the device is open.
	if f.cfg.Probe.Record.Enabled && f.rec == nil {
		rec, err := probe.NewRecorder(f.cfg.Probe.Record, frame.LinkType, uint32(f.cfg.Capture.SnapshotLength), f.logger)
		if err != nil {
			f.logger.Error("Recording disabled", zap.Error(err))
			f.cfg.Probe.Record.Enabled = false
		} else {
			f.rec = rec
		}
	}
	if f.rec != nil {
		f.rec.Enqueue(frame)
	}

	if err := f.pub.Publish(frame); err != nil {
		f.failed++
		if f.failed == 1 || f.failed%1000 == 0 {
			f.logger.Warn("Failed to publish frame", zap.Error(err), zap.Uint64("failed_total", f.failed))
		}
		return
	}
	f.published++
	f.bytes += uint64(len(frame.Data))
	if f.published%progressEvery == 0 {
		f.logger.Info("Frames published",
			zap.String("frames", humanize.Comma(int64(f.published))),
			zap.String("volume", humanize.Bytes(f.bytes)))
	}
}

func (f *forwarder) close() {
	if f.rec != nil {
		if err := f.rec.Stop(); err != nil {
			f.logger.Error("Failed to finalise recording", zap.Error(err))
		} else {
			f.logger.Info("Recording closed", zap.String("file", f.rec.Path()),
				zap.String("frames", humanize.Comma(int64(f.rec.Written()))))
		}
	}
	f.pub.Close()
}

func runProbe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Capture.Interface == "" {
		return errors.New("a capture interface is required (--iface or capture.interface)")
	}

	// 1. Connect to NATS
	pub, err := probe.NewPublisher(cfg.Probe, logger.Named("publisher"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	fwd := &forwarder{cfg: cfg, pub: pub, logger: logger}
	defer fwd.close()

	// 2. Capture until interrupted
	src := probe.NewLiveSource(cfg.Capture)
	logger.Info("Starting ns-probe",
		zap.String("interface", cfg.Capture.Interface),
		zap.String("subject", cfg.Probe.Subject),
		zap.Bool("record", cfg.Probe.Record.Enabled))

	if err := src.Run(ctx, fwd.emit); err != nil {
		return err
	}
	logger.Info("Shutdown complete",
		zap.String("frames", humanize.Comma(int64(fwd.published))),
		zap.String("volume", humanize.Bytes(fwd.bytes)))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
