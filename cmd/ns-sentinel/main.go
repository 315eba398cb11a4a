package main

import (
	"NetSentinel/internal/app"
	"NetSentinel/internal/config"
	"NetSentinel/internal/logging"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	iface      string
)

var rootCmd = &cobra.Command{
	Use:           "ns-sentinel",
	Short:         "Real-time network traffic monitor with port-scan and traffic-spike detection",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Capture traffic and serve metrics and alerts until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if iface != "" {
			cfg.Capture.Interface = iface
		}
		_, err = runPipeline(cmd.Context(), cfg)
		return err
	},
}

var replayTop int

var replayCmd = &cobra.Command{
	Use:   "replay <capture-file>",
	Short: "Run a pcap or pcapng file through the pipeline and print a summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Capture.Mode = config.CaptureModeReplay
		cfg.Capture.ReplayPath = args[0]
		cfg.API.Enabled = false
		cfg.Telemetry.ListenAddr = ""

		a, err := runPipeline(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), a.Metrics().Snapshot(), a.Alerts().Snapshot(), replayTop)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the YAML configuration file")
	runCmd.Flags().StringVarP(&iface, "iface", "i", "", "capture interface (overrides capture.interface)")
	replayCmd.Flags().IntVar(&replayTop, "top", 5, "number of top talkers to print")
	rootCmd.AddCommand(runCmd, replayCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if _, err := os.Stat(path); err != nil && !rootCmd.PersistentFlags().Changed("config") {
		// The default path is optional; built-in defaults apply without it.
		path = ""
	}
	return config.LoadConfig(path)
}

func runPipeline(ctx context.Context, cfg *config.Config) (*app.App, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()

	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	logger.Info("Starting ns-sentinel", zap.String("mode", cfg.Capture.Mode))
	if err := a.Run(ctx); err != nil {
		return nil, err
	}
	logger.Info("Shutdown complete")
	return a, nil
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
