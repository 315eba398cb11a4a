package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Capture modes.
const (
	CaptureModeLive   = "live"
	CaptureModeNATS   = "nats"
	CaptureModeReplay = "replay"
)

// CaptureConfig selects and tunes the frame source.
type CaptureConfig struct {
	Mode           string        `yaml:"mode"`
	Interface      string        `yaml:"interface"`
	BPFFilter      string        `yaml:"bpf_filter"`
	SnapshotLength int32         `yaml:"snapshot_length"`
	Promiscuous    bool          `yaml:"promiscuous"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	ReplayPath     string        `yaml:"replay_path"`
}

// QueueConfig sizes the hand-off queue between capture and processing.
type QueueConfig struct {
	// Capacity of 0 means unbounded.
	Capacity int `yaml:"capacity"`
}

// ProcessorConfig tunes the processing loop.
type ProcessorConfig struct {
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

// PortScanConfig holds the port-scan detector parameters.
type PortScanConfig struct {
	Threshold int           `yaml:"threshold"`
	Window    time.Duration `yaml:"window"`
}

// HighTrafficConfig holds the high-traffic detector parameters.
type HighTrafficConfig struct {
	Threshold float64 `yaml:"threshold"`
	// Window is the number of consecutive over-threshold observations required.
	Window int `yaml:"window"`
}

// DetectionConfig lists the enabled detectors, in order, and their settings.
type DetectionConfig struct {
	Detectors   []string          `yaml:"detectors"`
	PortScan    PortScanConfig    `yaml:"port_scan"`
	HighTraffic HighTrafficConfig `yaml:"high_traffic"`
}

// MetricsConfig tunes the rolling traffic statistics.
type MetricsConfig struct {
	PPSWindow time.Duration `yaml:"pps_window"`
}

// AlertsConfig tunes the alert store.
type AlertsConfig struct {
	Cooldown   time.Duration     `yaml:"cooldown"`
	MaxHistory int               `yaml:"max_history"`
	Severity   map[string]string `yaml:"severity"`
}

// APIConfig controls the HTTP/WebSocket API and the gRPC health endpoint.
type APIConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ListenAddr     string        `yaml:"listen_addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	PushInterval   time.Duration `yaml:"push_interval"`
	ClientBuffer   int           `yaml:"client_buffer"`
	GRPCListenAddr string        `yaml:"grpc_listen_addr"`
}

// TelemetryConfig controls the Prometheus exposition listener.
type TelemetryConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// SMTPConfig holds the email notifier settings.
type SMTPConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	From        string `yaml:"from"`
	To          string `yaml:"to"`
	MinSeverity string `yaml:"min_severity"`
}

// NATSConfig holds a NATS endpoint and subject.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// ClickHouseConfig holds the connection details for the ClickHouse alert sink.
type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NotificationConfig controls asynchronous alert export.
type NotificationConfig struct {
	BufferSize    int              `yaml:"buffer_size"`
	BatchSize     int              `yaml:"batch_size"`
	FlushInterval time.Duration    `yaml:"flush_interval"`
	SendTimeout   time.Duration    `yaml:"send_timeout"`
	SMTP          SMTPConfig       `yaml:"smtp"`
	NATS          NATSConfig       `yaml:"nats"`
	ClickHouse    ClickHouseConfig `yaml:"clickhouse"`
}

// RecordConfig controls pcap recording in ns-probe.
type RecordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	BufferSize int    `yaml:"buffer_size"`
}

// ProbeConfig is shared by ns-probe (publisher) and the NATS capture mode (subscriber).
type ProbeConfig struct {
	NATSURL string       `yaml:"nats_url"`
	Subject string       `yaml:"subject"`
	Record  RecordConfig `yaml:"record"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Capture      CaptureConfig      `yaml:"capture"`
	Queue        QueueConfig        `yaml:"queue"`
	Processor    ProcessorConfig    `yaml:"processor"`
	Detection    DetectionConfig    `yaml:"detection"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Alerts       AlertsConfig       `yaml:"alerts"`
	API          APIConfig          `yaml:"api"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Logging      LoggingConfig      `yaml:"logging"`
	Notification NotificationConfig `yaml:"notification"`
	Probe        ProbeConfig        `yaml:"probe"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Capture: CaptureConfig{
			Mode:           CaptureModeLive,
			SnapshotLength: 65535,
			Promiscuous:    true,
			ReadTimeout:    500 * time.Millisecond,
		},
		Queue:     QueueConfig{Capacity: 10000},
		Processor: ProcessorConfig{PollTimeout: time.Second},
		Detection: DetectionConfig{
			Detectors:   []string{"port_scan", "high_traffic"},
			PortScan:    PortScanConfig{Threshold: 20, Window: 10 * time.Second},
			HighTraffic: HighTrafficConfig{Threshold: 50, Window: 5},
		},
		Metrics: MetricsConfig{PPSWindow: 10 * time.Second},
		Alerts:  AlertsConfig{Cooldown: 10 * time.Second, MaxHistory: 1000},
		API: APIConfig{
			Enabled:        true,
			ListenAddr:     "127.0.0.1:8000",
			AllowedOrigins: []string{"http://localhost:5173"},
			PushInterval:   time.Second,
			ClientBuffer:   256,
		},
		Telemetry: TelemetryConfig{ListenAddr: ":2112"},
		Logging:   LoggingConfig{Level: "info", JSON: true},
		Notification: NotificationConfig{
			BufferSize:    1024,
			BatchSize:     50,
			FlushInterval: 5 * time.Second,
			SendTimeout:   10 * time.Second,
			SMTP:          SMTPConfig{Port: 587, MinSeverity: "HIGH"},
			NATS:          NATSConfig{URL: "nats://127.0.0.1:4222", Subject: "ns.alerts"},
			ClickHouse:    ClickHouseConfig{Host: "127.0.0.1", Port: 9000, Database: "default"},
		},
		Probe: ProbeConfig{
			NATSURL: "nats://127.0.0.1:4222",
			Subject: "ns.frames.raw",
			Record:  RecordConfig{Path: "data/pcap", BufferSize: 10000},
		},
	}
}

// LoadConfig reads the configuration from a YAML file over the defaults,
// applies environment overrides and validates the result. An empty path
// yields the defaults.
func LoadConfig(filePath string) (*Config, error) {
	cfg := Default()

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NS_CAPTURE_INTERFACE"); v != "" {
		cfg.Capture.Interface = v
	}
	if v := os.Getenv("NS_API_LISTEN_ADDR"); v != "" {
		cfg.API.ListenAddr = v
	}
}

// Validate checks the values the pipeline cannot run without and normalises
// the capture mode.
func (c *Config) Validate() error {
	c.Capture.Mode = strings.ToLower(c.Capture.Mode)
	switch c.Capture.Mode {
	case CaptureModeLive, CaptureModeNATS, CaptureModeReplay:
	default:
		return fmt.Errorf("%w: unknown capture mode %q", ErrInvalid, c.Capture.Mode)
	}
	if c.Queue.Capacity < 0 {
		return fmt.Errorf("%w: queue capacity must not be negative", ErrInvalid)
	}
	if c.Processor.PollTimeout <= 0 {
		return fmt.Errorf("%w: processor poll_timeout must be positive", ErrInvalid)
	}
	if c.Detection.PortScan.Threshold <= 0 || c.Detection.PortScan.Window <= 0 {
		return fmt.Errorf("%w: port_scan threshold and window must be positive", ErrInvalid)
	}
	if c.Detection.HighTraffic.Window <= 0 {
		return fmt.Errorf("%w: high_traffic window must be positive", ErrInvalid)
	}
	if c.Metrics.PPSWindow <= 0 {
		return fmt.Errorf("%w: metrics pps_window must be positive", ErrInvalid)
	}
	if c.Alerts.Cooldown < 0 {
		return fmt.Errorf("%w: alerts cooldown must not be negative", ErrInvalid)
	}
	if c.Alerts.MaxHistory <= 0 {
		return fmt.Errorf("%w: alerts max_history must be positive", ErrInvalid)
	}
	if c.API.Enabled && c.API.PushInterval <= 0 {
		return fmt.Errorf("%w: api push_interval must be positive", ErrInvalid)
	}
	return nil
}
