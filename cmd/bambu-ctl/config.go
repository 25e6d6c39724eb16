package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bambu-link/bambu-go/pkg/correlator"
	"github.com/bambu-link/bambu-go/pkg/transport"
)

// AccessCodeEnv overrides the access code from the config file.
const AccessCodeEnv = "BAMBU_ACCESS_CODE"

var errMissingPrinter = errors.New("printer host or -discover is required")

// Config holds the bambu-ctl configuration. The YAML file is applied over
// the defaults and explicitly set flags are applied over the file.
type Config struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	Serial        string        `yaml:"serial"`
	AccessCode    string        `yaml:"access_code"`
	CAFile        string        `yaml:"ca_file"`
	Discover      bool          `yaml:"discover"`
	Interface     string        `yaml:"interface"`
	Timeout       time.Duration `yaml:"timeout"`
	Correlation   string        `yaml:"correlation"`
	SequenceStart uint64        `yaml:"sequence_start"`
	LogLevel      string        `yaml:"log_level"`
	Capture       string        `yaml:"capture"`
	MetricsAddr   string        `yaml:"metrics_addr"`
	Interactive   bool          `yaml:"interactive"`
}

func defaultConfig() Config {
	return Config{
		Port:        transport.DefaultPort,
		Timeout:     correlator.DefaultTimeout,
		Correlation: "flat",
		LogLevel:    "info",
	}
}

// loadConfig reads path over the defaults. An empty path yields the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// registerFlags binds flags to cfg.
func registerFlags(fs *flag.FlagSet, cfg *Config) *string {
	configPath := fs.String("config", "", "Configuration file path (YAML)")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "Printer address")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "MQTT port")
	fs.StringVar(&cfg.Serial, "serial", cfg.Serial, "Printer serial number")
	fs.StringVar(&cfg.AccessCode, "access-code", cfg.AccessCode, "LAN access code (or "+AccessCodeEnv+")")
	fs.StringVar(&cfg.CAFile, "ca-file", cfg.CAFile, "PEM file with the printer CA; enables certificate verification")
	fs.BoolVar(&cfg.Discover, "discover", cfg.Discover, "Find the printer via mDNS instead of -host")
	fs.StringVar(&cfg.Interface, "interface", cfg.Interface, "Network interface for discovery")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Command reply timeout")
	fs.StringVar(&cfg.Correlation, "correlation", cfg.Correlation, "Reply correlation: flat, upgrade_state")
	fs.Uint64Var(&cfg.SequenceStart, "sequence-start", cfg.SequenceStart, "Sequence number offset")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.Capture, "capture", cfg.Capture, "Write protocol capture to file")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on address")
	fs.BoolVar(&cfg.Interactive, "interactive", cfg.Interactive, "Enable interactive command mode")
	return configPath
}

// parseConfig parses args, loads the config file and applies the flags that
// were set explicitly.
func parseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	flags := defaultConfig()
	configPath := registerFlags(fs, &flags)
	if err := fs.Parse(args); err != nil {
		return flags, err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return cfg, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = flags.Host
		case "port":
			cfg.Port = flags.Port
		case "serial":
			cfg.Serial = flags.Serial
		case "access-code":
			cfg.AccessCode = flags.AccessCode
		case "ca-file":
			cfg.CAFile = flags.CAFile
		case "discover":
			cfg.Discover = flags.Discover
		case "interface":
			cfg.Interface = flags.Interface
		case "timeout":
			cfg.Timeout = flags.Timeout
		case "correlation":
			cfg.Correlation = flags.Correlation
		case "sequence-start":
			cfg.SequenceStart = flags.SequenceStart
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		case "capture":
			cfg.Capture = flags.Capture
		case "metrics-addr":
			cfg.MetricsAddr = flags.MetricsAddr
		case "interactive":
			cfg.Interactive = flags.Interactive
		}
	})

	if code := os.Getenv(AccessCodeEnv); code != "" && cfg.AccessCode == "" {
		cfg.AccessCode = code
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Serial == "" {
		return errors.New("printer serial is required")
	}
	if c.AccessCode == "" {
		return errors.New("access code is required")
	}
	if c.Host == "" && !c.Discover {
		return errMissingPrinter
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// parseLevel maps a log level name onto slog.
func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s (use: debug, info, warn, error)", s)
	}
}
