// Command bambu-ctl connects to a printer in LAN mode and keeps its state.
//
// The printer runs an MQTT broker on port 8883. bambu-ctl authenticates
// with the user "bblp" and the LAN access code, requests a full status
// report, and then logs every state change. With -interactive it offers a
// shell for reading state and sending commands.
//
// Usage:
//
//	bambu-ctl [flags]
//
// Flags:
//
//	-config string        Configuration file path (YAML)
//	-host string          Printer address
//	-serial string        Printer serial number
//	-access-code string   LAN access code (or BAMBU_ACCESS_CODE)
//	-discover             Find the printer via mDNS instead of -host
//	-ca-file string       PEM file with the printer CA
//	-capture string       Write protocol capture to file
//	-metrics-addr string  Serve Prometheus metrics on address
//	-interactive          Enable interactive command mode
//
// Examples:
//
//	# Connect and follow state changes
//	bambu-ctl -host 192.168.1.20 -serial 01P00A000000001 -access-code 12345678
//
//	# Interactive shell with a capture file for bambu-log
//	bambu-ctl -config printer.yaml -interactive -capture printer.blog
//
// Interactive Commands:
//
//	state       - Print the full reconciled state
//	get <path>  - Read one field
//	refresh     - Request a full status report
//	pause, resume, stop, speed, light, fan, temp, home, move, gcode, print
//	quit        - Exit
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bambu-link/bambu-go/pkg/discovery"
	"github.com/bambu-link/bambu-go/pkg/log"
	"github.com/bambu-link/bambu-go/pkg/metric"
	"github.com/bambu-link/bambu-go/pkg/session"
	"github.com/bambu-link/bambu-go/pkg/state"
	"github.com/bambu-link/bambu-go/pkg/transport"
	"github.com/bambu-link/bambu-go/pkg/wire"
)

func main() {
	cfg, err := parseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg Config) error {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	correlation, err := wire.ParseCorrelation(cfg.Correlation)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := metric.NewRegistry()

	var logOut io.Writer = os.Stderr
	var shell *Shell

	// The shell owns the terminal, so it is created first and logs are
	// routed through it.
	if cfg.Interactive {
		shell, err = NewShell(cfg.Timeout)
		if err != nil {
			return err
		}
		defer shell.Close()
		logOut = shell.Stderr()
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	// Protocol events go to the capture file and, at debug level, to the
	// operational log.
	var sinks []log.Logger
	if cfg.Capture != "" {
		fl, err := log.NewFileLogger(cfg.Capture)
		if err != nil {
			return fmt.Errorf("open capture: %w", err)
		}
		defer fl.Close()
		sinks = append(sinks, fl)
		logger.Info("capturing protocol events", "file", cfg.Capture)
	}
	if level <= slog.LevelDebug {
		sinks = append(sinks, log.NewSlogAdapter(logger))
	}
	var capture log.Logger = log.NoopLogger{}
	if len(sinks) > 0 {
		capture = log.NewMultiLogger(sinks...)
	}

	if cfg.Discover {
		if err := discover(ctx, &cfg, logger); err != nil {
			return err
		}
	}

	tcfg := transport.DefaultConfig()
	tcfg.Host = cfg.Host
	tcfg.Port = cfg.Port
	tcfg.Serial = cfg.Serial
	tcfg.AccessCode = cfg.AccessCode
	tcfg.Logger = logger
	tcfg.Capture = capture
	tcfg.Metrics = reg.Metrics
	if cfg.CAFile != "" {
		roots, err := transport.LoadCAFile(cfg.CAFile)
		if err != nil {
			return err
		}
		tcfg.TLS.RootCAs = roots
	}

	tr, err := transport.NewMQTT(tcfg)
	if err != nil {
		return err
	}
	defer tr.Close()

	scfg := session.DefaultConfig()
	scfg.Serial = cfg.Serial
	scfg.Timeout = cfg.Timeout
	scfg.Correlation = correlation
	scfg.SequenceStart = cfg.SequenceStart
	scfg.Logger = logger
	scfg.Capture = capture
	scfg.Metrics = reg.Metrics

	sess, err := session.New(tr, scfg)
	if err != nil {
		return err
	}
	defer sess.Close()
	sess.OnEvent(eventLogger(logger))

	if cfg.MetricsAddr != "" {
		go func() {
			logger.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := reg.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	logger.Info("connecting", "broker", tcfg.Broker(), "serial", cfg.Serial, "client_id", tr.ClientID())
	if err := sess.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if shell != nil {
		shell.printer = sess
		go shell.Run(ctx, cancel)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// discover resolves cfg.Host and cfg.Port from mDNS by serial.
func discover(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	dcfg := discovery.DefaultConfig()
	dcfg.Interface = cfg.Interface
	dcfg.Logger = logger

	browser, err := discovery.NewBrowser(dcfg)
	if err != nil {
		return err
	}

	logger.Info("discovering printer", "serial", cfg.Serial)
	broker, err := browser.FindSerial(ctx, cfg.Serial)
	if errors.Is(err, discovery.ErrNotFound) && cfg.Host != "" {
		logger.Warn("printer not announced, using configured host", "host", cfg.Host)
		return nil
	}
	if err != nil {
		return fmt.Errorf("discover %s: %w", cfg.Serial, err)
	}

	cfg.Host = broker.Address()
	if broker.Secure() && broker.Port != 0 {
		cfg.Port = int(broker.Port)
	}
	logger.Info("printer found", "instance", broker.Instance, "addr", broker.Dial())
	return nil
}

// eventLogger logs session events.
func eventLogger(logger *slog.Logger) session.EventHandler {
	return func(ev session.Event) {
		switch ev.Type {
		case session.EventConnected:
			logger.Info("connected")
		case session.EventDisconnected:
			if ev.Error != nil {
				logger.Warn("disconnected", "error", ev.Error)
			} else {
				logger.Info("disconnected")
			}
		case session.EventError:
			logger.Warn("session error", "error", ev.Error)
		case session.EventData:
			logger.Debug("message", "topic", ev.Message.Topic, "command", ev.Message.Command())
		case session.EventState:
			logger.Debug("state", "snapshot", compact(ev.State))
		case session.EventStateUpdate:
			logger.Info("state update", "changes", compact(ev.Patch))
		}
	}
}

// compact renders a state as single-line JSON for log attributes.
func compact(s *state.State) string {
	data, err := json.Marshal(s)
	if err != nil {
		return err.Error()
	}
	return string(data)
}
