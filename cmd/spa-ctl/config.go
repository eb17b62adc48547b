package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// appConfig holds spa-ctl's parsed CLI flags, following the teacher's
// cmd/can-server appConfig shape: a flat struct populated by flag.*
// calls, overridable by SPA_CTL_* environment variables for any flag
// not explicitly set on the command line, and checked by validate().
type appConfig struct {
	mode            string // "serve" | "send"
	socketPath      string
	sockType        string // "seqpacket" | "stream"
	logFormat       string
	logLevel        string
	metricsAddr     string
	registryBuffer  int
	registryPolicy  string
	logMetricsEvery time.Duration
	maxClients      int
	maxFrameBytes   int
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	mode := flag.String("mode", "serve", "Operation: serve|send")
	socketPath := flag.String("socket", "/tmp/spa-control.sock", "Unix-domain control socket path")
	sockType := flag.String("sock-type", "seqpacket", "Socket type: seqpacket|stream")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	registryBuffer := flag.Int("registry-buffer", 512, "Per-subscriber registry buffer (commands)")
	registryPolicy := flag.String("registry-policy", "drop", "Backpressure policy: drop|kick")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	maxClients := flag.Int("max-clients", 0, "Maximum simultaneous peers in serve mode (0 = unlimited)")
	maxFrameBytes := flag.Int("max-frame-bytes", 1<<20, "Maximum bytes accepted per recvmsg in serve mode")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.mode = *mode
	cfg.socketPath = *socketPath
	cfg.sockType = *sockType
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.registryBuffer = *registryBuffer
	cfg.registryPolicy = *registryPolicy
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.maxClients = *maxClients
	cfg.maxFrameBytes = *maxFrameBytes

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs semantic validation of the parsed configuration;
// it never touches the filesystem or network.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.mode {
	case "serve", "send":
	default:
		return fmt.Errorf("invalid mode: %s", c.mode)
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.sockType {
	case "seqpacket", "stream":
	default:
		return fmt.Errorf("invalid sock-type: %s", c.sockType)
	}
	switch c.registryPolicy {
	case "drop", "kick":
	default:
		return fmt.Errorf("invalid registry-policy: %s", c.registryPolicy)
	}
	if c.registryBuffer <= 0 {
		return fmt.Errorf("registry-buffer must be > 0 (got %d)", c.registryBuffer)
	}
	if c.maxClients < 0 {
		return fmt.Errorf("max-clients must be >= 0")
	}
	if c.maxFrameBytes <= 0 {
		return fmt.Errorf("max-frame-bytes must be > 0")
	}
	if c.socketPath == "" {
		return errors.New("socket path must not be empty")
	}
	return nil
}

// applyEnvOverrides maps SPA_CTL_* environment variables onto fields
// whose flag was not explicitly set, matching the teacher's
// CAN_SERVER_* override precedence (flag wins over env).
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["mode"]; !ok {
		if v, ok := get("SPA_CTL_MODE"); ok && v != "" {
			c.mode = v
		}
	}
	if _, ok := set["socket"]; !ok {
		if v, ok := get("SPA_CTL_SOCKET"); ok && v != "" {
			c.socketPath = v
		}
	}
	if _, ok := set["sock-type"]; !ok {
		if v, ok := get("SPA_CTL_SOCK_TYPE"); ok && v != "" {
			c.sockType = v
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("SPA_CTL_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("SPA_CTL_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("SPA_CTL_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["registry-buffer"]; !ok {
		if v, ok := get("SPA_CTL_REGISTRY_BUFFER"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.registryBuffer = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid SPA_CTL_REGISTRY_BUFFER: %w", err)
			}
		}
	}
	if _, ok := set["registry-policy"]; !ok {
		if v, ok := get("SPA_CTL_REGISTRY_POLICY"); ok && v != "" {
			c.registryPolicy = v
		}
	}
	if _, ok := set["max-clients"]; !ok {
		if v, ok := get("SPA_CTL_MAX_CLIENTS"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.maxClients = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid SPA_CTL_MAX_CLIENTS: %w", err)
			}
		}
	}
	if _, ok := set["max-frame-bytes"]; !ok {
		if v, ok := get("SPA_CTL_MAX_FRAME_BYTES"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.maxFrameBytes = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid SPA_CTL_MAX_FRAME_BYTES: %w", err)
			}
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("SPA_CTL_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.logMetricsEvery = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid SPA_CTL_LOG_METRICS_INTERVAL: %w", err)
			}
		}
	}
	return firstErr
}
