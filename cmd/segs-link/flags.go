package main

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	Ethernet      string // IP:RX_PORT:TX_PORT
	Serial        string // PORT_NAME:BAUD_RATE
	BaudRate      int    // used when autodetecting the serial port
	PollInterval  time.Duration
	DriveInterval time.Duration
	MetricsPort   int
	NATSURL       string
	LogLevel      string
	LogFormat     string
	ShowVersion   bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.Ethernet, "ethernet",
		getEnv("SEGS_ETHERNET", ""),
		"Ethernet endpoint as IP:RX_PORT:TX_PORT (env: SEGS_ETHERNET)")

	flag.StringVar(&cfg.Serial, "serial",
		getEnv("SEGS_SERIAL", ""),
		"Serial endpoint as PORT_NAME:BAUD_RATE; omit both endpoints to autodetect (env: SEGS_SERIAL)")

	flag.IntVar(&cfg.BaudRate, "baud",
		getEnvInt("SEGS_BAUD", 115200),
		"Baud rate for the autodetected serial port (env: SEGS_BAUD)")

	flag.DurationVar(&cfg.PollInterval, "poll-interval",
		getEnvDuration("SEGS_POLL_INTERVAL", time.Second),
		"Reconnection poll interval (env: SEGS_POLL_INTERVAL)")

	flag.DurationVar(&cfg.DriveInterval, "drive-interval",
		getEnvDuration("SEGS_DRIVE_INTERVAL", 100*time.Millisecond),
		"Message distribution interval (env: SEGS_DRIVE_INTERVAL)")

	flag.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("SEGS_METRICS_PORT", 9090),
		"Metrics and health port, 0 to disable (env: SEGS_METRICS_PORT)")

	flag.StringVar(&cfg.NATSURL, "nats-url",
		getEnv("SEGS_NATS_URL", ""),
		"NATS URL to relay telemetry to, empty to disable (env: SEGS_NATS_URL)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("SEGS_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: SEGS_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("SEGS_LOG_FORMAT", "text"),
		"Log format: json, text (env: SEGS_LOG_FORMAT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Print version and exit")

	flag.Parse()
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
