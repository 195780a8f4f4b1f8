package config

import (
	"flag"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"
)

const (
	defaultSinkAddress   = ":8086"
	defaultFilePath      = "sink-points.json"
	defaultStoreInterval = 300
	defaultPointsLimit   = 1000
)

// SinkConfig configures the development write endpoint.
type SinkConfig struct {
	Address  string
	File     string
	DSN      string
	Key      string
	Interval time.Duration
	Restore  bool
	Limit    int
	Debug    bool
}

// LoadSinkConfig resolves ENV > CLI > defaults.
func LoadSinkConfig(args []string, out io.Writer) (SinkConfig, error) {
	if out == nil {
		out = io.Discard
	}

	fs := flag.NewFlagSet("sink", flag.ContinueOnError)
	fs.SetOutput(out)

	var addrOpt, fileOpt, dsnOpt, keyOpt string
	var ivalOpt, limitOpt int
	var restoreOpt, debugOpt bool

	fs.StringVar(&addrOpt, "a", "", fmt.Sprintf("HTTP listen address, default: %s (ADDRESS)", defaultSinkAddress))
	fs.StringVar(&fileOpt, "f", "", fmt.Sprintf("points file, default: %s (FILE_STORAGE_PATH)", defaultFilePath))
	fs.StringVar(&dsnOpt, "d", "", "Postgres DSN (DATABASE_DSN)")
	fs.StringVar(&keyOpt, "k", "", "secret key to verify HashSHA256 (KEY)")
	fs.IntVar(&ivalOpt, "i", -1, fmt.Sprintf("store interval seconds (0 - sync), default: %d (STORE_INTERVAL)", defaultStoreInterval))
	fs.IntVar(&limitOpt, "l", 0, fmt.Sprintf("points kept per series in memory, default: %d (POINTS_LIMIT)", defaultPointsLimit))
	fs.BoolVar(&restoreOpt, "r", false, "restore points on start (RESTORE)")
	fs.BoolVar(&debugOpt, "debug", false, "development logging (DEBUG)")

	if err := fs.Parse(args); err != nil {
		return SinkConfig{}, err
	}

	addr := normalizeListenAndServeURL(FromEnvOrFlag("ADDRESS", addrOpt, defaultSinkAddress))
	if _, port, err := net.SplitHostPort(addr); err != nil || port == "" {
		return SinkConfig{}, invalid("listen address", addr, "want [host]:port")
	}

	interval, _ := FromEnvOrFlagDuration("STORE_INTERVAL", ivalOpt, -1, time.Duration(defaultStoreInterval)*time.Second)
	if interval < 0 {
		return SinkConfig{}, invalid("store interval", interval.String(), "must be >= 0")
	}

	return SinkConfig{
		Address:  addr,
		File:     FromEnvOrFlag("FILE_STORAGE_PATH", fileOpt, defaultFilePath),
		DSN:      FromEnvOrFlag("DATABASE_DSN", dsnOpt, ""),
		Key:      FromEnvOrFlag("KEY", keyOpt, ""),
		Interval: interval,
		Restore:  FromEnvOrFlagBool("RESTORE", restoreOpt, false),
		Limit:    FromEnvOrFlagInt("POINTS_LIMIT", limitOpt, defaultPointsLimit, 1),
		Debug:    FromEnvOrFlagBool("DEBUG", debugOpt, false),
	}, nil
}

func normalizeListenAndServeURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultSinkAddress
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		if u, err := url.Parse(s); err == nil && u.Host != "" {
			return u.Host
		}
	}
	if !strings.Contains(s, ":") {
		return ":" + s
	}
	return s
}
