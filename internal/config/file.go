package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// reporterFile is the YAML form of the reporter settings. Empty values
// leave the built-in defaults alone.
type reporterFile struct {
	Version   string `yaml:"version"`
	Transport string `yaml:"transport"`
	Address   string `yaml:"address"`
	Database  string `yaml:"database"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Key       string `yaml:"key"`
	Gzip      *bool  `yaml:"gzip"`
	BatchSize int    `yaml:"batch_size"`
	Timeout   string `yaml:"timeout"`

	Tags        map[string]string `yaml:"tags"`
	Transformer string            `yaml:"transformer"`
	Precision   string            `yaml:"precision"`
	Prefix      string            `yaml:"prefix"`
	SkipIdle    *bool             `yaml:"skip_idle"`

	PollInterval   string `yaml:"poll_interval"`
	ReportInterval string `yaml:"report_interval"`
	MetricsAddress string `yaml:"metrics_address"`
	SelfMetrics    *bool  `yaml:"self_metrics"`
	Runtime        *bool  `yaml:"runtime"`
	AuditFile      string `yaml:"audit_file"`
	AuditURL       string `yaml:"audit_url"`
}

func readReporterFile(path string) (reporterFile, error) {
	var f reporterFile
	if strings.TrimSpace(path) == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return f, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return f, nil
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
