package config

import (
	"flag"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/vshulcz/influxreporter/internal/domain"
	"github.com/vshulcz/influxreporter/internal/lineproto"
	"github.com/vshulcz/influxreporter/internal/measurement"
)

const (
	defaultHTTPAddress    = "http://127.0.0.1:8086"
	defaultUDPAddress     = "127.0.0.1:8089"
	defaultDatabase       = "metrics"
	defaultBatchSize      = 5000
	defaultTimeout        = 10 * time.Second
	defaultReportInterval = 10 * time.Second
	defaultPollInterval   = 2 * time.Second
)

// TransportKind selects how writes reach InfluxDB.
type TransportKind int

const (
	TransportHTTP TransportKind = iota
	TransportUDP
)

func (k TransportKind) String() string {
	switch k {
	case TransportHTTP:
		return "http"
	case TransportUDP:
		return "udp"
	default:
		return fmt.Sprintf("transport(%d)", int(k))
	}
}

// HTTPTransport addresses the InfluxDB HTTP API.
type HTTPTransport struct {
	URL       string
	Database  string
	User      string
	Password  string
	Key       string
	Gzip      bool
	BatchSize int
	Timeout   time.Duration
}

// UDPTransport addresses an InfluxDB UDP listener.
type UDPTransport struct {
	Address string
}

// Transport is a closed choice: only the field matching Kind is set.
type Transport struct {
	Kind TransportKind
	HTTP HTTPTransport
	UDP  UDPTransport
}

// ReporterConfig is validated once by LoadReporterConfig and read-only
// afterwards.
type ReporterConfig struct {
	Version   domain.Version
	Transport Transport

	BaseTags    map[string]string
	Transformer measurement.Transformer
	Precision   lineproto.Precision
	// Prefix and SkipIdle only apply to v08.
	Prefix   string
	SkipIdle bool

	PollInterval   time.Duration
	ReportInterval time.Duration

	MetricsAddress string
	SelfMetrics    bool
	Runtime        bool
	AuditFile      string
	AuditURL       string
	Debug          bool
}

type reporterFlags struct {
	config      string
	version     string
	transport   string
	address     string
	database    string
	user        string
	password    string
	key         string
	gzip        bool
	batch       int
	timeout     int
	tags        string
	transformer string
	precision   string
	prefix      string
	skipIdle    bool
	poll        int
	report      int
	metrics     string
	selfMetrics bool
	noRuntime   bool
	auditFile   string
	auditURL    string
	debug       bool
}

// LoadReporterConfig resolves ENV > CLI > YAML file > defaults and
// validates the result. Invalid values come back as *ConfigError.
func LoadReporterConfig(args []string, out io.Writer) (ReporterConfig, error) {
	if out == nil {
		out = io.Discard
	}

	fs := flag.NewFlagSet("reporter", flag.ContinueOnError)
	fs.SetOutput(out)

	var f reporterFlags
	fs.StringVar(&f.config, "c", "", "YAML config file (CONFIG)")
	fs.StringVar(&f.version, "v", "", "protocol version: latest or v08 (INFLUX_VERSION)")
	fs.StringVar(&f.transport, "t", "", "transport: http or udp (INFLUX_TRANSPORT)")
	fs.StringVar(&f.address, "a", "", fmt.Sprintf("InfluxDB URL for http or host:port for udp, default: %s / %s (INFLUX_ADDRESS)", defaultHTTPAddress, defaultUDPAddress))
	fs.StringVar(&f.database, "db", "", fmt.Sprintf("database, default: %s (INFLUX_DATABASE)", defaultDatabase))
	fs.StringVar(&f.user, "user", "", "InfluxDB user (INFLUX_USER)")
	fs.StringVar(&f.password, "password", "", "InfluxDB password (INFLUX_PASSWORD)")
	fs.StringVar(&f.key, "k", "", "secret key for HashSHA256 header (KEY)")
	fs.BoolVar(&f.gzip, "gzip", false, "gzip request bodies (INFLUX_GZIP)")
	fs.IntVar(&f.batch, "batch", 0, fmt.Sprintf("lines per HTTP request, default: %d (BATCH_SIZE)", defaultBatchSize))
	fs.IntVar(&f.timeout, "timeout", 0, fmt.Sprintf("HTTP timeout in seconds, default: %v (INFLUX_TIMEOUT)", defaultTimeout))
	fs.StringVar(&f.tags, "tags", "", "base tags k=v,k2=v2 (BASE_TAGS)")
	fs.StringVar(&f.transformer, "transformer", "", "measurement transformer: noop or key-value (TRANSFORMER)")
	fs.StringVar(&f.precision, "precision", "", "time precision: s, ms, u or ns (PRECISION)")
	fs.StringVar(&f.prefix, "prefix", "", "v08 series prefix (PREFIX)")
	fs.BoolVar(&f.skipIdle, "skip-idle", false, "v08: skip metrics whose count did not change (SKIP_IDLE)")
	fs.IntVar(&f.poll, "p", 0, fmt.Sprintf("runtime poll interval in seconds, default: %v (POLL_INTERVAL)", defaultPollInterval))
	fs.IntVar(&f.report, "r", 0, fmt.Sprintf("report interval in seconds, default: %v (REPORT_INTERVAL)", defaultReportInterval))
	fs.StringVar(&f.metrics, "metrics-addr", "", "listen address for /metrics (METRICS_ADDRESS)")
	fs.BoolVar(&f.selfMetrics, "self-metrics", false, "also report the reporter's own metrics (SELF_METRICS)")
	fs.BoolVar(&f.noRuntime, "no-runtime", false, "do not collect runtime metrics (NO_RUNTIME)")
	fs.StringVar(&f.auditFile, "audit-file", "", "append cycle events to this file (AUDIT_FILE)")
	fs.StringVar(&f.auditURL, "audit-url", "", "post cycle events to this URL (AUDIT_URL)")
	fs.BoolVar(&f.debug, "debug", false, "development logging (DEBUG)")

	if err := fs.Parse(args); err != nil {
		return ReporterConfig{}, err
	}

	file, err := readReporterFile(FromEnvOrFlag("CONFIG", f.config, ""))
	if err != nil {
		return ReporterConfig{}, err
	}
	return resolveReporter(f, file)
}

func resolveReporter(f reporterFlags, file reporterFile) (ReporterConfig, error) {
	var cfg ReporterConfig
	var err error

	rawVersion := FromEnvOrFlag("INFLUX_VERSION", f.version, file.Version)
	if cfg.Version, err = domain.ParseVersion(strings.ToLower(rawVersion)); err != nil {
		return ReporterConfig{}, invalid("version", rawVersion, "want latest or v08")
	}

	if cfg.Transport, err = resolveTransport(f, file); err != nil {
		return ReporterConfig{}, err
	}

	rawTags := FromEnvOrFlag("BASE_TAGS", f.tags, "")
	if cfg.BaseTags, err = ParseTags(rawTags); err != nil {
		return ReporterConfig{}, err
	}
	if rawTags == "" && len(file.Tags) > 0 {
		for k, v := range file.Tags {
			if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
				return ReporterConfig{}, invalid("tags", k+"="+v, "empty key or value")
			}
		}
		cfg.BaseTags = file.Tags
	}

	rawTransformer := FromEnvOrFlag("TRANSFORMER", f.transformer, file.Transformer)
	if cfg.Transformer, err = measurement.ParseTransformer(rawTransformer); err != nil {
		return ReporterConfig{}, invalid("transformer", rawTransformer, "want noop or key-value")
	}

	rawPrecision := FromEnvOrFlag("PRECISION", f.precision, file.Precision)
	if cfg.Precision, err = lineproto.ParsePrecision(rawPrecision); err != nil {
		return ReporterConfig{}, invalid("precision", rawPrecision, "want s, ms, u or ns")
	}
	if cfg.Version == domain.VersionV08 && cfg.Precision == lineproto.Nanoseconds {
		return ReporterConfig{}, invalid("precision", rawPrecision, "v08 supports s, ms and u only")
	}

	cfg.Prefix = FromEnvOrFlag("PREFIX", f.prefix, file.Prefix)
	cfg.SkipIdle = FromEnvOrFlagBool("SKIP_IDLE", f.skipIdle, boolOr(file.SkipIdle, false))

	if cfg.ReportInterval, err = resolveInterval("REPORT_INTERVAL", "report interval", f.report, file.ReportInterval, defaultReportInterval); err != nil {
		return ReporterConfig{}, err
	}
	if cfg.PollInterval, err = resolveInterval("POLL_INTERVAL", "poll interval", f.poll, file.PollInterval, defaultPollInterval); err != nil {
		return ReporterConfig{}, err
	}

	cfg.MetricsAddress = FromEnvOrFlag("METRICS_ADDRESS", f.metrics, file.MetricsAddress)
	if cfg.MetricsAddress != "" {
		if _, port, err := net.SplitHostPort(cfg.MetricsAddress); err != nil || port == "" {
			return ReporterConfig{}, invalid("metrics address", cfg.MetricsAddress, "want host:port")
		}
	}
	cfg.SelfMetrics = FromEnvOrFlagBool("SELF_METRICS", f.selfMetrics, boolOr(file.SelfMetrics, false))
	cfg.Runtime = !FromEnvOrFlagBool("NO_RUNTIME", f.noRuntime, !boolOr(file.Runtime, true))
	cfg.AuditFile = FromEnvOrFlag("AUDIT_FILE", f.auditFile, file.AuditFile)
	cfg.AuditURL = FromEnvOrFlag("AUDIT_URL", f.auditURL, file.AuditURL)
	if cfg.AuditURL != "" {
		if _, err := url.ParseRequestURI(cfg.AuditURL); err != nil {
			return ReporterConfig{}, invalid("audit url", cfg.AuditURL, err.Error())
		}
	}
	cfg.Debug = FromEnvOrFlagBool("DEBUG", f.debug, false)
	return cfg, nil
}

func resolveTransport(f reporterFlags, file reporterFile) (Transport, error) {
	rawKind := strings.ToLower(FromEnvOrFlag("INFLUX_TRANSPORT", f.transport, FirstNonEmpty(file.Transport, "http")))
	address := FromEnvOrFlag("INFLUX_ADDRESS", f.address, file.Address)

	switch rawKind {
	case "http", "https":
		addr := normalizeAddressURL(FirstNonEmpty(address, defaultHTTPAddress))
		u, err := url.ParseRequestURI(addr)
		if err != nil || u.Host == "" {
			return Transport{}, invalid("address", addr, "want an http(s) URL")
		}
		timeout, err := resolveInterval("INFLUX_TIMEOUT", "timeout", f.timeout, file.Timeout, defaultTimeout)
		if err != nil {
			return Transport{}, err
		}
		return Transport{Kind: TransportHTTP, HTTP: HTTPTransport{
			URL:       addr,
			Database:  FromEnvOrFlag("INFLUX_DATABASE", f.database, FirstNonEmpty(file.Database, defaultDatabase)),
			User:      FromEnvOrFlag("INFLUX_USER", f.user, file.User),
			Password:  FromEnvOrFlag("INFLUX_PASSWORD", f.password, file.Password),
			Key:       FromEnvOrFlag("KEY", f.key, file.Key),
			Gzip:      FromEnvOrFlagBool("INFLUX_GZIP", f.gzip, boolOr(file.Gzip, false)),
			BatchSize: FromEnvOrFlagInt("BATCH_SIZE", f.batch, FirstPositive(file.BatchSize, defaultBatchSize), 1),
			Timeout:   timeout,
		}}, nil
	case "udp":
		addr := FirstNonEmpty(address, defaultUDPAddress)
		if _, port, err := net.SplitHostPort(addr); err != nil || port == "" {
			return Transport{}, invalid("address", addr, "want host:port for udp")
		}
		return Transport{Kind: TransportUDP, UDP: UDPTransport{Address: addr}}, nil
	default:
		return Transport{}, invalid("transport", rawKind, "want http or udp")
	}
}

func resolveInterval(envKey, field string, flagSeconds int, fileValue string, def time.Duration) (time.Duration, error) {
	d, custom := FromEnvOrFlagDuration(envKey, flagSeconds, 0, def)
	if !custom && fileValue != "" {
		var err error
		if d, err = time.ParseDuration(fileValue); err != nil {
			return 0, invalid(field, fileValue, "want a Go duration")
		}
	}
	if d <= 0 {
		return 0, invalid(field, d.String(), "must be > 0")
	}
	return d, nil
}

// ParseTags reads "k=v,k2=v2". Blank input yields no tags; a pair with an
// empty key or value is rejected.
func ParseTags(s string) (map[string]string, error) {
	tags := map[string]string{}
	if strings.TrimSpace(s) == "" {
		return tags, nil
	}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, invalid("tags", pair, "want key=value")
		}
		tags[k] = v
	}
	return tags, nil
}

// FirstPositive returns the first value above zero.
func FirstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func normalizeAddressURL(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	if strings.HasPrefix(s, ":") {
		return "http://localhost" + s
	}
	return "http://" + s
}
