// v1
// internal/config/config.go
package config

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures every runtime setting of the telemetry stream. Values are
// layered: defaults, then an optional properties (or YAML) file, then
// TELEMETRY_* environment variables.
type Config struct {
	// Endpoint is probed with GET and receives every sample via POST.
	Endpoint string
	// Interval is the pause between two iterations.
	Interval time.Duration
	// RequestTimeout bounds each POST.
	RequestTimeout time.Duration
	// ProbeTimeout bounds the startup GET.
	ProbeTimeout time.Duration
	// SummaryEvery controls how often a summary line is logged.
	SummaryEvery int
	// MaxIterations stops the loop after that many sends; 0 means forever.
	MaxIterations int
	// MetricsAddr enables the Prometheus listener when non-empty.
	MetricsAddr string

	KafkaBrokers []string
	KafkaTopic   string
	MQTTBroker   string
	MQTTTopic    string

	LogPath  string
	LogLevel string

	// PropertiesPath records which file was consulted.
	PropertiesPath string
}

const (
	DefaultEndpoint       = "http://localhost:8081/api/telemetry"
	defaultInterval       = 500 * time.Millisecond
	defaultRequestTimeout = 5 * time.Second
	defaultProbeTimeout   = 5 * time.Second
	defaultSummaryEvery   = 10
	defaultPropsPath      = "telemetry.properties"
	defaultKafkaTopic     = "hardware.telemetry"
	defaultMQTTTopic      = "hardware/telemetry"
	defaultLogPath        = "telemetry-stream.log"
	defaultLogLevel       = "info"

	envPrefix = "TELEMETRY_"
)

// keys lists every recognised setting; env names are envPrefix+upper(key).
var keys = []string{
	"endpoint", "interval", "request_timeout", "probe_timeout",
	"summary_every", "max_iterations", "metrics_addr",
	"kafka_brokers", "kafka_topic", "mqtt_broker", "mqtt_topic",
	"log_path", "log_level",
}

func Defaults() Config {
	return Config{
		Endpoint:       DefaultEndpoint,
		Interval:       defaultInterval,
		RequestTimeout: defaultRequestTimeout,
		ProbeTimeout:   defaultProbeTimeout,
		SummaryEvery:   defaultSummaryEvery,
		KafkaTopic:     defaultKafkaTopic,
		MQTTTopic:      defaultMQTTTopic,
		LogPath:        defaultLogPath,
		LogLevel:       defaultLogLevel,
	}
}

// Load resolves configuration. The file location comes from
// TELEMETRY_PROPERTIES_PATH; a missing file is not an error.
func Load() (Config, error) {
	cfg := Defaults()

	path := strings.TrimSpace(os.Getenv(envPrefix + "PROPERTIES_PATH"))
	if path == "" {
		path = defaultPropsPath
	}
	cfg.PropertiesPath = path

	props, err := readFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}
	for _, k := range keys {
		if v, ok := props[k]; ok {
			if err := set(&cfg, k, v); err != nil {
				return Config{}, fmt.Errorf("property %s: %w", k, err)
			}
		}
	}

	for _, k := range keys {
		name := envPrefix + strings.ToUpper(k)
		if v, ok := os.LookupEnv(name); ok {
			if err := set(&cfg, k, strings.TrimSpace(v)); err != nil {
				return Config{}, fmt.Errorf("env %s: %w", name, err)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants after layering.
func (c Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint %q must be an absolute http(s) URL", c.Endpoint)
	}
	if c.Interval <= 0 || c.RequestTimeout <= 0 || c.ProbeTimeout <= 0 {
		return errors.New("interval and timeouts must be positive")
	}
	if c.SummaryEvery < 1 {
		return errors.New("summary_every must be >= 1")
	}
	if c.MaxIterations < 0 {
		return errors.New("max_iterations cannot be negative")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("kafka_topic is required when kafka_brokers is set")
	}
	if c.MQTTBroker != "" && c.MQTTTopic == "" {
		return errors.New("mqtt_topic is required when mqtt_broker is set")
	}
	return nil
}

func set(cfg *Config, key, value string) error {
	switch key {
	case "endpoint":
		if value == "" {
			return errors.New("cannot be empty")
		}
		cfg.Endpoint = value
	case "interval":
		return setDuration(&cfg.Interval, value)
	case "request_timeout":
		return setDuration(&cfg.RequestTimeout, value)
	case "probe_timeout":
		return setDuration(&cfg.ProbeTimeout, value)
	case "summary_every":
		return setInt(&cfg.SummaryEvery, value)
	case "max_iterations":
		return setInt(&cfg.MaxIterations, value)
	case "metrics_addr":
		cfg.MetricsAddr = value
	case "kafka_brokers":
		cfg.KafkaBrokers = splitCSV(value)
	case "kafka_topic":
		cfg.KafkaTopic = value
	case "mqtt_broker":
		cfg.MQTTBroker = value
	case "mqtt_topic":
		cfg.MQTTTopic = value
	case "log_path":
		if value != "" && value != "-" {
			value = filepath.Clean(value)
		}
		cfg.LogPath = value
	case "log_level":
		cfg.LogLevel = strings.ToLower(value)
	}
	return nil
}

// setDuration accepts Go durations ("750ms") or bare seconds ("0.5").
func setDuration(dst *time.Duration, value string) error {
	if d, err := time.ParseDuration(value); err == nil {
		*dst = d
		return nil
	}
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %q", value)
	}
	*dst = time.Duration(secs * float64(time.Second))
	return nil
}

func setInt(dst *int, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer %q", value)
	}
	*dst = n
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func readFile(path string) (map[string]string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		return readYAML(path)
	}
	return readProperties(path)
}

func readProperties(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	m := map[string]string{}
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, ";") {
			continue
		}
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid properties entry on line %d", line)
		}
		m[strings.ToLower(strings.TrimSpace(parts[0]))] = strings.TrimSpace(parts[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read properties: %w", err)
	}
	return m, nil
}

// readYAML flattens a single-level YAML mapping into the same key space.
// Lists (kafka_brokers) are joined with commas.
func readYAML(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	m := make(map[string]string, len(doc))
	for k, v := range doc {
		switch tv := v.(type) {
		case []any:
			parts := make([]string, 0, len(tv))
			for _, p := range tv {
				parts = append(parts, fmt.Sprint(p))
			}
			m[strings.ToLower(k)] = strings.Join(parts, ",")
		case nil:
			m[strings.ToLower(k)] = ""
		default:
			m[strings.ToLower(k)] = fmt.Sprint(tv)
		}
	}
	return m, nil
}
