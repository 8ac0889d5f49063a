// v1
// internal/app/app.go
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nrg-champ/telemetry-stream/internal/config"
	"github.com/nrg-champ/telemetry-stream/internal/mirror"
	"github.com/nrg-champ/telemetry-stream/internal/observability"
	"github.com/nrg-champ/telemetry-stream/internal/stream"
	"github.com/nrg-champ/telemetry-stream/internal/telemetry"
	"github.com/nrg-champ/telemetry-stream/internal/transport"
)

const shutdownTimeout = 5 * time.Second

// Application wires configuration, logging, metrics, mirrors and the
// emission loop for one run of the telemetry stream.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	runID      string
	registry   *prometheus.Registry
	metricsSrv *observability.Server
	emitter    *stream.Emitter
	closers    []io.Closer
}

// Option overrides collaborators, mainly for tests.
type Option func(*options)

type options struct {
	source     telemetry.RandomSource
	sleeper    stream.Sleeper
	httpClient *http.Client
	accessLog  io.Writer
}

func WithRandomSource(src telemetry.RandomSource) Option {
	return func(o *options) { o.source = src }
}

func WithSleeper(s stream.Sleeper) Option {
	return func(o *options) { o.sleeper = s }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithAccessLog redirects the metrics listener's access log (stdout by default).
func WithAccessLog(w io.Writer) Option {
	return func(o *options) { o.accessLog = w }
}

// New prepares a fully wired run. Mirrors that cannot connect are skipped
// with a warning; they never block the HTTP stream.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.accessLog == nil {
		o.accessLog = os.Stdout
	}

	runID := uuid.NewString()
	logger = logger.With(slog.String("run_id", runID))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	client := transport.New(transport.Config{
		Endpoint:       cfg.Endpoint,
		ProbeTimeout:   cfg.ProbeTimeout,
		RequestTimeout: cfg.RequestTimeout,
		HTTPClient:     o.httpClient,
		Observer:       metrics,
	}, logger.With(slog.String("component", "transmitter")))

	genOpts := []telemetry.Option{telemetry.WithObserver(metrics)}
	if o.source != nil {
		genOpts = append(genOpts, telemetry.WithSource(o.source))
	}
	gen := telemetry.NewGenerator(logger.With(slog.String("component", "generator")), genOpts...)

	a := &Application{cfg: cfg, logger: logger, runID: runID, registry: reg}

	var mirrors []stream.Mirror
	if len(cfg.KafkaBrokers) > 0 {
		kp := mirror.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, runID, logger.With(slog.String("component", "kafka_mirror")))
		mirrors = append(mirrors, kp)
		a.closers = append(a.closers, kp)
	}
	if cfg.MQTTBroker != "" {
		mp, err := mirror.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTTopic, runID, logger.With(slog.String("component", "mqtt_mirror")))
		if err != nil {
			logger.Warn("mqtt mirror disabled", "broker", cfg.MQTTBroker, "err", err)
		} else {
			mirrors = append(mirrors, mp)
			a.closers = append(a.closers, mp)
		}
	}

	emOpts := []stream.EmitterOption{stream.WithObserver(metrics), stream.WithMirrors(mirrors...)}
	if o.sleeper != nil {
		emOpts = append(emOpts, stream.WithSleeper(o.sleeper))
	}
	a.emitter = stream.NewEmitter(stream.Config{
		Interval:      cfg.Interval,
		SummaryEvery:  cfg.SummaryEvery,
		MaxIterations: cfg.MaxIterations,
	}, logger.With(slog.String("component", "emitter")), client, client, gen, emOpts...)

	if cfg.MetricsAddr != "" {
		a.metricsSrv = observability.NewServer(cfg.MetricsAddr, reg, o.accessLog, logger.With(slog.String("component", "metrics")))
	}
	return a, nil
}

func (a *Application) RunID() string { return a.runID }

// Registry exposes the collectors backing /metrics.
func (a *Application) Registry() *prometheus.Registry { return a.registry }

// Run blocks until the emitter stops. It returns the emitter's error; a
// context cancellation is a clean stop.
func (a *Application) Run(ctx context.Context) (stream.Stats, error) {
	a.logger.Info("starting hardware telemetry stream", "endpoint", a.cfg.Endpoint, "interval", a.cfg.Interval.String())
	a.logger.Info("press Ctrl+C to stop")

	if a.metricsSrv != nil {
		go func() {
			if err := a.metricsSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server error", "err", err)
			}
		}()
	}

	st, err := a.emitter.Run(ctx)
	if errors.Is(err, transport.ErrConnectivity) {
		a.logger.Error("make sure the receiving app is running", "endpoint", a.cfg.Endpoint)
	}
	a.shutdown()
	return st, err
}

func (a *Application) shutdown() {
	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.metricsSrv.Stop(ctx); err != nil {
			a.logger.Error("metrics shutdown error", "err", err)
		}
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("mirror close failed", "err", err)
		}
	}
}
