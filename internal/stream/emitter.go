// v1
// internal/stream/emitter.go
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/nrg-champ/telemetry-stream/internal/telemetry"
	"github.com/nrg-champ/telemetry-stream/internal/transport"
)

const (
	DefaultInterval     = 500 * time.Millisecond
	DefaultSummaryEvery = 10
)

// ErrUnexpected marks a failure in the loop body that is not a plain
// transmission failure. It stops the run.
var ErrUnexpected = errors.New("unexpected emission error")

// errInterrupted signals that the context ended while a send was in flight.
var errInterrupted = errors.New("interrupted")

type Prober interface {
	Probe(ctx context.Context) error
}

type Sender interface {
	Send(ctx context.Context, s telemetry.Sample) error
}

type Source interface {
	Generate() telemetry.Sample
}

// Mirror is a best-effort secondary destination for every sample.
type Mirror interface {
	Name() string
	Publish(ctx context.Context, s telemetry.Sample) error
}

// Sleeper waits between iterations. It returns early with ctx.Err() when
// the context ends.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Observer is told about lifecycle and mirror outcomes. Optional.
type Observer interface {
	StateChanged(s State)
	MirrorPublished(name string, ok bool)
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Config tunes the loop. Zero values fall back to defaults.
type Config struct {
	Interval      time.Duration
	SummaryEvery  int
	MaxIterations int // 0 runs until cancelled
}

// Emitter runs the probe-then-loop lifecycle: probe the endpoint once,
// then generate, send and pause until the context is cancelled.
type Emitter struct {
	cfg     Config
	log     *slog.Logger
	prober  Prober
	sender  Sender
	source  Source
	mirrors []Mirror
	sleeper Sleeper
	obs     Observer
	state   State
}

type EmitterOption func(*Emitter)

func WithMirrors(m ...Mirror) EmitterOption {
	return func(e *Emitter) { e.mirrors = append(e.mirrors, m...) }
}

func WithSleeper(s Sleeper) EmitterOption {
	return func(e *Emitter) { e.sleeper = s }
}

func WithObserver(o Observer) EmitterOption {
	return func(e *Emitter) { e.obs = o }
}

func NewEmitter(cfg Config, log *slog.Logger, prober Prober, sender Sender, source Source, opts ...EmitterOption) *Emitter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.SummaryEvery <= 0 {
		cfg.SummaryEvery = DefaultSummaryEvery
	}
	if log == nil {
		log = slog.Default()
	}
	e := &Emitter{
		cfg:     cfg,
		log:     log,
		prober:  prober,
		sender:  sender,
		source:  source,
		sleeper: timerSleeper{},
		state:   Starting,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Emitter) State() State { return e.state }

func (e *Emitter) setState(s State) {
	e.state = s
	e.log.Debug("emitter state", "state", s.String())
	if e.obs != nil {
		e.obs.StateChanged(s)
	}
}

// Run probes the endpoint and, if it answers, emits samples until ctx is
// cancelled, MaxIterations is reached or an unexpected error occurs. A
// failed probe returns an error matching transport.ErrConnectivity and
// never sends anything. Cancellation is a clean stop and returns nil.
func (e *Emitter) Run(ctx context.Context) (Stats, error) {
	var st Stats
	e.setState(Starting)
	if err := e.prober.Probe(ctx); err != nil {
		e.log.Error("cannot connect to api, exiting", "err", err)
		e.setState(Stopped)
		return st, err
	}

	e.setState(Running)
	err := e.loop(ctx, &st)
	e.setState(Stopped)
	if err != nil {
		e.log.Error("emission stopped by error", "err", err)
	}
	e.log.Info("final stats", "successful", st.Succeeded, "total", st.Total, "summary", st.String())
	return st, err
}

func (e *Emitter) loop(ctx context.Context, st *Stats) error {
	for {
		if ctx.Err() != nil {
			e.log.Info("telemetry stream stopped by user")
			return nil
		}
		err := e.step(ctx, st)
		if errors.Is(err, errInterrupted) {
			e.log.Info("telemetry stream stopped by user")
			return nil
		}
		if err != nil {
			return err
		}
		if e.cfg.MaxIterations > 0 && st.Total >= e.cfg.MaxIterations {
			e.log.Info("iteration limit reached", "limit", e.cfg.MaxIterations)
			return nil
		}
		if err := e.sleeper.Sleep(ctx, e.cfg.Interval); err != nil {
			e.log.Info("telemetry stream stopped by user")
			return nil
		}
	}
}

// step runs one generate-send iteration. A panic in any collaborator is
// converted into ErrUnexpected.
func (e *Emitter) step(ctx context.Context, st *Stats) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrUnexpected, r)
		}
	}()

	s := e.source.Generate()
	sendErr := e.sender.Send(ctx, s)
	if sendErr != nil && ctx.Err() != nil {
		return errInterrupted
	}
	switch {
	case sendErr == nil:
		st.Succeeded++
	case errors.Is(sendErr, transport.ErrTransmission):
		// already logged by the transmitter; the sample is dropped
	default:
		return fmt.Errorf("%w: %w", ErrUnexpected, sendErr)
	}

	st.Total++
	if st.Total%e.cfg.SummaryEvery == 0 {
		e.logSummary(*st, s)
	}

	e.publishMirrors(ctx, s)
	return nil
}

func (e *Emitter) publishMirrors(ctx context.Context, s telemetry.Sample) {
	for _, m := range e.mirrors {
		err := m.Publish(ctx, s)
		if err != nil {
			e.log.Warn("mirror publish failed", "mirror", m.Name(), "err", err)
		}
		if e.obs != nil {
			e.obs.MirrorPublished(m.Name(), err == nil)
		}
	}
}

func (e *Emitter) logSummary(st Stats, s telemetry.Sample) {
	e.log.Info("telemetry summary",
		"at", s.Time().Local().Format("15:04:05"),
		"entry", st.Total,
		"success_pct", math.Round(st.SuccessRate()*10)/10,
		"gpu_temp", s.GPUTemp,
		"cpu_temp", s.CPUTemp,
		"fan_rpm", s.FanRPM,
		"power_draw", s.PowerDraw,
	)
}
