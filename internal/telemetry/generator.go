// v1
// internal/telemetry/generator.go
package telemetry

import (
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// Base ranges and event tuning for the synthetic hardware profile.
const (
	GPUTempMin    = 45.0
	GPUTempSpan   = 25.0
	CPUTempMin    = 55.0
	CPUTempSpan   = 20.0
	FanRPMMin     = 1200.0
	FanRPMSpan    = 400.0
	PowerDrawMin  = 110.0
	PowerDrawSpan = 40.0

	SpikeProbability = 0.08
	SpikeMinFactor   = 1.3
	SpikeFactorSpan  = 0.4

	NoiseFactor = 0.05
)

// RandomSource yields uniform draws in [0,1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

// Observer is notified about generation events. Optional.
type Observer interface {
	SampleGenerated()
	SpikeApplied(multiplier float64)
}

// Generator builds samples from a random source. It is not safe for
// concurrent use unless the source is.
type Generator struct {
	rnd RandomSource
	now func() time.Time
	log *slog.Logger
	obs Observer
}

// Option customises a Generator.
type Option func(*Generator)

// WithSource replaces the default time-seeded source.
func WithSource(src RandomSource) Option {
	return func(g *Generator) { g.rnd = src }
}

// WithClock replaces time.Now for the sample timestamp.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithObserver attaches generation hooks (metrics).
func WithObserver(o Observer) Option {
	return func(g *Generator) { g.obs = o }
}

func NewGenerator(log *slog.Logger, opts ...Option) *Generator {
	if log == nil {
		log = slog.Default()
	}
	g := &Generator{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
		log: log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate draws one sample. The draw order is fixed: four base values,
// the spike test, the spike multiplier (only when spiking), then one noise
// draw per field in GPU, CPU, fan, power order. Spike scaling always
// happens before noise.
func (g *Generator) Generate() Sample {
	ts := g.now()

	gpu := GPUTempMin + g.rnd.Float64()*GPUTempSpan
	cpu := CPUTempMin + g.rnd.Float64()*CPUTempSpan
	fan := FanRPMMin + g.rnd.Float64()*FanRPMSpan
	power := PowerDrawMin + g.rnd.Float64()*PowerDrawSpan

	if g.rnd.Float64() < SpikeProbability {
		m := SpikeMinFactor + g.rnd.Float64()*SpikeFactorSpan
		gpu *= m
		cpu *= m
		fan *= m
		power *= m
		g.log.Warn("spike detected",
			"multiplier", math.Round(m*100)/100,
			"gpu_temp", round1(gpu),
			"cpu_temp", round1(cpu),
		)
		if g.obs != nil {
			g.obs.SpikeApplied(m)
		}
	}

	s := Sample{
		Timestamp: epochSeconds(ts),
		GPUTemp:   round1(g.jitter(gpu)),
		CPUTemp:   round1(g.jitter(cpu)),
		FanRPM:    math.Round(g.jitter(fan)),
		PowerDraw: round1(g.jitter(power)),
	}
	if g.obs != nil {
		g.obs.SampleGenerated()
	}
	return s
}

// jitter applies symmetric multiplicative noise of at most ±NoiseFactor/2.
func (g *Generator) jitter(v float64) float64 {
	return v + (g.rnd.Float64()-0.5)*v*NoiseFactor
}
