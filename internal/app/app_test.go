// v0
// internal/app/app_test.go
package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nrg-champ/telemetry-stream/internal/config"
	"github.com/nrg-champ/telemetry-stream/internal/telemetry"
	"github.com/nrg-champ/telemetry-stream/internal/transport"
)

type constSource float64

func (c constSource) Float64() float64 { return float64(c) }

type noSleep struct{}

func (noSleep) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

type receiver struct {
	mu      sync.Mutex
	gets    int
	samples []telemetry.Sample
}

func (r *receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch req.Method {
	case http.MethodGet:
		r.gets++
	case http.MethodPost:
		var s telemetry.Sample
		if err := json.NewDecoder(req.Body).Decode(&s); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		r.samples = append(r.samples, s)
	}
	w.WriteHeader(http.StatusOK)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApplicationRunBounded(t *testing.T) {
	rcv := &receiver{}
	srv := httptest.NewServer(rcv)
	defer srv.Close()

	cfg := config.Defaults()
	cfg.Endpoint = srv.URL + "/api/telemetry"
	cfg.MaxIterations = 3

	a, err := New(cfg, quietLogger(), WithRandomSource(constSource(0.5)), WithSleeper(noSleep{}), WithAccessLog(io.Discard))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if a.RunID() == "" {
		t.Fatalf("run id must be assigned")
	}

	st, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if st.Total != 3 || st.Succeeded != 3 {
		t.Fatalf("stats=%+v want 3/3", st)
	}
	if rcv.gets != 1 || len(rcv.samples) != 3 {
		t.Fatalf("receiver saw %d probes and %d samples", rcv.gets, len(rcv.samples))
	}
	s := rcv.samples[0]
	if s.GPUTemp != 57.5 || s.CPUTemp != 65 || s.FanRPM != 1400 || s.PowerDraw != 130 {
		t.Fatalf("unexpected sample %+v", s)
	}

	families, err := a.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var generated float64
	for _, mf := range families {
		if mf.GetName() == "telemetry_samples_generated_total" {
			generated = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	if generated != 3 {
		t.Fatalf("samples generated metric=%v want 3", generated)
	}
}

func TestApplicationProbeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			t.Errorf("no sample may be sent after a failed probe")
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.Endpoint = srv.URL

	a, err := New(cfg, quietLogger(), WithSleeper(noSleep{}), WithAccessLog(io.Discard))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := a.Run(context.Background()); !errors.Is(err, transport.ErrConnectivity) {
		t.Fatalf("expected ErrConnectivity, got %v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Endpoint = "not a url"
	if _, err := New(cfg, quietLogger()); err == nil {
		t.Fatalf("expected validation error")
	}
}
