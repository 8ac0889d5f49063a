// v0
// internal/transport/client_test.go
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nrg-champ/telemetry-stream/internal/telemetry"
)

type recordingObserver struct {
	ok, failed int
	statuses   []int
}

func (r *recordingObserver) Transmitted(ok bool, status int, _ time.Duration) {
	if ok {
		r.ok++
	} else {
		r.failed++
	}
	r.statuses = append(r.statuses, status)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProbeOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("probe must use GET, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL + "/api/telemetry"}, quietLogger())
	if err := c.Probe(context.Background()); err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
}

func TestProbeNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL}, quietLogger())
	err := c.Probe(context.Background())
	if !errors.Is(err, ErrConnectivity) {
		t.Fatalf("expected ErrConnectivity, got %v", err)
	}
}

func TestProbeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(Config{Endpoint: url}, quietLogger())
	if err := c.Probe(context.Background()); !errors.Is(err, ErrConnectivity) {
		t.Fatalf("expected ErrConnectivity, got %v", err)
	}
}

func TestProbeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(Config{Endpoint: srv.URL, ProbeTimeout: 50 * time.Millisecond}, quietLogger())
	start := time.Now()
	if err := c.Probe(context.Background()); !errors.Is(err, ErrConnectivity) {
		t.Fatalf("expected ErrConnectivity, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("probe did not honour its timeout")
	}
}

func TestSendPostsJSON(t *testing.T) {
	var got telemetry.Sample
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c := New(Config{Endpoint: srv.URL, Observer: obs}, quietLogger())
	want := telemetry.Sample{Timestamp: 1700000000.5, GPUTemp: 60.1, CPUTemp: 65.2, FanRPM: 1400, PowerDraw: 120.3}
	if err := c.Send(context.Background(), want); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if got != want {
		t.Fatalf("server received %+v want %+v", got, want)
	}
	if obs.ok != 1 || obs.failed != 0 {
		t.Fatalf("observer saw ok=%d failed=%d", obs.ok, obs.failed)
	}
}

func TestSendNon200IsTransmissionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "storage full", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c := New(Config{Endpoint: srv.URL, Observer: obs}, quietLogger())
	err := c.Send(context.Background(), telemetry.Sample{GPUTemp: 1, CPUTemp: 1, FanRPM: 1, PowerDraw: 1})
	if !errors.Is(err, ErrTransmission) {
		t.Fatalf("expected ErrTransmission, got %v", err)
	}
	var te *TransmissionError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransmissionError, got %T", err)
	}
	if te.StatusCode != http.StatusServiceUnavailable || te.Body != "storage full" {
		t.Fatalf("unexpected detail: %+v", te)
	}
	if obs.failed != 1 || obs.statuses[0] != http.StatusServiceUnavailable {
		t.Fatalf("observer not told about failure: %+v", obs)
	}
}

func TestSendNetworkErrorIsTransmissionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(Config{Endpoint: url}, quietLogger())
	err := c.Send(context.Background(), telemetry.Sample{})
	if !errors.Is(err, ErrTransmission) {
		t.Fatalf("expected ErrTransmission, got %v", err)
	}
}

func TestSendTimeout(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(Config{Endpoint: srv.URL, RequestTimeout: 50 * time.Millisecond}, quietLogger())
	if err := c.Send(context.Background(), telemetry.Sample{}); !errors.Is(err, ErrTransmission) {
		t.Fatalf("expected ErrTransmission on timeout, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one attempt, got %d", calls.Load())
	}
}
