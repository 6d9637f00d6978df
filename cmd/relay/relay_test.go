package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/example/driver-hiring/internal/mirror"
)

// flakyMirror fails the first fail calls.
type flakyMirror struct {
	fail   int
	calls  int
	events []mirror.Event
}

func (f *flakyMirror) Update(_ context.Context, id int64, s mirror.State) error {
	f.calls++
	if f.calls <= f.fail {
		return errors.New("sink unavailable")
	}
	f.events = append(f.events, mirror.Event{DriverID: id, State: s})
	return nil
}

func TestApplyWithRetrySucceedsAfterRetries(t *testing.T) {
	m := &flakyMirror{fail: 2}
	ev := mirror.Event{DriverID: 7, State: mirror.State{Available: true}}
	start := time.Now()
	if err := applyWithRetry(context.Background(), m, ev, 3, 5*time.Millisecond); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if m.calls != 3 || len(m.events) != 1 || m.events[0].DriverID != 7 {
		t.Fatalf("unexpected calls=%d events=%+v", m.calls, m.events)
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Fatal("expected exponential backoff between attempts")
	}
}

func TestApplyWithRetryFailsWhenExhausted(t *testing.T) {
	m := &flakyMirror{fail: 10}
	err := applyWithRetry(context.Background(), m, mirror.Event{DriverID: 1}, 3, time.Millisecond)
	if err == nil {
		t.Fatal("expected error after retries")
	}
	if m.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", m.calls)
	}
}

func TestApplyWithRetryStopsOnCancel(t *testing.T) {
	m := &flakyMirror{fail: 10}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := applyWithRetry(ctx, m, mirror.Event{DriverID: 1}, 5, time.Second); err == nil {
		t.Fatal("expected error")
	}
	if m.calls != 1 {
		t.Fatalf("expected a single attempt after cancel, got %d", m.calls)
	}
}

type scriptedReader struct {
	msgs   [][]byte
	cancel context.CancelFunc
}

func (s *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(s.msgs) == 0 {
		s.cancel()
		return kafka.Message{}, ctx.Err()
	}
	v := s.msgs[0]
	s.msgs = s.msgs[1:]
	return kafka.Message{Value: v}, nil
}

func TestConsumeSkipsInvalidMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &scriptedReader{cancel: cancel, msgs: [][]byte{
		[]byte(`not json`),
		[]byte(`{"state":{"available":true}}`),
		[]byte(`{"driver_id":5,"state":{"available":true,"latitude":12.9,"longitude":77.6,"updatedAt":1}}`),
	}}
	m := &flakyMirror{}
	if err := consume(ctx, r, m, 3, time.Millisecond, zap.NewNop()); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(m.events) != 1 {
		t.Fatalf("expected one applied event, got %+v", m.events)
	}
	ev := m.events[0]
	if ev.DriverID != 5 || !ev.State.Available || *ev.State.Latitude != 12.9 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestHealthMux(t *testing.T) {
	notReady := errors.New("down")
	mux := healthMux(func(context.Context) error { return notReady })

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if rec.Code != http.StatusOK || len(body) == 0 {
		t.Fatalf("metrics: %d", rec.Code)
	}
}
