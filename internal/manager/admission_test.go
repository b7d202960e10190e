package manager

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"fastvlmd/pkg/types"
)

// holdSlot starts an analysis that blocks inside the backend and returns once
// it owns the generation slot.
func holdSlot(t *testing.T, m *Manager, fb *fakeBackend, img string) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		_, err := m.Analyze(context.Background(), types.AnalyzeRequest{ImageBase64: img})
		done <- err
	}()
	select {
	case <-fb.started:
	case <-time.After(5 * time.Second):
		t.Fatalf("first analysis did not start")
	}
	return done
}

func TestAdmission_SerializesGenerations(t *testing.T) {
	fb := &fakeBackend{text: "ok", block: make(chan struct{}), started: make(chan struct{}, 2)}
	m := loadedManager(t, fb, nil)
	img := pngBase64(t, 8, 8)
	first := holdSlot(t, m, fb, img)

	second := make(chan error, 1)
	go func() {
		_, err := m.Analyze(context.Background(), types.AnalyzeRequest{ImageBase64: img})
		second <- err
	}()
	select {
	case <-fb.started:
		t.Fatalf("second generation started while the first was in flight")
	case <-time.After(100 * time.Millisecond):
	}
	close(fb.block)
	for _, ch := range []<-chan error{first, second} {
		if err := <-ch; err != nil {
			t.Fatalf("analysis: %v", err)
		}
	}
	if s := m.Snapshot(); s.Inflight != 0 || s.Queued != 0 {
		t.Fatalf("slot not released: %+v", s)
	}
}

func TestAdmission_WaitTimeout(t *testing.T) {
	fb := &fakeBackend{text: "ok", block: make(chan struct{}), started: make(chan struct{}, 1)}
	m := loadedManager(t, fb, func(c *Config) { c.MaxWait = 50 * time.Millisecond })
	img := pngBase64(t, 8, 8)
	first := holdSlot(t, m, fb, img)
	_, err := m.Analyze(context.Background(), types.AnalyzeRequest{ImageBase64: img})
	if !IsTooBusy(err) || BusyReason(err) != "wait_timeout" {
		t.Fatalf("expected wait timeout, got %v", err)
	}
	close(fb.block)
	if err := <-first; err != nil {
		t.Fatalf("first: %v", err)
	}
}

func TestAdmission_QueueFull(t *testing.T) {
	fb := &fakeBackend{text: "ok", block: make(chan struct{}), started: make(chan struct{}, 1)}
	m := loadedManager(t, fb, func(c *Config) { c.MaxQueueDepth = 1 })
	img := pngBase64(t, 8, 8)
	first := holdSlot(t, m, fb, img)
	_, err := m.Analyze(context.Background(), types.AnalyzeRequest{ImageBase64: img})
	if !IsTooBusy(err) || BusyReason(err) != "queue_full" {
		t.Fatalf("expected queue full, got %v", err)
	}
	close(fb.block)
	if err := <-first; err != nil {
		t.Fatalf("first: %v", err)
	}
}

func TestAdmission_ContextCanceledWhileWaiting(t *testing.T) {
	fb := &fakeBackend{text: "ok", block: make(chan struct{}), started: make(chan struct{}, 1)}
	m := loadedManager(t, fb, nil)
	img := pngBase64(t, 8, 8)
	first := holdSlot(t, m, fb, img)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := m.Analyze(ctx, types.AnalyzeRequest{ImageBase64: img})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	close(fb.block)
	<-first
}

func TestClose_DrainsAndRejects(t *testing.T) {
	fb := &fakeBackend{text: "ok"}
	m := loadedManager(t, fb, nil)
	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if fb.closed != 1 {
		t.Fatalf("backend closed %d times", fb.closed)
	}
	_, err := m.Analyze(context.Background(), types.AnalyzeRequest{ImageBase64: pngBase64(t, 8, 8)})
	he, ok := err.(interface{ StatusCode() int })
	if !ok || he.StatusCode() != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 after close, got %v", err)
	}
	if m.Snapshot().State != StateClosed {
		t.Fatalf("state=%s", m.Snapshot().State)
	}
}

func TestClose_WaitsForInflight(t *testing.T) {
	fb := &fakeBackend{text: "ok", block: make(chan struct{}), started: make(chan struct{}, 1)}
	m := loadedManager(t, fb, nil)
	first := holdSlot(t, m, fb, pngBase64(t, 8, 8))
	closed := make(chan struct{})
	go func() {
		_ = m.Close(context.Background())
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatalf("Close returned with a generation in flight")
	case <-time.After(100 * time.Millisecond):
	}
	close(fb.block)
	if err := <-first; err != nil {
		t.Fatalf("in-flight analysis: %v", err)
	}
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatalf("Close did not finish")
	}
}

func TestClose_RejectsQueuedAnalyses(t *testing.T) {
	fb := &fakeBackend{text: "ok", block: make(chan struct{}), started: make(chan struct{}, 2)}
	m := loadedManager(t, fb, nil)
	img := pngBase64(t, 8, 8)
	first := holdSlot(t, m, fb, img)

	queued := make(chan error, 1)
	go func() {
		_, err := m.Analyze(context.Background(), types.AnalyzeRequest{ImageBase64: img})
		queued <- err
	}()
	deadline := time.Now().Add(5 * time.Second)
	for m.Snapshot().Queued != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("second analysis never queued")
		}
		time.Sleep(5 * time.Millisecond)
	}

	closed := make(chan error, 1)
	go func() { closed <- m.Close(context.Background()) }()

	select {
	case err := <-queued:
		if !errors.Is(err, ErrShuttingDown) {
			t.Fatalf("queued analysis: expected shutting down, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("queued analysis was not rejected when draining began")
	}

	close(fb.block)
	if err := <-first; err != nil {
		t.Fatalf("in-flight analysis: %v", err)
	}
	if err := <-closed; err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n := len(fb.requests()); n != 1 {
		t.Fatalf("backend saw %d generations, want 1", n)
	}
	if fb.closed != 1 {
		t.Fatalf("backend closed %d times", fb.closed)
	}
}
