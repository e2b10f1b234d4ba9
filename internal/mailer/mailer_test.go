package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSendDeliversMessage(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decodeMessage(t, r, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := New(srv.URL, "ouvidoria@gdf.br", 3, zerolog.Nop())
	if err := m.Send(context.Background(), "maria@example.com", "Protocolo", "Corpo"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.Para != "maria@example.com" || got.De != "ouvidoria@gdf.br" {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New(srv.URL, "ouvidoria@gdf.br", 3, zerolog.Nop())
	if err := m.Send(context.Background(), "x@example.com", "a", "b"); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestSendDoesNotRetryRejection(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	m := New(srv.URL, "ouvidoria@gdf.br", 3, zerolog.Nop())
	if err := m.Send(context.Background(), "x@example.com", "a", "b"); err == nil {
		t.Fatal("expected rejection error")
	}
	if calls.Load() != 1 {
		t.Fatalf("4xx must not be retried, got %d attempts", calls.Load())
	}
}

func TestSendWindowLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New(srv.URL, "ouvidoria@gdf.br", 3, zerolog.Nop())
	m.Janela = time.Minute
	m.LimitePorJanela = 2
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	m.Now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if err := m.Send(context.Background(), "x@example.com", "a", "b"); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := m.Send(context.Background(), "x@example.com", "a", "b"); err != ErrRateLimited {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("limited send must not reach the relay, got %d calls", calls.Load())
	}

	now = now.Add(time.Minute)
	if err := m.Send(context.Background(), "x@example.com", "a", "b"); err != nil {
		t.Fatalf("new window should allow sending: %v", err)
	}
}

func TestDisabledMailerDropsSilently(t *testing.T) {
	m := New("", "ouvidoria@gdf.br", 3, zerolog.Nop())
	if err := m.Send(context.Background(), "x@example.com", "a", "b"); err != nil {
		t.Fatalf("disabled mailer must not error: %v", err)
	}
}

func decodeMessage(t *testing.T, r *http.Request, into *Message) {
	t.Helper()
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		t.Fatalf("decode: %v", err)
	}
}
