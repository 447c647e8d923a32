package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"i4.energy/across/windsensor/errlog"
	"i4.energy/across/windsensor/modem"
	"i4.energy/across/windsensor/outbox"
)

type fixedStatus modem.Status

func (s fixedStatus) Status() modem.Status { return modem.Status(s) }

func newTestServer(t *testing.T, u *testUplink, status modem.Status) *Server {
	t.Helper()
	return &Server{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Uplink: u.Uplink,
		Modem:  fixedStatus(status),
	}
}

// gatedSender holds every send until release is closed and reports
// whether its context had been cancelled by then.
type gatedSender struct {
	started   chan struct{}
	release   chan struct{}
	cancelled chan bool
}

func newGatedSender() *gatedSender {
	return &gatedSender{
		started:   make(chan struct{}, 1),
		release:   make(chan struct{}),
		cancelled: make(chan bool, 1),
	}
}

func (s *gatedSender) Send(ctx context.Context, _, _ string) int {
	s.started <- struct{}{}
	<-s.release
	s.cancelled <- ctx.Err() != nil
	return http.StatusOK
}

func newGatedServer(sender *gatedSender) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	box := outbox.New(outbox.NewQueue(outbox.DefaultQueueCapacity), errlog.New(errlog.DefaultCapacity))
	return &Server{
		Logger: logger,
		Uplink: NewUplink(logger, sender, box, "http://collector.example.com/wind", StateFile{}),
		Modem:  fixedStatus{},
	}
}

func TestServer(t *testing.T) {
	t.Run("POST /batches delivers the batch", func(t *testing.T) {
		u := newTestUplink(t, StateFile{})
		s := newTestServer(t, u, modem.Status{})

		body := `{"anemometerPulses":[1,2],"directionVaneValues":[300,310]}`
		req := httptest.NewRequest(http.MethodPost, "/batches", strings.NewReader(body))
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		var got Delivery
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("invalid response: %v", err)
		}
		if got != (Delivery{Status: 200, Delivered: true, Pending: 0}) {
			t.Errorf("unexpected delivery: %+v", got)
		}
		if len(u.sender.bodies) != 1 || !strings.Contains(u.sender.bodies[0], `"anemometerPulses":[1,2]`) {
			t.Errorf("expected the batch to be sent, got %q", u.sender.bodies)
		}
	})

	t.Run("POST /batches rejects mismatched samples", func(t *testing.T) {
		u := newTestUplink(t, StateFile{})
		s := newTestServer(t, u, modem.Status{})

		body := `{"anemometerPulses":[1,2],"directionVaneValues":[300]}`
		req := httptest.NewRequest(http.MethodPost, "/batches", strings.NewReader(body))
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if len(u.sender.bodies) != 0 {
			t.Error("expected nothing to be sent")
		}
	})

	t.Run("POST /batches rejects malformed JSON", func(t *testing.T) {
		u := newTestUplink(t, StateFile{})
		s := newTestServer(t, u, modem.Status{})

		req := httptest.NewRequest(http.MethodPost, "/batches", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON error body, got content type %q", ct)
		}
	})

	t.Run("GET /status reports modem and outbox", func(t *testing.T) {
		u := newTestUplink(t, StateFile{}, 500, 500)
		u.Deliver(t.Context(), sampleBatch)

		readySince := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
		s := newTestServer(t, u, modem.Status{
			Readiness:           modem.ReadinessReady,
			ConsecutiveFailures: 3,
			ReadySince:          readySince,
		})

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var got struct {
			Readiness           string    `json:"readiness"`
			ConsecutiveFailures int       `json:"consecutiveFailures"`
			ReadySince          time.Time `json:"readySince"`
			Pending             int       `json:"pending"`
			NextSequenceID      int       `json:"nextSequenceId"`
			Errors              []string  `json:"errors"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("invalid response: %v", err)
		}
		if got.Readiness != "Ready" || got.ConsecutiveFailures != 3 || !got.ReadySince.Equal(readySince) {
			t.Errorf("unexpected modem status: %+v", got)
		}
		if got.Pending != 1 || got.NextSequenceID != 1 || len(got.Errors) != 2 {
			t.Errorf("unexpected outbox status: %+v", got)
		}
	})

	t.Run("delivery outlives a client that gave up", func(t *testing.T) {
		sender := newGatedSender()
		srv := httptest.NewServer(newGatedServer(sender))
		defer srv.Close()
		defer close(sender.release)

		client := &http.Client{Timeout: 50 * time.Millisecond}
		body := `{"anemometerPulses":[1,2],"directionVaneValues":[300,310]}`
		resp, err := client.Post(srv.URL+"/batches", "application/json", strings.NewReader(body))
		if err == nil {
			resp.Body.Close()
			t.Fatal("expected the client to time out")
		}

		select {
		case <-sender.started:
		case <-time.After(time.Second):
			t.Fatal("expected the delivery to have started")
		}
		sender.release <- struct{}{}

		select {
		case cancelled := <-sender.cancelled:
			if cancelled {
				t.Error("expected the send to run on a context the client cannot cancel")
			}
		case <-time.After(time.Second):
			t.Fatal("expected the send to complete")
		}
	})

	t.Run("GET /status answers while a delivery is in flight", func(t *testing.T) {
		sender := newGatedSender()
		s := newGatedServer(sender)

		posted := make(chan int, 1)
		go func() {
			body := `{"anemometerPulses":[1,2],"directionVaneValues":[300,310]}`
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/batches", strings.NewReader(body)))
			posted <- rec.Code
		}()
		<-sender.started

		answered := make(chan *httptest.ResponseRecorder, 1)
		go func() {
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
			answered <- rec
		}()

		select {
		case rec := <-answered:
			var got UplinkStatus
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("invalid response: %v", err)
			}
			if got.Pending != 1 {
				t.Errorf("expected the batch in flight to be pending, got %+v", got)
			}
		case <-time.After(time.Second):
			t.Error("expected GET /status not to wait for the delivery")
		}

		close(sender.release)
		if code := <-posted; code != http.StatusOK {
			t.Errorf("expected 200 for the delivery, got %d", code)
		}
	})

	t.Run("GET /healthz", func(t *testing.T) {
		s := newTestServer(t, newTestUplink(t, StateFile{}), modem.Status{})

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("wrong method is not allowed", func(t *testing.T) {
		s := newTestServer(t, newTestUplink(t, StateFile{}), modem.Status{})

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/batches", nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}
