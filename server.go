package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"i4.energy/across/windsensor/modem"
	"i4.energy/across/windsensor/outbox"
)

// StatusReporter exposes the modem session state. *modem.Modem satisfies it.
type StatusReporter interface {
	Status() modem.Status
}

// Server handles incoming HTTP requests: sample batches from the
// acquisition side and status queries
type Server struct {
	Logger *slog.Logger
	Uplink *Uplink
	Modem  StatusReporter

	// Context bounds deliveries. A delivery outlives the request that
	// carried its batch, so only cancelling Context interrupts it. Nil
	// means context.Background().
	Context context.Context

	once   sync.Once
	router http.Handler
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.once.Do(func() {
		s.router = s.routes()
	})
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/batches", s.handleBatch)
	r.Get("/status", s.handleStatus)
	r.Get("/healthz", s.handleHealth)
	return r
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	s.sendJSON(w, ErrorResponse{Message: message}, statusCode)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Warn("Failed to write response", "error", err)
	}
}

// handleBatch queues a sample batch and delivers everything pending
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var batch outbox.Batch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	delivery, err := s.Uplink.Deliver(s.deliveryContext(), batch)
	switch {
	case errors.Is(err, outbox.ErrEmptyBatch), errors.Is(err, outbox.ErrBatchMismatch):
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		s.Logger.Error("Failed to queue batch", "error", err)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.Logger.Info("Batch processed",
		"samples", len(batch.AnemometerPulses),
		"status", delivery.Status,
		"delivered", delivery.Delivered,
		"pending", delivery.Pending,
		"request_id", middleware.GetReqID(r.Context()))
	s.sendJSON(w, delivery, http.StatusOK)
}

func (s *Server) deliveryContext() context.Context {
	if s.Context == nil {
		return context.Background()
	}
	return s.Context
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	type StatusResponse struct {
		Readiness           string     `json:"readiness"`
		ConsecutiveFailures int        `json:"consecutiveFailures"`
		ReadySince          *time.Time `json:"readySince,omitempty"`
		UplinkStatus
	}

	ms := s.Modem.Status()
	resp := StatusResponse{
		Readiness:           ms.Readiness.String(),
		ConsecutiveFailures: ms.ConsecutiveFailures,
		UplinkStatus:        s.Uplink.Status(),
	}
	if !ms.ReadySince.IsZero() {
		resp.ReadySince = &ms.ReadySince
	}
	s.sendJSON(w, resp, http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
