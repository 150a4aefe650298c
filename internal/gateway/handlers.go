package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/soyeahso/linegpt/internal/line"
)

// MaxBodyBytes bounds a webhook delivery.
const MaxBodyBytes = 1 << 20

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// handleCallback is the webhook endpoint. Nothing in the body is trusted,
// parsed or logged until the signature checks out.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		s.reject("body", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := s.verifier.Verify(body, r.Header.Get(line.SignatureHeader)); err != nil {
		s.reject("signature", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	// 400 is reserved for signature failures. A signed body that doesn't
	// decode is acknowledged with no events.
	events, err := line.ParseEvents(body)
	if err != nil {
		s.reject("json", err)
		events = nil
	}

	s.log.Debug().Int("events", len(events)).Str("requestId", r.Header.Get(RequestIDHeader)).Msg("webhook accepted")

	// The platform may hang up before the agent is done; the reply must
	// still go out.
	s.handler.HandleEvents(context.WithoutCancel(r.Context()), events)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK")
}

func (s *Server) reject(reason string, err error) {
	s.log.Warn().Err(err).Str("reason", reason).Msg("webhook rejected")
	if s.metrics != nil {
		s.metrics.WebhookRejected.WithLabelValues(reason).Inc()
	}
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}
