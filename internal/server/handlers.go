package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/securedocflow/securedoc-proxy/internal/monitor"
	"github.com/securedocflow/securedoc-proxy/internal/privacy"
	"github.com/securedocflow/securedoc-proxy/internal/webhook"
	"go.uber.org/zap"
)

const (
	maxGenerateBody = 1 << 20 // generous over the 50k text cap, pre-decode
	maxWebhookBody  = 1 << 20
)

type generateRequest struct {
	PracticeID string `json:"practice_id"`
	Task       string `json:"task"`
	Text       string `json:"text"`
}

type generateResponse struct {
	OutputText string `json:"output_text"`
	Status     string `json:"status"`
}

// validate enforces the request schema. Bounds are in characters, not
// bytes, so multi-byte text is not short-changed. Returns a caller-facing
// message, or empty when the request is well formed.
func (r *generateRequest) validate() string {
	if n := utf8.RuneCountInString(r.PracticeID); n < 1 || n > 100 {
		return "practice_id must be 1-100 characters"
	}
	if n := utf8.RuneCountInString(r.Task); n < 1 || n > 100 {
		return "task must be 1-100 characters"
	}
	if n := utf8.RuneCountInString(r.Text); n < 1 || n > 50000 {
		return "text must be 1-50000 characters"
	}
	for _, c := range r.Text {
		if c < 32 && c != '\n' && c != '\t' && c != '\r' {
			return "text contains invalid control characters"
		}
	}
	return ""
}

// handleGenerate runs the privacy-preserving pipeline: anonymize, admit,
// call the provider with masked text only, reidentify. The placeholder
// store is wiped on every exit path.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	apiKey := r.Header.Get("X-API-Key")
	if status, msg := s.checkCredential(apiKey); status != 0 {
		respondError(w, status, msg)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxGenerateBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if msg := req.validate(); msg != "" {
		respondError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	log.Info("processing generate request",
		zap.String("practice_id", req.PracticeID),
		zap.String("task", req.Task),
	)

	masked, store, err := s.engine.Anonymize(req.Text)
	if err != nil {
		log.Error("anonymization failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "error processing request")
		return
	}
	defer store.Wipe()

	s.hub.Broadcast(monitor.Event{
		Type:      monitor.EventTypePHIDetection,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data:      monitor.PHIDetectionEvent{Summary: store.Summary},
	})

	if decision := s.limiter.Admit(s.limiter.Identity(apiKey, getClientIP(r))); !decision.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
		respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	output, err := s.llm.Generate(r.Context(), masked, req.Task)
	if err != nil {
		log.Error("upstream generation failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "error processing request")
		return
	}

	restored, err := s.engine.Reidentify(output, store)
	if err != nil {
		var integrity *privacy.IntegrityError
		if errors.As(err, &integrity) {
			log.Error("reidentification integrity failure",
				zap.Int("missing", integrity.Missing),
			)
		} else {
			log.Error("reidentification failed", zap.Error(err))
		}
		respondError(w, http.StatusInternalServerError, "error processing request")
		return
	}

	respondJSON(w, http.StatusOK, generateResponse{
		OutputText: restored,
		Status:     "success",
	})
}

// checkCredential enforces the caller credential. Requiring a key that the
// server does not hold is a misconfiguration and fails closed with 503,
// never silently permissive.
func (s *Server) checkCredential(apiKey string) (int, string) {
	if !s.config.Auth.RequireAPIKey {
		return 0, ""
	}
	if s.config.Auth.APIKey == "" {
		return http.StatusServiceUnavailable, "server credential not configured"
	}
	if subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.config.Auth.APIKey)) != 1 {
		return http.StatusUnauthorized, "missing or invalid credential"
	}
	return 0, ""
}

// handleWebhook feeds the raw signed payload into the webhook processor and
// maps gate failures onto status codes.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := s.webhooks.Process(r.Context(), payload, r.Header.Get("Webhook-Signature"))

	s.hub.Broadcast(monitor.Event{
		Type:      monitor.EventTypeWebhook,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: monitor.WebhookEvent{
			EventType: outcome.EventType,
			Duplicate: outcome.Duplicate,
			Accepted:  err == nil,
		},
	})

	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrNoSecret):
			respondError(w, http.StatusServiceUnavailable, "webhook secret not configured")
		case errors.Is(err, webhook.ErrNoSignature),
			errors.Is(err, webhook.ErrBadSignature),
			errors.Is(err, webhook.ErrBadPayload),
			errors.Is(err, webhook.ErrReplayWindow):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.WithRequestID(requestID).Error("webhook processing failed", zap.Error(err))
			respondError(w, http.StatusBadRequest, "webhook processing failed")
		}
		return
	}

	if outcome.Duplicate {
		respondJSON(w, http.StatusOK, map[string]string{
			"status":  "success",
			"message": "Event already processed",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		fmt.Fprintf(w, `{"error":"encoding failure"}`)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
