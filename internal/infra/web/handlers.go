package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/leonart92/pronostiX-sub002/internal/domain"
	"github.com/leonart92/pronostiX-sub002/internal/infra/logging"
	"github.com/leonart92/pronostiX-sub002/internal/infra/metrics"
	"github.com/leonart92/pronostiX-sub002/internal/infra/redis"
)

// Provider webhook payloads are small; anything larger is hostile.
const maxWebhookBody = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStripeWebhook is the push path. The signature is verified before the
// body is trusted; a 2xx acknowledges the event, anything else makes the
// provider redeliver. Duplicates and unknown event types acknowledge cleanly.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable payload")
		return
	}

	evt, err := s.parse(body, r.Header.Get("Stripe-Signature"), s.webhookSecret)
	if err != nil {
		s.log.Warn().Err(err).Msg("webhook signature rejected")
		metrics.IncWebhookEvent("unknown", "rejected")
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	ctx := logging.WithEventID(r.Context(), evt.ID)
	outcome, err := s.reconcile.ApplyProviderEvent(ctx, evt)
	metrics.IncWebhookEvent(evt.Type, string(outcome))
	if err != nil {
		if !domain.Retryable(err) {
			// A permanently malformed event is acknowledged so the provider
			// stops redelivering it; the failure is already logged.
			writeJSON(w, http.StatusOK, map[string]any{"received": true, "outcome": string(outcome)})
			return
		}
		writeError(w, http.StatusInternalServerError, "event processing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true, "outcome": string(outcome)})
}

type syncRequest struct {
	SessionID string `json:"session_id"`
}

// handleSessionSync is the pull path: an authenticated user asks to reconcile
// from a checkout session they just completed.
func (s *Server) handleSessionSync(w http.ResponseWriter, r *http.Request) {
	userID := logging.UserIDFrom(r.Context())

	allowed, err := s.limiter.Allow(r.Context(), redis.SyncRateKey(userID), s.rateLimit, s.rateWindow)
	if err != nil {
		s.log.Warn().Err(err).Msg("rate limiter unavailable, letting request through")
	} else if !allowed {
		metrics.IncSessionSync("rate_limited")
		writeError(w, http.StatusTooManyRequests, "too many sync requests")
		return
	}

	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	summary, err := s.reconcile.SyncFromSession(r.Context(), userID, req.SessionID)
	if err != nil {
		s.writeSyncError(w, err)
		return
	}
	metrics.IncSessionSync("ok")
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) writeSyncError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		metrics.IncSessionSync("unauthorized")
		writeError(w, http.StatusForbidden, "session does not belong to caller")
	case errors.Is(err, domain.ErrSessionUnpaid):
		metrics.IncSessionSync("unpaid")
		writeError(w, http.StatusBadRequest, "session is not paid")
	case errors.Is(err, domain.ErrInvalidArgument):
		metrics.IncSessionSync("invalid")
		writeError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, domain.ErrNotFound):
		metrics.IncSessionSync("not_found")
		writeError(w, http.StatusNotFound, "session or subscription not found")
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		metrics.IncSessionSync("upstream")
		writeError(w, http.StatusBadGateway, "billing provider unavailable")
	default:
		metrics.IncSessionSync("error")
		writeError(w, http.StatusInternalServerError, "sync failed")
	}
}

type subscriptionView struct {
	Status            string     `json:"status"`
	PlanKey           string     `json:"plan_key"`
	CurrentPeriodEnd  time.Time  `json:"current_period_end"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	NextBillingDate   *time.Time `json:"next_billing_date,omitempty"`
	DaysRemaining     int        `json:"days_remaining"`
}

func (s *Server) handleCurrentSubscription(w http.ResponseWriter, r *http.Request) {
	userID := logging.UserIDFrom(r.Context())

	sub, err := s.subs.FindCurrent(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no current subscription")
			return
		}
		s.log.Error().Err(err).Msg("current subscription lookup failed")
		writeError(w, http.StatusInternalServerError, "subscription lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, subscriptionView{
		Status:            string(sub.Status),
		PlanKey:           sub.PlanKey,
		CurrentPeriodEnd:  sub.CurrentPeriodEnd,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		NextBillingDate:   sub.NextBillingDate(),
		DaysRemaining:     sub.DaysRemaining(),
	})
}

type planView struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	DurationDays int    `json:"duration_days"`
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	plans := s.plans.List()
	out := make([]planView, 0, len(plans))
	for _, p := range plans {
		out = append(out, planView{
			Key:          p.Key,
			Name:         p.Name,
			Amount:       p.Amount,
			Currency:     p.Currency,
			DurationDays: p.DurationDays,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": out})
}
