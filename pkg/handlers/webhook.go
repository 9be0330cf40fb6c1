package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/apperrors"
	"github.com/lookout-hq/lookout/pkg/services"
	"github.com/lookout-hq/lookout/pkg/stripe"
)

// maxWebhookBytes bounds webhook payloads. Subscription and invoice events
// with many line items run well past 64KiB.
const maxWebhookBytes = 512 << 10

// WebhookResponse acknowledges a delivered event.
type WebhookResponse struct {
	Received bool `json:"received"`
}

// WebhookHandler receives payment provider events.
type WebhookHandler struct {
	reconciler services.SubscriptionReconciler
	logger     *zap.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(reconciler services.SubscriptionReconciler, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, logger: logger}
}

// RegisterRoutes registers the webhook route. The route is unauthenticated;
// systemMiddleware supplies the database scope the reconciler writes through.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux, systemMiddleware RouteMiddleware) {
	mux.HandleFunc("POST /billing/webhook", systemMiddleware(h.Receive))
}

// Receive handles POST /billing/webhook
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	signature := r.Header.Get(stripe.SignatureHeader)
	if signature == "" {
		writeError(w, h.logger, http.StatusBadRequest, "No Stripe signature found")
		return
	}

	err = h.reconciler.HandleWebhook(r.Context(), payload, signature)
	switch {
	case err == nil:
		writeOK(w, h.logger, WebhookResponse{Received: true})
	case errors.Is(err, apperrors.ErrInvalidSignature), errors.Is(err, stripe.ErrNoSignature):
		h.logger.Warn("Webhook signature verification failed", zap.Error(err))
		writeError(w, h.logger, http.StatusBadRequest, "Invalid signature")
	case errors.Is(err, apperrors.ErrValidation):
		h.logger.Warn("Webhook payload rejected", zap.Error(err))
		writeError(w, h.logger, http.StatusBadRequest, "Invalid payload")
	default:
		h.logger.Error("Webhook handler failed", zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "Webhook handler failed")
	}
}
