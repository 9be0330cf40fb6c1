package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/auth"
	"github.com/lookout-hq/lookout/pkg/config"
	"github.com/lookout-hq/lookout/pkg/services"
)

// CreateCheckoutRequest for POST /billing/create-checkout
type CreateCheckoutRequest struct {
	PlanType string `json:"planType"`
}

// PlansResponse for GET /billing/plans
type PlansResponse struct {
	Plans []config.Plan `json:"plans"`
}

// SubscriptionResponse for GET /billing/subscription
type SubscriptionResponse struct {
	*services.PlanUsage
	// CheckoutConfirmed is set on the first request after a successful
	// checkout redirect whose session id matches the one this browser started.
	CheckoutConfirmed bool   `json:"checkoutConfirmed,omitempty"`
	CheckoutPlan      string `json:"checkoutPlan,omitempty"`
}

// BillingHandler handles plan listing, checkout and subscription status.
type BillingHandler struct {
	checkout   services.CheckoutService
	planLimits services.PlanLimitService
	sessions   *auth.SessionStore
	logger     *zap.Logger
}

// NewBillingHandler creates a new billing handler. sessions may be nil, in
// which case checkout confirmation is not tracked.
func NewBillingHandler(
	checkout services.CheckoutService,
	planLimits services.PlanLimitService,
	sessions *auth.SessionStore,
	logger *zap.Logger,
) *BillingHandler {
	return &BillingHandler{
		checkout:   checkout,
		planLimits: planLimits,
		sessions:   sessions,
		logger:     logger,
	}
}

// RegisterRoutes registers the billing handler's routes on the given mux.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, userMiddleware RouteMiddleware) {
	mux.HandleFunc("GET /billing/plans", h.Plans)
	mux.HandleFunc("POST /billing/create-checkout", userMiddleware(h.CreateCheckout))
	mux.HandleFunc("GET /billing/subscription", userMiddleware(h.Subscription))
}

// Plans handles GET /billing/plans
func (h *BillingHandler) Plans(w http.ResponseWriter, r *http.Request) {
	writeOK(w, h.logger, PlansResponse{Plans: h.planLimits.Plans()})
}

// CreateCheckout handles POST /billing/create-checkout.
// JSON callers receive the session; form posts (or ?redirect=true) are
// redirected to the hosted checkout page.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	redirect := r.URL.Query().Get("redirect") == "true"
	var req CreateCheckoutRequest
	if isFormPost(r) {
		if err := r.ParseForm(); err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
			return
		}
		req.PlanType = r.PostForm.Get("planType")
		redirect = true
	} else if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	session, err := h.checkout.CreateCheckout(r.Context(), userID, req.PlanType)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create checkout session")
		return
	}

	if h.sessions != nil {
		if err := h.sessions.RememberCheckout(r, w, session.ID, req.PlanType); err != nil {
			h.logger.Warn("Failed to remember checkout session",
				zap.String("session_id", session.ID),
				zap.Error(err))
		}
	}

	h.logger.Info("Checkout session created",
		zap.String("user_id", userID.String()),
		zap.String("plan", req.PlanType),
		zap.String("session_id", session.ID))

	if redirect {
		http.Redirect(w, r, session.URL, http.StatusSeeOther)
		return
	}
	writeOK(w, h.logger, session)
}

// Subscription handles GET /billing/subscription
func (h *BillingHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	usage, err := h.planLimits.Usage(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to load subscription")
		return
	}

	resp := SubscriptionResponse{PlanUsage: usage}
	if returned := r.URL.Query().Get("session_id"); returned != "" && h.sessions != nil {
		if pendingID, plan, ok := h.sessions.PendingCheckout(r); ok && pendingID == returned {
			resp.CheckoutConfirmed = true
			resp.CheckoutPlan = plan
			if err := h.sessions.ClearCheckout(r, w); err != nil {
				h.logger.Warn("Failed to clear checkout session", zap.Error(err))
			}
		}
	}
	writeOK(w, h.logger, resp)
}

func isFormPost(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(ct, "multipart/form-data")
}
