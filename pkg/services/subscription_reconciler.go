package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/apperrors"
	"github.com/lookout-hq/lookout/pkg/metrics"
	"github.com/lookout-hq/lookout/pkg/models"
	"github.com/lookout-hq/lookout/pkg/repositories"
	"github.com/lookout-hq/lookout/pkg/stripe"
)

// StripeClient is the subset of the Stripe API used by billing.
type StripeClient interface {
	CreateCustomer(ctx context.Context, params stripe.CustomerParams, idempotencyKey string) (*stripe.Customer, error)
	CreateCheckoutSession(ctx context.Context, params stripe.CheckoutSessionParams, idempotencyKey string) (*stripe.CheckoutSession, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
}

// EventVerifier authenticates and decodes webhook payloads.
type EventVerifier interface {
	ConstructEvent(payload []byte, sigHeader string) (*stripe.Event, error)
}

// SubscriptionReconciler applies billing webhook events to user records.
// It is the only writer of subscription fields.
type SubscriptionReconciler interface {
	// HandleWebhook verifies the payload before anything else; a bad or
	// missing signature returns an error wrapping ErrInvalidSignature (or
	// stripe.ErrNoSignature) and mutates nothing. Handler failures are
	// returned so the sender redelivers.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type eventHandler func(ctx context.Context, event *stripe.Event) error

type subscriptionReconciler struct {
	userRepo   repositories.UserRepository
	planLimits PlanLimitService
	stripe     StripeClient
	verifier   EventVerifier
	deduper    EventDeduper
	metrics    *metrics.Metrics
	handlers   map[stripe.EventType]eventHandler
	logger     *zap.Logger
}

// NewSubscriptionReconciler creates a new subscription reconciler.
func NewSubscriptionReconciler(
	userRepo repositories.UserRepository,
	planLimits PlanLimitService,
	stripeClient StripeClient,
	verifier EventVerifier,
	deduper EventDeduper,
	m *metrics.Metrics,
	logger *zap.Logger,
) SubscriptionReconciler {
	if deduper == nil {
		deduper = noopEventDeduper{}
	}
	s := &subscriptionReconciler{
		userRepo:   userRepo,
		planLimits: planLimits,
		stripe:     stripeClient,
		verifier:   verifier,
		deduper:    deduper,
		metrics:    m,
		logger:     logger.Named("subscription-reconciler"),
	}
	s.handlers = map[stripe.EventType]eventHandler{
		stripe.EventCheckoutSessionCompleted:    s.handleCheckoutCompleted,
		stripe.EventCustomerSubscriptionUpdated: s.handleSubscriptionUpdated,
		stripe.EventCustomerSubscriptionDeleted: s.handleSubscriptionDeleted,
		stripe.EventInvoicePaymentFailed:        s.handlePaymentFailed,
	}
	return s
}

func (s *subscriptionReconciler) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.verifier.ConstructEvent(payload, signature)
	if err != nil {
		s.metrics.ObserveWebhookEvent("unverified", metrics.OutcomeRejected)
		s.logger.Warn("Rejected webhook", zap.Error(err))
		return err
	}

	eventType := string(event.Type)
	logger := s.logger.With(zap.String("event_id", event.ID), zap.String("event_type", eventType))

	handler, ok := s.handlers[event.Type]
	if !ok {
		logger.Info("Unhandled webhook event type")
		s.metrics.ObserveWebhookEvent(eventType, metrics.OutcomeSkipped)
		return nil
	}

	claimed, err := s.deduper.Claim(ctx, event.ID)
	if err != nil {
		// Handlers are idempotent; losing dedupe only costs a repeated write.
		logger.Warn("Event dedupe unavailable, processing anyway", zap.Error(err))
		claimed = true
	}
	if !claimed {
		logger.Info("Duplicate webhook delivery acknowledged")
		s.metrics.ObserveWebhookEvent(eventType, metrics.OutcomeSkipped)
		return nil
	}

	// Any exit short of success, a panic included, hands the event back to
	// Stripe's redelivery.
	applied := false
	defer func() {
		if applied {
			return
		}
		if relErr := s.deduper.Release(context.WithoutCancel(ctx), event.ID); relErr != nil {
			logger.Warn("Failed to release event claim", zap.Error(relErr))
		}
	}()

	if err := handler(ctx, event); err != nil {
		s.metrics.ObserveWebhookEvent(eventType, metrics.OutcomeError)
		logger.Error("Webhook handler failed", zap.Error(err))
		return fmt.Errorf("handle %s: %w", eventType, err)
	}

	applied = true
	s.metrics.ObserveWebhookEvent(eventType, metrics.OutcomeSuccess)
	logger.Info("Webhook event applied")
	return nil
}

func (s *subscriptionReconciler) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	session, err := event.DecodeCheckoutSession()
	if err != nil {
		return err
	}
	customerID, subscriptionID := session.Customer.String(), session.Subscription.String()
	if customerID == "" || subscriptionID == "" {
		s.logger.Warn("Checkout session without customer or subscription, ignoring",
			zap.String("session_id", session.ID))
		return nil
	}

	if s.stripe == nil {
		return fmt.Errorf("retrieve subscription %s: %w", subscriptionID, stripe.ErrNotConfigured)
	}
	sub, err := s.stripe.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	return s.applySubscription(ctx, customerID, sub, models.PlanStatusActive)
}

func (s *subscriptionReconciler) handleSubscriptionUpdated(ctx context.Context, event *stripe.Event) error {
	sub, err := event.DecodeSubscription()
	if err != nil {
		return err
	}
	status := sub.Status
	if status == stripe.SubscriptionStatusActive {
		status = models.PlanStatusActive
	}
	return s.applySubscription(ctx, sub.Customer.String(), sub, status)
}

func (s *subscriptionReconciler) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	sub, err := event.DecodeSubscription()
	if err != nil {
		return err
	}
	return s.ignoreUnknownCustomer(sub.Customer.String(), s.userRepo.ClearSubscription(ctx, sub.Customer.String()))
}

func (s *subscriptionReconciler) handlePaymentFailed(ctx context.Context, event *stripe.Event) error {
	invoice, err := event.DecodeInvoice()
	if err != nil {
		return err
	}
	customerID := invoice.Customer.String()
	return s.ignoreUnknownCustomer(customerID, s.userRepo.SetPlanStatus(ctx, customerID, models.PlanStatusPastDue))
}

func (s *subscriptionReconciler) applySubscription(ctx context.Context, customerID string, sub *stripe.Subscription, status string) error {
	priceID := sub.PriceID()
	if priceID == "" {
		s.logger.Warn("Subscription has no price, ignoring",
			zap.String("subscription_id", sub.ID),
			zap.String("customer_id", customerID))
		return nil
	}

	state := &models.SubscriptionState{
		SubscriptionID:   sub.ID,
		PriceID:          priceID,
		CurrentPeriodEnd: sub.PeriodEnd() * 1000,
		Plan:             s.planLimits.PlanForPrice(priceID),
		Status:           status,
	}
	err := s.userRepo.ApplySubscription(ctx, customerID, state)
	if err == nil {
		s.logger.Info("Subscription applied",
			zap.String("customer_id", customerID),
			zap.String("plan", state.Plan),
			zap.String("status", state.Status))
	}
	return s.ignoreUnknownCustomer(customerID, err)
}

// ignoreUnknownCustomer acknowledges events for customers no user owns;
// redelivery would never succeed.
func (s *subscriptionReconciler) ignoreUnknownCustomer(customerID string, err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		s.logger.Warn("No user for customer, ignoring event", zap.String("customer_id", customerID))
		return nil
	}
	return err
}

var _ SubscriptionReconciler = (*subscriptionReconciler)(nil)
