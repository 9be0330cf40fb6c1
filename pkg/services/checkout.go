package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/apperrors"
	"github.com/lookout-hq/lookout/pkg/config"
	"github.com/lookout-hq/lookout/pkg/logging"
	"github.com/lookout-hq/lookout/pkg/repositories"
	"github.com/lookout-hq/lookout/pkg/stripe"
)

// ErrBillingNotConfigured is returned when no payment processor key is set.
var ErrBillingNotConfigured = errors.New("billing is not configured")

// CheckoutSession is a hosted checkout page the user is sent to.
type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"checkoutUrl"`
}

// CheckoutService starts subscription checkouts.
type CheckoutService interface {
	// CreateCheckout opens a subscription checkout for a paid plan, creating
	// the user's payment customer on first use.
	CreateCheckout(ctx context.Context, userID uuid.UUID, planType string) (*CheckoutSession, error)
}

type checkoutService struct {
	catalog  *config.PlanCatalog
	userRepo repositories.UserRepository
	stripe   StripeClient
	appURL   string
	newKey   func() string
	logger   *zap.Logger
}

// NewCheckoutService creates a new checkout service. stripeClient may be nil
// when billing is disabled.
func NewCheckoutService(
	catalog *config.PlanCatalog,
	userRepo repositories.UserRepository,
	stripeClient StripeClient,
	appURL string,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutService{
		catalog:  catalog,
		userRepo: userRepo,
		stripe:   stripeClient,
		appURL:   appURL,
		newKey:   func() string { return uuid.NewString() },
		logger:   logger.Named("checkout"),
	}
}

func (s *checkoutService) CreateCheckout(ctx context.Context, userID uuid.UUID, planType string) (*CheckoutSession, error) {
	plan, ok := s.catalog.Get(planType)
	if !ok || plan.Name == config.DefaultPlan || plan.PriceID == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "Invalid plan type")
	}
	if s.stripe == nil {
		return nil, ErrBillingNotConfigured
	}

	customerID, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	userIDStr := userID.String()
	session, err := s.stripe.CreateCheckoutSession(ctx, stripeCheckoutParams(
		customerID, plan.PriceID, s.appURL, map[string]string{
			"userId":   userIDStr,
			"planType": plan.Name,
		}), "checkout-"+userIDStr+"-"+s.newKey())
	if err != nil {
		s.logger.Error("Failed to create checkout session",
			zap.String("user_id", userIDStr),
			zap.String("plan", plan.Name),
			logging.SafeError(err))
		return nil, err
	}

	s.logger.Info("Checkout session created",
		zap.String("user_id", userIDStr),
		zap.String("plan", plan.Name),
		zap.String("session_id", session.ID))

	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// ensureCustomer returns the user's payment customer id, creating and
// storing one on first checkout.
func (s *checkoutService) ensureCustomer(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	customer, err := s.stripe.CreateCustomer(ctx, stripeCustomerParams(user.Email, user.Name, userID),
		"customer-"+userID.String())
	if err != nil {
		return "", fmt.Errorf("failed to create customer: %w", err)
	}

	stored, err := s.userRepo.SetStripeCustomerID(ctx, userID, customer.ID)
	if err != nil {
		return "", err
	}
	if stored != customer.ID {
		s.logger.Warn("User already had a customer, using stored id",
			zap.String("user_id", userID.String()),
			zap.String("created", customer.ID),
			zap.String("stored", stored))
	}
	return stored, nil
}

func stripeCustomerParams(email, name string, userID uuid.UUID) stripe.CustomerParams {
	return stripe.CustomerParams{
		Email:    email,
		Name:     name,
		Metadata: map[string]string{"userId": userID.String()},
	}
}

func stripeCheckoutParams(customerID, priceID, appURL string, metadata map[string]string) stripe.CheckoutSessionParams {
	return stripe.CheckoutSessionParams{
		CustomerID:               customerID,
		PriceID:                  priceID,
		Quantity:                 1,
		SuccessURL:               appURL + "/dashboard?success=true&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:                appURL + "/pricing?canceled=true",
		PaymentMethodTypes:       []string{"card"},
		BillingAddressCollection: "required",
		Metadata:                 metadata,
		SubscriptionDataMetadata: metadata,
	}
}

var _ CheckoutService = (*checkoutService)(nil)
