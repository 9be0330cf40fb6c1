package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account holder. The ID equals the subject of the user's JWT.
// Subscription fields are written only by checkout (customer id) and webhook reconciliation.
type User struct {
	ID                     uuid.UUID `json:"id"`
	Email                  string    `json:"email"`
	Name                   string    `json:"name"`
	Plan                   string    `json:"plan"`
	PlanStatus             string    `json:"plan_status"`
	StripeCustomerID       *string   `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID   *string   `json:"stripe_subscription_id,omitempty"`
	StripePriceID          *string   `json:"stripe_price_id,omitempty"`
	StripeCurrentPeriodEnd *int64    `json:"stripe_current_period_end,omitempty"` // Unix milliseconds
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Plan status values. Upstream subscription statuses other than these are stored verbatim.
const (
	PlanStatusActive   = "active"
	PlanStatusCanceled = "canceled"
	PlanStatusPastDue  = "past_due"
)

// SubscriptionState is the subscription snapshot written onto a user by webhook reconciliation.
type SubscriptionState struct {
	SubscriptionID   string
	PriceID          string
	CurrentPeriodEnd int64 // Unix milliseconds
	Plan             string
	Status           string
}
