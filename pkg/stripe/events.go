package stripe

import (
	"encoding/json"
	"fmt"
)

// EventType is a Stripe webhook event type.
type EventType string

const (
	EventCheckoutSessionCompleted    EventType = "checkout.session.completed"
	EventCustomerSubscriptionUpdated EventType = "customer.subscription.updated"
	EventCustomerSubscriptionDeleted EventType = "customer.subscription.deleted"
	EventInvoicePaymentFailed        EventType = "invoice.payment_failed"
)

// Subscription statuses reported by Stripe.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// Event is a verified webhook event. Data.Object is decoded per type with
// the Decode* helpers.
type Event struct {
	ID       string    `json:"id"`
	Type     EventType `json:"type"`
	Created  int64     `json:"created"`
	Livemode bool      `json:"livemode"`
	Data     struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ExpandableID is a reference Stripe renders either as an id string or, when
// expanded, as an object with an id field.
type ExpandableID string

func (e *ExpandableID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*e = ""
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*e = ExpandableID(id)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("expandable id: %w", err)
	}
	*e = ExpandableID(obj.ID)
	return nil
}

func (e ExpandableID) String() string { return string(e) }

// CheckoutSession is a Checkout Session object.
type CheckoutSession struct {
	ID           string            `json:"id"`
	URL          string            `json:"url"`
	Mode         string            `json:"mode"`
	Customer     ExpandableID      `json:"customer"`
	Subscription ExpandableID      `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

// Price is the subset of a Price object Lookout reads.
type Price struct {
	ID string `json:"id"`
}

// SubscriptionItem is one line of a subscription.
type SubscriptionItem struct {
	ID               string `json:"id"`
	Price            Price  `json:"price"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
}

// Subscription is a Subscription object.
type Subscription struct {
	ID               string       `json:"id"`
	Customer         ExpandableID `json:"customer"`
	Status           string       `json:"status"`
	CurrentPeriodEnd int64        `json:"current_period_end"`
	Items            struct {
		Data []SubscriptionItem `json:"data"`
	} `json:"items"`
}

// PriceID returns the first item's price id, or "" if there are no items.
func (s *Subscription) PriceID() string {
	if len(s.Items.Data) == 0 {
		return ""
	}
	return s.Items.Data[0].Price.ID
}

// PeriodEnd returns the current period end in unix seconds. Newer API
// versions report it per item rather than on the subscription.
func (s *Subscription) PeriodEnd() int64 {
	if s.CurrentPeriodEnd != 0 {
		return s.CurrentPeriodEnd
	}
	if len(s.Items.Data) > 0 {
		return s.Items.Data[0].CurrentPeriodEnd
	}
	return 0
}

// Invoice is the subset of an Invoice object Lookout reads.
type Invoice struct {
	ID           string       `json:"id"`
	Customer     ExpandableID `json:"customer"`
	Subscription ExpandableID `json:"subscription"`
}

// Customer is a Customer object.
type Customer struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata"`
}

// DecodeCheckoutSession decodes the event object as a checkout session.
func (e *Event) DecodeCheckoutSession() (*CheckoutSession, error) {
	var s CheckoutSession
	if err := e.decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DecodeSubscription decodes the event object as a subscription.
func (e *Event) DecodeSubscription() (*Subscription, error) {
	var s Subscription
	if err := e.decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DecodeInvoice decodes the event object as an invoice.
func (e *Event) DecodeInvoice() (*Invoice, error) {
	var inv Invoice
	if err := e.decode(&inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (e *Event) decode(v any) error {
	if len(e.Data.Object) == 0 {
		return fmt.Errorf("event %s has no data object", e.ID)
	}
	if err := json.Unmarshal(e.Data.Object, v); err != nil {
		return fmt.Errorf("decode %s object: %w", e.Type, err)
	}
	return nil
}
