package billing

import "time"

// EventMeta identifies one provider event delivery.
type EventMeta struct {
	ID        string
	Type      string // provider event type, e.g. "customer.subscription.updated"
	CreatedAt time.Time
}

// Event is a verified billing event. The concrete types below form a closed
// set; Reconciler.Apply switches over them and treats anything else as a no-op.
type Event interface {
	Meta() EventMeta
	billingEvent()
}

// Customer references the paying customer. Email is set only when the
// provider payload carries it.
type Customer struct {
	ID    string
	Email string
}

// SubscriptionData is the payload shared by the subscription lifecycle events.
type SubscriptionData struct {
	ID                string
	Customer          Customer
	Status            string
	PriceID           string
	PriceNickname     string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
}

// SubscriptionCreated is delivered when a subscription starts.
type SubscriptionCreated struct {
	EventMeta
	Subscription SubscriptionData
}

// SubscriptionUpdated is delivered on any subscription change.
type SubscriptionUpdated struct {
	EventMeta
	Subscription SubscriptionData
}

// SubscriptionDeleted is delivered when a subscription has ended.
type SubscriptionDeleted struct {
	EventMeta
	Subscription SubscriptionData
}

// PaymentFailed is delivered when a renewal charge fails.
type PaymentFailed struct {
	EventMeta
	Customer       Customer
	SubscriptionID string
}

// Unhandled is any verified event type the service does not react to.
type Unhandled struct {
	EventMeta
}

func (e EventMeta) Meta() EventMeta { return e }

func (SubscriptionCreated) billingEvent() {}
func (SubscriptionUpdated) billingEvent() {}
func (SubscriptionDeleted) billingEvent() {}
func (PaymentFailed) billingEvent()       {}
func (Unhandled) billingEvent()           {}

// EventKind returns a short label for metrics and logs.
func EventKind(e Event) string {
	switch e.(type) {
	case SubscriptionCreated:
		return "subscription_created"
	case SubscriptionUpdated:
		return "subscription_updated"
	case SubscriptionDeleted:
		return "subscription_deleted"
	case PaymentFailed:
		return "payment_failed"
	default:
		return "other"
	}
}
