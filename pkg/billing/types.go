package billing

import "time"

// Status is the subscription state mirrored from the payment provider.
// Values outside the constants below are provider statuses passed through verbatim.
type Status string

const (
	StatusTrialing Status = "trialing"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// AnnualPlanID is the plan label forced for the configured annual price.
const AnnualPlanID = "annual"

// Record is the billing field group embedded in a user document.
type Record struct {
	Status            Status
	PlanID            string
	PriceID           string
	CustomerID        string
	SubscriptionID    string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
	UpdatedAt         time.Time
	// LastEventAt is the creation time of the last full-overwrite event applied.
	LastEventAt time.Time
}

// User is the subset of a user document the billing components read.
type User struct {
	ID      string
	Email   string
	Billing *Record
}

// HasSubscription reports whether a provider subscription id is recorded.
func (u *User) HasSubscription() bool {
	return u != nil && u.Billing != nil && u.Billing.SubscriptionID != ""
}

// Patch lists the billing fields one write sets. Nil fields are left untouched;
// UpdatedAt is always written. A non-nil zero CurrentPeriodEnd removes the
// stored period end.
type Patch struct {
	Status            *Status
	PlanID            *string
	PriceID           *string
	CustomerID        *string
	SubscriptionID    *string
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd *bool
	UpdatedAt         time.Time

	// NotOlderThan, when set, makes the write conditional: it is skipped with
	// ErrStaleEvent if the stored LastEventAt is after this instant.
	NotOlderThan time.Time
	// RecordEventAt stores NotOlderThan as the new LastEventAt.
	RecordEventAt bool
}

// Apply returns a copy of rec with the patch applied. It is the reference
// semantics every UserStore implementation follows.
func (p Patch) Apply(rec *Record) *Record {
	out := &Record{}
	if rec != nil {
		*out = *rec
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.PlanID != nil {
		out.PlanID = *p.PlanID
	}
	if p.PriceID != nil {
		out.PriceID = *p.PriceID
	}
	if p.CustomerID != nil {
		out.CustomerID = *p.CustomerID
	}
	if p.SubscriptionID != nil {
		out.SubscriptionID = *p.SubscriptionID
	}
	if p.CurrentPeriodEnd != nil {
		out.CurrentPeriodEnd = *p.CurrentPeriodEnd
	}
	if p.CancelAtPeriodEnd != nil {
		out.CancelAtPeriodEnd = *p.CancelAtPeriodEnd
	}
	out.UpdatedAt = p.UpdatedAt
	if p.RecordEventAt {
		out.LastEventAt = p.NotOlderThan
	}
	return out
}

// IsStale reports whether the conditional write must be skipped for rec.
func (p Patch) IsStale(rec *Record) bool {
	if p.NotOlderThan.IsZero() || rec == nil || rec.LastEventAt.IsZero() {
		return false
	}
	return rec.LastEventAt.After(p.NotOlderThan)
}
