// Package billing mirrors payment provider subscription state onto user
// records and cancels subscriptions on a user's behalf.
//
// Providers (Stripe, Paddle) verify webhook signatures over the raw request
// body and decode deliveries into a closed set of Event types:
//
//	ev, err := provider.ParseEvent(ctx, body, r.Header.Get(provider.SignatureHeader()))
//	if errors.Is(err, billing.ErrSignatureInvalid) {
//		// 400, the provider will not retry
//	}
//	outcome, err := reconciler.Apply(ctx, ev)
//
// The Reconciler locates the user by the customer's e-mail, fetched from the
// provider when the payload lacks it, and writes the billing record directly.
// Subscription events overwrite the record and store the event creation time;
// older events arriving later are skipped as stale. Replaying the same event
// leaves the record unchanged.
//
// The Canceller schedules cancellation at period end and then mirrors
// cancelAtPeriodEnd and the period end locally. A failed mirror write does not
// fail the cancellation; the provider's next subscription event repairs it.
package billing
