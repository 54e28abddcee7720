package subscriptions

import (
	"time"

	"github.com/stripe/stripe-go/v84"
)

// Subscription is the caller-facing view of a gateway subscription.
type Subscription struct {
	ID                string     `json:"id"`
	Status            string     `json:"status"`
	CustomerID        string     `json:"customer_id,omitempty"`
	CancelAt          *time.Time `json:"cancel_at,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	LatestInvoiceID   string     `json:"latest_invoice_id,omitempty"`
}

func subscriptionFromStripe(sub *stripe.Subscription) *Subscription {
	if sub == nil {
		return nil
	}
	out := &Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.CancelAt > 0 {
		at := time.Unix(sub.CancelAt, 0).UTC()
		out.CancelAt = &at
	}
	if sub.LatestInvoice != nil {
		out.LatestInvoiceID = sub.LatestInvoice.ID
	}
	return out
}

// confirmationSecret digs the first invoice's client secret out of an expanded
// subscription. Anything missing along the way yields an empty secret.
func confirmationSecret(sub *stripe.Subscription) string {
	if sub == nil || sub.LatestInvoice == nil || sub.LatestInvoice.ConfirmationSecret == nil {
		return ""
	}
	return sub.LatestInvoice.ConfirmationSecret.ClientSecret
}
