package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/flakex/marketplace-billing/pkg/db/models"
)

// BillingRefs carries the gateway identifiers to record for a user. Nil fields are left untouched.
type BillingRefs struct {
	CustomerID *string
	AccountID  *string
}

// CustomerRef is shorthand for refs carrying only a customer id.
func CustomerRef(id string) BillingRefs {
	return BillingRefs{CustomerID: &id}
}

// AccountRef is shorthand for refs carrying only a connected account id.
func AccountRef(id string) BillingRefs {
	return BillingRefs{AccountID: &id}
}

func (r BillingRefs) empty() bool {
	return r.CustomerID == nil && r.AccountID == nil
}

// BillingRefsDTO is the transport shape of a user's billing references.
type BillingRefsDTO struct {
	UserID           uuid.UUID `json:"user_id"`
	StripeCustomerID *string   `json:"stripe_customer_id,omitempty"`
	StripeAccountID  *string   `json:"stripe_account_id,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// FromModel converts the persisted row into its transport shape.
func FromModel(m *models.UserBillingRef) *BillingRefsDTO {
	if m == nil {
		return nil
	}
	return &BillingRefsDTO{
		UserID:           m.UserID,
		StripeCustomerID: m.StripeCustomerID,
		StripeAccountID:  m.StripeAccountID,
		UpdatedAt:        m.UpdatedAt,
	}
}
