package accounts

import "github.com/stripe/stripe-go/v84"

// Account is the caller-facing view of a connected account.
type Account struct {
	ID               string            `json:"id"`
	Country          string            `json:"country"`
	Email            string            `json:"email,omitempty"`
	ChargesEnabled   bool              `json:"charges_enabled"`
	PayoutsEnabled   bool              `json:"payouts_enabled"`
	DetailsSubmitted bool              `json:"details_submitted"`
	Capabilities     map[string]string `json:"capabilities,omitempty"`
}

func accountFromStripe(acct *stripe.Account) *Account {
	if acct == nil {
		return nil
	}
	out := &Account{
		ID:               acct.ID,
		Country:          acct.Country,
		Email:            acct.Email,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
	}
	if acct.Capabilities != nil {
		out.Capabilities = map[string]string{
			"transfers":     string(acct.Capabilities.Transfers),
			"card_payments": string(acct.Capabilities.CardPayments),
		}
	}
	return out
}
