package models

import (
	"time"

	"github.com/google/uuid"
)

// UserBillingRef links a platform user to their gateway customer and connected account.
type UserBillingRef struct {
	UserID           uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	StripeCustomerID *string   `gorm:"column:stripe_customer_id"`
	StripeAccountID  *string   `gorm:"column:stripe_account_id"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (UserBillingRef) TableName() string { return "user_billing_refs" }
