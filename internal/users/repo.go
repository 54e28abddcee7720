package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flakex/marketplace-billing/pkg/db/models"
	pkgerrors "github.com/flakex/marketplace-billing/pkg/errors"
)

// Repository persists the billing references owned by platform users.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UpsertBillingRefs records the provided gateway identifiers for the user,
// leaving any identifier that was not provided untouched.
func (r *Repository) UpsertBillingRefs(ctx context.Context, userID uuid.UUID, refs BillingRefs) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if refs.empty() {
		return pkgerrors.New(pkgerrors.CodeValidation, "no billing references provided")
	}

	row := models.UserBillingRef{
		UserID:           userID,
		StripeCustomerID: refs.CustomerID,
		StripeAccountID:  refs.AccountID,
	}
	columns := []string{"updated_at"}
	if refs.CustomerID != nil {
		columns = append(columns, "stripe_customer_id")
	}
	if refs.AccountID != nil {
		columns = append(columns, "stripe_account_id")
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(&row).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist billing references")
	}
	return nil
}

// FindBillingRefs loads the billing references for the user.
func (r *Repository) FindBillingRefs(ctx context.Context, userID uuid.UUID) (*models.UserBillingRef, error) {
	var row models.UserBillingRef
	err := r.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "billing references not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load billing references")
	}
	return &row, nil
}
