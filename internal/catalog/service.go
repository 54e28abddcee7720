package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/flakex/marketplace-billing/internal/currency"
	pkgerrors "github.com/flakex/marketplace-billing/pkg/errors"
	pkgstripe "github.com/flakex/marketplace-billing/pkg/stripe"
)

const billingInterval = "month"

type gateway interface {
	CreateProduct(ctx context.Context, params *stripe.ProductParams) (*stripe.Product, error)
	CreatePrice(ctx context.Context, params *stripe.PriceParams) (*stripe.Price, error)
}

// Service creates the products and monthly prices subscriptions are sold against.
type Service interface {
	CreateProduct(ctx context.Context, name, description string) (*Product, error)
	CreatePrice(ctx context.Context, input CreatePriceInput) (*Price, error)
}

// ServiceParams groups dependencies for the catalog service.
type ServiceParams struct {
	Gateway gateway
}

// CreatePriceInput describes a monthly recurring price. UnitAmount is in major units.
type CreatePriceInput struct {
	ProductID  string
	Currency   string
	UnitAmount decimal.Decimal
}

type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Price struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	Currency   string `json:"currency"`
	UnitAmount int64  `json:"unit_amount"`
	Interval   string `json:"interval"`
}

type service struct {
	gateway gateway
}

// NewService builds a catalog service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("stripe gateway required")
	}
	return &service{gateway: params.Gateway}, nil
}

func (s *service) CreateProduct(ctx context.Context, name, description string) (*Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	params := &stripe.ProductParams{Name: stripe.String(name)}
	if description = strings.TrimSpace(description); description != "" {
		params.Description = stripe.String(description)
	}

	p, err := s.gateway.CreateProduct(ctx, params)
	if err != nil {
		return nil, pkgstripe.Classify(err, "create product")
	}
	return &Product{ID: p.ID, Name: p.Name, Description: p.Description}, nil
}

// CreatePrice converts the unit amount into minor units and creates a monthly price.
func (s *service) CreatePrice(ctx context.Context, input CreatePriceInput) (*Price, error) {
	productID := strings.TrimSpace(input.ProductID)
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	unitAmount, err := currency.ToMinorUnits(input.UnitAmount, input.Currency)
	if err != nil {
		return nil, err
	}
	cur := strings.ToLower(currency.Normalize(input.Currency))

	p, err := s.gateway.CreatePrice(ctx, &stripe.PriceParams{
		Product:    stripe.String(productID),
		Currency:   stripe.String(cur),
		UnitAmount: stripe.Int64(unitAmount),
		Recurring:  &stripe.PriceRecurringParams{Interval: stripe.String(billingInterval)},
	})
	if err != nil {
		return nil, pkgstripe.Classify(err, "create price")
	}
	return &Price{
		ID:         p.ID,
		ProductID:  productID,
		Currency:   cur,
		UnitAmount: p.UnitAmount,
		Interval:   billingInterval,
	}, nil
}
