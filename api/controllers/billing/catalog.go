package billing

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/flakex/marketplace-billing/api/responses"
	"github.com/flakex/marketplace-billing/api/validators"
	"github.com/flakex/marketplace-billing/internal/catalog"
	"github.com/flakex/marketplace-billing/pkg/logger"
)

type createProductRequest struct {
	Name        string `json:"name" validate:"required,max=250"`
	Description string `json:"description" validate:"max=1000"`
}

type createPriceRequest struct {
	ProductID  string          `json:"product_id" validate:"required,stripe_id=prod"`
	Currency   string          `json:"currency" validate:"required,currency"`
	UnitAmount decimal.Decimal `json:"unit_amount"`
}

func CreateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req createProductRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		product, err := svc.CreateProduct(ctx, req.Name, req.Description)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func CreatePrice(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req createPriceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		price, err := svc.CreatePrice(ctx, catalog.CreatePriceInput{
			ProductID:  req.ProductID,
			Currency:   req.Currency,
			UnitAmount: req.UnitAmount,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, price)
	}
}
