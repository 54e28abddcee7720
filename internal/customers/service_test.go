package customers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/flakex/marketplace-billing/internal/users"
	pkgerrors "github.com/flakex/marketplace-billing/pkg/errors"
)

func TestCreateCustomerDefaultsDescription(t *testing.T) {
	tests := []struct {
		name        string
		input       CreateCustomerInput
		wantDesc    string
		wantEmail   string
		emailAbsent bool
	}{
		{
			name:      "explicit description",
			input:     CreateCustomerInput{Email: "Guest@Flakex.com", Name: "Guest", Description: "vip"},
			wantDesc:  "vip",
			wantEmail: "guest@flakex.com",
		},
		{
			name:      "falls back to lower-cased email",
			input:     CreateCustomerInput{Email: "Guest@Flakex.com", Name: "Guest"},
			wantDesc:  "guest@flakex.com",
			wantEmail: "guest@flakex.com",
		},
		{
			name:        "falls back to name",
			input:       CreateCustomerInput{Name: "Guest"},
			wantDesc:    "Guest description",
			emailAbsent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &stubGateway{}
			refs := &stubRefs{}
			svc := newTestService(t, gw, refs)
			tt.input.UserID = uuid.New()

			id, err := svc.CreateCustomer(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != "cus_new_1" {
				t.Fatalf("unexpected id %s", id)
			}
			params := gw.createParams[0]
			if *params.Description != tt.wantDesc {
				t.Fatalf("expected description %q got %q", tt.wantDesc, *params.Description)
			}
			if tt.emailAbsent && params.Email != nil {
				t.Fatalf("email should not be sent")
			}
			if !tt.emailAbsent && *params.Email != tt.wantEmail {
				t.Fatalf("expected email %q got %q", tt.wantEmail, *params.Email)
			}
			if len(refs.calls) != 1 || *refs.calls[0].CustomerID != "cus_new_1" {
				t.Fatalf("expected customer id to be recorded")
			}
		})
	}
}

func TestGetOrCreateTwiceCreatesOnce(t *testing.T) {
	gw := &stubGateway{}
	refs := &stubRefs{}
	svc := newTestService(t, gw, refs)
	userID := uuid.New()

	first, err := svc.GetOrCreateByExternalID(context.Background(), ResolveCustomerInput{
		UserID: userID, CustomerID: "cus_stale", Email: "a@b.c", Name: "A",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Existed {
		t.Fatalf("stale id should have produced a new customer")
	}

	second, err := svc.GetOrCreateByExternalID(context.Background(), ResolveCustomerInput{
		UserID: userID, CustomerID: first.CustomerID, Email: "a@b.c", Name: "A",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Existed || second.CustomerID != first.CustomerID {
		t.Fatalf("expected existing customer, got %+v", second)
	}
	if len(gw.createParams) != 1 {
		t.Fatalf("expected exactly one create call, got %d", len(gw.createParams))
	}
	if len(refs.calls) != 1 {
		t.Fatalf("expected the new id to be recorded once, got %d", len(refs.calls))
	}
}

func TestGetOrCreateEmptyIDSkipsLookup(t *testing.T) {
	gw := &stubGateway{}
	svc := newTestService(t, gw, &stubRefs{})

	res, err := svc.GetOrCreateByExternalID(context.Background(), ResolveCustomerInput{UserID: uuid.New(), Email: "a@b.c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Existed || gw.getCalls != 0 {
		t.Fatalf("expected creation without lookup, got %+v getCalls=%d", res, gw.getCalls)
	}
}

func TestGetOrCreateDeletedCustomerIsReplaced(t *testing.T) {
	gw := &stubGateway{}
	gw.customers = map[string]*stripe.Customer{"cus_gone": {ID: "cus_gone", Deleted: true}}
	svc := newTestService(t, gw, &stubRefs{})

	res, err := svc.GetOrCreateByExternalID(context.Background(), ResolveCustomerInput{UserID: uuid.New(), CustomerID: "cus_gone", Email: "a@b.c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Existed || res.CustomerID == "cus_gone" {
		t.Fatalf("deleted customer should be replaced, got %+v", res)
	}
}

func TestGetOrCreateOtherGatewayErrorFails(t *testing.T) {
	gw := &stubGateway{getErr: &stripe.Error{Code: stripe.ErrorCode("api_key_expired"), Type: stripe.ErrorType("invalid_request_error")}}
	svc := newTestService(t, gw, &stubRefs{})

	_, err := svc.GetOrCreateByExternalID(context.Background(), ResolveCustomerInput{UserID: uuid.New(), CustomerID: "cus_1", Email: "a@b.c"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if len(gw.createParams) != 0 {
		t.Fatalf("create must not be attempted")
	}
}

func TestAttachPaymentMethod(t *testing.T) {
	gw := &stubGateway{}
	svc := newTestService(t, gw, &stubRefs{})

	pm, err := svc.AttachPaymentMethod(context.Background(), "cus_1", "pm_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pm.ID != "pm_1" || gw.attachedTo != "cus_1" {
		t.Fatalf("unexpected attach %+v to %s", pm, gw.attachedTo)
	}
	if _, err := svc.AttachPaymentMethod(context.Background(), "", "pm_1"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateSetupIntent(t *testing.T) {
	gw := &stubGateway{setupResp: &stripe.SetupIntent{ID: "seti_1", ClientSecret: "seti_1_secret"}}
	svc := newTestService(t, gw, &stubRefs{})

	secret, err := svc.CreateSetupIntent(context.Background(), "cus_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "seti_1_secret" || !*gw.setupParams.AutomaticPaymentMethods.Enabled || *gw.setupParams.Customer != "cus_1" {
		t.Fatalf("unexpected setup intent call")
	}

	gw.setupResp = &stripe.SetupIntent{ID: "seti_2"}
	if _, err := svc.CreateSetupIntent(context.Background(), ""); !pkgerrors.IsCode(err, pkgerrors.CodeGateway) {
		t.Fatalf("missing secret should be a gateway error, got %v", err)
	}
}

func TestGetBalanceSumsReceivedAndPending(t *testing.T) {
	var intents []*stripe.PaymentIntent
	if err := json.Unmarshal([]byte(`[
		{"id":"pi_1","amount":1000,"amount_received":1000,"status":"succeeded"},
		{"id":"pi_2","amount":700,"amount_received":0,"status":"requires_capture"},
		{"id":"pi_3","amount":300,"amount_received":0,"status":"processing"},
		{"id":"pi_4","amount":900,"amount_received":0,"status":"canceled"}
	]`), &intents); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	gw := &stubGateway{
		intents: intents,
		cash:    &stripe.CashBalance{Available: map[string]int64{"usd": 250}},
	}
	svc := newTestService(t, gw, &stubRefs{})

	bal, err := svc.GetBalance(context.Background(), "cus_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bal.TotalAmountReceived != 1000 || bal.TotalPendingAmount != 1000 || bal.CashBalance["usd"] != 250 {
		t.Fatalf("unexpected balance %+v", bal)
	}
}

func TestGetBalanceListFailure(t *testing.T) {
	gw := &stubGateway{listErr: errors.New("connection reset")}
	svc := newTestService(t, gw, &stubRefs{})

	if _, err := svc.GetBalance(context.Background(), "cus_1"); !pkgerrors.IsCode(err, pkgerrors.CodeGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func newTestService(t *testing.T, gw *stubGateway, refs *stubRefs) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Gateway: gw, BillingRefs: refs})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

type stubGateway struct {
	customers    map[string]*stripe.Customer
	createParams []*stripe.CustomerParams
	getCalls     int
	getErr       error
	attachedTo   string
	cash         *stripe.CashBalance
	intents      []*stripe.PaymentIntent
	listErr      error
	setupParams  *stripe.SetupIntentParams
	setupResp    *stripe.SetupIntent
}

func (s *stubGateway) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	s.createParams = append(s.createParams, params)
	if s.customers == nil {
		s.customers = map[string]*stripe.Customer{}
	}
	cus := &stripe.Customer{ID: fmt.Sprintf("cus_new_%d", len(s.createParams))}
	s.customers[cus.ID] = cus
	return cus, nil
}

func (s *stubGateway) GetCustomer(ctx context.Context, id string) (*stripe.Customer, error) {
	s.getCalls++
	if s.getErr != nil {
		return nil, s.getErr
	}
	if cus, ok := s.customers[id]; ok {
		return cus, nil
	}
	return nil, &stripe.Error{Code: stripe.ErrorCodeResourceMissing, HTTPStatusCode: 404}
}

func (s *stubGateway) AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) (*stripe.PaymentMethod, error) {
	s.attachedTo = customerID
	return &stripe.PaymentMethod{ID: paymentMethodID}, nil
}

func (s *stubGateway) GetCashBalance(ctx context.Context, customerID string) (*stripe.CashBalance, error) {
	return s.cash, nil
}

func (s *stubGateway) ListCustomerPaymentIntents(ctx context.Context, customerID string) ([]*stripe.PaymentIntent, error) {
	return s.intents, s.listErr
}

func (s *stubGateway) CreateSetupIntent(ctx context.Context, params *stripe.SetupIntentParams) (*stripe.SetupIntent, error) {
	s.setupParams = params
	return s.setupResp, nil
}

type stubRefs struct {
	calls []users.BillingRefs
}

func (s *stubRefs) UpsertBillingRefs(ctx context.Context, userID uuid.UUID, refs users.BillingRefs) error {
	s.calls = append(s.calls, refs)
	return nil
}
