package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/flakex/marketplace-billing/api/middleware"
	"github.com/flakex/marketplace-billing/internal/customers"
	"github.com/flakex/marketplace-billing/internal/payments"
	"github.com/flakex/marketplace-billing/internal/subscriptions"
	"github.com/flakex/marketplace-billing/pkg/auth"
	"github.com/flakex/marketplace-billing/pkg/db/models"
	pkgerrors "github.com/flakex/marketplace-billing/pkg/errors"
)

func TestCreateChargePassesMajorUnitAmount(t *testing.T) {
	svc := &fakePayments{}
	userID := uuid.New()
	refs := refsFor(userID, "cus_1", "")
	body := `{"amount":"19.99","currency":"usd","customer_id":"cus_1","payment_method_id":"pm_1"}`
	req := asMember(httptest.NewRequest(http.MethodPost, "/api/v1/billing/charges", strings.NewReader(body)), userID)
	resp := httptest.NewRecorder()

	CreateCharge(svc, refs, nil)(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", resp.Code, resp.Body.String())
	}
	if svc.last.Amount.String() != "19.99" || svc.last.CustomerID != "cus_1" {
		t.Fatalf("unexpected charge input %+v", svc.last)
	}
}

func TestCreateChargeRejectsBadBody(t *testing.T) {
	svc := &fakePayments{}
	req := asOperator(httptest.NewRequest(http.MethodPost, "/api/v1/billing/charges", strings.NewReader(`{"amount":"1","currency":"dollars"}`)))
	resp := httptest.NewRecorder()

	CreateCharge(svc, &fakeRefs{}, nil)(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if svc.calls != 0 {
		t.Fatalf("service must not be called")
	}
}

func TestCreateChargeRejectsForeignCustomer(t *testing.T) {
	userID := uuid.New()
	cases := map[string]*fakeRefs{
		"other customer":  refsFor(userID, "cus_own", ""),
		"no billing refs": {err: pkgerrors.New(pkgerrors.CodeNotFound, "billing refs not found")},
	}
	for name, refs := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &fakePayments{}
			body := `{"amount":"50","currency":"usd","customer_id":"cus_victim","payment_method_id":"pm_1"}`
			req := asMember(httptest.NewRequest(http.MethodPost, "/api/v1/billing/charges", strings.NewReader(body)), userID)
			resp := httptest.NewRecorder()

			CreateCharge(svc, refs, nil)(resp, req)
			if resp.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d (%s)", resp.Code, resp.Body.String())
			}
			if svc.calls != 0 {
				t.Fatalf("charge must not reach the gateway")
			}
		})
	}
}

func TestCreateSubscriptionAndSetupIntentCheckCustomer(t *testing.T) {
	userID := uuid.New()
	refs := refsFor(userID, "cus_own", "")

	sub := asMember(httptest.NewRequest(http.MethodPost, "/api/v1/billing/subscriptions",
		strings.NewReader(`{"customer_id":"cus_other","price_id":"price_1","payment_method_id":"pm_1"}`)), userID)
	resp := httptest.NewRecorder()
	CreateSubscription(&fakeSubscriptions{}, refs, nil)(resp, sub)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign subscription customer, got %d", resp.Code)
	}

	unattached := asMember(httptest.NewRequest(http.MethodPost, "/api/v1/billing/setup-intents", strings.NewReader(`{}`)), userID)
	resp = httptest.NewRecorder()
	CreateSetupIntent(&fakeCustomers{}, refs, nil)(resp, unattached)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected unattached setup intent to be allowed, got %d", resp.Code)
	}

	foreign := asMember(httptest.NewRequest(http.MethodPost, "/api/v1/billing/setup-intents", strings.NewReader(`{"customer_id":"cus_other"}`)), userID)
	resp = httptest.NewRecorder()
	CreateSetupIntent(&fakeCustomers{}, refs, nil)(resp, foreign)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign setup intent customer, got %d", resp.Code)
	}
}

func TestRequireAccountOwner(t *testing.T) {
	userID := uuid.New()
	refs := refsFor(userID, "", "acct_own")
	guarded := RequireAccountOwner(refs, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name      string
		accountID string
		operator  bool
		want      int
	}{
		{name: "own account", accountID: "acct_own", want: http.StatusOK},
		{name: "someone else's account", accountID: "acct_other", want: http.StatusForbidden},
		{name: "operator", accountID: "acct_other", operator: true, want: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/hosts/"+tc.accountID+"/balance", nil)
			req = withURLParam(req, "accountID", tc.accountID)
			if tc.operator {
				req = asOperator(req)
			} else {
				req = asMember(req, userID)
			}
			resp := httptest.NewRecorder()
			guarded.ServeHTTP(resp, req)
			if resp.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.Code)
			}
		})
	}
}

func TestRequireCustomerOwner(t *testing.T) {
	userID := uuid.New()
	guarded := RequireCustomerOwner(refsFor(userID, "cus_own", ""), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for customerID, want := range map[string]int{"cus_own": http.StatusOK, "cus_other": http.StatusForbidden} {
		req := withURLParam(asMember(httptest.NewRequest(http.MethodPost, "/", nil), userID), "customerID", customerID)
		resp := httptest.NewRecorder()
		guarded.ServeHTTP(resp, req)
		if resp.Code != want {
			t.Fatalf("%s: expected %d, got %d", customerID, want, resp.Code)
		}
	}
}

func TestRequireSubscriptionOwner(t *testing.T) {
	userID := uuid.New()
	subs := &fakeSubscriptions{customerID: "cus_owner"}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	owner := withURLParam(asMember(httptest.NewRequest(http.MethodPost, "/", nil), userID), "subscriptionID", "sub_1")
	resp := httptest.NewRecorder()
	RequireSubscriptionOwner(subs, refsFor(userID, "cus_owner", ""), nil)(next).ServeHTTP(resp, owner)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected owner to pass, got %d", resp.Code)
	}

	stranger := withURLParam(asMember(httptest.NewRequest(http.MethodPost, "/", nil), userID), "subscriptionID", "sub_1")
	resp = httptest.NewRecorder()
	RequireSubscriptionOwner(subs, refsFor(userID, "cus_stranger", ""), nil)(next).ServeHTTP(resp, stranger)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another customer's subscription, got %d", resp.Code)
	}

	subs.getErr = pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	missing := withURLParam(asMember(httptest.NewRequest(http.MethodPost, "/", nil), userID), "subscriptionID", "sub_gone")
	resp = httptest.NewRecorder()
	RequireSubscriptionOwner(subs, refsFor(userID, "cus_owner", ""), nil)(next).ServeHTTP(resp, missing)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown subscription, got %d", resp.Code)
	}
}

func TestCancelSubscriptionMapsStateConflict(t *testing.T) {
	svc := &fakeSubscriptions{cancelErr: pkgerrors.New(pkgerrors.CodeStateConflict, "cancellation already scheduled")}
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/billing/subscriptions/sub_1/cancel", nil), "subscriptionID", "sub_1")
	resp := httptest.NewRecorder()

	CancelSubscription(svc, nil)(resp, req)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "already scheduled") {
		t.Fatalf("expected conflict message, got %s", resp.Body.String())
	}
	if svc.cancelled != "sub_1" {
		t.Fatalf("expected sub_1 to be passed, got %q", svc.cancelled)
	}
}

func TestResolveCustomerUsesStoredReference(t *testing.T) {
	userID := uuid.New()
	stored := "cus_stored"
	refs := &fakeRefs{ref: &models.UserBillingRef{UserID: userID, StripeCustomerID: &stored}}
	svc := &fakeCustomers{resolution: customers.Resolution{CustomerID: stored, Existed: true}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/customers", strings.NewReader(`{"email":"host@example.com"}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	resp := httptest.NewRecorder()

	ResolveCustomer(svc, refs, nil)(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for existing customer, got %d (%s)", resp.Code, resp.Body.String())
	}
	if svc.lastResolve.CustomerID != stored || svc.lastResolve.UserID != userID {
		t.Fatalf("unexpected resolve input %+v", svc.lastResolve)
	}

	var envelope struct {
		Data customers.Resolution `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.Existed {
		t.Fatalf("expected existed=true")
	}
}

func TestResolveCustomerWithoutStoredReferenceCreates(t *testing.T) {
	userID := uuid.New()
	refs := &fakeRefs{err: pkgerrors.New(pkgerrors.CodeNotFound, "billing refs not found")}
	svc := &fakeCustomers{resolution: customers.Resolution{CustomerID: "cus_new"}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/customers", strings.NewReader(`{"email":"host@example.com","name":"Host"}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	resp := httptest.NewRecorder()

	ResolveCustomer(svc, refs, nil)(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", resp.Code, resp.Body.String())
	}
	if svc.lastResolve.CustomerID != "" {
		t.Fatalf("expected empty stored id, got %q", svc.lastResolve.CustomerID)
	}
}

func TestResolveCustomerRequiresIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/customers", strings.NewReader(`{"email":"host@example.com"}`))
	resp := httptest.NewRecorder()

	ResolveCustomer(&fakeCustomers{}, &fakeRefs{}, nil)(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rc))
}

func asMember(r *http.Request, userID uuid.UUID) *http.Request {
	ctx := middleware.WithUserID(r.Context(), userID.String())
	return r.WithContext(middleware.WithRole(ctx, auth.RoleMember))
}

func asOperator(r *http.Request) *http.Request {
	ctx := middleware.WithUserID(r.Context(), uuid.NewString())
	return r.WithContext(middleware.WithRole(ctx, auth.RoleOperator))
}

func refsFor(userID uuid.UUID, customerID, accountID string) *fakeRefs {
	ref := &models.UserBillingRef{UserID: userID}
	if customerID != "" {
		ref.StripeCustomerID = &customerID
	}
	if accountID != "" {
		ref.StripeAccountID = &accountID
	}
	return &fakeRefs{ref: ref}
}

type fakePayments struct {
	last  payments.ChargeInput
	calls int
}

func (f *fakePayments) Charge(ctx context.Context, input payments.ChargeInput) (*payments.Payment, error) {
	f.calls++
	f.last = input
	return &payments.Payment{ID: "pi_1", Status: "succeeded", Amount: 1999, Currency: "usd"}, nil
}

type fakeSubscriptions struct {
	cancelErr  error
	cancelled  string
	customerID string
	getErr     error
}

func (f *fakeSubscriptions) Create(ctx context.Context, input subscriptions.CreateSubscriptionInput) (*subscriptions.CreateResult, error) {
	return &subscriptions.CreateResult{}, nil
}

func (f *fakeSubscriptions) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*subscriptions.Subscription, error) {
	f.cancelled = subscriptionID
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return &subscriptions.Subscription{ID: subscriptionID, CancelAtPeriodEnd: true}, nil
}

func (f *fakeSubscriptions) Get(ctx context.Context, subscriptionID string) (*subscriptions.Subscription, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &subscriptions.Subscription{ID: subscriptionID, CustomerID: f.customerID}, nil
}

type fakeCustomers struct {
	resolution  customers.Resolution
	lastResolve customers.ResolveCustomerInput
}

func (f *fakeCustomers) CreateCustomer(ctx context.Context, input customers.CreateCustomerInput) (string, error) {
	return "cus_created", nil
}

func (f *fakeCustomers) GetOrCreateByExternalID(ctx context.Context, input customers.ResolveCustomerInput) (customers.Resolution, error) {
	f.lastResolve = input
	return f.resolution, nil
}

func (f *fakeCustomers) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) (*stripe.PaymentMethod, error) {
	return &stripe.PaymentMethod{ID: paymentMethodID}, nil
}

func (f *fakeCustomers) GetBalance(ctx context.Context, customerID string) (customers.Balance, error) {
	return customers.Balance{CustomerID: customerID}, nil
}

func (f *fakeCustomers) CreateSetupIntent(ctx context.Context, customerID string) (string, error) {
	return "seti_secret", nil
}

type fakeRefs struct {
	ref *models.UserBillingRef
	err error
}

func (f *fakeRefs) FindBillingRefs(ctx context.Context, userID uuid.UUID) (*models.UserBillingRef, error) {
	return f.ref, f.err
}
