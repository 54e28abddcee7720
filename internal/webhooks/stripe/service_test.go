package stripewebhook

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/flakex/marketplace-billing/internal/subscriptions"
	pkgerrors "github.com/flakex/marketplace-billing/pkg/errors"
	"github.com/flakex/marketplace-billing/pkg/logger"
)

func TestHandleEventInvoicePaidFetchesSubscription(t *testing.T) {
	reader := &stubSubscriptionReader{sub: &subscriptions.Subscription{ID: "sub_123", Status: "active"}}
	svc, _ := newTestService(t, reader)

	result, err := svc.HandleEvent(context.Background(), mustEvent(t, `{
		"id": "evt_1",
		"type": "invoice.payment_succeeded",
		"data": {"object": {"id": "in_1", "object": "invoice", "subscription": "sub_123"}}
	}`))
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if !result.Handled || result.Subscription == nil || result.Subscription.ID != "sub_123" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(reader.calls) != 1 || reader.calls[0] != "sub_123" {
		t.Fatalf("expected one lookup for sub_123, got %v", reader.calls)
	}
}

func TestHandleEventInvoicePaidReadsParentSubscriptionDetails(t *testing.T) {
	reader := &stubSubscriptionReader{sub: &subscriptions.Subscription{ID: "sub_parent"}}
	svc, _ := newTestService(t, reader)

	_, err := svc.HandleEvent(context.Background(), mustEvent(t, `{
		"id": "evt_2",
		"type": "invoice.payment_succeeded",
		"data": {"object": {"id": "in_2", "object": "invoice",
			"parent": {"type": "subscription_details", "subscription_details": {"subscription": "sub_parent"}}}}
	}`))
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(reader.calls) != 1 || reader.calls[0] != "sub_parent" {
		t.Fatalf("expected lookup for sub_parent, got %v", reader.calls)
	}
}

func TestHandleEventInvoicePaidWithoutSubscriptionLogs(t *testing.T) {
	reader := &stubSubscriptionReader{}
	svc, buf := newTestService(t, reader)

	result, err := svc.HandleEvent(context.Background(), mustEvent(t, `{
		"id": "evt_3",
		"type": "invoice.payment_succeeded",
		"data": {"object": {"id": "in_3", "object": "invoice"}}
	}`))
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if result.Subscription != nil || len(reader.calls) != 0 {
		t.Fatalf("expected no subscription lookup")
	}
	if !strings.Contains(buf.String(), "invoice paid without subscription") {
		t.Fatalf("expected log entry, got %s", buf.String())
	}
}

func TestHandleEventInvoiceWithNullParentLinks(t *testing.T) {
	shapes := map[string]string{
		"null parent":               `{"id": "in_n1", "object": "invoice", "parent": null}`,
		"null subscription details": `{"id": "in_n2", "object": "invoice", "parent": {"type": "quote_details", "subscription_details": null}}`,
		"expanded subscription":     `{"id": "in_n3", "object": "invoice", "subscription": {"id": "sub_expanded", "object": "subscription"}}`,
	}
	for name, object := range shapes {
		t.Run(name, func(t *testing.T) {
			reader := &stubSubscriptionReader{sub: &subscriptions.Subscription{ID: "sub_expanded"}}
			svc, _ := newTestService(t, reader)

			for _, eventType := range []string{"invoice.payment_succeeded", "invoice.payment_failed"} {
				result, err := svc.HandleEvent(context.Background(), mustEvent(t, `{
					"id": "evt_null",
					"type": "`+eventType+`",
					"data": {"object": `+object+`}
				}`))
				if err != nil {
					t.Fatalf("%s: handle event: %v", eventType, err)
				}
				if !result.Handled {
					t.Fatalf("%s: expected handled result", eventType)
				}
			}
			if name == "expanded subscription" {
				if len(reader.calls) != 1 || reader.calls[0] != "sub_expanded" {
					t.Fatalf("expected lookup of expanded id, got %v", reader.calls)
				}
				return
			}
			if len(reader.calls) != 0 {
				t.Fatalf("expected no lookups, got %v", reader.calls)
			}
		})
	}
}

func TestHandleEventPaymentFailedWithoutSubscription(t *testing.T) {
	svc, buf := newTestService(t, &stubSubscriptionReader{})

	result, err := svc.HandleEvent(context.Background(), mustEvent(t, `{
		"id": "evt_8",
		"type": "invoice.payment_failed",
		"data": {"object": {"id": "in_8", "object": "invoice"}}
	}`))
	if err != nil || !result.Handled {
		t.Fatalf("expected handled result, err=%v", err)
	}
	if !strings.Contains(buf.String(), "invoice payment failed") {
		t.Fatalf("expected warn entry, got %s", buf.String())
	}
}

func TestHandleEventPropagatesLookupFailure(t *testing.T) {
	reader := &stubSubscriptionReader{err: pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")}
	svc, _ := newTestService(t, reader)

	_, err := svc.HandleEvent(context.Background(), mustEvent(t, `{
		"id": "evt_4",
		"type": "invoice.payment_succeeded",
		"data": {"object": {"id": "in_4", "object": "invoice", "subscription": "sub_gone"}}
	}`))
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestHandleEventPaymentFailedAndUnknownTypes(t *testing.T) {
	reader := &stubSubscriptionReader{}
	svc, buf := newTestService(t, reader)

	failed, err := svc.HandleEvent(context.Background(), mustEvent(t, `{
		"id": "evt_5",
		"type": "invoice.payment_failed",
		"data": {"object": {"id": "in_5", "object": "invoice", "subscription": "sub_5"}}
	}`))
	if err != nil || !failed.Handled {
		t.Fatalf("expected payment_failed to be handled, err=%v", err)
	}

	other, err := svc.HandleEvent(context.Background(), mustEvent(t, `{
		"id": "evt_6",
		"type": "customer.created",
		"data": {"object": {"id": "cus_1", "object": "customer"}}
	}`))
	if err != nil || other.Handled {
		t.Fatalf("expected unknown type to be ignored, err=%v", err)
	}
	if len(reader.calls) != 0 {
		t.Fatalf("no subscription lookups expected")
	}
	if !strings.Contains(buf.String(), "unhandled stripe event") || !strings.Contains(buf.String(), `"stripe_event_id":"evt_6"`) {
		t.Fatalf("expected unhandled log with event id, got %s", buf.String())
	}
}

func TestHandleEventRequiresData(t *testing.T) {
	svc, _ := newTestService(t, &stubSubscriptionReader{})
	if _, err := svc.HandleEvent(context.Background(), &stripe.Event{ID: "evt_7"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestIdempotencyGuardMarksOnce(t *testing.T) {
	store := newMemoryStore()
	guard, err := NewIdempotencyGuard(store, time.Hour, "stripe")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}

	ctx := context.Background()
	dup, err := guard.CheckAndMark(ctx, "evt_1")
	if err != nil || dup {
		t.Fatalf("first delivery should not be a duplicate, dup=%v err=%v", dup, err)
	}
	dup, _ = guard.CheckAndMark(ctx, "evt_1")
	if !dup {
		t.Fatalf("second delivery should be a duplicate")
	}

	if err := guard.Delete(ctx, "evt_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	dup, _ = guard.CheckAndMark(ctx, "evt_1")
	if dup {
		t.Fatalf("released event should be processed again")
	}
	if _, ok := store.values["stripe:evt_1"]; !ok {
		t.Fatalf("expected scoped key, got %v", store.values)
	}
}

func TestIdempotencyGuardValidation(t *testing.T) {
	if _, err := NewIdempotencyGuard(nil, time.Hour, "stripe"); err == nil {
		t.Fatalf("expected store error")
	}
	if _, err := NewIdempotencyGuard(newMemoryStore(), -time.Second, "stripe"); err == nil {
		t.Fatalf("expected ttl error")
	}
	guard, _ := NewIdempotencyGuard(newMemoryStore(), time.Hour, "stripe")
	if _, err := guard.CheckAndMark(context.Background(), ""); err == nil {
		t.Fatalf("expected event id error")
	}
}

func newTestService(t *testing.T, reader *stubSubscriptionReader) (*Service, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	svc, err := NewService(ServiceParams{
		Subscriptions: reader,
		Logger:        logger.New(logger.Options{ServiceName: "test", Output: buf}),
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc, buf
}

func mustEvent(t *testing.T, raw string) *stripe.Event {
	t.Helper()
	var event stripe.Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return &event
}

type stubSubscriptionReader struct {
	sub   *subscriptions.Subscription
	err   error
	calls []string
}

func (s *stubSubscriptionReader) Get(ctx context.Context, subscriptionID string) (*subscriptions.Subscription, error) {
	s.calls = append(s.calls, subscriptionID)
	if s.err != nil {
		return nil, s.err
	}
	return s.sub, nil
}

type memoryStore struct {
	values map[string]any
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]any{}}
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	if v, ok := m.values[key]; ok {
		return v.(string), nil
	}
	return "", nil
}

func (m *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value
	return true, nil
}

func (m *memoryStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.values[key] = value
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

func (m *memoryStore) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}
