package billing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/lox/siteweather/internal/models"
	"github.com/lox/siteweather/internal/store"
)

const testSecret = "whsec_test_secret"

func setupService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc := NewService(Config{
		WebhookSecret: testSecret,
		SuccessURL:    "https://app.example.com/billing/success",
		CancelURL:     "https://app.example.com/billing/cancel",
		Prices: Prices{
			PlanBasic:   {CycleMonthly: "price_basic_m"},
			PlanPremium: {CycleMonthly: "price_prem_m", CycleYearly: "price_prem_y"},
		},
	}, st)
	return svc, st
}

func signedEvent(t *testing.T, typ string, object any) ([]byte, string) {
	t.Helper()
	obj, err := json.Marshal(object)
	if err != nil {
		t.Fatalf("marshal object: %v", err)
	}
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_test",
		"object":      "event",
		"type":        typ,
		"api_version": "2020-08-27",
		"data":        map[string]json.RawMessage{"object": obj},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return payload, signed.Header
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	svc, _ := setupService(t)
	payload, _ := signedEvent(t, "checkout.session.completed", map[string]any{"id": "cs_1"})

	_, err := svc.HandleWebhook(context.Background(), payload, "t=1,v1=deadbeef")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestHandleWebhook_Lifecycle(t *testing.T) {
	svc, st := setupService(t)
	ctx := context.Background()

	payload, sig := signedEvent(t, "checkout.session.completed", map[string]any{
		"id":                  "cs_1",
		"object":              "checkout.session",
		"client_reference_id": "u1",
		"customer":            "cus_1",
		"subscription":        "sub_1",
		"metadata":            map[string]string{"user_id": "u1", "plan": "premium", "billing_cycle": "yearly"},
	})
	if typ, err := svc.HandleWebhook(ctx, payload, sig); err != nil || typ != "checkout.session.completed" {
		t.Fatalf("checkout completed: %q %v", typ, err)
	}

	sub, err := st.GetSubscription(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if sub.Plan != "premium" || sub.Status != StatusActive || sub.BillingCycle != "yearly" {
		t.Errorf("subscription = %+v", sub)
	}
	if sub.StripeCustomerID != "cus_1" || sub.StripeSubscriptionID != "sub_1" || sub.StripePriceID != "price_prem_y" {
		t.Errorf("stripe ids = %+v", sub)
	}

	periodEnd := time.Date(2027, 10, 19, 0, 0, 0, 0, time.UTC)
	payload, sig = signedEvent(t, "invoice.payment_succeeded", map[string]any{
		"id":                 "in_1",
		"object":             "invoice",
		"customer":           "cus_1",
		"subscription":       "sub_1",
		"amount_paid":        49900,
		"currency":           "usd",
		"status":             "paid",
		"hosted_invoice_url": "https://invoice.stripe.com/i/in_1",
		"lines": map[string]any{
			"object": "list",
			"data": []map[string]any{{
				"id":     "il_1",
				"price":  map[string]any{"id": "price_prem_y"},
				"period": map[string]any{"start": periodEnd.AddDate(-1, 0, 0).Unix(), "end": periodEnd.Unix()},
			}},
		},
	})
	if _, err := svc.HandleWebhook(ctx, payload, sig); err != nil {
		t.Fatalf("invoice paid: %v", err)
	}
	// Redelivery must not duplicate history.
	if _, err := svc.HandleWebhook(ctx, payload, sig); err != nil {
		t.Fatalf("invoice paid redelivery: %v", err)
	}

	history, err := st.ListBillingHistory(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ListBillingHistory: %v", err)
	}
	if len(history) != 1 || history[0].AmountCents != 49900 || history[0].InvoiceURL == "" {
		t.Errorf("history = %+v", history)
	}
	sub, _ = st.GetSubscription(ctx, "u1")
	if sub.CurrentPeriodEnd == nil || !sub.CurrentPeriodEnd.Equal(periodEnd) {
		t.Errorf("CurrentPeriodEnd = %v, want %v", sub.CurrentPeriodEnd, periodEnd)
	}

	payload, sig = signedEvent(t, "customer.subscription.deleted", map[string]any{
		"id":       "sub_1",
		"object":   "subscription",
		"customer": "cus_1",
		"status":   "canceled",
	})
	if _, err := svc.HandleWebhook(ctx, payload, sig); err != nil {
		t.Fatalf("subscription deleted: %v", err)
	}
	sub, _ = st.GetSubscription(ctx, "u1")
	if sub.Status != StatusCanceled || sub.Plan != string(PlanNone) {
		t.Errorf("after delete = %+v", sub)
	}
	if plan, f := FeaturesForSubscription(sub); plan != PlanNone || f.WeatherAlerts {
		t.Errorf("canceled subscription grants %q %+v", plan, f)
	}
}

func TestHandleWebhook_UnknownCustomerAcknowledged(t *testing.T) {
	svc, st := setupService(t)
	ctx := context.Background()

	payload, sig := signedEvent(t, "invoice.payment_succeeded", map[string]any{
		"id": "in_9", "object": "invoice", "customer": "cus_missing", "amount_paid": 100, "currency": "usd",
	})
	if _, err := svc.HandleWebhook(ctx, payload, sig); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if _, err := st.GetSubscriptionByCustomer(ctx, "cus_missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unexpected subscription created: %v", err)
	}
}

func TestHandleWebhook_IgnoresOtherEvents(t *testing.T) {
	svc, _ := setupService(t)
	payload, sig := signedEvent(t, "customer.created", map[string]any{"id": "cus_1", "object": "customer"})
	typ, err := svc.HandleWebhook(context.Background(), payload, sig)
	if err != nil || typ != "customer.created" {
		t.Fatalf("HandleWebhook = %q, %v", typ, err)
	}
}

func TestCreateCheckout(t *testing.T) {
	svc, st := setupService(t)
	ctx := context.Background()

	var got *stripe.CheckoutSessionParams
	svc.newSession = func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		got = p
		return &stripe.CheckoutSession{ID: "cs_new", URL: "https://checkout.stripe.com/c/cs_new"}, nil
	}

	url, err := svc.CreateCheckout(ctx, "u1", "owner@example.com", PlanBasic, CycleMonthly)
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if url != "https://checkout.stripe.com/c/cs_new" {
		t.Errorf("url = %q", url)
	}
	if *got.Mode != string(stripe.CheckoutSessionModeSubscription) || *got.ClientReferenceID != "u1" {
		t.Errorf("params = %+v", got)
	}
	if len(got.LineItems) != 1 || *got.LineItems[0].Price != "price_basic_m" {
		t.Errorf("line items = %+v", got.LineItems)
	}
	if got.Metadata["plan"] != "basic" || got.Metadata["user_id"] != "u1" {
		t.Errorf("metadata = %v", got.Metadata)
	}
	if got.CustomerEmail == nil || *got.CustomerEmail != "owner@example.com" {
		t.Errorf("CustomerEmail = %v", got.CustomerEmail)
	}

	if _, err := st.UpsertSubscription(ctx, models.Subscription{UserID: "u1", Plan: "basic", Status: StatusActive, StripeCustomerID: "cus_1"}); err != nil {
		t.Fatalf("UpsertSubscription: %v", err)
	}
	if _, err := svc.CreateCheckout(ctx, "u1", "owner@example.com", PlanPremium, CycleYearly); err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if got.Customer == nil || *got.Customer != "cus_1" || got.CustomerEmail != nil {
		t.Errorf("existing customer not reused: customer=%v email=%v", got.Customer, got.CustomerEmail)
	}

	if _, err := svc.CreateCheckout(ctx, "u1", "", PlanBasic, CycleYearly); !errors.Is(err, ErrNoPrice) {
		t.Errorf("err = %v, want ErrNoPrice", err)
	}
}

func TestCreateCheckout_NotConfigured(t *testing.T) {
	svc, _ := setupService(t)
	if _, err := svc.CreateCheckout(context.Background(), "u1", "", PlanBasic, CycleMonthly); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}
