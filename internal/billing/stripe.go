package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/lox/siteweather/internal/metrics"
	"github.com/lox/siteweather/internal/models"
	"github.com/lox/siteweather/internal/store"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrNotConfigured    = errors.New("billing is not configured")
	ErrNoPrice          = errors.New("no price configured for plan")
)

// Store is the persistence the billing service needs.
type Store interface {
	GetSubscription(ctx context.Context, userID string) (*models.Subscription, error)
	GetSubscriptionByCustomer(ctx context.Context, customerID string) (*models.Subscription, error)
	GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, sub models.Subscription) (models.Subscription, error)
	InsertBillingRecord(ctx context.Context, rec models.BillingRecord) error
}

type Config struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Prices        Prices
}

type Service struct {
	cfg        Config
	store      Store
	newSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func NewService(cfg Config, st Store) *Service {
	s := &Service{cfg: cfg, store: st}
	if cfg.SecretKey != "" {
		sc := client.New(cfg.SecretKey, nil)
		s.newSession = sc.CheckoutSessions.New
	}
	return s
}

// CreateCheckout starts a Stripe Checkout session for a subscription and
// returns the hosted payment page URL. The user ID travels as the client
// reference and in metadata so the completion webhook can find the user.
func (s *Service) CreateCheckout(ctx context.Context, userID, email string, plan Plan, cycle Cycle) (string, error) {
	if s.newSession == nil {
		return "", ErrNotConfigured
	}
	price, ok := s.cfg.Prices.PriceFor(plan, cycle)
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrNoPrice, plan, cycle)
	}

	meta := map[string]string{
		"user_id":       userID,
		"plan":          string(plan),
		"billing_cycle": string(cycle),
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(userID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(price), Quantity: stripe.Int64(1)},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{Metadata: meta},
	}
	params.Context = ctx
	for k, v := range meta {
		params.AddMetadata(k, v)
	}

	existing, err := s.store.GetSubscription(ctx, userID)
	switch {
	case err == nil && existing.StripeCustomerID != "":
		params.Customer = stripe.String(existing.StripeCustomerID)
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return "", fmt.Errorf("load subscription: %w", err)
	case email != "":
		params.CustomerEmail = stripe.String(email)
	}

	sess, err := s.newSession(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	zap.S().Infow("billing: checkout session created", "user", userID, "plan", plan, "cycle", cycle, "session", sess.ID)
	return sess.URL, nil
}

// HandleWebhook verifies and applies one Stripe event. Events the service
// does not act on, or that reference unknown customers, are acknowledged
// without error so Stripe stops redelivering them.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "invalid_signature").Inc()
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	typ := string(event.Type)
	switch typ {
	case "checkout.session.completed":
		err = s.checkoutCompleted(ctx, event)
	case "invoice.payment_succeeded":
		err = s.invoicePaid(ctx, event)
	case "customer.subscription.updated":
		err = s.subscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		err = s.subscriptionDeleted(ctx, event)
	default:
		metrics.WebhookEventsTotal.WithLabelValues(typ, "ignored").Inc()
		zap.S().Debugw("billing: webhook ignored", "type", typ, "id", event.ID)
		return typ, nil
	}

	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(typ, "error").Inc()
		return typ, fmt.Errorf("handle %s: %w", typ, err)
	}
	metrics.WebhookEventsTotal.WithLabelValues(typ, "ok").Inc()
	return typ, nil
}

func (s *Service) checkoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("decode checkout session: %w", err)
	}

	userID := sess.ClientReferenceID
	if userID == "" {
		userID = sess.Metadata["user_id"]
	}
	if userID == "" {
		zap.S().Warnw("billing: checkout without user reference", "session", sess.ID)
		return nil
	}

	plan, err := ParsePlan(sess.Metadata["plan"])
	if err != nil {
		return err
	}
	cycle, err := ParseCycle(sess.Metadata["billing_cycle"])
	if err != nil {
		return err
	}

	sub, err := s.store.GetSubscription(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		sub = &models.Subscription{UserID: userID}
	} else if err != nil {
		return fmt.Errorf("load subscription: %w", err)
	}

	sub.Plan = string(plan)
	sub.Status = StatusActive
	sub.BillingCycle = string(cycle)
	if price, ok := s.cfg.Prices.PriceFor(plan, cycle); ok {
		sub.StripePriceID = price
	}
	if sess.Customer != nil && sess.Customer.ID != "" {
		sub.StripeCustomerID = sess.Customer.ID
	}
	if sess.Subscription != nil && sess.Subscription.ID != "" {
		sub.StripeSubscriptionID = sess.Subscription.ID
	}

	if _, err := s.store.UpsertSubscription(ctx, *sub); err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	zap.S().Infow("billing: subscription activated", "user", userID, "plan", plan, "cycle", cycle)
	return nil
}

func (s *Service) invoicePaid(ctx context.Context, event stripe.Event) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return fmt.Errorf("decode invoice: %w", err)
	}

	sub, err := s.lookup(ctx, stripeID(inv.Subscription), customerID(inv.Customer))
	if errors.Is(err, store.ErrNotFound) {
		zap.S().Warnw("billing: invoice for unknown customer", "invoice", inv.ID, "customer", customerID(inv.Customer))
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.store.InsertBillingRecord(ctx, models.BillingRecord{
		UserID:          sub.UserID,
		SubscriptionID:  sub.ID,
		StripeInvoiceID: inv.ID,
		AmountCents:     inv.AmountPaid,
		Currency:        string(inv.Currency),
		Status:          string(inv.Status),
		InvoiceURL:      inv.HostedInvoiceURL,
	}); err != nil {
		return fmt.Errorf("record invoice: %w", err)
	}

	sub.Status = StatusActive
	if inv.Lines != nil {
		for _, line := range inv.Lines.Data {
			if line.Price != nil {
				if plan, cycle, ok := s.cfg.Prices.PlanForPrice(line.Price.ID); ok {
					sub.Plan, sub.BillingCycle, sub.StripePriceID = string(plan), string(cycle), line.Price.ID
				}
			}
			if line.Period != nil && line.Period.End > 0 {
				end := time.Unix(line.Period.End, 0).UTC()
				sub.CurrentPeriodEnd = &end
			}
		}
	}
	if _, err := s.store.UpsertSubscription(ctx, *sub); err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

func (s *Service) subscriptionUpdated(ctx context.Context, event stripe.Event) error {
	var ss stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &ss); err != nil {
		return fmt.Errorf("decode subscription: %w", err)
	}

	sub, err := s.lookup(ctx, ss.ID, customerID(ss.Customer))
	if errors.Is(err, store.ErrNotFound) {
		zap.S().Warnw("billing: update for unknown subscription", "subscription", ss.ID)
		return nil
	}
	if err != nil {
		return err
	}

	switch ss.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		sub.Status = StatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		sub.Status = StatusPastDue
	case stripe.SubscriptionStatusCanceled:
		sub.Status = StatusCanceled
		sub.Plan = string(PlanNone)
	}
	if ss.Items != nil {
		for _, item := range ss.Items.Data {
			if item.Price == nil {
				continue
			}
			if plan, cycle, ok := s.cfg.Prices.PlanForPrice(item.Price.ID); ok && sub.Status != StatusCanceled {
				sub.Plan, sub.BillingCycle, sub.StripePriceID = string(plan), string(cycle), item.Price.ID
			}
		}
	}
	if ss.CurrentPeriodEnd > 0 {
		end := time.Unix(ss.CurrentPeriodEnd, 0).UTC()
		sub.CurrentPeriodEnd = &end
	}
	if _, err := s.store.UpsertSubscription(ctx, *sub); err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

func (s *Service) subscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var ss stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &ss); err != nil {
		return fmt.Errorf("decode subscription: %w", err)
	}

	sub, err := s.lookup(ctx, ss.ID, customerID(ss.Customer))
	if errors.Is(err, store.ErrNotFound) {
		zap.S().Warnw("billing: cancellation for unknown subscription", "subscription", ss.ID)
		return nil
	}
	if err != nil {
		return err
	}

	sub.Status = StatusCanceled
	sub.Plan = string(PlanNone)
	if _, err := s.store.UpsertSubscription(ctx, *sub); err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	zap.S().Infow("billing: subscription canceled", "user", sub.UserID)
	return nil
}

// lookup finds the local subscription by Stripe subscription ID, falling
// back to the customer ID.
func (s *Service) lookup(ctx context.Context, subscriptionID, customer string) (*models.Subscription, error) {
	if subscriptionID != "" {
		sub, err := s.store.GetSubscriptionByStripeID(ctx, subscriptionID)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("load subscription: %w", err)
		}
	}
	if customer == "" {
		return nil, store.ErrNotFound
	}
	sub, err := s.store.GetSubscriptionByCustomer(ctx, customer)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	return sub, err
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func stripeID(s *stripe.Subscription) string {
	if s == nil {
		return ""
	}
	return s.ID
}

// FeaturesForSubscription resolves the features granted by a stored
// subscription; a nil subscription grants nothing.
func FeaturesForSubscription(sub *models.Subscription) (Plan, Features) {
	if sub == nil {
		f, _ := FeaturesFor(PlanNone)
		return PlanNone, f
	}
	plan := Effective(sub.Plan, sub.Status)
	f, _ := FeaturesFor(plan)
	return plan, f
}
