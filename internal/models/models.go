package models

import (
	"time"
)

type UserProfile struct {
	ID          string    `db:"id" json:"id"`
	Email       string    `db:"email" json:"email"`
	FullName    string    `db:"full_name" json:"fullName"`
	CompanyName string    `db:"company_name" json:"companyName"`
	Phone       string    `db:"phone" json:"phone"`
	Address     string    `db:"address" json:"address"`
	Zip         string    `db:"zip" json:"zip"`
	Latitude    *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude   *float64  `db:"longitude" json:"longitude,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

type Client struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Address   string    `db:"address" json:"address"`
	Zip       string    `db:"zip" json:"zip"`
	Latitude  *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude *float64  `db:"longitude" json:"longitude,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type Worker struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Role      string    `db:"role" json:"role"` // "foreman", "laborer", ...
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type Jobsite struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	ClientID  string    `db:"client_id" json:"clientId"`
	Name      string    `db:"name" json:"name"`
	Address   string    `db:"address" json:"address"`
	Zip       string    `db:"zip" json:"zip"`
	Latitude  *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude *float64  `db:"longitude" json:"longitude,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Subscription mirrors the billing state of one user. Plan and Status are
// plain strings here; the billing package owns their meaning.
type Subscription struct {
	ID                   string     `db:"id" json:"id"`
	UserID               string     `db:"user_id" json:"userId"`
	Plan                 string     `db:"plan" json:"plan"`
	Status               string     `db:"status" json:"status"`
	BillingCycle         string     `db:"billing_cycle" json:"billingCycle"`
	StripeCustomerID     string     `db:"stripe_customer_id" json:"stripeCustomerId"`
	StripeSubscriptionID string     `db:"stripe_subscription_id" json:"stripeSubscriptionId"`
	StripePriceID        string     `db:"stripe_price_id" json:"stripePriceId"`
	CurrentPeriodEnd     *time.Time `db:"current_period_end" json:"currentPeriodEnd,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updatedAt"`
}

type BillingRecord struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"userId"`
	SubscriptionID  string    `db:"subscription_id" json:"subscriptionId"`
	StripeInvoiceID string    `db:"stripe_invoice_id" json:"stripeInvoiceId"`
	AmountCents     int64     `db:"amount_cents" json:"amountCents"`
	Currency        string    `db:"currency" json:"currency"`
	Status          string    `db:"status" json:"status"`
	InvoiceURL      string    `db:"invoice_url" json:"invoiceUrl"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

// WeatherRecord is the latest provider forecast for one deduplicated
// location. Payload holds the provider response body as fetched.
type WeatherRecord struct {
	LocationKey string    `db:"location_key" json:"locationKey"`
	Query       string    `db:"query" json:"query"`
	Latitude    *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude   *float64  `db:"longitude" json:"longitude,omitempty"`
	Sources     string    `db:"sources" json:"sources"` // JSON array of "kind:id"
	Payload     string    `db:"payload" json:"-"`
	FetchedAt   time.Time `db:"fetched_at" json:"fetchedAt"`
}

type Notification struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	JobsiteID string    `db:"jobsite_id" json:"jobsiteId"`
	Hazard    string    `db:"hazard" json:"hazard"`
	Recipient string    `db:"recipient" json:"recipient"`
	Channel   string    `db:"channel" json:"channel"`
	Status    string    `db:"status" json:"status"` // "sent", "failed"
	Error     string    `db:"error" json:"error,omitempty"`
	SentAt    time.Time `db:"sent_at" json:"sentAt"`
}
