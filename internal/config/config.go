// Package config holds the process configuration shared by every command.
// Each field is a kong flag that can also be set from the environment or a
// .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lox/siteweather/internal/billing"
)

type Config struct {
	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to a .env file.'"`

	DBDriver    string `name:"db-driver" env:"DB_DRIVER" default:"sqlite" enum:"sqlite,postgres" help:"Database driver."`
	DatabaseURL string `name:"database-url" env:"DATABASE_URL" default:"data/siteweather.db" help:"SQLite path or Postgres DSN."`

	LogDir   string `name:"log-dir" env:"LOG_DIR" help:"Write JSON logs to a rotating file in this directory."`
	LogLevel string `name:"log-level" env:"LOG_LEVEL" default:"info" help:"Log level."`
	LogTee   bool   `name:"log-tee" env:"LOG_TEE" help:"Also log to the console when logging to a file."`

	Addr      string `name:"addr" env:"ADDR" default:":8080" help:"HTTP listen address."`
	JWTSecret string `name:"jwt-secret" env:"SUPABASE_JWT_SECRET" help:"HS256 secret used to verify dashboard tokens."`

	WeatherAPIKey  string `name:"weather-api-key" env:"WEATHER_API_KEY" help:"WeatherAPI.com key."`
	WeatherBaseURL string `name:"weather-base-url" env:"WEATHER_BASE_URL" default:"https://api.weatherapi.com/v1" validate:"url"`
	ForecastDays   int    `name:"forecast-days" env:"FORECAST_DAYS" default:"3" validate:"min=1,max=14" help:"Minimum forecast days fetched. Raised to cover the longest saved look-ahead."`

	CollectInterval time.Duration `name:"collect-interval" env:"COLLECT_INTERVAL" default:"1h" validate:"min=1m"`
	BatchSize       int           `name:"batch-size" env:"COLLECT_BATCH_SIZE" default:"10" validate:"min=1,max=100"`
	BatchDelay      time.Duration `name:"batch-delay" env:"COLLECT_BATCH_DELAY" default:"1s"`
	DefaultsFile    string        `name:"defaults-file" env:"WEATHER_DEFAULTS_FILE" help:"YAML file overriding the built-in weather settings defaults."`

	SendGridAPIKey string `name:"sendgrid-api-key" env:"SENDGRID_API_KEY"`
	FromEmail      string `name:"from-email" env:"FROM_EMAIL" default:"alerts@siteweather.app" validate:"required,email"`
	FromName       string `name:"from-name" env:"FROM_NAME" default:"SiteWeather"`

	OpenAIAPIKey  string `name:"openai-api-key" env:"OPENAI_API_KEY" help:"Enables the crew brief in alert emails."`
	OpenAIBaseURL string `name:"openai-base-url" env:"OPENAI_BASE_URL"`

	StripeSecretKey     string `name:"stripe-secret-key" env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `name:"stripe-webhook-secret" env:"STRIPE_WEBHOOK_SECRET"`
	StripeSuccessURL    string `name:"stripe-success-url" env:"STRIPE_SUCCESS_URL" default:"http://localhost:3000/billing/success" validate:"url"`
	StripeCancelURL     string `name:"stripe-cancel-url" env:"STRIPE_CANCEL_URL" default:"http://localhost:3000/billing/cancel" validate:"url"`

	PriceBasicMonthly      string `name:"price-basic-monthly" env:"STRIPE_PRICE_BASIC_MONTHLY"`
	PriceBasicYearly       string `name:"price-basic-yearly" env:"STRIPE_PRICE_BASIC_YEARLY"`
	PricePremiumMonthly    string `name:"price-premium-monthly" env:"STRIPE_PRICE_PREMIUM_MONTHLY"`
	PricePremiumYearly     string `name:"price-premium-yearly" env:"STRIPE_PRICE_PREMIUM_YEARLY"`
	PriceEnterpriseMonthly string `name:"price-enterprise-monthly" env:"STRIPE_PRICE_ENTERPRISE_MONTHLY"`
	PriceEnterpriseYearly  string `name:"price-enterprise-yearly" env:"STRIPE_PRICE_ENTERPRISE_YEARLY"`

	RedisURL         string   `name:"redis-url" env:"REDIS_URL" help:"Keep notification cooldowns in Redis instead of the database."`
	KafkaBrokers     []string `name:"kafka-brokers" env:"KAFKA_BROKERS" sep:"," help:"Publish alert events to these brokers."`
	KafkaTopic       string   `name:"kafka-topic" env:"KAFKA_TOPIC" default:"weather-alerts"`
	FirestoreProject string   `name:"firestore-project" env:"FIRESTORE_PROJECT_ID" help:"Mirror collected weather into Firestore."`
}

var validate = validator.New()

// Validate checks the values kong cannot.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.DBDriver == "postgres" && !strings.Contains(c.DatabaseURL, "://") && !strings.Contains(c.DatabaseURL, "=") {
		return fmt.Errorf("invalid config: database-url %q is not a postgres DSN", c.DatabaseURL)
	}
	return nil
}

func (c *Config) Prices() billing.Prices {
	p := billing.Prices{}
	add := func(plan billing.Plan, cycle billing.Cycle, id string) {
		if id == "" {
			return
		}
		if p[plan] == nil {
			p[plan] = map[billing.Cycle]string{}
		}
		p[plan][cycle] = id
	}
	add(billing.PlanBasic, billing.CycleMonthly, c.PriceBasicMonthly)
	add(billing.PlanBasic, billing.CycleYearly, c.PriceBasicYearly)
	add(billing.PlanPremium, billing.CycleMonthly, c.PricePremiumMonthly)
	add(billing.PlanPremium, billing.CycleYearly, c.PricePremiumYearly)
	add(billing.PlanEnterprise, billing.CycleMonthly, c.PriceEnterpriseMonthly)
	add(billing.PlanEnterprise, billing.CycleYearly, c.PriceEnterpriseYearly)
	return p
}

func (c *Config) Billing() billing.Config {
	return billing.Config{
		SecretKey:     c.StripeSecretKey,
		WebhookSecret: c.StripeWebhookSecret,
		SuccessURL:    c.StripeSuccessURL,
		CancelURL:     c.StripeCancelURL,
		Prices:        c.Prices(),
	}
}
