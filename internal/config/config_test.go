package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"

	"github.com/lox/siteweather/internal/billing"
)

func parse(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	var cfg Config
	parser, err := kong.New(&cfg, kong.Name("siteweather"), kong.Exit(func(int) { t.Fatal("kong exited") }))
	if err != nil {
		t.Fatalf("kong.New: %v", err)
	}
	_, err = parser.Parse(append([]string{"--env-file=" + envFile}, args...))
	return &cfg, err
}

func TestDefaults(t *testing.T) {
	cfg, err := parse(t)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.DBDriver != "sqlite" || cfg.Addr != ":8080" || cfg.BatchSize != 10 || cfg.BatchDelay != time.Second || cfg.CollectInterval != time.Hour {
		t.Errorf("defaults = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://app@localhost/siteweather?sslmode=disable")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("COLLECT_INTERVAL", "30m")
	t.Setenv("STRIPE_PRICE_PREMIUM_YEARLY", "price_premium_y")

	cfg, err := parse(t)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.DBDriver != "postgres" || len(cfg.KafkaBrokers) != 2 || cfg.CollectInterval != 30*time.Minute {
		t.Errorf("cfg = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if id, ok := cfg.Prices().PriceFor(billing.PlanPremium, billing.CycleYearly); !ok || id != "price_premium_y" {
		t.Errorf("PriceFor = %q, %v", id, ok)
	}
	if _, ok := cfg.Prices().PriceFor(billing.PlanBasic, billing.CycleMonthly); ok {
		t.Error("unset price should be missing")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad from email", []string{"--from-email=alerts"}},
		{"batch size zero", []string{"--batch-size=0"}},
		{"collect too often", []string{"--collect-interval=10s"}},
		{"postgres with a file path", []string{"--db-driver=postgres", "--database-url=data/siteweather.db"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parse(t, tt.args...)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParse_RejectsUnknownDriver(t *testing.T) {
	if _, err := parse(t, "--db-driver=mysql"); err == nil {
		t.Error("expected enum error")
	}
}
