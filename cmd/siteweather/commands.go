package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lox/siteweather/internal/api"
	"github.com/lox/siteweather/internal/config"
	"github.com/lox/siteweather/internal/scheduler"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

type ServeCmd struct {
	NoPoll bool `name:"no-poll" help:"Serve the API without collecting or checking (local development)."`
}

func (c *ServeCmd) Run(cfg *config.Config) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if c.NoPoll {
		zap.S().Info("serve: polling disabled (--no-poll)")
	} else {
		go scheduler.New(a.collector, a.checker, cfg.CollectInterval).Run(ctx)
	}

	server := api.NewServer(api.Config{
		Addr:      cfg.Addr,
		JWTSecret: cfg.JWTSecret,
		Defaults:  a.defaults,
	}, a.store, a.checker, a.notifier, a.billing)
	return server.Run(ctx)
}

type CollectCmd struct{}

func (c *CollectCmd) Run(cfg *config.Config) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.collector.Run(ctx)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	if res.Failed > 0 {
		return fmt.Errorf("collect: %d of %d locations failed", res.Failed, res.Locations)
	}
	return nil
}

type CheckCmd struct {
	User string `name:"user" help:"Check this user now, regardless of their check time."`
}

func (c *CheckCmd) Run(cfg *config.Config) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if c.User == "" {
		n, err := a.checker.RunDue(ctx, time.Now())
		if err != nil {
			return err
		}
		zap.S().Infow("check: due checks complete", "jobsites", n)
		return nil
	}

	rep, err := a.checker.CheckUser(ctx, c.User, time.Now(), true)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

type TestEmailCmd struct {
	To string `arg:"" help:"Recipient address."`
}

func (c *TestEmailCmd) Run(cfg *config.Config) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.notifier.SendTest(ctx, c.To); err != nil {
		return fmt.Errorf("send test email: %w", err)
	}
	zap.S().Infow("test-email: sent", "to", c.To)
	return nil
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(cfg *config.Config) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	v, err := st.MigrationVersion()
	if err != nil {
		return err
	}
	zap.S().Infow("migrate: database is current", "driver", cfg.DBDriver, "version", v)
	return nil
}
