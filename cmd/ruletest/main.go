// Command ruletest is a read-only diagnostics CLI for the automation rules.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"automator/internal/automation"
	"automator/internal/config"
	"automator/internal/db"
	"automator/internal/engine"
	"automator/internal/logging"
	"automator/internal/models"
	"automator/internal/redis"
	"automator/internal/state"
)

type backend struct {
	db  *db.DB
	eng *engine.Engine
	loc *time.Location
}

func (b *backend) Location() *time.Location { return b.loc }

func (b *backend) ListRules(ctx context.Context) ([]models.Rule, error) {
	return b.db.ListRules(ctx)
}

func (b *backend) GetRule(ctx context.Context, id string) (models.Rule, error) {
	return b.db.GetRule(ctx, id)
}

func (b *backend) GetTriggersForRule(ctx context.Context, ruleID string) ([]models.Trigger, error) {
	return b.db.GetTriggersForRule(ctx, ruleID)
}

func (b *backend) DryRun(ctx context.Context, ruleID string) (engine.DryRunReport, error) {
	return b.eng.DryRun(ctx, ruleID)
}

func open(ctx context.Context) (Backend, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger("warn", "console", "ruletest")
	if err != nil {
		return nil, nil, err
	}

	dbConn, err := db.NewDB(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to DB: %w", err)
	}
	redisClient, err := redis.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		dbConn.Close()
		return nil, nil, fmt.Errorf("connect to Redis: %w", err)
	}

	// location checks have no fresh-fix provider here and fall back to the cached fix
	states := state.NewStore(redisClient, cfg.App.DeviceID)
	resolver := automation.NewLocationResolver(states, nil, cfg.Engine.LastKnownTimeout, cfg.Engine.FreshFixTimeout, cfg.Engine.LocationMaxAge, logger)
	eng := engine.NewEngine(engine.Deps{
		Store:     dbConn,
		States:    states,
		Evaluator: automation.NewEvaluator(states, resolver, logger),
		Location:  loc,
	}, engine.Options{DeviceID: cfg.App.DeviceID}, logger)

	release := func() {
		redisClient.Close()
		dbConn.Close()
	}
	return &backend{db: dbConn, eng: eng, loc: loc}, release, nil
}

func main() {
	if err := NewRootCommand(open).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
