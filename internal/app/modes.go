package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/oraclebot/internal/domain"
	"github.com/alanyoungcy/oraclebot/internal/ledger"
	"github.com/alanyoungcy/oraclebot/internal/scheduler"
)

// WorkerMode runs the lifecycle scheduler under the single-instance lease.
// It refuses to start while another worker holds the lease, renews the lease
// for as long as the scheduler runs, and releases it on shutdown.
func (a *App) WorkerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting worker mode",
		slog.Duration("interval", a.cfg.Scheduler.Interval.Duration),
	)

	leaseTTL := a.cfg.Scheduler.LeaseTTL.Duration
	lease, err := deps.Leases.Acquire(ctx, a.cfg.Scheduler.LeaseKey, leaseTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLeaseHeld) {
			return fmt.Errorf("worker mode: another scheduler instance already holds lease %q", a.cfg.Scheduler.LeaseKey)
		}
		return fmt.Errorf("worker mode: acquire lease: %w", err)
	}
	defer lease.Release()

	sched := scheduler.New(
		deps.MarketStore,
		deps.Registry,
		deps.Gateway,
		deps.Samples,
		deps.Notifier,
		scheduler.Config{
			Interval:  a.cfg.Scheduler.Interval.Duration,
			OpTimeout: a.cfg.Scheduler.OpTimeout.Duration,
		},
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.RunLoop(ctx)
	})

	// Lease keepalive. Losing the lease cancels the group so the scheduler
	// stops before a replacement instance starts ticking.
	g.Go(func() error {
		ticker := time.NewTicker(leaseTTL / 3)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := lease.Renew(ctx); err != nil {
					return fmt.Errorf("worker mode: lease renewal: %w", err)
				}
			}
		}
	})

	err = g.Wait()
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		// Normal shutdown.
		return nil
	}
	return err
}

// SyncMode runs a single stats sync pass and exits. Useful for refreshing
// the local mirror from a cron job or before inspecting the database.
func (a *App) SyncMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sync mode")

	sched := scheduler.New(
		deps.MarketStore,
		deps.Registry,
		deps.Gateway,
		nil, // no sample cache outside worker mode
		nil, // no notifications for a one-shot sync
		scheduler.Config{
			Interval:  a.cfg.Scheduler.Interval.Duration,
			OpTimeout: a.cfg.Scheduler.OpTimeout.Duration,
		},
		a.logger,
	)
	sched.SyncOnce(ctx)

	count, err := deps.MarketStore.Count(ctx)
	if err != nil {
		return fmt.Errorf("sync mode: count markets: %w", err)
	}
	a.logger.InfoContext(ctx, "sync complete", slog.Int64("markets", count))
	return nil
}

// createFunction opens a new pool on chain. Lock and resolve belong to the
// scheduler; creation is operator-driven.
const createFunction = "create_pool"

// CreateParams holds the command-line arguments for registering a market.
type CreateParams struct {
	ID           string
	Deadline     int64
	Threshold    float64
	MetricName   string
	Description  string
	OptionALabel string
	OptionBLabel string
}

// CreateMode opens the pool on chain and registers the market in the local
// store so the worker picks it up on its next tick. The local row is written
// only after the ledger acknowledged the creation.
func (a *App) CreateMode(ctx context.Context, deps *Dependencies, params CreateParams) error {
	if strings.TrimSpace(params.ID) == "" {
		return errors.New("create mode: market id must not be empty")
	}
	if params.Deadline <= time.Now().Unix() {
		return fmt.Errorf("create mode: deadline %d is in the past", params.Deadline)
	}
	if _, ok := deps.Registry.Lookup(params.MetricName); !ok {
		return fmt.Errorf("create mode: unknown metric %q (available: %s)",
			params.MetricName, strings.Join(deps.Registry.Names(), ", "))
	}

	if params.OptionALabel == "" {
		params.OptionALabel = "YES"
	}
	if params.OptionBLabel == "" {
		params.OptionBLabel = "NO"
	}

	inputs := []string{
		ledger.EncodeField(params.ID),
		ledger.EncodeField(params.Description),
		fmt.Sprintf("[%s, %s]", ledger.EncodeField(params.OptionALabel), ledger.EncodeField(params.OptionBLabel)),
		ledger.EncodeU64(uint64(params.Deadline)),
	}
	opCtx, cancel := context.WithTimeout(ctx, a.cfg.Scheduler.OpTimeout.Duration)
	defer cancel()
	txID, err := deps.Gateway.SubmitTransition(opCtx, createFunction, inputs)
	if err != nil {
		return fmt.Errorf("create mode: open pool: %w", err)
	}

	m := domain.Market{
		ID:           params.ID,
		Deadline:     params.Deadline,
		Threshold:    params.Threshold,
		MetricName:   params.MetricName,
		Status:       domain.MarketStatusPending,
		Description:  params.Description,
		OptionALabel: params.OptionALabel,
		OptionBLabel: params.OptionBLabel,
	}
	if err := deps.MarketStore.Upsert(ctx, m); err != nil {
		return fmt.Errorf("create mode: store market: %w", err)
	}

	a.logger.InfoContext(ctx, "market registered",
		slog.String("market_id", m.ID),
		slog.String("tx_id", txID),
		slog.Int64("deadline", m.Deadline),
		slog.Float64("threshold", m.Threshold),
		slog.String("metric", m.MetricName),
	)
	return nil
}
