// Package scheduler implements the market lifecycle worker: the periodic
// loop that syncs on-chain stake stats, locks expired markets, and resolves
// locked markets against their bound metrics.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/oraclebot/internal/domain"
	"github.com/alanyoungcy/oraclebot/internal/ledger"
)

// Ledger program surface the scheduler drives.
const (
	lockFunction    = "lock_pool"
	resolveFunction = "resolve_pool"
	poolsMapping    = "pools"
)

// Notification event names.
const (
	EventMarketLocked   = "market_locked"
	EventMarketResolved = "market_resolved"
	EventLockFailed     = "lock_failed"
	EventResolveFailed  = "resolve_failed"
	EventConfigDefect   = "config_defect"
)

// ProviderRegistry resolves metric names to providers. Injected at
// construction so tests can swap in fakes and the set of available metrics is
// an explicit dependency.
type ProviderRegistry interface {
	Lookup(name string) (domain.MetricProvider, bool)
}

// Notifier pushes operator-facing events. *notify.Notifier satisfies it.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config holds the scheduler's timing parameters.
type Config struct {
	// Interval between ticks.
	Interval time.Duration
	// OpTimeout bounds each individual fetch, store, and ledger call so one
	// slow market never blocks the rest of the tick indefinitely.
	OpTimeout time.Duration
}

// Scheduler advances every market through pending -> locked -> resolved. It
// is the only writer of lifecycle state; exactly one instance may run against
// a given store and oracle identity.
type Scheduler struct {
	store    domain.MarketStore
	registry ProviderRegistry
	gateway  domain.LedgerGateway
	samples  domain.SampleCache // optional
	notifier Notifier           // optional
	cfg      Config
	logger   *slog.Logger

	now func() time.Time // injectable clock for tests
}

// New creates a Scheduler. samples and notifier may be nil; both are
// best-effort side channels that never gate lifecycle progress.
func New(
	store domain.MarketStore,
	registry ProviderRegistry,
	gateway domain.LedgerGateway,
	samples domain.SampleCache,
	notifier Notifier,
	cfg Config,
	logger *slog.Logger,
) *Scheduler {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 30 * time.Second
	}
	return &Scheduler{
		store:    store,
		registry: registry,
		gateway:  gateway,
		samples:  samples,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "scheduler")),
		now:      time.Now,
	}
}

// RunLoop drives ticks on the configured interval until the context is
// cancelled. Ticks run synchronously on this goroutine, so two ticks can
// never overlap; if a tick overruns the interval, the ticker simply drops the
// missed firings and the next tick starts late.
func (s *Scheduler) RunLoop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "lifecycle scheduler starting",
		slog.Duration("interval", s.cfg.Interval),
	)

	// Run immediately on start.
	s.Tick(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("lifecycle scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick executes one full pass: stats sync, lock phase, resolve phase. Every
// per-market failure is logged and skipped; nothing inside a tick can abort
// sibling markets or the loop itself.
func (s *Scheduler) Tick(ctx context.Context) {
	tickID := uuid.New().String()
	logger := s.logger.With(slog.String("tick_id", tickID))
	start := s.now()

	s.syncStats(ctx, logger)
	s.lockExpired(ctx, logger)
	s.resolveLocked(ctx, logger)

	logger.DebugContext(ctx, "tick complete",
		slog.Duration("elapsed", s.now().Sub(start)),
	)
}

// SyncOnce runs a single stats sync pass without touching lifecycle state.
// Used by the one-shot sync mode.
func (s *Scheduler) SyncOnce(ctx context.Context) {
	logger := s.logger.With(slog.String("tick_id", uuid.New().String()))
	s.syncStats(ctx, logger)
}

// syncStats refreshes the cached stake aggregates for every known market
// from the ledger's pools mapping. Best-effort: any failure skips that
// market and never blocks lifecycle progress.
func (s *Scheduler) syncStats(ctx context.Context, logger *slog.Logger) {
	for _, status := range []domain.MarketStatus{
		domain.MarketStatusPending,
		domain.MarketStatusLocked,
		domain.MarketStatusResolved,
	} {
		markets, err := s.listByStatus(ctx, status)
		if err != nil {
			logger.WarnContext(ctx, "stats sync: list markets failed",
				slog.String("status", string(status)),
				slog.String("error", err.Error()),
			)
			continue
		}

		for _, m := range markets {
			raw, ok, err := s.readPool(ctx, m.ID)
			if err != nil {
				logger.WarnContext(ctx, "stats sync: mapping read failed",
					slog.String("market_id", m.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			if !ok {
				// Pool not on chain yet; nothing to mirror.
				continue
			}

			stats, err := ledger.ParsePoolStats(raw)
			if err != nil {
				logger.WarnContext(ctx, "stats sync: parse pool failed",
					slog.String("market_id", m.ID),
					slog.String("error", err.Error()),
				)
				continue
			}

			if err := s.updateStats(ctx, m.ID, stats); err != nil {
				logger.WarnContext(ctx, "stats sync: store update failed",
					slog.String("market_id", m.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// lockExpired submits a lock transition for every pending market whose
// deadline has passed, and advances local status only after the ledger
// acknowledged the submission.
func (s *Scheduler) lockExpired(ctx context.Context, logger *slog.Logger) {
	pending, err := s.listByStatus(ctx, domain.MarketStatusPending)
	if err != nil {
		logger.ErrorContext(ctx, "lock phase: list pending failed",
			slog.String("error", err.Error()),
		)
		return
	}

	now := s.now()
	for _, m := range pending {
		if !m.DeadlinePassed(now) {
			continue
		}

		logger.InfoContext(ctx, "deadline reached, locking market",
			slog.String("market_id", m.ID),
			slog.Int64("deadline", m.Deadline),
		)

		txID, err := s.submit(ctx, lockFunction, []string{ledger.EncodeField(m.ID)})
		if err != nil {
			logger.ErrorContext(ctx, "lock submission failed, will retry next tick",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
			s.notify(ctx, EventLockFailed, "Lock failed",
				"market "+m.ID+": "+err.Error())
			continue
		}

		// Status advances strictly after submission acknowledgment.
		if err := s.advance(ctx, m.ID, domain.MarketStatusPending, domain.MarketStatusLocked); err != nil {
			logger.ErrorContext(ctx, "lock phase: status advance failed",
				slog.String("market_id", m.ID),
				slog.String("tx_id", txID),
				slog.String("error", err.Error()),
			)
			continue
		}

		logger.InfoContext(ctx, "market locked",
			slog.String("market_id", m.ID),
			slog.String("tx_id", txID),
		)
		s.notify(ctx, EventMarketLocked, "Market locked", "market "+m.ID)
	}
}

// resolveLocked fetches the bound metric for every locked market and, when a
// value is available, submits the resolution and advances local status.
func (s *Scheduler) resolveLocked(ctx context.Context, logger *slog.Logger) {
	locked, err := s.listByStatus(ctx, domain.MarketStatusLocked)
	if err != nil {
		logger.ErrorContext(ctx, "resolve phase: list locked failed",
			slog.String("error", err.Error()),
		)
		return
	}

	for _, m := range locked {
		provider, ok := s.registry.Lookup(m.MetricName)
		if !ok {
			// A configuration defect an operator must fix; the market is
			// skipped every tick until then.
			logger.ErrorContext(ctx, "no provider registered for metric",
				slog.String("market_id", m.ID),
				slog.String("metric", m.MetricName),
			)
			s.notify(ctx, EventConfigDefect, "Unregistered metric",
				"market "+m.ID+" is bound to unknown metric "+m.MetricName)
			continue
		}

		value, err := s.fetchValue(ctx, provider)
		if err != nil {
			logger.WarnContext(ctx, "metric fetch failed, will retry next tick",
				slog.String("market_id", m.ID),
				slog.String("metric", m.MetricName),
				slog.String("error", err.Error()),
			)
			continue
		}

		s.recordSample(ctx, logger, m.MetricName, value)

		winner := m.Winner(value)
		inputs := []string{
			ledger.EncodeField(m.ID),
			ledger.EncodeU64(uint64(winner)),
		}
		txID, err := s.submit(ctx, resolveFunction, inputs)
		if err != nil {
			logger.ErrorContext(ctx, "resolve submission failed, will retry next tick",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
			s.notify(ctx, EventResolveFailed, "Resolve failed",
				"market "+m.ID+": "+err.Error())
			continue
		}

		if err := s.advance(ctx, m.ID, domain.MarketStatusLocked, domain.MarketStatusResolved); err != nil {
			logger.ErrorContext(ctx, "resolve phase: status advance failed",
				slog.String("market_id", m.ID),
				slog.String("tx_id", txID),
				slog.String("error", err.Error()),
			)
			continue
		}

		label := m.OptionALabel
		if winner == domain.OutcomeB {
			label = m.OptionBLabel
		}
		logger.InfoContext(ctx, "market resolved",
			slog.String("market_id", m.ID),
			slog.String("metric", m.MetricName),
			slog.Float64("value", value),
			slog.Float64("threshold", m.Threshold),
			slog.Uint64("winner", uint64(winner)),
			slog.String("tx_id", txID),
		)
		s.notify(ctx, EventMarketResolved, "Market resolved",
			"market "+m.ID+" resolved as "+label)
	}
}

// recordSample mirrors a successful observation to the sample cache.
// Best-effort: a cache failure is logged and otherwise ignored.
func (s *Scheduler) recordSample(ctx context.Context, logger *slog.Logger, metric string, value float64) {
	if s.samples == nil {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	if err := s.samples.SetLatest(opCtx, metric, value, s.now()); err != nil {
		logger.WarnContext(ctx, "sample cache write failed",
			slog.String("metric", metric),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Scheduler) notify(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	// Notifier errors are already logged by the notifier itself.
	_ = s.notifier.Notify(ctx, event, title, message)
}

// ---------------------------------------------------------------------------
// Timeout-wrapped I/O helpers. Every blocking call gets its own deadline so
// the loop always returns to idle and attempts the next tick on schedule.
// ---------------------------------------------------------------------------

func (s *Scheduler) listByStatus(ctx context.Context, status domain.MarketStatus) ([]domain.Market, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	return s.store.ListByStatus(opCtx, status)
}

func (s *Scheduler) updateStats(ctx context.Context, id string, stats domain.PoolStats) error {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	return s.store.UpdateStats(opCtx, id, stats)
}

func (s *Scheduler) advance(ctx context.Context, id string, from, to domain.MarketStatus) error {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	err := s.store.Advance(opCtx, id, from, to)
	if errors.Is(err, domain.ErrStatusConflict) {
		// Another writer moved the market: a misconfigured second instance.
		// Fail loudly rather than masking it.
		s.logger.ErrorContext(ctx, "status conflict, is another instance running?",
			slog.String("market_id", id),
			slog.String("from", string(from)),
			slog.String("to", string(to)),
		)
	}
	return err
}

func (s *Scheduler) readPool(ctx context.Context, marketID string) (string, bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	return s.gateway.ReadMapping(opCtx, poolsMapping, ledger.EncodeField(marketID))
}

func (s *Scheduler) submit(ctx context.Context, function string, inputs []string) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	return s.gateway.SubmitTransition(opCtx, function, inputs)
}

func (s *Scheduler) fetchValue(ctx context.Context, provider domain.MetricProvider) (float64, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	return provider.FetchValue(opCtx)
}
