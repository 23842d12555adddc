package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `market_id, deadline, threshold, metric_name, status,
	description, option_a_label, option_b_label,
	total_staked, option_a_stakes, option_b_stakes,
	created_at, updated_at`

// Upsert inserts or fully replaces a market row. Only the creation flow
// calls this; lifecycle state moves exclusively through Advance.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			market_id, deadline, threshold, metric_name, status,
			description, option_a_label, option_b_label,
			total_staked, option_a_stakes, option_b_stakes,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11,
			NOW(), NOW()
		)
		ON CONFLICT (market_id) DO UPDATE SET
			deadline        = EXCLUDED.deadline,
			threshold       = EXCLUDED.threshold,
			metric_name     = EXCLUDED.metric_name,
			status          = EXCLUDED.status,
			description     = EXCLUDED.description,
			option_a_label  = EXCLUDED.option_a_label,
			option_b_label  = EXCLUDED.option_b_label,
			total_staked    = EXCLUDED.total_staked,
			option_a_stakes = EXCLUDED.option_a_stakes,
			option_b_stakes = EXCLUDED.option_b_stakes,
			updated_at      = NOW()`

	status := m.Status
	if status == "" {
		status = domain.MarketStatusPending
	}

	_, err := s.pool.Exec(ctx, query,
		m.ID, m.Deadline, m.Threshold, m.MetricName, string(status),
		m.Description, m.OptionALabel, m.OptionBLabel,
		int64(m.Stats.TotalStaked), int64(m.Stats.OptionAStakes), int64(m.Stats.OptionBStakes),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
	}
	return nil
}

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var status string
	var totalStaked, aStakes, bStakes int64
	err := row.Scan(
		&m.ID, &m.Deadline, &m.Threshold, &m.MetricName, &status,
		&m.Description, &m.OptionALabel, &m.OptionBLabel,
		&totalStaked, &aStakes, &bStakes,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.MarketStatus(status)
	m.Stats = domain.PoolStats{
		TotalStaked:   uint64(totalStaked),
		OptionAStakes: uint64(aStakes),
		OptionBStakes: uint64(bStakes),
	}
	return m, nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE market_id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// ListByStatus returns every market in the given lifecycle status. Order is
// unspecified; callers treat the result as an unordered working set.
func (s *MarketStore) ListByStatus(ctx context.Context, status domain.MarketStatus) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets WHERE status = $1`, string(status))
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets by status %s: %w", status, err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets by status %s rows: %w", status, err)
	}
	return markets, nil
}

// Advance performs the guarded status transition. The WHERE clause makes the
// monotonic pending -> locked -> resolved invariant a database-enforced
// property: if the stored status no longer matches from (another instance got
// there first, or the caller is confused) no row is touched and
// domain.ErrStatusConflict comes back.
func (s *MarketStore) Advance(ctx context.Context, id string, from, to domain.MarketStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets SET status = $1, updated_at = NOW() WHERE market_id = $2 AND status = $3`,
		string(to), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("postgres: advance market %s %s->%s: %w", id, from, to, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish "no such market" from "status moved under us".
		if _, getErr := s.GetByID(ctx, id); errors.Is(getErr, domain.ErrNotFound) {
			return fmt.Errorf("postgres: advance market %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("postgres: advance market %s %s->%s: %w", id, from, to, domain.ErrStatusConflict)
	}
	return nil
}

// UpdateStats overwrites the cached on-chain stake aggregates. No merge
// semantics; the ledger value always wins.
func (s *MarketStore) UpdateStats(ctx context.Context, id string, stats domain.PoolStats) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets
		 SET total_staked = $1, option_a_stakes = $2, option_b_stakes = $3, updated_at = NOW()
		 WHERE market_id = $4`,
		int64(stats.TotalStaked), int64(stats.OptionAStakes), int64(stats.OptionBStakes), id,
	)
	if err != nil {
		return fmt.Errorf("postgres: update stats for market %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update stats for market %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Count returns the total number of markets in the database.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

// Compile-time interface check.
var _ domain.MarketStore = (*MarketStore)(nil)
