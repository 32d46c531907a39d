package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

const createTradersTables = `
CREATE TABLE IF NOT EXISTS traders (
    username     TEXT             PRIMARY KEY,
    display_name TEXT             NOT NULL DEFAULT '',
    trader_type  TEXT             NOT NULL,
    score        DOUBLE PRECISION NOT NULL,
    rank         INTEGER          NOT NULL,
    metrics      JSONB            NOT NULL,
    updated_at   TIMESTAMPTZ      NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_traders_type_rank
    ON traders (trader_type, rank);

CREATE TABLE IF NOT EXISTS trader_positions (
    id              BIGSERIAL        PRIMARY KEY,
    trader_username TEXT             NOT NULL REFERENCES traders (username) ON DELETE CASCADE,
    instrument      TEXT             NOT NULL,
    direction       TEXT             NOT NULL,
    size            DOUBLE PRECISION NOT NULL,
    current_price   DOUBLE PRECISION NOT NULL DEFAULT 0,
    pnl             DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_trader_positions_instrument
    ON trader_positions (instrument);

CREATE INDEX IF NOT EXISTS idx_trader_positions_username
    ON trader_positions (trader_username);
`

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type TraderRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewTraderRepository(pool PgxPool, tracer trace.Tracer) *TraderRepository {
	return &TraderRepository{pool: pool, tracer: tracer}
}

func (r *TraderRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "trader-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createTradersTables)
	return err
}

// UpsertTraders replaces each trader's row and their positions wholesale. A
// refresh cycle always writes the complete snapshot.
func (r *TraderRepository) UpsertTraders(ctx context.Context, traders []domain.ScoredTrader) error {
	if len(traders) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "trader-repo.upsert-traders")
	defer span.End()

	batch := &pgx.Batch{}
	queued := 0
	for _, t := range traders {
		metrics, err := json.Marshal(t.Metrics)
		if err != nil {
			return fmt.Errorf("marshal metrics for %s: %w", t.Username, err)
		}

		batch.Queue(
			`INSERT INTO traders (username, display_name, trader_type, score, rank, metrics, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (username) DO UPDATE SET
			     display_name = EXCLUDED.display_name,
			     trader_type = EXCLUDED.trader_type,
			     score = EXCLUDED.score,
			     rank = EXCLUDED.rank,
			     metrics = EXCLUDED.metrics,
			     updated_at = EXCLUDED.updated_at`,
			t.Username, t.Metrics.DisplayName, string(t.TraderType), t.Score, t.Rank, metrics, t.UpdatedAt,
		)
		queued++

		batch.Queue(`DELETE FROM trader_positions WHERE trader_username = $1`, t.Username)
		queued++

		for _, p := range t.Positions {
			batch.Queue(
				`INSERT INTO trader_positions (trader_username, instrument, direction, size, current_price, pnl)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				t.Username, p.Instrument, string(p.Direction), p.Size, p.CurrentPrice, p.PnL,
			)
			queued++
		}
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < queued; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// GetTopTraders returns the best-ranked traders of one type with their
// positions attached.
func (r *TraderRepository) GetTopTraders(ctx context.Context, traderType domain.TraderType, limit int) ([]domain.ScoredTrader, error) {
	_, span := r.tracer.Start(ctx, "trader-repo.get-top-traders")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT username, trader_type, score, rank, metrics, updated_at
		 FROM traders
		 WHERE trader_type = $1
		 ORDER BY rank ASC, username ASC
		 LIMIT $2`,
		string(traderType), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	traders, err := scanTraders(rows)
	if err != nil {
		return nil, err
	}
	return r.attachPositions(ctx, traders)
}

// GetAllTraders returns the full cohort with positions, both types.
func (r *TraderRepository) GetAllTraders(ctx context.Context) ([]domain.ScoredTrader, error) {
	_, span := r.tracer.Start(ctx, "trader-repo.get-all-traders")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT username, trader_type, score, rank, metrics, updated_at
		 FROM traders
		 ORDER BY trader_type, rank ASC, username ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	traders, err := scanTraders(rows)
	if err != nil {
		return nil, err
	}
	return r.attachPositions(ctx, traders)
}

// GetTrader loads one trader by username, with positions.
func (r *TraderRepository) GetTrader(ctx context.Context, username string) (*domain.ScoredTrader, error) {
	_, span := r.tracer.Start(ctx, "trader-repo.get-trader")
	defer span.End()

	var (
		t       domain.ScoredTrader
		tt      string
		metrics []byte
		updated time.Time
	)
	err := r.pool.QueryRow(ctx,
		`SELECT username, trader_type, score, rank, metrics, updated_at
		 FROM traders WHERE username = $1`,
		username,
	).Scan(&t.Username, &tt, &t.Score, &t.Rank, &metrics, &updated)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	t.TraderType = domain.TraderType(tt)
	t.UpdatedAt = updated
	if err := json.Unmarshal(metrics, &t.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics for %s: %w", username, err)
	}

	out, err := r.attachPositions(ctx, []domain.ScoredTrader{t})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func scanTraders(rows pgx.Rows) ([]domain.ScoredTrader, error) {
	var traders []domain.ScoredTrader
	for rows.Next() {
		var (
			t       domain.ScoredTrader
			tt      string
			metrics []byte
		)
		if err := rows.Scan(&t.Username, &tt, &t.Score, &t.Rank, &metrics, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.TraderType = domain.TraderType(tt)
		if err := json.Unmarshal(metrics, &t.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshal metrics for %s: %w", t.Username, err)
		}
		traders = append(traders, t)
	}
	return traders, rows.Err()
}

func (r *TraderRepository) attachPositions(ctx context.Context, traders []domain.ScoredTrader) ([]domain.ScoredTrader, error) {
	if len(traders) == 0 {
		return traders, nil
	}

	usernames := make([]string, len(traders))
	index := make(map[string]int, len(traders))
	for i, t := range traders {
		usernames[i] = t.Username
		index[t.Username] = i
	}

	rows, err := r.pool.Query(ctx,
		`SELECT trader_username, instrument, direction, size, current_price, pnl
		 FROM trader_positions
		 WHERE trader_username = ANY($1)
		 ORDER BY trader_username, instrument`,
		usernames,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p   domain.Position
			dir string
		)
		if err := rows.Scan(&p.TraderUsername, &p.Instrument, &dir, &p.Size, &p.CurrentPrice, &p.PnL); err != nil {
			return nil, err
		}
		p.Direction = domain.PositionDirection(dir)
		if i, ok := index[p.TraderUsername]; ok {
			traders[i].Positions = append(traders[i].Positions, p)
		}
	}
	return traders, rows.Err()
}
