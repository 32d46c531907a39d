package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

const createSignalsTable = `
CREATE TABLE IF NOT EXISTS signals (
    id                 BIGSERIAL        PRIMARY KEY,
    instrument         TEXT             NOT NULL,
    action             TEXT             NOT NULL,
    strategy_type      TEXT             NOT NULL,
    confidence         DOUBLE PRECISION NOT NULL,
    consensus_strength DOUBLE PRECISION NOT NULL,
    supporting_traders JSONB            NOT NULL,
    reasoning          TEXT             NOT NULL DEFAULT '',
    is_active          BOOLEAN          NOT NULL DEFAULT TRUE,
    created_at         TIMESTAMPTZ      NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_signals_active
    ON signals (instrument, strategy_type) WHERE is_active;

CREATE INDEX IF NOT EXISTS idx_signals_created_at
    ON signals (created_at DESC);
`

type SignalRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewSignalRepository(pool PgxPool, tracer trace.Tracer) *SignalRepository {
	return &SignalRepository{pool: pool, tracer: tracer}
}

func (r *SignalRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "signal-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createSignalsTable)
	return err
}

// SaveSignals persists actionable signals. Each signal first deactivates any
// live signal for the same instrument and strategy, so at most one signal per
// pair is active. HOLD signals are skipped.
func (r *SignalRepository) SaveSignals(ctx context.Context, signals []domain.Signal) error {
	_, span := r.tracer.Start(ctx, "signal-repo.save-signals")
	defer span.End()

	batch := &pgx.Batch{}
	queued := 0
	for _, s := range signals {
		if s.Action == domain.ActionHold {
			continue
		}
		supporters, err := json.Marshal(s.SupportingTraders)
		if err != nil {
			return fmt.Errorf("marshal supporters for %s: %w", s.Instrument, err)
		}

		batch.Queue(
			`UPDATE signals SET is_active = FALSE
			 WHERE instrument = $1 AND strategy_type = $2 AND is_active`,
			s.Instrument, string(s.StrategyType),
		)
		queued++

		batch.Queue(
			`INSERT INTO signals (instrument, action, strategy_type, confidence, consensus_strength,
			                      supporting_traders, reasoning, is_active, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8)`,
			s.Instrument, string(s.Action), string(s.StrategyType), s.Confidence,
			s.ConsensusStrength, supporters, s.Reasoning, s.CreatedAt,
		)
		queued++
	}

	if queued == 0 {
		return nil
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

// GetActiveSignals returns live signals, optionally filtered by strategy.
func (r *SignalRepository) GetActiveSignals(ctx context.Context, strategy domain.StrategyType) ([]domain.Signal, error) {
	_, span := r.tracer.Start(ctx, "signal-repo.get-active-signals")
	defer span.End()

	query := `SELECT id, instrument, action, strategy_type, confidence, consensus_strength,
	                 supporting_traders, reasoning, is_active, created_at
	          FROM signals WHERE is_active`
	args := []any{}
	if strategy != "" {
		query += ` AND strategy_type = $1`
		args = append(args, string(strategy))
	}
	query += ` ORDER BY confidence DESC, instrument ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSignals(rows)
}

// GetSignal loads one signal by id; nil when not found.
func (r *SignalRepository) GetSignal(ctx context.Context, id int64) (*domain.Signal, error) {
	_, span := r.tracer.Start(ctx, "signal-repo.get-signal")
	defer span.End()

	row := r.pool.QueryRow(ctx,
		`SELECT id, instrument, action, strategy_type, confidence, consensus_strength,
		        supporting_traders, reasoning, is_active, created_at
		 FROM signals WHERE id = $1`,
		id,
	)

	s, err := scanSignal(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func scanSignals(rows pgx.Rows) ([]domain.Signal, error) {
	var signals []domain.Signal
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		signals = append(signals, *s)
	}
	return signals, rows.Err()
}

func scanSignal(row pgx.Row) (*domain.Signal, error) {
	var (
		s          domain.Signal
		action     string
		strategy   string
		supporters []byte
	)
	if err := row.Scan(&s.ID, &s.Instrument, &action, &strategy, &s.Confidence,
		&s.ConsensusStrength, &supporters, &s.Reasoning, &s.IsActive, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Action = domain.SignalAction(action)
	s.StrategyType = domain.StrategyType(strategy)
	if err := json.Unmarshal(supporters, &s.SupportingTraders); err != nil {
		return nil, fmt.Errorf("unmarshal supporters for signal %d: %w", s.ID, err)
	}
	return &s, nil
}
