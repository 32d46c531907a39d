package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppcadvisor/bullaware-monitor/internal/domain"
)

const createProfilesTables = `
CREATE TABLE IF NOT EXISTS user_profiles (
    user_id            BIGINT           PRIMARY KEY,
    total_capital      DOUBLE PRECISION NOT NULL,
    available_capital  DOUBLE PRECISION NOT NULL,
    invested_capital   DOUBLE PRECISION NOT NULL DEFAULT 0,
    currency           TEXT             NOT NULL DEFAULT 'USD',
    risk_tolerance     TEXT             NOT NULL DEFAULT 'moderate',
    max_risk_per_trade DOUBLE PRECISION NOT NULL DEFAULT 0,
    max_portfolio_risk DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at         TIMESTAMPTZ      NOT NULL,
    updated_at         TIMESTAMPTZ      NOT NULL
);

CREATE TABLE IF NOT EXISTS user_positions (
    id            BIGSERIAL        PRIMARY KEY,
    user_id       BIGINT           NOT NULL REFERENCES user_profiles (user_id),
    symbol        TEXT             NOT NULL,
    shares        INTEGER          NOT NULL,
    entry_price   DOUBLE PRECISION NOT NULL,
    current_price DOUBLE PRECISION NOT NULL DEFAULT 0,
    status        TEXT             NOT NULL DEFAULT 'open',
    opened_at     TIMESTAMPTZ      NOT NULL,
    updated_at    TIMESTAMPTZ      NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_user_positions_user_status
    ON user_positions (user_id, status);
`

// defaultStartingCapital seeds new profiles so recommendations work before
// the user configures anything.
const defaultStartingCapital = 10000

type ProfileRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewProfileRepository(pool PgxPool, tracer trace.Tracer) *ProfileRepository {
	return &ProfileRepository{pool: pool, tracer: tracer}
}

func (r *ProfileRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "profile-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createProfilesTables)
	return err
}

// GetOrCreate loads a profile, creating a default moderate one on first use.
func (r *ProfileRepository) GetOrCreate(ctx context.Context, userID int64) (domain.UserProfile, error) {
	_, span := r.tracer.Start(ctx, "profile-repo.get-or-create")
	defer span.End()

	p, err := r.get(ctx, userID)
	if err == nil {
		return p, nil
	}
	if err != pgx.ErrNoRows {
		return domain.UserProfile{}, err
	}

	now := time.Now().UTC()
	p = domain.UserProfile{
		UserID:           userID,
		TotalCapital:     defaultStartingCapital,
		AvailableCapital: defaultStartingCapital,
		Currency:         "USD",
		RiskTolerance:    domain.RiskModerate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO user_profiles (user_id, total_capital, available_capital, invested_capital,
		                            currency, risk_tolerance, max_risk_per_trade, max_portfolio_risk,
		                            created_at, updated_at)
		 VALUES ($1, $2, $3, 0, $4, $5, 0, 0, $6, $6)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, p.TotalCapital, p.AvailableCapital, p.Currency, string(p.RiskTolerance), now,
	)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return r.get(ctx, userID)
}

// Save writes profile settings and capital fields.
func (r *ProfileRepository) Save(ctx context.Context, p domain.UserProfile) error {
	_, span := r.tracer.Start(ctx, "profile-repo.save")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_profiles (user_id, total_capital, available_capital, invested_capital,
		                            currency, risk_tolerance, max_risk_per_trade, max_portfolio_risk,
		                            created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		 ON CONFLICT (user_id) DO UPDATE SET
		     total_capital = EXCLUDED.total_capital,
		     available_capital = EXCLUDED.available_capital,
		     invested_capital = EXCLUDED.invested_capital,
		     currency = EXCLUDED.currency,
		     risk_tolerance = EXCLUDED.risk_tolerance,
		     max_risk_per_trade = EXCLUDED.max_risk_per_trade,
		     max_portfolio_risk = EXCLUDED.max_portfolio_risk,
		     updated_at = NOW()`,
		p.UserID, p.TotalCapital, p.AvailableCapital, p.InvestedCapital,
		p.Currency, string(p.RiskTolerance), p.MaxRiskPerTrade, p.MaxPortfolioRisk,
	)
	return err
}

// OpenPosition records a fill and moves the invested amount out of available
// capital.
func (r *ProfileRepository) OpenPosition(ctx context.Context, userID int64, symbol string, shares int, entryPrice float64) error {
	_, span := r.tracer.Start(ctx, "profile-repo.open-position")
	defer span.End()

	amount := float64(shares) * entryPrice

	batch := &pgx.Batch{}
	batch.Queue(
		`INSERT INTO user_positions (user_id, symbol, shares, entry_price, current_price, status, opened_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4, 'open', NOW(), NOW())`,
		userID, symbol, shares, entryPrice,
	)
	batch.Queue(
		`UPDATE user_profiles SET
		     available_capital = available_capital - $2,
		     invested_capital = invested_capital + $2,
		     updated_at = NOW()
		 WHERE user_id = $1 AND available_capital >= $2`,
		userID, amount,
	)

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	if _, err := br.Exec(); err != nil {
		return err
	}
	tag, err := br.Exec()
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insufficient capital for user %d", userID)
	}
	return nil
}

// ClosePosition marks a position closed and returns proceeds to available
// capital.
func (r *ProfileRepository) ClosePosition(ctx context.Context, userID, positionID int64, exitPrice float64) error {
	_, span := r.tracer.Start(ctx, "profile-repo.close-position")
	defer span.End()

	var (
		shares     int
		entryPrice float64
	)
	err := r.pool.QueryRow(ctx,
		`UPDATE user_positions SET status = 'closed', current_price = $3, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND status = 'open'
		 RETURNING shares, entry_price`,
		positionID, userID, exitPrice,
	).Scan(&shares, &entryPrice)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("no open position %d for user %d", positionID, userID)
	}
	if err != nil {
		return err
	}

	proceeds := float64(shares) * exitPrice
	invested := float64(shares) * entryPrice
	_, err = r.pool.Exec(ctx,
		`UPDATE user_profiles SET
		     available_capital = available_capital + $2,
		     invested_capital = GREATEST(invested_capital - $3, 0),
		     total_capital = total_capital + ($2 - $3),
		     updated_at = NOW()
		 WHERE user_id = $1`,
		userID, proceeds, invested,
	)
	return err
}

// GetOpenPositions lists the user's open holdings.
func (r *ProfileRepository) GetOpenPositions(ctx context.Context, userID int64) ([]domain.UserPosition, error) {
	_, span := r.tracer.Start(ctx, "profile-repo.get-open-positions")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, symbol, shares, entry_price, current_price, status, opened_at, updated_at
		 FROM user_positions
		 WHERE user_id = $1 AND status = 'open'
		 ORDER BY opened_at`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []domain.UserPosition
	for rows.Next() {
		var p domain.UserPosition
		if err := rows.Scan(&p.ID, &p.UserID, &p.Symbol, &p.Shares, &p.EntryPrice,
			&p.CurrentPrice, &p.Status, &p.OpenedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (r *ProfileRepository) get(ctx context.Context, userID int64) (domain.UserProfile, error) {
	var (
		p    domain.UserProfile
		tier string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, total_capital, available_capital, invested_capital, currency,
		        risk_tolerance, max_risk_per_trade, max_portfolio_risk, created_at, updated_at
		 FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.TotalCapital, &p.AvailableCapital, &p.InvestedCapital, &p.Currency,
		&tier, &p.MaxRiskPerTrade, &p.MaxPortfolioRisk, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.UserProfile{}, err
	}
	p.RiskTolerance = domain.RiskTolerance(tier)
	return p, nil
}
