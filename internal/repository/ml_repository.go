package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

const createMLTables = `
CREATE TABLE IF NOT EXISTS signal_outcomes (
    id              BIGSERIAL        PRIMARY KEY,
    signal_id       BIGINT           NOT NULL REFERENCES signals (id) ON DELETE CASCADE,
    feature_version INT              NOT NULL,
    features        JSONB            NOT NULL,
    profitable      BOOLEAN          NOT NULL,
    return_pct      DOUBLE PRECISION NOT NULL,
    resolved_at     TIMESTAMPTZ      NOT NULL DEFAULT now(),
    UNIQUE (signal_id)
);

CREATE TABLE IF NOT EXISTS ml_models (
    id              BIGSERIAL   PRIMARY KEY,
    model_key       TEXT        NOT NULL,
    version         INT         NOT NULL,
    feature_version INT         NOT NULL,
    sample_count    INT         NOT NULL,
    artifact        BYTEA       NOT NULL,
    trained_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (model_key, version)
);
`

// SignalOutcome is a resolved signal with its training label.
type SignalOutcome struct {
	SignalID       int64
	FeatureVersion int
	Features       []float64
	Profitable     bool
	ReturnPct      float64
	ResolvedAt     time.Time
}

// ModelArtifact is one trained model version.
type ModelArtifact struct {
	ModelKey       string
	Version        int
	FeatureVersion int
	SampleCount    int
	Artifact       []byte
	TrainedAt      time.Time
}

type MLRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewMLRepository(pool PgxPool, tracer trace.Tracer) *MLRepository {
	return &MLRepository{pool: pool, tracer: tracer}
}

func (r *MLRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "ml-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createMLTables)
	return err
}

// RecordOutcome stores the resolved label for a signal, once.
func (r *MLRepository) RecordOutcome(ctx context.Context, o SignalOutcome) error {
	_, span := r.tracer.Start(ctx, "ml-repo.record-outcome")
	defer span.End()

	features, err := json.Marshal(o.Features)
	if err != nil {
		return fmt.Errorf("marshal features for signal %d: %w", o.SignalID, err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO signal_outcomes (signal_id, feature_version, features, profitable, return_pct)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (signal_id) DO NOTHING`,
		o.SignalID, o.FeatureVersion, features, o.Profitable, o.ReturnPct,
	)
	return err
}

// TrainingSet loads all outcomes recorded under one feature layout.
func (r *MLRepository) TrainingSet(ctx context.Context, featureVersion int) ([]SignalOutcome, error) {
	_, span := r.tracer.Start(ctx, "ml-repo.training-set")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT signal_id, feature_version, features, profitable, return_pct, resolved_at
		 FROM signal_outcomes
		 WHERE feature_version = $1
		 ORDER BY resolved_at`,
		featureVersion,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []SignalOutcome
	for rows.Next() {
		var (
			o        SignalOutcome
			features []byte
		)
		if err := rows.Scan(&o.SignalID, &o.FeatureVersion, &features, &o.Profitable, &o.ReturnPct, &o.ResolvedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(features, &o.Features); err != nil {
			return nil, fmt.Errorf("unmarshal features for signal %d: %w", o.SignalID, err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// SaveModel stores the artifact under the next version for its key.
func (r *MLRepository) SaveModel(ctx context.Context, m ModelArtifact) (int, error) {
	_, span := r.tracer.Start(ctx, "ml-repo.save-model")
	defer span.End()

	var version int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM ml_models WHERE model_key = $1`,
		m.ModelKey,
	).Scan(&version)
	if err != nil {
		return 0, err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO ml_models (model_key, version, feature_version, sample_count, artifact)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ModelKey, version, m.FeatureVersion, m.SampleCount, m.Artifact,
	)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// LatestModel loads the newest artifact for a key; nil when none trained yet.
func (r *MLRepository) LatestModel(ctx context.Context, modelKey string) (*ModelArtifact, error) {
	_, span := r.tracer.Start(ctx, "ml-repo.latest-model")
	defer span.End()

	var m ModelArtifact
	err := r.pool.QueryRow(ctx,
		`SELECT model_key, version, feature_version, sample_count, artifact, trained_at
		 FROM ml_models
		 WHERE model_key = $1
		 ORDER BY version DESC
		 LIMIT 1`,
		modelKey,
	).Scan(&m.ModelKey, &m.Version, &m.FeatureVersion, &m.SampleCount, &m.Artifact, &m.TrainedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
