package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

const createSSHUsersTable = `
CREATE TABLE IF NOT EXISTS ssh_users (
    id          BIGSERIAL   PRIMARY KEY,
    username    TEXT        NOT NULL UNIQUE,
    fingerprint TEXT        NOT NULL UNIQUE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_login  TIMESTAMPTZ
);
`

// SSHUser is an authorized public key for the SSH dashboard.
type SSHUser struct {
	ID          int64
	Username    string
	Fingerprint string
	CreatedAt   time.Time
	LastLogin   *time.Time
}

type SSHUserRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewSSHUserRepository(pool PgxPool, tracer trace.Tracer) *SSHUserRepository {
	return &SSHUserRepository{pool: pool, tracer: tracer}
}

func (r *SSHUserRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "ssh-user-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createSSHUsersTable)
	return err
}

// FindByFingerprint returns the user owning the key; nil when unknown.
func (r *SSHUserRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*SSHUser, error) {
	_, span := r.tracer.Start(ctx, "ssh-user-repo.find-by-fingerprint")
	defer span.End()

	var u SSHUser
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, fingerprint, created_at, last_login
		 FROM ssh_users WHERE fingerprint = $1`,
		fingerprint,
	).Scan(&u.ID, &u.Username, &u.Fingerprint, &u.CreatedAt, &u.LastLogin)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *SSHUserRepository) UpdateLastLogin(ctx context.Context, userID int64) error {
	_, span := r.tracer.Start(ctx, "ssh-user-repo.update-last-login")
	defer span.End()

	_, err := r.pool.Exec(ctx, `UPDATE ssh_users SET last_login = now() WHERE id = $1`, userID)
	return err
}
