package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"cookout-auth/internal/domain/oauth"
	"cookout-auth/internal/domain/support"
)

const schema = `
CREATE TABLE IF NOT EXISTS local_users (
	uid            TEXT PRIMARY KEY,
	provider       TEXT NOT NULL DEFAULT '',
	email          TEXT NOT NULL DEFAULT '',
	email_verified BOOLEAN NOT NULL DEFAULT FALSE,
	display_name   TEXT NOT NULL DEFAULT '',
	photo_url      TEXT NOT NULL DEFAULT '',
	disabled       BOOLEAN NOT NULL DEFAULT FALSE,
	custom_claims  JSONB,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS local_users_email_idx ON local_users (lower(email)) WHERE email <> '';
`

const uniqueViolation = "23505"

// Postgres keeps local users in a self-hosted database instead of the
// identity platform.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Open connects to dsn and makes sure the table exists.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("directory: connect: %w", err)
	}
	p := NewPostgres(pool)
	if err := p.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("directory: ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) Close() { p.pool.Close() }

const selectUser = `SELECT uid, provider, email, email_verified, display_name, photo_url, disabled FROM local_users`

func scanUser(row pgx.Row) (oauth.LocalUser, error) {
	var u oauth.LocalUser
	err := row.Scan(&u.UID, &u.Provider, &u.Email, &u.EmailVerified, &u.DisplayName, &u.PhotoURL, &u.Disabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return oauth.LocalUser{}, oauth.ErrUserNotFound
	}
	if err != nil {
		return oauth.LocalUser{}, fmt.Errorf("directory: scan user: %w", err)
	}
	return u, nil
}

func (p *Postgres) GetUser(ctx context.Context, uid string) (oauth.LocalUser, error) {
	return scanUser(p.pool.QueryRow(ctx, selectUser+` WHERE uid = $1`, uid))
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (oauth.LocalUser, error) {
	return scanUser(p.pool.QueryRow(ctx, selectUser+` WHERE email <> '' AND lower(email) = lower($1) LIMIT 1`, email))
}

func (p *Postgres) CreateUser(ctx context.Context, u oauth.LocalUser) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO local_users (uid, provider, email, email_verified, display_name, photo_url, disabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.UID, u.Provider, u.Email, u.EmailVerified, u.DisplayName, u.PhotoURL, u.Disabled)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return oauth.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("directory: insert user: %w", err)
	}
	return nil
}

func (p *Postgres) UpdateUser(ctx context.Context, uid string, upd support.Update) error {
	var claims []byte
	if upd.Claims != nil {
		b, err := json.Marshal(upd.Claims)
		if err != nil {
			return fmt.Errorf("directory: encode claims: %w", err)
		}
		claims = b
	}
	tag, err := p.pool.Exec(ctx, `
		UPDATE local_users
		   SET disabled = COALESCE($2, disabled),
		       custom_claims = COALESCE($3::jsonb, custom_claims)
		 WHERE uid = $1`, uid, upd.Disabled, claims)
	if err != nil {
		return fmt.Errorf("directory: update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return oauth.ErrUserNotFound
	}
	return nil
}
