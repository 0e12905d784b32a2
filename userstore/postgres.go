package userstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const userColumns = `id, username, email, name, password_hash, is_staff,
	COALESCE(referral_code, '') AS referral_code, referred_by, coins, created_at`

// Postgres is a Store over a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (username, email, name, password_hash, is_staff, referral_code, coins)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
		RETURNING id, created_at`

	err := p.pool.QueryRow(ctx, query,
		u.Username, u.Email, u.Name, u.PasswordHash, u.IsStaff, u.ReferralCode, u.Coins,
	).Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (p *Postgres) ByUsername(ctx context.Context, username string) (*User, error) {
	return p.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (p *Postgres) ByEmail(ctx context.Context, email string) (*User, error) {
	return p.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (p *Postgres) ByID(ctx context.Context, id int64) (*User, error) {
	return p.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (p *Postgres) getUser(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	if err := pgxscan.Get(ctx, p.pool, &u, query, arg); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (p *Postgres) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) AddCoins(ctx context.Context, id int64, delta int64) error {
	tag, err := p.pool.Exec(ctx, `UPDATE users SET coins = coins + $2 WHERE id = $1`, id, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Coins(ctx context.Context, id int64) (int64, error) {
	var coins int64
	err := p.pool.QueryRow(ctx, `SELECT coins FROM users WHERE id = $1`, id).Scan(&coins)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return coins, err
}

func (p *Postgres) List(ctx context.Context) ([]User, error) {
	var users []User
	if err := pgxscan.Select(ctx, p.pool, &users, `SELECT `+userColumns+` FROM users ORDER BY id`); err != nil {
		return nil, err
	}
	return users, nil
}

func (p *Postgres) CreateReferral(ctx context.Context, ownerID int64, code string) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO referrals (code, owner_id) VALUES ($1, $2)`, code, ownerID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrNotFound
	}
	return err
}

func (p *Postgres) RedeemReferral(ctx context.Context, code string, newUserID int64, reward Reward) (int64, error) {
	var ownerID int64

	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE referrals SET used_by = $2, used_at = now()
			WHERE code = $1 AND used_by IS NULL AND owner_id <> $2
			RETURNING owner_id`, code, newUserID).Scan(&ownerID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrReferralUnavailable
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE users SET coins = coins + $2 WHERE id = $1`, ownerID, reward.Referrer); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `UPDATE users SET coins = coins + $2, referred_by = $3 WHERE id = $1`,
			newUserID, reward.NewUser, ownerID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return ownerID, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
