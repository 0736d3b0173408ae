package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pestward/pestward/internal/shared"
)

// Repository provides PostgreSQL backed persistence for API keys.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type keyRecord struct {
	ID        int64
	CompanyID int64
	Label     string
	Prefix    string
	Hash      []byte
	IsActive  bool
}

// FindByPrefix resolves an active key record by its public prefix.
func (r *Repository) FindByPrefix(ctx context.Context, prefix string) (*keyRecord, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("auth repo not initialised")
	}
	const query = `SELECT id, company_id, label, prefix, key_hash, is_active
		FROM api_keys WHERE prefix = $1 AND revoked_at IS NULL`
	var rec keyRecord
	err := r.pool.QueryRow(ctx, query, prefix).Scan(&rec.ID, &rec.CompanyID, &rec.Label, &rec.Prefix, &rec.Hash, &rec.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Insert stores a freshly issued key.
func (r *Repository) Insert(ctx context.Context, companyID int64, label, prefix string, hash []byte) (int64, time.Time, error) {
	const query = `INSERT INTO api_keys (company_id, label, prefix, key_hash, is_active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW()) RETURNING id, created_at`
	var id int64
	var createdAt time.Time
	if err := r.pool.QueryRow(ctx, query, companyID, label, prefix, hash).Scan(&id, &createdAt); err != nil {
		return 0, time.Time{}, err
	}
	return id, createdAt, nil
}

// Revoke marks a key unusable and returns its prefix so cached principals
// can be dropped.
func (r *Repository) Revoke(ctx context.Context, companyID, keyID int64) (string, error) {
	const query = `UPDATE api_keys SET is_active = FALSE, revoked_at = NOW()
		WHERE id = $1 AND company_id = $2 AND revoked_at IS NULL
		RETURNING prefix`
	var prefix string
	if err := r.pool.QueryRow(ctx, query, keyID, companyID).Scan(&prefix); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", err
	}
	return prefix, nil
}

// CompanyExists reports whether the company row is present.
func (r *Repository) CompanyExists(ctx context.Context, companyID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM companies WHERE id = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, companyID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
