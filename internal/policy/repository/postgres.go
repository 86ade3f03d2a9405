package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"eduplatform/backend/internal/policy/domain"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a policy repository backed by pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetByID returns the policy for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Policy, error) {
	var p domain.Policy
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, rules, enabled, created_at FROM authz_policies WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Rules, &p.Enabled, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying policy: %w", err)
	}
	return &p, nil
}

// ListEnabled returns enabled policies ordered by name.
func (r *PostgresRepository) ListEnabled(ctx context.Context) ([]*domain.Policy, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, rules, enabled, created_at FROM authz_policies
		WHERE enabled ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying policies: %w", err)
	}
	defer rows.Close()
	var out []*domain.Policy
	for rows.Next() {
		var p domain.Policy
		if err := rows.Scan(&p.ID, &p.Name, &p.Rules, &p.Enabled, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning policy: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Create persists the policy. The policy must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Policy) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO authz_policies (id, name, rules, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5)`, p.ID, p.Name, p.Rules, p.Enabled, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting policy: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	if _, err := r.pool.Exec(ctx, `UPDATE authz_policies SET enabled = $2 WHERE id = $1`, id, enabled); err != nil {
		return fmt.Errorf("updating policy: %w", err)
	}
	return nil
}
