package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"jewel-store/internal/domain"
)

// PostgresCartStore keeps one JSONB snapshot per session key in cart_snapshots.
type PostgresCartStore struct {
	db *sql.DB
}

// NewPostgresCartStore creates a cart side-store backed by Postgres
func NewPostgresCartStore(db *sql.DB) *PostgresCartStore {
	return &PostgresCartStore{db: db}
}

func (s *PostgresCartStore) LoadCart(ctx context.Context, key string) (*domain.Cart, error) {
	query := `SELECT items FROM cart_snapshots WHERE session_key = $1`

	var items domain.LineItems
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&items); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to load cart snapshot: %w", err)
	}

	return &domain.Cart{Items: []domain.LineItem(items)}, nil
}

func (s *PostgresCartStore) SaveCart(ctx context.Context, key string, cart *domain.Cart) error {
	query := `
		INSERT INTO cart_snapshots (session_key, items, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (session_key) DO UPDATE
		SET items = EXCLUDED.items, updated_at = EXCLUDED.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, key, domain.LineItems(cart.Items)); err != nil {
		return fmt.Errorf("failed to save cart snapshot: %w", err)
	}
	return nil
}
