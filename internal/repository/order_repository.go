package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"jewel-store/internal/domain"
)

var (
	ErrOrderAlreadyExists = errors.New("order for this checkout session already exists")
)

const orderColumns = `id, checkout_session_id, session_key, customer_email, items, total, currency,
		payment_status, created_at, updated_at`

// OrderRepository records checkout sessions and their payment outcome.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByCheckoutSessionID(ctx context.Context, sessionID string) (*domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, sessionID string, status domain.PaymentStatus, customerEmail string) error
	ListBySessionKey(ctx context.Context, sessionKey string) ([]*domain.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		order.ID,
		order.CheckoutSessionID,
		order.SessionKey,
		order.CustomerEmail,
		order.Items,
		int64(order.Total),
		order.Currency,
		string(order.PaymentStatus),
		order.CreatedAt,
		order.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrOrderAlreadyExists
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

func (r *orderRepository) FindByCheckoutSessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE checkout_session_id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return order, nil
}

// UpdatePaymentStatus sets the status and, when known, the email the shopper paid with.
func (r *orderRepository) UpdatePaymentStatus(ctx context.Context, sessionID string, status domain.PaymentStatus, customerEmail string) error {
	query := `
		UPDATE orders
		SET payment_status = $2,
		    customer_email = COALESCE(NULLIF($3, ''), customer_email)
		WHERE checkout_session_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, sessionID, string(status), customerEmail)
	if err != nil {
		return fmt.Errorf("failed to update order payment status: %w", err)
	}

	return expectOneRow(result, domain.ErrOrderNotFound)
}

func (r *orderRepository) ListBySessionKey(ctx context.Context, sessionKey string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE session_key = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{}
	var total int64
	var status string

	err := row.Scan(
		&order.ID,
		&order.CheckoutSessionID,
		&order.SessionKey,
		&order.CustomerEmail,
		&order.Items,
		&total,
		&order.Currency,
		&status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	order.Total = domain.Money(total)
	order.PaymentStatus = domain.PaymentStatus(status)
	return order, nil
}
