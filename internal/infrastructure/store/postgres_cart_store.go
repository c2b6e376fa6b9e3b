package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/example/ec-shopping-cart/internal/domain/cart"
)

//go:embed schema.sql
var schema string

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresCartStore implements cart.Store on PostgreSQL
type PostgresCartStore struct {
	db *sql.DB
	q  queryer
	tx *sql.Tx
}

func NewPostgresCartStore(db *sql.DB) *PostgresCartStore {
	return &PostgresCartStore{db: db, q: db}
}

// EnsureSchema applies the embedded DDL. Every statement is idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// lockClause keeps rows read inside a transaction from changing under the caller
func (s *PostgresCartStore) lockClause() string {
	if s.tx != nil {
		return " FOR UPDATE"
	}
	return ""
}

func (s *PostgresCartStore) FindActiveCart(ctx context.Context, userID string) (*cart.Cart, error) {
	var (
		c      cart.Cart
		status string
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, user_id, status, created_at, updated_at, deleted_at
		FROM carts
		WHERE user_id = $1 AND status = $2 AND deleted_at IS NULL`+s.lockClause(),
		userID, string(cart.StatusInProgress),
	).Scan(&c.ID, &c.UserID, &status, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select active cart: %w", err)
	}

	if c.Status, err = cart.ToStatus(status); err != nil {
		return nil, fmt.Errorf("cart %s: %w", c.ID, err)
	}
	return &c, nil
}

func (s *PostgresCartStore) CreateCart(ctx context.Context, userID string, now time.Time) (cart.Cart, error) {
	c := cart.Cart{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    cart.StatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO carts (id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) WHERE status = 'IN_PROGRESS' AND deleted_at IS NULL DO NOTHING`,
		c.ID, c.UserID, string(c.Status), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return cart.Cart{}, cart.ErrActiveCartExists
		}
		return cart.Cart{}, fmt.Errorf("insert cart: %w", err)
	}

	if err := expectRow(res, cart.ErrActiveCartExists); err != nil {
		return cart.Cart{}, err
	}
	return c, nil
}

func (s *PostgresCartStore) CancelCart(ctx context.Context, cartID uuid.UUID, now time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE carts SET status = $2, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL`,
		cartID, string(cart.StatusCanceled), now,
	)
	if err != nil {
		return fmt.Errorf("update cart status: %w", err)
	}
	return expectRow(res, ErrNotFound)
}

func (s *PostgresCartStore) FindLineItem(ctx context.Context, cartID uuid.UUID, productID string, unitPrice decimal.Decimal) (*cart.LineItem, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+lineItemColumns+`
		FROM cart_line_items
		WHERE cart_id = $1 AND product_id = $2 AND unit_price = $3 AND deleted_at IS NULL`+s.lockClause(),
		cartID, productID, unitPrice,
	)

	li, err := scanLineItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select line item: %w", err)
	}
	return &li, nil
}

func (s *PostgresCartStore) CreateLineItem(ctx context.Context, item cart.LineItem) (cart.LineItem, error) {
	item.ID = uuid.New()
	item.Version = 1
	item.DeletedAt = nil

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO cart_line_items (id, cart_id, user_id, product_id, unit_price, quantity, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (cart_id, product_id, unit_price) WHERE deleted_at IS NULL DO NOTHING`,
		item.ID, item.CartID, item.UserID, item.ProductID, item.UnitPrice, item.Quantity, item.Version, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return cart.LineItem{}, cart.ErrLineItemExists
		}
		return cart.LineItem{}, fmt.Errorf("insert line item: %w", err)
	}

	if err := expectRow(res, cart.ErrLineItemExists); err != nil {
		return cart.LineItem{}, err
	}
	return item, nil
}

func (s *PostgresCartStore) UpdateLineItemQuantity(ctx context.Context, lineItemID uuid.UUID, version, quantity int, now time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE cart_line_items SET quantity = $3, version = version + 1, updated_at = $4
		WHERE id = $1 AND version = $2 AND deleted_at IS NULL`,
		lineItemID, version, quantity, now,
	)
	if err != nil {
		return fmt.Errorf("update line item quantity: %w", err)
	}
	return expectRow(res, cart.ErrStaleLineItem)
}

func (s *PostgresCartStore) SoftDeleteLineItem(ctx context.Context, lineItemID uuid.UUID, version int, now time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE cart_line_items SET deleted_at = $3, version = version + 1, updated_at = $3
		WHERE id = $1 AND version = $2 AND deleted_at IS NULL`,
		lineItemID, version, now,
	)
	if err != nil {
		return fmt.Errorf("soft delete line item: %w", err)
	}
	return expectRow(res, cart.ErrStaleLineItem)
}

func (s *PostgresCartStore) ListLineItems(ctx context.Context, cartID uuid.UUID, userID string) ([]cart.LineItem, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+lineItemColumns+`
		FROM cart_line_items
		WHERE cart_id = $1 AND user_id = $2 AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC`,
		cartID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select line items: %w", err)
	}
	defer rows.Close()

	var items []cart.LineItem
	for rows.Next() {
		li, err := scanLineItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		items = append(items, li)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate line items: %w", err)
	}
	return items, nil
}

// WithinTx runs fn in a transaction, or inside the current one when already bound to it.
func (s *PostgresCartStore) WithinTx(ctx context.Context, fn func(tx cart.Store) error) (txErr error) {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db.BeginTx: %w", err)
	}

	defer func() {
		if txErr != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				txErr = errors.Join(txErr, fmt.Errorf("tx.Rollback: %w", rollbackErr))
			}
		}
	}()

	if err := fn(&PostgresCartStore{db: s.db, q: tx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tx.Commit: %w", err)
	}
	return nil
}

func (s *PostgresCartStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const lineItemColumns = `id, cart_id, user_id, product_id, unit_price, quantity, version, created_at, updated_at, deleted_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanLineItem(row scanner) (cart.LineItem, error) {
	var li cart.LineItem
	err := row.Scan(
		&li.ID, &li.CartID, &li.UserID, &li.ProductID, &li.UnitPrice,
		&li.Quantity, &li.Version, &li.CreatedAt, &li.UpdatedAt, &li.DeletedAt,
	)
	return li, err
}

func expectRow(res sql.Result, errNone error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return errNone
	}
	return nil
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(ctx context.Context, connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
