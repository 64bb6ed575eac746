package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/shopassist/internal/core/domain"
)

var ErrDuplicateOrder = errors.New("duplicate order id")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// Schema creates the order log tables.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id             VARCHAR(64) PRIMARY KEY,
		user_id        VARCHAR(64) NOT NULL,
		subtotal       DECIMAL(12,2) NOT NULL,
		discount       DECIMAL(12,2) NOT NULL,
		total          DECIMAL(12,2) NOT NULL,
		fulfillment    VARCHAR(16) NOT NULL,
		payment_status VARCHAR(16) NOT NULL,
		transaction_id VARCHAR(64) NOT NULL DEFAULT '',
		created_at     DATETIME(6) NOT NULL,
		INDEX idx_orders_user (user_id, created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id   VARCHAR(64) NOT NULL,
		line_no    INT NOT NULL,
		product_id VARCHAR(64) NOT NULL,
		size       VARCHAR(8) NOT NULL,
		quantity   INT NOT NULL,
		price      DECIMAL(12,2) NOT NULL,
		PRIMARY KEY (order_id, line_no)
	)`,
}

// MySQLAdapter is the order log.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, subtotal, discount, total, fulfillment, payment_status, transaction_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.Subtotal, order.Discount, order.Total,
		string(order.Fulfillment), string(order.PaymentStatus), order.TransactionID, order.CreatedAt,
	)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, line_no, product_id, size, quantity, price)
			VALUES (?, ?, ?, ?, ?, ?)`,
			order.ID, i, item.ProductID, string(item.Size), item.Quantity, item.Price,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, user_id, subtotal, discount, total, fulfillment, payment_status, transaction_id, created_at
		FROM orders WHERE user_id = ? ORDER BY created_at, id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		var fulfillment, status string
		if err := rows.Scan(&o.ID, &o.UserID, &o.Subtotal, &o.Discount, &o.Total,
			&fulfillment, &status, &o.TransactionID, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Fulfillment = domain.Fulfillment(fulfillment)
		o.PaymentStatus = domain.PaymentStatus(status)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	for i := range orders {
		items, err := m.orderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (m *MySQLAdapter) orderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, size, quantity, price
		FROM order_items WHERE order_id = ? ORDER BY line_no`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		var size string
		if err := rows.Scan(&item.ProductID, &size, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.Size = domain.Size(size)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}
