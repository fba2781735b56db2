package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

const orderColumns = `
	id, buyer_id, seller_id, currency, total_minor, payment_reference, status,
	committed_at, declined_at, cancelled_at, refunded_at, decline_reason,
	tracking_number, delivery_status, delivery_data,
	refund_status, refund_reference, version, created_at, updated_at
`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	deliveryData, err := json.Marshal(order.DeliveryData)
	if err != nil {
		return fmt.Errorf("marshal delivery data: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, buyer_id, seller_id, currency, total_minor, payment_reference, status,
			committed_at, declined_at, cancelled_at, refunded_at, decline_reason,
			tracking_number, delivery_status, delivery_data,
			refund_status, refund_reference, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`,
		order.ID, order.BuyerID, order.SellerID, order.Currency, order.TotalMinor,
		order.PaymentReference, string(order.Status),
		order.CommittedAt, order.DeclinedAt, order.CancelledAt, order.RefundedAt,
		order.DeclineReason, order.TrackingNumber, order.DeliveryStatus, deliveryData,
		string(order.RefundStatus), order.RefundReference,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrStatusConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, reference_id, title, unit_price_minor)
			VALUES ($1,$2,$3,$4)
		`, order.ID, item.ReferenceID, item.Title, item.UnitPriceMinor); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}

	return nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) ListBySeller(sellerID string, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE seller_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)

	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", sellerID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, sellerID)
	}
	if err != nil {
		return nil, fmt.Errorf("list seller orders: %w", err)
	}
	defer rows.Close()

	return r.collectOrders(ctx, rows)
}

func (r *orderRepository) ListStale(status domain.OrderStatus, before time.Time, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status = $1
		  AND updated_at < $2
		ORDER BY updated_at ASC, id ASC
		LIMIT $3
	`, string(status), before, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale orders: %w", err)
	}
	defer rows.Close()

	return r.collectOrders(ctx, rows)
}

func (r *orderRepository) ListDeclinedWithoutRefund(before time.Time, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status = $1
		  AND refund_status <> $2
		  AND updated_at < $3
		ORDER BY updated_at ASC, id ASC
		LIMIT $4
	`, string(domain.OrderStatusDeclined), string(domain.RefundStatusSuccess), before, limit)
	if err != nil {
		return nil, fmt.Errorf("list declined without refund: %w", err)
	}
	defer rows.Close()

	return r.collectOrders(ctx, rows)
}

// Transition выполняет условную запись: UPDATE проходит, только если сохранённый
// статус входит в expected и версия не изменилась. Нулевая затронутая строка
// означает проигранную гонку (или отсутствие заказа).
func (r *orderRepository) Transition(order domain.Order, expected ...domain.OrderStatus) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	deliveryData, err := json.Marshal(order.DeliveryData)
	if err != nil {
		return fmt.Errorf("marshal delivery data: %w", err)
	}

	expectedRaw := make([]string, 0, len(expected))
	for _, s := range expected {
		expectedRaw = append(expectedRaw, string(s))
	}

	query := `
		UPDATE orders
		SET status = $1,
		    committed_at = $2,
		    declined_at = $3,
		    cancelled_at = $4,
		    refunded_at = $5,
		    decline_reason = $6,
		    tracking_number = $7,
		    delivery_status = $8,
		    delivery_data = $9,
		    refund_status = $10,
		    refund_reference = $11,
		    version = version + 1,
		    updated_at = $12
		WHERE id = $13
		  AND version = $14
	`
	args := []any{
		string(order.Status),
		order.CommittedAt, order.DeclinedAt, order.CancelledAt, order.RefundedAt,
		order.DeclineReason, order.TrackingNumber, order.DeliveryStatus, deliveryData,
		string(order.RefundStatus), order.RefundReference,
		order.UpdatedAt,
		order.ID,
		order.Version,
	}
	if len(expectedRaw) > 0 {
		query += " AND status = ANY($15)"
		args = append(args, expectedRaw)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrStatusConflict
	}

	return nil
}

func (r *orderRepository) collectOrders(ctx context.Context, rows *sql.Rows) ([]domain.Order, error) {
	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT reference_id, title, unit_price_minor
		FROM order_items
		WHERE order_id = $1
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ReferenceID, &item.Title, &item.UnitPriceMinor); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func (r *orderRepository) orderExists(ctx context.Context, orderID string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order        domain.Order
		status       string
		refundStatus string
		committedAt  sql.NullTime
		declinedAt   sql.NullTime
		cancelledAt  sql.NullTime
		refundedAt   sql.NullTime
		deliveryData []byte
	)

	if err := row.Scan(
		&order.ID, &order.BuyerID, &order.SellerID, &order.Currency, &order.TotalMinor,
		&order.PaymentReference, &status,
		&committedAt, &declinedAt, &cancelledAt, &refundedAt, &order.DeclineReason,
		&order.TrackingNumber, &order.DeliveryStatus, &deliveryData,
		&refundStatus, &order.RefundReference,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}

	order.Status = domain.OrderStatus(status)
	order.RefundStatus = domain.RefundStatus(refundStatus)
	order.CommittedAt = nullTimePtr(committedAt)
	order.DeclinedAt = nullTimePtr(declinedAt)
	order.CancelledAt = nullTimePtr(cancelledAt)
	order.RefundedAt = nullTimePtr(refundedAt)

	if len(deliveryData) > 0 {
		if err := json.Unmarshal(deliveryData, &order.DeliveryData); err != nil {
			return domain.Order{}, fmt.Errorf("unmarshal delivery data: %w", err)
		}
	}

	return order, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	value := t.Time.UTC()
	return &value
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
