package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

type refundRepository struct {
	db *sql.DB
}

// NewRefundRepository создаёт PostgreSQL-реализацию RefundRepository.
func NewRefundRepository(store *Store) domain.RefundRepository {
	return &refundRepository{db: store.DB()}
}

// Append записывает попытку возврата. Частичный уникальный индекс по
// payment_reference для статуса success гарантирует не более одного
// успешного возврата на платёжный референс.
func (r *refundRepository) Append(tx domain.RefundTransaction) (domain.RefundTransaction, error) {
	if errs := tx.Validate(); len(errs) > 0 {
		return domain.RefundTransaction{}, errors.Join(errs...)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refund_transactions (
			id, order_id, payment_reference, refund_reference,
			amount_minor, reason, status, raw_gateway_response, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		tx.ID, tx.OrderID, tx.PaymentReference, tx.RefundReference,
		tx.AmountMinor, tx.Reason, string(tx.Status), tx.RawGatewayResponse, tx.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.RefundTransaction{}, domain.ErrRefundFailed
		}
		return domain.RefundTransaction{}, fmt.Errorf("append refund transaction: %w", err)
	}

	return tx, nil
}

func (r *refundRepository) ListByOrder(orderID string) ([]domain.RefundTransaction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, payment_reference, refund_reference,
		       amount_minor, reason, status, raw_gateway_response, created_at
		FROM refund_transactions
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list refund transactions: %w", err)
	}
	defer rows.Close()

	result := make([]domain.RefundTransaction, 0)
	for rows.Next() {
		var (
			tx     domain.RefundTransaction
			status string
		)
		if err := rows.Scan(
			&tx.ID, &tx.OrderID, &tx.PaymentReference, &tx.RefundReference,
			&tx.AmountMinor, &tx.Reason, &status, &tx.RawGatewayResponse, &tx.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan refund transaction: %w", err)
		}
		tx.Status = domain.RefundTransactionStatus(status)
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refund transactions: %w", err)
	}

	return result, nil
}

func (r *refundRepository) HasSuccessful(paymentReference string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var id string
	err := r.db.QueryRowContext(ctx, `
		SELECT id
		FROM refund_transactions
		WHERE payment_reference = $1
		  AND status = $2
		LIMIT 1
	`, paymentReference, string(domain.RefundTransactionStatusSuccess)).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check successful refund: %w", err)
}

var _ domain.RefundRepository = (*refundRepository)(nil)
