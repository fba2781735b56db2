package domain

import "time"

// RefundTransactionStatus описывает исход попытки возврата у шлюза.
type RefundTransactionStatus string

const (
	RefundTransactionStatusSuccess RefundTransactionStatus = "success"
	RefundTransactionStatusFailed  RefundTransactionStatus = "failed"
)

// RefundTransaction — append-only запись аудита возврата средств.
// Создаётся на каждую попытку возврата, дошедшую до шлюза; никогда не
// изменяется и не удаляется (комплаенс-след).
type RefundTransaction struct {
	ID               string
	OrderID          string
	PaymentReference string
	RefundReference  string
	AmountMinor      int64
	Reason           string
	Status           RefundTransactionStatus
	// RawGatewayResponse — сырой ответ шлюза для разбора инцидентов.
	RawGatewayResponse []byte
	CreatedAt          time.Time
}

// Validate проверяет обязательные поля записи возврата.
func (t *RefundTransaction) Validate() []error {
	var errs []error

	if t.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if t.PaymentReference == "" {
		errs = append(errs, ErrPaymentReferenceRequired)
	}
	if t.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	return errs
}

// RefundResult — ответ платёжного шлюза на запрос возврата.
type RefundResult struct {
	RefundReference string
	Status          string
	AmountMinor     int64
	// Raw — тело ответа шлюза как есть, сохраняется в RefundTransaction.
	Raw []byte
}
