package domain

import "time"

// OrderStatus описывает жизненный цикл заказа на маркетплейсе.
type OrderStatus string

const (
	// OrderStatusPendingPayment — заказ создан, оплата ещё не подтверждена.
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	// OrderStatusPaymentVerified — платёжный референс проверен у шлюза.
	OrderStatusPaymentVerified OrderStatus = "payment_verified"
	// OrderStatusAuthorized — средства захолдированы платёжным шлюзом.
	OrderStatusAuthorized OrderStatus = "authorized"
	// OrderStatusPaid — оплата списана в пользу площадки.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusPendingCommit — ожидает подтверждения продавца.
	OrderStatusPendingCommit OrderStatus = "pending_commit"
	// OrderStatusCommitted — продавец подтвердил сделку, отправление забронировано.
	OrderStatusCommitted OrderStatus = "committed"
	// OrderStatusDeclined — продавец (или система по таймауту) отказался от сделки.
	OrderStatusDeclined OrderStatus = "declined"
	// OrderStatusExpired — окно подтверждения истекло, заказ готов к авто-отказу.
	OrderStatusExpired OrderStatus = "expired"
	// OrderStatusCollected — покупатель получил отправление.
	OrderStatusCollected OrderStatus = "collected"
	// OrderStatusCancelled — подтверждённый заказ отменён до получения.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded — средства полностью возвращены покупателю.
	OrderStatusRefunded OrderStatus = "refunded"
)

// RefundStatus описывает состояние возврата средств по заказу.
type RefundStatus string

const (
	RefundStatusNone    RefundStatus = ""
	RefundStatusPending RefundStatus = "pending"
	RefundStatusSuccess RefundStatus = "success"
	RefundStatusFailed  RefundStatus = "failed"
)

// orderTransitions задаёт допустимые переходы статусов (DAG).
// Любая запись в хранилище называет ожидаемый текущий статус,
// поэтому недостижимый переход невозможен даже при гонке обработчиков.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingPayment:  {OrderStatusPaymentVerified, OrderStatusAuthorized, OrderStatusPaid},
	OrderStatusPaymentVerified: {OrderStatusPendingCommit, OrderStatusCommitted},
	OrderStatusAuthorized:      {OrderStatusPendingCommit, OrderStatusCommitted},
	OrderStatusPaid:            {OrderStatusPendingCommit, OrderStatusCommitted},
	OrderStatusPendingCommit:   {OrderStatusCommitted, OrderStatusDeclined, OrderStatusExpired},
	OrderStatusExpired:         {OrderStatusDeclined},
	OrderStatusCommitted:       {OrderStatusCollected, OrderStatusCancelled},
	OrderStatusCancelled:       {OrderStatusRefunded},
}

// preCommitStatuses — статусы, из которых продавец может подтвердить сделку.
var preCommitStatuses = []OrderStatus{
	OrderStatusPaid,
	OrderStatusPendingCommit,
	OrderStatusPaymentVerified,
	OrderStatusAuthorized,
}

// CanTransitionTo сообщает, допустим ли переход из текущего статуса в next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal сообщает, является ли статус конечным для заказа.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCollected, OrderStatusDeclined, OrderStatusCancelled, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// PreCommitStatuses возвращает копию набора статусов, из которых разрешён commit.
func PreCommitStatuses() []OrderStatus {
	result := make([]OrderStatus, len(preCommitStatuses))
	copy(result, preCommitStatuses)
	return result
}

// IsPreCommit сообщает, находится ли заказ в ожидании решения продавца.
func (s OrderStatus) IsPreCommit() bool {
	for _, status := range preCommitStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// ReferenceID — идентификатор объявления, из которого куплена позиция.
	ReferenceID string
	// Title — название позиции на момент покупки.
	Title string
	// UnitPriceMinor — цена за единицу в минимальных денежных единицах (центы).
	UnitPriceMinor int64
}

// DeliveryData хранит метаданные забронированного отправления.
// Заполняется ровно один раз успешным commit и далее не перезаписывается.
type DeliveryData struct {
	ProviderID  string    `json:"provider_id"`
	ServiceCode string    `json:"service_code"`
	ServiceName string    `json:"service_name"`
	QuoteMinor  int64     `json:"quote_minor"`
	BookingID   string    `json:"booking_id"`
	WaybillURL  string    `json:"waybill_url"`
	BookedAt    time.Time `json:"booked_at"`
}

// Empty сообщает, что отправление ещё не бронировалось.
func (d DeliveryData) Empty() bool {
	return d.ProviderID == "" && d.BookingID == ""
}

// Order агрегирует состояние сделки между покупателем и продавцом.
type Order struct {
	ID       string
	BuyerID  string
	SellerID string

	Items      []OrderItem
	Currency   string
	TotalMinor int64
	// PaymentReference устанавливается один раз при захвате оплаты и служит
	// ключом идемпотентности возврата: не более одного успешного возврата на референс.
	PaymentReference string

	Status        OrderStatus
	CommittedAt   *time.Time
	DeclinedAt    *time.Time
	CancelledAt   *time.Time
	RefundedAt    *time.Time
	DeclineReason string

	TrackingNumber string
	DeliveryStatus string
	DeliveryData   DeliveryData

	RefundStatus    RefundStatus
	RefundReference string

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.BuyerID == "" {
		errs = append(errs, ErrBuyerRequired)
	}
	if o.SellerID == "" {
		errs = append(errs, ErrSellerRequired)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	if o.PaymentReference == "" {
		errs = append(errs, ErrPaymentReferenceRequired)
	}

	// Сверяем сумму заказа с суммой позиций.
	var calc int64
	for _, item := range o.Items {
		if item.UnitPriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += item.UnitPriceMinor
	}
	if len(o.Items) > 0 && calc != o.TotalMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
