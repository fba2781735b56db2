package postgres

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

func TestRefundRepositoryIntegration_AppendAndQuery(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderRepository(store)
	refunds := NewRefundRepository(store)

	order := integrationOrder(domain.OrderStatusDeclined)
	require.NoError(t, orders.Create(order))

	failed, err := refunds.Append(domain.RefundTransaction{
		OrderID:            order.ID,
		PaymentReference:   order.PaymentReference,
		AmountMinor:        order.TotalMinor,
		Reason:             "seller declined",
		Status:             domain.RefundTransactionStatusFailed,
		RawGatewayResponse: []byte(`{"error":"gateway timeout"}`),
	})
	require.NoError(t, err)
	require.NotEmpty(t, failed.ID, "append must assign an id")

	ok, err := refunds.HasSuccessful(order.PaymentReference)
	require.NoError(t, err)
	require.False(t, ok, "failed attempt must not count as successful refund")

	_, err = refunds.Append(domain.RefundTransaction{
		OrderID:          order.ID,
		PaymentReference: order.PaymentReference,
		RefundReference:  "rf-1",
		AmountMinor:      order.TotalMinor,
		Reason:           "seller declined",
		Status:           domain.RefundTransactionStatusSuccess,
	})
	require.NoError(t, err)

	ok, err = refunds.HasSuccessful(order.PaymentReference)
	require.NoError(t, err)
	require.True(t, ok, "successful refund must be visible")

	// Второй успешный возврат на тот же референс отклоняется индексом.
	_, err = refunds.Append(domain.RefundTransaction{
		OrderID:          order.ID,
		PaymentReference: order.PaymentReference,
		RefundReference:  "rf-2",
		AmountMinor:      order.TotalMinor,
		Status:           domain.RefundTransactionStatusSuccess,
	})
	require.Error(t, err, "duplicate successful refund must be rejected")

	list, err := refunds.ListByOrder(order.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, domain.RefundTransactionStatusFailed, list[0].Status, "audit must be chronological")
}
