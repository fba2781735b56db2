// Package payment содержит клиента платёжного шлюза. Оркестратор использует
// только операцию возврата: оплата захватывается до появления заказа здесь.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

// GatewayClient — HTTP-клиент платёжного шлюза.
type GatewayClient struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewGatewayClient создаёт клиента платёжного шлюза.
func NewGatewayClient(baseURL, apiKey string) *GatewayClient {
	if baseURL == "" {
		baseURL = "http://localhost:8700"
	}
	return &GatewayClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type refundRequest struct {
	PaymentReference string `json:"payment_reference"`
	// AmountMinor отсутствует в теле при полном возврате: сумму определяет шлюз.
	AmountMinor *int64 `json:"amount_minor,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type refundResponse struct {
	RefundReference string `json:"refund_reference"`
	Status          string `json:"status"`
	AmountMinor     int64  `json:"amount_minor"`
}

// Refund инициирует возврат по платёжному референсу. Сырое тело ответа
// сохраняется в результате для аудита независимо от исхода.
func (c *GatewayClient) Refund(ctx context.Context, paymentReference string, amountMinor *int64, reason string) (domain.RefundResult, error) {
	body, err := json.Marshal(refundRequest{
		PaymentReference: paymentReference,
		AmountMinor:      amountMinor,
		Reason:           reason,
	})
	if err != nil {
		return domain.RefundResult{}, errors.Wrap(err, "marshal refund request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/refunds", bytes.NewReader(body))
	if err != nil {
		return domain.RefundResult{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return domain.RefundResult{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.RefundResult{}, errors.Wrap(err, "read response")
	}

	if resp.StatusCode/100 != 2 {
		return domain.RefundResult{Raw: raw}, fmt.Errorf("payment gateway http %d", resp.StatusCode)
	}

	var r refundResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.RefundResult{Raw: raw}, errors.Wrap(err, "decode")
	}
	if r.Status != "success" {
		return domain.RefundResult{
			RefundReference: r.RefundReference,
			Status:          r.Status,
			AmountMinor:     r.AmountMinor,
			Raw:             raw,
		}, fmt.Errorf("payment gateway refund status=%s", r.Status)
	}

	return domain.RefundResult{
		RefundReference: r.RefundReference,
		Status:          r.Status,
		AmountMinor:     r.AmountMinor,
		Raw:             raw,
	}, nil
}

var _ domain.PaymentGateway = (*GatewayClient)(nil)
