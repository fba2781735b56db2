// Package api реализует внешний HTTP API оркестратора заказов.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/mzansimarket/fulfillment/internal/domain"
	"github.com/mzansimarket/fulfillment/internal/service/fulfillment"
)

// LockerLister отдаёт пункты выдачи всех провайдеров.
type LockerLister interface {
	List(ctx context.Context) ([]domain.Locker, error)
}

// Handlers связывает HTTP-маршруты с оркестратором.
type Handlers struct {
	orch     *fulfillment.Orchestrator
	orders   domain.OrderRepository
	timeline domain.TimelineRepository
	lockers  LockerLister
	logger   *log.Entry
}

// NewHandlers создаёт обработчики внешнего API. lockers может быть nil,
// тогда маршрут пунктов выдачи отвечает 503.
func NewHandlers(orch *fulfillment.Orchestrator, orders domain.OrderRepository, timeline domain.TimelineRepository, lockers LockerLister, logger *log.Entry) *Handlers {
	if logger == nil {
		logger = log.New().WithField("component", "api")
	}
	return &Handlers{
		orch:     orch,
		orders:   orders,
		timeline: timeline,
		lockers:  lockers,
		logger:   logger,
	}
}

type commitRequest struct {
	SellerID string `json:"seller_id"`
}

type commitResponse struct {
	OrderID        string `json:"order_id"`
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number"`
	WaybillURL     string `json:"waybill_url,omitempty"`
	ProviderID     string `json:"provider_id"`
	ServiceName    string `json:"service_name"`
	CostMinor      int64  `json:"cost_minor"`
}

// Commit обрабатывает подтверждение сделки продавцом.
func (h *Handlers) Commit(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.SellerID == "" {
		writeBadRequest(w, "seller_id is required")
		return
	}

	result, err := h.orch.CommitToSale(r.Context(), orderID, req.SellerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, commitResponse{
		OrderID:        result.Order.ID,
		Status:         string(result.Order.Status),
		TrackingNumber: result.TrackingNumber,
		WaybillURL:     result.WaybillURL,
		ProviderID:     result.ProviderID,
		ServiceName:    result.ServiceName,
		CostMinor:      result.CostMinor,
	})
}

type declineRequest struct {
	SellerID string `json:"seller_id"`
	Reason   string `json:"reason"`
}

type declineResponse struct {
	OrderID         string `json:"order_id"`
	Status          string `json:"status"`
	RefundProcessed bool   `json:"refund_processed"`
	RefundReference string `json:"refund_reference,omitempty"`
}

// Decline обрабатывает отказ продавца от сделки.
func (h *Handlers) Decline(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req declineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.SellerID == "" {
		writeBadRequest(w, "seller_id is required")
		return
	}
	if req.Reason == "" {
		req.Reason = "declined by seller"
	}

	result, err := h.orch.DeclineCommit(r.Context(), orderID, req.SellerID, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, declineResponse{
		OrderID:         result.Order.ID,
		Status:          string(result.Order.Status),
		RefundProcessed: result.RefundProcessed,
		RefundReference: result.RefundReference,
	})
}

type orderItemResponse struct {
	ReferenceID    string `json:"reference_id"`
	Title          string `json:"title"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
}

type orderResponse struct {
	OrderID        string              `json:"order_id"`
	BuyerID        string              `json:"buyer_id"`
	SellerID       string              `json:"seller_id"`
	Status         string              `json:"status"`
	Currency       string              `json:"currency"`
	TotalMinor     int64               `json:"total_minor"`
	Items          []orderItemResponse `json:"items"`
	TrackingNumber string              `json:"tracking_number,omitempty"`
	DeclineReason  string              `json:"decline_reason,omitempty"`
	RefundStatus   string              `json:"refund_status,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func newOrderResponse(order domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ReferenceID:    item.ReferenceID,
			Title:          item.Title,
			UnitPriceMinor: item.UnitPriceMinor,
		})
	}

	return orderResponse{
		OrderID:        order.ID,
		BuyerID:        order.BuyerID,
		SellerID:       order.SellerID,
		Status:         string(order.Status),
		Currency:       order.Currency,
		TotalMinor:     order.TotalMinor,
		Items:          items,
		TrackingNumber: order.TrackingNumber,
		DeclineReason:  order.DeclineReason,
		RefundStatus:   string(order.RefundStatus),
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}
}

// GetOrder возвращает текущее состояние заказа.
func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	order, err := h.orders.Get(orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

const (
	defaultSellerOrdersLimit = 50
	maxSellerOrdersLimit     = 200
)

// GetSellerOrders возвращает заказы продавца, новые первыми.
func (h *Handlers) GetSellerOrders(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "sellerID")

	limit := defaultSellerOrdersLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxSellerOrdersLimit {
		limit = maxSellerOrdersLimit
	}

	orders, err := h.orders.ListBySeller(sellerID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		result = append(result, newOrderResponse(order))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"seller_id": sellerID,
		"orders":    result,
	})
}

type timelineEventResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred_at"`
}

// GetTimeline возвращает события жизненного цикла заказа.
func (h *Handlers) GetTimeline(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	if _, err := h.orders.Get(orderID); err != nil {
		writeDomainError(w, err)
		return
	}

	events, err := h.timeline.List(orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result := make([]timelineEventResponse, 0, len(events))
	for _, event := range events {
		result = append(result, timelineEventResponse{
			Type:     event.Type,
			Reason:   event.Reason,
			Occurred: event.Occurred,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"order_id": orderID,
		"events":   result,
	})
}

// GetLockers возвращает пункты выдачи, опционально по одному провайдеру.
func (h *Handlers) GetLockers(w http.ResponseWriter, r *http.Request) {
	if h.lockers == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error: errorBody{Code: "LOCKERS_UNAVAILABLE", Message: "locker directory is not configured"},
		})
		return
	}

	lockers, err := h.lockers.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Warn("locker listing failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error: errorBody{Code: "LOCKERS_UNAVAILABLE", Message: "locker directory is unavailable"},
		})
		return
	}

	if provider := r.URL.Query().Get("provider"); provider != "" {
		filtered := lockers[:0]
		for _, locker := range lockers {
			if locker.ProviderID == provider {
				filtered = append(filtered, locker)
			}
		}
		lockers = filtered
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"lockers": lockers,
	})
}
