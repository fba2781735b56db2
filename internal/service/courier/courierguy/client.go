package courierguy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

const providerID = "courierguy"

// Client — клиент The Courier Guy. API отдаёт тарифы в рандах с плавающей
// точкой; нормализация переводит их в минорные единицы.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// New создаёт клиента The Courier Guy.
func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.thecourierguy.co.za"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ID возвращает стабильный идентификатор провайдера.
func (c *Client) ID() string {
	return providerID
}

type address struct {
	Street     string `json:"street_address"`
	Suburb     string `json:"local_area"`
	City       string `json:"city"`
	Province   string `json:"zone"`
	PostalCode string `json:"code"`
}

type parcel struct {
	Reference string  `json:"reference"`
	WeightKG  float64 `json:"submitted_weight_kg"`
	LengthCM  float64 `json:"submitted_length_cm"`
	WidthCM   float64 `json:"submitted_width_cm"`
	HeightCM  float64 `json:"submitted_height_cm"`
}

type ratesRequest struct {
	Collection address  `json:"collection_address"`
	Delivery   address  `json:"delivery_address"`
	Parcels    []parcel `json:"parcels"`
}

type ratesResponse struct {
	Rates []struct {
		ServiceLevel struct {
			Code string `json:"code"`
			Name string `json:"name"`
		} `json:"service_level"`
		Rate         float64 `json:"rate"`
		DeliveryDays int     `json:"delivery_days"`
	} `json:"rates"`
}

// GetQuotes возвращает нормализованные котировки доставки.
func (c *Client) GetQuotes(ctx context.Context, origin, destination domain.Address, parcels []domain.Parcel) ([]domain.ShippingQuote, error) {
	reqBody := ratesRequest{
		Collection: toWireAddress(origin),
		Delivery:   toWireAddress(destination),
		Parcels:    toWireParcels(parcels),
	}

	var r ratesResponse
	if err := c.post(ctx, "/v2/rates", reqBody, &r); err != nil {
		return nil, err
	}

	quotes := make([]domain.ShippingQuote, 0, len(r.Rates))
	for _, rate := range r.Rates {
		quotes = append(quotes, domain.ShippingQuote{
			ProviderID:  providerID,
			ServiceCode: rate.ServiceLevel.Code,
			ServiceName: rate.ServiceLevel.Name,
			CostMinor:   int64(math.Round(rate.Rate * 100)),
			ETADays:     rate.DeliveryDays,
		})
	}

	return quotes, nil
}

type shipmentRequest struct {
	ServiceLevelCode string   `json:"service_level_code"`
	Collection       address  `json:"collection_address"`
	Delivery         address  `json:"delivery_address"`
	Parcels          []parcel `json:"parcels"`
	CustomerRef      string   `json:"customer_reference"`
}

type shipmentResponse struct {
	ID          string `json:"id"`
	TrackingRef string `json:"tracking_reference"`
	WaybillURL  string `json:"waybill_url"`
}

// BookShipment бронирует отправление по выбранной котировке.
func (c *Client) BookShipment(ctx context.Context, req domain.BookingRequest) (domain.Booking, error) {
	reqBody := shipmentRequest{
		ServiceLevelCode: req.Quote.ServiceCode,
		Collection:       toWireAddress(req.Origin),
		Delivery:         toWireAddress(req.Destination),
		Parcels:          toWireParcels(req.Parcels),
		CustomerRef:      req.Reference,
	}

	var r shipmentResponse
	if err := c.post(ctx, "/v2/shipments", reqBody, &r); err != nil {
		return domain.Booking{}, err
	}
	if r.TrackingRef == "" {
		return domain.Booking{}, fmt.Errorf("courierguy shipment without tracking reference")
	}

	return domain.Booking{
		TrackingNumber: r.TrackingRef,
		WaybillURL:     r.WaybillURL,
		BookingID:      r.ID,
		BookedAt:       time.Now().UTC(),
	}, nil
}

type lockersResponse struct {
	Lockers []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Street   string `json:"street_address"`
		City     string `json:"city"`
		Province string `json:"zone"`
		Code     string `json:"code"`
	} `json:"lockers"`
}

// ProviderID дублирует ID для использования клиента как источника локеров.
func (c *Client) ProviderID() string {
	return providerID
}

// FetchLockers возвращает справочник пунктов выдачи провайдера.
func (c *Client) FetchLockers(ctx context.Context) ([]domain.Locker, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/lockers", nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("courierguy http %d", resp.StatusCode)
	}

	var r lockersResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	lockers := make([]domain.Locker, 0, len(r.Lockers))
	for _, l := range r.Lockers {
		lockers = append(lockers, domain.Locker{
			ID:         l.ID,
			ProviderID: providerID,
			Name:       l.Name,
			Street:     l.Street,
			City:       l.City,
			Province:   l.Province,
			PostalCode: l.Code,
		})
	}

	return lockers, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("courierguy http %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode")
	}

	return nil
}

func toWireAddress(a domain.Address) address {
	return address{
		Street:     a.Street,
		Suburb:     a.Suburb,
		City:       a.City,
		Province:   a.Province,
		PostalCode: a.PostalCode,
	}
}

func toWireParcels(parcels []domain.Parcel) []parcel {
	result := make([]parcel, 0, len(parcels))
	for _, p := range parcels {
		result = append(result, parcel{
			Reference: p.Reference,
			WeightKG:  p.WeightKG,
			LengthCM:  p.LengthCM,
			WidthCM:   p.WidthCM,
			HeightCM:  p.HeightCM,
		})
	}
	return result
}

var _ domain.CourierProvider = (*Client)(nil)
