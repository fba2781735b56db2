package fastway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

const providerID = "fastway"

// Client — клиент Fastway. В отличие от The Courier Guy, котировки
// запрашиваются GET-запросом по почтовым кодам, а цены уже в центах.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// New создаёт клиента Fastway.
func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.fastway.co.za"
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

type quoteResponse struct {
	Services []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
		PriceCents  int64  `json:"price_cents"`
		ETADays     int    `json:"eta_days"`
	} `json:"services"`
}

// GetQuotes возвращает нормализованные котировки доставки.
// Fastway считает тариф по суммарному весу мест между почтовыми кодами.
func (c *Client) GetQuotes(ctx context.Context, origin, destination domain.Address, parcels []domain.Parcel) ([]domain.ShippingQuote, error) {
	var totalWeight float64
	for _, p := range parcels {
		totalWeight += p.WeightKG
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	u.Path = "/api/quote"

	q := u.Query()
	q.Set("api_key", c.apiKey)
	q.Set("from_postcode", origin.PostalCode)
	q.Set("to_postcode", destination.PostalCode)
	q.Set("weight_kg", strconv.FormatFloat(totalWeight, 'f', 2, 64))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("fastway http %d", resp.StatusCode)
	}

	var r quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	quotes := make([]domain.ShippingQuote, 0, len(r.Services))
	for _, svc := range r.Services {
		quotes = append(quotes, domain.ShippingQuote{
			ProviderID:  providerID,
			ServiceCode: svc.Code,
			ServiceName: svc.Description,
			CostMinor:   svc.PriceCents,
			ETADays:     svc.ETADays,
		})
	}

	return quotes, nil
}

type consignmentAddress struct {
	Street   string `json:"street"`
	Suburb   string `json:"suburb"`
	City     string `json:"city"`
	Postcode string `json:"postcode"`
	Contact  string `json:"contact"`
	Phone    string `json:"phone"`
}

type consignmentRequest struct {
	ServiceCode string             `json:"service_code"`
	Pickup      consignmentAddress `json:"pickup"`
	Delivery    consignmentAddress `json:"delivery"`
	Reference   string             `json:"reference"`
	WeightKG    float64            `json:"weight_kg"`
}

type consignmentResponse struct {
	ConsignmentID string `json:"consignment_id"`
	Tracking      string `json:"tracking"`
	LabelURL      string `json:"label_url"`
}

// BookShipment создаёт consignment и возвращает трек-номер.
func (c *Client) BookShipment(ctx context.Context, req domain.BookingRequest) (domain.Booking, error) {
	var totalWeight float64
	for _, p := range req.Parcels {
		totalWeight += p.WeightKG
	}

	reqBody := consignmentRequest{
		ServiceCode: req.Quote.ServiceCode,
		Pickup:      toConsignmentAddress(req.Origin),
		Delivery:    toConsignmentAddress(req.Destination),
		Reference:   req.Reference,
		WeightKG:    totalWeight,
	}

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return domain.Booking{}, errors.Wrap(err, "marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/consignments", bytes.NewReader(raw))
	if err != nil {
		return domain.Booking{}, errors.Wrap(err, "new request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return domain.Booking{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return domain.Booking{}, fmt.Errorf("fastway http %d", resp.StatusCode)
	}

	var r consignmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return domain.Booking{}, errors.Wrap(err, "decode")
	}
	if r.Tracking == "" {
		return domain.Booking{}, fmt.Errorf("fastway consignment without tracking")
	}

	return domain.Booking{
		TrackingNumber: r.Tracking,
		WaybillURL:     r.LabelURL,
		BookingID:      r.ConsignmentID,
		BookedAt:       time.Now().UTC(),
	}, nil
}

type agentsResponse struct {
	Agents []struct {
		AgentID  string `json:"agent_id"`
		Name     string `json:"name"`
		Address  string `json:"address"`
		City     string `json:"city"`
		Region   string `json:"region"`
		Postcode string `json:"postcode"`
	} `json:"agents"`
}

// ProviderID дублирует ID для использования клиента как источника локеров.
func (c *Client) ProviderID() string {
	return providerID
}

// FetchLockers возвращает пункты выдачи (parcel connect агентов) Fastway.
func (c *Client) FetchLockers(ctx context.Context) ([]domain.Locker, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/parcel-connect", nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("fastway http %d", resp.StatusCode)
	}

	var r agentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	lockers := make([]domain.Locker, 0, len(r.Agents))
	for _, a := range r.Agents {
		lockers = append(lockers, domain.Locker{
			ID:         a.AgentID,
			ProviderID: providerID,
			Name:       a.Name,
			Street:     a.Address,
			City:       a.City,
			Province:   a.Region,
			PostalCode: a.Postcode,
		})
	}

	return lockers, nil
}

func toConsignmentAddress(a domain.Address) consignmentAddress {
	return consignmentAddress{
		Street:   a.Street,
		Suburb:   a.Suburb,
		City:     a.City,
		Postcode: a.PostalCode,
		Contact:  a.ContactName,
		Phone:    a.ContactPhone,
	}
}

var _ domain.CourierProvider = (*Client)(nil)
