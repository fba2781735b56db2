package addressvault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

// Client — HTTP-клиент хранилища адресов. Адреса лежат зашифрованными;
// сервис отдаёт расшифрованный адрес только по запросу с сервисным токеном.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// New создаёт клиента хранилища адресов.
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8600"
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type decryptRequest struct {
	Table       string `json:"table"`
	TargetID    string `json:"target_id"`
	AddressType string `json:"address_type"`
}

type decryptResponse struct {
	Street       string `json:"street"`
	Suburb       string `json:"suburb"`
	City         string `json:"city"`
	Province     string `json:"province"`
	PostalCode   string `json:"postal_code"`
	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
	ContactEmail string `json:"contact_email"`
}

// Decrypt возвращает расшифрованный адрес записи target в таблице table.
func (c *Client) Decrypt(ctx context.Context, table, targetID, addressType string) (domain.Address, error) {
	body, err := json.Marshal(decryptRequest{
		Table:       table,
		TargetID:    targetID,
		AddressType: addressType,
	})
	if err != nil {
		return domain.Address{}, errors.Wrap(err, "marshal decrypt request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/addresses/decrypt", bytes.NewReader(body))
	if err != nil {
		return domain.Address{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return domain.Address{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return domain.Address{}, fmt.Errorf("address vault http %d", resp.StatusCode)
	}

	var r decryptResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return domain.Address{}, errors.Wrap(err, "decode")
	}

	return domain.Address{
		Street:       r.Street,
		Suburb:       r.Suburb,
		City:         r.City,
		Province:     r.Province,
		PostalCode:   r.PostalCode,
		ContactName:  r.ContactName,
		ContactPhone: r.ContactPhone,
		ContactEmail: r.ContactEmail,
	}, nil
}

var _ domain.AddressVault = (*Client)(nil)
