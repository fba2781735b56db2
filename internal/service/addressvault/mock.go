package addressvault

import (
	"context"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

// MockVault — конфигурируемая заглушка AddressVault для тестов.
type MockVault struct {
	// Addresses маппит "table/targetID/addressType" на адрес.
	Addresses map[string]domain.Address
	Err       error

	DecryptCalls int
}

// NewMockVault возвращает mock с пустым набором адресов.
func NewMockVault() *MockVault {
	return &MockVault{Addresses: make(map[string]domain.Address)}
}

// Put регистрирует адрес для последующих вызовов Decrypt.
func (m *MockVault) Put(table, targetID, addressType string, addr domain.Address) {
	m.Addresses[table+"/"+targetID+"/"+addressType] = addr
}

// Decrypt возвращает заранее настроенный адрес и считает вызовы.
func (m *MockVault) Decrypt(_ context.Context, table, targetID, addressType string) (domain.Address, error) {
	m.DecryptCalls++
	if m.Err != nil {
		return domain.Address{}, m.Err
	}
	return m.Addresses[table+"/"+targetID+"/"+addressType], nil
}

var _ domain.AddressVault = (*MockVault)(nil)
