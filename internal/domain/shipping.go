package domain

import "time"

// Address — расшифрованный почтовый адрес одной из сторон сделки.
// Хранилище адресов отдаёт его только по запросу с авторизацией вызывающего.
type Address struct {
	Street     string
	Suburb     string
	City       string
	Province   string
	PostalCode string
	// Contact-поля нужны курьеру при бронировании.
	ContactName  string
	ContactPhone string
	ContactEmail string
}

// Complete проверяет, что обязательные для доставки поля заполнены.
func (a Address) Complete() bool {
	return a.Street != "" && a.City != "" && a.Province != "" && a.PostalCode != ""
}

// Parcel описывает одно грузовое место для расчёта котировок.
type Parcel struct {
	Reference string
	WeightKG  float64
	LengthCM  float64
	WidthCM   float64
	HeightCM  float64
}

// Профиль посылки по умолчанию: стандартная книга. Используется для позиций
// без собственных габаритов.
const (
	BookProfileWeightKG = 1.2
	BookProfileLengthCM = 30
	BookProfileWidthCM  = 23
	BookProfileHeightCM = 5
)

// BookParcel возвращает грузовое место с книжным профилем по умолчанию.
func BookParcel(reference string) Parcel {
	return Parcel{
		Reference: reference,
		WeightKG:  BookProfileWeightKG,
		LengthCM:  BookProfileLengthCM,
		WidthCM:   BookProfileWidthCM,
		HeightCM:  BookProfileHeightCM,
	}
}

// ShippingQuote — нормализованная котировка доставки. Провайдеры возвращают
// разные форматы; адаптер каждого провайдера приводит их к этому виду.
// Котировки живут только внутри одного прогона оркестрации и не сохраняются.
type ShippingQuote struct {
	ProviderID  string
	ServiceCode string
	ServiceName string
	CostMinor   int64
	ETADays     int
}

// CheapestQuote выбирает самую дешёвую котировку по CostMinor.
// При равной цене выигрывает первая увиденная (порядок конфигурации
// провайдеров, затем порядок ответа провайдера). Порядок ответа провайдера
// не гарантированно стабилен между вызовами — это задокументированный
// видимый бизнесу произвол, а не ошибка.
func CheapestQuote(quotes []ShippingQuote) (ShippingQuote, bool) {
	if len(quotes) == 0 {
		return ShippingQuote{}, false
	}

	best := quotes[0]
	for _, q := range quotes[1:] {
		if q.CostMinor < best.CostMinor {
			best = q
		}
	}
	return best, true
}

// BookingRequest — запрос на бронирование отправления у выбранного провайдера.
type BookingRequest struct {
	Quote       ShippingQuote
	Origin      Address
	Destination Address
	Parcels     []Parcel
	// Reference — идентификатор заказа, передаётся провайдеру для сверки.
	Reference string
}

// Booking — результат успешного бронирования отправления.
type Booking struct {
	TrackingNumber string
	WaybillURL     string
	BookingID      string
	BookedAt       time.Time
}

// Locker — пункт выдачи (локер) курьерского провайдера.
type Locker struct {
	ID         string `json:"id"`
	ProviderID string `json:"provider_id"`
	Name       string `json:"name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
}
