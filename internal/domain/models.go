package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout формат даты самовывоза в API и хранилище
const DateLayout = "2006-01-02"

// DateOf возвращает календарную дату t как полночь UTC
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// OrderStatus тип статуса заказа
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFulfilled OrderStatus = "FULFILLED"
	OrderStatusCanceled  OrderStatus = "CANCELED"
)

// ParseOrderStatus принимает и старое значение FILLED из админки
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENDING":
		return OrderStatusPending, nil
	case "FULFILLED", "FILLED":
		return OrderStatusFulfilled, nil
	case "CANCELED", "CANCELLED":
		return OrderStatusCanceled, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// CanTransitionTo PENDING -> FULFILLED, PENDING|FULFILLED -> CANCELED
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch next {
	case OrderStatusFulfilled:
		return s == OrderStatusPending
	case OrderStatusCanceled:
		return s == OrderStatusPending || s == OrderStatusFulfilled
	}
	return false
}

// Label человекочитаемый статус: "Pending"
func (s OrderStatus) Label() string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(string(s))
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// PickupSlot час начала окна самовывоза, 0: не выбран
type PickupSlot int

var pickupSlotLabels = map[PickupSlot]string{
	8:  "8-9am",
	9:  "9-10am",
	10: "10-11am",
	11: "11am-noon",
	12: "noon-1pm",
	13: "1-2pm",
	14: "2-3pm",
}

// PickupSlots все допустимые окна по порядку
func PickupSlots() []PickupSlot {
	return []PickupSlot{8, 9, 10, 11, 12, 13, 14}
}

func (p PickupSlot) Valid() bool {
	if p == 0 {
		return true
	}
	_, ok := pickupSlotLabels[p]
	return ok
}

func (p PickupSlot) Label() string { return pickupSlotLabels[p] }

// ParsePickupSlot обратное к Label; пустая строка: окно не выбрано
func ParsePickupSlot(label string) (PickupSlot, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, nil
	}
	for p, l := range pickupSlotLabels {
		if strings.EqualFold(l, label) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown pickup slot %q", label)
}

// Order заявка на самовывоз
type Order struct {
	ID             uuid.UUID       `json:"id"`
	PickupDate     time.Time       `json:"pickup_date"`
	PickupSlot     PickupSlot      `json:"pickup_slot,omitempty"`
	Quantity       int             `json:"quantity"`
	RequesterName  string          `json:"requester_name"`
	RequesterEmail string          `json:"requester_email"`
	RequesterPhone string          `json:"requester_phone,omitempty"`
	Comments       string          `json:"comments,omitempty"`
	Status         OrderStatus     `json:"status"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (o Order) Description() string {
	return fmt.Sprintf("%s order for %d pounds on %s for %s",
		o.Status.Label(), o.Quantity, o.PickupDate.Format(DateLayout), o.RequesterName)
}

// PriceTier цена за фунт начиная с MinQuantity
type PriceTier struct {
	ID            int64           `json:"id"`
	MinQuantity   int             `json:"min_quantity"`
	PricePerPound decimal.Decimal `json:"price_per_pound"`
}

// DailyLimit потолок фунтов на дату; Date == nil: лимит по умолчанию
type DailyLimit struct {
	ID     int64      `json:"id"`
	Date   *time.Time `json:"date,omitempty"`
	Pounds int        `json:"pounds"`
}

func (l DailyLimit) IsDefault() bool { return l.Date == nil }
