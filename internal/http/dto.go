package httpapi

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"berrystand/internal/domain"
	"berrystand/internal/service"
)

// dateLayouts ISO и формат старой формы заказа
var dateLayouts = []string{domain.DateLayout, "01/02/2006"}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

const invalidDateMsg = "Enter a valid date."

type orderRequest struct {
	PickupDate     string `json:"pickup_date" example:"2024-07-04"`
	PickupSlot     int    `json:"pickup_slot" example:"9"`
	Quantity       int    `json:"quantity" example:"100"`
	RequesterName  string `json:"requester_name" example:"Charles Reid"`
	RequesterEmail string `json:"requester_email" example:"creid@example.com"`
	RequesterPhone string `json:"requester_phone" example:"5555551234"`
	Comments       string `json:"comments"`
}

// toInput пустая дата уходит дальше как нулевая, чтобы admission сообщил "required"
func (r orderRequest) toInput() (service.OrderInput, *service.ValidationError) {
	in := service.OrderInput{
		PickupSlot:     domain.PickupSlot(r.PickupSlot),
		Quantity:       r.Quantity,
		RequesterName:  r.RequesterName,
		RequesterEmail: r.RequesterEmail,
		RequesterPhone: r.RequesterPhone,
		Comments:       r.Comments,
	}
	if strings.TrimSpace(r.PickupDate) == "" {
		return in, nil
	}
	d, ok := parseDate(r.PickupDate)
	if !ok {
		return in, service.NewFieldError("pickup_date", invalidDateMsg)
	}
	in.PickupDate = d
	return in, nil
}

type bulkRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

type tierRequest struct {
	MinQuantity   int             `json:"min_quantity" example:"100"`
	PricePerPound decimal.Decimal `json:"price_per_pound" swaggertype:"string" example:"1.60"`
}

type limitRequest struct {
	// пусто: лимит по умолчанию
	Date   string `json:"date,omitempty" example:"2024-07-04"`
	Pounds int    `json:"pounds" example:"400"`
}

type errorResponse struct {
	Error string `json:"error"`
}
