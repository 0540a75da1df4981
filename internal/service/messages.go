package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"berrystand/internal/domain"
)

// pickupDayLayout "Thu Jul 04"
const pickupDayLayout = "Mon Jan 02"

// StorefrontMessages тексты витрины, редактируемые оператором в конфиге
type StorefrontMessages struct {
	FarmInfo    string `json:"farm_info,omitempty"`
	Prices      string `json:"prices,omitempty"`
	About       string `json:"about,omitempty"`
	OutOfSeason string `json:"out_of_season,omitempty"`
}

// OrderURL ссылка, по которой покупатель смотрит, меняет и отменяет заказ
func (s *OrderService) OrderURL(id uuid.UUID) string {
	return strings.TrimRight(s.opts.PublicBaseURL, "/") + "/orders/" + id.String()
}

func (s *OrderService) confirmationMessage(o domain.Order, created bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your order for %d pounds of blueberries for $%s has been received. ", o.Quantity, o.TotalCost.StringFixed(2))
	fmt.Fprintf(&b, "You can pick them up after %s on %s at %s.", s.opts.PickupAfter, o.PickupDate.Format(pickupDayLayout), s.opts.FarmName)
	if s.opts.LargeOrderPounds > 0 && o.Quantity >= s.opts.LargeOrderPounds {
		b.WriteString(" If you have additional requests, please add comments to your order or call us.")
	}
	if created {
		fmt.Fprintf(&b, " You can see, update, and cancel your order at %s.", s.OrderURL(o.ID))
	}
	return b.String()
}

func (s *OrderService) cancellationMessage(o domain.Order) string {
	return fmt.Sprintf("Your order for %d pounds of blueberries for pickup on %s at %s has been canceled.",
		o.Quantity, o.PickupDate.Format(pickupDayLayout), s.opts.FarmName)
}

const notificationWarning = "We could not send your notification email. Please keep this page for your records."
