// Package notify tells requesters about admitted and canceled orders.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"berrystand/internal/domain"
)

var tracer = otel.Tracer("berrystand/notify")

const (
	EventAdmitted = "admitted"
	EventCanceled = "canceled"
)

// Notification is the payload published for an order event.
type Notification struct {
	Event          string          `json:"event"`
	OrderID        uuid.UUID       `json:"order_id"`
	RequesterName  string          `json:"requester_name"`
	RequesterEmail string          `json:"requester_email"`
	PickupDate     string          `json:"pickup_date"`
	PickupSlot     string          `json:"pickup_slot,omitempty"`
	Quantity       int             `json:"quantity"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	Message        string          `json:"message,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// NewNotification builds the payload for o. message is the text shown to the requester.
func NewNotification(event string, o domain.Order, message string) Notification {
	return Notification{
		Event:          event,
		OrderID:        o.ID,
		RequesterName:  o.RequesterName,
		RequesterEmail: o.RequesterEmail,
		PickupDate:     o.PickupDate.Format(domain.DateLayout),
		PickupSlot:     o.PickupSlot.Label(),
		Quantity:       o.Quantity,
		TotalCost:      o.TotalCost,
		Message:        message,
		OccurredAt:     time.Now().UTC(),
	}
}

// Notifier delivers order events. A failed delivery never undoes the order.
type Notifier interface {
	OrderAdmitted(ctx context.Context, n Notification) error
	OrderCanceled(ctx context.Context, n Notification) error
}

// LogNotifier writes events to the structured log.
type LogNotifier struct{}

var _ Notifier = LogNotifier{}

func (LogNotifier) OrderAdmitted(ctx context.Context, n Notification) error {
	return logNotification(ctx, n)
}

func (LogNotifier) OrderCanceled(ctx context.Context, n Notification) error {
	return logNotification(ctx, n)
}

func logNotification(ctx context.Context, n Notification) error {
	ctx, span := tracer.Start(ctx, "LogNotifier."+n.Event)
	defer span.End()

	slog.InfoContext(ctx, "order notification",
		slog.String("event", n.Event),
		slog.String("order_id", n.OrderID.String()),
		slog.String("email", n.RequesterEmail),
		slog.String("pickup_date", n.PickupDate),
		slog.Int("quantity", n.Quantity),
		slog.String("total_cost", n.TotalCost.StringFixed(2)),
	)
	return nil
}
