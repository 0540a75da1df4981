package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

type publisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSNotifier publishes events as JSON to <subject>.admitted and <subject>.canceled.
type NATSNotifier struct {
	pub     publisher
	subject string
}

var _ Notifier = (*NATSNotifier)(nil)

func NewNATSNotifier(nc *nats.Conn, subject string) *NATSNotifier {
	return &NATSNotifier{pub: nc, subject: subject}
}

func (n *NATSNotifier) OrderAdmitted(ctx context.Context, msg Notification) error {
	return n.publish(ctx, msg)
}

func (n *NATSNotifier) OrderCanceled(ctx context.Context, msg Notification) error {
	return n.publish(ctx, msg)
}

func (n *NATSNotifier) publish(ctx context.Context, payload Notification) error {
	ctx, span := tracer.Start(ctx, "NATSNotifier.publish")
	defer span.End()

	msg := &nats.Msg{
		Subject: n.subject + "." + payload.Event,
		Header:  nats.Header{},
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	msg.Data = data

	if err := n.pub.PublishMsg(msg); err != nil {
		slog.ErrorContext(ctx, "failed to publish notification", slog.String("subject", msg.Subject), slog.Any("err", err))
		span.SetStatus(codes.Error, "failed to publish notification")
		span.RecordError(err)
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	return nil
}
