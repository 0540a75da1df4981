package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"berrystand/internal/admission"
	"berrystand/internal/domain"
	"berrystand/internal/notify"
	"berrystand/internal/repository"
)

var (
	tracer = otel.Tracer("berrystand/service")
	meter  = otel.Meter("berrystand/service")
)

// Options правила приёма и тексты для покупателя
type Options struct {
	Rules            admission.Rules
	Location         *time.Location
	LargeOrderPounds int
	PickupAfter      string
	FarmName         string
	PublicBaseURL    string
	Messages         StorefrontMessages
	// Now часы сервиса, по умолчанию time.Now
	Now func() time.Time
}

// OrderService реализует логику заказов: приём, изменение, отмена, массовые действия оператора
type OrderService struct {
	orders   repository.OrderRepository
	tiers    repository.PriceTierRepository
	limits   repository.DailyLimitRepository
	tx       repository.TxManager
	notifier notify.Notifier
	opts     Options
	validate *validator.Validate
	now      func() time.Time

	decisions metric.Int64Counter
}

func NewOrderService(
	orders repository.OrderRepository,
	tiers repository.PriceTierRepository,
	limits repository.DailyLimitRepository,
	tx repository.TxManager,
	notifier notify.Notifier,
	opts Options,
) *OrderService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	decisions, err := meter.Int64Counter("berrystand.orders.admission",
		metric.WithDescription("Order admission decisions by outcome"))
	if err != nil {
		otel.Handle(err)
	}
	return &OrderService{
		orders:    orders,
		tiers:     tiers,
		limits:    limits,
		tx:        tx,
		notifier:  notifier,
		opts:      opts,
		validate:  newInputValidator(),
		now:       opts.Now,
		decisions: decisions,
	}
}

// OrderResult заказ после сохранения и сообщение для покупателя
type OrderResult struct {
	Order    domain.Order `json:"order"`
	Message  string       `json:"message"`
	Link     string       `json:"link"`
	Warnings []string     `json:"warnings,omitempty"`
}

// OrderList список для оператора с итогами
type OrderList struct {
	Orders        []domain.Order  `json:"orders"`
	TotalQuantity int             `json:"total_quantity"`
	TotalCost     decimal.Decimal `json:"total_cost"`
}

// BulkSkip заказ, который массовое действие не тронуло
type BulkSkip struct {
	ID     uuid.UUID `json:"id"`
	Reason string    `json:"reason"`
}

type BulkResult struct {
	Updated []uuid.UUID `json:"updated"`
	Skipped []BulkSkip  `json:"skipped,omitempty"`
}

// Today текущая дата в часовом поясе фермы
func (s *OrderService) Today() time.Time {
	return domain.DateOf(s.now().In(s.opts.Location))
}

// admit читает справочники под блокировкой даты и прогоняет кандидата через admission
func (s *OrderService) admit(ctx context.Context, c admission.Candidate) (admission.Decision, error) {
	var snap admission.Snapshot
	if !c.PickupDate.IsZero() {
		if err := s.orders.LockPickupDate(ctx, c.PickupDate); err != nil {
			return admission.Decision{}, err
		}
		committed, err := s.orders.CommittedQuantity(ctx, c.PickupDate)
		if err != nil {
			return admission.Decision{}, err
		}
		records, err := s.limits.LimitsFor(ctx, c.PickupDate)
		if err != nil {
			return admission.Decision{}, err
		}
		snap.Committed = committed
		snap.Limit = admission.ResolveLimit(c.PickupDate, records, s.opts.Rules.DefaultLimit)
	}
	tiers, err := s.tiers.ListTiers(ctx)
	if err != nil {
		return admission.Decision{}, err
	}
	snap.Tiers = tiers

	d, err := admission.Evaluate(c, snap, s.Today(), s.opts.Rules)
	if err != nil {
		return d, err
	}
	outcome := "accepted"
	if !d.Accepted() {
		outcome = "rejected"
	}
	if s.decisions != nil {
		s.decisions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("limit.source", snap.Limit.Source.String()),
		))
	}
	return d, nil
}

// PlaceOrder проверяет форму, место на дату и цену, затем атомарно сохраняет заказ
func (s *OrderService) PlaceOrder(ctx context.Context, in OrderInput) (*OrderResult, error) {
	ctx, span := tracer.Start(ctx, "OrderService.PlaceOrder")
	defer span.End()

	in.normalize()
	verr := validateRequester(s.validate, in)

	var created domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		d, err := s.admit(ctx, admission.Candidate{PickupDate: in.PickupDate, Quantity: in.Quantity})
		if err != nil {
			return err
		}
		verr.addDecision(d)
		if !verr.empty() {
			return verr
		}
		created = domain.Order{
			PickupDate:     in.PickupDate,
			PickupSlot:     in.PickupSlot,
			Quantity:       in.Quantity,
			RequesterName:  in.RequesterName,
			RequesterEmail: in.RequesterEmail,
			RequesterPhone: in.RequesterPhone,
			Comments:       in.Comments,
			Status:         domain.OrderStatusPending,
			TotalCost:      d.TotalCost,
		}
		return s.orders.Create(ctx, &created)
	})
	if err != nil {
		return nil, s.fail(ctx, span, "place order", err)
	}

	span.SetAttributes(attribute.String("order.id", created.ID.String()), attribute.Int("order.quantity", created.Quantity))
	slog.InfoContext(ctx, "order placed",
		slog.String("order_id", created.ID.String()),
		slog.String("pickup_date", created.PickupDate.Format(domain.DateLayout)),
		slog.Int("quantity", created.Quantity),
	)

	res := &OrderResult{Order: created, Message: s.confirmationMessage(created, true), Link: s.OrderURL(created.ID)}
	s.deliver(ctx, res, s.notifier.OrderAdmitted, notify.EventAdmitted)
	return res, nil
}

// UpdateOrder правка покупателем, пока заказ в PENDING; место проверяется по разнице
func (s *OrderService) UpdateOrder(ctx context.Context, id uuid.UUID, in OrderInput) (*OrderResult, error) {
	ctx, span := tracer.Start(ctx, "OrderService.UpdateOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id.String()))

	in.normalize()
	verr := validateRequester(s.validate, in)

	var updated *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if o.Status != domain.OrderStatusPending {
			return fmt.Errorf("%w: %s order cannot be changed", ErrInvalidState, o.Status.Label())
		}
		d, err := s.admit(ctx, admission.Candidate{
			PickupDate: in.PickupDate,
			Quantity:   in.Quantity,
			Previous:   &admission.Previous{PickupDate: o.PickupDate, Quantity: o.Quantity},
		})
		if err != nil {
			return err
		}
		verr.addDecision(d)
		if !verr.empty() {
			return verr
		}
		o.PickupDate = in.PickupDate
		o.PickupSlot = in.PickupSlot
		o.Quantity = in.Quantity
		o.RequesterName = in.RequesterName
		o.RequesterEmail = in.RequesterEmail
		o.RequesterPhone = in.RequesterPhone
		o.Comments = in.Comments
		o.TotalCost = d.TotalCost
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, "update order", err)
	}

	slog.InfoContext(ctx, "order updated", slog.String("order_id", id.String()), slog.Int("quantity", updated.Quantity))
	res := &OrderResult{Order: *updated, Message: s.confirmationMessage(*updated, false), Link: s.OrderURL(id)}
	s.deliver(ctx, res, s.notifier.OrderAdmitted, notify.EventAdmitted)
	return res, nil
}

// CancelOrder отмена покупателем; отменённый заказ больше не меняется
func (s *OrderService) CancelOrder(ctx context.Context, id uuid.UUID) (*OrderResult, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CancelOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id.String()))

	var canceled *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !o.Status.CanTransitionTo(domain.OrderStatusCanceled) {
			return fmt.Errorf("%w: order is already %s", ErrInvalidState, o.Status.Label())
		}
		o.Status = domain.OrderStatusCanceled
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		canceled = o
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, "cancel order", err)
	}

	slog.InfoContext(ctx, "order canceled", slog.String("order_id", id.String()))
	res := &OrderResult{Order: *canceled, Message: s.cancellationMessage(*canceled), Link: s.OrderURL(id)}
	s.deliver(ctx, res, s.notifier.OrderCanceled, notify.EventCanceled)
	return res, nil
}

// GetOrder возвращает заказ по id
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	if id == uuid.Nil {
		return nil, ErrInvalidInput
	}
	return s.orders.GetByID(ctx, id)
}

// ListOrders список для оператора с суммой фунтов и стоимости
func (s *OrderService) ListOrders(ctx context.Context, f repository.OrderFilter) (*OrderList, error) {
	ctx, span := tracer.Start(ctx, "OrderService.ListOrders")
	defer span.End()

	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return nil, NewFieldError("from", "Start date must not be after end date.")
	}
	orders, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, s.fail(ctx, span, "list orders", err)
	}
	out := &OrderList{Orders: orders, TotalCost: decimal.Zero}
	for _, o := range orders {
		out.TotalQuantity += o.Quantity
		out.TotalCost = out.TotalCost.Add(o.TotalCost)
	}
	return out, nil
}

// FulfillOrders массово переводит PENDING -> FULFILLED; остальные пропускает с причиной
func (s *OrderService) FulfillOrders(ctx context.Context, ids []uuid.UUID) (*BulkResult, error) {
	ctx, span := tracer.Start(ctx, "OrderService.FulfillOrders")
	defer span.End()

	res, _, err := s.transition(ctx, ids, domain.OrderStatusFulfilled)
	if err != nil {
		return nil, s.fail(ctx, span, "fulfill orders", err)
	}
	return res, nil
}

// CancelOrders массовая отмена оператором с уведомлением покупателей
func (s *OrderService) CancelOrders(ctx context.Context, ids []uuid.UUID) (*BulkResult, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CancelOrders")
	defer span.End()

	res, changed, err := s.transition(ctx, ids, domain.OrderStatusCanceled)
	if err != nil {
		return nil, s.fail(ctx, span, "cancel orders", err)
	}
	for _, o := range changed {
		n := notify.NewNotification(notify.EventCanceled, o, s.cancellationMessage(o))
		if err := s.notifier.OrderCanceled(ctx, n); err != nil {
			slog.WarnContext(ctx, "failed to notify requester", slog.String("order_id", o.ID.String()), slog.Any("err", err))
		}
	}
	return res, nil
}

func (s *OrderService) transition(ctx context.Context, ids []uuid.UUID, next domain.OrderStatus) (*BulkResult, []domain.Order, error) {
	if len(ids) == 0 {
		return nil, nil, ErrInvalidInput
	}
	res := &BulkResult{Updated: make([]uuid.UUID, 0, len(ids))}
	var changed []domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		for _, id := range lockOrder(ids) {
			o, err := s.orders.GetForUpdate(ctx, id)
			if errors.Is(err, repository.ErrNotFound) {
				res.Skipped = append(res.Skipped, BulkSkip{ID: id, Reason: "not found"})
				continue
			}
			if err != nil {
				return err
			}
			if !o.Status.CanTransitionTo(next) {
				res.Skipped = append(res.Skipped, BulkSkip{ID: id, Reason: "order is " + o.Status.Label()})
				continue
			}
			o.Status = next
			if err := s.orders.Update(ctx, o); err != nil {
				return err
			}
			res.Updated = append(res.Updated, id)
			changed = append(changed, *o)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	slog.InfoContext(ctx, "bulk status change",
		slog.String("status", string(next)),
		slog.Int("updated", len(res.Updated)),
		slog.Int("skipped", len(res.Skipped)),
	)
	return res, changed, nil
}

// lockOrder без повторов и по возрастанию id, чтобы параллельные пакеты блокировали строки в одном порядке
func lockOrder(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

// deliver отправляет уведомление; сбой не откатывает заказ и возвращается предупреждением
func (s *OrderService) deliver(ctx context.Context, res *OrderResult, send func(context.Context, notify.Notification) error, event string) {
	if err := send(ctx, notify.NewNotification(event, res.Order, res.Message)); err != nil {
		slog.WarnContext(ctx, "failed to notify requester",
			slog.String("order_id", res.Order.ID.String()),
			slog.String("event", event),
			slog.Any("err", err),
		)
		res.Warnings = append(res.Warnings, notificationWarning)
	}
}

func (s *OrderService) fail(ctx context.Context, span trace.Span, op string, err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, ErrInvalidState), errors.Is(err, repository.ErrNotFound):
		slog.DebugContext(ctx, op+" rejected", slog.Any("err", err))
	default:
		slog.ErrorContext(ctx, op+" failed", slog.Any("err", err))
		span.SetStatus(codes.Error, op+" failed")
		span.RecordError(err)
	}
	return err
}
