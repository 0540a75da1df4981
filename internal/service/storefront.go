package service

import (
	"context"
	"time"

	"berrystand/internal/admission"
	"berrystand/internal/domain"
)

type SlotOption struct {
	Value domain.PickupSlot `json:"value"`
	Label string            `json:"label"`
}

// Storefront то, что видит покупатель до заказа
type Storefront struct {
	FarmName    string             `json:"farm_name"`
	Today       string             `json:"today"`
	InSeason    bool               `json:"in_season"`
	SeasonStart string             `json:"season_start"`
	SeasonEnd   string             `json:"season_end"`
	Messages    StorefrontMessages `json:"messages"`
	Tiers       []domain.PriceTier `json:"tiers"`
	PickupSlots []SlotOption       `json:"pickup_slots"`
}

func (s *OrderService) Storefront(ctx context.Context) (*Storefront, error) {
	ctx, span := tracer.Start(ctx, "OrderService.Storefront")
	defer span.End()

	tiers, err := s.tiers.ListTiers(ctx)
	if err != nil {
		return nil, s.fail(ctx, span, "storefront", err)
	}
	admission.SortTiersAscending(tiers)

	today := s.Today()
	start, end := s.opts.Rules.Season.Window(today.Year())
	slots := make([]SlotOption, 0, len(domain.PickupSlots()))
	for _, p := range domain.PickupSlots() {
		slots = append(slots, SlotOption{Value: p, Label: p.Label()})
	}

	return &Storefront{
		FarmName:    s.opts.FarmName,
		Today:       today.Format(domain.DateLayout),
		InSeason:    admission.InSeason(today, today, s.opts.Rules.Season),
		SeasonStart: start.Format(domain.DateLayout),
		SeasonEnd:   end.Format(domain.DateLayout),
		Messages:    s.opts.Messages,
		Tiers:       tiers,
		PickupSlots: slots,
	}, nil
}

// DaySummary загрузка даты для оператора; Limit == nil: без ограничения
type DaySummary struct {
	Date        string `json:"date"`
	Committed   int    `json:"committed"`
	Limit       *int   `json:"limit,omitempty"`
	LimitSource string `json:"limit_source"`
	Remaining   *int   `json:"remaining,omitempty"`
}

func (s *OrderService) DaySummary(ctx context.Context, date time.Time) (*DaySummary, error) {
	date = domain.DateOf(date)
	committed, err := s.orders.CommittedQuantity(ctx, date)
	if err != nil {
		return nil, err
	}
	records, err := s.limits.LimitsFor(ctx, date)
	if err != nil {
		return nil, err
	}
	limit := admission.ResolveLimit(date, records, s.opts.Rules.DefaultLimit)

	out := &DaySummary{
		Date:        date.Format(domain.DateLayout),
		Committed:   committed,
		LimitSource: limit.Source.String(),
	}
	if limit.Bounded() {
		pounds := limit.Pounds
		remaining := max(pounds-committed, 0)
		out.Limit = &pounds
		out.Remaining = &remaining
	}
	return out, nil
}
