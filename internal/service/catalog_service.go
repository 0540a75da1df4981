package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"berrystand/internal/domain"
	"berrystand/internal/repository"
)

// CatalogService ценовые пороги и дневные лимиты, которыми управляет оператор
type CatalogService struct {
	tiers  repository.PriceTierRepository
	limits repository.DailyLimitRepository
}

func NewCatalogService(tiers repository.PriceTierRepository, limits repository.DailyLimitRepository) *CatalogService {
	return &CatalogService{tiers: tiers, limits: limits}
}

func (s *CatalogService) ListTiers(ctx context.Context) ([]domain.PriceTier, error) {
	return s.tiers.ListTiers(ctx)
}

func (s *CatalogService) CreateTier(ctx context.Context, t domain.PriceTier) (*domain.PriceTier, error) {
	verr := &ValidationError{}
	if t.MinQuantity < 0 {
		verr.AddField("min_quantity", "Ensure this value is greater than or equal to 0.")
	}
	if !t.PricePerPound.IsPositive() {
		verr.AddField("price_per_pound", "Ensure this value is greater than 0.")
	}
	if !verr.empty() {
		return nil, verr
	}
	cp := t
	cp.ID = 0
	cp.PricePerPound = cp.PricePerPound.Round(2)
	if err := s.tiers.CreateTier(ctx, &cp); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "price tier created", slog.Int("min_quantity", cp.MinQuantity), slog.String("price_per_pound", cp.PricePerPound.StringFixed(2)))
	return &cp, nil
}

func (s *CatalogService) DeleteTier(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidInput
	}
	return s.tiers.DeleteTier(ctx, id)
}

// SeedTiers заливает пороги из конфига, только если справочник пуст
func (s *CatalogService) SeedTiers(ctx context.Context, tiers []domain.PriceTier) (int, error) {
	existing, err := s.tiers.ListTiers(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for _, t := range tiers {
		cp := t
		if err := s.tiers.CreateTier(ctx, &cp); err != nil {
			return 0, fmt.Errorf("seed tier %d: %w", t.MinQuantity, err)
		}
	}
	return len(tiers), nil
}

func (s *CatalogService) ListLimits(ctx context.Context) ([]domain.DailyLimit, error) {
	return s.limits.ListLimits(ctx)
}

// SetLimit создаёт или заменяет лимит на дату; date == nil: лимит по умолчанию
func (s *CatalogService) SetLimit(ctx context.Context, date *time.Time, pounds int) (*domain.DailyLimit, error) {
	if pounds <= 0 {
		return nil, NewFieldError("pounds", "Ensure this value is greater than 0.")
	}
	l := domain.DailyLimit{Pounds: pounds}
	if date != nil {
		d := domain.DateOf(*date)
		l.Date = &d
	}
	if err := s.limits.UpsertLimit(ctx, &l); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "daily limit set", slog.Bool("default", l.IsDefault()), slog.Int("pounds", pounds))
	return &l, nil
}

func (s *CatalogService) DeleteLimit(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidInput
	}
	return s.limits.DeleteLimit(ctx, id)
}
