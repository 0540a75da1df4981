package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"berrystand/internal/domain"
)

var (
	// ErrNotFound возвращается, когда сущность не найдена
	ErrNotFound = errors.New("not found")
	// ErrConflict нарушение уникальности (порог цены уже существует)
	ErrConflict = errors.New("conflict")
)

// OrderFilter параметры фильтрации списка заказов; From/To включительно
type OrderFilter struct {
	Status domain.OrderStatus
	From   *time.Time
	To     *time.Time
	Query  string
}

// OrderRepository интерфейс репозитория заказов
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// GetForUpdate читает заказ и держит его строку до конца транзакции
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	Update(ctx context.Context, o *domain.Order) error
	// List сортирует по дате самовывоза, затем по убыванию веса
	List(ctx context.Context, f OrderFilter) ([]domain.Order, error)
	// CommittedQuantity сумма фунтов неотменённых заказов на дату
	CommittedQuantity(ctx context.Context, date time.Time) (int, error)
	// LockPickupDate сериализует приём заказов на дату до конца транзакции
	LockPickupDate(ctx context.Context, date time.Time) error
}

// PriceTierRepository ценовые пороги
type PriceTierRepository interface {
	// ListTiers по убыванию MinQuantity
	ListTiers(ctx context.Context) ([]domain.PriceTier, error)
	CreateTier(ctx context.Context, t *domain.PriceTier) error
	DeleteTier(ctx context.Context, id int64) error
}

// DailyLimitRepository дневные лимиты; запись по умолчанию одна
type DailyLimitRepository interface {
	// LimitsFor лимит на дату и лимит по умолчанию, если есть
	LimitsFor(ctx context.Context, date time.Time) ([]domain.DailyLimit, error)
	ListLimits(ctx context.Context) ([]domain.DailyLimit, error)
	// UpsertLimit заменяет существующую запись на ту же дату (или по умолчанию)
	UpsertLimit(ctx context.Context, l *domain.DailyLimit) error
	DeleteLimit(ctx context.Context, id int64) error
}

// TxManager абстракция транзакции. Для in-memory: глобальная блокировка записи.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Stores репозитории одного хранилища и его обслуживание
type Stores struct {
	Orders OrderRepository
	Tiers  PriceTierRepository
	Limits DailyLimitRepository
	Tx     TxManager
	Ping   func(ctx context.Context) error
	Close  func() error
}

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func matchesFilter(o domain.Order, f OrderFilter) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.From != nil && o.PickupDate.Before(*f.From) {
		return false
	}
	if f.To != nil && o.PickupDate.After(*f.To) {
		return false
	}
	if f.Query == "" {
		return true
	}
	return containsIgnoreCase(o.RequesterName, f.Query) ||
		containsIgnoreCase(o.RequesterEmail, f.Query) ||
		strings.TrimSpace(f.Query) == strconv.Itoa(o.Quantity)
}
