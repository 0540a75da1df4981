package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"berrystand/internal/domain"
)

// MemoryStore объединённое in-memory хранилище справочников и простой генератор ID
type MemoryStore struct {
	mu          sync.RWMutex
	nextTierID  int64
	nextLimitID int64
	tiersByID   map[int64]domain.PriceTier
	limitsByID  map[int64]domain.DailyLimit
	ordersByID  map[uuid.UUID]domain.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextTierID:  1,
		nextLimitID: 1,
		tiersByID:   make(map[int64]domain.PriceTier),
		limitsByID:  make(map[int64]domain.DailyLimit),
		ordersByID:  make(map[uuid.UUID]domain.Order),
	}
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	v := ctx.Value(txKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

// Ensure interfaces
var (
	_ PriceTierRepository  = (*MemoryStore)(nil)
	_ DailyLimitRepository = (*MemoryStore)(nil)
)

// PriceTierRepository implementation
func (m *MemoryStore) ListTiers(ctx context.Context) ([]domain.PriceTier, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.PriceTier, 0, len(m.tiersByID))
	for _, t := range m.tiersByID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MinQuantity > out[j].MinQuantity })
	return out, nil
}

func (m *MemoryStore) CreateTier(ctx context.Context, t *domain.PriceTier) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	for _, existing := range m.tiersByID {
		if existing.MinQuantity == t.MinQuantity {
			return ErrConflict
		}
	}
	t.ID = m.nextTierID
	m.nextTierID++
	m.tiersByID[t.ID] = *t
	return nil
}

func (m *MemoryStore) DeleteTier(ctx context.Context, id int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.tiersByID[id]; !ok {
		return ErrNotFound
	}
	delete(m.tiersByID, id)
	return nil
}

// DailyLimitRepository implementation
func (m *MemoryStore) LimitsFor(ctx context.Context, date time.Time) ([]domain.DailyLimit, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.DailyLimit, 0, 2)
	for _, l := range m.limitsByID {
		if l.IsDefault() || l.Date.Equal(date) {
			out = append(out, copyLimit(l))
		}
	}
	return out, nil
}

func (m *MemoryStore) ListLimits(ctx context.Context) ([]domain.DailyLimit, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.DailyLimit, 0, len(m.limitsByID))
	for _, l := range m.limitsByID {
		out = append(out, copyLimit(l))
	}
	sortLimits(out)
	return out, nil
}

func (m *MemoryStore) UpsertLimit(ctx context.Context, l *domain.DailyLimit) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	for id, existing := range m.limitsByID {
		if sameLimitKey(existing, *l) {
			l.ID = id
			m.limitsByID[id] = copyLimit(*l)
			return nil
		}
	}
	l.ID = m.nextLimitID
	m.nextLimitID++
	m.limitsByID[l.ID] = copyLimit(*l)
	return nil
}

func (m *MemoryStore) DeleteLimit(ctx context.Context, id int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.limitsByID[id]; !ok {
		return ErrNotFound
	}
	delete(m.limitsByID, id)
	return nil
}

func sameLimitKey(a, b domain.DailyLimit) bool {
	if a.IsDefault() || b.IsDefault() {
		return a.IsDefault() && b.IsDefault()
	}
	return a.Date.Equal(*b.Date)
}

// copyLimit не даёт вызывающему менять дату внутри хранилища
func copyLimit(l domain.DailyLimit) domain.DailyLimit {
	if l.Date != nil {
		d := *l.Date
		l.Date = &d
	}
	return l
}

// sortLimits: сначала лимит по умолчанию, потом по дате
func sortLimits(limits []domain.DailyLimit) {
	sort.Slice(limits, func(i, j int) bool {
		a, b := limits[i], limits[j]
		if a.IsDefault() != b.IsDefault() {
			return a.IsDefault()
		}
		if a.IsDefault() {
			return a.ID < b.ID
		}
		return a.Date.Before(*b.Date)
	})
}

// OrderRepository implementation on wrapper type
type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

var _ OrderRepository = (*MemoryOrders)(nil)

func (mo *MemoryOrders) Create(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	mo.store.ordersByID[o.ID] = *o
	return nil
}

func (mo *MemoryOrders) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	o, ok := mo.store.ordersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := o
	return &cp, nil
}

// GetForUpdate внутри MemoryTx запись уже под глобальной блокировкой
func (mo *MemoryOrders) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return mo.GetByID(ctx, id)
}

func (mo *MemoryOrders) Update(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if _, ok := mo.store.ordersByID[o.ID]; !ok {
		return ErrNotFound
	}
	o.UpdatedAt = time.Now().UTC()
	mo.store.ordersByID[o.ID] = *o
	return nil
}

func (mo *MemoryOrders) List(ctx context.Context, f OrderFilter) ([]domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	out := make([]domain.Order, 0)
	for _, o := range mo.store.ordersByID {
		if matchesFilter(o, f) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PickupDate.Equal(out[j].PickupDate) {
			return out[i].PickupDate.Before(out[j].PickupDate)
		}
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (mo *MemoryOrders) CommittedQuantity(ctx context.Context, date time.Time) (int, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	total := 0
	for _, o := range mo.store.ordersByID {
		if o.PickupDate.Equal(date) && o.Status != domain.OrderStatusCanceled {
			total += o.Quantity
		}
	}
	return total, nil
}

// LockPickupDate в памяти ничего не делает: WithTransaction уже держит блокировку записи
func (mo *MemoryOrders) LockPickupDate(ctx context.Context, date time.Time) error {
	return nil
}

// Tx manager using write lock to emulate transaction boundary
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// вложенный вызов уже под блокировкой
	if isTx(ctx) {
		return fn(ctx)
	}
	// Для in-memory используем блокировку записи и помечаем контекст, чтобы репозитории пропускали внутренние локи
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	ctx = context.WithValue(ctx, txKey{}, true)
	return fn(ctx)
}

// NewMemoryStores собирает репозитории поверх одного MemoryStore
func NewMemoryStores() Stores {
	store := NewMemoryStore()
	return Stores{
		Orders: NewMemoryOrders(store),
		Tiers:  store,
		Limits: store,
		Tx:     NewMemoryTx(store),
		Ping:   func(context.Context) error { return nil },
		Close:  func() error { return nil },
	}
}
