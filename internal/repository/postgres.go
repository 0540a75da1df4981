package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"berrystand/internal/domain"
)

// PostgresConfig параметры подключения и пула
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// OpenPostgres открывает пул и проверяет соединение
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id              UUID PRIMARY KEY,
	pickup_date     DATE NOT NULL,
	pickup_slot     SMALLINT NOT NULL DEFAULT 0,
	quantity        INTEGER NOT NULL CHECK (quantity > 0),
	requester_name  TEXT NOT NULL,
	requester_email TEXT NOT NULL,
	requester_phone TEXT NOT NULL DEFAULT '',
	comments        TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	total_cost      NUMERIC(10, 2) NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_pickup_date_idx ON orders (pickup_date);
CREATE TABLE IF NOT EXISTS price_tiers (
	id              BIGSERIAL PRIMARY KEY,
	min_quantity    INTEGER NOT NULL UNIQUE,
	price_per_pound NUMERIC(8, 2) NOT NULL
);
CREATE TABLE IF NOT EXISTS daily_limits (
	id     BIGSERIAL PRIMARY KEY,
	date   DATE UNIQUE,
	pounds INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS daily_limits_single_default ON daily_limits ((date IS NULL)) WHERE date IS NULL;
`

const orderColumns = `id, pickup_date, pickup_slot, quantity, requester_name, requester_email,
	requester_phone, comments, status, total_cost, created_at, updated_at`

// querier общий интерфейс *sql.DB и *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type pgTxKey struct{}

// PostgresStore реализует все репозитории и TxManager поверх одной базы
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

// NewPostgresStores все репозитории и транзакции на одном пуле
func NewPostgresStores(db *sql.DB) Stores {
	s := NewPostgresStore(db)
	return Stores{Orders: s, Tiers: s, Limits: s, Tx: s, Ping: s.Ping, Close: db.Close}
}

var (
	_ OrderRepository      = (*PostgresStore)(nil)
	_ PriceTierRepository  = (*PostgresStore)(nil)
	_ DailyLimitRepository = (*PostgresStore)(nil)
	_ TxManager            = (*PostgresStore)(nil)
)

// EnsureSchema создаёт таблицы, если их нет
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(pgTxKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(pgTxKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.WarnContext(ctx, "rollback failed", slog.Any("err", rbErr))
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("commit tx: %w", cErr)
		}
	}()
	return fn(context.WithValue(ctx, pgTxKey{}, tx))
}

// Orders

func scanOrder(row interface{ Scan(dest ...any) error }) (domain.Order, error) {
	var o domain.Order
	var status string
	err := row.Scan(&o.ID, &o.PickupDate, &o.PickupSlot, &o.Quantity, &o.RequesterName, &o.RequesterEmail,
		&o.RequesterPhone, &o.Comments, &status, &o.TotalCost, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return o, err
	}
	o.PickupDate = domain.DateOf(o.PickupDate)
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func (s *PostgresStore) Create(ctx context.Context, o *domain.Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	_, err := s.q(ctx).ExecContext(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.ID, o.PickupDate, int(o.PickupSlot), o.Quantity, o.RequesterName, o.RequesterEmail,
		o.RequesterPhone, o.Comments, string(o.Status), o.TotalCost, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

// GetForUpdate SELECT ... FOR UPDATE; вне транзакции блокировка бессмысленна
func (s *PostgresStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	tx, ok := ctx.Value(pgTxKey{}).(*sql.Tx)
	if !ok {
		return nil, errors.New("get order for update: no transaction in context")
	}
	row := tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order for update: %w", err)
	}
	return &o, nil
}

func (s *PostgresStore) Update(ctx context.Context, o *domain.Order) error {
	o.UpdatedAt = time.Now().UTC()
	res, err := s.q(ctx).ExecContext(ctx, `UPDATE orders SET pickup_date = $2, pickup_slot = $3, quantity = $4,
		requester_name = $5, requester_email = $6, requester_phone = $7, comments = $8, status = $9,
		total_cost = $10, updated_at = $11 WHERE id = $1`,
		o.ID, o.PickupDate, int(o.PickupSlot), o.Quantity, o.RequesterName, o.RequesterEmail,
		o.RequesterPhone, o.Comments, string(o.Status), o.TotalCost, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return expectOneRow(res)
}

func (s *PostgresStore) List(ctx context.Context, f OrderFilter) ([]domain.Order, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if f.From != nil {
		where = append(where, "pickup_date >= "+arg(*f.From))
	}
	if f.To != nil {
		where = append(where, "pickup_date <= "+arg(*f.To))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := arg("%" + q + "%")
		where = append(where, fmt.Sprintf("(requester_name ILIKE %s OR requester_email ILIKE %s OR quantity::text = %s)",
			like, like, arg(q)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY pickup_date, quantity DESC, created_at"

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CommittedQuantity(ctx context.Context, date time.Time) (int, error) {
	var total int
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM orders WHERE pickup_date = $1 AND status <> $2`,
		date, string(domain.OrderStatusCanceled)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("committed quantity: %w", err)
	}
	return total, nil
}

// LockPickupDate берёт advisory lock на дату до конца транзакции
func (s *PostgresStore) LockPickupDate(ctx context.Context, date time.Time) error {
	tx, ok := ctx.Value(pgTxKey{}).(*sql.Tx)
	if !ok {
		return errors.New("lock pickup date: no transaction in context")
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, pickupLockKey(date)); err != nil {
		return fmt.Errorf("lock pickup date: %w", err)
	}
	return nil
}

// pickupLockKey 2024-07-04 -> 20240704
func pickupLockKey(date time.Time) int64 {
	y, m, d := date.Date()
	return int64(y)*10000 + int64(m)*100 + int64(d)
}

// Price tiers

func (s *PostgresStore) ListTiers(ctx context.Context) ([]domain.PriceTier, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT id, min_quantity, price_per_pound FROM price_tiers ORDER BY min_quantity DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PriceTier, 0)
	for rows.Next() {
		var t domain.PriceTier
		if err := rows.Scan(&t.ID, &t.MinQuantity, &t.PricePerPound); err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateTier(ctx context.Context, t *domain.PriceTier) error {
	err := s.q(ctx).QueryRowContext(ctx,
		`INSERT INTO price_tiers (min_quantity, price_per_pound) VALUES ($1, $2) RETURNING id`,
		t.MinQuantity, t.PricePerPound).Scan(&t.ID)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create tier: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteTier(ctx context.Context, id int64) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM price_tiers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tier: %w", err)
	}
	return expectOneRow(res)
}

// Daily limits

func scanLimits(rows *sql.Rows) ([]domain.DailyLimit, error) {
	defer rows.Close()
	out := make([]domain.DailyLimit, 0)
	for rows.Next() {
		var (
			l    domain.DailyLimit
			date sql.NullTime
		)
		if err := rows.Scan(&l.ID, &date, &l.Pounds); err != nil {
			return nil, fmt.Errorf("scan limit: %w", err)
		}
		if date.Valid {
			d := domain.DateOf(date.Time)
			l.Date = &d
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LimitsFor(ctx context.Context, date time.Time) ([]domain.DailyLimit, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT id, date, pounds FROM daily_limits WHERE date = $1 OR date IS NULL`, date)
	if err != nil {
		return nil, fmt.Errorf("limits for date: %w", err)
	}
	return scanLimits(rows)
}

func (s *PostgresStore) ListLimits(ctx context.Context) ([]domain.DailyLimit, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT id, date, pounds FROM daily_limits ORDER BY date NULLS FIRST`)
	if err != nil {
		return nil, fmt.Errorf("list limits: %w", err)
	}
	return scanLimits(rows)
}

func (s *PostgresStore) UpsertLimit(ctx context.Context, l *domain.DailyLimit) error {
	q := s.q(ctx)
	if !l.IsDefault() {
		err := q.QueryRowContext(ctx, `INSERT INTO daily_limits (date, pounds) VALUES ($1, $2)
			ON CONFLICT (date) DO UPDATE SET pounds = EXCLUDED.pounds RETURNING id`,
			*l.Date, l.Pounds).Scan(&l.ID)
		if err != nil {
			return fmt.Errorf("upsert limit: %w", err)
		}
		return nil
	}

	// ON CONFLICT не срабатывает на NULL, поэтому default обновляем отдельно
	err := q.QueryRowContext(ctx,
		`UPDATE daily_limits SET pounds = $1 WHERE date IS NULL RETURNING id`, l.Pounds).Scan(&l.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update default limit: %w", err)
	}
	err = q.QueryRowContext(ctx,
		`INSERT INTO daily_limits (date, pounds) VALUES (NULL, $1) RETURNING id`, l.Pounds).Scan(&l.ID)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert default limit: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteLimit(ctx context.Context, id int64) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM daily_limits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete limit: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
