package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"berrystand/internal/domain"
	"berrystand/internal/repository"
)

// ImportResult сколько строк выгрузки создано и сколько перезаписано
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// ImportOrders загружает заказы из выгрузки оператора одной транзакцией.
// Строка с известным id перезаписывает заказ, остальные создаются.
// Сезон и дневной лимит не проверяются: это перенос данных, а не приём заказа.
func (s *OrderService) ImportOrders(ctx context.Context, rows []domain.Order) (*ImportResult, error) {
	ctx, span := tracer.Start(ctx, "OrderService.ImportOrders")
	defer span.End()
	span.SetAttributes(attribute.Int("import.rows", len(rows)))

	if len(rows) == 0 {
		return nil, s.fail(ctx, span, "import orders", NewFieldError("file", "The submitted file is empty."))
	}

	// строки с id в том же порядке блокировок, что и массовые действия
	sorted := make([]domain.Order, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].ID[:], sorted[j].ID[:]) < 0
	})

	res := &ImportResult{}
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		for i := range sorted {
			row := sorted[i]
			if row.ID != uuid.Nil {
				existing, err := s.orders.GetForUpdate(ctx, row.ID)
				switch {
				case err == nil:
					row.CreatedAt = existing.CreatedAt
					if err := s.orders.Update(ctx, &row); err != nil {
						return err
					}
					res.Updated++
					continue
				case !errors.Is(err, repository.ErrNotFound):
					return err
				}
			}
			if err := s.orders.Create(ctx, &row); err != nil {
				return err
			}
			res.Created++
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, "import orders", err)
	}

	slog.InfoContext(ctx, "orders imported", slog.Int("created", res.Created), slog.Int("updated", res.Updated))
	return res, nil
}
