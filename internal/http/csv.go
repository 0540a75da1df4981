package httpapi

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"berrystand/internal/domain"
	"berrystand/internal/service"
)

var exportHeader = []string{
	"id", "pickup_date", "pickup_slot", "quantity", "total_cost", "status",
	"requester_name", "requester_email", "requester_phone", "comments", "created_at",
}

// без этих колонок строку не превратить в заказ
var importRequired = []string{"pickup_date", "quantity", "requester_name", "requester_email"}

// writeOrdersCSV возвращает первую ошибку записи
func writeOrdersCSV(dst io.Writer, orders []domain.Order) error {
	w := csv.NewWriter(dst)
	if err := w.Write(exportHeader); err != nil {
		return err
	}
	for _, o := range orders {
		err := w.Write([]string{
			o.ID.String(),
			o.PickupDate.Format(domain.DateLayout),
			o.PickupSlot.Label(),
			strconv.Itoa(o.Quantity),
			o.TotalCost.StringFixed(2),
			string(o.Status),
			o.RequesterName,
			o.RequesterEmail,
			o.RequesterPhone,
			o.Comments,
			o.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		})
		if err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// readOrdersCSV разбирает файл в формате выгрузки; колонки ищутся по заголовку,
// created_at и лишние колонки игнорируются. Ошибки строк копятся в поле "file".
func readOrdersCSV(src io.Reader) ([]domain.Order, *service.ValidationError) {
	r := csv.NewReader(src)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, service.NewFieldError("file", "The submitted file is empty.")
	}
	if err != nil {
		return nil, service.NewFieldError("file", "The submitted file is not valid CSV.")
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	verr := &service.ValidationError{}
	for _, name := range importRequired {
		if _, ok := col[name]; !ok {
			verr.AddField("file", fmt.Sprintf("Missing column %q.", name))
		}
	}
	if len(verr.FieldErrors) > 0 {
		return nil, verr
	}

	var orders []domain.Order
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			verr.AddField("file", fmt.Sprintf("Row %d: not valid CSV.", line))
			break
		}
		o, msg := orderFromRecord(rec, col)
		if msg != "" {
			verr.AddField("file", fmt.Sprintf("Row %d: %s", line, msg))
			continue
		}
		orders = append(orders, o)
	}
	if len(verr.FieldErrors) > 0 {
		return nil, verr
	}
	return orders, nil
}

func orderFromRecord(rec []string, col map[string]int) (domain.Order, string) {
	get := func(name string) string {
		if i, ok := col[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	var o domain.Order
	if raw := get("id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return o, "Enter a valid id."
		}
		o.ID = id
	}
	d, ok := parseDate(get("pickup_date"))
	if !ok {
		return o, invalidDateMsg
	}
	o.PickupDate = d
	slot, err := domain.ParsePickupSlot(get("pickup_slot"))
	if err != nil {
		return o, "Select a valid pickup slot."
	}
	o.PickupSlot = slot
	qty, err := strconv.Atoi(get("quantity"))
	if err != nil || qty <= 0 {
		return o, "Quantity must be a positive whole number."
	}
	o.Quantity = qty
	o.TotalCost = decimal.Zero
	if raw := get("total_cost"); raw != "" {
		cost, err := decimal.NewFromString(raw)
		if err != nil || cost.IsNegative() {
			return o, "Enter a valid total cost."
		}
		o.TotalCost = cost
	}
	o.Status = domain.OrderStatusPending
	if raw := get("status"); raw != "" {
		st, err := domain.ParseOrderStatus(raw)
		if err != nil {
			return o, "Select a valid status."
		}
		o.Status = st
	}
	o.RequesterName = get("requester_name")
	o.RequesterEmail = get("requester_email")
	if o.RequesterName == "" || o.RequesterEmail == "" {
		return o, "Name and email are required."
	}
	o.RequesterPhone = get("requester_phone")
	o.Comments = get("comments")
	return o, ""
}
