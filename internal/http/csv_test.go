package httpapi

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"berrystand/internal/domain"
)

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestWriteOrdersCSV_ReportsWriteError(t *testing.T) {
	orders := []domain.Order{{ID: uuid.New(), Quantity: 10, Status: domain.OrderStatusPending}}
	if err := writeOrdersCSV(brokenWriter{}, orders); err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("expected write error, got %v", err)
	}
}

func TestOrdersCSV_RoundTrip(t *testing.T) {
	want := domain.Order{
		ID:             uuid.New(),
		PickupDate:     time.Date(2024, time.July, 4, 0, 0, 0, 0, time.UTC),
		PickupSlot:     11,
		Quantity:       120,
		TotalCost:      decimal.RequireFromString("192.00"),
		Status:         domain.OrderStatusFulfilled,
		RequesterName:  "Charles Reid",
		RequesterEmail: "creid@example.com",
		RequesterPhone: "5555551234",
		Comments:       "back gate, please",
	}
	var buf bytes.Buffer
	if err := writeOrdersCSV(&buf, []domain.Order{want}); err != nil {
		t.Fatal(err)
	}
	got, verr := readOrdersCSV(&buf)
	if verr != nil {
		t.Fatalf("read: %v", verr)
	}
	if len(got) != 1 {
		t.Fatalf("rows %v", got)
	}
	o := got[0]
	if o.ID != want.ID || !o.PickupDate.Equal(want.PickupDate) || o.PickupSlot != want.PickupSlot ||
		o.Quantity != want.Quantity || !o.TotalCost.Equal(want.TotalCost) || o.Status != want.Status ||
		o.RequesterPhone != want.RequesterPhone || o.Comments != want.Comments {
		t.Fatalf("got %+v, want %+v", o, want)
	}
}

func TestReadOrdersCSV_Errors(t *testing.T) {
	_, verr := readOrdersCSV(strings.NewReader(""))
	if verr == nil || len(verr.FieldErrors["file"]) != 1 {
		t.Fatalf("empty file: %v", verr)
	}

	_, verr = readOrdersCSV(strings.NewReader("pickup_date,quantity\n2024-07-04,10\n"))
	if verr == nil || len(verr.FieldErrors["file"]) != 2 {
		t.Fatalf("missing columns: %v", verr)
	}

	in := "pickup_date,quantity,requester_name,requester_email,status\n" +
		"2024-07-04,10,Ann Lee,ann@example.com,\n" +
		"soon,10,Ann Lee,ann@example.com,\n" +
		"2024-07-04,-3,Ann Lee,ann@example.com,\n" +
		"2024-07-04,10,Ann Lee,ann@example.com,shipped\n"
	_, verr = readOrdersCSV(strings.NewReader(in))
	if verr == nil {
		t.Fatalf("expected row errors")
	}
	msgs := verr.FieldErrors["file"]
	if len(msgs) != 3 || !strings.HasPrefix(msgs[0], "Row 3:") || !strings.HasPrefix(msgs[2], "Row 5:") {
		t.Fatalf("row errors %v", msgs)
	}
}

func TestReadOrdersCSV_Defaults(t *testing.T) {
	got, verr := readOrdersCSV(strings.NewReader("Quantity,Pickup_Date,Requester_Name,Requester_Email\n30,07/09/2024,Ann Lee,ann@example.com\n"))
	if verr != nil {
		t.Fatalf("read: %v", verr)
	}
	if len(got) != 1 || got[0].ID != uuid.Nil || got[0].Status != domain.OrderStatusPending ||
		!got[0].TotalCost.IsZero() || got[0].PickupSlot != 0 || got[0].Quantity != 30 {
		t.Fatalf("got %+v", got)
	}
}
