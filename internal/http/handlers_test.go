package httpapi

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"berrystand/internal/admission"
	"berrystand/internal/config"
	"berrystand/internal/domain"
	"berrystand/internal/notify"
	"berrystand/internal/repository"
	"berrystand/internal/service"
)

func setupServer(t *testing.T) *Server {
	t.Helper()
	return setupServerWith(t, config.HTTPSettings{})
}

func setupServerWith(t *testing.T, httpCfg config.HTTPSettings) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := repository.NewMemoryStore()
	ordersRepo := repository.NewMemoryOrders(store)
	tx := repository.NewMemoryTx(store)
	catalogSvc := service.NewCatalogService(store, store)
	if _, err := catalogSvc.SeedTiers(context.Background(), []domain.PriceTier{
		{MinQuantity: 0, PricePerPound: decimal.RequireFromString("2.00")},
		{MinQuantity: 100, PricePerPound: decimal.RequireFromString("1.60")},
	}); err != nil {
		t.Fatal(err)
	}
	ordersSvc := service.NewOrderService(ordersRepo, store, store, tx, notify.LogNotifier{}, service.Options{
		Rules: admission.Rules{Season: admission.Season{
			Start: admission.MonthDay{Month: time.June, Day: 17},
			End:   admission.MonthDay{Month: time.September, Day: 15},
		}},
		Location:      time.UTC,
		PickupAfter:   "9am",
		FarmName:      "Morning Shade Farm",
		PublicBaseURL: "https://berries.example.com",
		Now:           func() time.Time { return time.Date(2024, time.June, 20, 15, 30, 0, 0, time.UTC) },
	})
	return NewServer(ordersSvc, catalogSvc, nil, httpCfg)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func orderBody(date string, quantity int) map[string]any {
	return map[string]any{
		"pickup_date":     date,
		"quantity":        quantity,
		"requester_name":  "Charles Reid",
		"requester_email": "creid@example.com",
		"requester_phone": "5555551234",
	}
}

func placeOrder(t *testing.T, s *Server, date string, quantity int) service.OrderResult {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/api/v1/orders", orderBody(date, quantity))
	if w.Code != http.StatusCreated {
		t.Fatalf("create code %v: %s", w.Code, w.Body.String())
	}
	return decode[service.OrderResult](t, w)
}

func TestOrderFlow(t *testing.T) {
	s := setupServer(t)

	res := placeOrder(t, s, "2024-07-04", 100)
	if res.Order.Status != domain.OrderStatusPending {
		t.Fatalf("status %v", res.Order.Status)
	}
	if res.Order.TotalCost.StringFixed(2) != "160.00" {
		t.Fatalf("total %v", res.Order.TotalCost)
	}
	if !strings.Contains(res.Message, "100 pounds") || !strings.HasSuffix(res.Link, "/orders/"+res.Order.ID.String()) {
		t.Fatalf("unexpected message %q link %q", res.Message, res.Link)
	}
	path := "/api/v1/orders/" + res.Order.ID.String()

	// get
	w := doJSON(t, s, http.MethodGet, path, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get code %v", w.Code)
	}

	// update
	w = doJSON(t, s, http.MethodPut, path, orderBody("07/05/2024", 50))
	if w.Code != http.StatusOK {
		t.Fatalf("update code %v: %s", w.Code, w.Body.String())
	}
	updated := decode[service.OrderResult](t, w)
	if updated.Order.Quantity != 50 || updated.Order.PickupDate.Format(domain.DateLayout) != "2024-07-05" {
		t.Fatalf("unexpected update %+v", updated.Order)
	}
	if updated.Order.TotalCost.StringFixed(2) != "100.00" {
		t.Fatalf("repriced total %v", updated.Order.TotalCost)
	}

	// cancel
	w = doJSON(t, s, http.MethodPost, path+"/cancel", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel code %v", w.Code)
	}
	// canceled orders are read-only
	w = doJSON(t, s, http.MethodPut, path, orderBody("2024-07-05", 40))
	if w.Code != http.StatusConflict {
		t.Fatalf("update canceled code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodPost, path+"/cancel", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("second cancel code %v", w.Code)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	s := setupServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/orders", map[string]any{
		"pickup_date": "2024-05-01", "quantity": 15, "requester_email": "nope",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code %v", w.Code)
	}
	verr := decode[service.ValidationError](t, w)
	for _, field := range []string{"pickup_date", "quantity", "requester_name", "requester_email"} {
		if len(verr.FieldErrors[field]) == 0 {
			t.Fatalf("missing error for %s: %+v", field, verr.FieldErrors)
		}
	}

	w = doJSON(t, s, http.MethodPost, "/api/v1/orders", orderBody("July 4th", 10))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad date code %v", w.Code)
	}
	verr = decode[service.ValidationError](t, w)
	if got := verr.FieldErrors["pickup_date"]; len(got) != 1 || got[0] != invalidDateMsg {
		t.Fatalf("pickup_date errors %v", got)
	}

	w = doJSON(t, s, http.MethodPost, "/api/v1/orders", orderBody("", 10))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty date code %v", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("broken json code %v", rec.Code)
	}
}

func TestOrderNotFound(t *testing.T) {
	s := setupServer(t)
	w := doJSON(t, s, http.MethodGet, "/api/v1/orders/not-a-uuid", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodGet, "/api/v1/orders/6f1c2f5e-8d5e-4a39-9d3c-2b7f2d3c1a10", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing code %v", w.Code)
	}
}

func TestCapacityLimit(t *testing.T) {
	s := setupServer(t)

	w := doJSON(t, s, http.MethodPut, "/api/v1/admin/limits", map[string]any{"date": "2024-07-04", "pounds": 150})
	if w.Code != http.StatusOK {
		t.Fatalf("set limit code %v: %s", w.Code, w.Body.String())
	}
	placeOrder(t, s, "2024-07-04", 100)

	w = doJSON(t, s, http.MethodPost, "/api/v1/orders", orderBody("2024-07-04", 60))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("over limit code %v", w.Code)
	}
	verr := decode[service.ValidationError](t, w)
	if len(verr.OrderErrors) != 1 || !strings.Contains(verr.OrderErrors[0], "10 pounds over the limit") {
		t.Fatalf("order errors %v", verr.OrderErrors)
	}

	w = doJSON(t, s, http.MethodGet, "/api/v1/admin/days/2024-07-04", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("day code %v", w.Code)
	}
	sum := decode[service.DaySummary](t, w)
	if sum.Committed != 100 || sum.Limit == nil || *sum.Limit != 150 || *sum.Remaining != 50 {
		t.Fatalf("summary %+v", sum)
	}
}

func TestAdminOrders(t *testing.T) {
	s := setupServer(t)
	a := placeOrder(t, s, "2024-07-04", 20)
	b := placeOrder(t, s, "2024-07-05", 30)

	w := doJSON(t, s, http.MethodPost, "/api/v1/admin/orders/fulfill", map[string]any{
		"ids": []string{a.Order.ID.String()},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("fulfill code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodPost, "/api/v1/admin/orders/cancel", map[string]any{
		"ids": []string{b.Order.ID.String()},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("cancel code %v", w.Code)
	}
	// fulfilling a canceled order is skipped, not failed
	w = doJSON(t, s, http.MethodPost, "/api/v1/admin/orders/fulfill", map[string]any{
		"ids": []string{b.Order.ID.String()},
	})
	bulk := decode[service.BulkResult](t, w)
	if len(bulk.Updated) != 0 || len(bulk.Skipped) != 1 {
		t.Fatalf("bulk %+v", bulk)
	}

	w = doJSON(t, s, http.MethodGet, "/api/v1/admin/orders?status=filled", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list code %v", w.Code)
	}
	list := decode[service.OrderList](t, w)
	if len(list.Orders) != 1 || list.Orders[0].ID != a.Order.ID || list.TotalQuantity != 20 {
		t.Fatalf("list %+v", list)
	}

	w = doJSON(t, s, http.MethodGet, "/api/v1/admin/orders?from=2024-07-05&to=2024-07-31", nil)
	list = decode[service.OrderList](t, w)
	if len(list.Orders) != 1 || list.Orders[0].ID != b.Order.ID {
		t.Fatalf("date filtered list %+v", list)
	}

	w = doJSON(t, s, http.MethodGet, "/api/v1/admin/orders?status=shipped&from=soon", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad filter code %v", w.Code)
	}

	w = doJSON(t, s, http.MethodPost, "/api/v1/admin/orders/cancel", map[string]any{"ids": []string{}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty bulk code %v", w.Code)
	}
}

func TestExportOrders(t *testing.T) {
	s := setupServer(t)
	placeOrder(t, s, "2024-07-04", 120)

	w := doJSON(t, s, http.MethodGet, "/api/v1/admin/orders/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export code %v", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type %q", ct)
	}
	rows, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows %v", rows)
	}
	if rows[1][1] != "2024-07-04" || rows[1][3] != "120" || rows[1][4] != "192.00" || rows[1][5] != "PENDING" {
		t.Fatalf("row %v", rows[1])
	}
}

func uploadCSV(t *testing.T, s *Server, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "orders.csv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestImportOrders(t *testing.T) {
	s := setupServer(t)
	placed := placeOrder(t, s, "2024-07-04", 120)

	w := doJSON(t, s, http.MethodGet, "/api/v1/admin/orders/export", nil)
	exported := strings.Replace(w.Body.String(), ",PENDING,", ",FULFILLED,", 1)
	exported += ",2024-07-09,,30,60.00,PENDING,Ann Lee,ann@example.com,,,\n"

	w = uploadCSV(t, s, exported)
	if w.Code != http.StatusOK {
		t.Fatalf("import code %v: %s", w.Code, w.Body.String())
	}
	res := decode[service.ImportResult](t, w)
	if res.Created != 1 || res.Updated != 1 {
		t.Fatalf("import result %+v", res)
	}

	w = doJSON(t, s, http.MethodGet, "/api/v1/orders/"+placed.Order.ID.String(), nil)
	if o := decode[domain.Order](t, w); o.Status != domain.OrderStatusFulfilled {
		t.Fatalf("imported status %v", o.Status)
	}
	w = doJSON(t, s, http.MethodGet, "/api/v1/admin/orders?q=ann", nil)
	if list := decode[service.OrderList](t, w); len(list.Orders) != 1 || list.Orders[0].Quantity != 30 {
		t.Fatalf("created by import %+v", list)
	}

	w = uploadCSV(t, s, "pickup_date,quantity,requester_name,requester_email\nsoon,30,Ann Lee,ann@example.com\n")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad row code %v", w.Code)
	}
	verr := decode[service.ValidationError](t, w)
	if got := verr.FieldErrors["file"]; len(got) != 1 || got[0] != "Row 2: "+invalidDateMsg {
		t.Fatalf("row errors %v", got)
	}

	w = doJSON(t, s, http.MethodPost, "/api/v1/admin/orders/import", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing file code %v", w.Code)
	}
}

func TestPriceTiers(t *testing.T) {
	s := setupServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/admin/prices", map[string]any{"min_quantity": 200, "price_per_pound": "1.40"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create tier code %v: %s", w.Code, w.Body.String())
	}
	tier := decode[domain.PriceTier](t, w)

	w = doJSON(t, s, http.MethodPost, "/api/v1/admin/prices", map[string]any{"min_quantity": 200, "price_per_pound": "1.30"})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate tier code %v", w.Code)
	}

	res := placeOrder(t, s, "2024-07-04", 250)
	if res.Order.TotalCost.StringFixed(2) != "350.00" {
		t.Fatalf("total %v", res.Order.TotalCost)
	}

	w = doJSON(t, s, http.MethodGet, "/api/v1/storefront", nil)
	sf := decode[service.Storefront](t, w)
	if !sf.InSeason || len(sf.Tiers) != 3 || sf.Tiers[0].MinQuantity != 0 {
		t.Fatalf("storefront %+v", sf)
	}

	w = doJSON(t, s, http.MethodDelete, "/api/v1/admin/prices/"+strconvID(tier.ID), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete tier code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodDelete, "/api/v1/admin/prices/"+strconvID(tier.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("delete missing tier code %v", w.Code)
	}
}

func TestDefaultLimit(t *testing.T) {
	s := setupServer(t)

	w := doJSON(t, s, http.MethodPut, "/api/v1/admin/limits", map[string]any{"pounds": 0})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("zero limit code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodPut, "/api/v1/admin/limits", map[string]any{"pounds": 40})
	if w.Code != http.StatusOK {
		t.Fatalf("default limit code %v", w.Code)
	}
	def := decode[domain.DailyLimit](t, w)
	if !def.IsDefault() {
		t.Fatalf("limit %+v", def)
	}

	w = doJSON(t, s, http.MethodPost, "/api/v1/orders", orderBody("2024-08-01", 50))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("default limit not applied: %v", w.Code)
	}

	w = doJSON(t, s, http.MethodDelete, "/api/v1/admin/limits/"+strconvID(def.ID), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete limit code %v", w.Code)
	}
	placeOrder(t, s, "2024-08-01", 50)
}

func strconvID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestRoutePrefixFromConfig(t *testing.T) {
	s := setupServerWith(t, config.HTTPSettings{Prefix: "/berries"})

	w := doJSON(t, s, http.MethodGet, "/berries/storefront", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("prefixed storefront code %v", w.Code)
	}
	w = doJSON(t, s, http.MethodGet, "/api/v1/storefront", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("default prefix still routed: %v", w.Code)
	}
}
