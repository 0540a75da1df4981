package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"berrystand/internal/domain"
	"berrystand/internal/repository"
	"berrystand/internal/service"
)

// filterFromQuery status, from, to, q; ошибки собираются в ValidationError
func filterFromQuery(c *gin.Context) (repository.OrderFilter, *service.ValidationError) {
	var f repository.OrderFilter
	verr := &service.ValidationError{}
	if raw := c.Query("status"); raw != "" {
		st, err := domain.ParseOrderStatus(raw)
		if err != nil {
			verr.AddField("status", "Select a valid choice.")
		} else {
			f.Status = st
		}
	}
	if raw := c.Query("from"); raw != "" {
		if d, ok := parseDate(raw); ok {
			f.From = &d
		} else {
			verr.AddField("from", invalidDateMsg)
		}
	}
	if raw := c.Query("to"); raw != "" {
		if d, ok := parseDate(raw); ok {
			f.To = &d
		} else {
			verr.AddField("to", invalidDateMsg)
		}
	}
	f.Query = strings.TrimSpace(c.Query("q"))
	if len(verr.FieldErrors) > 0 {
		return f, verr
	}
	return f, nil
}

// @Summary List orders
// @Tags admin
// @Produce json
// @Param status query string false "PENDING, FULFILLED or CANCELED"
// @Param from query string false "First pickup date"
// @Param to query string false "Last pickup date"
// @Param q query string false "Name, email or quantity"
// @Success 200 {object} service.OrderList
// @Failure 422 {object} service.ValidationError
// @Router /admin/orders [get]
func (s *Server) listOrders(c *gin.Context) {
	f, verr := filterFromQuery(c)
	if verr != nil {
		writeError(c, verr)
		return
	}
	list, err := s.orders.ListOrders(c, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Export orders as CSV
// @Tags admin
// @Produce text/csv
// @Param status query string false "PENDING, FULFILLED or CANCELED"
// @Param from query string false "First pickup date"
// @Param to query string false "Last pickup date"
// @Param q query string false "Name, email or quantity"
// @Success 200 {string} string
// @Router /admin/orders/export [get]
func (s *Server) exportOrders(c *gin.Context) {
	f, verr := filterFromQuery(c)
	if verr != nil {
		writeError(c, verr)
		return
	}
	list, err := s.orders.ListOrders(c, f)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="orders.csv"`)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	// заголовки уже ушли, остаётся только записать в лог
	if err := writeOrdersCSV(c.Writer, list.Orders); err != nil {
		slog.ErrorContext(c, "failed to write orders export", slog.Any("err", err))
	}
}

// @Summary Import orders from CSV
// @Description Columns as in the export. Rows with a known id replace that order, the rest are created.
// @Tags admin
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Orders CSV"
// @Success 200 {object} service.ImportResult
// @Failure 400 {object} errorResponse
// @Failure 422 {object} service.ValidationError
// @Router /admin/orders/import [post]
func (s *Server) importOrders(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	src, err := fh.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer src.Close()

	rows, verr := readOrdersCSV(src)
	if verr != nil {
		writeError(c, verr)
		return
	}
	res, err := s.orders.ImportOrders(c, rows)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Mark orders fulfilled
// @Tags admin
// @Accept json
// @Produce json
// @Param input body bulkRequest true "Order IDs"
// @Success 200 {object} service.BulkResult
// @Failure 400 {object} errorResponse
// @Router /admin/orders/fulfill [post]
func (s *Server) fulfillOrders(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := s.orders.FulfillOrders(c, req.IDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Cancel orders
// @Tags admin
// @Accept json
// @Produce json
// @Param input body bulkRequest true "Order IDs"
// @Success 200 {object} service.BulkResult
// @Failure 400 {object} errorResponse
// @Router /admin/orders/cancel [post]
func (s *Server) cancelOrders(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := s.orders.CancelOrders(c, req.IDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Pickup day summary
// @Tags admin
// @Produce json
// @Param date path string true "Pickup date"
// @Success 200 {object} service.DaySummary
// @Failure 422 {object} service.ValidationError
// @Router /admin/days/{date} [get]
func (s *Server) daySummary(c *gin.Context) {
	d, ok := parseDate(c.Param("date"))
	if !ok {
		writeError(c, service.NewFieldError("date", invalidDateMsg))
		return
	}
	sum, err := s.orders.DaySummary(c, d)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// @Summary List price tiers
// @Tags admin
// @Produce json
// @Success 200 {array} domain.PriceTier
// @Router /admin/prices [get]
func (s *Server) listTiers(c *gin.Context) {
	tiers, err := s.catalog.ListTiers(c)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tiers)
}

// @Summary Create price tier
// @Tags admin
// @Accept json
// @Produce json
// @Param input body tierRequest true "Tier"
// @Success 201 {object} domain.PriceTier
// @Failure 409 {object} errorResponse
// @Failure 422 {object} service.ValidationError
// @Router /admin/prices [post]
func (s *Server) createTier(c *gin.Context) {
	var req tierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	tier, err := s.catalog.CreateTier(c, domain.PriceTier{MinQuantity: req.MinQuantity, PricePerPound: req.PricePerPound})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tier)
}

// @Summary Delete price tier
// @Tags admin
// @Param id path int true "Tier ID"
// @Success 204
// @Failure 404 {object} errorResponse
// @Router /admin/prices/{id} [delete]
func (s *Server) deleteTier(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := s.catalog.DeleteTier(c, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List daily limits
// @Tags admin
// @Produce json
// @Success 200 {array} domain.DailyLimit
// @Router /admin/limits [get]
func (s *Server) listLimits(c *gin.Context) {
	limits, err := s.catalog.ListLimits(c)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, limits)
}

// @Summary Set daily limit
// @Description Without a date the default limit is replaced.
// @Tags admin
// @Accept json
// @Produce json
// @Param input body limitRequest true "Limit"
// @Success 200 {object} domain.DailyLimit
// @Failure 422 {object} service.ValidationError
// @Router /admin/limits [put]
func (s *Server) setLimit(c *gin.Context) {
	var req limitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	var date *time.Time
	if strings.TrimSpace(req.Date) != "" {
		d, ok := parseDate(req.Date)
		if !ok {
			writeError(c, service.NewFieldError("date", invalidDateMsg))
			return
		}
		date = &d
	}
	l, err := s.catalog.SetLimit(c, date, req.Pounds)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// @Summary Delete daily limit
// @Tags admin
// @Param id path int true "Limit ID"
// @Success 204
// @Failure 404 {object} errorResponse
// @Router /admin/limits/{id} [delete]
func (s *Server) deleteLimit(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := s.catalog.DeleteLimit(c, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
