package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	healthgo "github.com/hellofresh/health-go/v5"
	sloggin "github.com/samber/slog-gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"berrystand/internal/admission"
	"berrystand/internal/config"
	"berrystand/internal/repository"
	"berrystand/internal/service"
)

type Server struct {
	engine  *gin.Engine
	orders  *service.OrderService
	catalog *service.CatalogService
	health  *healthgo.Health
	prefix  string
}

func NewServer(orders *service.OrderService, catalog *service.CatalogService, health *healthgo.Health, httpCfg config.HTTPSettings) *Server {
	corsCfg := httpCfg.CORS
	r := gin.New()
	r.Use(sloggin.New(slog.Default()), gin.Recovery())
	// без origins CORS не включаем, cors.New паникует на пустом списке
	if len(corsCfg.Origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: corsCfg.Origins,
			AllowMethods: corsCfg.Methods,
			AllowHeaders: corsCfg.Headers,
		}))
	}
	r.Use(otelgin.Middleware("berrystand"))
	prefix := httpCfg.Prefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	s := &Server{engine: r, orders: orders, catalog: catalog, health: health, prefix: prefix}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	if s.health != nil {
		s.engine.GET("/healthz", gin.WrapH(s.health.Handler()))
	}
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := s.engine.Group(s.prefix)
	{
		v1.GET("/storefront", s.storefront)

		orders := v1.Group("/orders")
		orders.POST("", s.createOrder)
		orders.GET(":id", s.getOrder)
		orders.PUT(":id", s.updateOrder)
		orders.POST(":id/cancel", s.cancelOrder)

		admin := v1.Group("/admin")
		admin.GET("/orders", s.listOrders)
		admin.GET("/orders/export", s.exportOrders)
		admin.POST("/orders/import", s.importOrders)
		admin.POST("/orders/fulfill", s.fulfillOrders)
		admin.POST("/orders/cancel", s.cancelOrders)
		admin.GET("/days/:date", s.daySummary)

		admin.GET("/prices", s.listTiers)
		admin.POST("/prices", s.createTier)
		admin.DELETE("/prices/:id", s.deleteTier)

		admin.GET("/limits", s.listLimits)
		admin.PUT("/limits", s.setLimit)
		admin.DELETE("/limits/:id", s.deleteLimit)
	}
}

// @Summary Storefront
// @Description Season window, price tiers, pickup slots and farm messages.
// @Tags storefront
// @Produce json
// @Success 200 {object} service.Storefront
// @Router /storefront [get]
func (s *Server) storefront(c *gin.Context) {
	sf, err := s.orders.Storefront(c)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sf)
}

// @Summary Place order
// @Tags orders
// @Accept json
// @Produce json
// @Param input body orderRequest true "Order"
// @Success 201 {object} service.OrderResult
// @Failure 400 {object} errorResponse
// @Failure 422 {object} service.ValidationError
// @Failure 500 {object} errorResponse
// @Router /orders [post]
func (s *Server) createOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	in, verr := req.toInput()
	if verr != nil {
		writeError(c, verr)
		return
	}
	res, err := s.orders.PlaceOrder(c, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// @Summary Get order by id
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /orders/{id} [get]
func (s *Server) getOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	o, err := s.orders.GetOrder(c, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Update order
// @Description Only pending orders can be changed. Capacity is checked against the change in quantity.
// @Tags orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param input body orderRequest true "Order"
// @Success 200 {object} service.OrderResult
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Failure 422 {object} service.ValidationError
// @Router /orders/{id} [put]
func (s *Server) updateOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	in, verr := req.toInput()
	if verr != nil {
		writeError(c, verr)
		return
	}
	res, err := s.orders.UpdateOrder(c, id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Cancel order
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} service.OrderResult
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /orders/{id}/cancel [post]
func (s *Server) cancelOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	res, err := s.orders.CancelOrder(c, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func parseID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// writeError ValidationError отдаётся целиком, остальное как {"error": ...}
func writeError(c *gin.Context, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, verr)
		return
	}
	status := mapErrorToStatus(err)
	msg := err.Error()
	switch {
	case errors.Is(err, admission.ErrPricingConfiguration):
		msg = "pricing is not configured for this quantity"
	case status == http.StatusInternalServerError:
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
