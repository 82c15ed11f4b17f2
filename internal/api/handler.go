package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/service"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const actorHeader = "X-User-Email"

// ReadinessCheck reports whether a backing dependency is reachable
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	ledger    *service.Ledger
	validator *service.DeviceValidator
	audit     *service.AuditLog
	checks    map[string]ReadinessCheck
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	ledger *service.Ledger,
	validator *service.DeviceValidator,
	audit *service.AuditLog,
	checks map[string]ReadinessCheck,
) *Handler {
	return &Handler{
		ledger:    ledger,
		validator: validator,
		audit:     audit,
		checks:    checks,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/stores/:storeID/products", h.listProducts)
		v1.GET("/stores/:storeID/low-stock", h.lowStock)
		v1.POST("/stores/:storeID/device-ids/validate", h.validateDeviceIDs)
		v1.GET("/stores/:storeID/transfers", h.listTransfers)
		v1.GET("/stores/:storeID/adjustments", h.history)

		write := v1.Group("", requireActor())
		write.POST("/stores/:storeID/products", h.createProduct)
		write.PUT("/stores/:storeID/products/:productID", h.updateProduct)
		write.DELETE("/stores/:storeID/products/:productID", h.deleteProduct)
		write.POST("/inventory/:inventoryID/adjust", h.adjustStock)
		write.POST("/transfers", h.transferStock)
		write.POST("/sales", h.recordSale)
		write.DELETE("/stores/:storeID/adjustments", h.clearHistory)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
			h.logger.Warn("Readiness check failed", zap.String("check", name), zap.Error(err))
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type productRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	SupplierName  string          `json:"supplier_name"`
	DeviceIDs     []string        `json:"device_ids"`
	// DeviceList and SizeList accept the legacy comma-joined encoding
	DeviceList *string  `json:"device_list"`
	Sizes      []string `json:"sizes"`
	SizeList   string   `json:"size_list"`
	Quantity   int      `json:"quantity"`
	Reason     string   `json:"reason"`
}

// deviceIDs returns nil when the request carries no device list at all
func (r *productRequest) deviceIDs() []string {
	if r.DeviceIDs != nil {
		return r.DeviceIDs
	}
	if r.DeviceList != nil {
		return append([]string{}, models.SplitDeviceList(*r.DeviceList)...)
	}
	return nil
}

func (r *productRequest) sizes() []string {
	if r.Sizes != nil {
		return r.Sizes
	}
	return models.SplitDeviceList(r.SizeList)
}

func (r *productRequest) input(c *gin.Context, storeID, productID int64) service.SaveProductInput {
	return service.SaveProductInput{
		ProductID:     productID,
		StoreID:       storeID,
		Name:          r.Name,
		Description:   r.Description,
		PurchasePrice: r.PurchasePrice,
		SellingPrice:  r.SellingPrice,
		SupplierName:  r.SupplierName,
		DeviceIDs:     r.deviceIDs(),
		Sizes:         r.sizes(),
		Quantity:      r.Quantity,
		Reason:        r.Reason,
		Actor:         actor(c),
	}
}

// createProduct handles product creation
func (h *Handler) createProduct(c *gin.Context) {
	storeID, ok := int64Param(c, "storeID")
	if !ok {
		return
	}

	var req productRequest
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.ledger.SaveProduct(c.Request.Context(), req.input(c, storeID, 0))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

// updateProduct handles product edits
func (h *Handler) updateProduct(c *gin.Context) {
	storeID, ok := int64Param(c, "storeID")
	if !ok {
		return
	}
	productID, ok := int64Param(c, "productID")
	if !ok {
		return
	}

	var req productRequest
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.ledger.SaveProduct(c.Request.Context(), req.input(c, storeID, productID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// deleteProduct handles owner-only product deletion
func (h *Handler) deleteProduct(c *gin.Context) {
	storeID, ok := int64Param(c, "storeID")
	if !ok {
		return
	}
	productID, ok := int64Param(c, "productID")
	if !ok {
		return
	}

	if err := h.ledger.DeleteProduct(c.Request.Context(), storeID, productID, actor(c)); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// listProducts handles listing a store's products with stock
func (h *Handler) listProducts(c *gin.Context) {
	storeID, ok := int64Param(c, "storeID")
	if !ok {
		return
	}

	products, err := h.ledger.ListProducts(c.Request.Context(), storeID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

// lowStock handles listing products at or below the threshold
func (h *Handler) lowStock(c *gin.Context) {
	storeID, ok := int64Param(c, "storeID")
	if !ok {
		return
	}

	items, err := h.ledger.LowStock(c.Request.Context(), storeID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

type validateRequest struct {
	DeviceIDs        []string `json:"device_ids"`
	DeviceList       string   `json:"device_list"`
	ExcludeProductID int64    `json:"exclude_product_id"`
}

// validateDeviceIDs handles the pre-submit device id check
func (h *Handler) validateDeviceIDs(c *gin.Context) {
	storeID, ok := int64Param(c, "storeID")
	if !ok {
		return
	}

	var req validateRequest
	if !bindJSON(c, &req) {
		return
	}

	ids := req.DeviceIDs
	if ids == nil {
		ids = models.SplitDeviceList(req.DeviceList)
	}

	result, err := h.validator.Validate(c.Request.Context(), storeID, ids, req.ExcludeProductID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type adjustRequest struct {
	Direction string `json:"direction"`
	Amount    int    `json:"amount"`
	Reason    string `json:"reason"`
	Source    string `json:"source"`
}

// adjustStock handles manual add/reduce
func (h *Handler) adjustStock(c *gin.Context) {
	inventoryID, ok := int64Param(c, "inventoryID")
	if !ok {
		return
	}

	var req adjustRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.ledger.AdjustStock(c.Request.Context(), service.AdjustInput{
		InventoryRecordID: inventoryID,
		Direction:         req.Direction,
		Amount:            req.Amount,
		Reason:            req.Reason,
		Actor:             actor(c),
		Source:            req.Source,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type transferRequest struct {
	ProductID          int64    `json:"product_id"`
	SourceStoreID      int64    `json:"source_store_id"`
	DestinationStoreID int64    `json:"destination_store_id"`
	Quantity           int      `json:"quantity"`
	DeviceIDs          []string `json:"device_ids"`
	IdempotencyKey     string   `json:"idempotency_key,omitempty"`
}

// transferStock handles cross-store transfers
func (h *Handler) transferStock(c *gin.Context) {
	var req transferRequest
	if !bindJSON(c, &req) {
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	result, err := h.ledger.TransferStock(c.Request.Context(), service.TransferInput{
		ProductID:          req.ProductID,
		SourceStoreID:      req.SourceStoreID,
		DestinationStoreID: req.DestinationStoreID,
		Quantity:           req.Quantity,
		DeviceIDs:          req.DeviceIDs,
		Actor:              actor(c),
		IdempotencyKey:     req.IdempotencyKey,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// listTransfers handles listing transfers in and out of a store
func (h *Handler) listTransfers(c *gin.Context) {
	storeID, ok := int64Param(c, "storeID")
	if !ok {
		return
	}

	transfers, err := h.ledger.ListTransfers(c.Request.Context(), storeID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transfers": transfers})
}

type saleRequest struct {
	ProductID int64    `json:"product_id"`
	StoreID   int64    `json:"store_id"`
	Quantity  int      `json:"quantity"`
	DeviceIDs []string `json:"device_ids"`
	Reference string   `json:"reference"`
}

// recordSale handles a sale entered outside the point-of-sale stream
func (h *Handler) recordSale(c *gin.Context) {
	var req saleRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.ledger.RecordSale(c.Request.Context(), service.SaleInput{
		ProductID: req.ProductID,
		StoreID:   req.StoreID,
		Quantity:  req.Quantity,
		DeviceIDs: req.DeviceIDs,
		Actor:     actor(c),
		Reference: req.Reference,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// history handles listing the adjustment log
func (h *Handler) history(c *gin.Context) {
	storeID, ok := int64Param(c, "storeID")
	if !ok {
		return
	}

	var productID int64
	if raw := c.Query("product_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product_id"})
			return
		}
		productID = id
	}

	entries, err := h.audit.History(c.Request.Context(), storeID, productID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"adjustments": entries})
}

// clearHistory handles the owner-only history wipe
func (h *Handler) clearHistory(c *gin.Context) {
	storeID, ok := int64Param(c, "storeID")
	if !ok {
		return
	}

	removed, err := h.audit.ClearHistory(c.Request.Context(), storeID, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// respondError maps service errors to a status and a single message
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case service.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, store.ErrVersionConflict), errors.Is(err, service.ErrLockUnavailable):
		status = http.StatusConflict
	}

	body := gin.H{"error": err.Error()}
	var dup *service.DuplicateDeviceIDsError
	if errors.As(err, &dup) {
		body["duplicates"] = dup.IDs
	}

	if status == http.StatusInternalServerError {
		util.LoggerFromContext(c.Request.Context()).Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, body)
}

func requireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": actorHeader + " header is required",
			})
			return
		}
		c.Next()
	}
}

func actor(c *gin.Context) string {
	return c.GetHeader(actorHeader)
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
