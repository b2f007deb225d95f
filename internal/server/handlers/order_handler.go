package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dcespedes8/avicontrol/internal/domain/models"
	ordersvc "github.com/dcespedes8/avicontrol/internal/service/orders"
	"github.com/dcespedes8/avicontrol/internal/store"
)

// OrderHandler exposes the weighing workflow.
type OrderHandler struct {
	orders *ordersvc.Service
	store  *store.Store
	auth   *AuthHandler
	logger *zap.Logger
}

// NewOrderHandler constructs the order HTTP adapter.
func NewOrderHandler(orders *ordersvc.Service, st *store.Store, auth *AuthHandler, logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{orders: orders, store: st, auth: auth, logger: logger}
}

// List returns orders, optionally filtered by batch id or weighing mode.
// Admins see everything; other callers see only what they created.
func (h *OrderHandler) List(c *gin.Context) {
	caller, ok := h.auth.Caller(c)
	if !ok {
		return
	}

	batchID := c.Query("batchId")
	mode := models.WeighingMode(c.Query("mode"))

	out := []models.ClientOrder{}
	for _, o := range h.store.Orders() {
		if batchID != "" && o.BatchID != batchID {
			continue
		}
		if mode != "" && o.WeighingMode != mode {
			continue
		}
		if !mayAccess(caller, o) {
			continue
		}
		out = append(out, o)
	}
	c.JSON(http.StatusOK, out)
}

// mayAccess applies the per-creator scoping: admins reach every order, other
// callers only what they created. Orders without a creator predate the
// scoping and stay visible to everyone.
func mayAccess(caller models.User, o models.ClientOrder) bool {
	return caller.Role == models.RoleAdmin || o.CreatedBy == "" || o.CreatedBy == caller.ID
}

// resolveOrder loads the order while enforcing the caller scoping. A foreign
// order reads as not found rather than revealing that the id exists.
func (h *OrderHandler) resolveOrder(c *gin.Context, caller models.User) (models.ClientOrder, bool) {
	order, found := h.store.Order(c.Param("id"))
	if !found || !mayAccess(caller, order) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return models.ClientOrder{}, false
	}
	return order, true
}

type createOrderRequest struct {
	ClientName   string              `json:"clientName" binding:"required"`
	TargetCrates int                 `json:"targetCrates"`
	BatchID      string              `json:"batchId"`
	Mode         models.WeighingMode `json:"weighingMode"`
}

// Create opens a new order for a client.
func (h *OrderHandler) Create(c *gin.Context) {
	caller, ok := h.auth.Caller(c)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order payload"})
		return
	}
	if req.Mode != "" && !caller.MayWeigh(req.Mode) {
		c.JSON(http.StatusForbidden, gin.H{"error": "weighing mode not allowed for this user"})
		return
	}

	order, err := h.orders.Create(ordersvc.CreateInput{
		ClientName:   req.ClientName,
		TargetCrates: req.TargetCrates,
		BatchID:      req.BatchID,
		Mode:         req.Mode,
		CreatedBy:    caller.ID,
	})
	if err != nil {
		if errors.Is(err, ordersvc.ErrBatchFull) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, order)
}

// Get returns one order with its computed totals.
func (h *OrderHandler) Get(c *gin.Context) {
	caller, ok := h.auth.Caller(c)
	if !ok {
		return
	}
	order, ok := h.resolveOrder(c, caller)
	if !ok {
		return
	}
	totals, err := h.orders.Totals(order.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "totals": totals})
}

type addRecordRequest struct {
	Weight   float64           `json:"weight" binding:"required"`
	Quantity int               `json:"quantity" binding:"required"`
	Type     models.RecordType `json:"type" binding:"required"`
}

// AddRecord appends a weighing to an open order. Capacity violations map to
// 409 so the station UI can show the blocking banner.
func (h *OrderHandler) AddRecord(c *gin.Context) {
	caller, ok := h.auth.Caller(c)
	if !ok {
		return
	}
	if _, ok := h.resolveOrder(c, caller); !ok {
		return
	}

	var req addRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record payload"})
		return
	}

	order, err := h.orders.AddRecord(c.Param("id"), req.Weight, req.Quantity, req.Type)
	if err != nil {
		h.writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// DeleteRecord removes a weighing from an open order.
func (h *OrderHandler) DeleteRecord(c *gin.Context) {
	caller, ok := h.auth.Caller(c)
	if !ok {
		return
	}
	if _, ok := h.resolveOrder(c, caller); !ok {
		return
	}

	order, err := h.orders.DeleteRecord(c.Param("id"), c.Param("recordId"))
	if err != nil {
		h.writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type closeOrderRequest struct {
	PricePerKg float64              `json:"pricePerKg" binding:"required"`
	Amount     float64              `json:"amount"`
	Method     models.PaymentMethod `json:"method" binding:"required"`
}

// Close records the payment and seals the order.
func (h *OrderHandler) Close(c *gin.Context) {
	caller, ok := h.auth.Caller(c)
	if !ok {
		return
	}
	if _, ok := h.resolveOrder(c, caller); !ok {
		return
	}

	var req closeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment payload"})
		return
	}

	order, err := h.orders.Close(c.Param("id"), req.PricePerKg, req.Amount, req.Method)
	if err != nil {
		h.writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) writeOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ordersvc.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, ordersvc.ErrOrderClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "order is closed"})
	case errors.Is(err, ordersvc.ErrCrateLimitExceeded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("order mutation failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
