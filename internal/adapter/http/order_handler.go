package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aq2208/gorder-store/internal/adapter/http/middleware"
	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/usecase"
	"github.com/gin-gonic/gin"
)

const defaultRequestTimeout = 5 * time.Second

type OrderHandler struct {
	orders  *usecase.Orders
	timeout time.Duration
}

func NewOrderHandler(orders *usecase.Orders, timeout time.Duration) *OrderHandler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &OrderHandler{orders: orders, timeout: timeout}
}

func (h *OrderHandler) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

type cartItemReq struct {
	ProductID string `json:"product" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type placeOrderReq struct {
	Items               []cartItemReq   `json:"items" binding:"omitempty,dive"`
	ShippingAddress     domain.Address  `json:"shippingAddress"`
	BillingAddress      *domain.Address `json:"billingAddress" binding:"omitempty"`
	PaymentMethod       string          `json:"paymentMethod" binding:"required,oneof=credit_card debit_card paypal stripe bank_transfer"`
	ShippingMethod      string          `json:"shippingMethod" binding:"omitempty,oneof=standard express overnight pickup"`
	CouponCode          string          `json:"couponCode" binding:"max=32"`
	GiftMessage         string          `json:"giftMessage" binding:"max=500"`
	SpecialInstructions string          `json:"specialInstructions" binding:"max=1000"`
}

// PlaceOrder handles POST /v1/orders. Without "items" the caller's saved cart is
// ordered; without "billingAddress" the shipping address is billed.
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req placeOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	in := usecase.PlaceOrderInput{
		ShippingAddress:     req.ShippingAddress,
		BillingAddress:      req.ShippingAddress,
		PaymentMethod:       domain.PaymentMethod(req.PaymentMethod),
		ShippingMethod:      domain.ShippingMethod(req.ShippingMethod),
		CouponCode:          req.CouponCode,
		GiftMessage:         req.GiftMessage,
		SpecialInstructions: req.SpecialInstructions,
		IdempotencyKey:      idempotencyKey(c),
	}
	if req.BillingAddress != nil {
		in.BillingAddress = *req.BillingAddress
	}
	for _, it := range req.Items {
		in.Cart.Items = append(in.Cart.Items, domain.CartItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	o, err := h.orders.PlaceOrder(ctx, middleware.Principal(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": o})
}

func idempotencyKey(c *gin.Context) string {
	if k := c.GetHeader("Idempotency-Key"); k != "" {
		return k
	}
	return c.GetHeader("X-Idempotency-Key")
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	o, err := h.orders.GetOrder(ctx, middleware.Principal(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

type listReq struct {
	Page   int    `form:"page" binding:"omitempty,min=1"`
	Limit  int    `form:"limit" binding:"omitempty,min=1"`
	Status string `form:"status"`
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	var req listReq
	if err := c.ShouldBindQuery(&req); err != nil {
		writeError(c, bindError(err))
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	page, err := h.orders.ListOrders(ctx, middleware.Principal(c), usecase.ListQuery{
		Status: domain.Status(req.Status),
		Page:   req.Page,
		Limit:  req.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": page.Orders, "pagination": page.Pagination})
}

func (h *OrderHandler) Stats(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	s, err := h.orders.Stats(ctx, middleware.Principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": s})
}

type statusReq struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note" binding:"max=1000"`
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	o, err := h.orders.UpdateStatus(ctx, middleware.Principal(c), c.Param("id"), domain.Status(req.Status), req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

type shippingReq struct {
	Carrier           string     `json:"carrier" binding:"required"`
	TrackingNumber    string     `json:"trackingNumber" binding:"required"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery"`
}

func (h *OrderHandler) MarkShipped(c *gin.Context) {
	var req shippingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	o, err := h.orders.MarkShipped(ctx, middleware.Principal(c), c.Param("id"), usecase.ShipmentInput{
		Carrier:           req.Carrier,
		TrackingNumber:    req.TrackingNumber,
		EstimatedDelivery: req.EstimatedDelivery,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

type cancelReq struct {
	Reason string `json:"reason" binding:"max=1000"`
}

// CancelOrder accepts an empty body.
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var req cancelReq
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, bindError(err))
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	o, err := h.orders.CancelOrder(ctx, middleware.Principal(c), c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

type noteReq struct {
	Type    string `json:"type"`
	Content string `json:"content" binding:"required"`
}

func (h *OrderHandler) AddNote(c *gin.Context) {
	var req noteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	o, err := h.orders.AddNote(ctx, middleware.Principal(c), c.Param("id"), domain.NoteType(req.Type), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": o})
}
