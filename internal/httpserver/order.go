package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-api/internal/domain"
	ordersvc "storefront-api/internal/service/order"
)

type createOrderRequest struct {
	ShippingAddress    domain.Address  `json:"shippingAddress" binding:"required"`
	BillingAddress     *domain.Address `json:"billingAddress"`
	PaymentMethod      string          `json:"paymentMethod" binding:"required"`
	Notes              string          `json:"notes"`
	AcceptPriceChanges bool            `json:"acceptPriceChanges"`
}

type updateOrderStatusRequest struct {
	Status          string `json:"status" binding:"required"`
	TrackingNumber  string `json:"trackingNumber"`
	InternalNotes   string `json:"internalNotes"`
	CancelledReason string `json:"cancelledReason"`
}

type refundOrderRequest struct {
	AmountCents *int64 `json:"amountCents"`
	Reason      string `json:"reason"`
}

type updatePaymentStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func createOrderHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "shippingAddress and paymentMethod are required")
			return
		}
		order, err := svc.Create(c.Request.Context(), callerIdentity(c), ordersvc.CreateInput{
			ShippingAddress:    req.ShippingAddress,
			BillingAddress:     req.BillingAddress,
			PaymentMethod:      domain.PaymentMethod(req.PaymentMethod),
			Notes:              req.Notes,
			AcceptPriceChanges: req.AcceptPriceChanges,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusCreated, order)
	}
}

func listOrdersHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := svc.ListByUser(c.Request.Context(), callerUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		if orders == nil {
			orders = []domain.Order{}
		}
		respond(c, http.StatusOK, orders)
	}
}

func getOrderHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := svc.Get(c.Request.Context(), c.Param("ref"), callerUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, order)
	}
}

func updateOrderStatusHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateOrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "status is required")
			return
		}
		order, err := svc.UpdateStatus(c.Request.Context(), c.Param("id"), ordersvc.UpdateStatusInput{
			Status:          domain.OrderStatus(req.Status),
			TrackingNumber:  req.TrackingNumber,
			InternalNotes:   req.InternalNotes,
			CancelledReason: req.CancelledReason,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, order)
	}
}

func refundOrderHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refundOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid refund payload")
			return
		}
		order, err := svc.Refund(c.Request.Context(), c.Param("id"), req.AmountCents, req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, order)
	}
}

func updatePaymentStatusHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updatePaymentStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "status is required")
			return
		}
		order, err := svc.UpdatePaymentStatus(c.Request.Context(), c.Param("id"), domain.PaymentStatus(req.Status))
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, order)
	}
}
