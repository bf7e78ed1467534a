package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront-api/internal/domain"
	cartsvc "storefront-api/internal/service/cart"
)

type addCartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

type mergeCartRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

// getCartHandler returns the caller's live cart, or a null payload when they
// have none (an empty cart still returns the cart shape).
func getCartHandler(svc CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := svc.Get(c.Request.Context(), callerIdentity(c))
		if errors.Is(err, domain.ErrNotFound) {
			respond(c, http.StatusOK, nil)
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, view)
	}
}

func addCartItemHandler(svc CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "productId and quantity (>= 1) are required")
			return
		}
		view, err := svc.AddItem(c.Request.Context(), callerIdentity(c), cartsvc.AddItemInput{
			ProductID: req.ProductID,
			VariantID: req.VariantID,
			Quantity:  req.Quantity,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, view)
	}
}

func updateCartItemHandler(svc CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			respondBadRequest(c, "item index must be an integer")
			return
		}
		var req updateCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "quantity (>= 1) is required")
			return
		}
		view, err := svc.UpdateItem(c.Request.Context(), callerIdentity(c), index, req.Quantity)
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, view)
	}
}

func removeCartItemHandler(svc CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			respondBadRequest(c, "item index must be an integer")
			return
		}
		view, err := svc.RemoveItem(c.Request.Context(), callerIdentity(c), index)
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, view)
	}
}

func clearCartHandler(svc CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Clear(c.Request.Context(), callerIdentity(c)); err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, nil)
	}
}

func recalculateCartHandler(svc CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := svc.Recalculate(c.Request.Context(), callerIdentity(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, view)
	}
}

func mergeCartHandler(svc CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req mergeCartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "sessionId is required")
			return
		}
		view, err := svc.Merge(c.Request.Context(), req.SessionID, callerUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, view)
	}
}
