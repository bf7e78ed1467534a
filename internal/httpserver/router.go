package httpserver

import (
	"context"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-api/internal/domain"
	tokenrepo "storefront-api/internal/repository/token"
	cartsvc "storefront-api/internal/service/cart"
	ordersvc "storefront-api/internal/service/order"
)

// CartService is the cart-to-order pipeline's cart surface.
type CartService interface {
	Get(ctx context.Context, identity domain.Identity) (*domain.CartView, error)
	AddItem(ctx context.Context, identity domain.Identity, in cartsvc.AddItemInput) (*domain.CartView, error)
	UpdateItem(ctx context.Context, identity domain.Identity, index, quantity int) (*domain.CartView, error)
	RemoveItem(ctx context.Context, identity domain.Identity, index int) (*domain.CartView, error)
	Clear(ctx context.Context, identity domain.Identity) error
	Recalculate(ctx context.Context, identity domain.Identity) (*domain.CartView, error)
	Merge(ctx context.Context, guestSessionID, userID string) (*domain.CartView, error)
}

type OrderService interface {
	Create(ctx context.Context, identity domain.Identity, in ordersvc.CreateInput) (*domain.Order, error)
	Get(ctx context.Context, ref, requestingUserID string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, in ordersvc.UpdateStatusInput) (*domain.Order, error)
	Refund(ctx context.Context, orderID string, amountCents *int64, reason string) (*domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) (*domain.Order, error)
}

type SessionService interface {
	Issue() (string, error)
}

type TokenStore interface {
	Get(ctx context.Context, token string) (*tokenrepo.Token, error)
}

// Deps carries the services the router wires handlers to.
type Deps struct {
	CartSvc    CartService
	OrderSvc   OrderService
	SessionSvc SessionService
	Tokens     TokenStore
	AdminToken string
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	router.Use(cors.Default())

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	router.POST("/sessions", createSessionHandler(deps.SessionSvc))

	identified := router.Group("/", resolveIdentity(deps.Tokens))

	cart := identified.Group("/cart")
	cart.GET("", getCartHandler(deps.CartSvc))
	cart.POST("/items", addCartItemHandler(deps.CartSvc))
	cart.PATCH("/items/:index", updateCartItemHandler(deps.CartSvc))
	cart.DELETE("/items/:index", removeCartItemHandler(deps.CartSvc))
	cart.DELETE("", clearCartHandler(deps.CartSvc))
	cart.POST("/recalculate", recalculateCartHandler(deps.CartSvc))
	cart.POST("/merge", mergeCartHandler(deps.CartSvc))

	orders := identified.Group("/orders")
	orders.POST("", createOrderHandler(deps.OrderSvc))
	orders.GET("", listOrdersHandler(deps.OrderSvc))
	orders.GET("/:ref", getOrderHandler(deps.OrderSvc))

	admin := router.Group("/admin", requireAdmin(deps.AdminToken))
	admin.PATCH("/orders/:id/status", updateOrderStatusHandler(deps.OrderSvc))
	admin.POST("/orders/:id/refund", refundOrderHandler(deps.OrderSvc))
	admin.POST("/orders/:id/payment", updatePaymentStatusHandler(deps.OrderSvc))

	return router, nil
}
