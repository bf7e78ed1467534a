package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-api/internal/cache"
	"storefront-api/internal/config"
	"storefront-api/internal/db"
	"storefront-api/internal/events"
	"storefront-api/internal/httpserver"
	cartrepo "storefront-api/internal/repository/cart"
	catalogrepo "storefront-api/internal/repository/catalog"
	orderrepo "storefront-api/internal/repository/order"
	tokenrepo "storefront-api/internal/repository/token"
	cartsvc "storefront-api/internal/service/cart"
	ordersvc "storefront-api/internal/service/order"
	sessionsvc "storefront-api/internal/service/session"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	catalogRepo := catalogrepo.NewPostgres(dbpool, logger)
	if cfg.RedisAddr != "" {
		catalogRepo = catalogrepo.NewCached(catalogRepo, cache.NewRedisCache(cfg.RedisAddr, "storefront"), logger)
	}
	cartRepo := cartrepo.NewPostgres(dbpool)
	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	tokenRepo := tokenrepo.NewPostgres(dbpool)

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer publisher.Close()
	}

	cartService := cartsvc.New(cartRepo, catalogRepo)
	orderService := ordersvc.New(orderRepo, cartRepo, catalogRepo, publisher, logger)
	sessionService := sessionsvc.New()

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		CartSvc:    cartService,
		OrderSvc:   orderService,
		SessionSvc: sessionService,
		Tokens:     tokenRepo,
		AdminToken: cfg.AdminToken,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepExpired(sweepCtx, logger, cfg.SweepInterval, cartRepo, tokenRepo)

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}

// sweepExpired periodically removes expired carts and tokens; their read
// paths already treat them as absent.
func sweepExpired(ctx context.Context, logger *log.Logger, interval time.Duration, carts cartrepo.Repository, tokens tokenrepo.Repository) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := carts.DeleteExpired(ctx); err != nil {
				logger.Printf("cart sweep failed: %v", err)
			} else if n > 0 {
				logger.Printf("cart sweep removed %d expired carts", n)
			}
			if n, err := tokens.DeleteExpired(ctx); err != nil {
				logger.Printf("token sweep failed: %v", err)
			} else if n > 0 {
				logger.Printf("token sweep removed %d expired tokens", n)
			}
		}
	}
}
