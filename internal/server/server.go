package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"jewel-store/internal/cart"
	"jewel-store/internal/config"
	"jewel-store/internal/database"
	custommiddleware "jewel-store/internal/middleware"
	"jewel-store/internal/payment/stripe"
	"jewel-store/internal/repository"
	"jewel-store/internal/service"
	"jewel-store/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
	mongo  *mongo.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service) (*Server, error) {
	s := &Server{
		config: cfg,
		logger: logger,
		db:     db,
		redis: redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}),
	}

	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.CORSAllowedOrigins, !cfg.IsProduction()))

	// Health check endpoint
	router.Get("/health", s.health)

	side, err := s.cartSideStore()
	if err != nil {
		s.Close()
		return nil, err
	}

	payments, err := stripe.NewClient(stripe.Config{
		SecretKey:        cfg.Stripe.SecretKey,
		WebhookSecret:    cfg.Stripe.WebhookSecret,
		APIBaseURL:       cfg.Stripe.APIBaseURL,
		Currency:         cfg.Stripe.Currency,
		AllowedCountries: cfg.Stripe.AllowedCountries,
	}, logger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to configure stripe: %w", err)
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(db.DB())
	categoryRepo := repository.NewCategoryRepository(db.DB())
	orderRepo := repository.NewOrderRepository(db.DB())

	// Initialize services
	catalogService := service.NewCatalogService(productRepo, categoryRepo, logger)
	cartService, err := service.NewCartService(productRepo, side, cfg.Cart.CacheSize, logger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create cart service: %w", err)
	}
	checkoutService := service.NewCheckoutService(cartService, orderRepo, payments, service.CheckoutURLs{
		SuccessURL: cfg.Server.FrontendURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  cfg.Server.FrontendURL + "/cancel",
	}, logger)

	// Initialize handlers
	catalogHandler := transport.NewCatalogHandler(catalogService, logger)
	cartHandler := transport.NewCartHandler(cartService, logger)
	checkoutHandler := transport.NewCheckoutHandler(checkoutService, logger)
	adminHandler := transport.NewAdminHandler(catalogService, logger)

	// Create auth, session and rate limit middleware
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	sessionMiddleware := custommiddleware.SessionMiddleware(cfg.JWT.Secret, logger)
	checkoutRateLimit := custommiddleware.RateLimitMiddleware(s.redis, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		Window:            time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		KeyPrefix:         "ratelimit:checkout",
	}, logger)

	// Register routes
	catalogHandler.RegisterRoutes(router)
	cartHandler.RegisterRoutes(router, sessionMiddleware)
	checkoutHandler.RegisterRoutes(router, sessionMiddleware, checkoutRateLimit)
	adminHandler.RegisterRoutes(router, authMiddleware)

	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	logger.Info("Server configured",
		zap.String("cart_store", cfg.Cart.Store),
		zap.String("currency", payments.Currency()),
	)
	return s, nil
}

// cartSideStore selects where cart snapshots are persisted.
func (s *Server) cartSideStore() (cart.SideStore, error) {
	switch s.config.Cart.Store {
	case "", "postgres":
		return repository.NewPostgresCartStore(s.db.DB()), nil
	case "redis":
		return repository.NewRedisCartStore(s.redis, time.Duration(s.config.Cart.TTLHours)*time.Hour), nil
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.config.Mongo.URI))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			client.Disconnect(context.Background())
			return nil, fmt.Errorf("failed to ping mongo: %w", err)
		}
		s.mongo = client
		collection := client.Database(s.config.Mongo.Database).Collection(s.config.Mongo.CartCollection)
		return repository.NewMongoCartStore(collection), nil
	case "memory":
		s.logger.Warn("Cart snapshots are kept in process memory and lost on restart")
		return cart.NewMemorySideStore(), nil
	default:
		return nil, fmt.Errorf("unknown cart store %q", s.config.Cart.Store)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	dbHealth := s.db.Health()
	status := map[string]string{"status": "ok", "database": dbHealth["status"], "redis": "up"}
	code := http.StatusOK
	if dbHealth["status"] != "up" {
		status["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	// Redis only backs rate limiting unless it also holds carts
	if err := s.redis.Ping(ctx).Err(); err != nil {
		status["redis"] = "down"
		if s.config.Cart.Store == "redis" {
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	custommiddleware.RespondWithJSON(w, code, status)
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}
	if s.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.mongo.Disconnect(ctx); err != nil {
			s.logger.Error("Failed to disconnect mongo client", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
