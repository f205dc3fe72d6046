package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/farmstand/api/internal/handlers"
	"github.com/farmstand/api/internal/platform/auth"
	"github.com/farmstand/api/internal/platform/config"
	pfirestore "github.com/farmstand/api/internal/platform/firestore"
	"github.com/farmstand/api/internal/platform/idempotency"
	"github.com/farmstand/api/internal/platform/jobs"
	"github.com/farmstand/api/internal/platform/observability"
	"github.com/farmstand/api/internal/platform/secrets"
	"github.com/farmstand/api/internal/repositories"
	firestoreRepo "github.com/farmstand/api/internal/repositories/firestore"
	"github.com/farmstand/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets("Auth.JWTSecret"),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	var eventPublisher *jobs.PubSubEventPublisher
	var eventTopic *pubsub.Topic
	if cfg.Features.EnableOrderEvents {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		eventTopic = pubsubClient.Topic(cfg.PubSub.OrderEventsTopic)
		eventPublisher, err = jobs.NewPubSubEventPublisher(eventTopic)
		if err != nil {
			logger.Fatal("failed to initialise event publisher", zap.Error(err))
		}
	}
	defer func() {
		if eventTopic != nil {
			eventTopic.Stop()
		}
	}()

	cartRepo, err := firestoreRepo.NewCartRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise cart repository", zap.Error(err))
	}
	storeProductRepo, err := firestoreRepo.NewStoreProductRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise store product repository", zap.Error(err))
	}
	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	counterRepo, err := firestoreRepo.NewCounterRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise counter repository", zap.Error(err))
	}
	productRepo, err := firestoreRepo.NewProductRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}
	saleRepo, err := firestoreRepo.NewSaleRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise sale repository", zap.Error(err))
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Carts:           cartRepo,
		StoreProducts:   storeProductRepo,
		Clock:           time.Now,
		MaxLineQuantity: cfg.Orders.MaxLineQuantity,
		Logger:          serviceLogger(logger.Named("cart")),
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}

	orderDeps := services.OrderServiceDeps{
		Orders:        orderRepo,
		StoreProducts: storeProductRepo,
		Carts:         cartRepo,
		Counters:      counterRepo,
		Clock:         time.Now,
		IDGenerator:   func() string { return "ord_" + ulid.Make().String() },
		Logger:        serviceLogger(logger.Named("orders")),
	}
	if eventPublisher != nil {
		orderDeps.Events = eventPublisher
	}
	orderService, err := services.NewOrderService(orderDeps)
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	saleDeps := services.SaleServiceDeps{
		Sales:       saleRepo,
		Products:    productRepo,
		Clock:       time.Now,
		IDGenerator: func() string { return "sale_" + ulid.Make().String() },
		Logger:      serviceLogger(logger.Named("sales")),
	}
	if eventPublisher != nil {
		saleDeps.Events = eventPublisher
	}
	saleService, err := services.NewSaleService(saleDeps)
	if err != nil {
		logger.Fatal("failed to initialise sale service", zap.Error(err))
	}

	storefrontService, err := services.NewStorefrontService(services.StorefrontServiceDeps{
		StoreProducts: storeProductRepo,
		Logger:        serviceLogger(logger.Named("storefront")),
	})
	if err != nil {
		logger.Fatal("failed to initialise storefront service", zap.Error(err))
	}

	systemService, err := newSystemService(firestoreClient, counterRepo, eventTopic)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	verifier, err := auth.NewJWTVerifier(cfg.Auth.JWTSecret,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithLeeway(cfg.Auth.Leeway),
	)
	if err != nil {
		logger.Fatal("failed to initialise jwt verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(verifier)

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	var cleanupTicker *time.Ticker
	if cfg.Idempotency.CleanupInterval > 0 {
		cleanupTicker = time.NewTicker(cfg.Idempotency.CleanupInterval)
		cleanupWG.Add(1)
		go func() {
			defer cleanupWG.Done()
			cleanupLogger := logger.Named("idempotency")
			for {
				select {
				case <-cleanupTicker.C:
					runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
					removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					cancel()
					if err != nil {
						cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
					}
				case <-cleanupCtx.Done():
					return
				}
			}
		}()
	}

	projectID := strings.TrimSpace(cfg.Firestore.ProjectID)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	cartHandlers := handlers.NewCartHandlers(authenticator, cartService)
	orderHandlers := handlers.NewOrderHandlers(authenticator, orderService)
	adminOrderHandlers := handlers.NewAdminOrderHandlers(authenticator, orderService)
	saleHandlers := handlers.NewSaleHandlers(authenticator, saleService)
	storeProductHandlers := handlers.NewStoreProductHandlers(storefrontService)
	healthHandlers := handlers.NewHealthHandlers(systemService)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithPublicRoutes(storeProductHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithAdminOrderRoutes(adminOrderHandlers.Routes),
		handlers.WithAdminSaleRoutes(saleHandlers.Routes),
		handlers.WithWriteMiddlewares(idempotencyMiddleware),
	)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	if cleanupTicker != nil {
		cleanupTicker.Stop()
	}
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// serviceLogger adapts the service logging callback onto a named zap logger.
func serviceLogger(logger *zap.Logger) func(context.Context, string, map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug("service log", zFields...)
	}
}

func newSystemService(client *firestore.Client, counters repositories.CounterRepository, topic *pubsub.Topic) (services.SystemService, error) {
	checks := make([]repositories.DependencyCheck, 0, 2)
	if client != nil {
		c := client
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := c.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if topic != nil {
		t := topic
		checks = append(checks, repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				exists, err := t.Exists(ctx)
				if err != nil {
					if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
						return errors.New("topic not found")
					}
					return err
				}
				if !exists {
					return errors.New("topic not found")
				}
				return nil
			},
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Counters:         counters,
		Clock:            time.Now,
	})
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		if value, ok := env[key]; ok {
			return strings.TrimSpace(value)
		}
		return ""
	}

	envLabel := strings.ToLower(lookup("API_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIRESTORE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}
	credentialsFile := lookup("API_SECRET_CREDENTIALS_FILE")

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}
