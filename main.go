package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"messaging-service/internal/auth"
	"messaging-service/internal/cache"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/handlers"
	"messaging-service/internal/health"
	"messaging-service/internal/logging"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/services"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

const (
	auditRoutingKey = "audit.messages"
	shutdownTimeout = 10 * time.Second
	limiterIdle     = 10 * time.Minute
	healthInterval  = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("production", "info")
		bootLog.Fatal().Err(err).Msg("load config")
	}

	log := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("messaging service stopped")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.AppEnv)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	database, err := db.Connect(ctx, cfg.DSN, cfg.Migrate)
	if err != nil {
		return err
	}
	defer database.Close()

	redisClient := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Info().
		Str("mode", rabbitmq.PublisherMode(publisher)).
		Str("reason", rabbitmq.PublisherNoopReason(publisher)).
		Msg("event publisher ready")
	audit := telemetry.NewAuditEmitter(publisher, auditRoutingKey, cfg.ServiceName, cfg.AppEnv, log)

	messageRepo := repositories.NewMessageRepo(database)
	userRepo := cache.NewUsers(repositories.NewUserRepo(database), redisClient, cfg.ProfileCacheTTL, log)
	postRepo := repositories.NewPostRepo(database)

	registry := presence.NewRegistry()
	hub := ws.NewHub(registry, ws.HubConfig{
		SendBuffer:   cfg.WSSendBuffer,
		RequireToken: cfg.WSRequireToken,
	}, log)

	verifier := auth.NewJWTVerifier(cfg.JWTSecret)
	messageHandler := handlers.NewMessageHandler(
		services.NewDeliveryService(messageRepo, userRepo, postRepo, hub, cfg.ShareConcurrency, log),
		services.NewConversationService(userRepo, messageRepo, log),
		services.NewHistoryService(messageRepo),
		audit,
		log,
	)
	wsHandler := ws.NewHandler(hub, verifier, cfg.ClientURL, log)

	healthServer := health.NewServer(cfg.ServiceName, log)
	healthServer.AddCheck("postgres", database.PingContext)
	if redisClient != nil {
		healthServer.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(cfg.ServiceName),
		middleware.RequestID(),
		logging.RequestLogger(log),
		middleware.CORS(cfg.ClientURL),
		observability.HTTPMetricsMiddleware(),
	)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", healthServer.Handler())
	router.GET("/ws", wsHandler.Handle)
	if cfg.DebugRoutes {
		handlers.NewDebugHandler(hub, registry, audit).Register(router.Group("/debug"))
	}

	api := router.Group("/api/messages", middleware.RateLimit(limiter), middleware.AuthMiddleware(verifier))
	messageHandler.Register(api)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcLis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.GRPCHealthAddr).Msg("grpc health server listening")
		return healthServer.Serve(grpcLis)
	})
	g.Go(func() error {
		healthServer.Watch(gctx, healthInterval)
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				limiter.Prune(limiterIdle)
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		hub.Shutdown()
		healthServer.Stop()
		return err
	})

	return g.Wait()
}
