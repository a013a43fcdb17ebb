package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/goliatone/go-router"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	auth "github.com/goliatone/go-task-auth"
	"github.com/goliatone/go-task-auth/activitymap"
	"github.com/goliatone/go-task-auth/config"
	"github.com/goliatone/go-task-auth/database"
	"github.com/goliatone/go-task-auth/logging"
	"github.com/goliatone/go-task-auth/metrics"
	"github.com/goliatone/go-task-auth/middleware/secure"
	"github.com/goliatone/go-task-auth/revocation"
	"github.com/goliatone/go-task-auth/transport/grpcauth"
)

func main() {
	settings := config.MustLoad(os.Getenv("CONFIG_FILE"))

	logger := logging.NewAdapter(logging.New(settings.Environment, settings.LogLevel))
	logger.Info("starting service", "settings", settings)

	ctx := context.Background()
	clock := auth.SystemClock

	db, dialect, err := database.Open(settings.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, dialect); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	repo := auth.NewRepositoryManager(db, auth.WithUsersClock(clock))
	repo.MustValidate()
	users := repo.Users()

	registry := metrics.NewRegistry()
	sink, err := metrics.NewSink(registry)
	if err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}
	activity := auth.MultiSink{
		sink,
		activitymap.NewLogSink(logger.With("component", "audit")),
	}

	health := auth.NewHealthChecker(settings.ProjectName, settings.Version,
		auth.PingCheck(auth.HealthCheckDatabase, users),
	)

	var store auth.RevocationStore = revocation.NewMemoryStore().WithClock(clock)
	if settings.RedisURL != "" {
		client, err := revocation.NewClient(settings.RedisURL)
		if err != nil {
			logger.Error("failed to configure redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		redisStore := revocation.NewRedisStore(client, revocation.WithRedisClock(clock))
		if err := redisStore.Ping(ctx); err != nil {
			logger.Warn("redis is not reachable", "error", err)
		}
		health.Add(auth.PingCheck(auth.HealthCheckRedis, redisStore))
		store = redisStore
	}

	authCfg, err := settings.AuthConfig()
	if err != nil {
		logger.Error("invalid token configuration", "error", err)
		os.Exit(1)
	}

	tokens, err := auth.NewTokenServiceFromConfig(authCfg, clock,
		auth.WithRevocationStore(store),
		auth.WithTokenServiceLogger(logger.With("component", "tokens")),
		auth.WithTokenActivitySink(activity),
	)
	if err != nil {
		logger.Error("failed to build token service", "error", err)
		os.Exit(1)
	}

	auther := auth.NewAuthenticator(tokens, users).
		WithLogger(logger.With("component", "authenticator")).
		WithActivitySink(activity)

	routes := auth.NewRouteAuthenticator(auther).
		WithLogger(logger.With("component", "http"))

	provider := auth.NewUserProvider(users, tokens).
		WithLogger(logger.With("component", "accounts")).
		WithActivitySink(activity)

	controller := auth.NewHTTPController(provider, tokens, routes, health).
		WithLogger(logger.With("component", "http"))

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		app := router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:           settings.ProjectName,
			UnescapePath:      true,
			EnablePrintRoutes: settings.Debug,
			StrictRouting:     false,
		}))
		app.Use(cors.New(cors.Config{
			AllowOrigins:     strings.Join(settings.CORSOrigins(), ","),
			AllowCredentials: true,
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		}))
		app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(registry)))
		return app
	})

	srv.Router().Use(secure.New())
	auth.RegisterRoutes(srv.Router(), settings.APIV1Str, controller)

	go func() {
		logger.Info("http server listening", "addr", settings.HTTPAddr)
		if err := srv.Serve(settings.HTTPAddr); err != nil {
			logger.Error("http server stopped", "error", err)
		}
	}()

	var rpc *grpc.Server
	if settings.GRPCAddr != "" {
		rpc = newGRPCServer(auther, logger.With("component", "grpc"))
		lis, err := net.Listen("tcp", settings.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen for grpc", "error", err)
			os.Exit(1)
		}
		go func() {
			logger.Info("grpc server listening", "addr", settings.GRPCAddr)
			if err := rpc.Serve(lis); err != nil {
				logger.Error("grpc server stopped", "error", err)
			}
		}()
	}

	sig := WaitExitSignal()
	logger.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if rpc != nil {
		rpc.GracefulStop()
	}
}

// newGRPCServer serves the standard health service behind the bearer
// interceptors. Health checks stay public, anything registered later
// requires a user.
func newGRPCServer(auther auth.Authenticator, logger auth.Logger) *grpc.Server {
	ic := grpcauth.New(auther,
		grpcauth.WithLogger(logger),
		grpcauth.WithDefaultMode(grpcauth.ModeRequired),
		grpcauth.WithMethodMode(healthpb.Health_Check_FullMethodName, grpcauth.ModePublic),
		grpcauth.WithMethodMode(healthpb.Health_Watch_FullMethodName, grpcauth.ModePublic),
	)

	rpc := grpc.NewServer(
		grpc.UnaryInterceptor(ic.Unary()),
		grpc.StreamInterceptor(ic.Stream()),
	)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(rpc, hs)
	return rpc
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
