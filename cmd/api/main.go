//go:generate go run github.com/google/wire/cmd/wire gen .
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/meowerlab/meower/core"
	"github.com/meowerlab/meower/x/agent"
	"github.com/meowerlab/meower/x/mew"
	"github.com/meowerlab/meower/x/ratelimit"
	"github.com/meowerlab/meower/x/util"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.7.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/plugin/opentelemetry/tracing"
)

type CustomHandler struct {
	slog.Handler
}

func (h *CustomHandler) Handle(ctx context.Context, r slog.Record) error {

	r.AddAttrs(slog.String("type", "app"))

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		r.AddAttrs(slog.String("traceID", span.SpanContext().TraceID().String()))
		r.AddAttrs(slog.String("spanID", span.SpanContext().SpanID().String()))
	}

	return h.Handler.Handle(ctx, r)
}

func main() {

	handler := &CustomHandler{Handler: slog.NewJSONHandler(os.Stdout, nil)}
	slogger := slog.New(handler)
	slog.SetDefault(slogger)

	buildInfo := util.GetBuildInfo()
	slog.Info(fmt.Sprintf("Meower %s (%s) starting...", buildInfo.Version, buildInfo.ShortHash()))

	config := util.DefaultConfig()
	configPath := os.Getenv("MEOWER_CONFIG")
	if configPath == "" {
		configPath = "/etc/meower/config.yaml"
	}

	err := config.Load(configPath)
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	config.ApplyEnv()

	e := echo.New()
	e.HidePort = true
	e.HideBanner = true
	e.HTTPErrorHandler = util.HTTPErrorHandler
	e.IPExtractor = ratelimit.IPExtractor(config.RateLimit.TrustedHops)

	if config.Server.EnableTrace {
		cleanup, err := setupTraceProvider(config.Server.TraceEndpoint, "meower", buildInfo.Version)
		if err != nil {
			panic(err)
		}
		defer cleanup()

		skipper := otelecho.WithSkipper(
			func(c echo.Context) bool {
				return c.Path() == "/metrics" || c.Path() == "/health"
			},
		)
		e.Use(otelecho.Middleware("api", skipper))
	}

	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace: "meower",
		LabelFuncs: map[string]echoprometheus.LabelValueFunc{
			"url": func(c echo.Context, err error) string {
				return "REDACTED"
			},
		},
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/health"
		},
	}))

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             300 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(config.Server.Dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		panic("failed to connect database")
	}
	sqlDB, err := db.DB() // for pinging
	if err != nil {
		panic("failed to connect database")
	}
	defer sqlDB.Close()

	err = db.Use(tracing.NewPlugin(
		tracing.WithDBName("postgres"),
	))
	if err != nil {
		panic("failed to setup tracing plugin")
	}

	slog.Info("start migrate")
	err = db.AutoMigrate(&core.Mew{})
	if err != nil {
		panic(fmt.Sprintf("failed to migrate: %v", err))
	}

	var rdb *redis.Client
	if config.Server.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     config.Server.RedisAddr,
			Password: "", // no password set
			DB:       0,  // use default DB
		})
		defer rdb.Close()

		err = redisotel.InstrumentTracing(
			rdb,
			redisotel.WithAttributes(
				attribute.KeyValue{
					Key:   "db.name",
					Value: attribute.StringValue("redis"),
				},
			),
		)
		if err != nil {
			panic("failed to setup tracing plugin")
		}
	}

	var mc *memcache.Client
	if config.Server.MemcachedAddr != "" {
		mc = memcache.New(config.Server.MemcachedAddr)
		defer mc.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter, err := SetupRateLimiter(rdb, config)
	if err != nil {
		panic(fmt.Sprintf("failed to setup rate limiter: %v", err))
	}
	prometheus.MustRegister(ratelimit.Collectors()...)

	moderator, err := SetupModerator(config)
	if err != nil {
		panic(fmt.Sprintf("failed to setup moderator: %v", err))
	}

	mewService := SetupMewService(db, mc, limiter, moderator)
	mewHandler := mew.NewHandler(mewService)

	mew.RegisterRoutes(e, mewHandler)

	e.GET("/health", func(c echo.Context) (err error) {
		ctx := c.Request().Context()

		err = sqlDB.PingContext(ctx)
		if err != nil {
			return c.String(http.StatusInternalServerError, "db error")
		}

		if rdb != nil {
			err = rdb.Ping(ctx).Err()
			if err != nil {
				return c.String(http.StatusInternalServerError, "redis error")
			}
		}

		return c.String(http.StatusOK, "ok")
	})

	prometheus.MustRegister(agent.Collectors()...)
	agent.NewAgent(mewService, limiter, config).Boot(ctx)

	e.GET("/metrics", echoprometheus.NewHandler())

	go func() {
		slog.Info(fmt.Sprintf("listening on %s", config.Server.Listen))
		err := e.Start(config.Server.Listen)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
}

func setupTraceProvider(endpoint string, serviceName string, serviceVersion string) (func(), error) {

	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)

	if err != nil {
		return nil, err
	}

	resource := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(serviceVersion),
	)

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(resource),
	)
	otel.SetTracerProvider(tracerProvider)

	propagator := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(propagator)

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			slog.Error(fmt.Sprintf("Failed to shutdown tracer provider: %v", err))
		}
	}
	return cleanup, nil
}
