package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gridbalance/internal/audit"
	"gridbalance/internal/auth"
	"gridbalance/internal/balance/application"
	"gridbalance/internal/balance/application/events"
	balancerepo "gridbalance/internal/balance/infrastructure/postgres"
	balancehttp "gridbalance/internal/balance/interfaces/http"
	"gridbalance/internal/eventing"
	"gridbalance/internal/notify"
	"gridbalance/internal/observability/metrics"
	"gridbalance/internal/reeadapter"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	recordRepo, err := balancerepo.NewRecordRepository(db)
	if err != nil {
		logger.Fatalf("record repository error: %v", err)
	}

	client, err := reeadapter.NewClient(cfg.REEBaseURL, reeadapter.WithTimeout(cfg.FetchTimeout))
	if err != nil {
		logger.Fatalf("ree client error: %v", err)
	}

	bus := eventing.NewInMemoryBus()
	eventing.SubscribeTo(bus, func(_ context.Context, event events.IngestCompleted) error {
		logger.Printf("ingest %s: status=%s saved=%d window=%s..%s",
			event.Granularity, event.Status, event.SavedCount,
			event.Start.Format(time.RFC3339), event.End.Format(time.RFC3339))
		return nil
	})
	eventing.SubscribeTo(bus, func(_ context.Context, event events.IngestFailed) error {
		logger.Printf("ingest %s failed: kind=%s %s", event.Granularity, event.Kind, event.Message)
		return nil
	})
	if cfg.AlertWebhookURL != "" {
		notifier := notify.NewWebhookNotifier(cfg.AlertWebhookURL)
		eventing.SubscribeTo(bus, func(ctx context.Context, event events.IngestFailed) error {
			alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.AlertTimeout)
			defer cancel()
			if err := notifier.Notify(alertCtx, notify.IngestAlert{
				Granularity: event.Granularity,
				Kind:        event.Kind,
				Message:     event.Message,
				WindowStart: event.Start,
				WindowEnd:   event.End,
				OccurredAt:  event.OccurredAt,
			}); err != nil {
				logger.Printf("alert webhook error: %v", err)
			}
			return nil
		})
	}

	ingestService, err := application.NewIngestService(client, recordRepo, bus, logger)
	if err != nil {
		logger.Fatalf("ingest service error: %v", err)
	}

	ingestCfg, err := application.LoadConfig()
	if err != nil {
		logger.Fatalf("ingest config error: %v", err)
	}
	manager, err := application.NewSchedulerManager(ingestCfg, ingestService, logger)
	if err != nil {
		logger.Fatalf("scheduler manager error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	manager.Initialize(ctx)

	handlerOpts := []balancehttp.HandlerOption{}
	if auditRepo != nil {
		handlerOpts = append(handlerOpts, balancehttp.WithAuditLogger(auditRepo))
	}
	balanceHandler, err := balancehttp.NewHandler(manager, recordRepo, handlerOpts...)
	if err != nil {
		logger.Fatalf("balance handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/ingest/fetch", balanceHandler)
	mux.Handle("/api/v1/ingest/status", balanceHandler)
	mux.Handle("/api/v1/balances", balanceHandler)
	mux.Handle("/api/v1/balances/export", balanceHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")
	manager.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown error: %v", err)
	}
}

type config struct {
	DatabaseURL     string
	HTTPAddr        string
	REEBaseURL      string
	FetchTimeout    time.Duration
	AlertWebhookURL string
	AlertTimeout    time.Duration
	JWTSecret       string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:     getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		REEBaseURL:      getenvDefault("REE_BASE_URL", ""),
		FetchTimeout:    getenvDuration("REE_FETCH_TIMEOUT", 30*time.Second),
		AlertWebhookURL: getenvDefault("ALERT_WEBHOOK_URL", ""),
		AlertTimeout:    getenvDuration("ALERT_WEBHOOK_TIMEOUT", 5*time.Second),
		JWTSecret:       getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
