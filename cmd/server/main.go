package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/splitlive/internal/async"
	"github.com/mmynk/splitlive/internal/auth"
	"github.com/mmynk/splitlive/internal/config"
	"github.com/mmynk/splitlive/internal/metrics"
	"github.com/mmynk/splitlive/internal/middleware"
	"github.com/mmynk/splitlive/internal/notify"
	"github.com/mmynk/splitlive/internal/service"
	"github.com/mmynk/splitlive/internal/session"
	"github.com/mmynk/splitlive/internal/storage/sqlite"
	"github.com/mmynk/splitlive/pkg/api/apiconnect"
	"github.com/mmynk/splitlive/pkg/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel)

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("Storage initialized", "database", cfg.DBPath)

	secret := cfg.OwnerSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn("AUTH_OWNER_SECRET not set, owner tokens will not survive a restart")
	}
	tokens := auth.NewTokenManager(secret)

	// Summaries go out over WhatsApp when Twilio is configured.
	var sender notify.Sender = notify.LogSender{Logger: logger}
	if cfg.TwilioEnabled() {
		sender = notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom, logger)
		logger.Info("WhatsApp summaries enabled", "from", cfg.TwilioWhatsAppFrom)
	}
	dispatcher := notify.NewDispatcher(sender, logger)
	queue := async.NewQueue(dispatcher.Deliver, logger, async.WithWorkers(cfg.NotifyWorkers))
	dispatcher.SetQueue(queue)

	manager := session.NewManager(store, tokens,
		session.WithTTL(cfg.SessionTTL),
		session.WithLogger(logger),
		session.WithFinalizeHook(dispatcher.OnFinalize),
	)

	sweeper, err := session.NewSweeper(manager, cfg.SweepSchedule)
	if err != nil {
		logger.Error("Failed to schedule expiry sweep", "error", err)
		os.Exit(1)
	}
	sweeper.Start()

	registry := metrics.NewRegistry()
	mux := http.NewServeMux()

	path, handler := apiconnect.NewSessionServiceHandler(
		service.NewSessionService(manager, tokens, logger),
		connect.WithInterceptors(
			middleware.MetricsInterceptor(),
			middleware.Identify(tokens),
			middleware.LoggingInterceptor(logger),
		),
	)
	mux.Handle(path, handler)
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Wrap with h2c for HTTP/2 without TLS (required for Connect streaming clients)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2c.NewHandler(loggingMiddleware(logger, corsMiddleware(cfg.AllowedOrigin, mux)), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Connect server starting", "address", cfg.Addr, "session_ttl", cfg.SessionTTL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	<-sweeper.Stop().Done()
	queue.Shutdown(shutdownCtx)
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// loggingMiddleware logs every HTTP request at debug level; RPC outcomes
// are logged by middleware.LoggingInterceptor.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms, Authorization, "+apiconnect.ParticipantIDHeader)
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
