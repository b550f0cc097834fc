// Package main is the entry point for the widget gateway.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dmc-digital/chat-session-engine/internal/api"
	"github.com/dmc-digital/chat-session-engine/internal/config"
	"github.com/dmc-digital/chat-session-engine/internal/handler"
	"github.com/dmc-digital/chat-session-engine/internal/middleware"
	natschannel "github.com/dmc-digital/chat-session-engine/internal/nats"
	"github.com/dmc-digital/chat-session-engine/internal/service"
	"github.com/dmc-digital/chat-session-engine/internal/transport"
	"github.com/dmc-digital/chat-session-engine/internal/widget"
	"github.com/dmc-digital/chat-session-engine/pkg/logger"
	"github.com/dmc-digital/chat-session-engine/pkg/tracing"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting widget gateway")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chat-session-engine", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Conversation API client
	conversation := api.NewClient(cfg.ChatAPIBaseURL, cfg.ChatAPITimeout, log)

	// Realtime push channel. Optional: without a broker every session
	// stays on snapshot polling.
	var channel transport.Channel
	if cfg.NATSURL != "" {
		channel = natschannel.NewChannel(cfg.NATSURL, log)
		log.Info("realtime channel configured", zap.String("url", cfg.NATSURL))
	} else {
		log.Info("no realtime channel configured, sessions will poll")
	}

	welcome := widget.DefaultWelcomePolicy()
	if cfg.WelcomeMessage != "" {
		welcome.Message = cfg.WelcomeMessage
	}

	manager := service.NewManager(service.ManagerConfig{
		Conversation: conversation,
		Channel:      channel,
		PollInterval: cfg.PollInterval,
		Welcome:      welcome,
		Logger:       log,
	})
	go manager.RunSweeper(ctx, cfg.SessionIdleTTL, cfg.SweepInterval)

	healthHandler := handler.NewHealthHandler(manager)
	widgetHandler := handler.NewWidgetHandler(manager, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Visitor-ID"},
		ExposedHeaders:   []string{"X-Correlation-ID", "X-Visitor-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.EmbedAuth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/widget", func(r chi.Router) {
			r.Post("/", widgetHandler.Open)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", widgetHandler.State)
				r.Delete("/", widgetHandler.Close)
				r.Get("/events", widgetHandler.Events)

				r.Post("/menus/{menuID}", widgetHandler.SelectMenu)
				r.Post("/options/{optionID}", widgetHandler.SelectOption)
				r.Post("/back", widgetHandler.GoBack)
				r.Post("/messages", widgetHandler.SendMessage)
				r.Post("/finalize", widgetHandler.Finalize)
				r.Post("/restart", widgetHandler.Restart)
			})
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
