package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/redhat-et/script-archive/pkg/auth"
	"github.com/redhat-et/script-archive/pkg/logger"
	"github.com/redhat-et/script-archive/pkg/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the archive service",
	Long:  `Start the archive HTTP API on the configured port.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	otelShutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:       "archive-service",
		ServiceVersion:    version,
		Enabled:           cfg.OTel.Enabled,
		CollectorEndpoint: cfg.OTel.CollectorEndpoint,
		SampleRatio:       cfg.OTel.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer otelShutdown(ctx)

	log := logger.New(logger.ComponentArchive)
	authLog := logger.New(logger.ComponentAuth)
	events := newEventHub(log)

	// Every request carries its own account; the server signs its own writes.
	a, err := newApp(ctx, cfg, appOptions{
		Identity: auth.RequestIdentity{},
		Notifier: events,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	sessions := auth.NewSessionStore(cfg.OIDC.SessionTTL)
	defer sessions.Close()
	sessions.OnChange(events.SessionChanged)

	middleware := &auth.Middleware{
		MockMode: cfg.Service.MockIdentity,
		Sessions: sessions,
		Log:      authLog,
	}

	svc := &ArchiveServer{
		manager:   a.manager,
		pageSize:  cfg.Archive.PageSize,
		topThemes: cfg.Archive.TopThemes,
		log:       log,
	}

	mux := http.NewServeMux()
	svc.routes(mux)
	mux.Handle("GET /events", events)

	if cfg.OIDC.Enabled {
		provider, err := auth.NewOIDCProvider(ctx, cfg.OIDC)
		if err != nil {
			return fmt.Errorf("failed to initialize OIDC: %w", err)
		}
		states := auth.NewStateStore()
		defer states.Close()

		login := &auth.LoginHandlers{Provider: provider, Sessions: sessions, States: states, Log: authLog}
		mux.HandleFunc("GET /login", login.Login)
		mux.HandleFunc("GET /callback", login.Callback)
		mux.HandleFunc("POST /logout", login.Logout)
		middleware.Verifier = provider
		log.Info("OIDC login enabled", "issuer", cfg.OIDC.IssuerURL)
	}

	var handler http.Handler = middleware.Wrap(mux)
	if cfg.OTel.Enabled {
		handler = telemetry.WrapHandler(handler, "archive-service")
	}

	server := &http.Server{
		Addr:        cfg.Service.Addr(),
		Handler:     handler,
		ReadTimeout: 10 * time.Second,
		// No write timeout: /events streams for as long as the client stays.
	}

	// Start separate plain HTTP health server for Kubernetes probes
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", svc.handleHealth)
	healthMux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !a.ledger.Available(r.Context()) {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "ledger unavailable"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
	healthMux.Handle("/metrics", promhttp.Handler())
	healthServer := &http.Server{
		Addr:         cfg.Service.HealthAddr(),
		Handler:      healthMux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		log.Info("Shutting down archive service...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Shutdown error", "error", err)
		}
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Health server shutdown error", "error", err)
		}
		close(done)
	}()

	log.Section("STARTING ARCHIVE SERVICE")
	log.Info("Archive Service starting", "addr", cfg.Service.Addr())
	log.Info("Health server starting", "addr", cfg.Service.HealthAddr())
	log.Info("Ledger backend", "backend", cfg.Storage.Backend)
	log.Info("Mock identity", "enabled", cfg.Service.MockIdentity)

	if snap, err := a.manager.Reload(ctx); err == nil {
		log.Info("Loaded scripts", "count", len(snap.Scripts), "version", snap.Version)
	}

	go func() {
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Health server error", "error", err)
		}
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	log.Info("Archive service stopped")
	return nil
}
