package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/parishops/flock/pkg/api"
	"github.com/parishops/flock/pkg/config"
	"github.com/parishops/flock/pkg/crypto"
	"github.com/parishops/flock/pkg/events"
	"github.com/parishops/flock/pkg/groups"
	"github.com/parishops/flock/pkg/logging"
	"github.com/parishops/flock/pkg/models"
	"github.com/parishops/flock/pkg/session"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load("config.yaml", Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("api_base_url", cfg.APIBaseURL),
		zap.Duration("idle_timeout", cfg.IdleTimeout),
		zap.Duration("status_check_interval", cfg.StatusCheckInterval),
		zap.String("version", cfg.Version))

	client, err := api.New(cfg.APIBaseURL, nil, logger)
	if err != nil {
		logger.Fatal("Failed to build API client", zap.Error(err))
	}

	store := session.NewFileStore(cfg.CredentialsPath)
	if cfg.CredentialsKey != "" {
		sealer, err := crypto.NewSessionSealer(cfg.CredentialsKey)
		if err != nil {
			logger.Fatal("Failed to build session sealer", zap.Error(err))
		}
		store = session.NewSealedFileStore(cfg.CredentialsPath, sealer)
	}
	sess := session.NewManager(client.Auth, store, session.NopNavigator{}, cfg.IdleTimeout, logger)
	client.SetTokenSource(sess)
	client.SetUnauthorizedHandler(sess.HandleUnauthorized)

	groupSvc := groups.NewService(client.Groups, sess, logger)
	eventSvc := events.NewService(client.Events, client.People, sess, logger)
	sess.OnLogout(groupSvc.Clear)
	sess.OnLogout(eventSvc.Clear)

	if !sess.Restore() {
		logger.Warn("No persisted session; log in through the UI before starting the agent")
	}

	groupSvc.StartAutoRefresh(cfg.RefreshInterval)
	eventSvc.StartStatusPolling(cfg.StatusCheckInterval, cfg.RefreshInterval, models.EventFilter{})
	defer groupSvc.Stop()
	defer eventSvc.Stop()

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			logger.Info("Serving metrics", zap.String("addr", cfg.MetricsAddr))
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error("Metrics server stopped", zap.Error(err))
			}
		}()
	}

	logger.Info("flock agent started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
}
