package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/phantomsec/threatwatch/internal/alerts"
	"github.com/phantomsec/threatwatch/internal/classifier"
	"github.com/phantomsec/threatwatch/internal/config"
	"github.com/phantomsec/threatwatch/internal/installwatch"
	"github.com/phantomsec/threatwatch/internal/manualscan"
	"github.com/phantomsec/threatwatch/internal/models"
	"github.com/phantomsec/threatwatch/internal/observer"
	"github.com/phantomsec/threatwatch/internal/scheduler"
	"github.com/phantomsec/threatwatch/internal/settings"
	"github.com/phantomsec/threatwatch/internal/storage"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting ThreatWatch pipeline")

	// Initialize the scan-record archive. Without a storage account the
	// archive lives in memory and is lost on restart.
	var archive storage.StorageInterface
	if cfg.StorageAccount != "" {
		archive, err = storage.NewAzureStorage(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize storage: %v", err)
		}
	} else {
		logrus.Warn("No storage account configured, archiving scan records in memory")
		archive = storage.NewMemoryStorage()
	}

	// Alert channels
	var notifiers []alerts.Notifier
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.AlertEmail != "" {
		notifiers = append(notifiers, alerts.NewEmailNotifier(cfg.AlertEmail, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword))
	}
	dispatcher := alerts.NewDispatcher(notifiers...)

	// Remote classifier client
	scanClient := classifier.NewClient(cfg.ClassifierBaseURL, func() string {
		return cfg.ClassifierToken
	})

	// User settings, mutated only through the HTTP surface
	settingsStore := settings.NewStore()

	// Notification observer
	obs := observer.New(cfg, scanClient, dispatcher, settingsStore)

	// Install watcher with its two detection channels
	lister := installwatch.NewBridgeLister()
	var navigator installwatch.Navigator
	if cfg.NavigationURL != "" {
		navigator = installwatch.NewHTTPNavigator(cfg.NavigationURL)
	} else {
		navigator = installwatch.LogNavigator{}
	}
	watcher := installwatch.New(cfg, lister, navigator, dispatcher, settingsStore.NotificationsGranted)

	// Manual scan service
	manualService := manualscan.NewService(cfg, scanClient, archive)

	ctx, cancel := context.WithCancel(context.Background())
	obs.Start(ctx)
	watcher.Start(ctx)

	// Start the reconciliation poll
	schedulerService := scheduler.NewService(cfg, watcher)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Set up the HTTP surface: event bridge, manual scans, settings, alerts
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", metricsHandler(obs, scanClient)).Methods("GET")

	router.HandleFunc("/events/notification", notificationEventHandler(obs)).Methods("POST")
	router.HandleFunc("/events/package", packageEventHandler(watcher)).Methods("POST")
	router.HandleFunc("/packages", packagesHandler(lister)).Methods("PUT")

	router.HandleFunc("/scan", scanHandler(manualService)).Methods("POST")

	router.HandleFunc("/settings", getSettingsHandler(settingsStore)).Methods("GET")
	router.HandleFunc("/settings", putSettingsHandler(settingsStore)).Methods("PUT")

	router.HandleFunc("/alerts/pending", pendingAlertsHandler(dispatcher)).Methods("GET")
	router.HandleFunc("/alerts/{key}", dismissAlertHandler(dispatcher)).Methods("DELETE")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down...")

	// Stop the event loops and abort in-flight scans, then wait for them
	cancel()
	obs.Shutdown()
	watcher.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func metricsHandler(obs *observer.Observer, scanClient *classifier.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]interface{}{
			"pipeline": obs.Metrics().Snapshot(),
		}

		// Backend counters are best-effort; the endpoint must answer even
		// when the classifier is down.
		statsCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if stats, err := scanClient.Statistics(statsCtx); err == nil {
			payload["backend"] = stats
		}

		writeJSON(w, http.StatusOK, payload)
	}
}

func notificationEventHandler(obs *observer.Observer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var event models.NotificationEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid notification event"})
			return
		}

		select {
		case obs.Events() <- event:
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		default:
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "event queue full"})
		}
	}
}

func packageEventHandler(watcher *installwatch.Watcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var event models.PackageEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid package event"})
			return
		}

		select {
		case watcher.Events() <- event:
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		default:
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "event queue full"})
		}
	}
}

func packagesHandler(lister *installwatch.BridgeLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Packages []string `json:"packages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid package snapshot"})
			return
		}

		lister.Update(body.Packages)
		writeJSON(w, http.StatusOK, map[string]int{"packages": len(body.Packages)})
	}
}

func scanHandler(service *manualscan.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid scan request"})
			return
		}

		verdict, err := service.Scan(r.Context(), body.Text)
		switch {
		case errors.Is(err, manualscan.ErrEmptyText):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "scan text is empty"})
		case errors.Is(err, manualscan.ErrDuplicate):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "text was already scanned recently"})
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "scan failed"})
		default:
			writeJSON(w, http.StatusOK, verdict)
		}
	}
}

func getSettingsHandler(store *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, store.Snapshot())
	}
}

func putSettingsHandler(store *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Pointer fields so a partial update only touches the keys it names.
		var body struct {
			Authenticated        *bool `json:"authenticated"`
			AmbientAlerts        *bool `json:"ambient_alerts"`
			NotificationsGranted *bool `json:"notifications_granted"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid settings"})
			return
		}

		if body.Authenticated != nil {
			store.SetAuthenticated(*body.Authenticated)
		}
		if body.AmbientAlerts != nil {
			store.SetAmbientAlerts(*body.AmbientAlerts)
		}
		if body.NotificationsGranted != nil {
			store.SetNotificationsGranted(*body.NotificationsGranted)
		}

		writeJSON(w, http.StatusOK, store.Snapshot())
	}
}

func pendingAlertsHandler(dispatcher *alerts.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, dispatcher.Pending())
	}
}

func dismissAlertHandler(dispatcher *alerts.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := mux.Vars(r)["key"]
		dispatcher.Dismiss(key)
		writeJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}
