package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unibox/config"
	"unibox/internal/handlers"
	"unibox/internal/provider"
	"unibox/internal/repositories"
	"unibox/internal/services"
	"unibox/internal/utils"
	"unibox/internal/wsnotify"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Unibox API
// @version 1.0
// @description Unified multi-channel (SMS/WhatsApp) inbox engine
// @host localhost:8081
// @BasePath /api/v1
func main() {
	root := &cobra.Command{
		Use:   "unibox",
		Short: "Unified multi-channel message inbox",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(drainCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// engine bundles the constructed services plus their shared resources.
type engine struct {
	cfg       *config.Config
	db        *sql.DB
	notifier  *wsnotify.Manager
	dispatch  *services.DispatchService
	scheduler *services.SchedulerService
	inbox     *services.InboxService
	ingest    *services.IngestService
}

// buildEngine constructs the provider client and services once and injects
// them everywhere, instead of each call site reading ambient configuration.
func buildEngine() (*engine, error) {
	cfg := config.NewConfig()

	db, err := config.ConnectDatabase()
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %v", err)
	}

	contacts := repositories.NewMySQLContactRepository(db)
	threads := repositories.NewMySQLThreadRepository(db)
	messages := repositories.NewMySQLMessageRepository(db)
	notes := repositories.NewMySQLNoteRepository(db)
	events := repositories.NewMySQLEventLogRepository(db)

	client := provider.NewClient(cfg.Provider)
	validator := provider.NewSignatureValidator(cfg.Provider.AuthToken)
	notifier := wsnotify.NewManager()

	return &engine{
		cfg:       cfg,
		db:        db,
		notifier:  notifier,
		dispatch:  services.NewDispatchService(contacts, threads, messages, events, client, notifier),
		scheduler: services.NewSchedulerService(threads, messages, events, client, notifier),
		inbox:     services.NewInboxService(threads, messages, notes, notifier),
		ingest:    services.NewIngestService(contacts, threads, messages, events, validator, notifier),
	}, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and realtime fanout",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			defer eng.db.Close()
			return runServer(eng)
		},
	}
}

func drainCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Dispatch all currently-due scheduled messages and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			defer eng.db.Close()

			if limit <= 0 {
				limit = eng.cfg.ScheduleBatchLimit
			}
			report, err := eng.scheduler.DrainDue(cmd.Context(), time.Now().UTC(), limit)
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(report)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max messages per drain batch")
	return cmd
}

func runServer(eng *engine) error {
	httpHandler := handlers.NewHTTPHandler(eng.dispatch, eng.scheduler, eng.inbox, eng.cfg.ScheduleBatchLimit)
	webhookHandler := handlers.NewWebhookHandler(eng.ingest, eng.cfg.WebhookTenantID, eng.cfg.PublicWebhookURL)

	router := mux.NewRouter().PathPrefix("/api/v1").Subrouter()

	// Routes the provider or browser hits directly, no auth headers.
	router.HandleFunc("/webhooks/provider", webhookHandler.HandleInbound).Methods("POST")
	router.HandleFunc("/ws", handlers.WebSocketHandler(eng.notifier))
	router.HandleFunc("/health", httpHandler.Health).Methods("GET")

	// Routes behind the auth collaborator.
	authed := router.NewRoute().Subrouter()
	authed.Use(handlers.WithAuth)
	authed.HandleFunc("/send", httpHandler.Send).Methods("POST", "OPTIONS")
	authed.HandleFunc("/schedule/run", httpHandler.RunSchedule).Methods("GET", "OPTIONS")
	authed.HandleFunc("/threads", httpHandler.ListThreads).Methods("GET", "OPTIONS")
	authed.HandleFunc("/threads/{threadId}", httpHandler.GetThread).Methods("GET", "OPTIONS")
	authed.HandleFunc("/threads/{threadId}/sidebar", httpHandler.GetSidebar).Methods("GET", "OPTIONS")
	authed.HandleFunc("/threads/{threadId}/read", httpHandler.MarkThreadRead).Methods("POST", "OPTIONS")
	authed.HandleFunc("/notes", httpHandler.CreateNote).Methods("POST", "OPTIONS")

	router.PathPrefix("/swagger-ui/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/api/v1/swagger/swagger.json"),
		httpSwagger.DeepLinking(true),
	))
	router.PathPrefix("/swagger/").Handler(
		http.StripPrefix("/api/v1/swagger/", http.FileServer(http.Dir("./docs"))))

	mainRouter := mux.NewRouter()
	mainRouter.Use(handlers.RequestLogger)
	mainRouter.PathPrefix("/api/v1").Handler(router)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tenant-ID", "X-User-ID", "X-Role"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	handler := c.Handler(mainRouter)

	server := &http.Server{
		Addr:    ":" + eng.cfg.Port,
		Handler: handler,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		utils.LogInfo("server listening on :%s", eng.cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	utils.LogInfo("shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		utils.LogError("error shutting down server: %v", err)
		return err
	}

	utils.LogInfo("server stopped")
	return nil
}
