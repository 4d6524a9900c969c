package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/growagarden/gagstock-bot/internal/api"
	"github.com/growagarden/gagstock-bot/internal/api/handlers"
	"github.com/growagarden/gagstock-bot/internal/bot"
	"github.com/growagarden/gagstock-bot/internal/bot/commands"
	"github.com/growagarden/gagstock-bot/internal/config"
	"github.com/growagarden/gagstock-bot/internal/database"
	"github.com/growagarden/gagstock-bot/internal/graph"
	"github.com/growagarden/gagstock-bot/internal/session"
	"github.com/growagarden/gagstock-bot/internal/stock"
	"github.com/growagarden/gagstock-bot/internal/store"
)

func main() {
	// Config document path
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.json"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	if err := database.Initialize(cfg.DBPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize services
	dataStore := store.NewStore(database.GetDB())
	fetcher := stock.NewFetcher(cfg.StockAPIURL, cfg.WeatherAPIURL)
	graphClient := graph.NewClient(cfg.PageAccessToken, cfg.GraphAPIVersion)
	runtime := bot.NewRuntime(graphClient, cfg, log.Default())

	// Initialize the session engine
	registry := session.NewRegistry()
	engine := session.NewEngine(registry, fetcher, runtime, dataStore, session.Config{
		Interval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
		Backoff:  time.Duration(cfg.BackoffSeconds) * time.Second,
	})

	// Static command registry
	dispatcher := bot.NewDispatcher(cfg.Prefix)
	dispatcher.Register(commands.NewGagstock(engine, dataStore, fetcher))
	dispatcher.Register(commands.NewGagstockfav(engine, dataStore))
	dispatcher.Register(commands.Echo{})
	dispatcher.Register(commands.Hello{})
	dispatcher.Register(commands.Delete{})
	dispatcher.Register(commands.Edit{})
	dispatcher.Register(commands.NewProfile(runtime))
	dispatcher.Register(commands.NewHelp(dispatcher.CommandNames))

	// Postback button routing
	postbacks := bot.NewPostbackRouter()
	commands.RegisterPostbacks(postbacks, engine)

	// Setup router
	webhookHandler := handlers.NewWebhookHandler(cfg.VerifyToken, dispatcher, postbacks, runtime)
	router := api.SetupRouter(webhookHandler)

	// Create HTTP server for graceful shutdown
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Tear down every active polling session before the server stops
	engine.StopAll()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
