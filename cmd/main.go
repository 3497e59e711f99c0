package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YelzhanWeb/opskitchen/internal/adapter/logger"
	"github.com/YelzhanWeb/opskitchen/internal/adapter/rabbitmq"
	"github.com/YelzhanWeb/opskitchen/internal/adapter/rest"
	"github.com/YelzhanWeb/opskitchen/internal/app/alerts"
	"github.com/YelzhanWeb/opskitchen/internal/app/kitchen"
	"github.com/YelzhanWeb/opskitchen/internal/app/reconcile"
	"github.com/YelzhanWeb/opskitchen/internal/config"
	"github.com/YelzhanWeb/opskitchen/internal/domain"
	"github.com/YelzhanWeb/opskitchen/internal/interfaces"

	amqpAdapter "github.com/YelzhanWeb/opskitchen/internal/adapter/amqp"
	httpAdapter "github.com/YelzhanWeb/opskitchen/internal/adapter/http"
)

func main() {
	mode := flag.String("mode", "", "View mode: order-board, kitchen-display")
	port := flag.Int("port", 3000, "HTTP port for the board endpoints")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	noSound := flag.Bool("no-sound", false, "Disable notification sounds")
	flag.Parse()

	if *mode != "order-board" && *mode != "kitchen-display" {
		log.Fatal("--mode must be order-board or kitchen-display")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lgr := logger.New(*mode)

	// REST collaborator and shared reconciled collection
	orderClient := rest.NewClient(cfg.Server, lgr)
	store := reconcile.NewStore()

	engineOpts := reconcile.Options{}
	if *mode == "kitchen-display" {
		engineOpts.Relevant = reconcile.KitchenWindow
		engineOpts.CancelledGrace = time.Duration(cfg.Sync.CancelledGraceSeconds) * time.Second
	}
	engine := reconcile.NewEngine(store, orderClient, lgr, engineOpts)
	defer engine.Close()

	// Notifications
	dispatcher := alerts.NewDispatcher(alerts.NewConsoleNotifier(os.Stdout), lgr)
	dispatcher.SetSoundEnabled(!*noSound)

	// Kitchen projection (kitchen mode only)
	var projection *kitchen.Projection
	var rush interfaces.RushMarker
	var queues interfaces.QueueSource
	if *mode == "kitchen-display" {
		projection = kitchen.NewProjection(store, lgr, kitchen.Options{
			RushThreshold:   time.Duration(cfg.Kitchen.RushThresholdMinutes) * time.Minute,
			RefreshInterval: time.Duration(cfg.Kitchen.RefreshIntervalSeconds) * time.Second,
		})
		defer projection.Close()
		rush = projection
		queues = projection
	}

	// Event channel
	router := reconcile.NewRouter(engine, dispatcher, rush)
	eventHandler := amqpAdapter.NewEventHandler(router, lgr)
	manager := rabbitmq.NewManager(cfg.RabbitMQ, eventHandler.HandleEvent, lgr)

	if err := manager.Start(ctx); err != nil {
		// Missing credential is terminal for the session; everything else is
		// handled by the manager's own reconnect loop.
		log.Fatalf("Failed to start event channel: %v", err)
	}
	defer manager.Close()

	manager.JoinLocation(cfg.Sync.LocationID)
	if *mode == "kitchen-display" {
		manager.JoinKitchen(cfg.Sync.LocationID)
	}

	// Seed the collection from the authoritative snapshot. A failed snapshot
	// is not fatal: the event stream plus backfills converge on their own.
	seed(ctx, *mode, cfg.Sync.LocationID, orderClient, engine, lgr)

	lgr.Info("service_started", fmt.Sprintf("%s started on port %d", *mode, *port), "startup", map[string]interface{}{
		"port":     *port,
		"location": cfg.Sync.LocationID,
	})

	runServer(ctx, cancel, *port, store, queues, manager, lgr)
}

func seed(ctx context.Context, mode, locationID string, client *rest.Client, engine *reconcile.Engine, lgr logger.Logger) {
	if locationID == "" {
		lgr.Info("seed_skipped", "No location configured, starting from the event stream only", "startup", nil)
		return
	}

	var (
		orders []domain.Order
		err    error
	)
	if mode == "kitchen-display" {
		orders, err = client.ListKitchenOrders(ctx, locationID)
	} else {
		orders, err = client.ListOrders(ctx, locationID, nil)
	}
	if err != nil {
		lgr.Error("seed_failed", "Failed to fetch order snapshot", "startup", nil, err)
		return
	}

	engine.Seed(orders)
	lgr.Info("seed_loaded", "Order snapshot loaded", "startup", map[string]interface{}{
		"orders": len(orders),
	})
}

func runServer(ctx context.Context, cancel context.CancelFunc, port int, store *reconcile.Store, queues interfaces.QueueSource, manager *rabbitmq.Manager, lgr logger.Logger) {
	boardHandler := httpAdapter.NewBoardHandler(store, queues, manager, lgr)

	mux := http.NewServeMux()
	mux.HandleFunc("/orders", boardHandler.GetOrders)
	mux.HandleFunc("/kitchen/queues", boardHandler.GetKitchenQueues)
	mux.HandleFunc("/health", boardHandler.GetHealth)

	handler := httpAdapter.LoggingMiddleware(lgr)(mux)
	handler = httpAdapter.RecoveryMiddleware(lgr)(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		lgr.Info("shutdown_initiated", "Shutting down", "shutdown", nil)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			lgr.Error("shutdown_error", "Error during shutdown", "shutdown", nil, err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		lgr.Error("server_error", "Server error", "runtime", nil, err)
	}
}
