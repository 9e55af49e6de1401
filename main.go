package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"encrypted_match/mxe"
	"encrypted_match/routes"
	"encrypted_match/services"
	"encrypted_match/socket"
	"encrypted_match/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg, err := utils.LoadConfig(os.Getenv)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var awsCfg aws.Config
	if cfg.SessionStore == utils.StoreDynamoDB || cfg.ReceiptsBucket != "" {
		if awsCfg, err = services.LoadAWSConfig(ctx, cfg.AWSRegion); err != nil {
			log.Fatalf("Failed to load AWS config: %v", err)
		}
	}

	// Session store
	var store services.SessionStore
	if cfg.SessionStore == utils.StoreMemory {
		log.Println("⚠️ Using the in-memory session store, sessions are lost on restart")
		store = services.NewMemorySessionStore()
	} else {
		log.Println("Initializing DynamoDB client...")
		dynamoService := &services.DynamoService{Client: services.InitializeDynamoDBClient(awsCfg)}
		store = &services.DynamoSessionStore{Dynamo: dynamoService, Table: cfg.MatchSessionsTable}
		log.Printf("DynamoDB client initialized, table %s.", cfg.MatchSessionsTable)
	}

	// Confidential engine
	engine, err := mxe.NewLocalEngine(mxe.EngineConfig{
		Secret:    cfg.MXESecret,
		Workers:   cfg.EngineWorkers,
		QueueSize: cfg.EngineQueueSize,
	})
	if err != nil {
		log.Fatalf("Failed to create confidential engine: %v", err)
	}
	// Close drains the engine after the HTTP server has stopped.
	engine.Start(context.Background())

	identity, err := services.NewIdentity(cfg.ParticipantKey)
	if err != nil {
		log.Fatalf("Invalid participant key: %v", err)
	}

	// Notifications
	socketServer := socket.NewSocketServer()
	go func() {
		if err := socketServer.Serve(); err != nil {
			log.Printf("❌ Socket server stopped: %v", err)
		}
	}()
	notifiers := services.Notifiers{services.LogNotifier{}, socket.NewBroadcaster(socketServer)}

	var receipts *services.ReceiptArchive
	if cfg.ReceiptsBucket != "" {
		receipts = services.NewReceiptArchive(awsCfg, cfg.ReceiptsBucket)
		notifiers = append(notifiers, receipts)
		log.Printf("🧾 Receipts are stored in bucket %s", cfg.ReceiptsBucket)
	}

	sessionService := &services.MatchSessionService{
		Store:          store,
		Engine:         engine,
		Identity:       identity,
		Notifier:       notifiers,
		FinalizePolicy: cfg.FinalizePolicy,
	}

	monitor, err := sessionService.StartComputationMonitor(cfg.MonitorInterval, cfg.StaleComputationAfter)
	if err != nil {
		log.Fatalf("Failed to start computation monitor: %v", err)
	}

	// Initialize the router
	r := mux.NewRouter()
	routes.RegisterRoutes(r)
	routes.RegisterSessionRoutes(r, sessionService, receipts)
	r.PathPrefix("/socket.io/").Handler(socketServer)

	// Add CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s...", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	if err := monitor.Shutdown(); err != nil {
		log.Printf("Monitor shutdown error: %v", err)
	}
	if err := socketServer.Close(); err != nil {
		log.Printf("Socket server shutdown error: %v", err)
	}
	if err := engine.Close(); err != nil {
		log.Printf("Engine shutdown error: %v", err)
	}
	log.Println("✅ Shutdown complete")
}
