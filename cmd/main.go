package main

import (
	"context"
	"embed"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"duochat/auth"
	"duochat/contract"
	"duochat/internal"
	"duochat/moderation"
	"duochat/realtime"
	"duochat/realtime/relay"
	"duochat/repositories"
	"duochat/rest"
	"duochat/runtime/workers"
	"duochat/services"
)

//go:embed censored/*
var censoredFolder embed.FS

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the http server and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := internal.NewLogger(config.LogLevel)

	auth.SetSigningKey(config.JWTSecret)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories & services
	userRepository := repositories.NewUserRepository(db)
	conversationRepository := repositories.NewConversationRepository(db)
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	bridge := repositories.NewStorageBridge(conversationRepository, messageRepository)

	// 4. Moderation
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}
	wordList, err := moderation.LoadWords(censoredFolder, "censored")
	if err != nil {
		return fmt.Errorf("loading censored words: %w", err)
	}
	moderator, err := moderation.NewModerator(wordList.Words, charReplacement)
	if err != nil {
		return fmt.Errorf("building moderator: %w", err)
	}
	log.Info("Moderation ready", "languages", wordList.Languages, "words", len(wordList.Words))

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Real-time core
	var eventRelay contract.Relay = relay.NewNoop()
	if config.NatsURL != "" {
		natsRelay, err := relay.NewNats(config.NatsURL, log)
		if err != nil {
			return fmt.Errorf("relay setup failed: %w", err)
		}
		defer func() { _ = natsRelay.Close() }()
		eventRelay = natsRelay
		log.Info("Cross-process relay enabled", "url", config.NatsURL)
	}

	registry := realtime.NewRegistry(log)
	broadcaster := realtime.NewBroadcaster(registry, eventRelay, log)
	presence := realtime.NewPresenceTracker(broadcaster, log)
	router := realtime.NewRouter(bridge, broadcaster, &moderator, log)
	gateway := realtime.NewGateway(ctx, bridge, registry, presence, router, log)

	// 7. Background workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	healthWorker := workers.NewHealthMonitoringWorker(registry, config.MetricInterval, log)
	sup.Add(healthWorker)
	sup.Add(workers.NewRelayConsumerWorker(eventRelay, registry, log))
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 8. Debug inspector (local only)
	if config.DebugPort != 0 {
		statsProvider := func() map[string]any {
			snapshot := healthWorker.Latest()
			return map[string]any{
				"Groups":  snapshot.Groups,
				"Members": snapshot.LiveMembers,
				"CPU":     fmt.Sprintf("%.1f%%", snapshot.CPUPercent),
				"RSS":     snapshot.RSSBytes,
				"Sampled": snapshot.SampledAt.Format(time.RFC822),
			}
		}
		debugServer := internal.StartDebugServer(db, config.DebugPort, internal.MessageMapper, statsProvider)
		defer internal.StopDebugServer(debugServer)
		log.Info("Debug inspector started", "port", config.DebugPort)
	}

	// 9. HTTP server: REST API + websocket gateway
	authService := services.NewAuthService(userRepository, config.AuthTokenDuration)
	chatService := services.NewChatService(
		conversationRepository, messageRepository, userRepository,
		bridge, broadcaster, &moderator, log,
	)

	mux := http.NewServeMux()
	rest.NewHandler(authService, chatService, log).Register(mux)
	mux.HandleFunc("GET /chat/ws/{conversationID}", gateway.HandleWS)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 10. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 11. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	gateway.Shutdown()
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}
