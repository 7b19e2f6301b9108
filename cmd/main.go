package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chat-relay/domain"
	"chat-relay/filters"
	"chat-relay/gateway"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"chat-relay/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so every defer executes before the process
// exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Backend gateway
	collector := observability.NewCollector(config.MetricWindowSize)
	breaker := gateway.NewBreaker(config.BreakerThreshold, config.BreakerCooldown)
	backend := gateway.NewClient(log, config.BackendBaseURL,
		config.BackendReadTimeout, config.BackendWriteTimeout, breaker, collector)

	// 3. Live state & fanout
	registry := runtime.NewRegistry()
	presence := runtime.NewPresenceTracker()
	fanout := runtime.NewFanout(log, registry)
	aggregator := runtime.NewAggregator(log, backend, config.AggregationWindow,
		config.BackendWriteTimeout, func(scope domain.ScopeID, name string, payload any) {
			fanout.ToScope(scope, name, payload)
		})
	coordinator := runtime.NewCoordinator(log, registry, presence, fanout,
		aggregator, backend, config.DisconnectGrace)
	defer coordinator.Teardown()

	// 4. Channel handlers
	filterCache := filters.NewCache(log, backend, registry)
	svcConfig := services.Config{
		HistoryCount:           config.HistoryCount,
		PageLimit:              config.PageLimit,
		TypingMinInterval:      config.TypingMinInterval,
		TypingMaxTTL:           config.TypingMaxTTL,
		MembershipWriteTimeout: config.BackendWriteTimeout,
	}
	group := services.NewGroupService(log, registry, presence, coordinator,
		backend, filterCache, fanout, aggregator, svcConfig)
	dm := services.NewDMService(log, registry, presence, coordinator,
		backend, filterCache, fanout, svcConfig)
	relationship := services.NewRelationshipService(log, registry, backend, fanout)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Background workers
	sup := workers.NewSupervisor(log)
	sup.Add(workers.NewPresenceSweepWorker(log, presence, fanout,
		config.SweepInterval, config.PresenceIdleLimit))
	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	// 7. Websocket server
	dispatcher := ws.NewDispatcher(log, coordinator, group, dm, relationship)
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := ws.NewServer(log, address, coordinator, dispatcher, collector,
		config.ConnectionBufferSize)

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting relay server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown incomplete", "error", err)
	}
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}
