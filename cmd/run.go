package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"splitpay/auth"
	"splitpay/config"
	"splitpay/database"
	"splitpay/domain/interfaces"
	"splitpay/domain/services"
	"splitpay/httpapi"
	"splitpay/infrastructure"
	"splitpay/observability"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	log.Info("Starting splitpay...")

	cfg := config.Get()

	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established")

	// Events go to NATS when configured; without it the ledger still works,
	// events are just dropped.
	var eventPublisher interfaces.EventPublisher
	if cfg.NATSServers != "" {
		natsClient := infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsClient.Close()

		natsPublisher := infrastructure.NewNATSEventPublisher(natsClient, infrastructure.NewEventSubjectMapper())
		if err := natsPublisher.EnsureLedgerEventStream(); err != nil {
			return fmt.Errorf("failed to ensure event stream: %w", err)
		}
		eventPublisher = natsPublisher
	} else {
		eventPublisher = infrastructure.NewNoopEventPublisher()
		log.Warn("NATS not configured, event publishing disabled")
	}

	metrics := observability.New()
	uowFactory := infrastructure.NewUnitOfWorkFactoryWrapper(db, eventPublisher)

	// Credential cache: shared via redis when configured, in-process
	// otherwise.
	var credentialCache auth.CredentialCache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse redis URL: %w", err)
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to ping redis: %w", err)
		}
		defer redisClient.Close()
		credentialCache = infrastructure.NewRedisCredentialCache(redisClient)
		log.Info("Using redis credential cache")
	} else {
		credentialCache = auth.NewMemoryCredentialCache(10000)
		log.Info("Using in-process credential cache")
	}

	verifier := infrastructure.NewIdentityClient(cfg.IdentityBaseURL)
	gate := auth.NewGate(verifier, credentialCache, uowFactory, metrics)
	sessions := auth.NewSessionManager(cfg.SessionSigningKey, cfg.SessionDuration)

	gateway := infrastructure.NewGatewayClient(cfg.GatewayBaseURL, metrics)

	expenseService := services.NewExpenseService(uowFactory, metrics)
	ledgerService := services.NewLedgerService(uowFactory)
	settlementService := services.NewSettlementService(uowFactory, gateway, metrics)

	server := httpapi.NewServer(gate, sessions, expenseService, ledgerService, settlementService)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewRouter(server, sessions),
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if cfg.SettlementSweepInterval > 0 {
		group.Go(func() error {
			return runSettlementSweep(groupCtx, settlementService, metrics, cfg.SettlementSweepInterval, cfg.SettlementDeadline)
		})
	} else {
		log.Warn("Settlement sweep disabled")
	}

	log.WithField("environment", cfg.Environment).Info("splitpay is running")
	err = group.Wait()
	log.Info("Shutdown completed")
	return err
}

// runSettlementSweep periodically fails settlements stuck in-flight past the
// deadline. Each tick is an independent best-effort pass; a failing sweep is
// logged and retried on the next tick rather than taking the process down.
func runSettlementSweep(ctx context.Context, settlements *services.SettlementService, metrics *observability.Metrics, interval, deadline time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.WithFields(log.Fields{
		"interval": interval.String(),
		"deadline": deadline.String(),
	}).Info("Settlement sweep started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			failed, err := settlements.FailStuck(ctx, deadline)
			if err != nil {
				log.WithError(err).Error("Settlement sweep failed")
				continue
			}
			if failed > 0 && metrics != nil {
				metrics.StuckSettlements.Add(float64(failed))
			}
		}
	}
}
