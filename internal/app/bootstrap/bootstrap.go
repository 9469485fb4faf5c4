package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	electionservice "campusvote/contexts/election-administration/election-service"
	"campusvote/contexts/election-administration/election-service/adapters/definition"
	firestoreadapter "campusvote/contexts/election-administration/election-service/adapters/firestore"
	"campusvote/contexts/election-administration/election-service/adapters/memory"
	"campusvote/contexts/election-administration/election-service/adapters/notify"
	postgresadapter "campusvote/contexts/election-administration/election-service/adapters/postgres"
	workerapp "campusvote/contexts/election-administration/election-service/application/workers"
	"campusvote/contexts/election-administration/election-service/domain/entities"
	"campusvote/contexts/election-administration/election-service/ports"
	"campusvote/internal/platform/auth"
	"campusvote/internal/platform/config"
	"campusvote/internal/platform/db"
	"campusvote/internal/platform/docstore"
	"campusvote/internal/platform/httpserver"
	"campusvote/internal/platform/logging"
	"campusvote/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server  *httpserver.Server
	backend *storeBackend
	logger  *slog.Logger
}

type WorkerApp struct {
	backend      *storeBackend
	relay        workerapp.NotificationRelay
	consumer     workerapp.NotificationConsumer
	roles        workerapp.RoleReconciler
	phases       workerapp.PhaseFlagRefresher
	runRoles     bool
	runPhases    bool
	pollInterval time.Duration
	logger       *slog.Logger
}

// storeBackend owns whichever persistence client the config selected.
type storeBackend struct {
	store     ports.Store
	clock     ports.Clock
	ids       ports.IDGenerator
	postgres  *db.Postgres
	firestore *docstore.Firestore
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.Setup(cfg.LogLevel).With("service", cfg.ServiceName, "process", "api")

	backend, module, err := buildElection(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}

	server := httpserver.New(module, auth.NewVerifier(cfg.JWTSecret), logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:  server,
		backend: backend,
		logger:  logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.Setup(cfg.LogLevel).With("service", cfg.ServiceName, "process", "worker")

	backend, module, err := buildElection(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	var notifier ports.Notifier = notify.LogNotifier{Logger: logger}
	if strings.TrimSpace(cfg.SMTPHost) != "" {
		notifier = notify.SMTPNotifier{
			Config: notify.SMTPConfig{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				Username: cfg.SMTPUsername,
				Password: cfg.SMTPPassword,
				From:     cfg.SMTPFrom,
			},
			Logger: logger,
		}
	}

	return &WorkerApp{
		backend: backend,
		relay: workerapp.NotificationRelay{
			Outbox:        backend.store,
			Publisher:     kafka,
			Clock:         backend.clock,
			BatchSize:     cfg.NotificationBatchSize,
			SourceService: cfg.ServiceName,
			Logger:        logger,
		},
		consumer: workerapp.NotificationConsumer{
			Subscriber:  kafka,
			Outbox:      backend.store,
			Notifier:    notifier,
			Clock:       backend.clock,
			MaxAttempts: uint64(cfg.NotificationMaxAttempts),
			Disabled:    !cfg.EnableNotificationConsumer,
			Logger:      logger,
		},
		roles: workerapp.RoleReconciler{
			Reconciliation: module.Roles,
			Logger:         logger,
		},
		phases: workerapp.PhaseFlagRefresher{
			Phases: backend.store,
			Clock:  backend.clock,
			Logger: logger,
		},
		runRoles:     cfg.EnableRoleReconciler,
		runPhases:    cfg.EnablePhaseFlagRefresher,
		pollInterval: cfg.WorkerPollInterval,
		logger:       logger,
	}, nil
}

func buildElection(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storeBackend, electionservice.Module, error) {
	ballot, err := loadDefinition(cfg.BallotDefinitionPath)
	if err != nil {
		return nil, electionservice.Module{}, err
	}
	backend, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, electionservice.Module{}, err
	}
	module := electionservice.NewModule(electionservice.Dependencies{
		Store:       backend.store,
		Definition:  ballot,
		Clock:       backend.clock,
		IDGen:       backend.ids,
		CallTimeout: cfg.CallTimeout,
		Logger:      logger,
	})
	logger.Info("election module wired",
		"event", "bootstrap_election_wired",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"store_backend", cfg.StoreBackend,
		"positions", len(ballot.Positions),
		"institutes", len(ballot.Institutes),
	)
	return backend, module, nil
}

func loadDefinition(path string) (entities.BallotDefinition, error) {
	if strings.TrimSpace(path) == "" {
		return definition.Default()
	}
	return definition.Load(path)
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storeBackend, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		store := memory.NewStore()
		return &storeBackend{store: store, clock: store, ids: store}, nil
	case config.StorePostgres:
		pg, err := db.ConnectWithOptions(ctx, cfg.PostgresDSN, db.PoolOptions{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			PingTimeout:     cfg.CallTimeout,
		})
		if err != nil {
			return nil, err
		}
		if cfg.RunMigrations {
			sqlDB, err := pg.SQL()
			if err != nil {
				_ = pg.Close()
				return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
			}
			if err := postgresadapter.Migrate(ctx, sqlDB); err != nil {
				_ = pg.Close()
				return nil, err
			}
		}
		return &storeBackend{
			store:    postgresadapter.NewRepository(pg.DB, logger),
			clock:    postgresadapter.SystemClock{},
			ids:      postgresadapter.UUIDGenerator{},
			postgres: pg,
		}, nil
	case config.StoreFirestore:
		fs, err := docstore.Connect(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentialsFile)
		if err != nil {
			return nil, err
		}
		return &storeBackend{
			store:     firestoreadapter.NewRepository(fs.Client, logger),
			clock:     postgresadapter.SystemClock{},
			ids:       postgresadapter.UUIDGenerator{},
			firestore: fs,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}

func (b *storeBackend) Close() error {
	if b == nil {
		return nil
	}
	var errs []error
	if b.postgres != nil {
		errs = append(errs, b.postgres.Close())
	}
	if b.firestore != nil {
		errs = append(errs, b.firestore.Close())
	}
	return errors.Join(errs...)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *APIApp) Run(ctx context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (a *APIApp) Close() error {
	return a.backend.Close()
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.consumer.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"role_reconciler", w.runRoles,
		"phase_flag_refresher", w.runPhases,
	)

	for {
		if w.runPhases {
			if err := w.phases.RunOnce(ctx); err != nil {
				w.logRunError("phase_flag_refresher", err)
			}
		}
		if w.runRoles {
			if err := w.roles.RunOnce(ctx); err != nil {
				w.logRunError("role_reconciler", err)
			}
		}
		if err := w.relay.RunOnce(ctx); err != nil {
			w.logRunError("notification_relay", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// logRunError keeps the loop alive across transient store failures; the next
// tick retries.
func (w *WorkerApp) logRunError(job string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	w.logger.Error("worker job failed",
		"event", "bootstrap_worker_job_failed",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"job", job,
		"error", err.Error(),
	)
}

func (w *WorkerApp) Close() error {
	return w.backend.Close()
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
