// Package app builds the object graph shared by the API server and the
// operator CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xavierca1/linkedin-outreach/internal/config"
	"github.com/xavierca1/linkedin-outreach/internal/entity"
	"github.com/xavierca1/linkedin-outreach/internal/infra/database"
	"github.com/xavierca1/linkedin-outreach/internal/infra/integration/automation"
	"github.com/xavierca1/linkedin-outreach/internal/infra/mail"
	"github.com/xavierca1/linkedin-outreach/internal/infra/memstore"
	"github.com/xavierca1/linkedin-outreach/internal/infra/metrics"
	"github.com/xavierca1/linkedin-outreach/internal/infra/queue"
	"github.com/xavierca1/linkedin-outreach/internal/usecase"
)

type App struct {
	Config *config.Config
	Logger *zap.Logger

	DB       *sql.DB
	RabbitMQ *queue.RabbitMQ
	Engine   *automation.Client

	Prospects entity.ProspectRepository
	Sessions  entity.SessionRepository
	Campaigns entity.CampaignRepository
	Accounts  entity.AccountRepository
	Leases    entity.LeaseRepository

	Notifier usecase.OperatorNotifier
	Metrics  usecase.Metrics

	Pool      *usecase.AccountPool
	Promote   *usecase.PromoteSessionUseCase
	Schedule  *usecase.ScheduleCampaignUseCase
	Dispatch  *usecase.DispatchCampaignUseCase
	Reconcile *usecase.ReconcileOutcomeUseCase
	Operator  *usecase.OperatorActionsUseCase
	Query     *usecase.StatusQueryUseCase
}

// NewLogger builds the production zap logger at the configured level.
func NewLogger(level, environment string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg := zap.NewProductionConfig()
	if environment == "development" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// Build opens storage and the broker and wires every use case. reg may be nil
// to disable metrics.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	if err := a.openStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.AMQPURL != "" {
		rmq, err := queue.NewRabbitMQ(cfg.AMQPURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.RabbitMQ = rmq
	}

	a.Engine = automation.NewClient(automation.Config{
		WebhookURL: cfg.EngineWebhookURL,
		StatusURL:  cfg.EngineStatusURL,
		Token:      cfg.EngineToken,
		Timeout:    cfg.DispatchTimeout,
	}, logger.Named("automation"))

	if cfg.MailEnabled() {
		a.Notifier = mail.NewEmailSender(cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPass, cfg.MailFrom, cfg.OperatorEmail, logger.Named("mail"))
	} else {
		a.Notifier = mail.LogNotifier{Logger: logger.Named("alerts")}
	}

	if reg != nil {
		a.Metrics = metrics.NewRecorder(reg)
	} else {
		a.Metrics = usecase.NopMetrics{}
	}

	clock := usecase.SystemClock{}
	leases := usecase.NewLeaseManager(a.Leases, clock, cfg.LeaseWait, logger.Named("lease"))

	a.Pool = usecase.NewAccountPool(a.Accounts, a.Notifier, logger.Named("accounts"))
	a.Promote = usecase.NewPromoteSessionUseCase(a.Sessions, a.Prospects, a.Notifier, a.Metrics, clock, cfg.MismatchPolicy, logger.Named("approval_gate"))
	a.Schedule = usecase.NewScheduleCampaignUseCase(a.Campaigns, a.Prospects, a.Accounts, a.Pool, leases, a.Metrics, clock, cfg.ScheduleSettings(), logger.Named("scheduler"))
	a.Dispatch = usecase.NewDispatchCampaignUseCase(a.Campaigns, a.Prospects, a.Pool, leases, a.Engine, a.Notifier, a.Metrics, clock, cfg.DispatchSettings(), logger.Named("dispatcher"))
	a.Reconcile = usecase.NewReconcileOutcomeUseCase(a.Prospects, a.Engine, a.Metrics, clock, cfg.DispatchTimeout, logger.Named("reconciler"))
	a.Operator = usecase.NewOperatorActionsUseCase(a.Campaigns, a.Prospects, a.Metrics, clock, logger.Named("operator"))
	a.Query = usecase.NewStatusQueryUseCase(a.Prospects, a.Sessions)

	return a, nil
}

func (a *App) openStorage(ctx context.Context) error {
	cfg := a.Config

	var seed *memstore.Seed
	if cfg.SeedFile != "" {
		s, err := memstore.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return err
		}
		seed = s
	}

	if cfg.InMemory() {
		store := memstore.New()
		if seed != nil {
			if err := seed.Apply(store); err != nil {
				return err
			}
		}
		a.Prospects = store.Prospects()
		a.Sessions = store.Sessions()
		a.Campaigns = store.Campaigns()
		a.Accounts = store.Accounts()
		a.Leases = store.Leases()
		a.Logger.Warn("DATABASE_URL not set, using in-memory store", zap.Bool("seeded", seed != nil))
		return nil
	}

	db, err := database.NewDBConnection(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	a.DB = db

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	if seed != nil {
		if err := database.ApplySeed(ctx, db, seed); err != nil {
			return err
		}
	}

	a.Prospects = &database.ProspectRepository{DB: db}
	a.Sessions = &database.SessionRepository{DB: db}
	a.Campaigns = &database.CampaignRepository{DB: db}
	a.Accounts = &database.AccountRepository{DB: db}
	a.Leases = &database.LeaseRepository{DB: db}
	return nil
}

func (a *App) Close() {
	if a.RabbitMQ != nil {
		if err := a.RabbitMQ.Close(); err != nil {
			a.Logger.Warn("close rabbitmq", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("close database", zap.Error(err))
		}
	}
}
