package bootstrap

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"talentflow/internal/app"
	"talentflow/internal/cache"
	"talentflow/internal/config"
	"talentflow/internal/database"
	"talentflow/internal/domain/analytics"
	"talentflow/internal/domain/application"
	"talentflow/internal/domain/candidate"
	"talentflow/internal/domain/funnel"
	"talentflow/internal/domain/interview"
	"talentflow/internal/domain/job"
	"talentflow/internal/domain/notification"
	"talentflow/internal/http/metrics"
	"talentflow/internal/notify"
	"talentflow/internal/repository/memory"
	"talentflow/internal/repository/postgres"
)

// Stores groups the repositories backing the services.
type Stores struct {
	Applications  application.Repository
	Jobs          job.Repository
	Candidates    candidate.Repository
	Interviews    interview.Repository
	Notifications notification.Repository
	Analytics     analytics.Repository
}

type Container struct {
	DB           *sql.DB
	Redis        *redis.Client
	Stores       Stores
	FunnelCache  funnel.Cache
	Emitter      notification.Emitter
	Metrics      *metrics.Collector
	Pipeline     *app.PipelineService
	Funnels      *app.FunnelService
	Applications *app.ApplicationService
	Jobs         *app.JobService
	Interviews   *app.InterviewService
}

// New connects the stores named by cfg and wires the services. Without a
// database URL it falls back to in-memory stores; without Redis the funnel
// cache stays in process and notifications go to the store only.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Metrics: metrics.NewCollector()}

	if cfg.PostgresDSN == "" {
		logger.Warn("database url missing, using in-memory stores")
		jobs := memory.NewJobStore()
		c.Stores = Stores{
			Applications:  memory.NewApplicationStore(jobs),
			Jobs:          jobs,
			Candidates:    memory.NewCandidateStore(),
			Interviews:    memory.NewInterviewStore(),
			Notifications: memory.NewNotificationStore(),
			Analytics:     memory.NewAnalyticsStore(),
		}
	} else {
		db, err := database.NewPostgres(ctx, database.PostgresConfig{
			Driver:          cfg.DBDriver,
			DSN:             cfg.PostgresDSN,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxIdle:     cfg.DBConnMaxIdle,
			ConnMaxLifetime: cfg.DBConnMaxLife,
			PingTimeout:     cfg.DBPingTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		c.DB = db
		if cfg.AutoMigrate {
			if err := database.Migrate(ctx, db, logger); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		c.Stores = Stores{
			Applications:  postgres.NewApplicationRepository(db),
			Jobs:          postgres.NewJobRepository(db),
			Candidates:    postgres.NewCandidateRepository(db),
			Interviews:    postgres.NewInterviewRepository(db),
			Notifications: postgres.NewNotificationRepository(db),
			Analytics:     postgres.NewAnalyticsRepository(db),
		}
	}

	c.Redis = database.NewRedis(cfg.RedisURL, logger)
	storeEmitter := notify.NewStoreEmitter(c.Stores.Notifications)
	if c.Redis != nil {
		c.FunnelCache = cache.NewRedisFunnelCache(c.Redis, "funnel", cfg.FunnelCacheTTL)
		c.Emitter = notify.NewFanoutEmitter(notify.NewRedisStreamEmitter(c.Redis, cfg.NotifyStream, cfg.NotifyStreamMax), storeEmitter)
	} else {
		c.FunnelCache = cache.NewMemoryFunnelCache(cfg.FunnelCacheTTL)
		c.Emitter = storeEmitter
	}

	c.Pipeline = app.NewPipelineService(app.PipelineDependencies{
		Applications:    c.Stores.Applications,
		Jobs:            c.Stores.Jobs,
		Candidates:      c.Stores.Candidates,
		Emitter:         c.Emitter,
		Analytics:       c.Stores.Analytics,
		Cache:           c.FunnelCache,
		Observer:        c.Metrics,
		Logger:          logger,
		BulkConcurrency: cfg.BulkConcurrency,
		BulkRate:        rate.Limit(cfg.BulkRatePerSec),
	})
	c.Funnels = app.NewFunnelService(c.Stores.Applications, c.FunnelCache, logger)
	c.Applications = app.NewApplicationService(c.Stores.Applications, c.Stores.Jobs, c.Stores.Candidates, c.Stores.Analytics)
	c.Jobs = app.NewJobService(c.Stores.Jobs, c.Stores.Analytics)
	c.Interviews = app.NewInterviewService(c.Stores.Interviews, c.Stores.Applications, c.Stores.Jobs, c.Stores.Analytics)
	return c, nil
}

func (c *Container) Close(logger *slog.Logger) {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logger.Error("redis close failed", slog.String("error", err.Error()))
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logger.Error("database close failed", slog.String("error", err.Error()))
		}
	}
}
