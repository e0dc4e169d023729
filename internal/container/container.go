package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"steamsale/notifier/internal/client"
	"steamsale/notifier/internal/config"
	"steamsale/notifier/internal/journal"
	"steamsale/notifier/internal/proxy"
	"steamsale/notifier/internal/repository"
	"steamsale/notifier/internal/service"
	"steamsale/notifier/internal/state"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config        *config.Config
	SteamClient   client.SteamClient
	TwitterClient client.TwitterClient
	StateManager  state.StateManager
	Journal       journal.Journal               // nil when Redis is not configured
	Repository    repository.SnapshotRepository // nil when Postgres is not configured

	Service *service.Service

	location      *time.Location
	db            *pgxpool.Pool
	metricsServer *http.Server
}

// New creates a new container with all dependencies initialized
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	container := &Container{
		Config: cfg,
	}

	location, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %s: %w", cfg.Schedule.Timezone, err)
	}
	container.location = location

	proxySupplier := proxy.NewProxySupplier(ctx, cfg.Steam.Proxies,
		fmt.Sprintf("%s/api/appdetails/?appids=%d", cfg.Steam.BaseURL, cfg.Steam.AppID))

	container.SteamClient = client.NewSteamClient(cfg.Steam, proxySupplier)
	container.TwitterClient = client.NewTwitterClient(cfg.Twitter)
	container.StateManager = state.NewMemoryStateManager()

	if cfg.Database.URL != "" {
		db, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database pool: %w", err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := repository.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}

		log.Info("✅ Connected to Postgres successfully")
		container.db = db
		container.Repository = repository.NewSnapshotRepository(db)
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})

		if _, err := rdb.Ping(ctx).Result(); err != nil {
			rdb.Close()
			container.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}

		log.Info("✅ Connected to Redis successfully")
		container.Journal = journal.NewRedisJournal(rdb, cfg.Redis.Stream)
	}

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		container.metricsServer = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	container.Service = service.NewService(
		container.SteamClient,
		container.TwitterClient,
		container.StateManager,
		container.Journal,
		container.Repository,
		cfg.Steam.AppID,
		cfg.Twitter.UserID,
		cfg.Schedule.DailyCap,
	)

	container.logPreviousRun(ctx)

	return container, nil
}

// Run polls once immediately, then on every scheduler tick until the daily
// cap is reached or ctx is cancelled
func (c *Container) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cronLogger := cron.PrintfLogger(log.StandardLogger())
	scheduler := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(c.location),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger)),
	)

	capReached := make(chan struct{})
	var capOnce sync.Once

	_, err := scheduler.AddFunc(c.Config.Schedule.Cron, func() {
		// HandleTick logs its own failures
		if err := c.Service.HandleTick(ctx); errors.Is(err, service.ErrDailyCapReached) {
			capOnce.Do(func() { close(capReached) })
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", c.Config.Schedule.Cron, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if c.metricsServer != nil {
		g.Go(func() error {
			log.Infof("📈 Serving metrics on %s", c.metricsServer.Addr)
			if err := c.metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return c.metricsServer.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		// Startup failures are logged and do not stop the schedule
		_ = c.Service.RunStartup(gctx)

		scheduler.Start()
		log.Infof("⏰ Scheduler started with %q in %s", c.Config.Schedule.Cron, c.location)

		defer func() {
			<-scheduler.Stop().Done()
			log.Info("Scheduler stopped")
		}()

		select {
		case <-capReached:
			final := c.StateManager.Snapshot()
			log.Infof("🏁 Daily cap of %d runs reached after %d ticks, last sale percent %d",
				c.Config.Schedule.DailyCap, final.TicksElapsed, final.LastSalePercent)
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	return g.Wait()
}

// logPreviousRun reports what earlier processes recorded. It is informational
// only: tracked state always starts fresh.
func (c *Container) logPreviousRun(ctx context.Context) {
	if c.Repository != nil {
		last, err := c.Repository.LatestSnapshot(ctx, c.Config.Steam.AppID)
		switch {
		case err != nil:
			log.Warnf("⚠️ Failed to read price history: %v", err)
		case last != nil && last.Usable():
			log.Infof("📜 Last recorded price for app %d: %d%% off, %s", last.AppID, *last.DiscountPercent, *last.FinalPriceFormatted)
		}
	}

	if c.Journal != nil {
		entries, err := c.Journal.Recent(ctx, 1)
		switch {
		case err != nil:
			log.Warnf("⚠️ Failed to read publish journal: %v", err)
		case len(entries) > 0:
			e, err := journal.DecodeMessage(entries[0])
			if err != nil {
				log.Warnf("⚠️ Unreadable journal entry: %v", err)
				break
			}
			log.Infof("📜 Last journal entry %s: %s %+v", entries[0].ID, e.EventType(), e)
		}
	}
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	var errs []error

	if c.db != nil {
		c.db.Close()
	}
	if c.Journal != nil {
		if err := c.Journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close journal: %w", err))
		}
	}

	log.Info("Container shut down successfully")
	return errors.Join(errs...)
}
