package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/pricewatch/internal/core/clock"
	"github.com/vietddude/pricewatch/internal/core/config"
	"github.com/vietddude/pricewatch/internal/core/domain"
	"github.com/vietddude/pricewatch/internal/core/worker"
	"github.com/vietddude/pricewatch/internal/infra/feed"
	redisclient "github.com/vietddude/pricewatch/internal/infra/redis"
	"github.com/vietddude/pricewatch/internal/infra/storage"
	"github.com/vietddude/pricewatch/internal/infra/storage/memory"
	"github.com/vietddude/pricewatch/internal/infra/storage/postgres"
	"github.com/vietddude/pricewatch/internal/pricing/alert"
	"github.com/vietddude/pricewatch/internal/pricing/classify"
	"github.com/vietddude/pricewatch/internal/pricing/health"
	"github.com/vietddude/pricewatch/internal/pricing/oracle"
)

const shutdownTimeout = 10 * time.Second

// App owns every feed, the alert pipeline and the HTTP server.
type App struct {
	cfg         *config.AppConfig
	feeds       map[string]*oracle.Orchestrator
	order       []string
	pollers     map[string]*oracle.Poller
	endpoints   []*feed.HTTPEndpoint
	dispatcher  *alert.Dispatcher
	repo        storage.ReportRepository
	server      *health.Server
	db          *postgres.DB
	redisClient *redisclient.Client
	clock       clock.Clock
	httpClient  *http.Client
	log         *slog.Logger
}

// Option configures an App.
type Option func(*App)

func WithClock(c clock.Clock) Option {
	return func(a *App) {
		a.clock = c
	}
}

// WithHTTPClient shares one client across all endpoints.
func WithHTTPClient(c *http.Client) Option {
	return func(a *App) {
		a.httpClient = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.log = l
	}
}

// NewApp creates an App with all dependencies initialized.
func NewApp(ctx context.Context, cfg *config.AppConfig, opts ...Option) (*App, error) {
	a := &App{
		cfg:     cfg,
		feeds:   make(map[string]*oracle.Orchestrator, len(cfg.Feeds)),
		pollers: make(map[string]*oracle.Poller, len(cfg.Feeds)),
		clock:   clock.Real(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	// 1. Storage and alert transports
	if err := a.initStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}

	// 2. Alert pipeline
	var sinks []alert.Sink
	if cfg.Alerts.LogEnabled() {
		sinks = append(sinks, alert.NewLogSink(a.log))
	}
	if a.redisClient != nil && cfg.Alerts.RedisChannel != "" {
		sinks = append(sinks, redisclient.NewPublisher(a.redisClient, cfg.Alerts.RedisChannel))
	}
	var simulated []string
	for _, fc := range cfg.Feeds {
		if fc.Simulated {
			simulated = append(simulated, fc.ID)
		}
	}
	a.dispatcher = alert.NewDispatcher(
		classify.New(cfg.Capabilities),
		alert.WithRepository(a.repo),
		alert.WithSinks(sinks...),
		alert.WithSimulated(simulated...),
		alert.WithQueueSize(cfg.Alerts.QueueSize),
		alert.WithClock(a.clock),
		alert.WithLogger(a.log),
	)

	// 3. Feeds
	serverFeeds := make([]health.Feed, 0, len(cfg.Feeds))
	for _, fc := range cfg.Feeds {
		orch, err := a.buildFeed(fc)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.feeds[fc.ID] = orch
		a.order = append(a.order, fc.ID)
		a.pollers[fc.ID] = oracle.NewPoller(orch, fc.Interval, a.clock)
		serverFeeds = append(serverFeeds, orch)

		a.log.Info("Feed configured",
			"feed", fc.ID,
			"service", fc.Service,
			"endpoints", orch.Endpoints(),
			"interval", fc.Interval,
			"simulated", fc.Simulated,
		)
	}

	// 4. HTTP server
	a.server = health.NewServer(serverFeeds, cfg.Server.Port, a.log)

	return a, nil
}

func (a *App) initStorage(ctx context.Context) error {
	backend := a.cfg.Storage.Backend
	if backend == "" || backend == config.StorageAuto {
		switch {
		case a.cfg.Database.URL != "":
			backend = config.StoragePostgres
		case a.cfg.Redis.URL != "":
			backend = config.StorageRedis
		default:
			backend = config.StorageMemory
		}
	}

	needRedis := backend == config.StorageRedis ||
		(a.cfg.Alerts.RedisChannel != "" && a.cfg.Redis.URL != "")
	if needRedis {
		client, err := redisclient.NewClient(a.cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to init redis: %w", err)
		}
		a.redisClient = client
	}

	switch backend {
	case config.StoragePostgres:
		db, err := postgres.NewDB(ctx, a.cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		a.db = db
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		a.repo = postgres.NewReportRepo(db)
	case config.StorageRedis:
		a.repo = redisclient.NewReportRepo(a.redisClient, a.cfg.Storage.Retention)
	default:
		a.repo = memory.NewReportRepo(memory.NewMemoryStorageWithRetention(a.cfg.Storage.Retention))
	}

	a.log.Info("Report storage initialized", "backend", backend)
	return nil
}

func (a *App) buildFeed(fc config.FeedConfig) (*oracle.Orchestrator, error) {
	sources := make([]health.Source, 0, len(fc.Endpoints))
	for _, ec := range fc.Endpoints {
		desc := domain.EndpointDescriptor{
			Name:    ec.Name,
			URL:     ec.URL,
			Asset:   ec.Asset,
			Parse:   feed.PathParser(ec.Path),
			Timeout: ec.Timeout,
		}
		opts := []feed.Option{
			feed.WithClock(a.clock),
			feed.WithRateLimit(ec.RateLimit, ec.Burst),
			feed.WithDailyQuota(ec.DailyQuota),
		}
		if a.httpClient != nil {
			opts = append(opts, feed.WithHTTPClient(a.httpClient))
		}
		ep := feed.NewHTTPEndpoint(desc, opts...)
		a.endpoints = append(a.endpoints, ep)
		sources = append(sources, ep)
	}

	registry, err := oracle.NewRegistry(sources...)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", fc.ID, err)
	}

	reporter := health.NewReporter(fc.ID, fc.Service,
		health.WithHistorySize(fc.HistorySize),
		health.WithClock(a.clock),
		health.WithSink(a.dispatcher),
		health.WithLogger(a.log),
	)

	return oracle.New(fc.ID, registry, reporter,
		oracle.WithClock(a.clock),
		oracle.WithLogger(a.log),
	), nil
}

// Feed returns the orchestrator for id.
func (a *App) Feed(id string) (*oracle.Orchestrator, bool) {
	o, ok := a.feeds[id]
	return o, ok
}

// Feeds returns every orchestrator in configuration order.
func (a *App) Feeds() []*oracle.Orchestrator {
	out := make([]*oracle.Orchestrator, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.feeds[id])
	}
	return out
}

// Reports returns the report repository.
func (a *App) Reports() storage.ReportRepository {
	return a.repo
}

// Dispatcher returns the alert dispatcher.
func (a *App) Dispatcher() *alert.Dispatcher {
	return a.dispatcher
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Run starts pollers, the dispatcher and the HTTP server, and blocks until ctx
// is cancelled or one of them fails. Cancellation stops every ticker and
// aborts in-flight requests.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.db != nil {
		a.db.StartMetricsCollector(gctx)
	}

	g.Go(func() error {
		return a.dispatcher.Run(gctx)
	})

	if pr, ok := a.repo.(storage.ReportPruner); ok && a.cfg.Storage.MaxAge > 0 {
		pruner := worker.NewPruner(pr, a.cfg.Storage.MaxAge, a.clock)
		a.log.Info("Starting report pruner", "max_age", a.cfg.Storage.MaxAge, "interval", pruner.Interval())
		g.Go(func() error {
			pruner.Start(gctx)
			return nil
		})
	}

	for _, id := range a.order {
		p := a.pollers[id]
		g.Go(func() error {
			if err := p.Run(gctx); err != nil {
				return fmt.Errorf("poller %s: %w", id, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		a.log.Info("Starting HTTP server", "port", a.cfg.Server.Port)
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Stop(shutdownCtx)
	})

	err := g.Wait()

	// Reports queued during shutdown are still persisted.
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if n := a.dispatcher.Drain(drainCtx); n > 0 {
		a.log.Info("Drained pending reports", "count", n)
	}
	return err
}

// Close releases connections. It is safe to call after a failed NewApp.
func (a *App) Close() {
	a.log.Info("Stopping pricewatch...")

	for _, ep := range a.endpoints {
		_ = ep.Close()
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}
}
