// Package lattice assembles the order copilot: a checkpointed workflow
// engine that answers order questions and runs refund requests through a
// human approval gate. This file is the composition root; the pieces live
// under pkg/ and are usable on their own.
package lattice

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ordercopilot/lattice/internal/config"
	"github.com/ordercopilot/lattice/internal/logging"
	fileadapter "github.com/ordercopilot/lattice/pkg/adapters/file"
	httpadapter "github.com/ordercopilot/lattice/pkg/adapters/http"
	"github.com/ordercopilot/lattice/pkg/adapters/memory"
	neo4jadapter "github.com/ordercopilot/lattice/pkg/adapters/neo4j"
	redisadapter "github.com/ordercopilot/lattice/pkg/adapters/redis"
	"github.com/ordercopilot/lattice/pkg/domain"
	"github.com/ordercopilot/lattice/pkg/engine"
	"github.com/ordercopilot/lattice/pkg/graph"
	"github.com/ordercopilot/lattice/pkg/observability"
	"github.com/ordercopilot/lattice/pkg/orders"
	"github.com/ordercopilot/lattice/pkg/persistence/middleware"
	"github.com/ordercopilot/lattice/pkg/ports"
	"github.com/ordercopilot/lattice/pkg/session"
)

// Version is the release version of the lattice binary.
const Version = "0.1.0"

// App is the assembled application.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Graph    *graph.CompiledGraph
	Sessions *session.Manager
	Executor *engine.Executor
	Registry *prometheus.Registry

	closers []func(context.Context) error
}

// Option adjusts assembly.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	orders     orders.Service
	retriever  ports.DocRetriever
	classifier ports.Classifier
	generator  ports.TextGenerator
	hooks      []domain.LifecycleHooks
}

// WithLogger overrides the default stderr logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithOrders injects an order service, bypassing the configured backend.
func WithOrders(svc orders.Service) Option {
	return func(o *options) { o.orders = svc }
}

// WithRetriever injects a document retriever.
func WithRetriever(r ports.DocRetriever) Option {
	return func(o *options) { o.retriever = r }
}

// WithClassifier injects a model-based intent classifier fallback.
func WithClassifier(c ports.Classifier) Option {
	return func(o *options) { o.classifier = c }
}

// WithGenerator injects the text generator behind the agent activity.
func WithGenerator(g ports.TextGenerator) Option {
	return func(o *options) { o.generator = g }
}

// WithLifecycleHooks registers additional observability hooks alongside the
// built-in metrics.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *options) { o.hooks = append(o.hooks, hooks) }
}

// New assembles the application from configuration.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = logging.New(logging.ParseLevel(cfg.LogLevel))
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}

	def, err := loadDefinition(cfg)
	if err != nil {
		return nil, err
	}
	compiled, err := graph.Compile(def, graph.WithTurnCap(cfg.Review.TurnCap))
	if err != nil {
		return nil, fmt.Errorf("compile workflow graph: %w", err)
	}
	app.Graph = compiled

	sessions, err := app.buildSessions(cfg, logger)
	if err != nil {
		return nil, err
	}
	app.Sessions = sessions

	deps, err := app.buildDependencies(ctx, cfg, o)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics(app.Registry)
	hooks := observability.Merge(append([]domain.LifecycleHooks{metrics.Hooks()}, o.hooks...)...)

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithHooks(hooks),
		engine.WithTurnCap(cfg.Review.TurnCap),
	}
	if cfg.Graph.StepBudget > 0 {
		engineOpts = append(engineOpts, engine.WithStepBudget(cfg.Graph.StepBudget))
	}
	if cfg.Review.AllowFollowUp {
		engineOpts = append(engineOpts, engine.WithFollowUp(cfg.Review.FollowUpQuestion))
	}
	app.Executor = engine.New(compiled, sessions, deps, engineOpts...)
	return app, nil
}

func loadDefinition(cfg config.Config) (domain.GraphDefinition, error) {
	if cfg.Graph.Path == "" {
		return graph.DefaultDefinition(), nil
	}
	return graph.LoadDefinition(cfg.Graph.Path)
}

func (a *App) buildSessions(cfg config.Config, logger *slog.Logger) (*session.Manager, error) {
	sessionOpts := []session.Option{session.WithLogger(logger)}

	var store ports.CheckpointStore
	switch cfg.Store.Backend {
	case "", "memory":
		store = memory.NewStore()

	case "file":
		store = fileadapter.New(cfg.Store.Path)

	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Store.Redis.Address,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		var storeOpts []redisadapter.Option
		if cfg.Store.Redis.TTLSeconds > 0 {
			storeOpts = append(storeOpts, redisadapter.WithTTL(time.Duration(cfg.Store.Redis.TTLSeconds)*time.Second))
		}
		redisStore := redisadapter.NewFromClient(client, storeOpts...)
		a.closers = append(a.closers, func(context.Context) error { return redisStore.Close() })

		if cfg.Store.Redis.Lock {
			sessionOpts = append(sessionOpts, session.WithLocker(redisadapter.NewLocker(client, "lattice:")))
		}
		store = redisStore

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	store, err := wrapStore(store, cfg.Store)
	if err != nil {
		return nil, err
	}
	return session.NewManager(store, sessionOpts...), nil
}

// wrapStore layers the configured persistence middleware around the backend:
// PII masking outermost, then encryption, so masked checkpoints are what gets
// encrypted.
func wrapStore(store ports.CheckpointStore, cfg config.StoreConfig) (ports.CheckpointStore, error) {
	var mws []middleware.Middleware
	if len(cfg.MaskEntities) > 0 {
		mws = append(mws, middleware.NewPIIMasking(cfg.MaskEntities))
	}
	if cfg.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("decode encryption key: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("encryption key must decode to 32 bytes, got %d", len(key))
		}
		fallbacks := make([][]byte, 0, len(cfg.EncryptionFallbackKeys))
		for i, encoded := range cfg.EncryptionFallbackKeys {
			k, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return nil, fmt.Errorf("decode fallback key %d: %w", i, err)
			}
			fallbacks = append(fallbacks, k)
		}
		mws = append(mws, middleware.NewEncryption(middleware.EncryptionConfig{
			ActiveKey:    key,
			FallbackKeys: fallbacks,
		}))
	}
	return middleware.Chain(store, mws...), nil
}

func (a *App) buildDependencies(ctx context.Context, cfg config.Config, o options) (engine.Dependencies, error) {
	deps := engine.Dependencies{
		Orders:     o.orders,
		Retriever:  o.retriever,
		Classifier: o.classifier,
		Generator:  o.generator,
	}
	if deps.Orders != nil {
		if deps.Retriever == nil {
			deps.Retriever = memory.NewRetriever(nil)
		}
		return deps, nil
	}

	switch cfg.Orders.Backend {
	case "", "memory":
		deps.Orders = orders.NewMemoryService()
		if deps.Retriever == nil {
			deps.Retriever = memory.NewRetriever(nil)
		}

	case "neo4j":
		driver, err := neo4j.NewDriverWithContext(
			cfg.Orders.Neo4j.URI,
			neo4j.BasicAuth(cfg.Orders.Neo4j.Username, cfg.Orders.Neo4j.Password, ""),
		)
		if err != nil {
			return deps, fmt.Errorf("connect neo4j: %w", err)
		}
		a.closers = append(a.closers, driver.Close)

		if cfg.Orders.Neo4j.Seed {
			if err := neo4jadapter.Seed(ctx, driver, cfg.Orders.Neo4j.Database); err != nil {
				return deps, err
			}
		}
		deps.Orders = neo4jadapter.NewOrderService(driver, cfg.Orders.Neo4j.Database)
		if deps.Retriever == nil {
			deps.Retriever = neo4jadapter.NewRetriever(driver, cfg.Orders.Neo4j.Database)
		}

	default:
		return deps, fmt.Errorf("unknown orders backend %q", cfg.Orders.Backend)
	}
	return deps, nil
}

// Handler returns the HTTP API handler, with metrics mounted at /metrics.
func (a *App) Handler() http.Handler {
	return httpadapter.NewHandler(a.Executor, a.Sessions,
		httpadapter.WithLogger(a.Logger),
		httpadapter.WithMetricsHandler(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})),
	)
}

// Close releases backend connections.
func (a *App) Close(ctx context.Context) error {
	var firstErr error
	for _, closer := range a.closers {
		if err := closer(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
