package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/nodeflow/internal/addons/variables"
	apihttp "github.com/GriffinCanCode/nodeflow/internal/api/http"
	"github.com/GriffinCanCode/nodeflow/internal/api/middleware"
	"github.com/GriffinCanCode/nodeflow/internal/api/ws"
	"github.com/GriffinCanCode/nodeflow/internal/domain/session"
	"github.com/GriffinCanCode/nodeflow/internal/infrastructure/config"
	"github.com/GriffinCanCode/nodeflow/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nodeflow/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/nodeflow/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/nodeflow/internal/project"
)

const shutdownTimeout = 5 * time.Second

// Server wraps the HTTP server and the session it exposes
type Server struct {
	router   *gin.Engine
	session  *session.Session
	owner    *session.Owner
	hub      *ws.Hub
	store    project.Store
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
	registry *prometheus.Registry
}

// Option customizes server construction
type Option func(*options)

type options struct {
	store       project.Store
	sessionOpts []session.Option
}

// WithStore uses store instead of building one from the storage config
func WithStore(store project.Store) Option {
	return func(o *options) { o.store = store }
}

// WithSessionOptions adds session options, such as extra addons
func WithSessionOptions(opts ...session.Option) Option {
	return func(o *options) { o.sessionOpts = append(o.sessionOpts, opts...) }
}

// NewServer creates the session, its store and the router
func NewServer(ctx context.Context, cfg *config.Config, logger *logging.Logger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	logger.Info("Initializing nodeflow server",
		zap.String("port", cfg.Server.Port),
		zap.Bool("threaded", cfg.Session.Threaded),
		zap.String("storage", cfg.Storage.Backend))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)

	store := o.store
	if store == nil {
		var err error
		store, err = OpenStore(ctx, cfg.Storage, logger)
		if err != nil {
			return nil, err
		}
	}

	sessionOpts := append([]session.Option{
		session.WithThreaded(cfg.Session.Threaded),
		session.WithLogger(logger),
		session.WithMetrics(metrics),
		session.WithAddons(variables.New()),
	}, o.sessionOpts...)
	sess, err := session.New(sessionOpts...)
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if name := cfg.Session.Project; name != "" {
		report, err := sess.Open(ctx, store, name)
		switch {
		case errors.Is(err, project.ErrNotFound):
			logger.Warn("Startup project not found, starting empty", zap.String("project", name))
		case err != nil:
			sess.Close()
			closeStore(store)
			return nil, err
		case !report.OK():
			logger.Warn("Startup project loaded with errors", zap.String("project", name), zap.Error(report.Err()))
		}
	}

	owner := session.NewOwner(sess)
	hub := ws.NewHub(logger, metrics)
	sess.Subscribe(hub.Publish)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Named("http")))
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.Server.AllowOrigins
	router.Use(middleware.CORS(cors))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst))
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}

	handlers := apihttp.NewHandlers(owner, store, cfg.Session.Name, logger)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Scripts
	router.GET("/scripts", handlers.ListScripts)
	router.POST("/scripts", handlers.CreateScript)
	router.PATCH("/scripts/:title", handlers.RenameScript)
	router.DELETE("/scripts/:title", handlers.DeleteScript)

	// Node types and addons
	router.GET("/nodes", handlers.ListNodes)
	router.POST("/nodes", handlers.RegisterNodes)
	router.GET("/addons", handlers.ListAddons)

	// Projects
	router.GET("/project", handlers.GetProject)
	router.POST("/project/save", handlers.SaveProject)
	router.POST("/project/load", handlers.LoadProject)
	router.GET("/projects", handlers.ListProjects)

	// Event stream
	router.GET("/stream", hub.HandleConnection)

	if cfg.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	logger.Info("Server initialized successfully", zap.String("session_id", sess.ID()))

	return &Server{
		router:   router,
		session:  sess,
		owner:    owner,
		hub:      hub,
		store:    store,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		registry: registry,
	}, nil
}

// OpenStore builds the project store selected by cfg. Redis stores are
// guarded by a circuit breaker.
func OpenStore(ctx context.Context, cfg config.StorageConfig, logger *logging.Logger) (project.Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	switch cfg.Backend {
	case "redis":
		store, err := project.NewRedisStore(ctx, cfg.RedisURL, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		return project.Guard(store, resilience.Settings{
			FailureThreshold: cfg.BreakerFailures,
			Cooldown:         cfg.BreakerCooldown,
			OnStateChange: func(name string, from, to resilience.State) {
				logger.Warn("Store circuit breaker changed state",
					zap.String("breaker", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to))
			},
		}), nil
	default:
		format, err := project.ParseFormat(cfg.Format)
		if err != nil {
			return nil, err
		}
		return project.NewFileStore(cfg.Dir, format)
	}
}

// Handler returns the router
func (s *Server) Handler() http.Handler { return s.router }

// Session returns the served session
func (s *Server) Session() *session.Session { return s.session }

// Run listens on the configured address and serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the session owner, the event bridge consumer and the HTTP
// server on ln until ctx is cancelled or one of them fails
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.router}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCanceled(s.owner.Run(ctx))
	})
	if b := s.session.Bridge(); b != nil {
		g.Go(func() error {
			return ignoreCanceled(b.Run(ctx))
		})
	}
	g.Go(func() error {
		s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.hub.Close()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases the session, clients and store
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")
	s.session.Close()
	s.hub.Close()
	err := closeStore(s.store)
	if err != nil {
		s.logger.Error("Failed to close store", zap.Error(err))
	}
	s.logger.Sync()
	return err
}

func closeStore(store project.Store) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
