// Package server wires the stores, provider registry, scheduler, and the
// managed docling-serve container behind one HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackzampolin/docpond/internal/api"
	"github.com/jackzampolin/docpond/internal/config"
	"github.com/jackzampolin/docpond/internal/doclingsrv"
	"github.com/jackzampolin/docpond/internal/home"
	"github.com/jackzampolin/docpond/internal/jobs"
	"github.com/jackzampolin/docpond/internal/pdf"
	"github.com/jackzampolin/docpond/internal/pipeline/processdoc"
	"github.com/jackzampolin/docpond/internal/presets"
	"github.com/jackzampolin/docpond/internal/providers"
	"github.com/jackzampolin/docpond/internal/records"
	"github.com/jackzampolin/docpond/internal/server/endpoints"
	"github.com/jackzampolin/docpond/internal/storage"
	"github.com/jackzampolin/docpond/internal/svcctx"
)

// Server is the main docpond HTTP server. When docling is managed it also
// owns the docling-serve container lifecycle, starting it on server start
// and stopping it on shutdown.
type Server struct {
	httpServer     *http.Server
	doclingManager *doclingsrv.Manager
	recordsStore   records.Store
	blobStore      storage.Store
	engine         pdf.Engine
	presetStore    *presets.Store
	jobManager     *jobs.Manager
	scheduler      *jobs.Scheduler
	registry       *providers.Registry
	configMgr      *config.Manager
	homeDir        *home.Dir
	logger         *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8141)
	Port string
	// Home is the docpond home directory
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger

	// Overrides for tests. When nil, production implementations rooted in
	// Home are used.
	Records records.Store
	Storage storage.Store
	Engine  pdf.Engine
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8141"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		return nil, errors.New("home directory is required")
	}
	if err := cfg.Home.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to prepare home directory: %w", err)
	}

	registry := providers.NewRegistry()
	registry.SetLogger(cfg.Logger)

	var appCfg *config.Config
	if cfg.ConfigManager != nil {
		appCfg = cfg.ConfigManager.Get()
		registry.Reload(appCfg.ToProviderRegistryConfig())

		cfg.ConfigManager.OnChange(func(c *config.Config) {
			registry.Reload(c.ToProviderRegistryConfig())
			cfg.Logger.Info("provider registry reloaded from config")
		})
	} else {
		appCfg = config.DefaultConfig()
		registry.Reload(appCfg.ToProviderRegistryConfig())
	}

	var doclingManager *doclingsrv.Manager
	if appCfg.Docling.Enabled && appCfg.Docling.Managed {
		dm, err := doclingsrv.NewManager(doclingsrv.Config{
			ContainerName: appCfg.Docling.ContainerName,
			Image:         appCfg.Docling.Image,
			HostPort:      appCfg.Docling.Port,
			CachePath:     cfg.Home.TmpPath(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create docling manager: %w", err)
		}
		doclingManager = dm
	}

	recordsStore := cfg.Records
	if recordsStore == nil {
		recordsStore = records.NewMemoryStore()
	}
	blobStore := cfg.Storage
	if blobStore == nil {
		blobStore = storage.NewLocal(cfg.Home.StoragePath())
	}
	engine := cfg.Engine
	if engine == nil {
		engine = pdf.NewEngine()
	}

	presetStore, err := presets.NewStore(cfg.Home.PresetsPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open preset store: %w", err)
	}
	if err := presetStore.EnsureDefaults(); err != nil {
		return nil, fmt.Errorf("failed to seed default presets: %w", err)
	}

	jobManager := jobs.NewManager()
	scheduler := jobs.NewScheduler(jobs.SchedulerConfig{
		Logger:  cfg.Logger,
		Manager: jobManager,
	})
	if err := scheduler.InitFromRegistry(registry); err != nil {
		return nil, fmt.Errorf("failed to init worker pools: %w", err)
	}
	scheduler.InitCPUPool(appCfg.Defaults.MaxWorkers)
	processdoc.RegisterHandlers(scheduler)
	scheduler.RegisterFactory(processdoc.JobType, processdoc.NewFactory())

	s := &Server{
		doclingManager: doclingManager,
		recordsStore:   recordsStore,
		blobStore:      blobStore,
		engine:         engine,
		presetStore:    presetStore,
		jobManager:     jobManager,
		scheduler:      scheduler,
		registry:       registry,
		configMgr:      cfg.ConfigManager,
		homeDir:        cfg.Home,
		logger:         cfg.Logger,
	}

	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{DoclingManager: doclingManager}) {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  10 * time.Minute, // large uploads
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the server, the scheduler, and (when managed) docling-serve.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if s.doclingManager != nil {
		if err := s.doclingManager.ValidateExisting(ctx); err != nil {
			s.setNotRunning()
			return fmt.Errorf("existing docling container incompatible: %w", err)
		}
		s.logger.Info("starting docling-serve")
		if err := s.doclingManager.Start(ctx); err != nil {
			s.setNotRunning()
			return fmt.Errorf("failed to start docling-serve: %w", err)
		}
		s.logger.Info("docling-serve is ready", "url", s.doclingManager.URL())
	}

	s.services = &svcctx.Services{
		Records:    s.recordsStore,
		Storage:    s.blobStore,
		Engine:     s.engine,
		JobManager: s.jobManager,
		Registry:   s.registry,
		Scheduler:  s.scheduler,
		Presets:    s.presetStore,
		Config:     s.configMgr,
		Logger:     s.logger,
		Home:       s.homeDir,
	}

	// The scheduler and its handlers see the same services the HTTP layer
	// injects per request.
	schedCtx, cancelSched := context.WithCancel(svcctx.WithServices(ctx, s.services))
	defer cancelSched()
	go s.scheduler.Start(schedCtx)

	if resumed, err := s.scheduler.Resume(schedCtx); err != nil {
		s.logger.Warn("failed to resume interrupted jobs", "error", err)
	} else if resumed > 0 {
		s.logger.Info("resumed interrupted jobs", "count", resumed)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server and docling-serve.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.doclingManager != nil {
		s.logger.Info("stopping docling-serve")
		if err := s.doclingManager.Stop(shutdownCtx); err != nil {
			s.logger.Error("docling-serve stop error", "error", err)
		}
		if err := s.doclingManager.Close(); err != nil {
			s.logger.Error("docling manager close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// Scheduler returns the job scheduler.
func (s *Server) Scheduler() *jobs.Scheduler {
	return s.scheduler
}

// Handler returns the fully wired HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.services == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
