package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/harun/jiya/internal/config"
	"github.com/harun/jiya/internal/logger"
	"github.com/harun/jiya/internal/observability"
	"github.com/harun/jiya/internal/tracing"
	"github.com/harun/jiya/pkg/agent"
	"github.com/harun/jiya/pkg/call"
	"github.com/harun/jiya/pkg/commitments"
	"github.com/harun/jiya/pkg/gateway"
	"github.com/harun/jiya/pkg/recordstore"
	"github.com/harun/jiya/pkg/session"
	"github.com/harun/jiya/pkg/tools"
)

// Daemon represents the Jiya daemon service
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	// Core modules
	records      recordstore.Store
	recorder     commitments.Recorder
	sessionStore session.Store
	locker       *session.Locker
	sweeper      *session.Sweeper
	toolRegistry *tools.Registry
	provider     agent.LLMProvider
	runner       *agent.Runner
	orchestrator *call.Orchestrator

	// Services
	gatewayServer *gateway.Server

	// Internal
	lifecycle *LifecycleManager

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracingEnabled bool
}

var newAgentRunner = func(cfg agent.Config) (*agent.Runner, error) {
	return agent.NewRunner(cfg)
}

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	observability.EnsureRegistered()
	if err := tracing.InitOpenTelemetry("jiya-daemon"); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
	} else {
		log.Info().Msg("Tracing initialized successfully")
	}

	d := &Daemon{
		config:         cfg,
		logger:         log,
		tracingEnabled: true,
	}

	// Initialize core modules in dependency order
	if err := d.initializeCoreModules(); err != nil {
		d.teardownPartialInit()
		return nil, fmt.Errorf("failed to initialize core modules: %w", err)
	}

	// Initialize services
	if err := d.initializeServices(); err != nil {
		d.teardownPartialInit()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	d.lifecycle = NewLifecycleManager(d)

	return d, nil
}

// teardownPartialInit releases whatever a failed New managed to open.
func (d *Daemon) teardownPartialInit() {
	if d.sessionStore != nil {
		_ = d.sessionStore.Close()
	}
	if d.recorder != nil {
		_ = d.recorder.Close()
	}
	if d.records != nil {
		_ = d.records.Close()
	}
	if d.tracingEnabled {
		_ = tracing.ShutdownOpenTelemetry(context.Background())
		d.tracingEnabled = false
	}
}

// initializeCoreModules initializes all core modules
func (d *Daemon) initializeCoreModules() error {
	zl := d.logger.GetZerolog()

	// Initialize audit logger
	auditPath := filepath.Join(d.config.DataDir, "audit.log")
	if err := observability.InitAuditLogger(auditPath); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to initialize audit logger, using default stderr")
	} else {
		d.logger.Info().Str("path", auditPath).Msg("Audit logger initialized")
	}

	records, err := recordstore.New(d.config.Records, zl)
	if err != nil {
		return fmt.Errorf("failed to create record store: %w", err)
	}
	d.records = records
	d.logger.Info().
		Str("backend", d.config.Records.Backend).
		Str("path", d.config.Records.Path).
		Msg("Customer record store initialized")

	recorder, err := commitments.New(d.config.Commitments, zl)
	if err != nil {
		return fmt.Errorf("failed to create commitment recorder: %w", err)
	}
	d.recorder = recorder
	d.logger.Info().
		Str("backend", d.config.Commitments.Backend).
		Msg("Commitment recorder initialized")

	sessionStore, err := session.NewStore(d.config.Session, zl)
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}
	d.sessionStore = sessionStore
	d.locker = session.NewLocker()
	d.logger.Info().
		Str("backend", d.config.Session.Backend).
		Msg("Session store initialized")

	if d.config.Session.IdleTTLMinutes > 0 {
		ttl := time.Duration(d.config.Session.IdleTTLMinutes) * time.Minute
		d.sweeper = session.NewSweeper(sessionStore, ttl, d.config.Session.SweepSchedule, zl)
		d.logger.Info().
			Dur("ttl", ttl).
			Str("schedule", d.config.Session.SweepSchedule).
			Msg("Session sweeper initialized")
	}

	d.toolRegistry = tools.NewRegistry(zl)
	if err := tools.RegisterCollectionTools(d.toolRegistry, d.records, d.recorder, zl); err != nil {
		return fmt.Errorf("failed to register collection tools: %w", err)
	}
	d.logger.Info().Strs("tools", d.toolRegistry.Names()).Msg("Collection tools registered")

	profile, err := agent.SelectProfile(d.config.AI.Profiles, d.config.Agent.Profile)
	if err != nil {
		return fmt.Errorf("failed to select AI profile: %w", err)
	}
	factory := agent.ProviderFactory{}
	provider, err := factory.NewProvider(profile)
	if err != nil {
		return fmt.Errorf("failed to create AI provider: %w", err)
	}
	d.provider = provider
	d.logger.Info().
		Str("profile", profile.ID).
		Str("provider", profile.Provider).
		Str("model", d.config.Agent.Model).
		Msg("AI provider initialized")

	runner, err := newAgentRunner(agent.Config{
		Provider: provider,
		Tools:    d.toolRegistry,
		Agent:    d.config.Agent,
		Logger:   zl,
	})
	if err != nil {
		return fmt.Errorf("failed to create agent runner: %w", err)
	}
	d.runner = runner
	d.logger.Info().Msg("Agent runner initialized")

	return nil
}

// initializeServices initializes the gateway and wires the transcript
// stream through the orchestrator.
func (d *Daemon) initializeServices() error {
	zl := d.logger.GetZerolog()

	observers := gateway.NewObserverRegistry()
	broadcaster := gateway.NewTranscriptBroadcaster(observers, zl)

	orchestrator, err := call.NewOrchestrator(call.Config{
		Store:  d.sessionStore,
		Locker: d.locker,
		Loop:   d.runner,
		Sink:   broadcaster,
		Agent:  d.config.Agent,
		Logger: zl,
	})
	if err != nil {
		return fmt.Errorf("failed to create call orchestrator: %w", err)
	}
	d.orchestrator = orchestrator
	d.logger.Info().Msg("Call orchestrator initialized")

	gatewayServer, err := gateway.NewServer(gateway.Config{
		Host:         d.config.Gateway.Host,
		Port:         d.config.Gateway.Port,
		SharedSecret: d.config.Gateway.SharedSecret,
		Orchestrator: orchestrator,
		Observers:    observers,
		Broadcaster:  broadcaster,
		Logger:       zl,
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway server: %w", err)
	}
	d.gatewayServer = gatewayServer
	d.logger.Info().Msg("Gateway server initialized")

	return nil
}

// Start starts the daemon service
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Starting Jiya daemon")

	// Start lifecycle manager
	if err := d.lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	// Start gateway server
	if err := d.gatewayServer.Start(); err != nil {
		return fmt.Errorf("failed to start gateway server: %w", err)
	}
	logger.Info().Str("addr", d.gatewayServer.Addr()).Msg("Gateway server started")

	// Start session sweeper
	if d.sweeper != nil {
		if err := d.sweeper.Start(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start session sweeper")
		} else {
			logger.Info().Msg("Session sweeper started")
		}
	}

	logger.Info().Msg("Daemon started successfully - all core modules active")

	return nil
}

// Stop stops the daemon service gracefully
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Stopping Jiya daemon")

	// Stop gateway server first so no new calls arrive
	if d.gatewayServer != nil {
		if err := d.gatewayServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop gateway server")
		}
	}

	// Stop session sweeper
	if d.sweeper != nil {
		d.sweeper.Stop()
		logger.Info().Msg("Session sweeper stopped")
	}

	// Close stores
	if d.sessionStore != nil {
		if err := d.sessionStore.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close session store")
		}
	}
	if d.recorder != nil {
		if err := d.recorder.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close commitment recorder")
		}
	}
	if d.records != nil {
		if err := d.records.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close record store")
		}
	}

	// Stop lifecycle manager
	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	if d.tracingEnabled {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tracing.ShutdownOpenTelemetry(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to shutdown tracing")
		}
		cancel()
		d.tracingEnabled = false
	}

	// Close audit logger
	if err := observability.GetAuditLogger().Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close audit logger")
	}

	logger.Info().Msg("Daemon stopped successfully")

	return nil
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running: d.running,
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
		status.GatewayAddr = d.gatewayServer.Addr()
	}

	return status
}

// Wait waits for the daemon to stop
func (d *Daemon) Wait() {
	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for signal
	sig := <-sigChan
	d.logger.Info().Str("signal", sig.String()).Msg("Received signal")

	// Stop daemon
	if err := d.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// GetConfig returns the daemon configuration
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetLogger returns the daemon logger
func (d *Daemon) GetLogger() *logger.Logger {
	return d.logger
}

// GetOrchestrator returns the call orchestrator
func (d *Daemon) GetOrchestrator() *call.Orchestrator {
	return d.orchestrator
}

// Status represents daemon status
type Status struct {
	Running     bool
	Uptime      time.Duration
	StartTime   time.Time
	GatewayAddr string
}
