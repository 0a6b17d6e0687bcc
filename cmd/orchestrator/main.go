package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agentware/maestro/internal/adapters/build"
	"github.com/agentware/maestro/internal/adapters/control"
	"github.com/agentware/maestro/internal/adapters/tracker"
	"github.com/agentware/maestro/internal/adapters/vcs"
	"github.com/agentware/maestro/internal/archive"
	"github.com/agentware/maestro/internal/common/config"
	"github.com/agentware/maestro/internal/common/logger"
	"github.com/agentware/maestro/internal/events/bridge"
	"github.com/agentware/maestro/internal/events/bus"
	"github.com/agentware/maestro/internal/gateway/websocket"
	"github.com/agentware/maestro/internal/orchestrator/adapter"
	"github.com/agentware/maestro/internal/orchestrator/api"
	"github.com/agentware/maestro/internal/orchestrator/claims"
	"github.com/agentware/maestro/internal/orchestrator/ratelimit"
	"github.com/agentware/maestro/internal/orchestrator/session"
	"github.com/agentware/maestro/internal/orchestrator/workspace"
	"github.com/agentware/maestro/pkg/contract"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("Starting Maestro orchestrator...")

	// 3. Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Connect the event bus (in-memory unless a NATS URL is configured)
	eventBus, err := bus.New(cfg.NATS, log)
	if err != nil {
		log.Fatal("Failed to connect event bus", zap.Error(err))
	}
	defer eventBus.Close()

	// 5. Load policy profiles
	profiles, err := config.LoadPolicies(cfg.Policy.ProfilesFile)
	if err != nil {
		log.Fatal("Failed to load policy profiles", zap.Error(err))
	}
	log.Info("Loaded policy profiles", zap.Int("profiles", len(profiles)))

	// 6. Initialize core components
	workspaces := workspace.NewProvider(workspace.Config{
		Root:              cfg.Workspace.Root,
		CleanupOnTeardown: cfg.Workspace.CleanupOnTeardown,
	}, log)

	var globalLimits *contract.RateLimits
	if cfg.Policy.GlobalCallsPerMinute > 0 {
		globalLimits = &contract.RateLimits{
			CallsPerMinute: cfg.Policy.GlobalCallsPerMinute,
			Burst:          cfg.Policy.GlobalBurst,
		}
	}
	limiter := ratelimit.NewLimiter(globalLimits, log)

	claimsMgr := claims.NewManager(claims.Config{
		DefaultClaimTimeout:           cfg.Claims.DefaultClaimTimeoutDuration(),
		MaxConcurrentClaimsPerAgent:   cfg.Claims.MaxConcurrentClaimsPerAgent,
		MaxConcurrentClaimsPerSession: cfg.Claims.MaxConcurrentClaimsPerSession,
		RenewalWindow:                 cfg.Claims.RenewalWindowDuration(),
		AutoReleaseOnInactivity:       cfg.Claims.AutoReleaseOnInactivity,
	}, log)

	// 7. Register adapters; registration order is dispatch priority
	live := contract.LivePolicy{DryRun: cfg.Live.DryRun, AllowPush: cfg.Live.AllowPush}
	registry := adapter.NewRegistry()
	if name := cfg.Adapters.VCSAdapter; name != "" {
		registry.Register(name, vcs.New(live, log))
	}
	if name := cfg.Adapters.WorkItemsAdapter; name != "" {
		registry.Register(name, tracker.New(tracker.NewStore(), claimsMgr, log))
	}
	if name := cfg.Adapters.BuildAdapter; name != "" {
		registry.Register(name, build.New(cfg.Pipeline.CommandTimeoutDuration(), log))
	}
	registry.Register("control", control.New(log))
	log.Info("Registered adapters", zap.Strings("adapters", registry.Names()))

	// 8. Initialize the session manager
	manager := session.NewManager(registry, limiter, claimsMgr, workspaces, session.Config{
		CommandTimeout:   cfg.Pipeline.CommandTimeoutDuration(),
		SubscriberBuffer: cfg.Pipeline.SubscriberBuffer,
		Profiles:         profiles,
		DefaultProfile:   cfg.Policy.DefaultProfile,
	}, log)
	defer manager.Shutdown()

	// 9. Bridge session events onto the bus
	eventBridge := bridge.New(eventBus, manager, log)
	defer eventBridge.Close()
	manager.OnSessionCreated(func(id contract.SessionID) {
		if err := eventBridge.Attach(id); err != nil {
			log.Error("Failed to bridge session", zap.String("session_id", string(id)), zap.Error(err))
		}
	})

	// 10. Optionally attach the transcript archive
	if cfg.Archive.Enabled {
		transcript, err := archive.Open(cfg.Archive.Path, log)
		if err != nil {
			log.Fatal("Failed to open archive", zap.Error(err))
		}
		defer transcript.Close()
		if _, err := transcript.Attach(eventBus); err != nil {
			log.Fatal("Failed to attach archive", zap.Error(err))
		}
		log.Info("Transcript archive enabled", zap.String("path", cfg.Archive.Path))
	}

	// 11. Setup HTTP server with Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(api.Recovery(log), api.RequestLogger(log), api.ErrorHandler(log), api.CORS())

	handler := api.SetupRoutes(router.Group("/api/v1"), manager, claimsMgr, log)
	router.GET("/health", handler.Health)

	hub := websocket.NewHub(manager, log)
	defer hub.Close()
	router.GET("/ws", func(c *gin.Context) {
		hub.HandleConnection(c.Writer, c.Request)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// 12. Run the server and the claim janitor
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				for _, released := range claimsMgr.CleanupExpired() {
					log.Info("Expired claim released",
						zap.String("work_item", released.WorkItem.ID),
						zap.String("assignee", released.Assignee))
				}
			}
		}
	})

	// 13. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-groupCtx.Done():
	}

	log.Info("Shutting down Maestro orchestrator...")

	// 14. Graceful shutdown
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := group.Wait(); err != nil {
		log.Error("Service error", zap.Error(err))
	}

	log.Info("Maestro orchestrator stopped")
}
