// The gateway binary is the edge in front of the identity, training,
// engagement and text-classification services. It authenticates callers,
// applies per-route admission control against a shared Redis counter store,
// and forwards or orchestrates requests.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pacetrack/gateway/internal/clients/classifier"
	"github.com/pacetrack/gateway/internal/clients/engagement"
	"github.com/pacetrack/gateway/internal/clients/identity"
	"github.com/pacetrack/gateway/internal/clients/training"
	"github.com/pacetrack/gateway/internal/config"
	"github.com/pacetrack/gateway/internal/logging"
	"github.com/pacetrack/gateway/internal/metrics"
	"github.com/pacetrack/gateway/internal/middleware"
	"github.com/pacetrack/gateway/internal/orchestrator"
	"github.com/pacetrack/gateway/internal/ratelimit"
)

const serviceName = "gateway"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(serviceName, "info", "json").Fatalf("Configuration error: %v", err)
	}

	logger := logging.New(serviceName, cfg.LogLevel, cfg.LogFormat)
	m := metrics.New(serviceName)

	store, err := newCounterStore(cfg, logger)
	if err != nil {
		logger.Fatalf("Counter store error: %v", err)
	}
	defer store.Close()

	identityClient := identity.New(cfg.IdentityURL, cfg.UpstreamTimeout, m)
	trainingClient := training.New(cfg.TrainingURL, cfg.UpstreamTimeout, m)
	engagementClient := engagement.New(cfg.EngagementURL, cfg.InternalToken, cfg.UpstreamTimeout, m)
	classifierClient := classifier.New(cfg.ClassifierURL, cfg.UpstreamTimeout, m)

	h := &handlers{
		identity:     identityClient,
		trainings:    trainingClient,
		engagement:   engagementClient,
		classifier:   classifierClient,
		orchestrator: orchestrator.New(trainingClient, identityClient, logger),
		logger:       logger,
	}

	router, err := buildRouter(routerConfig{
		handlers:    h,
		gate:        middleware.NewAuthGate(identityClient, logger),
		limiter:     middleware.NewLimiter(store, logger, m),
		profiles:    config.LoadLimitsOrDefault(),
		corsOrigins: cfg.CORSOrigins,
		logger:      logger,
		metrics:     m,
	})
	if err != nil {
		logger.Fatalf("Route setup error: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Gateway listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Infof("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Shutdown error: %v", err)
	}
}

// newCounterStore connects the shared counter store. COUNTER_STORE=memory
// selects the in-process store for single-instance deployments; the default
// is the shared Redis store.
func newCounterStore(cfg *config.Config, logger *logging.Logger) (ratelimit.Store, error) {
	if os.Getenv("COUNTER_STORE") == "memory" {
		logger.Warnf("Using in-process counter store; quotas are not shared across instances")
		return ratelimit.NewMemoryStore(ratelimit.MemoryStoreConfig{}), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ratelimit.NewRedisStore(ctx, cfg.Redis)
}
