// Command orchestrator runs the Proxxy orchestrator process: the agent
// registry and websocket transport, the attack execution engine, and the
// operator-facing control API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/regaipserdar/proxxy-sub001/internal/attack"
	"github.com/regaipserdar/proxxy-sub001/internal/ca"
	"github.com/regaipserdar/proxxy-sub001/internal/config"
	"github.com/regaipserdar/proxxy-sub001/internal/control"
	"github.com/regaipserdar/proxxy-sub001/internal/intercept"
	"github.com/regaipserdar/proxxy-sub001/internal/logging"
	"github.com/regaipserdar/proxxy-sub001/internal/metrics"
	"github.com/regaipserdar/proxxy-sub001/internal/ratelimit"
	"github.com/regaipserdar/proxxy-sub001/internal/registry"
	"github.com/regaipserdar/proxxy-sub001/internal/transport"
)

// maxConcurrentAttacks bounds the shared attacks-in-flight semaphore; see
// internal/attack.SemaphoreResourceManager.
const maxConcurrentAttacks = 10

func main() {
	cfg := config.LoadOrchestratorConfig()
	logger := logging.New("proxxy-orchestrator", cfg.LogLevel, cfg.LogFormat)

	rootCA, err := ca.New(cfg.CADir)
	if err != nil {
		logger.WithError(err).Fatal("load orchestrator CA")
	}

	reg := registry.New()
	controller := intercept.New()

	var m *metrics.Metrics
	if metrics.Enabled() {
		m = metrics.Init("proxxy-orchestrator")
	}

	var jwtSecret []byte
	if cfg.JWTSecret != "" {
		jwtSecret = []byte(cfg.JWTSecret)
	}

	sink := &loggingTrafficSink{logger: logger}
	transportServer := transport.NewServer(reg, controller, rootCA, sink, logger, m, jwtSecret)

	agentManager := attack.NewHTTPAgentManager(reg, cfg.AttackDispatchTimeout)
	resources := &attack.SemaphoreResourceManager{Attacks: ratelimit.NewSemaphore(maxConcurrentAttacks)}
	controlAPI := control.New(reg, controller, agentManager, resources, logger, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transportHTTP := &http.Server{Addr: cfg.TransportAddr, Handler: transportServer}
	controlHTTP := &http.Server{Addr: cfg.ControlAddr, Handler: controlAPI.Router()}

	go func() {
		logger.WithFields(map[string]interface{}{"addr": cfg.TransportAddr}).Info("transport listener starting")
		if err := transportHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("transport listener stopped")
		}
	}()
	go func() {
		logger.WithFields(map[string]interface{}{"addr": cfg.ControlAddr}).Info("control API starting")
		if err := controlHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("control API stopped")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = transportHTTP.Shutdown(shutdownCtx)
	_ = controlHTTP.Shutdown(shutdownCtx)
}

// loggingTrafficSink is the orchestrator's minimal TrafficSink: every
// observed transaction is logged with correlation fields. A complete
// deployment would also persist these for the session model and
// dashboards; that storage layer is out of scope here.
type loggingTrafficSink struct {
	logger *logging.Logger
}

func (s *loggingTrafficSink) HandleTrafficEvent(event transport.TrafficEvent) {
	ctx := logging.WithAgentID(context.Background(), event.AgentID)
	ctx = logging.WithRequestID(ctx, event.RequestID)
	s.logger.LogTrafficEvent(ctx, "traffic_event", event.Method, event.URL, event.StatusCode)
}
