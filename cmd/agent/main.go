// Command agent runs one Proxxy agent process: a MITM proxy listener, an
// admin HTTP surface, and a websocket client that keeps the orchestrator
// informed of traffic and takes policy and intercept decisions from it.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/regaipserdar/proxxy-sub001/internal/ca"
	"github.com/regaipserdar/proxxy-sub001/internal/config"
	"github.com/regaipserdar/proxxy-sub001/internal/intercept"
	"github.com/regaipserdar/proxxy-sub001/internal/logging"
	"github.com/regaipserdar/proxxy-sub001/internal/policy"
	"github.com/regaipserdar/proxxy-sub001/internal/proxy"
	"github.com/regaipserdar/proxxy-sub001/internal/scope"
	"github.com/regaipserdar/proxxy-sub001/internal/transport"
)

func main() {
	cfg := config.LoadAgentConfig()
	logger := logging.New("proxxy-agent", cfg.LogLevel, cfg.LogFormat)

	agentID := cfg.AgentID
	if agentID == "" {
		agentID = uuid.New().String()
	}

	rootCA, err := ca.New(cfg.CADir)
	if err != nil {
		logger.WithError(err).Fatal("load agent CA")
	}

	controller := intercept.New()

	resumeAdapter := &interceptResumeAdapter{controller: controller, logger: logger}
	commandAdapter := &agentCommandHandler{logger: logger}

	client := transport.NewClient(transport.ClientConfig{
		URL:        cfg.OrchestratorURL,
		AgentID:    agentID,
		Name:       cfg.Name,
		AuthToken:  cfg.AuthToken,
		ProxyAddr:  cfg.ProxyAddr,
		AdminAddr:  cfg.AdvertiseAddr,
		Logger:     logger,
		ResumeSink: resumeAdapter,
		Commands:   commandAdapter,
	})

	report := &clientReporter{client: client}

	defaultPolicy := &policy.Policy{
		Scope: scope.New(nil, nil, scope.ActionLogOnly),
	}

	engine := proxy.NewEngine(proxy.Config{
		ListenAddr: cfg.ProxyAddr,
		AdminAddr:  cfg.AdminAddr,
		AgentID:    agentID,
		CA:         rootCA,
		Policy:     defaultPolicy,
		Controller: controller,
		Reporter:   report,
		Logger:     logger,
	})
	commandAdapter.engine = engine

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proxyServer := &http.Server{Addr: cfg.ProxyAddr, Handler: engine}
	adminServer := &http.Server{Addr: cfg.AdminAddr, Handler: engine.AdminRouter()}

	go func() {
		logger.WithFields(map[string]interface{}{"addr": cfg.ProxyAddr}).Info("proxy listener starting")
		if err := proxyServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("proxy listener stopped")
		}
	}()
	go func() {
		logger.WithFields(map[string]interface{}{"addr": cfg.AdminAddr}).Info("admin listener starting")
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("admin listener stopped")
		}
	}()

	go func() {
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Warn("transport client exited")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = proxyServer.Shutdown(shutdownCtx)
	_ = adminServer.Shutdown(shutdownCtx)
}

// clientReporter adapts a transport.Client to proxy.Reporter, translating
// the proxy engine's transport-agnostic TrafficEvent into the wire shape.
type clientReporter struct {
	client *transport.Client
}

func (r *clientReporter) SendTrafficEvent(event proxy.TrafficEvent) error {
	return r.client.SendTrafficEvent(transport.TrafficEvent{
		RequestID:  event.RequestID,
		AgentID:    event.AgentID,
		Method:     event.Method,
		URL:        event.URL,
		Headers:    event.Headers,
		Body:       event.Body,
		StatusCode: event.StatusCode,
		ObservedAt: event.ObservedAt,
	})
}

func (r *clientReporter) SendInterceptPause(requestID string) error {
	return r.client.SendInterceptPause(requestID)
}

// interceptResumeAdapter translates an orchestrator-issued
// transport.InterceptResume into the intercept.Command the paused
// request's waiter expects.
type interceptResumeAdapter struct {
	controller *intercept.Controller
	logger     *logging.Logger
}

func (a *interceptResumeAdapter) HandleInterceptResume(resume transport.InterceptResume) {
	cmd := intercept.Command{
		ModifiedMethod:  resume.ModifiedMethod,
		ModifiedURL:     resume.ModifiedURL,
		ModifiedHeaders: resume.ModifiedHeaders,
		ModifiedBody:    resume.ModifiedBody,
	}
	switch resume.Action {
	case "drop":
		cmd.Kind = intercept.CommandDrop
	case "modify":
		cmd.Kind = intercept.CommandModify
	default:
		cmd.Kind = intercept.CommandForward
	}
	if !a.controller.ResumeRequest(resume.RequestID, cmd) && a.logger != nil {
		a.logger.WithFields(map[string]interface{}{"request_id": resume.RequestID}).
			Warn("intercept resume for unknown or already-resumed request")
	}
}

// agentCommandHandler dispatches registry.Command frames arriving over
// the control channel; engine is assigned once the proxy.Engine exists
// (after the transport.Client is constructed) but before Run starts
// reading frames.
type agentCommandHandler struct {
	engine *proxy.Engine
	logger *logging.Logger
}

const commandKindPolicyUpdate = "policy_update"

func (h *agentCommandHandler) HandleCommand(kind string, payload interface{}) {
	switch kind {
	case commandKindPolicyUpdate:
		h.applyPolicyUpdate(payload)
	default:
		if h.logger != nil {
			h.logger.WithFields(map[string]interface{}{"kind": kind}).Warn("unrecognized command kind")
		}
	}
}

func (h *agentCommandHandler) applyPolicyUpdate(payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		if h.logger != nil {
			h.logger.WithError(err).Error("re-marshal policy update payload")
		}
		return
	}
	var dto policy.DTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		if h.logger != nil {
			h.logger.WithError(err).Error("decode policy update payload")
		}
		return
	}
	p, err := policy.FromDTO(dto)
	if err != nil {
		if h.logger != nil {
			h.logger.WithError(err).Error("rebuild policy from update")
		}
		return
	}
	h.engine.SetPolicy(p)
	if h.logger != nil {
		h.logger.Info("applied live policy update")
	}
}
