package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/regaipserdar/proxxy-sub001/internal/errors"
	"github.com/regaipserdar/proxxy-sub001/internal/logging"
	"github.com/regaipserdar/proxxy-sub001/internal/resilience"
)

const heartbeatInterval = 10 * time.Second

// InterceptResumeHandler reacts to a resume decision pushed down from
// the orchestrator for a request the agent is holding paused.
type InterceptResumeHandler interface {
	HandleInterceptResume(resume InterceptResume)
}

// CommandHandler reacts to a registry.Command pushed down from the
// orchestrator's command channel (e.g. a live policy update).
type CommandHandler interface {
	HandleCommand(kind string, payload interface{})
}

// Client is the agent-side half of the transport: it dials the
// orchestrator, registers, and keeps the connection alive with periodic
// heartbeats, reconnecting with backoff on failure.
type Client struct {
	url        string
	agentID    string
	name       string
	authToken  string
	proxyAddr  string
	adminAddr  string
	logger     *logging.Logger
	breaker    *resilience.CircuitBreaker
	resumeSink InterceptResumeHandler
	commands   CommandHandler

	mu      sync.Mutex
	conn    *websocket.Conn
	caCert  []byte
	sendMu  sync.Mutex
}

// ClientConfig configures a Client.
type ClientConfig struct {
	URL        string
	AgentID    string
	Name       string
	AuthToken  string
	ProxyAddr  string
	AdminAddr  string
	Logger     *logging.Logger
	ResumeSink InterceptResumeHandler
	Commands   CommandHandler
}

// NewClient builds a Client from cfg.
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		url:        cfg.URL,
		agentID:    cfg.AgentID,
		name:       cfg.Name,
		authToken:  cfg.AuthToken,
		proxyAddr:  cfg.ProxyAddr,
		adminAddr:  cfg.AdminAddr,
		logger:     cfg.Logger,
		breaker:    resilience.New(resilience.AgentConfig()),
		resumeSink: cfg.ResumeSink,
		commands:   cfg.Commands,
	}
}

// CACertPEM returns the CA certificate handed down by the orchestrator
// at registration time, or nil before the first successful connection.
func (c *Client) CACertPEM() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caCert
}

// Run dials, registers, and pumps frames until ctx is cancelled,
// reconnecting with exponential backoff whenever the connection drops.
func (c *Client) Run(ctx context.Context) error {
	retryCfg := resilience.DefaultRetryConfig()
	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := c.breaker.Execute(ctx, func() error { return c.connectAndServe(ctx) })
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.logger != nil {
			c.logger.WithError(err).Warn("transport connection lost, reconnecting")
		}

		delay := backoffDelay(retryCfg, attempt)
		attempt++
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func backoffDelay(cfg resilience.RetryConfig, attempt int) time.Duration {
	delay := cfg.InitialDelay
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
			break
		}
	}
	return delay
}

func (c *Client) connectAndServe(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return errors.Network("dial orchestrator", err)
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.register(conn); err != nil {
		return err
	}

	innerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.heartbeatLoop(innerCtx)
	}()
	go func() {
		defer wg.Done()
		c.readLoop(conn, cancel)
	}()
	wg.Wait()
	return errors.Network("connection closed", nil)
}

func (c *Client) register(conn *websocket.Conn) error {
	req := Frame{Kind: FrameRegister, Register: &RegisterRequest{
		AgentID:    c.agentID,
		Name:       c.name,
		AuthToken:  c.authToken,
		ProxyAddr:  c.proxyAddr,
		AgentAdmin: c.adminAddr,
	}}
	if err := conn.WriteJSON(req); err != nil {
		return errors.Network("send registration", err)
	}

	var ack Frame
	if err := conn.ReadJSON(&ack); err != nil {
		return errors.Network("read registration ack", err)
	}
	if ack.RegisterAck == nil || !ack.RegisterAck.Accepted {
		reason := "registration rejected"
		if ack.RegisterAck != nil {
			reason = ack.RegisterAck.Reason
		}
		return errors.Network(reason, nil)
	}

	c.mu.Lock()
	c.caCert = ack.RegisterAck.CACertPEM
	c.mu.Unlock()
	return nil
}

func (c *Client) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Send(Frame{Kind: FrameHeartbeat}); err != nil {
				return
			}
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		switch {
		case frame.Kind == FrameInterceptDone && frame.InterceptDone != nil && c.resumeSink != nil:
			c.resumeSink.HandleInterceptResume(*frame.InterceptDone)
		case frame.Kind == FrameCommand && frame.Command != nil && c.commands != nil:
			c.commands.HandleCommand(frame.Command.Kind, frame.Command.Payload)
		}
	}
}

// Send writes frame to the current connection, serialized against
// concurrent senders (heartbeat loop and traffic reporting both call
// this from separate goroutines).
func (c *Client) Send(frame Frame) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.Network("not connected", nil)
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return conn.WriteJSON(frame)
}

// SendTrafficEvent reports one observed transaction upstream.
func (c *Client) SendTrafficEvent(event TrafficEvent) error {
	return c.Send(Frame{Kind: FrameTrafficEvent, TrafficEvent: &event})
}

// SendInterceptPause notifies the orchestrator that requestID is paused.
func (c *Client) SendInterceptPause(requestID string) error {
	return c.Send(Frame{Kind: FrameInterceptPause, InterceptPause: &InterceptPause{RequestID: requestID, AgentID: c.agentID}})
}
