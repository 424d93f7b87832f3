package transport

import (
	"context"
	"net/http"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/regaipserdar/proxxy-sub001/internal/ca"
	"github.com/regaipserdar/proxxy-sub001/internal/intercept"
	"github.com/regaipserdar/proxxy-sub001/internal/logging"
	"github.com/regaipserdar/proxxy-sub001/internal/metrics"
	"github.com/regaipserdar/proxxy-sub001/internal/registry"
)

// commandKindInterceptResume is the registry.Command.Kind the control API
// uses to push an operator's intercept decision down to the agent holding
// it paused; pumpOutbound translates it to a FrameInterceptDone frame
// instead of the generic FrameCommand envelope, since that's the frame
// kind Client.readLoop already dispatches to its InterceptResumeHandler.
const commandKindInterceptResume = "intercept_resume"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// TrafficSink receives every TrafficEvent reported by a connected agent.
type TrafficSink interface {
	HandleTrafficEvent(event TrafficEvent)
}

// Server is the orchestrator-side websocket endpoint agents connect to.
type Server struct {
	registry   *registry.Registry
	controller *intercept.Controller
	ca         *ca.CA
	sink       TrafficSink
	logger     *logging.Logger
	metrics    *metrics.Metrics
	jwtSecret  []byte
}

// NewServer builds a Server. jwtSecret may be nil to disable
// registration-token verification (development only).
func NewServer(reg *registry.Registry, controller *intercept.Controller, rootCA *ca.CA, sink TrafficSink, logger *logging.Logger, m *metrics.Metrics, jwtSecret []byte) *Server {
	return &Server{registry: reg, controller: controller, ca: rootCA, sink: sink, logger: logger, metrics: m, jwtSecret: jwtSecret}
}

// ServeHTTP upgrades the connection and runs its lifetime: register,
// then pump frames in both directions until the socket closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.WithError(err).Warn("websocket upgrade failed")
		}
		return
	}
	defer conn.Close()

	agentID, ok := s.handleRegistration(conn)
	if !ok {
		return
	}
	defer s.registry.Unregister(agentID)
	defer func() {
		if s.metrics != nil {
			s.metrics.AgentsOnline.Dec()
		}
	}()
	if s.metrics != nil {
		s.metrics.AgentsOnline.Inc()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.pumpOutbound(ctx, conn, agentID)
	}()
	go func() {
		defer wg.Done()
		s.pumpInbound(conn, agentID, cancel)
	}()
	wg.Wait()
}

func (s *Server) handleRegistration(conn *websocket.Conn) (string, bool) {
	var frame Frame
	if err := conn.ReadJSON(&frame); err != nil || frame.Kind != FrameRegister || frame.Register == nil {
		_ = conn.WriteJSON(Frame{Kind: FrameRegisterAck, RegisterAck: &RegisterAck{Accepted: false, Reason: "expected a register frame"}})
		return "", false
	}

	if s.jwtSecret != nil {
		if err := s.verifyAuthToken(frame.Register.AuthToken, frame.Register.AgentID); err != nil {
			_ = conn.WriteJSON(Frame{Kind: FrameRegisterAck, RegisterAck: &RegisterAck{Accepted: false, Reason: "invalid auth token"}})
			return "", false
		}
	}

	s.registry.Register(frame.Register.AgentID, frame.Register.Name, conn.RemoteAddr().String())
	s.registry.SetAgentAdmin(frame.Register.AgentID, frame.Register.AgentAdmin)

	ack := &RegisterAck{Accepted: true}
	if s.ca != nil {
		ack.CACertPEM = s.ca.CACertPEM()
	}
	if err := conn.WriteJSON(Frame{Kind: FrameRegisterAck, RegisterAck: ack}); err != nil {
		return "", false
	}

	if s.logger != nil {
		s.logger.LogAgentStatus(context.Background(), frame.Register.AgentID, "", "online")
	}
	return frame.Register.AgentID, true
}

func (s *Server) verifyAuthToken(token, expectedAgentID string) error {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return jwt.ErrTokenSignatureInvalid
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return jwt.ErrTokenInvalidClaims
	}
	if sub, _ := claims["sub"].(string); sub != expectedAgentID {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}

// pumpOutbound drains agentID's command queue and writes each command
// frame down the socket until ctx is cancelled.
func (s *Server) pumpOutbound(ctx context.Context, conn *websocket.Conn, agentID string) {
	commands, ok := s.registry.Commands(agentID)
	if !ok {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-commands:
			frame := Frame{Kind: FrameCommand, Command: &CommandFrame{Kind: cmd.Kind, Payload: cmd.Payload}}
			if cmd.Kind == commandKindInterceptResume {
				if resume, ok := cmd.Payload.(InterceptResume); ok {
					frame = Frame{Kind: FrameInterceptDone, InterceptDone: &resume}
				}
			}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}

// pumpInbound reads frames from the agent: heartbeats refresh the
// registry, traffic events are forwarded to the sink, and intercept
// pause notifications are tracked by the controller.
func (s *Server) pumpInbound(conn *websocket.Conn, agentID string, cancel context.CancelFunc) {
	defer cancel()
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		switch frame.Kind {
		case FrameHeartbeat:
			s.registry.Heartbeat(agentID)
		case FrameTrafficEvent:
			if frame.TrafficEvent != nil {
				s.registry.Heartbeat(agentID)
				if s.metrics != nil {
					s.metrics.RecordTrafficEvent(agentID, "traffic")
				}
				if s.sink != nil {
					s.sink.HandleTrafficEvent(*frame.TrafficEvent)
				}
			}
		case FrameInterceptPause:
			if frame.InterceptPause != nil {
				s.controller.RegisterRequest(frame.InterceptPause.RequestID)
				if s.metrics != nil {
					s.metrics.InterceptionsPaused.Inc()
				}
			}
		}
	}
}
