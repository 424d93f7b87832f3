// Package logging provides structured logging with request/agent/attack
// correlation, following the pattern used throughout the proxy, transport
// and attack engine.
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context keys carrying correlation fields.
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	AgentIDKey   ContextKey = "agent_id"
	AttackIDKey  ContextKey = "attack_id"
)

// Logger wraps logrus.Logger, tagging every entry with a service name.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a new Logger instance.
func New(service, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	logger.SetOutput(os.Stdout)

	return &Logger{Logger: logger, service: service}
}

// NewFromEnv constructs a logger using LOG_LEVEL and LOG_FORMAT environment
// variables. Defaults to "info" and "json" when unset.
func NewFromEnv(service string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(service, level, format)
}

// WithContext creates a new logger entry carrying correlation fields pulled
// from ctx (request_id, agent_id, attack_id — whichever are present).
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)

	if v := ctx.Value(RequestIDKey); v != nil {
		entry = entry.WithField("request_id", v)
	}
	if v := ctx.Value(AgentIDKey); v != nil {
		entry = entry.WithField("agent_id", v)
	}
	if v := ctx.Value(AttackIDKey); v != nil {
		entry = entry.WithField("attack_id", v)
	}
	return entry
}

// WithFields creates a new logger entry with custom fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["service"] = l.service
	return l.Logger.WithFields(fields)
}

// WithError creates a new logger entry carrying the error message.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{
		"service": l.service,
		"error":   err.Error(),
	})
}

// WithRequestID adds a request id to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithAgentID adds an agent id to the context.
func WithAgentID(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, AgentIDKey, agentID)
}

// WithAttackID adds an attack id to the context.
func WithAttackID(ctx context.Context, attackID string) context.Context {
	return context.WithValue(ctx, AttackIDKey, attackID)
}

// LogTrafficEvent logs a Request/Response/WebSocketFrame traffic event
// observed by the proxy engine.
func (l *Logger) LogTrafficEvent(ctx context.Context, eventType, method, url string, statusCode int) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"event":       eventType,
		"method":      method,
		"url":         url,
		"status_code": statusCode,
	}).Info("traffic event")
}

// LogAttackDispatch logs a single attack request dispatch decision.
func (l *Logger) LogAttackDispatch(ctx context.Context, agentID string, duration time.Duration, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"agent_id":    agentID,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("attack request failed")
	} else {
		entry.Debug("attack request completed")
	}
}

// LogAgentStatus logs an agent status transition observed by the registry.
func (l *Logger) LogAgentStatus(ctx context.Context, agentID, from, to string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"agent_id": agentID,
		"from":     from,
		"to":       to,
	}).Info("agent status changed")
}
