// Package config provides environment-variable configuration loading for
// the orchestrator and agent binaries, adapted from the teacher's
// EnvOrSecret-style helpers (stripped of its TEE secret-store fallback,
// since this system has no enclave).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvOrDefault returns the trimmed value of envKey, or defaultValue if unset
// or empty.
func EnvOrDefault(envKey, defaultValue string) string {
	v := strings.TrimSpace(os.Getenv(envKey))
	if v == "" {
		return defaultValue
	}
	return v
}

// EnvIntOrDefault parses envKey as an int, falling back to defaultValue on
// absence or parse failure.
func EnvIntOrDefault(envKey string, defaultValue int) int {
	v := strings.TrimSpace(os.Getenv(envKey))
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

// EnvDurationOrDefault parses envKey as a time.Duration (e.g. "5s"),
// falling back to defaultValue on absence or parse failure.
func EnvDurationOrDefault(envKey string, defaultValue time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(envKey))
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}

// EnvBoolOrDefault parses envKey as a bool, falling back to defaultValue on
// absence or parse failure.
func EnvBoolOrDefault(envKey string, defaultValue bool) bool {
	v := strings.TrimSpace(os.Getenv(envKey))
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

// OrchestratorConfig holds the orchestrator process's runtime settings.
type OrchestratorConfig struct {
	TransportAddr  string        // ws listener address for agent connections
	ControlAddr    string        // HTTP address for the attack-control API
	CADir          string        // directory holding ca.pem/ca.key
	JWTSecret      string        // HMAC secret for agent registration tokens; empty disables verification
	CommandTimeout time.Duration // loaded but not passed on; registry command sends use registry's fixed commandSendTimeout
	AttackDispatchTimeout time.Duration
	LogLevel       string
	LogFormat      string
}

// LoadOrchestratorConfig reads OrchestratorConfig from the environment.
func LoadOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		TransportAddr:  EnvOrDefault("PROXXY_TRANSPORT_ADDR", ":8443"),
		ControlAddr:    EnvOrDefault("PROXXY_CONTROL_ADDR", ":8080"),
		CADir:          EnvOrDefault("PROXXY_CA_DIR", "./ca"),
		JWTSecret:      EnvOrDefault("PROXXY_JWT_SECRET", ""),
		CommandTimeout: EnvDurationOrDefault("PROXXY_COMMAND_TIMEOUT", 5*time.Second),
		AttackDispatchTimeout: EnvDurationOrDefault("PROXXY_ATTACK_DISPATCH_TIMEOUT", 30*time.Second),
		LogLevel:       EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:      EnvOrDefault("LOG_FORMAT", "json"),
	}
}

// AgentConfig holds an agent process's runtime settings.
type AgentConfig struct {
	OrchestratorURL string // ws(s)://host:port of the orchestrator transport
	AgentID         string // stable identity; generated at startup if unset
	Name            string
	AuthToken       string // bearer token proving this agent's identity to the orchestrator
	ProxyAddr       string // local listener address for the MITM proxy
	AdminAddr       string // local listener address for the admin surface
	AdvertiseAddr   string // admin address advertised to the orchestrator, if different (NAT/container)
	CADir           string // directory holding the shared ca.pem/ca.key this agent signs leafs with
	MetricsInterval time.Duration
	LogLevel        string
	LogFormat       string
}

// LoadAgentConfig reads AgentConfig from the environment.
func LoadAgentConfig() AgentConfig {
	adminAddr := EnvOrDefault("PROXXY_ADMIN_ADDR", ":8889")
	return AgentConfig{
		OrchestratorURL: EnvOrDefault("PROXXY_ORCHESTRATOR_URL", "ws://127.0.0.1:8443/agent"),
		AgentID:         EnvOrDefault("PROXXY_AGENT_ID", ""),
		Name:            EnvOrDefault("PROXXY_AGENT_NAME", "agent"),
		AuthToken:       EnvOrDefault("PROXXY_AGENT_AUTH_TOKEN", ""),
		ProxyAddr:       EnvOrDefault("PROXXY_PROXY_ADDR", ":8888"),
		AdminAddr:       adminAddr,
		AdvertiseAddr:   EnvOrDefault("PROXXY_ADMIN_ADVERTISE_ADDR", adminAddr),
		CADir:           EnvOrDefault("PROXXY_CA_DIR", "./ca"),
		MetricsInterval: EnvDurationOrDefault("PROXXY_METRICS_INTERVAL", 5*time.Second),
		LogLevel:        EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       EnvOrDefault("LOG_FORMAT", "json"),
	}
}
