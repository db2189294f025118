package main

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/elevenshopping/gateway/internal/elevenlabs"
)

type config struct {
	port                  string
	elevenlabsAPIKey      string
	agentID               string
	elevenlabsBaseURL     string
	credentialPoolSize    int
	maxConcurrentSessions int
	traceDBURL            string
	logLevel              string
}

func loadConfig() config {
	return config{
		port:                  envStr("GATEWAY_PORT", "8000"),
		elevenlabsAPIKey:      envStr("ELEVENLABS_API_KEY", ""),
		agentID:               envStr("AGENT_ID", ""),
		elevenlabsBaseURL:     envStr("ELEVENLABS_BASE_URL", ""),
		credentialPoolSize:    envInt("CREDENTIAL_POOL_SIZE", 10),
		maxConcurrentSessions: envInt("MAX_CONCURRENT_SESSIONS", 100),
		traceDBURL:            envStr("TRACE_DB_URL", ""),
		logLevel:              envStr("LOG_LEVEL", "info"),
	}
}

func (c config) elevenlabsConfig() elevenlabs.Config {
	return elevenlabs.Config{
		APIKey:  c.elevenlabsAPIKey,
		AgentID: c.agentID,
		BaseURL: c.elevenlabsBaseURL,
	}
}

func (c config) slogLevel() slog.Level {
	switch c.logLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envStr(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}
