package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elevenshopping/gateway/internal/catalog"
	"github.com/elevenshopping/gateway/internal/elevenlabs"
	"github.com/elevenshopping/gateway/internal/metrics"
	"github.com/elevenshopping/gateway/internal/trace"
)

// defaultTraceSessionLimit is how many trace sessions are returned when the
// caller omits the ?limit= query parameter.
const defaultTraceSessionLimit = 20

type deps struct {
	cfg        config
	vendor     *elevenlabs.Client
	wsHandler  http.Handler
	traceStore *trace.Store
}

// registerRoutes wires all HTTP endpoints to the shared mux.
func registerRoutes(mux *http.ServeMux, d deps) {
	mux.Handle("/ws/session", d.wsHandler)
	mux.HandleFunc("/health", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/signed-url", d.handleSignedURL)
	mux.HandleFunc("GET /api/webrtc-token", d.handleWebRTCToken)
	mux.HandleFunc("GET /api/test-env", d.handleTestEnv)
	mux.HandleFunc("GET /api/catalog", handleCatalog)
	mux.HandleFunc("GET /api/catalog/{id}/resource", handleCatalogResource)
	registerTraceRoutes(mux, d.traceStore)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (d deps) handleSignedURL(w http.ResponseWriter, r *http.Request) {
	cred, err := d.vendor.SignedURL(r.Context())
	if err != nil {
		metrics.CredentialFetches.WithLabelValues("signed-url", "error").Inc()
		writeCredentialError(w, err)
		return
	}
	metrics.CredentialFetches.WithLabelValues("signed-url", "ok").Inc()
	writeTokenJSON(w, map[string]interface{}{
		"signedUrl": cred.SignedURL,
		"isDemo":    cred.IsDemo,
	})
}

func (d deps) handleWebRTCToken(w http.ResponseWriter, r *http.Request) {
	cred, err := d.vendor.WebRTCToken(r.Context())
	if err != nil {
		metrics.CredentialFetches.WithLabelValues("webrtc-token", "error").Inc()
		writeCredentialError(w, err)
		return
	}
	metrics.CredentialFetches.WithLabelValues("webrtc-token", "ok").Inc()
	writeTokenJSON(w, map[string]interface{}{
		"conversationToken": cred.ConversationToken,
		"isDemo":            cred.IsDemo,
	})
}

// handleTestEnv reports which credential variables are present without
// exposing their values.
func (d deps) handleTestEnv(w http.ResponseWriter, r *http.Request) {
	agentID := d.cfg.agentID
	agentIDValue := ""
	if agentID != "" {
		if len(agentID) > 8 {
			agentIDValue = agentID[:8] + "..."
		} else {
			agentIDValue = agentID + "..."
		}
	}

	var envKeys []string
	for _, entry := range os.Environ() {
		key, _, _ := strings.Cut(entry, "=")
		if strings.Contains(key, "AGENT") || strings.Contains(key, "ELEVEN") || strings.Contains(key, "API") {
			envKeys = append(envKeys, key)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"hasAgentId":       agentID != "",
		"hasElevenLabsKey": d.cfg.elevenlabsAPIKey != "",
		"agentIdValue":     agentIDValue,
		"allEnvKeys":       envKeys,
	})
}

func handleCatalog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"products": catalog.Products})
}

func handleCatalogResource(w http.ResponseWriter, r *http.Request) {
	product, ok := catalog.Find(r.PathValue("id"))
	if !ok {
		writeErrorJSON(w, http.StatusNotFound, "unknown product", r.PathValue("id"))
		return
	}
	res, err := catalog.ProductCard(product)
	if err != nil {
		slog.Error("product card", "product_id", product.ID, "error", err)
		writeErrorJSON(w, http.StatusInternalServerError, "failed to build resource", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// writeTokenJSON writes a credential response. Token routes are never
// cacheable.
func writeTokenJSON(w http.ResponseWriter, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(body)
}

// writeCredentialError maps credential failures onto the {error, details}
// shape: 400 for missing configuration, the vendor's own status for vendor
// rejections, 500 otherwise.
func writeCredentialError(w http.ResponseWriter, err error) {
	var apiErr *elevenlabs.APIError
	switch {
	case errors.Is(err, elevenlabs.ErrNotConfigured):
		writeErrorJSON(w, http.StatusBadRequest,
			"ELEVENLABS_API_KEY is not configured",
			"Please set the ELEVENLABS_API_KEY environment variable with your ElevenLabs API key.")
	case errors.As(err, &apiErr):
		writeErrorJSON(w, apiErr.Status, "ElevenLabs API error", apiErr.Body)
	default:
		slog.Error("credential fetch", "error", err)
		writeErrorJSON(w, http.StatusInternalServerError, "Failed to get credential", err.Error())
	}
}

func writeErrorJSON(w http.ResponseWriter, status int, msg, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "details": details})
}

func registerTraceRoutes(mux *http.ServeMux, store *trace.Store) {
	mux.HandleFunc("GET /api/traces/sessions", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		limit := queryInt(r, "limit", defaultTraceSessionLimit)
		offset := queryInt(r, "offset", 0)
		sessions, total, err := store.ListSessions(limit, offset)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"sessions": sessions, "total": total})
	})

	mux.HandleFunc("GET /api/traces/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		sess, events, err := store.GetSession(r.PathValue("id"))
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"session": sess, "events": events})
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
