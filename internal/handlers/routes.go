package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"pilotd/pkg/db"
)

// RouterOptions tunes the cross-cutting HTTP behaviour.
type RouterOptions struct {
	AllowedOrigins []string
	RateLimit      int
	RateWindow     time.Duration
}

// Routes constructs the chi router containing all endpoints.
func (a *API) Routes(opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(90 * time.Second))

	allowed := opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", userHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	limit, window := opts.RateLimit, opts.RateWindow
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = time.Minute
	}
	r.Use(httprate.Limit(limit, window))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context(), a.pool); err != nil {
			respondError(w, http.StatusServiceUnavailable, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Method("GET", "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", a.handleStatus)
		r.Post("/messages", a.handleMessage)
		r.Get("/history", a.handleHistory)
		r.Get("/permissions", a.handlePermissions)
		r.Put("/preferences", a.handleUpdatePreference)
	})

	return otelhttp.NewHandler(r, "pilotd")
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := a.svc.CheckStatus(r.Context(), callerID(r))

	code := http.StatusOK
	if status.Status == "error" {
		code = http.StatusForbidden
	}
	respondJSON(w, code, status)
}

func (a *API) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	reply := a.svc.ProcessMessage(r.Context(), callerID(r), req.Message, r.RemoteAddr)
	respondJSON(w, http.StatusOK, reply)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		limit = n
	}

	entries, err := a.svc.History(r.Context(), callerID(r), limit)
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := a.svc.Permissions(r.Context(), callerID(r))
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, perms)
}

func (a *API) handleUpdatePreference(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	req.Field = strings.TrimSpace(strings.ToLower(req.Field))

	pref, err := a.svc.UpdatePreference(r.Context(), callerID(r), req.Field, req.Value)
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"preference": pref})
}
