package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Menenkel/aibulletin/internal/bulletin"
	"github.com/Menenkel/aibulletin/internal/config"
	"github.com/Menenkel/aibulletin/internal/crawler"
	"github.com/Menenkel/aibulletin/internal/metrics"
	"github.com/Menenkel/aibulletin/internal/regions"
	"github.com/Menenkel/aibulletin/internal/storage"
)

const (
	serviceMessage       = "Experimental AI Drought Bulletins API"
	defaultBulletinLimit = 20
	maxBulletinLimit     = 100
)

// Deps are the collaborators behind the HTTP handlers. Archive is optional;
// without it the /bulletins routes are not mounted.
type Deps struct {
	Bulletins *bulletin.Service
	Keys      *bulletin.KeyManager
	Settings  storage.SettingsStore
	Archive   storage.Archive
	Regions   *regions.Catalog
	Logger    *zap.Logger
}

// Server wires HTTP handlers to the bulletin service and stores.
type Server struct {
	router chi.Router
	deps   Deps
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Regions == nil {
		deps.Regions = regions.Default()
	}
	s := &Server{deps: deps, cfg: cfg, logger: deps.Logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(corsMiddleware(cfg.Server.AllowedOrigins))
	r.Use(metrics.Middleware)

	r.Get("/", s.root)
	r.Get("/health", s.health)
	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// A crawl is bounded by its per-seed timeouts and the model client, and can
	// legitimately outlive the request timeout.
	r.Group(func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/crawl-and-summarize", s.crawlAndSummarize)
	})

	r.Group(func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Use(timeoutMiddleware(time.Duration(cfg.Server.RequestTimeout) * time.Second))

		r.Post("/api-key", s.setAPIKey)
		r.Get("/api-key/status", s.apiKeyStatus)
		r.Get("/regions", s.listRegions)
		r.Get("/saved-prompt", s.savedPrompt)
		r.Get("/saved-urls", s.savedURLs)
		r.Get("/system-prompt", s.getSystemPrompt)
		r.Post("/system-prompt", s.setSystemPrompt)

		if deps.Archive != nil {
			r.Get("/bulletins", s.listBulletins)
			r.Get("/bulletins/{id}", s.getBulletin)
		}
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"message": serviceMessage, "pdf_support": bulletin.PDFSupport})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"pdf_support":        bulletin.PDFSupport,
		"api_key_configured": s.deps.Keys != nil && s.deps.Keys.HasKey(),
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type apiKeyRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) setAPIKey(w http.ResponseWriter, r *http.Request) {
	var req apiKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	dev, err := s.deps.Keys.Set(r.Context(), req.APIKey)
	switch {
	case errors.Is(err, bulletin.ErrInvalidAPIKey):
		reason := strings.TrimPrefix(err.Error(), bulletin.ErrInvalidAPIKey.Error()+": ")
		writeError(w, http.StatusBadRequest, "Invalid API key: "+reason)
		return
	case err != nil:
		s.logger.Error("set api key failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to save API key")
		return
	}
	msg := "API key set successfully"
	if dev {
		msg += " (development mode)"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": msg})
}

func (s *Server) apiKeyStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"has_api_key": s.deps.Keys.HasKey()})
}

func (s *Server) listRegions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Regions.Names())
}

func (s *Server) savedPrompt(w http.ResponseWriter, r *http.Request) {
	prompt, err := s.deps.Settings.RecentPrompt(r.Context())
	if err != nil {
		s.logger.Warn("load recent prompt failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]string{"custom_prompt": prompt})
}

type savedURLsResponse struct {
	URLs         []string `json:"urls"`
	CustomPrompt string   `json:"custom_prompt"`
}

func (s *Server) savedURLs(w http.ResponseWriter, r *http.Request) {
	resp := savedURLsResponse{URLs: []string{}}
	entries, err := s.deps.Settings.RecentURLs(r.Context(), 1)
	if err != nil {
		s.logger.Warn("load url history failed", zap.Error(err))
	}
	if len(entries) > 0 {
		if entries[0].URLs != nil {
			resp.URLs = entries[0].URLs
		}
		resp.CustomPrompt = entries[0].CustomPrompt
	}
	writeJSON(w, http.StatusOK, resp)
}

type systemPromptBody struct {
	SystemPrompt string `json:"system_prompt"`
}

func (s *Server) getSystemPrompt(w http.ResponseWriter, r *http.Request) {
	prompt, err := s.deps.Settings.LoadSystemPrompt(r.Context())
	if err != nil {
		s.logger.Warn("load system prompt failed", zap.Error(err))
	}
	if prompt == "" {
		prompt = bulletin.DefaultSystemPrompt
	}
	writeJSON(w, http.StatusOK, systemPromptBody{SystemPrompt: prompt})
}

func (s *Server) setSystemPrompt(w http.ResponseWriter, r *http.Request) {
	var req systemPromptBody
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.deps.Settings.SaveSystemPrompt(r.Context(), req.SystemPrompt); err != nil {
		s.logger.Error("save system prompt failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to save system prompt")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "System prompt saved successfully"})
}

type crawlRequest struct {
	URLs         []string `json:"urls"`
	CustomPrompt string   `json:"custom_prompt"`
	Region       string   `json:"region"`
	FollowLinks  *bool    `json:"follow_links"`
	MaxDepth     *int     `json:"max_depth"`
}

func (s *Server) crawlAndSummarize(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	followLinks := valueOrDefault(req.FollowLinks, true)
	maxDepth := valueOrDefault(req.MaxDepth, s.cfg.Crawler.MaxDepthDefault)
	if followLinks && maxDepth < 1 {
		writeError(w, http.StatusBadRequest, "max_depth must be at least 1")
		return
	}
	region := req.Region
	if region == "" {
		region = regions.GlobalOverview
	}

	resp, err := s.deps.Bulletins.Analyze(r.Context(), bulletin.Request{
		URLs:         req.URLs,
		CustomPrompt: req.CustomPrompt,
		Region:       region,
		FollowLinks:  followLinks,
		MaxDepth:     maxDepth,
	})
	switch {
	case errors.Is(err, bulletin.ErrNoAPIKey):
		writeError(w, http.StatusBadRequest, "API key not set")
		return
	case errors.Is(err, bulletin.ErrNoURLs):
		writeError(w, http.StatusBadRequest, "No URLs provided")
		return
	case errors.Is(err, crawler.ErrInvalidBounds):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("crawl and summarize failed", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listBulletins(w http.ResponseWriter, r *http.Request) {
	limit := defaultBulletinLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxBulletinLimit)
	}
	list, err := s.deps.Archive.ListBulletins(r.Context(), limit)
	if err != nil {
		s.logger.Error("list bulletins failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list bulletins")
		return
	}
	if list == nil {
		list = []storage.Bulletin{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bulletins": list})
}

func (s *Server) getBulletin(w http.ResponseWriter, r *http.Request) {
	b, err := s.deps.Archive.GetBulletin(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "bulletin not found")
		return
	case err != nil:
		s.logger.Error("get bulletin failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load bulletin")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}
