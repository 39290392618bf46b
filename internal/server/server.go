package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/iwvelando/budget-optimizer/internal/pipeline"
	"github.com/iwvelando/budget-optimizer/internal/store"
	"github.com/iwvelando/budget-optimizer/pkg/constants"
	"github.com/iwvelando/budget-optimizer/pkg/datetime"
	"go.uber.org/zap"
)

// FeatureSource supplies aggregated campaign metrics for the auto endpoint.
type FeatureSource interface {
	ChannelFeatures(ctx context.Context, q store.Query) ([]store.ChannelMetrics, error)
	Ping(ctx context.Context) error
}

const healthPingTimeout = 2 * time.Second

// Options configures NewHandler.
type Options struct {
	Engine         *pipeline.Engine
	Store          FeatureSource
	Version        string
	MaxUploadSize  int64
	RequestTimeout time.Duration
	// RateLimit is the number of recommendation requests allowed per client IP
	// per RateWindow. Zero disables limiting.
	RateLimit      int
	RateWindow     time.Duration
	AllowedOrigins []string
}

// OptionsFromConfig maps the server configuration onto handler options.
func OptionsFromConfig(cfg *Config) Options {
	opts := Options{
		MaxUploadSize:  cfg.UploadSizeBytes(),
		RequestTimeout: cfg.RequestTimeoutDuration(),
		RateWindow:     cfg.RateLimitWindow(),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}
	if !cfg.RateLimit.Disabled {
		opts.RateLimit = cfg.RateLimit.Requests
	}
	return opts
}

type handler struct {
	logger        *zap.Logger
	engine        *pipeline.Engine
	store         FeatureSource
	maxUploadSize int64
	version       string
	metrics       *metrics
}

// autoRequest asks for a recommendation built from stored campaign metrics.
type autoRequest struct {
	TotalBudget *float64 `json:"total_budget,omitempty"`
	Duration    *int     `json:"duration,omitempty"`
	Start       string   `json:"start,omitempty"`
	End         string   `json:"end,omitempty"`
	UserID      int64    `json:"user_id,omitempty"`
}

type errorResponse struct {
	Error    string   `json:"error"`
	Kind     string   `json:"kind,omitempty"`
	Expected []string `json:"expected,omitempty"`
	Received []string `json:"received,omitempty"`
}

// NewHandler constructs the HTTP handler that serves the recommendation API.
func NewHandler(logger *zap.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxUploadSize := opts.MaxUploadSize
	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	trimmedVersion := strings.TrimSpace(opts.Version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{
		logger:        logger,
		engine:        opts.Engine,
		store:         opts.Store,
		maxUploadSize: maxUploadSize,
		version:       trimmedVersion,
		metrics:       newMetrics(),
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = time.Duration(constants.DefaultRequestTimeoutSeconds) * time.Second
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(h.metrics.instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/api/health", h.handleHealth)
	r.Get("/api/version", h.handleVersion)
	r.Method(http.MethodGet, "/metrics", h.metrics.handler())

	r.Route("/api/v1/ai", func(r chi.Router) {
		if opts.RateLimit > 0 {
			window := opts.RateWindow
			if window <= 0 {
				window = time.Minute
			}
			r.Use(httprate.LimitByIP(opts.RateLimit, window))
		}
		r.Use(middleware.Timeout(timeout))
		r.Post("/recommend", h.handleRecommend)
		r.Post("/recommend/auto", h.handleRecommendAuto)
	})

	return r
}

func (h *handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug("request served",
			zap.String("op", "server.request"),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("requestID", middleware.GetReqID(r.Context())),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"status":       "ok",
		"model_loaded": h.engine != nil,
		"store":        "disabled",
	}
	status := http.StatusOK
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		err := h.store.Ping(ctx)
		cancel()
		if err != nil {
			h.logger.Warn("campaign metrics store unreachable",
				zap.String("op", "server.handleHealth"),
				zap.Error(err),
			)
			payload["store"] = "unavailable"
			payload["status"] = "degraded"
		} else {
			payload["store"] = "ok"
		}
	}
	if h.engine == nil {
		payload["status"] = "unavailable"
		status = http.StatusServiceUnavailable
	} else {
		settings := h.engine.Settings()
		payload["schema"] = settings.Schema.Version
		payload["channels"] = h.engine.Catalog().Names()
	}
	h.writeJSON(w, status, payload)
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) handleRecommend(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleRecommend"
	if h.engine == nil {
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, "model not loaded", op)
		return
	}

	body, ok := h.readBody(w, r, op)
	if !ok {
		return
	}

	req, err := pipeline.ParseRequest(body)
	if err != nil {
		h.respondPipelineError(w, err, op)
		return
	}
	h.recommend(r.Context(), w, req, op)
}

func (h *handler) handleRecommendAuto(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleRecommendAuto"
	if h.engine == nil {
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, "model not loaded", op)
		return
	}
	if h.store == nil {
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, "campaign metrics store is not configured", op)
		return
	}

	body, ok := h.readBody(w, r, op)
	if !ok {
		return
	}

	var auto autoRequest
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &auto); err != nil {
			h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to parse request: %v", err), op)
			return
		}
	}
	from, to, err := datetime.ParseWindow(auto.Start, auto.End)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	metrics, err := h.store.ChannelFeatures(r.Context(), store.Query{UserID: auto.UserID, From: from, To: to})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			h.respondErrorWithOp(w, http.StatusGatewayTimeout, "request timed out", op)
			return
		}
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to load campaign metrics: %v", err), op)
		return
	}

	inputs, skipped := store.ChannelInputs(h.engine.Catalog(), metrics)
	if len(skipped) > 0 {
		h.logger.Warn("skipping channels unknown to the catalog",
			zap.String("op", op),
			zap.Strings("channels", skipped),
		)
	}
	if len(inputs) == 0 {
		h.respondErrorWithOp(w, http.StatusNotFound, "no campaign metrics found for the requested window", op)
		return
	}

	h.recommend(r.Context(), w, pipeline.Request{
		TotalBudget: auto.TotalBudget,
		Duration:    auto.Duration,
		Channels:    inputs,
	}, op)
}

func (h *handler) recommend(ctx context.Context, w http.ResponseWriter, req pipeline.Request, op string) {
	resp, err := h.engine.Run(ctx, req)
	if err != nil {
		h.respondPipelineError(w, err, op)
		return
	}

	h.metrics.recommendations.WithLabelValues(string(resp.Status)).Inc()
	if resp.Succeeded() {
		if resp.ExpectedRevenue != nil {
			h.metrics.expectedRevenue.Observe(float64(*resp.ExpectedRevenue))
		}
	} else {
		h.logger.Error("optimization failed",
			zap.String("op", op),
			zap.String("runID", resp.RunID),
			zap.String("reason", resp.Reason),
		)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) readBody(w http.ResponseWriter, r *http.Request, op string) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", h.maxUploadSize), op)
			return nil, false
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to read request: %v", err), op)
		return nil, false
	}
	return body, true
}

func (h *handler) respondPipelineError(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, context.DeadlineExceeded) {
		h.respondErrorWithOp(w, http.StatusGatewayTimeout, "request timed out", op)
		return
	}
	if errors.Is(err, context.Canceled) {
		h.logger.Info("request cancelled by client", zap.String("op", op))
		return
	}

	kind, ok := pipeline.KindOf(err)
	if ok {
		h.metrics.pipelineErrors.WithLabelValues(string(kind)).Inc()
	}

	status := http.StatusInternalServerError
	switch kind {
	case pipeline.KindInput, pipeline.KindSchema:
		status = http.StatusBadRequest
	}

	payload := errorResponse{Error: err.Error(), Kind: string(kind)}
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		payload.Expected = pe.Expected
		payload.Received = pe.Received
	}
	h.logError(status, err.Error(), op)
	h.writeJSON(w, status, payload)
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logError(status, msg, op)
	h.writeJSON(w, status, errorResponse{Error: msg})
}

func (h *handler) logError(status int, msg string, op string) {
	if h.logger == nil {
		return
	}
	log := h.logger.Warn
	if status >= http.StatusInternalServerError {
		log = h.logger.Error
	}
	log("recommendation request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && h.logger != nil {
		h.logger.Error("failed to write JSON response", zap.String("op", "server.writeJSON"), zap.Error(err))
	}
}
