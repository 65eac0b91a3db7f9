package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/our-story/internal/cities"
	"github.com/kjstillabower/our-story/internal/degraded"
	"github.com/kjstillabower/our-story/internal/display"
	"github.com/kjstillabower/our-story/internal/lifecycle"
	"github.com/kjstillabower/our-story/internal/models"
	"github.com/kjstillabower/our-story/internal/observability"
	"github.com/kjstillabower/our-story/internal/traffic"
	"github.com/kjstillabower/our-story/internal/validation"
	"github.com/kjstillabower/our-story/internal/weather"
)

// Controller is the set of page actions exposed over HTTP. Implemented by app.App.
type Controller interface {
	RefreshWeather(ctx context.Context) weather.View
	NextQuote() (models.Quote, bool)
	ReverseCities() []cities.Item
	NextPhoto() (display.PhotoView, bool)
	PrevPhoto() (display.PhotoView, bool)
	City(slug string) (models.City, bool)
}

// PageReader returns what is currently on the page. Implemented by display.Page.
type PageReader interface {
	Snapshot() display.Snapshot
}

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// DenialWindow is the window reported for rate-limited actions.
	DenialWindow time.Duration
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	controller   Controller
	page         PageReader
	healthConfig *HealthConfig
	logger       *zap.Logger

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. healthConfig may be nil.
func NewHandler(controller Controller, page PageReader, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		controller:   controller,
		page:         page,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetPageJSON handles GET /api/page.
func (h *Handler) GetPageJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.page.Snapshot())
}

// GetCounter handles GET /api/counter.
func (h *Handler) GetCounter(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.page.Snapshot().Counter)
}

// GetWeather handles GET /api/weather.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	snap := h.page.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"weather":    snap.Weather,
		"background": snap.Background,
	})
}

// GetCities handles GET /api/cities.
func (h *Handler) GetCities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.page.Snapshot().Cities))
}

// GetCity handles GET /api/cities/{slug}.
func (h *Handler) GetCity(w http.ResponseWriter, r *http.Request) {
	slug, err := validation.ValidateCitySlug(mux.Vars(r)["slug"], validation.DefaultSlugMaxLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return
	}
	city, ok := h.controller.City(slug)
	if !ok {
		writeError(w, r, http.StatusNotFound, "CITY_NOT_FOUND", "no city "+slug)
		return
	}
	writeJSON(w, http.StatusOK, city)
}

// GetPhotos handles GET /api/photos.
func (h *Handler) GetPhotos(w http.ResponseWriter, r *http.Request) {
	snap := h.page.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"photos":  nonNil(snap.Photos),
		"current": snap.Photo,
	})
}

// GetQuote handles GET /api/quote.
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	q := h.page.Snapshot().Quote
	if q == nil {
		writeError(w, r, http.StatusNotFound, "NO_QUOTES", "no quotes loaded")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// PostRefreshWeather handles POST /api/weather/refresh.
func (h *Handler) PostRefreshWeather(w http.ResponseWriter, r *http.Request) {
	view := h.controller.RefreshWeather(r.Context())
	if errors.Is(r.Context().Err(), context.DeadlineExceeded) {
		writeError(w, r, http.StatusGatewayTimeout, "TIMEOUT", "weather refresh timed out")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// PostNextQuote handles POST /api/quote/next.
func (h *Handler) PostNextQuote(w http.ResponseWriter, r *http.Request) {
	q, ok := h.controller.NextQuote()
	if !ok {
		writeError(w, r, http.StatusNotFound, "NO_QUOTES", "no quotes loaded")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// PostReverseCities handles POST /api/cities/reverse.
func (h *Handler) PostReverseCities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.controller.ReverseCities()))
}

// PostNextPhoto handles POST /api/photos/next.
func (h *Handler) PostNextPhoto(w http.ResponseWriter, r *http.Request) {
	h.writePhoto(w, r, h.controller.NextPhoto)
}

// PostPrevPhoto handles POST /api/photos/prev.
func (h *Handler) PostPrevPhoto(w http.ResponseWriter, r *http.Request) {
	h.writePhoto(w, r, h.controller.PrevPhoto)
}

func (h *Handler) writePhoto(w http.ResponseWriter, r *http.Request, step func() (display.PhotoView, bool)) {
	v, ok := step()
	if !ok {
		writeError(w, r, http.StatusNotFound, "NO_PHOTOS", "no photos loaded")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"spreadsheet": "healthy"}
	if result.reason == "error_rate_breach" {
		checks["spreadsheet"] = "unhealthy"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.healthConfig != nil && h.healthConfig.DenialWindow > 0 {
		resp["actions"] = traffic.ActionCount(h.healthConfig.DenialWindow)
		resp["actionsDenied"] = traffic.DenialCount(h.healthConfig.DenialWindow)
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > starting > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	switch lifecycle.Current() {
	case lifecycle.ShuttingDown:
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	case lifecycle.Starting:
		return healthResult{"starting", http.StatusServiceUnavailable, "init"}
	}
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		if degraded.IsDegraded(h.healthConfig.DegradedWindow, h.healthConfig.DegradedErrorPct) {
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": correlationID(r),
		},
	})
}

func correlationID(r *http.Request) string {
	if v, ok := r.Context().Value("correlation_id").(string); ok {
		return v
	}
	return ""
}
