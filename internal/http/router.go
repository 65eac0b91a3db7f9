package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/our-story/internal/observability"
)

// RouterConfig holds the middleware settings for NewRouter.
type RouterConfig struct {
	// Limiter throttles POST actions. Nil disables rate limiting.
	Limiter        *rate.Limiter
	RequestTimeout time.Duration
}

// NewRouter wires every route and middleware around h.
func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler())
	router.HandleFunc("/", h.GetPage).Methods(http.MethodGet)
	router.HandleFunc("/cities/{slug}", h.GetCity).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/page", h.GetPageJSON).Methods(http.MethodGet)
	api.HandleFunc("/counter", h.GetCounter).Methods(http.MethodGet)
	api.HandleFunc("/weather", h.GetWeather).Methods(http.MethodGet)
	api.HandleFunc("/cities", h.GetCities).Methods(http.MethodGet)
	api.HandleFunc("/cities/{slug}", h.GetCity).Methods(http.MethodGet)
	api.HandleFunc("/photos", h.GetPhotos).Methods(http.MethodGet)
	api.HandleFunc("/quote", h.GetQuote).Methods(http.MethodGet)

	actions := api.NewRoute().Methods(http.MethodPost).Subrouter()
	actions.Use(RateLimitMiddleware(cfg.Limiter))
	if cfg.RequestTimeout > 0 {
		actions.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	actions.HandleFunc("/weather/refresh", h.PostRefreshWeather)
	actions.HandleFunc("/quote/next", h.PostNextQuote)
	actions.HandleFunc("/cities/reverse", h.PostReverseCities)
	actions.HandleFunc("/photos/next", h.PostNextPhoto)
	actions.HandleFunc("/photos/prev", h.PostPrevPhoto)
	return router
}
