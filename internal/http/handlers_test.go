package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/our-story/internal/cities"
	"github.com/kjstillabower/our-story/internal/degraded"
	"github.com/kjstillabower/our-story/internal/display"
	"github.com/kjstillabower/our-story/internal/lifecycle"
	"github.com/kjstillabower/our-story/internal/models"
	"github.com/kjstillabower/our-story/internal/traffic"
	"github.com/kjstillabower/our-story/internal/weather"
)

type mockController struct {
	quotes   []models.Quote
	photos   []models.Photo
	cities   []models.City
	order    []cities.Item
	photoIdx int
	refreshN int
	block    chan struct{} // if set, RefreshWeather blocks until ctx.Done()
}

func (m *mockController) RefreshWeather(ctx context.Context) weather.View {
	m.refreshN++
	if m.block != nil {
		select {
		case <-ctx.Done():
		case <-m.block:
		}
		return weather.Present(weather.NoData())
	}
	return weather.Present(weather.NewStaticProvider().Reading)
}

func (m *mockController) NextQuote() (models.Quote, bool) {
	if len(m.quotes) == 0 {
		return models.Quote{}, false
	}
	return m.quotes[0], true
}

func (m *mockController) ReverseCities() []cities.Item {
	m.order = cities.Reverse(m.order)
	return m.order
}

func (m *mockController) NextPhoto() (display.PhotoView, bool) {
	if len(m.photos) == 0 {
		return display.PhotoView{}, false
	}
	m.photoIdx = (m.photoIdx + 1) % len(m.photos)
	return display.PhotoView{Photo: m.photos[m.photoIdx], Index: m.photoIdx, Total: len(m.photos)}, true
}

func (m *mockController) PrevPhoto() (display.PhotoView, bool) {
	if len(m.photos) == 0 {
		return display.PhotoView{}, false
	}
	m.photoIdx = (m.photoIdx - 1 + len(m.photos)) % len(m.photos)
	return display.PhotoView{Photo: m.photos[m.photoIdx], Index: m.photoIdx, Total: len(m.photos)}, true
}

func (m *mockController) City(slug string) (models.City, bool) {
	return cities.Find(m.cities, slug)
}

func newTestPage() *display.Page {
	page := display.NewPage("Лина & Артём")
	page.SetCounter(display.CounterView{Days: 100, Months: 3, Weeks: 14, Hours: "2 405"})
	page.SetWeather(weather.Present(weather.NewStaticProvider().Reading))
	page.SetCities(cities.Render([]models.City{{Name: "Пермь", Date: "18.02.2025", Description: "начало"}}))
	page.SetQuote(models.Quote{Text: "Люблю", Author: "Она"})
	return page
}

func serve(t *testing.T, h *Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(h, RouterConfig{}, zap.NewNop())
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
}

func TestHandler_GetPageJSON(t *testing.T) {
	h := NewHandler(&mockController{}, newTestPage(), nil, nil)

	w := serve(t, h, http.MethodGet, "/api/page")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var snap display.Snapshot
	decode(t, w, &snap)
	if snap.Couple != "Лина & Артём" || snap.Counter.Days != 100 || len(snap.Cities) != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestHandler_GetCounter(t *testing.T) {
	h := NewHandler(&mockController{}, newTestPage(), nil, nil)
	w := serve(t, h, http.MethodGet, "/api/counter")

	var c display.CounterView
	decode(t, w, &c)
	if c.Hours != "2 405" || c.Weeks != 14 {
		t.Errorf("counter = %+v", c)
	}
}

func TestHandler_GetWeather(t *testing.T) {
	h := NewHandler(&mockController{}, newTestPage(), nil, nil)
	w := serve(t, h, http.MethodGet, "/api/weather")

	var body struct {
		Weather weather.View `json:"weather"`
	}
	decode(t, w, &body)
	if body.Weather.Temperature != "-21°" || body.Weather.Humidity != "76%" {
		t.Errorf("weather = %+v", body.Weather)
	}
}

func TestHandler_GetCities_EmptyIsArray(t *testing.T) {
	h := NewHandler(&mockController{}, display.NewPage(""), nil, nil)
	w := serve(t, h, http.MethodGet, "/api/cities")

	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestHandler_GetCity(t *testing.T) {
	ctrl := &mockController{cities: []models.City{{Name: "Нижний Новгород", Description: "мост"}}}
	h := NewHandler(ctrl, display.NewPage(""), nil, nil)

	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{"found by escaped slug", "/api/cities/" + "%D0%BD%D0%B8%D0%B6%D0%BD%D0%B8%D0%B9%20%D0%BD%D0%BE%D0%B2%D0%B3%D0%BE%D1%80%D0%BE%D0%B4", http.StatusOK},
		{"page link route", "/cities/" + "%D0%BD%D0%B8%D0%B6%D0%BD%D0%B8%D0%B9%20%D0%BD%D0%BE%D0%B2%D0%B3%D0%BE%D1%80%D0%BE%D0%B4", http.StatusOK},
		{"unknown", "/api/cities/moscow", http.StatusNotFound},
		{"invalid chars", "/api/cities/%3Cscript%3E", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, h, http.MethodGet, tt.path)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

func TestHandler_GetQuote_NoneLoaded(t *testing.T) {
	h := NewHandler(&mockController{}, display.NewPage(""), nil, nil)
	w := serve(t, h, http.MethodGet, "/api/quote")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decode(t, w, &body)
	if body.Error.Code != "NO_QUOTES" {
		t.Errorf("error code = %q, want NO_QUOTES", body.Error.Code)
	}
}

func TestHandler_PostNextQuote(t *testing.T) {
	ctrl := &mockController{quotes: []models.Quote{{Text: "Люблю", Author: "Она"}}}
	h := NewHandler(ctrl, display.NewPage(""), nil, nil)

	w := serve(t, h, http.MethodPost, "/api/quote/next")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var q models.Quote
	decode(t, w, &q)
	if q.Text != "Люблю" {
		t.Errorf("quote = %+v", q)
	}

	empty := NewHandler(&mockController{}, display.NewPage(""), nil, nil)
	if w := serve(t, empty, http.MethodPost, "/api/quote/next"); w.Code != http.StatusNotFound {
		t.Errorf("empty quotes status = %d, want 404", w.Code)
	}
}

func TestHandler_PostReverseCities(t *testing.T) {
	ctrl := &mockController{order: []cities.Item{{Name: "Сочи"}, {Name: "Пермь"}}}
	h := NewHandler(ctrl, display.NewPage(""), nil, nil)

	w := serve(t, h, http.MethodPost, "/api/cities/reverse")
	var items []cities.Item
	decode(t, w, &items)
	if len(items) != 2 || items[0].Name != "Пермь" {
		t.Errorf("items = %+v, want Пермь first", items)
	}
}

func TestHandler_GetReverseIsNotAnAction(t *testing.T) {
	ctrl := &mockController{order: []cities.Item{{Name: "Сочи"}, {Name: "Пермь"}}}
	h := NewHandler(ctrl, display.NewPage(""), nil, nil)

	w := serve(t, h, http.MethodGet, "/api/cities/reverse")
	if w.Code != http.StatusNotFound {
		t.Errorf("GET /api/cities/reverse status = %d, want 404 city lookup", w.Code)
	}
	if ctrl.order[0].Name != "Сочи" {
		t.Error("GET must not reverse the order")
	}
}

func TestHandler_PhotoNavigation(t *testing.T) {
	ctrl := &mockController{photos: []models.Photo{{URL: "a"}, {URL: "b"}, {URL: "c"}}}
	h := NewHandler(ctrl, display.NewPage(""), nil, nil)

	w := serve(t, h, http.MethodPost, "/api/photos/prev")
	var v display.PhotoView
	decode(t, w, &v)
	if v.Index != 2 || v.Photo.URL != "c" || v.Total != 3 {
		t.Errorf("prev = %+v, want index 2", v)
	}

	w = serve(t, h, http.MethodPost, "/api/photos/next")
	decode(t, w, &v)
	if v.Index != 0 {
		t.Errorf("next = %+v, want index 0", v)
	}

	empty := NewHandler(&mockController{}, display.NewPage(""), nil, nil)
	if w := serve(t, empty, http.MethodPost, "/api/photos/next"); w.Code != http.StatusNotFound {
		t.Errorf("empty gallery status = %d, want 404", w.Code)
	}
}

func TestHandler_PostRefreshWeather(t *testing.T) {
	ctrl := &mockController{}
	h := NewHandler(ctrl, display.NewPage(""), nil, nil)

	w := serve(t, h, http.MethodPost, "/api/weather/refresh")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ctrl.refreshN != 1 {
		t.Errorf("RefreshWeather calls = %d, want 1", ctrl.refreshN)
	}
}

func TestHandler_PostRefreshWeather_Timeout(t *testing.T) {
	ctrl := &mockController{block: make(chan struct{})}
	h := NewHandler(ctrl, display.NewPage(""), nil, nil)
	router := NewRouter(h, RouterConfig{RequestTimeout: 20 * time.Millisecond}, zap.NewNop())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/weather/refresh", nil))

	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", w.Code)
	}
}

func TestHandler_GetPage_HTML(t *testing.T) {
	page := newTestPage()
	page.ShowBanner("Не удалось загрузить города", time.Minute)
	page.SetPhoto(display.PhotoView{Photo: models.Photo{URL: "https://x/1.jpg", Caption: "море"}, Index: 0, Total: 2})
	h := NewHandler(&mockController{}, page, nil, nil)

	w := serve(t, h, http.MethodGet, "/")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	for _, want := range []string{
		"Лина &amp; Артём",
		"2 405",
		"-21°",
		"Пермь",
		`href="/cities/%D0%BF%D0%B5%D1%80%D0%BC%D1%8C"`,
		"18.02.2025",
		"Люблю",
		"Не удалось загрузить города",
		"(1/2)",
		"linear-gradient",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, "ZgotmplZ") {
		t.Error("template rejected an unsafe value")
	}
}

func TestHandler_GetPage_UnknownCityDate(t *testing.T) {
	page := display.NewPage("")
	page.SetCities(cities.Render([]models.City{{Name: "Где-то", Date: "когда-то"}}))
	h := NewHandler(&mockController{}, page, nil, nil)
	w := serve(t, h, http.MethodGet, "/")

	body := w.Body.String()
	if !strings.Contains(body, "дата неизвестна") {
		t.Error("page should mark a city with an unparseable date")
	}
	if strings.Contains(body, "когда-то") {
		t.Error("page should not print the unparseable date text")
	}
}

func TestHandler_GetPage_WithParticles(t *testing.T) {
	page := display.NewPage("")
	page.SetWeather(weather.Present(weather.NoData()))
	h := NewHandler(&mockController{}, page, nil, nil)
	w := serve(t, h, http.MethodGet, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Нет данных о погоде") {
		t.Error("page should show the no-data weather description")
	}
}

func TestHandler_GetHealth(t *testing.T) {
	tests := []struct {
		name       string
		setup      func()
		cfg        *HealthConfig
		wantStatus string
		wantCode   int
	}{
		{
			name:       "starting",
			setup:      func() {},
			wantStatus: "starting",
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name:       "healthy",
			setup:      lifecycle.MarkReady,
			wantStatus: "healthy",
			wantCode:   http.StatusOK,
		},
		{
			name: "shutting down",
			setup: func() {
				lifecycle.SetShuttingDown(true)
			},
			wantStatus: "shutting-down",
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name: "degraded by table failures",
			setup: func() {
				lifecycle.MarkReady()
				degraded.RecordError()
				degraded.RecordError()
				degraded.RecordSuccess()
			},
			cfg:        &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50},
			wantStatus: "degraded",
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name: "below degraded threshold",
			setup: func() {
				lifecycle.MarkReady()
				degraded.RecordError()
				degraded.RecordSuccess()
				degraded.RecordSuccess()
			},
			cfg:        &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50},
			wantStatus: "healthy",
			wantCode:   http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lifecycle.Reset()
			degraded.Reset()
			defer lifecycle.Reset()
			tt.setup()

			h := NewHandler(&mockController{}, display.NewPage(""), tt.cfg, nil)
			w := serve(t, h, http.MethodGet, "/health")

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			var body map[string]interface{}
			decode(t, w, &body)
			if body["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", body["status"], tt.wantStatus)
			}
			if body["service"] != "our-story" {
				t.Errorf("service = %v, want our-story", body["service"])
			}
		})
	}
}

func TestHandler_GetHealth_CachePing(t *testing.T) {
	lifecycle.Reset()
	lifecycle.MarkReady()
	defer lifecycle.Reset()
	degraded.Reset()

	h := NewHandler(&mockController{}, display.NewPage(""), &HealthConfig{
		CachePing: func() error { return context.DeadlineExceeded },
	}, nil)
	w := serve(t, h, http.MethodGet, "/health")

	var body struct {
		Checks map[string]string `json:"checks"`
	}
	decode(t, w, &body)
	if body.Checks["cache"] != "unhealthy" {
		t.Errorf("checks = %v, want cache unhealthy", body.Checks)
	}
	if body.Checks["spreadsheet"] != "healthy" {
		t.Errorf("checks = %v, want spreadsheet healthy", body.Checks)
	}
}

func TestHandler_GetHealth_LogsTransition(t *testing.T) {
	lifecycle.Reset()
	degraded.Reset()
	defer lifecycle.Reset()
	core, logs := observer.New(zapcore.InfoLevel)
	h := NewHandler(&mockController{}, display.NewPage(""), nil, zap.New(core))
	router := mux.NewRouter()
	router.HandleFunc("/health", h.GetHealth)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	lifecycle.MarkReady()
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	entries := logs.FilterMessage("health status transition").All()
	if len(entries) != 1 {
		t.Fatalf("transition logs = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["previous_status"] != "starting" || fields["current_status"] != "healthy" {
		t.Errorf("transition fields = %v", fields)
	}
}

func TestHandler_GetHealth_ReportsActions(t *testing.T) {
	lifecycle.Reset()
	lifecycle.MarkReady()
	defer lifecycle.Reset()
	degraded.Reset()
	traffic.Reset()
	defer traffic.Reset()

	traffic.RecordAction()
	traffic.RecordAction()
	traffic.RecordDenied()

	h := NewHandler(&mockController{}, display.NewPage(""), &HealthConfig{DenialWindow: time.Minute}, nil)
	w := serve(t, h, http.MethodGet, "/health")

	var body struct {
		Actions       int `json:"actions"`
		ActionsDenied int `json:"actionsDenied"`
	}
	decode(t, w, &body)
	if body.Actions != 3 || body.ActionsDenied != 1 {
		t.Errorf("actions = %d, actionsDenied = %d, want 3 and 1", body.Actions, body.ActionsDenied)
	}
}
