package http

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/our-story/internal/app"
	"github.com/kjstillabower/our-story/internal/cache"
	"github.com/kjstillabower/our-story/internal/cities"
	"github.com/kjstillabower/our-story/internal/degraded"
	"github.com/kjstillabower/our-story/internal/display"
	"github.com/kjstillabower/our-story/internal/lifecycle"
	"github.com/kjstillabower/our-story/internal/loader"
	"github.com/kjstillabower/our-story/internal/sheets"
	"github.com/kjstillabower/our-story/internal/testhelpers"
	"github.com/kjstillabower/our-story/internal/weather"
)

// newStack wires the full page service against a fake spreadsheet.
func newStack(t *testing.T) (*testhelpers.FakeSheets, *app.App, http.Handler) {
	t.Helper()
	lifecycle.Reset()
	degraded.Reset()
	t.Cleanup(lifecycle.Reset)

	fake := testhelpers.NewFakeSheets(t, "sheet-1", "key")
	fake.SetTable("ГОРОДА", [][]string{
		{"Город", "Дата", "Фото", "Описание"},
		{"Пермь", "18.02.2025", "", "начало"},
		{"Казань", "2025-05-01", "https://x/kazan.jpg", "весна"},
	})
	fake.SetTable("ФОТО", [][]string{{"Фото", "Подпись"}, {"https://x/1.jpg", "один"}, {"https://x/2.jpg", "два"}})
	fake.SetTable("ЦИТАТЫ", [][]string{{"Цитата", "Автор", "Дата"}, {"Люблю", "Она", "01.03.2025"}})

	client := sheets.NewClient(sheets.Config{
		BaseURL:       fake.URL,
		SpreadsheetID: "sheet-1",
		APIKey:        "key",
		Timeout:       time.Second,
		RetryAttempts: 1,
	})
	names := loader.TableNames{loader.Cities: "ГОРОДА", loader.Photos: "ФОТО", loader.Quotes: "ЦИТАТЫ"}
	l := loader.New(client, names, cache.NewInMemoryCache(), time.Hour, nil)

	page := display.NewPage("Лина & Артём")
	a := app.New(app.Options{
		StartDate: time.Date(2025, 2, 18, 0, 0, 0, 0, time.UTC),
		Locale:    "ru",
		Rand:      rand.New(rand.NewSource(7)),
	}, page, l, weather.NewService(weather.NewStaticProvider(), nil), nil)

	h := NewHandler(a, page, &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50}, nil)
	return fake, a, NewRouter(h, RouterConfig{RequestTimeout: 5 * time.Second}, zap.NewNop())
}

func get(t *testing.T, h http.Handler, method, path string, v interface{}) int {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	if v != nil {
		if err := json.NewDecoder(w.Body).Decode(v); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return w.Code
}

func TestRouter_EndToEnd(t *testing.T) {
	_, a, router := newStack(t)

	if code := get(t, router, http.MethodGet, "/health", nil); code != http.StatusServiceUnavailable {
		t.Errorf("health before init = %d, want 503 starting", code)
	}
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	lifecycle.MarkReady()

	var snap display.Snapshot
	if code := get(t, router, http.MethodGet, "/api/page", &snap); code != http.StatusOK {
		t.Fatalf("/api/page status = %d", code)
	}
	if len(snap.Cities) != 2 || snap.Cities[0].Name != "Казань" {
		t.Errorf("cities = %+v, want Казань first", snap.Cities)
	}
	if snap.Quote == nil || snap.Quote.Text != "Люблю" {
		t.Errorf("quote = %+v", snap.Quote)
	}
	if snap.Photo == nil || snap.Photo.Total != 2 {
		t.Errorf("photo = %+v", snap.Photo)
	}

	var reversed []cities.Item
	get(t, router, http.MethodPost, "/api/cities/reverse", &reversed)
	if len(reversed) != 2 || reversed[0].Name != "Пермь" {
		t.Errorf("reversed = %+v, want Пермь first", reversed)
	}

	var city struct {
		Name     string `json:"name"`
		PhotoURL string `json:"photoUrl"`
	}
	if code := get(t, router, http.MethodGet, reversed[0].Link, &city); code != http.StatusOK {
		t.Fatalf("GET %s status = %d", reversed[0].Link, code)
	}
	if city.Name != "Пермь" || city.PhotoURL == "" {
		t.Errorf("city = %+v, want placeholder photo for Пермь", city)
	}

	var health map[string]interface{}
	if code := get(t, router, http.MethodGet, "/health", &health); code != http.StatusOK {
		t.Errorf("health after init = %d (%v), want 200", code, health)
	}
}

func TestRouter_SpreadsheetOutageKeepsPageAndDegrades(t *testing.T) {
	fake, a, router := newStack(t)
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	lifecycle.MarkReady()

	fake.FailTable("ГОРОДА", http.StatusInternalServerError)
	fake.FailTable("ФОТО", http.StatusInternalServerError)
	fake.FailTable("ЦИТАТЫ", http.StatusInternalServerError)
	for i := 0; i < 2; i++ {
		if err := a.RefreshTables(context.Background()); err == nil {
			t.Fatal("RefreshTables() expected error during outage")
		}
	}

	var snap display.Snapshot
	get(t, router, http.MethodGet, "/api/page", &snap)
	if len(snap.Cities) != 2 {
		t.Errorf("cities = %d, previous collection should be kept", len(snap.Cities))
	}
	if snap.Banner != app.CitiesFailedBanner {
		t.Errorf("banner = %q, want %q", snap.Banner, app.CitiesFailedBanner)
	}

	var health map[string]interface{}
	if code := get(t, router, http.MethodGet, "/health", &health); code != http.StatusServiceUnavailable || health["status"] != "degraded" {
		t.Errorf("health = %d %v, want 503 degraded", code, health)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	_, _, router := newStack(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Errorf("/metrics status = %d", w.Code)
	}
}
