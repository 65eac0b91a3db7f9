package app

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/kjstillabower/our-story/internal/animation"
	"github.com/kjstillabower/our-story/internal/degraded"
	"github.com/kjstillabower/our-story/internal/display"
	"github.com/kjstillabower/our-story/internal/loader"
	"github.com/kjstillabower/our-story/internal/models"
	"github.com/kjstillabower/our-story/internal/records"
	"github.com/kjstillabower/our-story/internal/weather"
)

var start = time.Date(2025, 2, 18, 0, 0, 0, 0, time.UTC)

type outcome struct {
	values [][]string
	err    error
}

type fakeTables struct {
	outcomes map[loader.Kind]outcome
	cached   map[loader.Kind][][]string
}

func (f *fakeTables) RefreshAll(ctx context.Context, apply loader.ApplyFunc) error {
	var errs []error
	for _, k := range loader.Kinds {
		o, ok := f.outcomes[k]
		if !ok {
			continue
		}
		if o.err != nil {
			errs = append(errs, o.err)
			apply(k, nil, o.err)
			continue
		}
		apply(k, records.FromTable(o.values), nil)
	}
	return multierr.Combine(errs...)
}

func (f *fakeTables) Restore(ctx context.Context, apply loader.ApplyFunc) int {
	n := 0
	for _, k := range loader.Kinds {
		if v, ok := f.cached[k]; ok {
			apply(k, records.FromTable(v), nil)
			n++
		}
	}
	return n
}

var (
	citiesTable = [][]string{
		{"Город", "Дата", "Описание"},
		{"Казань", "2025-05-01", "весна"},
		{"Пермь", "18.02.2025", "начало"},
		{"Сочи", "7/15/2025", "море"},
		{"Где-то", "когда-то", ""},
	}
	photosTable = [][]string{{"Фото", "Подпись"}, {"https://x/1.jpg", "один"}, {"https://x/2.jpg", "два"}, {"https://x/3.jpg", "три"}}
	quotesTable = [][]string{{"Цитата", "Автор"}, {"Люблю", "Она"}, {"И я", ""}}
)

func allTables() *fakeTables {
	return &fakeTables{outcomes: map[loader.Kind]outcome{
		loader.Cities: {values: citiesTable},
		loader.Photos: {values: photosTable},
		loader.Quotes: {values: quotesTable},
	}}
}

func newTestApp(t *testing.T, tables TableLoader, now time.Time) (*App, *display.Page) {
	t.Helper()
	degraded.Reset()
	page := display.NewPage("Аня и Миша")
	a := New(Options{
		StartDate: start,
		Locale:    "ru",
		Rand:      rand.New(rand.NewSource(1)),
		Now:       func() time.Time { return now },
	}, page, tables, weather.NewService(weather.NewStaticProvider(), nil), nil)
	return a, page
}

func TestApp_Init_PopulatesPage(t *testing.T) {
	now := start.Add(100*24*time.Hour + 5*time.Hour)
	a, page := newTestApp(t, allTables(), now)

	require.NoError(t, a.Init(context.Background()))
	snap := page.Snapshot()

	assert.Equal(t, display.CounterView{Days: 100, Months: 3, Weeks: 14, Hours: "2 405"}, snap.Counter)
	assert.Equal(t, "-21°", snap.Weather.Temperature)
	assert.Equal(t, animation.KindSnow, snap.Background.Kind)
	assert.Len(t, snap.Background.Particles, 50)

	require.Len(t, snap.Cities, 4)
	names := []string{snap.Cities[0].Name, snap.Cities[1].Name, snap.Cities[2].Name, snap.Cities[3].Name}
	assert.Equal(t, []string{"Сочи", "Казань", "Пермь", "Где-то"}, names)

	require.NotNil(t, snap.Photo)
	assert.Equal(t, 0, snap.Photo.Index)
	assert.Equal(t, 3, snap.Photo.Total)
	require.NotNil(t, snap.Quote)
	assert.Empty(t, snap.Banner)
}

func TestApp_Init_AllTablesFailedShowsBanner(t *testing.T) {
	boom := errors.New("network down")
	tables := &fakeTables{outcomes: map[loader.Kind]outcome{
		loader.Cities: {err: boom},
		loader.Photos: {err: boom},
		loader.Quotes: {err: boom},
	}}
	a, page := newTestApp(t, tables, start)

	err := a.Init(context.Background())
	require.Error(t, err)
	assert.Equal(t, InitFailedBanner, page.Snapshot().Banner)
	assert.Empty(t, page.Snapshot().Cities)
	assert.True(t, degraded.IsDegraded(time.Minute, 50))
}

func TestApp_PhotoFailureDoesNotBlockCities(t *testing.T) {
	tables := allTables()
	tables.outcomes[loader.Photos] = outcome{err: errors.New("HTTP 503")}
	a, page := newTestApp(t, tables, start)

	err := a.Init(context.Background())
	require.Error(t, err)
	snap := page.Snapshot()
	assert.Len(t, snap.Cities, 4)
	assert.Nil(t, snap.Photo)
	assert.Empty(t, snap.Banner, "photo failures are silent")
}

func TestApp_CityFailureShowsBannerAndKeepsPrevious(t *testing.T) {
	tables := allTables()
	a, page := newTestApp(t, tables, start)
	require.NoError(t, a.Init(context.Background()))

	tables.outcomes[loader.Cities] = outcome{err: errors.New("HTTP 500")}
	require.Error(t, a.RefreshTables(context.Background()))

	snap := page.Snapshot()
	assert.Equal(t, CitiesFailedBanner, snap.Banner)
	assert.Len(t, snap.Cities, 4, "previous collection retained")
	assert.Len(t, a.State().Cities, 4)
}

func TestApp_Init_RestoresFromSnapshot(t *testing.T) {
	boom := errors.New("offline")
	tables := &fakeTables{
		outcomes: map[loader.Kind]outcome{
			loader.Cities: {err: boom},
			loader.Photos: {err: boom},
			loader.Quotes: {err: boom},
		},
		cached: map[loader.Kind][][]string{loader.Cities: citiesTable},
	}
	a, page := newTestApp(t, tables, start)
	_ = a.Init(context.Background())

	assert.Len(t, page.Snapshot().Cities, 4)
	assert.Len(t, a.State().Cities, 4)
}

func TestApp_ReverseCities(t *testing.T) {
	a, page := newTestApp(t, allTables(), start)
	require.NoError(t, a.Init(context.Background()))

	reversed := a.ReverseCities()
	require.Len(t, reversed, 4)
	assert.Equal(t, "Где-то", reversed[0].Name)
	assert.Equal(t, "Сочи", reversed[3].Name)
	assert.Equal(t, reversed, page.Snapshot().Cities)

	again := a.ReverseCities()
	assert.Equal(t, "Сочи", again[0].Name)
}

func TestApp_ReverseCities_Empty(t *testing.T) {
	a, _ := newTestApp(t, &fakeTables{}, start)
	assert.Empty(t, a.ReverseCities())
}

func TestApp_NextQuote(t *testing.T) {
	a, page := newTestApp(t, allTables(), start)

	_, ok := a.NextQuote()
	assert.False(t, ok, "no quotes loaded yet")
	assert.Nil(t, page.Snapshot().Quote)

	require.NoError(t, a.Init(context.Background()))
	for i := 0; i < 20; i++ {
		q, ok := a.NextQuote()
		require.True(t, ok)
		assert.Contains(t, []string{"Люблю", "И я"}, q.Text)
		assert.Equal(t, q, *page.Snapshot().Quote)
	}
}

func TestApp_QuoteDefaultsAuthor(t *testing.T) {
	tables := allTables()
	tables.outcomes[loader.Quotes] = outcome{values: [][]string{{"Цитата"}, {"Только текст"}}}
	a, page := newTestApp(t, tables, start)
	require.NoError(t, a.Init(context.Background()))

	q := page.Snapshot().Quote
	require.NotNil(t, q)
	assert.Equal(t, records.PlaceholderAuthor, q.Author)
}

func TestApp_QuotesRefreshWithNoUsableQuotesClearsQuote(t *testing.T) {
	tables := allTables()
	a, page := newTestApp(t, tables, start)
	require.NoError(t, a.Init(context.Background()))
	require.NotNil(t, page.Snapshot().Quote)
	require.GreaterOrEqual(t, a.State().QuoteIndex, 0)

	tables.outcomes[loader.Quotes] = outcome{values: [][]string{{"Цитата", "Автор"}, {"", "Она"}}}
	require.NoError(t, a.RefreshTables(context.Background()))

	assert.Empty(t, a.State().Quotes)
	assert.Equal(t, -1, a.State().QuoteIndex)
	assert.Nil(t, page.Snapshot().Quote)
	_, ok := a.NextQuote()
	assert.False(t, ok)
}

func TestApp_PhotosRefreshWithNoUsablePhotosClearsPhoto(t *testing.T) {
	tables := allTables()
	a, page := newTestApp(t, tables, start)
	require.NoError(t, a.Init(context.Background()))
	require.NotNil(t, page.Snapshot().Photo)

	tables.outcomes[loader.Photos] = outcome{values: [][]string{{"Фото", "Подпись"}, {"", "пусто"}}}
	require.NoError(t, a.RefreshTables(context.Background()))

	assert.Equal(t, -1, a.State().PhotoIndex)
	assert.Nil(t, page.Snapshot().Photo)
}

func TestApp_PhotoNavigationWraps(t *testing.T) {
	a, page := newTestApp(t, allTables(), start)
	require.NoError(t, a.Init(context.Background()))

	v, ok := a.PrevPhoto()
	require.True(t, ok)
	assert.Equal(t, 2, v.Index)
	assert.Equal(t, "https://x/3.jpg", v.Photo.URL)

	v, _ = a.NextPhoto()
	assert.Equal(t, 0, v.Index)
	v, _ = a.NextPhoto()
	assert.Equal(t, 1, v.Index)
	assert.Equal(t, 1, page.Snapshot().Photo.Index)
}

func TestApp_PhotoNavigation_Empty(t *testing.T) {
	a, _ := newTestApp(t, &fakeTables{}, start)
	_, ok := a.NextPhoto()
	assert.False(t, ok)
	_, ok = a.PrevPhoto()
	assert.False(t, ok)
}

func TestApp_City(t *testing.T) {
	a, _ := newTestApp(t, allTables(), start)
	require.NoError(t, a.Init(context.Background()))

	c, ok := a.City("пермь")
	require.True(t, ok)
	assert.Equal(t, "начало", c.Description)

	_, ok = a.City("москва")
	assert.False(t, ok)
}

func TestApp_UpdateCounter_FutureStart(t *testing.T) {
	a, page := newTestApp(t, &fakeTables{}, start.Add(-36*time.Hour))
	a.UpdateCounter()
	c := page.Snapshot().Counter
	assert.Equal(t, int64(-2), c.Days)
	assert.Equal(t, "-36", c.Hours)
}

type failingWeather struct{}

func (failingWeather) Refresh(ctx context.Context) (models.WeatherReading, weather.View, error) {
	r := weather.NoData()
	return r, weather.Present(r), errors.New("invalid api key")
}

func TestApp_RefreshWeather_FallsBackToHearts(t *testing.T) {
	page := display.NewPage("")
	a := New(Options{StartDate: start, Rand: rand.New(rand.NewSource(2))}, page, &fakeTables{}, failingWeather{}, nil)

	view := a.RefreshWeather(context.Background())
	assert.Equal(t, "-°", view.Temperature)
	snap := page.Snapshot()
	assert.Equal(t, animation.KindHearts, snap.Background.Kind)
	assert.Len(t, snap.Background.Particles, 30)
}
