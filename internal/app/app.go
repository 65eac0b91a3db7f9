// Package app owns the page state and wires the components to the display surface.
package app

import (
	"context"
	"math/rand"
	"slices"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kjstillabower/our-story/internal/animation"
	"github.com/kjstillabower/our-story/internal/cities"
	"github.com/kjstillabower/our-story/internal/dates"
	"github.com/kjstillabower/our-story/internal/degraded"
	"github.com/kjstillabower/our-story/internal/display"
	"github.com/kjstillabower/our-story/internal/loader"
	"github.com/kjstillabower/our-story/internal/models"
	"github.com/kjstillabower/our-story/internal/photos"
	"github.com/kjstillabower/our-story/internal/quotes"
	"github.com/kjstillabower/our-story/internal/records"
	"github.com/kjstillabower/our-story/internal/weather"
)

// Banner texts shown on the page.
const (
	InitFailedBanner   = "Не удалось загрузить данные. Проверьте подключение."
	CitiesFailedBanner = "Не удалось загрузить города"
)

// DefaultBannerTTL is how long a banner stays up when Options leaves it unset.
const DefaultBannerTTL = 5 * time.Second

// TableLoader refreshes the three tables and replays cached snapshots.
type TableLoader interface {
	RefreshAll(ctx context.Context, apply loader.ApplyFunc) error
	Restore(ctx context.Context, apply loader.ApplyFunc) int
}

// WeatherSource returns the current reading and its view.
type WeatherSource interface {
	Refresh(ctx context.Context) (models.WeatherReading, weather.View, error)
}

// State is the data the page is built from. Indexes are -1 when nothing is selected.
type State struct {
	Cities     []models.City
	Photos     []models.Photo
	Quotes     []models.Quote
	CityOrder  []cities.Item
	QuoteIndex int
	PhotoIndex int
}

// Options configures an App.
type Options struct {
	StartDate time.Time
	Locale    string
	BannerTTL time.Duration
	// Rand drives quote picks and particle scenes. Seeded from the clock when nil.
	Rand *rand.Rand
	Now  func() time.Time
}

// App is the page controller. All methods are safe for concurrent use.
type App struct {
	mu    sync.Mutex
	state State

	start     time.Time
	locale    string
	bannerTTL time.Duration

	surface display.Surface
	tables  TableLoader
	weather WeatherSource
	quotes  *quotes.Rotator
	logger  *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
}

// New returns an App writing to surface.
func New(opts Options, surface display.Surface, tables TableLoader, ws WeatherSource, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ttl := opts.BannerTTL
	if ttl <= 0 {
		ttl = DefaultBannerTTL
	}
	return &App{
		state:     State{QuoteIndex: -1, PhotoIndex: -1},
		start:     opts.StartDate,
		locale:    opts.Locale,
		bannerTTL: ttl,
		surface:   surface,
		tables:    tables,
		weather:   ws,
		quotes:    quotes.NewRotatorWithSource(rand.NewSource(rng.Int63())),
		logger:    logger,
		rng:       rng,
		now:       now,
	}
}

// Init paints the first page: counter, weather, cached tables, then a live table fetch.
// When every table fails the init banner is shown.
func (a *App) Init(ctx context.Context) error {
	a.UpdateCounter()
	a.RefreshWeather(ctx)
	if n := a.tables.Restore(ctx, a.apply); n > 0 {
		a.logger.Info("restored tables from snapshot cache", zap.Int("tables", n))
	}
	err := a.RefreshTables(ctx)
	if err != nil && len(multierr.Errors(err)) == len(loader.Kinds) {
		a.surface.ShowBanner(InitFailedBanner, a.bannerTTL)
	}
	return err
}

// UpdateCounter writes the elapsed time since the start date.
func (a *App) UpdateCounter() {
	e := dates.Since(a.start, a.now())
	a.surface.SetCounter(display.CounterView{
		Days:   e.Days,
		Months: e.Months,
		Weeks:  e.Weeks,
		Hours:  e.FormatHours(a.locale),
	})
}

// RefreshWeather updates the weather widget and redraws the background for its condition.
func (a *App) RefreshWeather(ctx context.Context) weather.View {
	_, view, _ := a.weather.Refresh(ctx)
	a.surface.SetWeather(view)
	a.rngMu.Lock()
	scene := animation.Generate(view.Theme.Animation, a.rng)
	a.rngMu.Unlock()
	a.surface.SetBackground(scene)
	return view
}

// RefreshTables reloads all three tables. A failed table keeps its previous contents.
// The returned error combines the failures and is informational.
func (a *App) RefreshTables(ctx context.Context) error {
	err := a.tables.RefreshAll(ctx, a.apply)
	if err != nil {
		a.logger.Warn("table refresh incomplete", zap.Error(err))
	}
	return err
}

func (a *App) apply(kind loader.Kind, recs []records.Record, err error) {
	if err != nil {
		degraded.RecordError()
		if kind == loader.Cities {
			a.surface.ShowBanner(CitiesFailedBanner, a.bannerTTL)
		}
		return
	}
	degraded.RecordSuccess()

	a.mu.Lock()
	defer a.mu.Unlock()
	switch kind {
	case loader.Cities:
		a.state.Cities = records.Cities(recs)
		a.state.CityOrder = cities.Render(cities.Sort(a.state.Cities))
		a.surface.SetCities(a.state.CityOrder)
	case loader.Photos:
		a.state.Photos = records.Photos(recs)
		a.surface.SetPhotos(a.state.Photos)
		if a.state.PhotoIndex < 0 || a.state.PhotoIndex >= len(a.state.Photos) {
			a.state.PhotoIndex = photos.Step(-1, 0, len(a.state.Photos))
		}
		if _, ok := a.showPhotoLocked(); !ok {
			a.surface.ClearPhoto()
		}
	case loader.Quotes:
		a.state.Quotes = records.Quotes(recs)
		switch {
		case len(a.state.Quotes) == 0:
			a.state.QuoteIndex = -1
			a.surface.ClearQuote()
		case a.state.QuoteIndex < 0 || a.state.QuoteIndex >= len(a.state.Quotes):
			a.nextQuoteLocked()
		default:
			a.surface.SetQuote(a.state.Quotes[a.state.QuoteIndex])
		}
	}
}

// NextQuote shows a random quote. ok is false when no quotes are loaded.
func (a *App) NextQuote() (models.Quote, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nextQuoteLocked()
}

func (a *App) nextQuoteLocked() (models.Quote, bool) {
	q, idx, ok := a.quotes.Next(a.state.Quotes)
	if !ok {
		return models.Quote{}, false
	}
	a.state.QuoteIndex = idx
	a.surface.SetQuote(q)
	return q, true
}

// ReverseCities flips the displayed city order and returns it.
func (a *App) ReverseCities() []cities.Item {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.CityOrder = cities.Reverse(a.state.CityOrder)
	a.surface.SetCities(a.state.CityOrder)
	return slices.Clone(a.state.CityOrder)
}

// NextPhoto advances the gallery. ok is false when no photos are loaded.
func (a *App) NextPhoto() (display.PhotoView, bool) {
	return a.stepPhoto(1)
}

// PrevPhoto moves the gallery back.
func (a *App) PrevPhoto() (display.PhotoView, bool) {
	return a.stepPhoto(-1)
}

func (a *App) stepPhoto(delta int) (display.PhotoView, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.PhotoIndex = photos.Step(a.state.PhotoIndex, delta, len(a.state.Photos))
	return a.showPhotoLocked()
}

func (a *App) showPhotoLocked() (display.PhotoView, bool) {
	if a.state.PhotoIndex < 0 {
		return display.PhotoView{}, false
	}
	v := display.PhotoView{
		Photo: a.state.Photos[a.state.PhotoIndex],
		Index: a.state.PhotoIndex,
		Total: len(a.state.Photos),
	}
	a.surface.SetPhoto(v)
	return v, true
}

// City looks up a loaded city by its link slug.
func (a *App) City(slug string) (models.City, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cities.Find(a.state.Cities, slug)
}

// State returns a copy of the current state.
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.state
	s.Cities = slices.Clone(s.Cities)
	s.Photos = slices.Clone(s.Photos)
	s.Quotes = slices.Clone(s.Quotes)
	s.CityOrder = slices.Clone(s.CityOrder)
	return s
}
