// Package display is the write side of the page: named insertion points the
// application fills with view data.
package display

import (
	"slices"
	"sync"
	"time"

	"github.com/kjstillabower/our-story/internal/animation"
	"github.com/kjstillabower/our-story/internal/cities"
	"github.com/kjstillabower/our-story/internal/models"
	"github.com/kjstillabower/our-story/internal/weather"
)

// Surface receives view data. Implementations must be safe for concurrent use.
type Surface interface {
	SetCounter(CounterView)
	SetWeather(weather.View)
	SetBackground(animation.Scene)
	SetCities([]cities.Item)
	SetPhotos([]models.Photo)
	SetPhoto(PhotoView)
	ClearPhoto()
	SetQuote(models.Quote)
	ClearQuote()
	ShowBanner(msg string, ttl time.Duration)
}

// CounterView holds the "time together" fields.
type CounterView struct {
	Days   int64  `json:"days"`
	Months int64  `json:"months"`
	Weeks  int64  `json:"weeks"`
	Hours  string `json:"hours"`
}

// PhotoView is the photo currently shown in the gallery.
type PhotoView struct {
	Photo models.Photo `json:"photo"`
	Index int          `json:"index"`
	Total int          `json:"total"`
}

// Snapshot is everything currently on the page.
type Snapshot struct {
	Couple     string          `json:"couple"`
	Counter    CounterView     `json:"counter"`
	Weather    weather.View    `json:"weather"`
	Background animation.Scene `json:"background"`
	Cities     []cities.Item   `json:"cities"`
	Photos     []models.Photo  `json:"photos"`
	Photo      *PhotoView      `json:"photo,omitempty"`
	Quote      *models.Quote   `json:"quote,omitempty"`
	Banner     string          `json:"banner,omitempty"`
}

// Page is an in-memory Surface read back by the HTTP layer.
type Page struct {
	mu            sync.RWMutex
	snap          Snapshot
	bannerExpires time.Time
	now           func() time.Time
}

// NewPage returns an empty page titled with the couple's names.
func NewPage(couple string) *Page {
	return &Page{snap: Snapshot{Couple: couple}, now: time.Now}
}

func (p *Page) SetCounter(c CounterView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Counter = c
}

func (p *Page) SetWeather(v weather.View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Weather = v
}

// SetBackground replaces the particle scene; previous particles are discarded.
func (p *Page) SetBackground(s animation.Scene) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Background = s
}

func (p *Page) SetCities(items []cities.Item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Cities = slices.Clone(items)
}

func (p *Page) SetPhotos(list []models.Photo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Photos = slices.Clone(list)
}

func (p *Page) SetPhoto(v PhotoView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Photo = &v
}

// ClearPhoto removes the gallery photo, used when the photo table comes back empty.
func (p *Page) ClearPhoto() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Photo = nil
}

func (p *Page) SetQuote(q models.Quote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Quote = &q
}

func (p *Page) ClearQuote() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Quote = nil
}

// ShowBanner displays msg until ttl elapses.
func (p *Page) ShowBanner(msg string, ttl time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Banner = msg
	p.bannerExpires = p.now().Add(ttl)
}

// Snapshot returns a copy of the page. An expired banner reads as empty.
func (p *Page) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.snap
	s.Cities = slices.Clone(s.Cities)
	s.Photos = slices.Clone(s.Photos)
	s.Background.Particles = slices.Clone(s.Background.Particles)
	if s.Banner != "" && !p.now().Before(p.bannerExpires) {
		s.Banner = ""
	}
	return s
}
