package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/kjstillabower/our-story/internal/models"
)

// DefaultOpenWeatherURL is the OpenWeatherMap current weather endpoint.
const DefaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrRateLimited      = errors.New("rate limited")
	ErrUpstreamFailure  = errors.New("upstream failure")
)

// OpenWeatherConfig configures an OpenWeatherProvider.
type OpenWeatherConfig struct {
	APIKey         string
	APIURL         string
	City           string
	Units          string
	Language       string
	Timeout        time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// OpenWeatherProvider reads current weather for one city from OpenWeatherMap.
type OpenWeatherProvider struct {
	cfg    OpenWeatherConfig
	client *http.Client
}

// NewOpenWeatherProvider validates the key shape and returns a provider.
func NewOpenWeatherProvider(cfg OpenWeatherConfig) (*OpenWeatherProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(cfg.APIKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultOpenWeatherURL
	}
	if cfg.Units == "" {
		cfg.Units = "metric"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 2
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 200 * time.Millisecond
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		cfg.RetryMaxDelay = 2 * time.Second
	}
	return &OpenWeatherProvider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

// Name implements Provider.
func (p *OpenWeatherProvider) Name() string { return "openweather" }

type openWeatherResponse struct {
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// Current implements Provider, retrying rate limits and 5xx responses.
func (p *OpenWeatherProvider) Current(ctx context.Context) (models.WeatherReading, error) {
	var lastErr error
	for attempt := 0; attempt < p.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return models.WeatherReading{}, ctx.Err()
			case <-time.After(p.backoff(attempt)):
			}
		}
		r, err := p.callAPI(ctx)
		if err == nil {
			return r, nil
		}
		lastErr = err
		if ctx.Err() != nil || !(errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure)) {
			return models.WeatherReading{}, err
		}
	}
	return models.WeatherReading{}, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (p *OpenWeatherProvider) backoff(attempt int) time.Duration {
	delay := float64(p.cfg.RetryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.cfg.RetryMaxDelay) {
		delay = float64(p.cfg.RetryMaxDelay)
	}
	return time.Duration(delay + delay*0.1*rand.Float64())
}

func (p *OpenWeatherProvider) callAPI(ctx context.Context) (models.WeatherReading, error) {
	u, err := url.Parse(p.cfg.APIURL)
	if err != nil {
		return models.WeatherReading{}, fmt.Errorf("invalid API URL: %w", err)
	}
	params := url.Values{}
	params.Set("q", p.cfg.City)
	params.Set("appid", p.cfg.APIKey)
	params.Set("units", p.cfg.Units)
	if p.cfg.Language != "" {
		params.Set("lang", p.cfg.Language)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return models.WeatherReading{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return models.WeatherReading{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return models.WeatherReading{}, ErrInvalidAPIKey
	case resp.StatusCode == http.StatusNotFound:
		return models.WeatherReading{}, ErrLocationNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return models.WeatherReading{}, ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return models.WeatherReading{}, fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.WeatherReading{}, fmt.Errorf("read response body: %w", err)
	}
	var apiResp openWeatherResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.WeatherReading{}, fmt.Errorf("parse response: %w", err)
	}
	return mapResponse(apiResp), nil
}

func mapResponse(apiResp openWeatherResponse) models.WeatherReading {
	r := models.WeatherReading{
		Temperature: &apiResp.Main.Temp,
		FeelsLike:   &apiResp.Main.FeelsLike,
		WindSpeed:   &apiResp.Wind.Speed,
		Humidity:    &apiResp.Main.Humidity,
		Condition:   models.ConditionDefault,
	}
	if len(apiResp.Weather) > 0 {
		r.Condition = conditionFromMain(apiResp.Weather[0].Main)
		r.Description = apiResp.Weather[0].Description
	}
	return r
}

// conditionFromMain folds OpenWeatherMap groups into the page's conditions.
func conditionFromMain(main string) models.Condition {
	switch main {
	case "Snow":
		return models.ConditionSnow
	case "Rain", "Drizzle", "Thunderstorm":
		return models.ConditionRain
	case "Clear":
		return models.ConditionClear
	case "Clouds":
		return models.ConditionClouds
	}
	return models.Condition(main)
}
