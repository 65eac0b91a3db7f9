package weather

import (
	"context"

	"github.com/kjstillabower/our-story/internal/models"
)

// Provider returns the current weather reading.
type Provider interface {
	Current(ctx context.Context) (models.WeatherReading, error)
	Name() string
}

// NoData is shown when a provider fails.
func NoData() models.WeatherReading {
	return models.WeatherReading{
		Description: "Нет данных о погоде",
		Condition:   models.ConditionDefault,
	}
}

// StaticProvider always returns the same reading.
type StaticProvider struct {
	Reading models.WeatherReading
}

// NewStaticProvider returns a provider with the fixed winter reading for Perm.
func NewStaticProvider() *StaticProvider {
	temp, feels, wind, humidity := -21.0, -30.0, 7.0, 76
	return &StaticProvider{Reading: models.WeatherReading{
		Temperature: &temp,
		FeelsLike:   &feels,
		Description: "Облачно, слабый снег",
		WindSpeed:   &wind,
		Humidity:    &humidity,
		Condition:   models.ConditionSnow,
	}}
}

// Current returns the fixed reading.
func (p *StaticProvider) Current(ctx context.Context) (models.WeatherReading, error) {
	if err := ctx.Err(); err != nil {
		return models.WeatherReading{}, err
	}
	return p.Reading, nil
}

// Name implements Provider.
func (p *StaticProvider) Name() string { return "static" }
