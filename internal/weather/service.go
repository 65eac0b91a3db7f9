package weather

import (
	"context"

	"go.uber.org/zap"

	"github.com/kjstillabower/our-story/internal/models"
	"github.com/kjstillabower/our-story/internal/observability"
)

// Service reads the current weather and never fails: provider errors become NoData.
type Service struct {
	provider Provider
	logger   *zap.Logger
}

// NewService returns a Service over provider.
func NewService(provider Provider, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{provider: provider, logger: logger}
}

// Refresh returns the current reading and its view, falling back to NoData on error.
// The returned error is informational; the reading is always usable.
func (s *Service) Refresh(ctx context.Context) (models.WeatherReading, View, error) {
	reading, err := s.provider.Current(ctx)
	if err != nil {
		observability.WeatherRefreshTotal.WithLabelValues(s.provider.Name(), "error").Inc()
		s.logger.Warn("weather unavailable, showing placeholder",
			zap.String("source", s.provider.Name()), zap.Error(err))
		reading = NoData()
		return reading, Present(reading), err
	}
	observability.WeatherRefreshTotal.WithLabelValues(s.provider.Name(), "success").Inc()
	return reading, Present(reading), nil
}
