// Package weather fetches current conditions for a coordinate.
package weather

import (
	"context"
	"fmt"

	"github.com/raterudder/gridcast/pkg/types"
)

// Provider returns the current weather at a coordinate.
type Provider interface {
	GetCurrentWeather(ctx context.Context, lat, lon float64) (types.WeatherSnapshot, error)
}

// ExternalServiceError is returned when the weather service could not be
// reached or returned an unusable response.
type ExternalServiceError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s weather request failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s weather request failed: %v", e.Provider, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}
