package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/gridcast/pkg/common"
	"github.com/raterudder/gridcast/pkg/log"
	"github.com/raterudder/gridcast/pkg/types"
	"github.com/sony/gobreaker"
)

const (
	openWeatherName       = "openweathermap"
	defaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5"
	maxResponseBytes      = 1 << 20
)

// Config configures an OpenWeatherMap client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// CircuitBreaker makes calls fail fast while the service keeps failing.
	CircuitBreaker bool
	// Client overrides the http client, mainly for tests.
	Client *http.Client
}

// OpenWeatherMap implements Provider using the OpenWeatherMap current weather
// API. Every call is exactly one request, there is no retry or caching.
type OpenWeatherMap struct {
	apiKey  string
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

var _ Provider = (*OpenWeatherMap)(nil)

// NewOpenWeatherMap creates a client from cfg.
func NewOpenWeatherMap(cfg Config) *OpenWeatherMap {
	o := &OpenWeatherMap{}
	o.apply(cfg)
	return o
}

func (o *OpenWeatherMap) apply(cfg Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenWeatherURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	o.apiKey = cfg.APIKey
	o.baseURL = cfg.BaseURL
	o.client = cfg.Client
	if o.client == nil {
		o.client = common.HTTPClient(cfg.Timeout)
	}
	o.breaker = nil
	if cfg.CircuitBreaker {
		o.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        openWeatherName,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
		})
	}
}

// Configured sets up the OpenWeatherMap client from flags. Without an API key
// the client reports itself as disabled and must not be called.
func Configured() *OpenWeatherMap {
	apiKey := lflag.String("weather-api-key", "", "OpenWeatherMap API key, live weather is disabled when empty")
	baseURL := lflag.String("weather-api-url", defaultOpenWeatherURL, "OpenWeatherMap API base URL")
	timeout := lflag.Duration("weather-timeout", 10*time.Second, "Timeout for a weather request")
	breaker := lflag.Bool("weather-circuit-breaker", false, "Fail weather requests fast after repeated failures")

	o := &OpenWeatherMap{}
	lflag.Do(func() {
		o.apply(Config{
			APIKey:         *apiKey,
			BaseURL:        *baseURL,
			Timeout:        *timeout,
			CircuitBreaker: *breaker,
		})
	})
	return o
}

// Enabled reports whether an API key is configured.
func (o *OpenWeatherMap) Enabled() bool {
	return o.apiKey != ""
}

// Validate checks the base URL.
func (o *OpenWeatherMap) Validate() error {
	if _, err := url.Parse(o.baseURL); err != nil {
		return fmt.Errorf("failed to parse weather url (%s): %w", o.baseURL, err)
	}
	return nil
}

type owmCurrentResponse struct {
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Wind *struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
	Clouds *struct {
		All *float64 `json:"all"`
	} `json:"clouds"`
}

// GetCurrentWeather fetches current conditions in metric units. All failures
// are returned as *ExternalServiceError.
func (o *OpenWeatherMap) GetCurrentWeather(ctx context.Context, lat, lon float64) (types.WeatherSnapshot, error) {
	if o.breaker == nil {
		return o.fetch(ctx, lat, lon)
	}
	res, err := o.breaker.Execute(func() (interface{}, error) {
		return o.fetch(ctx, lat, lon)
	})
	if err != nil {
		var extErr *ExternalServiceError
		if errors.As(err, &extErr) {
			return types.WeatherSnapshot{}, err
		}
		// gobreaker.ErrOpenState or ErrTooManyRequests
		return types.WeatherSnapshot{}, &ExternalServiceError{Provider: openWeatherName, Err: err}
	}
	return res.(types.WeatherSnapshot), nil
}

func (o *OpenWeatherMap) fetch(ctx context.Context, lat, lon float64) (types.WeatherSnapshot, error) {
	params := url.Values{
		"lat":   {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":   {strconv.FormatFloat(lon, 'f', -1, 64)},
		"appid": {o.apiKey},
		"units": {"metric"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/weather?"+params.Encode(), nil)
	if err != nil {
		return types.WeatherSnapshot{}, &ExternalServiceError{Provider: openWeatherName, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	log.Ctx(ctx).DebugContext(ctx, "fetching current weather", slog.Float64("lat", lat), slog.Float64("lon", lon))
	resp, err := o.client.Do(req)
	if err != nil {
		return types.WeatherSnapshot{}, &ExternalServiceError{Provider: openWeatherName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return types.WeatherSnapshot{}, &ExternalServiceError{
			Provider:   openWeatherName,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", body),
		}
	}

	var payload owmCurrentResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return types.WeatherSnapshot{}, &ExternalServiceError{Provider: openWeatherName, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	switch {
	case payload.Main == nil || payload.Main.Temp == nil || payload.Main.Humidity == nil:
		return types.WeatherSnapshot{}, &ExternalServiceError{Provider: openWeatherName, Err: errors.New("response missing main.temp or main.humidity")}
	case payload.Wind == nil || payload.Wind.Speed == nil:
		return types.WeatherSnapshot{}, &ExternalServiceError{Provider: openWeatherName, Err: errors.New("response missing wind.speed")}
	case payload.Clouds == nil || payload.Clouds.All == nil:
		return types.WeatherSnapshot{}, &ExternalServiceError{Provider: openWeatherName, Err: errors.New("response missing clouds.all")}
	}

	return types.WeatherSnapshot{
		Temperature: *payload.Main.Temp,
		Humidity:    *payload.Main.Humidity,
		WindSpeed:   *payload.Wind.Speed,
		CloudCover:  *payload.Clouds.All,
	}, nil
}
