package types

// WeatherSnapshot is a point-in-time weather reading used as model input.
type WeatherSnapshot struct {
	Temperature float64 `json:"temperature"` // degrees Celsius
	Humidity    float64 `json:"humidity"`    // 0-100
	WindSpeed   float64 `json:"windSpeed"`   // m/s
	CloudCover  float64 `json:"cloudCover"`  // 0-100
}

// DefaultWeather is used whenever live weather is unavailable.
var DefaultWeather = WeatherSnapshot{
	Temperature: 25.0,
	Humidity:    60.0,
	WindSpeed:   5.0,
	CloudCover:  50.0,
}

// WeatherSource describes where the weather for a forecast came from.
type WeatherSource string

const (
	WeatherSourceLive    WeatherSource = "live"
	WeatherSourceDefault WeatherSource = "default"
)
