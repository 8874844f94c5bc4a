package types

import "time"

// ForecastWeather is the weather that produced a forecast point. Cloud cover
// is replaced by the solar irradiance derived from it, which is what the model
// saw.
type ForecastWeather struct {
	Temperature     float64 `json:"temperature"`
	Humidity        float64 `json:"humidity"`
	WindSpeed       float64 `json:"wind_speed"`
	SolarIrradiance float64 `json:"solar_irradiance"`
}

// NewForecastWeather pairs a snapshot with the irradiance derived from it.
func NewForecastWeather(w WeatherSnapshot, solarIrradiance float64) ForecastWeather {
	return ForecastWeather{
		Temperature:     w.Temperature,
		Humidity:        w.Humidity,
		WindSpeed:       w.WindSpeed,
		SolarIrradiance: solarIrradiance,
	}
}

// ForecastPoint is the predicted demand for one forecast hour. The snake_case
// keys are what dashboard clients read.
type ForecastPoint struct {
	Timestamp       time.Time       `json:"datetime"`
	PredictedDemand float64         `json:"predicted_demand"`
	Weather         ForecastWeather `json:"weather"`
}

// Forecast is the output of one prediction request.
type Forecast struct {
	Points        []ForecastPoint `json:"forecast"`
	WeatherSource WeatherSource   `json:"weatherSource"`
	Model         string          `json:"model"`
}

// ForecastRun is a forecast recorded for history.
type ForecastRun struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Forecast
}
