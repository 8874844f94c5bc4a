package types

import "time"

// TrainingRecord is one labeled row of historical microgrid data.
type TrainingRecord struct {
	Timestamp       time.Time `json:"timestamp"`
	Temperature     float64   `json:"temperature"`
	Humidity        float64   `json:"humidity"`
	SolarIrradiance float64   `json:"solarIrradiance"` // W/m2
	WindSpeed       float64   `json:"windSpeed"`
	EnergyDemand    float64   `json:"energyDemand"` // kWh
}

// CandidateScore is the held-out score of one trained candidate.
type CandidateScore struct {
	Name string  `json:"name"`
	R2   float64 `json:"r2"`
}

// ModelInfo describes a trained model bundle without exposing the model itself.
type ModelInfo struct {
	Name         string           `json:"name"`
	Features     []string         `json:"features"`
	Scores       []CandidateScore `json:"scores"`
	TrainedAt    time.Time        `json:"trainedAt"`
	TrainingRows int              `json:"trainingRows"`
	TestRows     int              `json:"testRows"`
}
