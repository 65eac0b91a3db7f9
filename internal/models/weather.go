package models

// Condition is the categorical weather state used to pick icon, gradient and animation.
type Condition string

const (
	ConditionSnow    Condition = "Snow"
	ConditionRain    Condition = "Rain"
	ConditionClear   Condition = "Clear"
	ConditionClouds  Condition = "Clouds"
	ConditionDefault Condition = "default"
)

// WeatherReading is a single weather observation. Numeric fields are pointers so the
// "no data" reading can leave them absent.
type WeatherReading struct {
	Temperature *float64  `json:"temperature,omitempty"`
	FeelsLike   *float64  `json:"feelsLike,omitempty"`
	Description string    `json:"description"`
	WindSpeed   *float64  `json:"windSpeed,omitempty"`
	Humidity    *int      `json:"humidity,omitempty"`
	Condition   Condition `json:"condition"`
}
