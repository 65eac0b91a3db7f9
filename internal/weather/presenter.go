// Package weather provides the weather reading shown on the page and its presentation.
package weather

import (
	"math"
	"strconv"

	"github.com/kjstillabower/our-story/internal/animation"
	"github.com/kjstillabower/our-story/internal/models"
)

// Theme is the page background picked for a condition.
type Theme struct {
	Icon      string         `json:"icon"`
	Gradient  string         `json:"gradient"`
	Animation animation.Kind `json:"animation"`
}

var themes = map[models.Condition]Theme{
	models.ConditionSnow:   {"❄️", "linear-gradient(-45deg, #e3f2fd, #bbdefb, #90caf9)", animation.KindSnow},
	models.ConditionRain:   {"🌧️", "linear-gradient(-45deg, #bbdefb, #90caf9, #64b5f6)", animation.KindRain},
	models.ConditionClear:  {"☀️", "linear-gradient(-45deg, #fff9c4, #fff59d, #fff176)", animation.KindSparkles},
	models.ConditionClouds: {"☁️", "linear-gradient(-45deg, #f5f5f5, #eeeeee, #e0e0e0)", animation.KindHearts},
}

var defaultTheme = Theme{"⛅", "linear-gradient(-45deg, #ffafbd, #ffc3a0, #a1c4fd)", animation.KindHearts}

// ThemeFor returns the theme for c, or the default theme for unrecognized conditions.
func ThemeFor(c models.Condition) Theme {
	if t, ok := themes[c]; ok {
		return t
	}
	return defaultTheme
}

// View is the display text of a reading.
type View struct {
	Temperature string           `json:"temperature"`
	FeelsLike   string           `json:"feelsLike"`
	Description string           `json:"description"`
	Wind        string           `json:"wind"`
	Humidity    string           `json:"humidity"`
	Condition   models.Condition `json:"condition"`
	Theme       Theme            `json:"theme"`
}

// missing is shown in place of absent numeric fields.
const missing = "-"

// Present maps a reading to display strings and a theme.
func Present(r models.WeatherReading) View {
	return View{
		Temperature: formatFloat(r.Temperature, 0) + "°",
		FeelsLike:   formatFloat(r.FeelsLike, 0) + "°C",
		Description: r.Description,
		Wind:        formatFloat(r.WindSpeed, 1) + " м/с",
		Humidity:    formatInt(r.Humidity) + "%",
		Condition:   r.Condition,
		Theme:       ThemeFor(r.Condition),
	}
}

func formatFloat(v *float64, decimals int) string {
	if v == nil {
		return missing
	}
	p := math.Pow(10, float64(decimals))
	rounded := math.Round(*v*p) / p
	if rounded == 0 {
		rounded = 0 // drop negative zero
	}
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return missing
	}
	return strconv.Itoa(*v)
}
