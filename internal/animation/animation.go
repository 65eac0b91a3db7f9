// Package animation generates the decorative particle scenes drawn behind the page.
package animation

import (
	"math/rand"
)

// Kind selects a particle theme.
type Kind string

const (
	KindSnow     Kind = "snow"
	KindRain     Kind = "rain"
	KindHearts   Kind = "hearts"
	KindSparkles Kind = "sparkles"
)

// span is a half-open [Min, Min+Spread) range.
type span struct {
	Min    float64
	Spread float64
}

func (s span) draw(rng *rand.Rand) float64 {
	return s.Min + rng.Float64()*s.Spread
}

// Style holds the fixed per-kind parameters.
type Style struct {
	Count     int
	Glyph     string
	Keyframes string
	Color     string
	Size      span // px
	Duration  span // seconds
	Delay     span // seconds
	Opacity   span
}

var styles = map[Kind]Style{
	KindSnow: {
		Count: 50, Glyph: "❄️", Keyframes: "fall", Color: "#e3f2fd",
		Size: span{15, 20}, Duration: span{10, 8}, Delay: span{0, 5}, Opacity: span{0.3, 0.7},
	},
	KindRain: {
		Count: 40, Glyph: "💧", Keyframes: "rain", Color: "#64b5f6",
		Size: span{10, 10}, Duration: span{1, 1.5}, Delay: span{0, 2}, Opacity: span{0.4, 0.5},
	},
	KindHearts: {
		Count: 30, Glyph: "❤️", Keyframes: "float-up", Color: "#ff6b81",
		Size: span{15, 25}, Duration: span{8, 7}, Delay: span{0, 6}, Opacity: span{0.4, 0.5},
	},
	KindSparkles: {
		Count: 20, Glyph: "✨", Keyframes: "twinkle", Color: "#fff176",
		Size: span{12, 18}, Duration: span{2, 3}, Delay: span{0, 4}, Opacity: span{0.5, 0.5},
	},
}

// StyleFor returns the style of kind, falling back to hearts for unknown kinds.
func StyleFor(kind Kind) (Kind, Style) {
	if s, ok := styles[kind]; ok {
		return kind, s
	}
	return KindHearts, styles[KindHearts]
}

// Particle is one animated glyph.
type Particle struct {
	Left     float64 `json:"left"` // percent of viewport width
	Top      float64 `json:"top"`  // percent of viewport height; only sparkles are placed vertically
	Size     float64 `json:"size"`
	Opacity  float64 `json:"opacity"`
	Duration float64 `json:"duration"`
	Delay    float64 `json:"delay"`
}

// Scene is a complete background: it replaces whatever was drawn before.
type Scene struct {
	Kind      Kind       `json:"kind"`
	Glyph     string     `json:"glyph"`
	Keyframes string     `json:"keyframes"`
	Color     string     `json:"color"`
	Particles []Particle `json:"particles"`
}

// Generate draws a fresh scene for kind using rng.
func Generate(kind Kind, rng *rand.Rand) Scene {
	kind, st := StyleFor(kind)
	scene := Scene{
		Kind:      kind,
		Glyph:     st.Glyph,
		Keyframes: st.Keyframes,
		Color:     st.Color,
		Particles: make([]Particle, st.Count),
	}
	for i := range scene.Particles {
		p := Particle{
			Left:     rng.Float64() * 100,
			Size:     st.Size.draw(rng),
			Duration: st.Duration.draw(rng),
			Delay:    st.Delay.draw(rng),
			Opacity:  st.Opacity.draw(rng),
		}
		if kind == KindSparkles {
			p.Top = rng.Float64() * 100
		}
		scene.Particles[i] = p
	}
	return scene
}
