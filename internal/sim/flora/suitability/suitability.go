package suitability

import (
	"math"

	"floracraft.ai/internal/sim/flora/model"
	"floracraft.ai/internal/sim/tuning"
)

type State string

const (
	Suitable    State = "SUITABLE"
	Unfavorable State = "UNFAVORABLE"
	Unsuitable  State = "UNSUITABLE"
)

type Result struct {
	Multiplier float64 `json:"multiplier"`
	State      State   `json:"state"`

	// Per-factor breakdown, mostly for inspection surfaces.
	Moisture    float64 `json:"moisture"`
	Light       float64 `json:"light"`
	Temperature float64 `json:"temperature"`
	Season      float64 `json:"season"`
	Crowding    float64 `json:"crowding"`
}

// Calculate scores a chunk against resolved preferences. It never fails: every input is
// clamped, and nil preferences use the tuning defaults.
func Calculate(chunk model.Chunk, prefs model.Prefs, t tuning.Tuning) Result {
	s := t.Suitability

	waterPref := s.DefaultWater
	if prefs.Water != nil {
		waterPref = *prefs.Water
	}
	lightPref := s.DefaultLight
	if prefs.Light != nil {
		lightPref = *prefs.Light
	}
	tempRange := s.DefaultTemperature
	if prefs.Temperature != nil {
		tempRange = *prefs.Temperature
	}

	r := Result{
		Moisture:    closenessFactor(chunk.Moisture, waterPref, s.FactorFloor),
		Light:       closenessFactor(chunk.LightLevel, lightPref, s.FactorFloor),
		Temperature: temperatureFactor(chunk.Temperature, tempRange, s.TemperatureFloor, s.TemperatureFalloff),
		Season:      s.SeasonFactor(string(chunk.Season)),
		Crowding:    crowdingFactor(chunk.VegetationDensity, s.CrowdingAt, s.CrowdingPenalty),
	}

	m := r.Moisture * r.Light * r.Temperature * r.Season * r.Crowding
	r.Multiplier = clamp(m, s.MultiplierFloor, s.MultiplierCap)
	r.State = Classify(r.Multiplier, t)
	return r
}

// ForPart resolves the part's preference chain and scores it. partIndex < 0 (or out of range)
// scores the plant-level defaults.
func ForPart(chunk model.Chunk, props model.Properties, partIndex int, t tuning.Tuning) Result {
	prefs := props.Prefs
	if partIndex >= 0 && partIndex < len(props.Parts) {
		prefs = props.Parts[partIndex].Prefs.Over(props.Prefs)
	}
	return Calculate(chunk, prefs, t)
}

// Classify bands a multiplier. Bands are monotonic: a higher multiplier never lands in a
// worse state.
func Classify(multiplier float64, t tuning.Tuning) State {
	switch {
	case multiplier >= t.Suitability.SuitableAt:
		return Suitable
	case multiplier >= t.Suitability.UnfavorableAt:
		return Unfavorable
	default:
		return Unsuitable
	}
}

func closenessFactor(v, pref, floor float64) float64 {
	c := 1 - math.Abs(clamp01(v)-clamp01(pref))
	return lerp(clamp01(floor), 1, c)
}

// temperatureFactor is 1 inside the range and decays linearly toward floor outside it, reaching
// floor after falloff degrees.
func temperatureFactor(temp float64, rng [2]float64, floor, falloff float64) float64 {
	if math.IsNaN(temp) {
		return clamp01(floor)
	}
	lo, hi := rng[0], rng[1]
	if lo > hi {
		lo, hi = hi, lo
	}
	var excess float64
	switch {
	case temp < lo:
		excess = lo - temp
	case temp > hi:
		excess = temp - hi
	default:
		return 1
	}
	if falloff <= 0 {
		return clamp01(floor)
	}
	return lerp(clamp01(floor), 1, 1-clamp01(excess/falloff))
}

func crowdingFactor(density, at, penalty float64) float64 {
	d := clamp01(density)
	if d <= at || at >= 1 {
		return 1
	}
	over := (d - at) / (1 - at)
	return 1 - clamp01(penalty)*over
}

func lerp(a, b, t float64) float64 { return a*(1-t) + b*t }

func clamp01(x float64) float64 { return clamp(x, 0, 1) }

func clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return lo
	}
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
