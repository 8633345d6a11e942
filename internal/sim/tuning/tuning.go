package tuning

import (
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz         int `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	DayTicks           int `yaml:"day_ticks" json:"day_ticks"`
	SeasonLengthTicks  int `yaml:"season_length_ticks" json:"season_length_ticks"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks" json:"snapshot_every_ticks"`

	Growth      Growth      `yaml:"growth" json:"growth"`
	Suitability Suitability `yaml:"suitability" json:"suitability"`
	Canopy      Canopy      `yaml:"canopy" json:"canopy"`
}

// Growth scales base part probabilities into effective per-tick rates.
type Growth struct {
	GrowScale           float64 `yaml:"grow_scale" json:"grow_scale"`
	DropScale           float64 `yaml:"drop_scale" json:"drop_scale"`
	WindDropBoost       float64 `yaml:"wind_drop_boost" json:"wind_drop_boost"`
	StructuralRateScale float64 `yaml:"structural_rate_scale" json:"structural_rate_scale"`
	MaturityFraction    float64 `yaml:"maturity_fraction" json:"maturity_fraction"`
	MaxWaitTicks        uint64  `yaml:"max_wait_ticks" json:"max_wait_ticks"`
}

type Suitability struct {
	MultiplierFloor    float64            `yaml:"multiplier_floor" json:"multiplier_floor"`
	MultiplierCap      float64            `yaml:"multiplier_cap" json:"multiplier_cap"`
	FactorFloor        float64            `yaml:"factor_floor" json:"factor_floor"`
	TemperatureFloor   float64            `yaml:"temperature_floor" json:"temperature_floor"`
	TemperatureFalloff float64            `yaml:"temperature_falloff" json:"temperature_falloff"`
	SuitableAt         float64            `yaml:"suitable_at" json:"suitable_at"`
	UnfavorableAt      float64            `yaml:"unfavorable_at" json:"unfavorable_at"`
	CrowdingAt         float64            `yaml:"crowding_at" json:"crowding_at"`
	CrowdingPenalty    float64            `yaml:"crowding_penalty" json:"crowding_penalty"`
	SeasonFactors      map[string]float64 `yaml:"season_factors" json:"season_factors"`

	DefaultWater       float64    `yaml:"default_water_preference" json:"default_water_preference"`
	DefaultLight       float64    `yaml:"default_light_preference" json:"default_light_preference"`
	DefaultTemperature [2]float64 `yaml:"default_temperature_range" json:"default_temperature_range"`
}

// Canopy controls the light occlusion feedback emitted for dense foliage.
type Canopy struct {
	Threshold       float64 `yaml:"threshold" json:"threshold"`
	LightBlock      float64 `yaml:"light_block" json:"light_block"`
	VegetationScale float64 `yaml:"vegetation_scale" json:"vegetation_scale"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:         5,
		DayTicks:           6000,
		SeasonLengthTicks:  42000,
		SnapshotEveryTicks: 3000,
		Growth: Growth{
			GrowScale:           1.0,
			DropScale:           1.0,
			WindDropBoost:       2.0,
			StructuralRateScale: 0.1,
			MaturityFraction:    0.8,
			MaxWaitTicks:        1 << 40,
		},
		Suitability: Suitability{
			MultiplierFloor:    0.05,
			MultiplierCap:      1.5,
			FactorFloor:        0.1,
			TemperatureFloor:   0.1,
			TemperatureFalloff: 10,
			SuitableAt:         0.75,
			UnfavorableAt:      0.3,
			CrowdingAt:         0.8,
			CrowdingPenalty:    0.5,
			SeasonFactors: map[string]float64{
				"SPRING": 1.2,
				"SUMMER": 1.1,
				"AUTUMN": 0.85,
				"WINTER": 0.6,
			},
			DefaultWater:       0.5,
			DefaultLight:       0.5,
			DefaultTemperature: [2]float64{5, 30},
		},
		Canopy: Canopy{
			Threshold:       0.8,
			LightBlock:      0.15,
			VegetationScale: 0.1,
		},
	}
}

// Load reads tuning.yaml over Defaults, so a file only needs the keys it changes.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be > 0")
	}
	// Checked in declaration order so the reported field is stable.
	finite := []struct {
		name string
		v    float64
	}{
		{"growth.grow_scale", t.Growth.GrowScale},
		{"growth.drop_scale", t.Growth.DropScale},
		{"growth.wind_drop_boost", t.Growth.WindDropBoost},
		{"growth.structural_rate_scale", t.Growth.StructuralRateScale},
		{"growth.maturity_fraction", t.Growth.MaturityFraction},
		{"suitability.multiplier_floor", t.Suitability.MultiplierFloor},
		{"suitability.multiplier_cap", t.Suitability.MultiplierCap},
		{"suitability.factor_floor", t.Suitability.FactorFloor},
		{"suitability.temperature_floor", t.Suitability.TemperatureFloor},
		{"suitability.temperature_falloff", t.Suitability.TemperatureFalloff},
		{"suitability.suitable_at", t.Suitability.SuitableAt},
		{"suitability.unfavorable_at", t.Suitability.UnfavorableAt},
		{"suitability.crowding_at", t.Suitability.CrowdingAt},
		{"suitability.crowding_penalty", t.Suitability.CrowdingPenalty},
		{"canopy.threshold", t.Canopy.Threshold},
		{"canopy.light_block", t.Canopy.LightBlock},
		{"canopy.vegetation_scale", t.Canopy.VegetationScale},
		{"suitability.default_water", t.Suitability.DefaultWater},
		{"suitability.default_light", t.Suitability.DefaultLight},
		{"suitability.default_temperature[0]", t.Suitability.DefaultTemperature[0]},
		{"suitability.default_temperature[1]", t.Suitability.DefaultTemperature[1]},
	}
	for _, f := range finite {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s is not finite", f.name)
		}
		if f.v < 0 && f.name != "suitability.default_temperature[0]" && f.name != "suitability.default_temperature[1]" {
			return fmt.Errorf("%s must be >= 0", f.name)
		}
	}
	seasons := make([]string, 0, len(t.Suitability.SeasonFactors))
	for season := range t.Suitability.SeasonFactors {
		seasons = append(seasons, season)
	}
	sort.Strings(seasons)
	for _, season := range seasons {
		f := t.Suitability.SeasonFactors[season]
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			return fmt.Errorf("suitability.season_factors.%s must be a finite value >= 0", season)
		}
	}
	s := t.Suitability
	if s.MultiplierFloor <= 0 {
		return fmt.Errorf("suitability.multiplier_floor must be > 0")
	}
	if s.MultiplierCap < s.MultiplierFloor {
		return fmt.Errorf("suitability.multiplier_cap below multiplier_floor")
	}
	if s.UnfavorableAt > s.SuitableAt {
		return fmt.Errorf("suitability.unfavorable_at above suitable_at")
	}
	if s.DefaultTemperature[0] > s.DefaultTemperature[1] {
		return fmt.Errorf("suitability.default_temperature_range is inverted")
	}
	if t.Growth.MaturityFraction > 1 {
		return fmt.Errorf("growth.maturity_fraction must be <= 1")
	}
	return nil
}

// SeasonFactor returns the configured factor for a season id, 1.0 when unknown.
func (s Suitability) SeasonFactor(season string) float64 {
	if f, ok := s.SeasonFactors[season]; ok {
		return f
	}
	return 1.0
}
