package model

type Season string

const (
	SeasonSpring Season = "SPRING"
	SeasonSummer Season = "SUMMER"
	SeasonAutumn Season = "AUTUMN"
	SeasonWinter Season = "WINTER"
)

var seasonOrder = [4]Season{SeasonSpring, SeasonSummer, SeasonAutumn, SeasonWinter}

// SeasonAt maps a tick onto the four-season cycle. seasonLen <= 0 pins SPRING.
func SeasonAt(tick uint64, seasonLen int) Season {
	if seasonLen <= 0 {
		return SeasonSpring
	}
	return seasonOrder[(tick/uint64(seasonLen))%4]
}

// Chunk is the read-only environment snapshot of a plant's location. Moisture, LightLevel,
// WindLevel and VegetationDensity are normalized to [0,1]; Temperature is in degrees C.
type Chunk struct {
	Moisture          float64 `json:"moisture"`
	LightLevel        float64 `json:"light_level"`
	Temperature       float64 `json:"temperature"`
	WindLevel         float64 `json:"wind_level"`
	Season            Season  `json:"season"`
	VegetationDensity float64 `json:"vegetation_density"`
}

type EnvUpdates struct {
	LightLevelDelta        float64 `json:"light_level_delta,omitempty"`
	VegetationDensityDelta float64 `json:"vegetation_density_delta,omitempty"`
}

func (e EnvUpdates) Add(o EnvUpdates) EnvUpdates {
	return EnvUpdates{
		LightLevelDelta:        e.LightLevelDelta + o.LightLevelDelta,
		VegetationDensityDelta: e.VegetationDensityDelta + o.VegetationDensityDelta,
	}
}
