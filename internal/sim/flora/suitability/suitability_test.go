package suitability

import (
	"math"
	"testing"

	"floracraft.ai/internal/sim/flora/model"
	"floracraft.ai/internal/sim/tuning"
)

func idealChunk() model.Chunk {
	return model.Chunk{
		Moisture:          0.6,
		LightLevel:        0.7,
		Temperature:       20,
		WindLevel:         0.1,
		Season:            model.SeasonSummer,
		VegetationDensity: 0.3,
	}
}

func idealPrefs() model.Prefs {
	return model.Prefs{Water: model.F(0.6), Light: model.F(0.7), Temperature: &[2]float64{10, 25}}
}

func TestCalculate_IdealNearOne(t *testing.T) {
	tune := tuning.Defaults()
	tune.Suitability.SeasonFactors["SUMMER"] = 1.0
	r := Calculate(idealChunk(), idealPrefs(), tune)
	if math.Abs(r.Multiplier-1.0) > 1e-9 {
		t.Fatalf("ideal multiplier: got %v want 1.0", r.Multiplier)
	}
	if r.State != Suitable {
		t.Fatalf("ideal state: got %s", r.State)
	}
}

func TestCalculate_CappedAndFloored(t *testing.T) {
	tune := tuning.Defaults()
	tune.Suitability.SeasonFactors["SPRING"] = 5
	c := idealChunk()
	c.Season = model.SeasonSpring
	if got := Calculate(c, idealPrefs(), tune).Multiplier; got != tune.Suitability.MultiplierCap {
		t.Fatalf("expected cap %v, got %v", tune.Suitability.MultiplierCap, got)
	}

	harsh := model.Chunk{Moisture: 0, LightLevel: 0, Temperature: -40, Season: model.SeasonWinter, VegetationDensity: 1}
	r := Calculate(harsh, model.Prefs{Water: model.F(1), Light: model.F(1), Temperature: &[2]float64{20, 30}}, tune)
	if r.Multiplier != tune.Suitability.MultiplierFloor {
		t.Fatalf("expected floor %v, got %v", tune.Suitability.MultiplierFloor, r.Multiplier)
	}
	if r.Multiplier <= 0 {
		t.Fatalf("multiplier must stay positive")
	}
	if r.State != Unsuitable {
		t.Fatalf("harsh state: got %s", r.State)
	}
}

func TestCalculate_TemperatureDegradesNotHalts(t *testing.T) {
	tune := tuning.Defaults()
	prefs := idealPrefs()
	c := idealChunk()

	c.Temperature = 30 // 5 degrees over
	warm := Calculate(c, prefs, tune)
	c.Temperature = 60 // far beyond falloff
	hot := Calculate(c, prefs, tune)

	if !(warm.Temperature < 1 && warm.Temperature > hot.Temperature) {
		t.Fatalf("expected gradual decay: warm=%v hot=%v", warm.Temperature, hot.Temperature)
	}
	if hot.Temperature != tune.Suitability.TemperatureFloor {
		t.Fatalf("expected temperature floor %v, got %v", tune.Suitability.TemperatureFloor, hot.Temperature)
	}
}

func TestCalculate_ClampsGarbageInputs(t *testing.T) {
	tune := tuning.Defaults()
	c := model.Chunk{Moisture: math.NaN(), LightLevel: 7, Temperature: math.NaN(), Season: "", VegetationDensity: -3}
	r := Calculate(c, model.Prefs{}, tune)
	if math.IsNaN(r.Multiplier) || r.Multiplier < tune.Suitability.MultiplierFloor || r.Multiplier > tune.Suitability.MultiplierCap {
		t.Fatalf("multiplier escaped bounds: %v", r.Multiplier)
	}
}

func TestCalculate_MoistureMonotonic(t *testing.T) {
	tune := tuning.Defaults()
	prefs := idealPrefs()
	prev := math.Inf(1)
	for _, m := range []float64{0.6, 0.5, 0.3, 0.1, 0.0} {
		c := idealChunk()
		c.Moisture = m
		got := Calculate(c, prefs, tune).Multiplier
		if got > prev {
			t.Fatalf("multiplier rose as moisture moved away from preference: %v > %v", got, prev)
		}
		prev = got
	}
}

func TestClassify_Monotonic(t *testing.T) {
	tune := tuning.Defaults()
	rank := map[State]int{Unsuitable: 0, Unfavorable: 1, Suitable: 2}
	prev := -1
	for m := 0.0; m <= 1.6; m += 0.01 {
		r := rank[Classify(m, tune)]
		if r < prev {
			t.Fatalf("classification not monotonic at %v", m)
		}
		prev = r
	}
}

func TestForPart_OverridesPlantDefaults(t *testing.T) {
	tune := tuning.Defaults()
	props := model.Properties{
		Prefs: model.Prefs{Water: model.F(0.1)},
		Parts: []model.Part{
			{Name: "leaves", Category: model.CategoryLeaf, MaxQty: 5},
			{Name: "fruit", Category: model.CategoryFruit, MaxQty: 2, Prefs: model.Prefs{Water: model.F(0.9)}},
		},
	}
	c := idealChunk()
	c.Moisture = 0.9

	plant := ForPart(c, props, -1, tune)
	leaves := ForPart(c, props, 0, tune)
	fruit := ForPart(c, props, 1, tune)
	if leaves.Moisture != plant.Moisture {
		t.Fatalf("part without override should inherit plant prefs: %v vs %v", leaves.Moisture, plant.Moisture)
	}
	if fruit.Moisture != 1 {
		t.Fatalf("fruit override ignored: moisture factor %v", fruit.Moisture)
	}
	if fruit.Multiplier <= leaves.Multiplier {
		t.Fatalf("expected wetter-loving fruit to score higher: fruit=%v leaves=%v", fruit.Multiplier, leaves.Multiplier)
	}
}

func TestCalculate_Crowding(t *testing.T) {
	tune := tuning.Defaults()
	c := idealChunk()
	c.VegetationDensity = 1
	if got := Calculate(c, idealPrefs(), tune).Crowding; got != 1-tune.Suitability.CrowdingPenalty {
		t.Fatalf("crowding factor: got %v", got)
	}
}
