package model

import (
	"errors"
	"math"
	"testing"
)

func samplePlant() Plant {
	return Plant{
		ID:      "p1",
		Name:    "Wild Rose",
		Species: "wild_rose",
		Properties: Properties{
			VegetationContribution: 0.2,
			Parts: []Part{
				{Name: "leaves", Category: CategoryLeaf, MaxQty: 5, Qty: 4, GrowProb: 0.1, DropProb: 0.05},
				{Name: "flowers", Category: CategoryFlower, MaxQty: 3, Qty: 0, GrowProb: 0.1, DropProb: 0.05, TriggerFrom: "leaves"},
				{Name: "hips", Category: CategoryFruit, MaxQty: 3, Qty: 0, GrowProb: 0.1, DropProb: 0.05, TriggerFrom: "flowers"},
			},
		},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := Validate(samplePlant()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_NonFiniteProbability(t *testing.T) {
	p := samplePlant()
	p.Properties.Parts[0].GrowProb = math.NaN()
	err := Validate(p)
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DataError, got %v", err)
	}
	if de.Code != ErrNonFinite || de.Part != "leaves" || de.Field != "grow_prob" {
		t.Fatalf("unexpected error: %+v", de)
	}
}

func TestValidate_ProbabilityOutOfRange(t *testing.T) {
	p := samplePlant()
	p.Properties.Parts[1].DropProb = 1.5
	if err := Validate(p); !errors.Is(err, &DataError{Code: ErrOutOfRange}) {
		t.Fatalf("expected E_OUT_OF_RANGE, got %v", err)
	}
}

func TestValidate_QtyAboveMax(t *testing.T) {
	p := samplePlant()
	p.Properties.Parts[0].Qty = 6
	if err := Validate(p); !errors.Is(err, &DataError{Code: ErrOutOfRange}) {
		t.Fatalf("expected E_OUT_OF_RANGE, got %v", err)
	}
}

func TestValidate_UnknownTriggerSuggestsName(t *testing.T) {
	p := samplePlant()
	p.Properties.Parts[1].TriggerFrom = "leafs"
	err := Validate(p)
	var de *DataError
	if !errors.As(err, &de) || de.Code != ErrUnknownPart {
		t.Fatalf("expected E_UNKNOWN_PART, got %v", err)
	}
	if de.Suggestion != "leaves" {
		t.Fatalf("suggestion: got %q want %q", de.Suggestion, "leaves")
	}
}

func TestValidate_DuplicateName(t *testing.T) {
	p := samplePlant()
	p.Properties.Parts[2].Name = "leaves"
	if err := Validate(p); !errors.Is(err, &DataError{Code: ErrDuplicatePart}) {
		t.Fatalf("expected E_DUPLICATE_PART, got %v", err)
	}
}

func TestValidate_Cycle(t *testing.T) {
	p := samplePlant()
	p.Properties.Parts[0].TriggerFrom = "hips"
	if err := Validate(p); !errors.Is(err, &DataError{Code: ErrDependencyCycle}) {
		t.Fatalf("expected E_DEPENDENCY_CYCLE, got %v", err)
	}
}

func TestValidate_UnknownCategory(t *testing.T) {
	p := samplePlant()
	p.Properties.Parts[0].Category = "BRANCHY"
	if err := Validate(p); !errors.Is(err, &DataError{Code: ErrUnknownCategory}) {
		t.Fatalf("expected E_UNKNOWN_CATEGORY, got %v", err)
	}
}

func TestValidate_InvertedTemperature(t *testing.T) {
	p := samplePlant()
	p.Properties.Prefs.Temperature = &[2]float64{30, 10}
	if err := Validate(p); !errors.Is(err, &DataError{Code: ErrOutOfRange}) {
		t.Fatalf("expected E_OUT_OF_RANGE, got %v", err)
	}
}

func TestDependencyOrder_PrerequisitesFirst(t *testing.T) {
	p := samplePlant()
	// Declare dependents before prerequisites.
	parts := p.Properties.Parts
	p.Properties.Parts = []Part{parts[2], parts[1], parts[0]}

	order, err := DependencyOrder(p)
	if err != nil {
		t.Fatalf("DependencyOrder: %v", err)
	}
	pos := map[string]int{}
	for i, idx := range order {
		pos[p.Properties.Parts[idx].Name] = i
	}
	if !(pos["leaves"] < pos["flowers"] && pos["flowers"] < pos["hips"]) {
		t.Fatalf("bad order: %v", pos)
	}
}

func TestDataError_Message(t *testing.T) {
	e := &DataError{Code: ErrUnknownPart, Plant: "p1", Part: "flowers", Field: "trigger_from", Suggestion: "leaves"}
	want := `E_UNKNOWN_PART plant=p1 part=flowers field=trigger_from (did you mean "leaves"?)`
	if got := e.Error(); got != want {
		t.Fatalf("Error(): got %q want %q", got, want)
	}
}

func TestPrefsOver(t *testing.T) {
	base := Prefs{Water: F(0.3), Light: F(0.9)}
	got := Prefs{Water: F(0.7)}.Over(base)
	if *got.Water != 0.7 || *got.Light != 0.9 || got.Temperature != nil {
		t.Fatalf("Over: got water=%v light=%v temp=%v", *got.Water, *got.Light, got.Temperature)
	}
}

func TestPlantDeadAndClone(t *testing.T) {
	p := samplePlant()
	if p.Dead() {
		t.Fatalf("plant with leaves should not be dead")
	}
	c := p.Clone()
	for i := range c.Properties.Parts {
		c.Properties.Parts[i].Qty = 0
	}
	if !c.Dead() {
		t.Fatalf("expected clone with zeroed parts to be dead")
	}
	if p.Properties.Parts[0].Qty != 4 {
		t.Fatalf("Clone shares part storage with the original")
	}
	if (Plant{}).Dead() {
		t.Fatalf("plant without parts should not report dead")
	}
}

func TestSeasonAt(t *testing.T) {
	if got := SeasonAt(0, 100); got != SeasonSpring {
		t.Fatalf("tick 0: got %s", got)
	}
	if got := SeasonAt(250, 100); got != SeasonAutumn {
		t.Fatalf("tick 250: got %s", got)
	}
	if got := SeasonAt(450, 100); got != SeasonSpring {
		t.Fatalf("tick 450: got %s", got)
	}
	if got := SeasonAt(999, 0); got != SeasonSpring {
		t.Fatalf("zero season length: got %s", got)
	}
}
