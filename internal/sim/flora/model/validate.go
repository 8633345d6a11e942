package model

import (
	"fmt"
	"math"

	"github.com/agnivade/levenshtein"
)

// Validate checks the numeric and structural integrity of a plant. Absent optional data is
// fine; corrupt data returns a *DataError.
func Validate(p Plant) error {
	plantID := p.ID
	if plantID == "" {
		plantID = p.Species
	}
	props := p.Properties
	if err := checkFinite(plantID, "", "vegetation_contribution", props.VegetationContribution); err != nil {
		return err
	}
	if err := checkFinite(plantID, "", "initial_vegetation_ratio", props.InitialVegetationRatio); err != nil {
		return err
	}
	if err := validatePrefs(plantID, "", props.Prefs); err != nil {
		return err
	}

	names := make(map[string]int, len(props.Parts))
	for i, part := range props.Parts {
		if _, dup := names[part.Name]; dup {
			return &DataError{Code: ErrDuplicatePart, Plant: plantID, Part: part.Name, Field: "name"}
		}
		names[part.Name] = i
		if err := validatePart(plantID, part); err != nil {
			return err
		}
	}
	for _, part := range props.Parts {
		if part.TriggerFrom == "" {
			continue
		}
		if _, ok := names[part.TriggerFrom]; !ok {
			return &DataError{
				Code:       ErrUnknownPart,
				Plant:      plantID,
				Part:       part.Name,
				Field:      "trigger_from",
				Detail:     fmt.Sprintf("prerequisite %q does not exist", part.TriggerFrom),
				Suggestion: closestName(part.TriggerFrom, props.Parts),
			}
		}
		if part.TriggerFrom == part.Name {
			return &DataError{Code: ErrDependencyCycle, Plant: plantID, Part: part.Name, Field: "trigger_from", Detail: "part depends on itself"}
		}
	}
	if _, err := DependencyOrder(p); err != nil {
		return err
	}
	return nil
}

func validatePart(plantID string, part Part) error {
	if part.Name == "" {
		return &DataError{Code: ErrOutOfRange, Plant: plantID, Field: "name", Detail: "empty part name"}
	}
	if !part.Category.Known() {
		return &DataError{Code: ErrUnknownCategory, Plant: plantID, Part: part.Name, Field: "category", Detail: string(part.Category)}
	}
	if err := checkProb(plantID, part.Name, "grow_prob", part.GrowProb); err != nil {
		return err
	}
	if err := checkProb(plantID, part.Name, "drop_prob", part.DropProb); err != nil {
		return err
	}
	if part.MaxQty < 0 {
		return &DataError{Code: ErrOutOfRange, Plant: plantID, Part: part.Name, Field: "max_qty", Detail: fmt.Sprintf("%d < 0", part.MaxQty)}
	}
	if part.Qty < 0 || part.Qty > part.MaxQty {
		return &DataError{Code: ErrOutOfRange, Plant: plantID, Part: part.Name, Field: "qty", Detail: fmt.Sprintf("%d outside [0,%d]", part.Qty, part.MaxQty)}
	}
	if part.StaminaCost < 0 {
		return &DataError{Code: ErrOutOfRange, Plant: plantID, Part: part.Name, Field: "stamina_cost", Detail: fmt.Sprintf("%d < 0", part.StaminaCost)}
	}
	for i, l := range part.Loot {
		if err := validateLoot(plantID, part.Name, fmt.Sprintf("loot[%d]", i), l); err != nil {
			return err
		}
	}
	for i, l := range part.DroppedLoot {
		if err := validateLoot(plantID, part.Name, fmt.Sprintf("dropped_loot[%d]", i), l); err != nil {
			return err
		}
	}
	return validatePrefs(plantID, part.Name, part.Prefs)
}

func validateLoot(plantID, partName, field string, l LootEntry) error {
	if l.Item == "" {
		return &DataError{Code: ErrOutOfRange, Plant: plantID, Part: partName, Field: field + ".item", Detail: "empty item id"}
	}
	if err := checkProb(plantID, partName, field+".chance", l.Chance); err != nil {
		return err
	}
	if l.Min < 0 || l.Max < l.Min {
		return &DataError{Code: ErrOutOfRange, Plant: plantID, Part: partName, Field: field, Detail: fmt.Sprintf("bad quantity range [%d,%d]", l.Min, l.Max)}
	}
	return nil
}

func validatePrefs(plantID, partName string, p Prefs) error {
	if p.Water != nil {
		if err := checkFinite(plantID, partName, "water_preference", *p.Water); err != nil {
			return err
		}
	}
	if p.Light != nil {
		if err := checkFinite(plantID, partName, "light_preference", *p.Light); err != nil {
			return err
		}
	}
	if p.Temperature != nil {
		lo, hi := p.Temperature[0], p.Temperature[1]
		if err := checkFinite(plantID, partName, "temperature_range", lo); err != nil {
			return err
		}
		if err := checkFinite(plantID, partName, "temperature_range", hi); err != nil {
			return err
		}
		if lo > hi {
			return &DataError{Code: ErrOutOfRange, Plant: plantID, Part: partName, Field: "temperature_range", Detail: fmt.Sprintf("inverted range [%g,%g]", lo, hi)}
		}
	}
	return nil
}

func checkFinite(plantID, partName, field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &DataError{Code: ErrNonFinite, Plant: plantID, Part: partName, Field: field, Detail: fmt.Sprintf("%v", v)}
	}
	return nil
}

func checkProb(plantID, partName, field string, v float64) error {
	if err := checkFinite(plantID, partName, field, v); err != nil {
		return err
	}
	if v < 0 || v > 1 {
		return &DataError{Code: ErrOutOfRange, Plant: plantID, Part: partName, Field: field, Detail: fmt.Sprintf("%g outside [0,1]", v)}
	}
	return nil
}

// SuggestPart returns the closest existing part name to a misspelled one, or "".
func (p Plant) SuggestPart(name string) string { return closestName(name, p.Properties.Parts) }

// closestName suggests the nearest existing part name for a typo, or "" when nothing is close.
func closestName(name string, parts []Part) string {
	best := ""
	bestDist := -1
	for _, p := range parts {
		d := levenshtein.ComputeDistance(name, p.Name)
		if bestDist < 0 || d < bestDist || (d == bestDist && p.Name < best) {
			best, bestDist = p.Name, d
		}
	}
	if bestDist < 0 || bestDist > 3 || bestDist >= len(name) {
		return ""
	}
	return best
}

// DependencyOrder returns part indices with every prerequisite ahead of its dependents.
// Ties keep declaration order, so the result is stable for a given plant.
func DependencyOrder(p Plant) ([]int, error) {
	parts := p.Properties.Parts
	index := make(map[string]int, len(parts))
	for i, part := range parts {
		index[part.Name] = i
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(parts))
	order := make([]int, 0, len(parts))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return &DataError{Code: ErrDependencyCycle, Plant: p.ID, Part: parts[i].Name, Field: "trigger_from"}
		}
		state[i] = visiting
		if dep := parts[i].TriggerFrom; dep != "" {
			j, ok := index[dep]
			if !ok {
				return &DataError{Code: ErrUnknownPart, Plant: p.ID, Part: parts[i].Name, Field: "trigger_from",
					Detail: fmt.Sprintf("prerequisite %q does not exist", dep), Suggestion: closestName(dep, parts)}
			}
			if err := visit(j); err != nil {
				return err
			}
		}
		state[i] = done
		order = append(order, i)
		return nil
	}
	for i := range parts {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return order, nil
}
