package parts

import (
	"errors"
	"fmt"
	"math"

	"floracraft.ai/internal/sim/flora/model"
	"floracraft.ai/internal/sim/rng"
	"floracraft.ai/internal/sim/tuning"
)

var (
	ErrHiddenPart = errors.New("part is hidden and needs a special action")
	ErrEmptyPart  = errors.New("part has nothing to harvest")
)

// Outcome is the result of applying one event to one part. Kind is KindNone when the event
// was a no-op (gated, already at a bound).
type Outcome struct {
	Part    model.Part
	Kind    model.Kind
	Dropped []model.DroppedItem
}

// MaturityThreshold is the quantity a prerequisite must reach before dependents may grow:
// ceil(maxQty*fraction), at least 1 and never above maxQty.
func MaturityThreshold(maxQty int, fraction float64) int {
	if maxQty <= 0 {
		return 0
	}
	th := int(math.Ceil(float64(maxQty) * fraction))
	if th < 1 {
		th = 1
	}
	if th > maxQty {
		th = maxQty
	}
	return th
}

func Mature(p model.Part, t tuning.Tuning) bool {
	if p.MaxQty <= 0 {
		return false
	}
	return p.Qty >= MaturityThreshold(p.MaxQty, t.Growth.MaturityFraction)
}

// CanGrow checks the dependency gate against snapshot (the pre-tick plant), never against a
// partially applied one.
func CanGrow(snapshot model.Plant, idx int, t tuning.Tuning) (bool, error) {
	parts := snapshot.Properties.Parts
	if idx < 0 || idx >= len(parts) {
		return false, fmt.Errorf("part index %d out of range", idx)
	}
	dep := parts[idx].TriggerFrom
	if dep == "" {
		return true, nil
	}
	j := snapshot.PartIndex(dep)
	if j < 0 {
		return false, &model.DataError{Code: model.ErrUnknownPart, Plant: snapshot.ID, Part: parts[idx].Name, Field: "trigger_from",
			Detail: fmt.Sprintf("prerequisite %q does not exist", dep)}
	}
	return Mature(parts[j], t), nil
}

// Apply resolves kind against part idx of snapshot. Drops consume draws from src for the
// passive loot table.
func Apply(snapshot model.Plant, idx int, kind model.Kind, src rng.Source, t tuning.Tuning) (Outcome, error) {
	parts := snapshot.Properties.Parts
	if idx < 0 || idx >= len(parts) {
		return Outcome{}, fmt.Errorf("part index %d out of range", idx)
	}
	part := parts[idx]
	out := Outcome{Part: part}

	switch kind {
	case model.KindGrow:
		ok, err := CanGrow(snapshot, idx, t)
		if err != nil {
			return Outcome{}, err
		}
		if !ok || part.Qty >= part.MaxQty {
			return out, nil
		}
		out.Part.Qty++
		out.Kind = model.KindGrow

	case model.KindDrop:
		if part.Qty <= 0 {
			return out, nil
		}
		out.Part.Qty--
		out.Kind = model.KindDrop
		out.Dropped = ResolveLoot(part.DroppedLoot, src, snapshot.ID, part.Name)
	}
	return out, nil
}

// ResolveLoot rolls each entry independently: one chance draw, then a quantity draw for hits.
func ResolveLoot(entries []model.LootEntry, src rng.Source, plantID, partName string) []model.DroppedItem {
	var out []model.DroppedItem
	for _, e := range entries {
		if !rng.Chance(src, e.Chance) {
			continue
		}
		n := rng.Range(src, e.Min, e.Max)
		if n <= 0 {
			continue
		}
		out = append(out, model.DroppedItem{Item: e.Item, Quantity: n, PlantID: plantID, Part: partName})
	}
	return out
}

// Harvestable lists part indices offered by the default harvest surface: visible parts with
// something on them.
func Harvestable(p model.Plant) []int {
	var out []int
	for i, part := range p.Properties.Parts {
		if part.Hidden() || part.Qty <= 0 {
			continue
		}
		out = append(out, i)
	}
	return out
}

// Harvest takes one unit from part idx and rolls its active loot table. Hidden parts need
// special=true.
func Harvest(snapshot model.Plant, idx int, special bool, src rng.Source) (Outcome, error) {
	parts := snapshot.Properties.Parts
	if idx < 0 || idx >= len(parts) {
		return Outcome{}, fmt.Errorf("part index %d out of range", idx)
	}
	part := parts[idx]
	if part.Hidden() && !special {
		return Outcome{}, ErrHiddenPart
	}
	if part.Qty <= 0 {
		return Outcome{}, ErrEmptyPart
	}
	out := Outcome{Part: part, Kind: model.KindDrop}
	out.Part.Qty--
	out.Dropped = ResolveLoot(part.Loot, src, snapshot.ID, part.Name)
	return out, nil
}
