package runtime

import (
	"fmt"

	"floracraft.ai/internal/sim/flora/model"
	"floracraft.ai/internal/sim/flora/parts"
	"floracraft.ai/internal/sim/rng"
)

type HarvestInput struct {
	Plant   model.Plant
	Part    string
	Special bool
	Seed    string
	Tick    uint64

	// Dice overrides the loot source; nil derives one from Seed, Tick, plant and part.
	Dice rng.Source
}

type HarvestResult struct {
	Plant       model.Plant         `json:"plant"`
	Items       []model.DroppedItem `json:"items,omitempty"`
	Events      []model.Event       `json:"events,omitempty"`
	StaminaCost int                 `json:"stamina_cost"`
	Removed     bool                `json:"removed"`
}

// Harvest takes one unit from a named part and rolls its active loot. Hidden parts need
// Special; the errors wrap parts.ErrHiddenPart and parts.ErrEmptyPart.
func Harvest(in HarvestInput) (HarvestResult, error) {
	plant := in.Plant
	idx := plant.PartIndex(in.Part)
	if idx < 0 {
		return HarvestResult{}, &model.DataError{
			Code:       model.ErrUnknownPart,
			Plant:      plant.ID,
			Part:       in.Part,
			Detail:     "no such part",
			Suggestion: plant.SuggestPart(in.Part),
		}
	}
	src := in.Dice
	if src == nil {
		src = rng.New(rng.DeriveTick(in.Seed, in.Tick, "harvest", plant.ID, in.Part))
	}

	out, err := parts.Harvest(plant, idx, in.Special, src)
	if err != nil {
		return HarvestResult{}, fmt.Errorf("harvest %s/%s: %w", plant.ID, in.Part, err)
	}

	next := plant.Clone()
	next.Properties.Parts[idx] = out.Part
	res := HarvestResult{
		Plant:       next,
		Items:       out.Dropped,
		StaminaCost: out.Part.StaminaCost,
		Events: []model.Event{{Key: model.EventHarvest, Params: map[string]string{
			"part":   in.Part,
			"target": plant.Name,
		}}},
	}
	if next.Dead() {
		res.Removed = true
		res.Events = append(res.Events, wiltEvent(next))
	}
	return res, nil
}
