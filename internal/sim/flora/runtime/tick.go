package runtime

import (
	"fmt"

	"floracraft.ai/internal/sim/flora/model"
	"floracraft.ai/internal/sim/flora/parts"
	"floracraft.ai/internal/sim/flora/schedule"
	"floracraft.ai/internal/sim/flora/suitability"
	"floracraft.ai/internal/sim/rng"
	"floracraft.ai/internal/sim/tuning"
)

// DiceFunc hands out the random source used for one part during one tick.
type DiceFunc func(part string) rng.Source

type TickInput struct {
	Plant  model.Plant
	Chunk  model.Chunk
	Tuning tuning.Tuning
	Seed   string
	Tick   uint64

	// Dice overrides per-part randomness. Nil derives a source from Seed, Tick, plant id and
	// part name, so parts evolve independently of iteration order.
	Dice DiceFunc
}

// PartDice is the default per-part source for a plant tick.
func PartDice(seed string, tick uint64, plantID string) DiceFunc {
	return func(part string) rng.Source {
		return rng.New(rng.DeriveTick(seed, tick, "tick", plantID, part))
	}
}

type decision struct {
	idx int
	out parts.Outcome
}

// Tick advances one plant by one tick. The input plant is never modified; every decision is
// made against the pre-tick quantities and applied together afterwards.
func Tick(in TickInput) (model.TickResult, error) {
	plant := in.Plant
	if len(plant.Properties.Parts) == 0 {
		return model.TickResult{Plant: plant.Clone()}, nil
	}
	if err := model.Validate(plant); err != nil {
		return model.TickResult{}, err
	}
	if plant.Dead() {
		return model.TickResult{
			Plant:   plant.Clone(),
			Events:  []model.Event{wiltEvent(plant)},
			Removed: true,
		}, nil
	}

	order, err := model.DependencyOrder(plant)
	if err != nil {
		return model.TickResult{}, err
	}
	dice := in.Dice
	if dice == nil {
		dice = PartDice(in.Seed, in.Tick, plant.ID)
	}

	decided := make([]decision, 0, len(order))
	for _, idx := range order {
		d, ok, err := decidePart(plant, idx, in.Chunk, in.Tuning, dice)
		if err != nil {
			return model.TickResult{}, err
		}
		if ok {
			decided = append(decided, d)
		}
	}

	next := plant.Clone()
	res := model.TickResult{}
	for _, d := range decided {
		part := next.Properties.Parts[d.idx]
		next.Properties.Parts[d.idx] = d.out.Part
		key := model.EventGrow
		if d.out.Kind == model.KindDrop {
			key = model.EventDrop
		}
		res.Events = append(res.Events, model.Event{Key: key, Params: map[string]string{
			"part":   part.Name,
			"target": plant.Name,
		}})
		res.Dropped = append(res.Dropped, d.out.Dropped...)
	}
	res.Plant = next
	res.Env = Feedback(next, in.Tuning)

	if next.Dead() {
		res.Removed = true
		res.Env = model.EnvUpdates{}
		res.Events = append(res.Events, wiltEvent(next))
	}
	return res, nil
}

func decidePart(snapshot model.Plant, idx int, chunk model.Chunk, t tuning.Tuning, dice DiceFunc) (decision, bool, error) {
	part := snapshot.Properties.Parts[idx]
	sr := suitability.ForPart(chunk, snapshot.Properties, idx, t)

	canGrow, err := parts.CanGrow(snapshot, idx, t)
	if err != nil {
		return decision{}, false, err
	}
	rates, err := schedule.RatesFor(part, sr.Multiplier, schedule.Modifiers{Wind: chunk.WindLevel, GrowthBlocked: !canGrow}, t)
	if err != nil {
		return decision{}, false, withPlant(err, snapshot.ID)
	}

	src := dice(part.Name)
	if src == nil {
		return decision{}, false, fmt.Errorf("no random source for part %q", part.Name)
	}
	kind := schedule.Decide(src.Float64(), rates)
	if kind == model.KindNone {
		return decision{}, false, nil
	}
	out, err := parts.Apply(snapshot, idx, kind, src, t)
	if err != nil {
		return decision{}, false, err
	}
	if out.Kind == model.KindNone {
		return decision{}, false, nil
	}
	return decision{idx: idx, out: out}, true, nil
}

// Feedback is the plant's standing contribution to its chunk given current quantities:
// shade from light-blocking parts past the canopy threshold (negative light) and vegetation
// density from overall foliage. Callers overlay it on the chunk's base environment.
func Feedback(p model.Plant, t tuning.Tuning) model.EnvUpdates {
	var env model.EnvUpdates
	var qty, capacity int
	for _, part := range p.Properties.Parts {
		if part.MaxQty <= 0 {
			continue
		}
		qty += part.Qty
		capacity += part.MaxQty
		if part.Category.BlocksLight() && part.Fraction() >= t.Canopy.Threshold {
			env.LightLevelDelta -= t.Canopy.LightBlock * part.Fraction()
		}
	}
	if capacity > 0 {
		env.VegetationDensityDelta = p.Properties.VegetationContribution * t.Canopy.VegetationScale * float64(qty) / float64(capacity)
	}
	return env
}

func wiltEvent(p model.Plant) model.Event {
	return model.Event{Key: model.EventWilt, Params: map[string]string{
		"plant":   p.Name,
		"plantId": p.ID,
	}}
}

func withPlant(err error, plantID string) error {
	if de, ok := err.(*model.DataError); ok && de.Plant == "" {
		cp := *de
		cp.Plant = plantID
		return &cp
	}
	return err
}
