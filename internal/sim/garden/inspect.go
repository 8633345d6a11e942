package garden

import (
	"floracraft.ai/internal/protocol"
	"floracraft.ai/internal/sim/flora/model"
	"floracraft.ai/internal/sim/flora/parts"
	"floracraft.ai/internal/sim/flora/schedule"
	"floracraft.ai/internal/sim/flora/suitability"
)

func (g *Garden) season() model.Season {
	return model.SeasonAt(g.tick.Load(), g.cfg.Tuning.SeasonLengthTicks)
}

func plantState(p model.Plant) protocol.PlantState {
	ps := protocol.PlantState{ID: p.ID, Species: p.Species, Name: p.Name, Parts: make([]protocol.PartState, 0, len(p.Properties.Parts))}
	for _, part := range p.Properties.Parts {
		ps.Parts = append(ps.Parts, protocol.PartState{Name: part.Name, Category: part.Category, Qty: part.Qty, MaxQty: part.MaxQty})
	}
	return ps
}

// inspectPlant builds the inspection panel for one plant against the environment the next
// tick will see. Next events come from the scheduler, so they are a forecast under current
// conditions rather than a promise.
func (g *Garden) inspectPlant(plantID string) (protocol.PlantMsg, bool) {
	c, idx := g.findPlant(plantID)
	if c == nil {
		return protocol.PlantMsg{}, false
	}
	p := c.plants[idx]
	t := g.cfg.Tuning
	tick := g.tick.Load()
	env := c.effective(g.season())

	overall := suitability.ForPart(env, p.Properties, -1, t)
	msg := protocol.PlantMsg{
		Type:            protocol.TypePlant,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		CX:              c.key.CX,
		CZ:              c.key.CZ,
		Plant:           plantState(p),
		Overall:         protocol.PartInspection{Multiplier: overall.Multiplier, State: string(overall.State)},
	}

	harvestable := map[int]bool{}
	for _, i := range parts.Harvestable(p) {
		harvestable[i] = true
	}
	for i, part := range p.Properties.Parts {
		sr := suitability.ForPart(env, p.Properties, i, t)
		row := protocol.PartInspection{
			Name:        part.Name,
			Multiplier:  sr.Multiplier,
			State:       string(sr.State),
			Mature:      parts.Mature(part, t),
			Harvestable: harvestable[i],
		}
		canGrow, err := parts.CanGrow(p, i, t)
		if err != nil {
			g.log.Printf("inspect %s/%s: %v", p.ID, part.Name, err)
			msg.Parts = append(msg.Parts, row)
			continue
		}
		next, ok, err := schedule.NextEvent(part, sr.Multiplier, tick, g.cfg.Seed+":"+p.ID, t,
			schedule.Modifiers{Wind: env.WindLevel, GrowthBlocked: !canGrow})
		if err != nil {
			g.log.Printf("inspect %s/%s: %v", p.ID, part.Name, err)
		} else if ok {
			at := next.Tick
			row.NextEventTick = &at
			row.NextEventKind = next.Kind
		}
		msg.Parts = append(msg.Parts, row)
	}
	return msg, true
}
