package garden

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"floracraft.ai/internal/protocol"
	"floracraft.ai/internal/sim/flora/model"
	"floracraft.ai/internal/sim/flora/parts"
	flora "floracraft.ai/internal/sim/flora/runtime"
)

type TickLogEntry struct {
	GardenID string                   `json:"garden_id"`
	Tick     uint64                   `json:"tick"`
	Season   model.Season             `json:"season"`
	Harvests []protocol.HarvestRecord `json:"harvests,omitempty"`
	Events   []protocol.EventRecord   `json:"events,omitempty"`
	Dropped  []model.DroppedItem      `json:"dropped,omitempty"`
	Removed  []string                 `json:"removed,omitempty"`
	Digest   string                   `json:"digest"`
}

// HarvestRequest is applied at the start of the tick it is queued into.
type HarvestRequest struct {
	PlantID string
	Part    string
	Special bool
}

type HarvestOutcome struct {
	Tick   uint64
	Result flora.HarvestResult
	Code   string
	Err    error
}

// StepOnce advances the garden by a single tick with the given harvests applied first. It is
// what the server loop runs and what replays call directly.
func (g *Garden) StepOnce(harvests []HarvestRequest) (tick uint64, digest string, err error) {
	entry, _, err := g.step(harvests)
	if err != nil {
		return entry.Tick, "", err
	}
	g.publish(entry)
	return entry.Tick, entry.Digest, nil
}

func (g *Garden) step(harvests []HarvestRequest) (TickLogEntry, []HarvestOutcome, error) {
	start := time.Now()
	defer func() { g.stepNanos.Store(int64(time.Since(start))) }()

	nowTick := g.tick.Load()
	season := model.SeasonAt(nowTick, g.cfg.Tuning.SeasonLengthTicks)
	entry := TickLogEntry{GardenID: g.cfg.ID, Tick: nowTick, Season: season}

	// Harvests mutate plant slices before the tick runs; a failed tick puts them back.
	before := make(map[ChunkKey][]model.Plant, len(g.keys))
	for _, key := range g.keys {
		ps := make([]model.Plant, len(g.chunks[key].plants))
		for i, p := range g.chunks[key].plants {
			ps[i] = p.Clone()
		}
		before[key] = ps
	}

	outcomes := make([]HarvestOutcome, 0, len(harvests))
	for _, h := range harvests {
		out := g.applyHarvest(nowTick, h, &entry)
		entry.Harvests = append(entry.Harvests, protocol.HarvestRecord{PlantID: h.PlantID, Part: h.Part, Special: h.Special, Code: out.Code})
		outcomes = append(outcomes, out)
	}

	// Chunks are independent within a tick: each reads its own effective environment and
	// writes only its own result slot.
	results := make([][]model.TickResult, len(g.keys))
	var grp errgroup.Group
	grp.SetLimit(g.cfg.Workers)
	for i, key := range g.keys {
		i, c := i, g.chunks[key]
		env := c.effective(season)
		plants := c.plants
		grp.Go(func() error {
			out := make([]model.TickResult, len(plants))
			for j, p := range plants {
				res, err := flora.Tick(flora.TickInput{
					Plant:  p,
					Chunk:  env,
					Tuning: g.cfg.Tuning,
					Seed:   g.cfg.Seed,
					Tick:   nowTick,
				})
				if err != nil {
					return fmt.Errorf("chunk %s plant %s: %w", c.key, p.ID, err)
				}
				out[j] = res
			}
			results[i] = out
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		for key, ps := range before {
			g.chunks[key].plants = ps
		}
		for i := range outcomes {
			outcomes[i] = HarvestOutcome{Tick: nowTick, Code: protocol.ErrInternal, Err: err}
		}
		return entry, outcomes, err
	}

	for i, key := range g.keys {
		c := g.chunks[key]
		kept := c.plants[:0]
		var overlay model.EnvUpdates
		for _, res := range results[i] {
			for _, ev := range res.Events {
				entry.Events = append(entry.Events, protocol.EventRecord{CX: key.CX, CZ: key.CZ, PlantID: res.Plant.ID, Key: ev.Key, Params: ev.Params})
			}
			for _, d := range res.Dropped {
				c.ground[d.Item] += d.Quantity
				entry.Dropped = append(entry.Dropped, d)
			}
			if res.Removed {
				entry.Removed = append(entry.Removed, res.Plant.ID)
				continue
			}
			overlay = overlay.Add(res.Env)
			kept = append(kept, res.Plant)
		}
		c.plants = kept
		c.overlay = overlay
	}

	var plants int64
	for _, c := range g.chunks {
		plants += int64(len(c.plants))
	}
	g.plantCount.Store(plants)

	g.tick.Add(1)
	entry.Digest = g.stateDigest(nowTick)
	return entry, outcomes, nil
}

func (g *Garden) applyHarvest(nowTick uint64, h HarvestRequest, entry *TickLogEntry) HarvestOutcome {
	out := HarvestOutcome{Tick: nowTick}
	c, idx := g.findPlant(h.PlantID)
	if c == nil {
		out.Code = protocol.ErrNotFound
		out.Err = fmt.Errorf("plant %q not found", h.PlantID)
		return out
	}
	res, err := flora.Harvest(flora.HarvestInput{
		Plant:   c.plants[idx],
		Part:    h.Part,
		Special: h.Special,
		Seed:    g.cfg.Seed,
		Tick:    nowTick,
	})
	if err != nil {
		out.Code = HarvestCode(err)
		out.Err = err
		return out
	}
	out.Result = res
	for _, ev := range res.Events {
		entry.Events = append(entry.Events, protocol.EventRecord{CX: c.key.CX, CZ: c.key.CZ, PlantID: h.PlantID, Key: ev.Key, Params: ev.Params})
	}
	if res.Removed {
		c.plants = append(c.plants[:idx], c.plants[idx+1:]...)
		entry.Removed = append(entry.Removed, h.PlantID)
	} else {
		c.plants[idx] = res.Plant
	}
	return out
}

// HarvestCode maps a harvest error onto its wire code.
func HarvestCode(err error) string {
	var de *model.DataError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, parts.ErrHiddenPart):
		return protocol.ErrHiddenPart
	case errors.Is(err, parts.ErrEmptyPart):
		return protocol.ErrNothingToHarvest
	case errors.As(err, &de) && de.Code == model.ErrUnknownPart:
		return protocol.ErrUnknownPart
	case errors.As(err, &de):
		return protocol.ErrCorruptPlantData
	default:
		return protocol.ErrInternal
	}
}

// stateDigest hashes everything a replay must reproduce: tick, chunk environments and
// overlays, plants in order, and ground loot.
func (g *Garden) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte
	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(tmp[:], v)
		h.Write(tmp[:])
	}
	writeF64 := func(v float64) { writeU64(math.Float64bits(v)) }
	writeStr := func(s string) {
		writeU64(uint64(len(s)))
		h.Write([]byte(s))
	}

	writeStr(g.cfg.ID)
	writeU64(nowTick)
	writeU64(g.nextPlant.Load())
	for _, key := range g.keys {
		c := g.chunks[key]
		writeU64(uint64(int64(key.CX)))
		writeU64(uint64(int64(key.CZ)))
		writeF64(c.base.Moisture)
		writeF64(c.base.LightLevel)
		writeF64(c.base.Temperature)
		writeF64(c.base.WindLevel)
		writeF64(c.base.VegetationDensity)
		writeF64(c.overlay.LightLevelDelta)
		writeF64(c.overlay.VegetationDensityDelta)

		writeU64(uint64(len(c.plants)))
		for _, p := range c.plants {
			writeStr(p.ID)
			writeStr(p.Species)
			for _, part := range p.Properties.Parts {
				writeStr(part.Name)
				writeU64(uint64(part.Qty))
			}
		}

		items := make([]string, 0, len(c.ground))
		for item, n := range c.ground {
			if n != 0 {
				items = append(items, item)
			}
		}
		sort.Strings(items)
		for _, item := range items {
			writeStr(item)
			writeU64(uint64(c.ground[item]))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
