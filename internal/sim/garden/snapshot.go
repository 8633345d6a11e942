package garden

import (
	"fmt"

	"floracraft.ai/internal/persistence/snapshot"
	"floracraft.ai/internal/sim/flora/model"
)

// ExportSnapshot captures the garden between ticks. Header.Tick is the next tick to run.
func (g *Garden) ExportSnapshot() snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header:       snapshot.Header{Version: snapshot.Version, GardenID: g.cfg.ID, Tick: g.tick.Load()},
		Seed:         g.cfg.Seed,
		Tuning:       g.cfg.Tuning,
		PlantsDigest: g.cats.Plants.Digest,
		ItemsDigest:  g.cats.Items.DefsDigest,
		Counters:     snapshot.CountersV1{NextPlant: g.nextPlant.Load()},
	}
	for _, key := range g.keys {
		c := g.chunks[key]
		cv := snapshot.ChunkV1{
			CX:      key.CX,
			CZ:      key.CZ,
			Base:    c.base,
			Overlay: c.overlay,
			Plants:  make([]model.Plant, 0, len(c.plants)),
		}
		for _, p := range c.plants {
			cv.Plants = append(cv.Plants, p.Clone())
		}
		if len(c.ground) > 0 {
			cv.Ground = make(map[string]int, len(c.ground))
			for item, n := range c.ground {
				cv.Ground[item] = n
			}
		}
		snap.Chunks = append(snap.Chunks, cv)
	}
	return snap
}

// ImportSnapshot replaces garden state with a snapshot. The garden's own seed and tuning are
// replaced too, since replays must run with the captured values.
func (g *Garden) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != snapshot.Version {
		return fmt.Errorf("garden: unsupported snapshot version %d", snap.Header.Version)
	}
	if err := snap.Tuning.Validate(); err != nil {
		return fmt.Errorf("garden: snapshot tuning: %w", err)
	}
	if snap.PlantsDigest != "" && snap.PlantsDigest != g.cats.Plants.Digest {
		g.log.Printf("snapshot plants digest %s differs from loaded catalog %s", snap.PlantsDigest, g.cats.Plants.Digest)
	}
	for _, cv := range snap.Chunks {
		for _, p := range cv.Plants {
			if err := model.Validate(p); err != nil {
				return fmt.Errorf("garden: snapshot chunk %d,%d: %w", cv.CX, cv.CZ, err)
			}
		}
	}

	g.cfg.ID = snap.Header.GardenID
	g.cfg.Seed = snap.Seed
	g.cfg.Tuning = snap.Tuning
	g.chunks = map[ChunkKey]*chunkState{}
	g.keys = nil
	for _, cv := range snap.Chunks {
		c := g.ensureChunk(ChunkKey{CX: cv.CX, CZ: cv.CZ}, cv.Base)
		c.overlay = cv.Overlay
		c.plants = make([]model.Plant, 0, len(cv.Plants))
		for _, p := range cv.Plants {
			c.plants = append(c.plants, p.Clone())
		}
		for item, n := range cv.Ground {
			c.ground[item] = n
		}
	}
	var plants int64
	for _, cv := range snap.Chunks {
		plants += int64(len(cv.Plants))
	}
	g.plantCount.Store(plants)
	g.tick.Store(snap.Header.Tick)
	g.nextPlant.Store(snap.Counters.NextPlant)
	return nil
}
