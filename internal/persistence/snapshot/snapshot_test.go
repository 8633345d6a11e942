package snapshot

import (
	"path/filepath"
	"testing"

	"floracraft.ai/internal/sim/flora/model"
	"floracraft.ai/internal/sim/tuning"
)

func sample(tick uint64) SnapshotV1 {
	return SnapshotV1{
		Header: Header{Version: Version, GardenID: "g1", Tick: tick},
		Seed:   "meadow",
		Tuning: tuning.Defaults(),
		Chunks: []ChunkV1{{
			CX: 1, CZ: -2,
			Base:    model.Chunk{Moisture: 0.5, LightLevel: 0.7, Temperature: 18},
			Overlay: model.EnvUpdates{LightLevelDelta: -0.15},
			Plants: []model.Plant{{
				ID: "p1", Name: "Wild Rose", Species: "wild_rose",
				Properties: model.Properties{
					Prefs: model.Prefs{Water: model.F(0.4)},
					Parts: []model.Part{{Name: "leaves", Category: model.CategoryLeaf, MaxQty: 5, Qty: 3, GrowProb: 0.1}},
				},
			}},
			Ground: map[string]int{"fallen_leaf": 2},
		}},
		Counters: CountersV1{NextPlant: 7},
	}
}

func TestWriteReadSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := Path(dir, 42)
	if err := WriteSnapshot(path, sample(42)); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.Tick != 42 || h.GardenID != "g1" {
		t.Fatalf("header: got %+v", h)
	}

	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if got.Seed != "meadow" || got.Counters.NextPlant != 7 || len(got.Chunks) != 1 {
		t.Fatalf("snapshot: got %+v", got)
	}
	c := got.Chunks[0]
	if c.CX != 1 || c.CZ != -2 || c.Ground["fallen_leaf"] != 2 || c.Overlay.LightLevelDelta != -0.15 {
		t.Fatalf("chunk: got %+v", c)
	}
	p := c.Plants[0]
	if p.Properties.Parts[0].Qty != 3 || p.Properties.Prefs.Water == nil || *p.Properties.Prefs.Water != 0.4 {
		t.Fatalf("plant: got %+v", p)
	}
	if got.Tuning.Suitability.SeasonFactor("WINTER") != 0.6 {
		t.Fatalf("tuning not restored: %+v", got.Tuning.Suitability.SeasonFactors)
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if p, _, err := Latest(dir); err != nil || p != "" {
		t.Fatalf("empty dir: got %q, %v", p, err)
	}
	for _, tick := range []uint64{30, 3000, 300} {
		if err := WriteSnapshot(Path(dir, tick), sample(tick)); err != nil {
			t.Fatalf("WriteSnapshot: %v", err)
		}
	}
	p, tick, err := Latest(dir)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if tick != 3000 || filepath.Base(p) != "3000.snap.zst" {
		t.Fatalf("latest: got %s tick=%d", p, tick)
	}
}
