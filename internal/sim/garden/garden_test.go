package garden

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"floracraft.ai/internal/persistence/snapshot"
	"floracraft.ai/internal/protocol"
	"floracraft.ai/internal/sim/catalogs"
	"floracraft.ai/internal/sim/flora/model"
	"floracraft.ai/internal/sim/tuning"
)

func testLayout(seed string) Layout {
	return Layout{
		Seed: seed,
		Chunks: []ChunkLayout{
			{CX: 0, CZ: 0, Env: EnvLayout{Moisture: 0.55, LightLevel: 0.75, Temperature: 18, WindLevel: 0.3, VegetationDensity: 0.3},
				Plants: []Planting{{Species: "wild_rose", Count: 2}, {Species: "potato", Count: 1}}},
			{CX: 1, CZ: -1, Env: EnvLayout{Moisture: 0.3, LightLevel: 0.9, Temperature: 26, WindLevel: 0.8, VegetationDensity: 0.1},
				Plants: []Planting{{Species: "wheat", Count: 3}, {Species: "apple_tree", Count: 1}}},
		},
	}
}

func newTestGarden(t *testing.T, seed string) *Garden {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	g, err := New(Config{ID: "TEST", Seed: seed, Tuning: tuning.Defaults()}, cats, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := g.Plant(testLayout(seed)); err != nil {
		t.Fatalf("Plant: %v", err)
	}
	return g
}

func firstPlant(t *testing.T, g *Garden, species string) model.Plant {
	t.Helper()
	for _, k := range g.keys {
		for _, p := range g.chunks[k].plants {
			if p.Species == species {
				return p
			}
		}
	}
	t.Fatalf("no %s planted", species)
	return model.Plant{}
}

func TestPlant_DeterministicIDs(t *testing.T) {
	a := newTestGarden(t, "seed-1")
	b := newTestGarden(t, "seed-1")
	c := newTestGarden(t, "seed-2")

	pa := a.ExportSnapshot()
	pb := b.ExportSnapshot()
	pc := c.ExportSnapshot()
	idA := pa.Chunks[0].Plants[0].ID
	if idA != pb.Chunks[0].Plants[0].ID {
		t.Fatalf("same seed gave different ids")
	}
	if idA == pc.Chunks[0].Plants[0].ID {
		t.Fatalf("different seeds gave the same id %s", idA)
	}
	if len(idA) != 36 {
		t.Fatalf("expected a uuid, got %q", idA)
	}
}

func TestPlant_UnknownSpeciesSuggests(t *testing.T) {
	g := newTestGarden(t, "s")
	_, err := g.Spawn(ChunkKey{CX: 0, CZ: 0}, "wild_rse")
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); got != `garden: unknown species "wild_rse" (did you mean "wild_rose"?)` {
		t.Fatalf("error: got %q", got)
	}
	if _, err := g.Spawn(ChunkKey{CX: 9, CZ: 9}, "wheat"); err == nil {
		t.Fatalf("expected error for unknown chunk")
	}
}

func TestStepOnce_DeterministicAcrossGardens(t *testing.T) {
	a := newTestGarden(t, "meadow")
	b := newTestGarden(t, "meadow")
	for i := 0; i < 300; i++ {
		ta, da, err := a.StepOnce(nil)
		if err != nil {
			t.Fatalf("step a: %v", err)
		}
		tb, db, err := b.StepOnce(nil)
		if err != nil {
			t.Fatalf("step b: %v", err)
		}
		if ta != uint64(i) || tb != ta {
			t.Fatalf("tick: got %d/%d want %d", ta, tb, i)
		}
		if da != db {
			t.Fatalf("tick %d: digests diverged", i)
		}
	}
	if a.CurrentTick() != 300 {
		t.Fatalf("current tick: got %d", a.CurrentTick())
	}
}

func TestStepOnce_BoundsHoldAndGroundCollects(t *testing.T) {
	g := newTestGarden(t, "windy")
	dropped := 0
	for i := 0; i < 500; i++ {
		entry, _, err := g.step(nil)
		if err != nil {
			t.Fatalf("step: %v", err)
		}
		dropped += len(entry.Dropped)
		for _, k := range g.keys {
			for _, p := range g.chunks[k].plants {
				for _, part := range p.Properties.Parts {
					if part.Qty < 0 || part.Qty > part.MaxQty {
						t.Fatalf("tick %d: %s/%s out of bounds %d/%d", entry.Tick, p.ID, part.Name, part.Qty, part.MaxQty)
					}
				}
			}
		}
	}
	total := 0
	for _, k := range g.keys {
		for _, n := range g.chunks[k].ground {
			total += n
		}
	}
	if dropped > 0 && total == 0 {
		t.Fatalf("drops were logged but nothing reached the ground")
	}
}

func TestStep_CanopyOverlayShadesChunk(t *testing.T) {
	g := newTestGarden(t, "shade")
	key := ChunkKey{CX: 0, CZ: 0}
	c := g.chunks[key]
	for i := range c.plants {
		for j := range c.plants[i].Properties.Parts {
			part := &c.plants[i].Properties.Parts[j]
			if part.Category == model.CategoryLeaf {
				part.Qty = part.MaxQty
			}
		}
	}
	if _, _, err := g.step(nil); err != nil {
		t.Fatalf("step: %v", err)
	}
	if c.overlay.LightLevelDelta >= 0 {
		t.Fatalf("overlay light delta %v, want negative", c.overlay.LightLevelDelta)
	}
	if eff := c.effective(model.SeasonSpring); eff.LightLevel >= c.base.LightLevel {
		t.Fatalf("effective light %v not below base %v", eff.LightLevel, c.base.LightLevel)
	}
}

func TestSnapshot_ResumeMatchesLiveRun(t *testing.T) {
	live := newTestGarden(t, "resume")
	for i := 0; i < 120; i++ {
		if _, _, err := live.StepOnce(nil); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	snap := live.ExportSnapshot()
	if snap.Header.Tick != 120 {
		t.Fatalf("snapshot tick: got %d", snap.Header.Tick)
	}

	resumed := newTestGarden(t, "other-seed")
	if err := resumed.ImportSnapshot(snap); err != nil {
		t.Fatalf("ImportSnapshot: %v", err)
	}
	for i := 0; i < 120; i++ {
		tl, dl, err := live.StepOnce(nil)
		if err != nil {
			t.Fatalf("live step: %v", err)
		}
		tr, dr, err := resumed.StepOnce(nil)
		if err != nil {
			t.Fatalf("resumed step: %v", err)
		}
		if tl != tr || dl != dr {
			t.Fatalf("tick %d: resumed run diverged", tl)
		}
	}
}

func TestStep_Harvest(t *testing.T) {
	g := newTestGarden(t, "harvest")
	rose := firstPlant(t, g, "wild_rose")
	potato := firstPlant(t, g, "potato")

	reqs := []HarvestRequest{
		{PlantID: rose.ID, Part: "stem"},
		{PlantID: potato.ID, Part: "tubers"},
		{PlantID: "missing", Part: "leaves"},
		{PlantID: rose.ID, Part: "stems"},
	}
	entry, outs, err := g.step(reqs)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(outs) != 4 || len(entry.Harvests) != 4 {
		t.Fatalf("outcomes: got %d records %d", len(outs), len(entry.Harvests))
	}
	if outs[0].Code != "" || outs[0].Result.StaminaCost != 2 || len(outs[0].Result.Items) == 0 {
		t.Fatalf("stem harvest: got %+v", outs[0])
	}
	if outs[1].Code != protocol.ErrHiddenPart {
		t.Fatalf("tubers: got %q", outs[1].Code)
	}
	if outs[2].Code != protocol.ErrNotFound {
		t.Fatalf("missing plant: got %q", outs[2].Code)
	}
	if outs[3].Code != protocol.ErrUnknownPart {
		t.Fatalf("misspelled part: got %q", outs[3].Code)
	}

	found := false
	for _, ev := range entry.Events {
		if ev.Key == model.EventHarvest && ev.PlantID == rose.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing harvestEvent in %+v", entry.Events)
	}
}

func TestInspectPlant(t *testing.T) {
	g := newTestGarden(t, "inspect")
	rose := firstPlant(t, g, "wild_rose")
	msg, ok := g.inspectPlant(rose.ID)
	if !ok {
		t.Fatalf("plant not found")
	}
	if msg.Type != protocol.TypePlant || msg.Plant.ID != rose.ID || len(msg.Parts) != len(rose.Properties.Parts) {
		t.Fatalf("inspect: got %+v", msg)
	}
	if msg.Overall.Multiplier <= 0 {
		t.Fatalf("overall multiplier %v", msg.Overall.Multiplier)
	}
	for _, row := range msg.Parts {
		if row.NextEventTick != nil && *row.NextEventTick <= msg.Tick {
			t.Fatalf("part %s: next event %d not after %d", row.Name, *row.NextEventTick, msg.Tick)
		}
	}
	if _, ok := g.inspectPlant("nope"); ok {
		t.Fatalf("unknown plant reported found")
	}
}

func TestObserver_ReceivesFilteredTicks(t *testing.T) {
	g := newTestGarden(t, "observe")
	out := make(chan []byte, 4)
	g.handleObserverJoin(ObserverJoinRequest{SessionID: "O1", TickOut: out, Chunks: [][2]int{{1, -1}}, Events: true})

	if _, _, err := g.StepOnce(nil); err != nil {
		t.Fatalf("step: %v", err)
	}
	var msg protocol.TickMsg
	select {
	case b := <-out:
		if err := json.Unmarshal(b, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
	default:
		t.Fatalf("no tick delivered")
	}
	if msg.Type != protocol.TypeTick || msg.Tick != 0 || msg.Digest == "" {
		t.Fatalf("tick msg: got %+v", msg)
	}
	if len(msg.Chunks) != 1 || msg.Chunks[0].CX != 1 || msg.Chunks[0].CZ != -1 {
		t.Fatalf("filter not applied: %+v", msg.Chunks)
	}

	g.handleObserverLeave("O1")
	if _, ok := <-out; ok {
		t.Fatalf("expected channel closed after leave")
	}
}

func TestRun_ServesRequestsUntilCanceled(t *testing.T) {
	g := newTestGarden(t, "run")
	g.cfg.Tuning.TickRateHz = 50
	rose := firstPlant(t, g, "wild_rose")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer reqCancel()

	boot, err := g.Bootstrap(reqCtx)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if boot.GardenID != "TEST" || len(boot.Chunks) != 2 || len(boot.Catalogs.Species) == 0 {
		t.Fatalf("bootstrap: got %+v", boot)
	}

	if _, ok, err := g.Inspect(reqCtx, rose.ID); err != nil || !ok {
		t.Fatalf("Inspect: ok=%v err=%v", ok, err)
	}

	out, err := g.Harvest(reqCtx, HarvestRequest{PlantID: rose.ID, Part: "stem"})
	if err != nil {
		t.Fatalf("Harvest: %v", err)
	}
	if out.Code != "" {
		t.Fatalf("harvest code: %q (%v)", out.Code, out.Err)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop")
	}
}

func TestRun_RequestSnapshot(t *testing.T) {
	run := func(g *Garden) func() {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() { _ = g.Run(ctx); close(done) }()
		return func() { cancel(); <-done }
	}
	reqCtx, reqCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer reqCancel()

	bare := newTestGarden(t, "snap")
	stop := run(bare)
	if _, err := bare.RequestSnapshot(reqCtx); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("without sink: got %v", err)
	}
	stop()

	g := newTestGarden(t, "snap")
	sink := make(chan snapshot.SnapshotV1, 1)
	g.SetSnapshotSink(sink)
	stop = run(g)
	defer stop()

	tick, err := g.RequestSnapshot(reqCtx)
	if err != nil {
		t.Fatalf("RequestSnapshot: %v", err)
	}
	select {
	case snap := <-sink:
		if snap.Header.Tick != tick || snap.Header.GardenID != "TEST" || len(snap.Chunks) != 2 {
			t.Fatalf("snapshot: got header %+v chunks=%d want tick %d", snap.Header, len(snap.Chunks), tick)
		}
	default:
		t.Fatalf("sink empty")
	}
}

func corruptFirst(t *testing.T, g *Garden, species string) {
	t.Helper()
	for _, k := range g.keys {
		ps := g.chunks[k].plants
		for i := range ps {
			if ps[i].Species == species {
				ps[i].Properties.Parts[0].GrowProb = math.NaN()
				return
			}
		}
	}
	t.Fatalf("no %s planted", species)
}

func TestStep_FailedTickRollsBackHarvests(t *testing.T) {
	g := newTestGarden(t, "rollback")
	rose := firstPlant(t, g, "wild_rose").Clone()
	corruptFirst(t, g, "wheat")

	entry, outs, err := g.step([]HarvestRequest{{PlantID: rose.ID, Part: "stem"}})
	var de *model.DataError
	if !errors.As(err, &de) || de.Code != model.ErrNonFinite {
		t.Fatalf("step: got %v", err)
	}
	if entry.Tick != 0 || g.CurrentTick() != 0 {
		t.Fatalf("tick advanced: entry=%d current=%d", entry.Tick, g.CurrentTick())
	}
	if len(outs) != 1 || outs[0].Code != protocol.ErrInternal || outs[0].Err == nil {
		t.Fatalf("outcome: got %+v", outs)
	}
	if after := firstPlant(t, g, "wild_rose"); !reflect.DeepEqual(after, rose) {
		t.Fatalf("harvest survived a failed tick:\n got %+v\nwant %+v", after.Properties.Parts, rose.Properties.Parts)
	}

	if _, _, err := g.StepOnce(nil); err == nil {
		t.Fatalf("StepOnce: expected the corrupt plant to fail again")
	}
}

func TestRun_FailedTickAnswersPendingHarvests(t *testing.T) {
	g := newTestGarden(t, "halt")
	g.cfg.Tuning.TickRateHz = 50
	rose := firstPlant(t, g, "wild_rose")
	corruptFirst(t, g, "wheat")

	// Queued before Run starts so the first tick carries it.
	reply := make(chan HarvestOutcome, 1)
	g.harvest <- harvestReq{req: HarvestRequest{PlantID: rose.ID, Part: "stem"}, reply: reply}

	done := make(chan error, 1)
	go func() { done <- g.Run(context.Background()) }()

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer reqCancel()

	select {
	case out := <-reply:
		if out.Code != protocol.ErrInternal {
			t.Fatalf("harvest code: got %q (%v)", out.Code, out.Err)
		}
	case <-reqCtx.Done():
		t.Fatalf("pending harvest never answered")
	}

	select {
	case err := <-done:
		var de *model.DataError
		if !errors.As(err, &de) || de.Code != model.ErrNonFinite {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop")
	}

	if _, err := g.Harvest(reqCtx, HarvestRequest{PlantID: rose.ID, Part: "stem"}); !errors.Is(err, ErrHalted) {
		t.Fatalf("Harvest after halt: got %v", err)
	}
	if _, err := g.Bootstrap(reqCtx); !errors.Is(err, ErrHalted) {
		t.Fatalf("Bootstrap after halt: got %v", err)
	}
}
