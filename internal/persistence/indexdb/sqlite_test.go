package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	"floracraft.ai/internal/persistence/snapshot"
	"floracraft.ai/internal/protocol"
	"floracraft.ai/internal/sim/catalogs"
	"floracraft.ai/internal/sim/flora/model"
	"floracraft.ai/internal/sim/garden"
	"floracraft.ai/internal/sim/tuning"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: garden.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(garden.TickLogEntry{Tick: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropTickTotal != 1 {
		t.Fatalf("DropTickTotal=%d want=1", st.DropTickTotal)
	}
	if st.DropSnapshotTotal != 1 {
		t.Fatalf("DropSnapshotTotal=%d want=1", st.DropSnapshotTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_WritesTickRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.sqlite")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	entry := garden.TickLogEntry{
		GardenID: "G",
		Tick:     42,
		Season:   model.SeasonAutumn,
		Harvests: []protocol.HarvestRecord{
			{PlantID: "p1", Part: "leaves"},
			{PlantID: "p2", Part: "tubers", Code: protocol.ErrHiddenPart},
		},
		Events: []protocol.EventRecord{
			{CX: 1, CZ: 2, PlantID: "p1", Key: model.EventDrop, Params: map[string]string{"part": "leaves", "target": "Wild Rose"}},
		},
		Dropped: []model.DroppedItem{
			{Item: "fallen_leaf", Quantity: 1, PlantID: "p1", Part: "leaves"},
			{Item: "petal", Quantity: 2, PlantID: "p1", Part: "flowers"},
		},
		Removed: []string{"p3"},
		Digest:  "abc",
	}
	if err := idx.WriteTick(entry); err != nil {
		t.Fatalf("WriteTick: %v", err)
	}
	idx.RecordSnapshot("/g/snapshots/43.snap.zst", snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, GardenID: "G", Tick: 43},
		Seed:   "s",
		Chunks: []snapshot.ChunkV1{{Plants: []model.Plant{{ID: "a"}, {ID: "b"}}}, {}},
	})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var (
		season, digest                   string
		events, drops, harvests, removed int
	)
	if err := db.QueryRow(`SELECT season,digest,events,drops,harvests,removed FROM ticks WHERE tick=42`).
		Scan(&season, &digest, &events, &drops, &harvests, &removed); err != nil {
		t.Fatalf("ticks: %v", err)
	}
	if season != "AUTUMN" || digest != "abc" || events != 1 || drops != 2 || harvests != 2 || removed != 1 {
		t.Fatalf("tick row: %s %s %d %d %d %d", season, digest, events, drops, harvests, removed)
	}

	var petals int
	if err := db.QueryRow(`SELECT SUM(quantity) FROM drops WHERE item='petal'`).Scan(&petals); err != nil {
		t.Fatalf("drops: %v", err)
	}
	if petals != 2 {
		t.Fatalf("petals: got %d", petals)
	}

	var code string
	if err := db.QueryRow(`SELECT code FROM harvests WHERE tick=42 AND seq=1`).Scan(&code); err != nil {
		t.Fatalf("harvests: %v", err)
	}
	if code != protocol.ErrHiddenPart {
		t.Fatalf("harvest code: got %q", code)
	}

	var part string
	if err := db.QueryRow(`SELECT part FROM events WHERE plant_id='p1'`).Scan(&part); err != nil {
		t.Fatalf("events: %v", err)
	}
	if part != "leaves" {
		t.Fatalf("event part: got %q", part)
	}

	var plants, chunks int
	if err := db.QueryRow(`SELECT chunks,plants FROM snapshots WHERE tick=43`).Scan(&chunks, &plants); err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if chunks != 2 || plants != 2 {
		t.Fatalf("snapshot row: chunks=%d plants=%d", chunks, plants)
	}
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.sqlite")
	configDir := filepath.Join("..", "..", "..", "configs")

	cats, err := catalogs.Load(configDir)
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.UpsertCatalogs(configDir, cats, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}
	_ = idx.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var digest string
	if err := db.QueryRow(`SELECT digest FROM catalogs WHERE name='plants'`).Scan(&digest); err != nil {
		t.Fatalf("plants row: %v", err)
	}
	if digest != cats.Plants.Digest {
		t.Fatalf("digest: got %s want %s", digest, cats.Plants.Digest)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM catalogs`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("catalog rows: got %d", n)
	}
}
