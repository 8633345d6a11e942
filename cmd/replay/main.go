package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	persistlog "floracraft.ai/internal/persistence/log"
	"floracraft.ai/internal/persistence/snapshot"
	"floracraft.ai/internal/sim/catalogs"
	"floracraft.ai/internal/sim/garden"
)

func main() {
	var (
		snapPath  = flag.String("snapshot", "", "path to .snap.zst")
		ticksDir  = flag.String("ticks", "", "ticks dir containing ticks-*.jsonl.zst (default: <garden dir>/ticks next to the snapshot)")
		configDir = flag.String("configs", "./configs", "config directory")
		fromTick  = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick    = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	plants := 0
	for _, c := range snap.Chunks {
		plants += len(c.Plants)
	}
	fmt.Printf("snapshot v%d garden=%s tick=%d seed=%q chunks=%d plants=%d\n",
		snap.Header.Version, snap.Header.GardenID, snap.Header.Tick, snap.Seed, len(snap.Chunks), plants)

	dir := *ticksDir
	if dir == "" {
		// <garden dir>/snapshots/<tick>.snap.zst
		dir = persistlog.TicksDir(filepath.Dir(filepath.Dir(*snapPath)))
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}

	g, err := restore(snap, cats)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	files, err := persistlog.ListTickFiles(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list ticks:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no tick files found in", dir)
		os.Exit(1)
	}

	checked, err := verify(g, files, *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d ticks (from snapshot tick=%d)\n", checked, snap.Header.Tick)
}

// restore builds a detached garden (no loggers, no loop) from a snapshot.
func restore(snap snapshot.SnapshotV1, cats *catalogs.Catalogs) (*garden.Garden, error) {
	g, err := garden.New(garden.Config{
		ID:     snap.Header.GardenID,
		Seed:   snap.Seed,
		Tuning: snap.Tuning,
	}, cats, log.New(io.Discard, "", 0))
	if err != nil {
		return nil, fmt.Errorf("garden: %w", err)
	}
	if err := g.ImportSnapshot(snap); err != nil {
		return nil, fmt.Errorf("import snapshot: %w", err)
	}
	return g, nil
}

var errStop = errors.New("stop")

// verify re-steps the garden through the logged ticks, feeding each tick its recorded
// harvests, and compares digests from verifyFrom on. Entries before the garden's current tick
// are skipped. toTick of 0 means no upper bound.
func verify(g *garden.Garden, files []string, verifyFrom, toTick uint64) (uint64, error) {
	startTick := g.CurrentTick()
	if verifyFrom == 0 {
		verifyFrom = startTick
	}

	var checked uint64
	for _, path := range files {
		err := persistlog.ReadTicks(path, func(entry garden.TickLogEntry) error {
			if entry.Tick < startTick {
				return nil
			}
			if toTick != 0 && entry.Tick > toTick {
				return errStop
			}
			if entry.Tick != g.CurrentTick() {
				return fmt.Errorf("tick mismatch: want=%d got=%d (file=%s)", g.CurrentTick(), entry.Tick, filepath.Base(path))
			}

			harvests := make([]garden.HarvestRequest, 0, len(entry.Harvests))
			for _, h := range entry.Harvests {
				harvests = append(harvests, garden.HarvestRequest{PlantID: h.PlantID, Part: h.Part, Special: h.Special})
			}

			tick, gotDigest, err := g.StepOnce(harvests)
			if err != nil {
				return fmt.Errorf("step tick %d: %w", entry.Tick, err)
			}
			if tick != entry.Tick {
				return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d (file=%s)", tick, entry.Tick, filepath.Base(path))
			}
			if tick >= verifyFrom {
				checked++
				if gotDigest != entry.Digest {
					return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, gotDigest, entry.Digest)
				}
			}
			return nil
		})
		if errors.Is(err, errStop) {
			break
		}
		if err != nil {
			return checked, err
		}
	}
	return checked, nil
}
