package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"floracraft.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "info":
			infoCmd(os.Args[2:])
			return
		case "plants":
			plantsCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "metrics":
			metricsCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	gardenID := fs.String("garden", "", "garden id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "gardens")
	if *gardenID != "" {
		base = filepath.Join(base, *gardenID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// resolveSnapshot picks -snapshot, or the latest snapshot of -garden.
func resolveSnapshot(dataDir, gardenID, snapPath string) string {
	if p := strings.TrimSpace(snapPath); p != "" {
		return p
	}
	if strings.TrimSpace(gardenID) == "" {
		fmt.Fprintln(os.Stderr, "missing -garden or -snapshot")
		os.Exit(2)
	}
	p, _, err := snapshot.Latest(filepath.Join(dataDir, "gardens", gardenID))
	if err != nil {
		fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run server until it writes one")
		os.Exit(2)
	}
	return p
}

func infoCmd(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	gardenID := fs.String("garden", "", "garden id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	headerOnly := fs.Bool("header", false, "read only the header line")
	_ = fs.Parse(args)

	path := resolveSnapshot(*dataDir, *gardenID, *snapPath)
	if *headerOnly {
		h, err := snapshot.ReadHeader(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read header:", err)
			os.Exit(1)
		}
		printJSON(h)
		return
	}

	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	printJSON(summarize(path, snap))
}

type snapshotSummary struct {
	Path         string         `json:"path"`
	GardenID     string         `json:"garden_id"`
	Tick         uint64         `json:"tick"`
	Seed         string         `json:"seed"`
	PlantsDigest string         `json:"plants_digest"`
	ItemsDigest  string         `json:"items_digest"`
	Chunks       int            `json:"chunks"`
	Plants       int            `json:"plants"`
	Species      map[string]int `json:"species"`
	Ground       map[string]int `json:"ground,omitempty"`
}

func summarize(path string, snap snapshot.SnapshotV1) snapshotSummary {
	s := snapshotSummary{
		Path:         path,
		GardenID:     snap.Header.GardenID,
		Tick:         snap.Header.Tick,
		Seed:         snap.Seed,
		PlantsDigest: snap.PlantsDigest,
		ItemsDigest:  snap.ItemsDigest,
		Chunks:       len(snap.Chunks),
		Species:      map[string]int{},
	}
	for _, c := range snap.Chunks {
		s.Plants += len(c.Plants)
		for _, p := range c.Plants {
			s.Species[p.Species]++
		}
		for item, n := range c.Ground {
			if s.Ground == nil {
				s.Ground = map[string]int{}
			}
			s.Ground[item] += n
		}
	}
	return s
}

type plantRow struct {
	CX      int            `json:"cx"`
	CZ      int            `json:"cz"`
	ID      string         `json:"id"`
	Species string         `json:"species"`
	Parts   map[string]int `json:"parts"`
}

func plantsCmd(args []string) {
	fs := flag.NewFlagSet("plants", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	gardenID := fs.String("garden", "", "garden id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	species := fs.String("species", "", "species filter (optional)")
	_ = fs.Parse(args)

	snap, err := snapshot.ReadSnapshot(resolveSnapshot(*dataDir, *gardenID, *snapPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	for _, r := range plantRows(snap, *species) {
		printJSON(r)
	}
}

func plantRows(snap snapshot.SnapshotV1, species string) []plantRow {
	var out []plantRow
	for _, c := range snap.Chunks {
		for _, p := range c.Plants {
			if species != "" && p.Species != species {
				continue
			}
			r := plantRow{CX: c.CX, CZ: c.CZ, ID: p.ID, Species: p.Species, Parts: map[string]int{}}
			for _, part := range p.Properties.Parts {
				r.Parts[part.Name] = part.Qty
			}
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CX != out[j].CX {
			return out[i].CX < out[j].CX
		}
		return out[i].CZ < out[j].CZ
	})
	return out
}
