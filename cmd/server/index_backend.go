package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"floracraft.ai/internal/persistence/indexdb"
	"floracraft.ai/internal/sim/garden"
)

// openRuntimeIndex opens the optional read-model index. It never affects sim determinism.
func openRuntimeIndex(gardenDir string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("FC_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(gardenDir, "index", "garden.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported FC_INDEX_BACKEND: %s", backend)
	}
}

// tickIndex avoids handing the tick fan-out a typed nil.
func tickIndex(idx *indexdb.SQLiteIndex) garden.TickLogger {
	if idx == nil {
		return nil
	}
	return idx
}
