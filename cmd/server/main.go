package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	persistlog "floracraft.ai/internal/persistence/log"
	"floracraft.ai/internal/persistence/snapshot"
	"floracraft.ai/internal/sim/catalogs"
	"floracraft.ai/internal/sim/garden"
	"floracraft.ai/internal/sim/tuning"
	"floracraft.ai/internal/transport/api"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		gardenID   = flag.String("garden", "garden_1", "garden id")
		configDir  = flag.String("configs", "./configs", "config directory")
		layoutPath = flag.String("layout", "", "path to garden.yaml (default: <configs>/garden.yaml)")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		seed       = flag.String("seed", "", "garden seed for a fresh garden (default: layout seed)")
		workers    = flag.Int("workers", 4, "max chunks stepped in parallel")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite tick index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	gardenDir := filepath.Join(*dataDir, "gardens", *gardenID)
	_ = os.MkdirAll(gardenDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	lp := strings.TrimSpace(*layoutPath)
	if lp == "" {
		lp = filepath.Join(*configDir, "garden.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		if p, _, err := snapshot.Latest(gardenDir); err == nil {
			snapshotToLoad = p
		}
	}

	// Tuning is required for a fresh garden; a resume uses the snapshot's own tuning.
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" || !os.IsNotExist(tuneErr) {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	idx, err := openRuntimeIndex(gardenDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	gardenLog := log.New(os.Stdout, "[garden] ", log.LstdFlags|log.Lmicroseconds)
	g, err := garden.New(garden.Config{ID: *gardenID, Seed: *seed, Tuning: tune, Workers: *workers}, cats, gardenLog)
	if err != nil {
		logger.Fatalf("garden: %v", err)
	}

	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.GardenID != "" && snap.Header.GardenID != *gardenID {
			logger.Fatalf("snapshot garden id mismatch: flag=%s snap=%s", *gardenID, snap.Header.GardenID)
		}
		if err := g.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), g.CurrentTick())
	} else {
		layout, err := garden.LoadLayout(lp)
		if err != nil {
			logger.Fatalf("load layout: %v", err)
		}
		if *seed == "" {
			// Re-create with the layout seed so plant ids follow it.
			g, err = garden.New(garden.Config{ID: *gardenID, Seed: layout.Seed, Tuning: tune, Workers: *workers}, cats, gardenLog)
			if err != nil {
				logger.Fatalf("garden: %v", err)
			}
		}
		if err := g.Plant(layout); err != nil {
			logger.Fatalf("plant layout: %v", err)
		}
		logger.Printf("planted fresh garden seed=%q chunks=%d plants=%d", g.Seed(), len(layout.Chunks), g.Metrics().Plants)
	}

	ctx, cancel := signalContext()
	defer cancel()

	tickLog := persistlog.NewTickLogger(gardenDir)
	defer tickLog.Close()
	g.SetTickLogger(persistlog.MultiTickLogger{tickLog, tickIndex(idx)})

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	g.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := snapshot.Path(gardenDir, snap.Header.Tick)
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap)
				}
			}
		}
	}()

	gardenDone := make(chan struct{})
	go func() {
		defer close(gardenDone)
		if err := g.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("garden stopped: %v", err)
			cancel()
		}
	}()

	apiSrv := api.NewServer(g, logger, envBool("FC_ALLOW_REMOTE_OBSERVERS", false))
	if envBool("FC_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		apiSrv.Extra = adminRoutes(g, idx)
	} else {
		logger.Printf("admin endpoints disabled (FC_ENABLE_ADMIN_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           apiSrv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
	}
	// Stop stepping before the deferred log and index closes run.
	cancel()
	<-gardenDone
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
