package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"floracraft.ai/internal/persistence/indexdb"
	"floracraft.ai/internal/sim/garden"
)

// adminRoutes are local-only endpoints mounted under /admin. They do not affect simulation
// determinism.
func adminRoutes(g *garden.Garden, idx *indexdb.SQLiteIndex) http.Handler {
	r := chi.NewRouter()
	r.Use(loopbackOnly)

	r.Get("/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		resp := struct {
			GardenID string         `json:"garden_id"`
			Seed     string         `json:"seed"`
			Metrics  garden.Metrics `json:"metrics"`
			Index    indexdb.Stats  `json:"index"`
		}{
			GardenID: g.ID(),
			Seed:     g.Seed(),
			Metrics:  g.Metrics(),
			Index:    idx.Stats(),
		}
		writeJSON(rw, http.StatusOK, resp)
	})

	r.Post("/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		tick, err := g.RequestSnapshot(ctx)
		if err != nil {
			writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "tick": tick, "error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "tick": tick})
	})

	r.Get("/v1/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, g.ID(), g.Metrics(), idx.Stats())
	})
	return r
}

// writeMetrics emits the Prometheus text exposition format.
func writeMetrics(rw http.ResponseWriter, id string, m garden.Metrics, st indexdb.Stats) {
	fmt.Fprintf(rw, "# HELP floracraft_garden_tick Current garden tick.\n")
	fmt.Fprintf(rw, "# TYPE floracraft_garden_tick gauge\n")
	fmt.Fprintf(rw, "floracraft_garden_tick{garden=%q} %d\n", id, m.Tick)

	fmt.Fprintf(rw, "# HELP floracraft_garden_plants Living plants.\n")
	fmt.Fprintf(rw, "# TYPE floracraft_garden_plants gauge\n")
	fmt.Fprintf(rw, "floracraft_garden_plants{garden=%q} %d\n", id, m.Plants)

	fmt.Fprintf(rw, "# HELP floracraft_garden_chunks Chunk count.\n")
	fmt.Fprintf(rw, "# TYPE floracraft_garden_chunks gauge\n")
	fmt.Fprintf(rw, "floracraft_garden_chunks{garden=%q} %d\n", id, m.Chunks)

	fmt.Fprintf(rw, "# HELP floracraft_garden_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE floracraft_garden_step_ms gauge\n")
	fmt.Fprintf(rw, "floracraft_garden_step_ms{garden=%q} %.3f\n", id, m.StepMS)

	fmt.Fprintf(rw, "# HELP floracraft_garden_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE floracraft_garden_queue_depth gauge\n")
	fmt.Fprintf(rw, "floracraft_garden_queue_depth{garden=%q,queue=%q} %d\n", id, "harvest", m.Queues.Harvest)
	fmt.Fprintf(rw, "floracraft_garden_queue_depth{garden=%q,queue=%q} %d\n", id, "inspect", m.Queues.Inspect)

	fmt.Fprintf(rw, "# HELP floracraft_index_dropped_total Index writes dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE floracraft_index_dropped_total counter\n")
	fmt.Fprintf(rw, "floracraft_index_dropped_total{garden=%q,kind=%q} %d\n", id, "tick", st.DropTickTotal)
	fmt.Fprintf(rw, "floracraft_index_dropped_total{garden=%q,kind=%q} %d\n", id, "snapshot", st.DropSnapshotTotal)
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(rw, r)
	})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
