package garden

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"floracraft.ai/internal/protocol"
	"floracraft.ai/internal/sim/flora/model"
)

var (
	ErrBusy       = errors.New("garden busy")
	ErrNoSnapshot = errors.New("snapshot sink not configured")
	ErrHalted     = errors.New("garden halted")
)

type harvestReq struct {
	req   HarvestRequest
	reply chan HarvestOutcome
}

type inspectReq struct {
	plantID string
	reply   chan inspectReply
}

type inspectReply struct {
	msg protocol.PlantMsg
	ok  bool
}

type bootstrapReq struct {
	reply chan protocol.BootstrapResponse
}

type snapshotReply struct {
	tick uint64
	err  error
}

// Metrics is a lock-free view for /metrics and admin endpoints.
type Metrics struct {
	Tick   uint64  `json:"tick"`
	Chunks int     `json:"chunks"`
	Plants int64   `json:"plants"`
	StepMS float64 `json:"step_ms"`
	Queues struct {
		Harvest int `json:"harvest"`
		Inspect int `json:"inspect"`
	} `json:"queues"`
}

func (g *Garden) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(g.cfg.Tuning.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer g.haltOnce.Do(func() { close(g.halted) })

	var pending []harvestReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.stop:
			return nil
		case req := <-g.harvest:
			pending = append(pending, req)
		case req := <-g.inspect:
			msg, ok := g.inspectPlant(req.plantID)
			req.reply <- inspectReply{msg: msg, ok: ok}
		case req := <-g.bootstrap:
			req.reply <- g.bootstrapMsg()
		case reply := <-g.snapshotReq:
			reply <- g.snapshotNow()
		case req := <-g.observerJoin:
			g.handleObserverJoin(req)
		case req := <-g.observerSub:
			g.handleObserverSubscribe(req)
		case id := <-g.observerLeave:
			g.handleObserverLeave(id)
		case <-ticker.C:
			reqs := make([]HarvestRequest, len(pending))
			for i, p := range pending {
				reqs[i] = p.req
			}
			entry, outcomes, err := g.step(reqs)
			if err != nil {
				for i, p := range pending {
					p.reply <- outcomes[i]
				}
				return fmt.Errorf("tick %d: %w", entry.Tick, err)
			}
			for i, p := range pending {
				p.reply <- outcomes[i]
			}
			pending = pending[:0]
			g.publish(entry)
		}
	}
}

func (g *Garden) Stop() { close(g.stop) }

func (g *Garden) snapshotNow() snapshotReply {
	if g.snapshotSink == nil {
		return snapshotReply{err: ErrNoSnapshot}
	}
	snap := g.ExportSnapshot()
	select {
	case g.snapshotSink <- snap:
		return snapshotReply{tick: snap.Header.Tick}
	default:
		return snapshotReply{tick: snap.Header.Tick, err: ErrBusy}
	}
}

// RequestSnapshot hands a snapshot of the current state to the snapshot sink between ticks.
func (g *Garden) RequestSnapshot(ctx context.Context) (uint64, error) {
	reply := make(chan snapshotReply, 1)
	select {
	case g.snapshotReq <- reply:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.tick, r.err
	case <-g.halted:
		return 0, ErrHalted
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (g *Garden) Metrics() Metrics {
	m := Metrics{
		Tick:   g.tick.Load(),
		Chunks: len(g.keys),
		Plants: g.plantCount.Load(),
		StepMS: float64(g.stepNanos.Load()) / 1e6,
	}
	m.Queues.Harvest = len(g.harvest)
	m.Queues.Inspect = len(g.inspect)
	return m
}

// publish hands a finished tick to the optional sinks and observers.
func (g *Garden) publish(entry TickLogEntry) {
	if g.tickLogger != nil {
		if err := g.tickLogger.WriteTick(entry); err != nil {
			g.log.Printf("tick log write failed tick=%d: %v", entry.Tick, err)
		}
	}
	g.broadcastTick(entry)

	every := uint64(g.cfg.Tuning.SnapshotEveryTicks)
	if g.snapshotSink != nil && every > 0 && (entry.Tick+1)%every == 0 {
		snap := g.ExportSnapshot()
		select {
		case g.snapshotSink <- snap:
		default:
			g.log.Printf("snapshot sink full, skipped tick=%d", snap.Header.Tick)
		}
	}
}

// Harvest queues a harvest for the next tick and waits for its outcome.
func (g *Garden) Harvest(ctx context.Context, req HarvestRequest) (HarvestOutcome, error) {
	reply := make(chan HarvestOutcome, 1)
	select {
	case g.harvest <- harvestReq{req: req, reply: reply}:
	case <-ctx.Done():
		return HarvestOutcome{}, ctx.Err()
	default:
		return HarvestOutcome{}, ErrBusy
	}
	select {
	case out := <-reply:
		return out, nil
	case <-g.halted:
		return HarvestOutcome{}, ErrHalted
	case <-ctx.Done():
		return HarvestOutcome{}, ctx.Err()
	}
}

// Inspect reports per-part suitability and next scheduled events. ok is false for an unknown
// plant.
func (g *Garden) Inspect(ctx context.Context, plantID string) (protocol.PlantMsg, bool, error) {
	reply := make(chan inspectReply, 1)
	select {
	case g.inspect <- inspectReq{plantID: plantID, reply: reply}:
	case <-ctx.Done():
		return protocol.PlantMsg{}, false, ctx.Err()
	default:
		return protocol.PlantMsg{}, false, ErrBusy
	}
	select {
	case r := <-reply:
		return r.msg, r.ok, nil
	case <-g.halted:
		return protocol.PlantMsg{}, false, ErrHalted
	case <-ctx.Done():
		return protocol.PlantMsg{}, false, ctx.Err()
	}
}

func (g *Garden) Bootstrap(ctx context.Context) (protocol.BootstrapResponse, error) {
	reply := make(chan protocol.BootstrapResponse, 1)
	select {
	case g.bootstrap <- bootstrapReq{reply: reply}:
	case <-ctx.Done():
		return protocol.BootstrapResponse{}, ctx.Err()
	}
	select {
	case r := <-reply:
		return r, nil
	case <-g.halted:
		return protocol.BootstrapResponse{}, ErrHalted
	case <-ctx.Done():
		return protocol.BootstrapResponse{}, ctx.Err()
	}
}

func (g *Garden) ObserverJoin() chan<- ObserverJoinRequest           { return g.observerJoin }
func (g *Garden) ObserverSubscribe() chan<- ObserverSubscribeRequest { return g.observerSub }
func (g *Garden) ObserverLeave() chan<- string                       { return g.observerLeave }

func (g *Garden) bootstrapMsg() protocol.BootstrapResponse {
	tick := g.tick.Load()
	t := g.cfg.Tuning
	return protocol.BootstrapResponse{
		Type:            protocol.TypeBootstrap,
		ProtocolVersion: protocol.Version,
		GardenID:        g.cfg.ID,
		Tick:            tick,
		Season:          model.SeasonAt(tick, t.SeasonLengthTicks),
		Params: protocol.GardenParams{
			TickRateHz:        t.TickRateHz,
			DayTicks:          t.DayTicks,
			SeasonLengthTicks: t.SeasonLengthTicks,
			Seed:              g.cfg.Seed,
		},
		Catalogs: protocol.CatalogDigests{
			ItemPaletteDigest: g.cats.Items.PaletteDigest,
			ItemDefsDigest:    g.cats.Items.DefsDigest,
			PlantsDigest:      g.cats.Plants.Digest,
			Species:           append([]string(nil), g.cats.Plants.IDs...),
		},
		Chunks: g.chunkStates(nil),
	}
}

func marshalTick(msg protocol.TickMsg) []byte {
	b, _ := json.Marshal(msg)
	return b
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
