package garden

import (
	"sort"

	"floracraft.ai/internal/protocol"
)

type ObserverJoinRequest struct {
	SessionID string
	TickOut   chan []byte
	Chunks    [][2]int
	Events    bool
}

type ObserverSubscribeRequest struct {
	SessionID string
	Chunks    [][2]int
	Events    bool
}

type observerClient struct {
	id      string
	tickOut chan []byte
	filter  map[ChunkKey]bool // nil = all chunks
	events  bool
}

func chunkFilter(chunks [][2]int) map[ChunkKey]bool {
	if len(chunks) == 0 {
		return nil
	}
	f := make(map[ChunkKey]bool, len(chunks))
	for _, c := range chunks {
		f[ChunkKey{CX: c[0], CZ: c[1]}] = true
	}
	return f
}

func (g *Garden) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.TickOut == nil {
		return
	}
	// Replace existing session id if any.
	if old := g.observers[req.SessionID]; old != nil {
		close(old.tickOut)
	}
	g.observers[req.SessionID] = &observerClient{
		id:      req.SessionID,
		tickOut: req.TickOut,
		filter:  chunkFilter(req.Chunks),
		events:  req.Events,
	}
}

func (g *Garden) handleObserverSubscribe(req ObserverSubscribeRequest) {
	c := g.observers[req.SessionID]
	if c == nil {
		return
	}
	c.filter = chunkFilter(req.Chunks)
	c.events = req.Events
}

func (g *Garden) handleObserverLeave(id string) {
	if c := g.observers[id]; c != nil {
		close(c.tickOut)
		delete(g.observers, id)
	}
}

func (g *Garden) broadcastTick(entry TickLogEntry) {
	if len(g.observers) == 0 {
		return
	}
	ids := make([]string, 0, len(g.observers))
	for id := range g.observers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		c := g.observers[id]
		msg := protocol.TickMsg{
			Type:            protocol.TypeTick,
			ProtocolVersion: protocol.Version,
			Tick:            entry.Tick,
			Season:          entry.Season,
			Digest:          entry.Digest,
			Chunks:          g.chunkStates(c.filter),
			Removed:         entry.Removed,
			Harvests:        entry.Harvests,
		}
		if c.events {
			for _, ev := range entry.Events {
				if c.filter == nil || c.filter[ChunkKey{CX: ev.CX, CZ: ev.CZ}] {
					msg.Events = append(msg.Events, ev)
				}
			}
			msg.Dropped = entry.Dropped
		}
		sendLatest(c.tickOut, marshalTick(msg))
	}
}

// chunkStates renders chunks in sorted order. A nil filter includes every chunk.
func (g *Garden) chunkStates(filter map[ChunkKey]bool) []protocol.ChunkState {
	season := g.season()
	out := make([]protocol.ChunkState, 0, len(g.keys))
	for _, key := range g.keys {
		if filter != nil && !filter[key] {
			continue
		}
		c := g.chunks[key]
		cs := protocol.ChunkState{
			CX:     key.CX,
			CZ:     key.CZ,
			Env:    c.effective(season),
			Plants: make([]protocol.PlantState, 0, len(c.plants)),
		}
		for _, p := range c.plants {
			cs.Plants = append(cs.Plants, plantState(p))
		}
		if len(c.ground) > 0 {
			cs.Ground = make(map[string]int, len(c.ground))
			for item, n := range c.ground {
				cs.Ground[item] = n
			}
		}
		out = append(out, cs)
	}
	return out
}
