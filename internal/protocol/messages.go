package protocol

import "floracraft.ai/internal/sim/flora/model"

// SUBSCRIBE (client -> server). First message on the observe socket; may be re-sent to
// change the filter.
type SubscribeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Chunks          [][2]int `json:"chunks,omitempty"` // empty = every chunk
	Events          bool     `json:"events"`
}

// BOOTSTRAP (GET /v1/bootstrap)
type BootstrapResponse struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	GardenID        string         `json:"garden_id"`
	Tick            uint64         `json:"tick"`
	Season          model.Season   `json:"season"`
	Params          GardenParams   `json:"params"`
	Catalogs        CatalogDigests `json:"catalogs"`
	Chunks          []ChunkState   `json:"chunks"`
}

type GardenParams struct {
	TickRateHz        int    `json:"tick_rate_hz"`
	DayTicks          int    `json:"day_ticks"`
	SeasonLengthTicks int    `json:"season_length_ticks"`
	Seed              string `json:"seed"`
}

type CatalogDigests struct {
	ItemPaletteDigest string   `json:"item_palette_digest"`
	ItemDefsDigest    string   `json:"item_defs_digest"`
	PlantsDigest      string   `json:"plants_digest"`
	Species           []string `json:"species"`
}

type ChunkState struct {
	CX     int            `json:"cx"`
	CZ     int            `json:"cz"`
	Env    model.Chunk    `json:"env"`
	Plants []PlantState   `json:"plants"`
	Ground map[string]int `json:"ground,omitempty"`
}

type PlantState struct {
	ID      string      `json:"id"`
	Species string      `json:"species"`
	Name    string      `json:"name"`
	Parts   []PartState `json:"parts"`
}

type PartState struct {
	Name     string         `json:"name"`
	Category model.Category `json:"category"`
	Qty      int            `json:"qty"`
	MaxQty   int            `json:"max_qty"`
}

// TICK (server -> client), sent every tick.
type TickMsg struct {
	Type            string              `json:"type"`
	ProtocolVersion string              `json:"protocol_version"`
	Tick            uint64              `json:"tick"`
	Season          model.Season        `json:"season"`
	Digest          string              `json:"digest"`
	Chunks          []ChunkState        `json:"chunks,omitempty"`
	Events          []EventRecord       `json:"events,omitempty"`
	Dropped         []model.DroppedItem `json:"dropped,omitempty"`
	Removed         []string            `json:"removed,omitempty"`
	Harvests        []HarvestRecord     `json:"harvests,omitempty"`
}

// EventRecord is a narrative event placed in the garden.
type EventRecord struct {
	CX      int               `json:"cx"`
	CZ      int               `json:"cz"`
	PlantID string            `json:"plant_id"`
	Key     string            `json:"key"`
	Params  map[string]string `json:"params,omitempty"`
}

// HarvestRecord is a harvest applied at the start of a tick. Recorded in tick logs so replays
// can re-apply it.
type HarvestRecord struct {
	PlantID string `json:"plant_id"`
	Part    string `json:"part"`
	Special bool   `json:"special,omitempty"`
	Code    string `json:"code,omitempty"`
}

// PLANT (GET /v1/plants/{id})
type PlantMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	Tick            uint64           `json:"tick"`
	CX              int              `json:"cx"`
	CZ              int              `json:"cz"`
	Plant           PlantState       `json:"plant"`
	Overall         PartInspection   `json:"overall"`
	Parts           []PartInspection `json:"parts"`
}

// PartInspection is one row of the inspection panel. NextEventTick is nil when no event can
// fire under current conditions.
type PartInspection struct {
	Name          string     `json:"name,omitempty"`
	Multiplier    float64    `json:"multiplier"`
	State         string     `json:"state"`
	Mature        bool       `json:"mature,omitempty"`
	Harvestable   bool       `json:"harvestable,omitempty"`
	NextEventTick *uint64    `json:"next_event_tick,omitempty"`
	NextEventKind model.Kind `json:"next_event_kind,omitempty"`
}

// HARVEST (POST /v1/plants/{id}/harvest)
type HarvestRequest struct {
	Part    string `json:"part"`
	Special bool   `json:"special,omitempty"`
}

// HARVEST (client -> server on /v1/ws). Ref is echoed on the reply.
type HarvestMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref,omitempty"`
	PlantID         string `json:"plant_id"`
	Part            string `json:"part"`
	Special         bool   `json:"special,omitempty"`
}

type HarvestResponse struct {
	Type            string              `json:"type"`
	ProtocolVersion string              `json:"protocol_version"`
	Ref             string              `json:"ref,omitempty"`
	Tick            uint64              `json:"tick"`
	PlantID         string              `json:"plant_id"`
	Part            string              `json:"part"`
	Items           []model.DroppedItem `json:"items,omitempty"`
	StaminaCost     int                 `json:"stamina_cost"`
	Removed         bool                `json:"removed"`
	Events          []model.Event       `json:"events,omitempty"`
}

// ERROR
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
	Suggestion      string `json:"suggestion,omitempty"`
}
