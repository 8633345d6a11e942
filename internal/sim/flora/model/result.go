package model

// Narrative event keys. Rendering/localization happens downstream.
const (
	EventGrow    = "growEvent"
	EventDrop    = "dropEvent"
	EventHarvest = "harvestEvent"
	EventWilt    = "plantWilts"
)

// Kind is a resolved stochastic outcome for one part.
type Kind string

const (
	KindNone Kind = ""
	KindGrow Kind = "grow"
	KindDrop Kind = "drop"
)

type Event struct {
	Key    string            `json:"key"`
	Params map[string]string `json:"params,omitempty"`
}

type DroppedItem struct {
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
	PlantID  string `json:"plant_id"`
	Part     string `json:"part"`
}

type TickResult struct {
	Plant   Plant         `json:"plant"`
	Dropped []DroppedItem `json:"dropped,omitempty"`
	Events  []Event       `json:"events,omitempty"`
	Env     EnvUpdates    `json:"env"`
	Removed bool          `json:"removed"`
}
