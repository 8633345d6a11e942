package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Garden routing/state.
	ErrGardenBusy  = "E_GARDEN_BUSY"
	ErrNotFound    = "E_NOT_FOUND"
	ErrUnknownPart = "E_UNKNOWN_PART"

	// Harvest layer.
	ErrBadRequest       = "E_BAD_REQUEST"
	ErrHiddenPart       = "E_HIDDEN_PART"
	ErrNothingToHarvest = "E_NOTHING_TO_HARVEST"
	ErrCorruptPlantData = "E_CORRUPT_PLANT_DATA"
	ErrInternal         = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:  {},
	ErrGardenBusy:       {},
	ErrNotFound:         {},
	ErrUnknownPart:      {},
	ErrBadRequest:       {},
	ErrHiddenPart:       {},
	ErrNothingToHarvest: {},
	ErrCorruptPlantData: {},
	ErrInternal:         {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
