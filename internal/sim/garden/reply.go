package garden

import (
	"errors"

	"floracraft.ai/internal/protocol"
	"floracraft.ai/internal/sim/flora/model"
)

// Reply renders a harvest outcome as the wire message clients receive: a HarvestResponse on
// success, otherwise an ErrorMsg carrying the code and any part-name suggestion.
func (o HarvestOutcome) Reply(req HarvestRequest) (protocol.HarvestResponse, *protocol.ErrorMsg) {
	if o.Code != "" {
		return protocol.HarvestResponse{}, ErrorReply(o.Code, o.Err)
	}
	return protocol.HarvestResponse{
		Type:            protocol.TypeHarvest,
		ProtocolVersion: protocol.Version,
		Tick:            o.Tick,
		PlantID:         req.PlantID,
		Part:            req.Part,
		Items:           o.Result.Items,
		StaminaCost:     o.Result.StaminaCost,
		Removed:         o.Result.Removed,
		Events:          o.Result.Events,
	}, nil
}

func ErrorReply(code string, err error) *protocol.ErrorMsg {
	msg := &protocol.ErrorMsg{Type: protocol.TypeError, ProtocolVersion: protocol.Version, Code: code}
	if err != nil {
		msg.Message = err.Error()
	}
	var de *model.DataError
	if errors.As(err, &de) {
		msg.Suggestion = de.Suggestion
	}
	return msg
}
