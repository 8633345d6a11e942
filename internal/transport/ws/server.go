package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"floracraft.ai/internal/protocol"
	"floracraft.ai/internal/sim/garden"
)

// maxInFlight bounds the harvests one connection may have queued at once.
const maxInFlight = 16

// Server is the gardener socket: clients send HARVEST messages and get one reply per message,
// a HARVEST result or an ERROR, tagged with the request's ref.
type Server struct {
	garden *garden.Garden
	log    *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(g *garden.Garden, logger *log.Logger) *Server {
	return &Server{
		garden: g,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		out := make(chan []byte, maxInFlight)
		slots := make(chan struct{}, maxInFlight)
		var inflight sync.WaitGroup

		// Writer goroutine.
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		send := func(v any) {
			b, err := json.Marshal(v)
			if err != nil {
				return
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
		}

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeHarvest {
				send(protocolError("", "expected HARVEST"))
				continue
			}
			var hm protocol.HarvestMsg
			if err := json.Unmarshal(msg, &hm); err != nil || hm.ProtocolVersion != protocol.Version {
				send(protocolError(hm.Ref, "bad HARVEST or protocol_version"))
				continue
			}
			if hm.PlantID == "" || hm.Part == "" {
				e := garden.ErrorReply(protocol.ErrBadRequest, nil)
				e.Ref, e.Message = hm.Ref, "plant_id and part are required"
				send(e)
				continue
			}

			select {
			case slots <- struct{}{}:
			default:
				e := garden.ErrorReply(protocol.ErrGardenBusy, garden.ErrBusy)
				e.Ref = hm.Ref
				send(e)
				continue
			}
			inflight.Add(1)
			go func(hm protocol.HarvestMsg) {
				defer func() { <-slots; inflight.Done() }()
				send(s.harvest(ctx, hm))
			}(hm)
		}

		cancel()
		inflight.Wait()
		<-writerDone
	}
}

func (s *Server) harvest(ctx context.Context, hm protocol.HarvestMsg) any {
	req := garden.HarvestRequest{PlantID: hm.PlantID, Part: hm.Part, Special: hm.Special}
	out, err := s.garden.Harvest(ctx, req)
	if err != nil {
		code := protocol.ErrInternal
		if errors.Is(err, garden.ErrBusy) {
			code = protocol.ErrGardenBusy
		}
		e := garden.ErrorReply(code, err)
		e.Ref = hm.Ref
		return e
	}
	resp, e := out.Reply(req)
	if e != nil {
		e.Ref = hm.Ref
		return e
	}
	resp.Ref = hm.Ref
	return resp
}

func protocolError(ref, message string) *protocol.ErrorMsg {
	e := garden.ErrorReply(protocol.ErrProtoBadRequest, nil)
	e.Ref, e.Message = ref, message
	return e
}
