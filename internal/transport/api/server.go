package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"floracraft.ai/internal/protocol"
	"floracraft.ai/internal/sim/garden"
	"floracraft.ai/internal/transport/observer"
	"floracraft.ai/internal/transport/ws"
)

// Server exposes the garden over HTTP: bootstrap, plant inspection, harvests and the two
// websockets.
type Server struct {
	garden   *garden.Garden
	log      *log.Logger
	observer *observer.Server
	gardener *ws.Server

	// Extra is mounted under /admin when set.
	Extra http.Handler
}

func NewServer(g *garden.Garden, logger *log.Logger, allowRemoteObservers bool) *Server {
	obs := observer.NewServer(g, logger)
	obs.AllowRemote = allowRemoteObservers
	return &Server{
		garden:   g,
		log:      logger,
		observer: obs,
		gardener: ws.NewServer(g, logger),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/healthz"))
	r.Use(s.requestLog)

	r.Get("/v1/bootstrap", s.observer.BootstrapHandler())
	r.Get("/v1/observe", s.observer.WSHandler())
	r.Get("/v1/ws", s.gardener.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/v1/plants/{id}", s.handleInspect)
		r.Post("/v1/plants/{id}/harvest", s.handleHarvest)
	})

	if s.Extra != nil {
		r.Mount("/admin", s.Extra)
	}
	return r
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if s.log != nil {
			s.log.Printf("http method=%s path=%s status=%d dur=%s req=%s",
				r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
		}
	})
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msg, ok, err := s.garden.Inspect(r.Context(), id)
	if err != nil {
		s.writeError(w, garden.ErrorReply(waitCode(err), err))
		return
	}
	if !ok {
		e := garden.ErrorReply(protocol.ErrNotFound, nil)
		e.Message = "plant " + id + " not found"
		s.writeError(w, e)
		return
	}
	s.writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request) {
	var body protocol.HarvestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&body); err != nil {
		s.writeError(w, garden.ErrorReply(protocol.ErrBadRequest, err))
		return
	}
	if body.Part == "" {
		e := garden.ErrorReply(protocol.ErrBadRequest, nil)
		e.Message = "part is required"
		s.writeError(w, e)
		return
	}
	req := garden.HarvestRequest{PlantID: chi.URLParam(r, "id"), Part: body.Part, Special: body.Special}
	out, err := s.garden.Harvest(r.Context(), req)
	if err != nil {
		s.writeError(w, garden.ErrorReply(waitCode(err), err))
		return
	}
	resp, e := out.Reply(req)
	if e != nil {
		s.writeError(w, e)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func waitCode(err error) string {
	if errors.Is(err, garden.ErrBusy) || errors.Is(err, context.DeadlineExceeded) {
		return protocol.ErrGardenBusy
	}
	return protocol.ErrInternal
}

// StatusFor maps a wire error code onto an HTTP status.
func StatusFor(code string) int {
	switch code {
	case protocol.ErrBadRequest, protocol.ErrProtoBadRequest:
		return http.StatusBadRequest
	case protocol.ErrNotFound, protocol.ErrUnknownPart:
		return http.StatusNotFound
	case protocol.ErrHiddenPart:
		return http.StatusForbidden
	case protocol.ErrNothingToHarvest:
		return http.StatusConflict
	case protocol.ErrGardenBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, e *protocol.ErrorMsg) {
	s.writeJSON(w, StatusFor(e.Code), e)
}
