package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/atcsim/internal/controller"
	"github.com/yegors/atcsim/internal/message"
	"github.com/yegors/atcsim/internal/sim"
	"github.com/yegors/atcsim/internal/status"
	"github.com/yegors/atcsim/internal/storage/sqlite"
	"github.com/yegors/atcsim/pkg/logger"
)

const (
	defaultMessageLimit = 100
	maxMessageLimit     = 1000
)

// Handler serves the simulation over HTTP
type Handler struct {
	sim    *sim.Simulation
	hub    *Hub
	logger *logger.Logger
}

// NewHandler creates a new handler. hub may be nil, in which case the
// websocket route answers 503.
func NewHandler(s *sim.Simulation, hub *Hub, logger *logger.Logger) *Handler {
	return &Handler{
		sim:    s,
		hub:    hub,
		logger: logger.Named("api-handler"),
	}
}

// FlightRequest is the body of POST /flights
type FlightRequest struct {
	ID          string `json:"id"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// GetHealth reports liveness and the simulated clock
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx := h.sim.Context()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"running":  h.sim.Running(),
		"run_id":   ctx.RunID,
		"sim_time": ctx.Clock.Now().UTC().Format(time.RFC3339),
		"elapsed":  ctx.Elapsed().String(),
	})
}

// StartSimulation starts the physics scheduler and every controller
func (h *Handler) StartSimulation(w http.ResponseWriter, r *http.Request) {
	if err := h.sim.Start(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.sim.Controllers())
}

// StopSimulation stops the physics scheduler and every controller
func (h *Handler) StopSimulation(w http.ResponseWriter, r *http.Request) {
	if err := h.sim.Stop(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.sim.Controllers())
}

// GetControllers lists every controller
func (h *Handler) GetControllers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sim.Controllers())
}

// GetControllerRoster returns the aircraft a controller owns
func (h *Handler) GetControllerRoster(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Roster())
}

// GetControllerMessages returns the tail of a controller's in-memory log,
// optionally only the messages of one type
func (h *Handler) GetControllerMessages(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	typ := r.URL.Query().Get("type")
	if typ == "" {
		writeJSON(w, http.StatusOK, c.MessageLog().Tail(limit))
		return
	}
	msgs := c.MessageLog().Filter(message.Type(typ))
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	if msgs == nil {
		msgs = []message.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// StartController starts one controller's tick loop
func (h *Handler) StartController(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := c.Start(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": c.Name(), "running": c.Running()})
}

// StopController stops one controller's tick loop
func (h *Handler) StopController(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := c.Stop(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": c.Name(), "running": c.Running()})
}

// GetAllAircraft returns every aircraft
func (h *Handler) GetAllAircraft(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sim.AllAircraft())
}

// GetAircraft returns one aircraft's position and phase
func (h *Handler) GetAircraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, ok := h.sim.Aircraft(id)
	if !ok {
		writeError(w, http.StatusNotFound, "aircraft not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// CreateFlight creates a flight through the regional center
func (h *Handler) CreateFlight(w http.ResponseWriter, r *http.Request) {
	var req FlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ID == "" || req.Origin == "" || req.Destination == "" {
		writeError(w, http.StatusBadRequest, "id, origin and destination are required")
		return
	}

	if err := h.sim.CreateFlight(req.ID, req.Origin, req.Destination); err != nil {
		writeError(w, flightErrorStatus(err), err.Error())
		return
	}

	a, _ := h.sim.Aircraft(req.ID)
	h.logger.Info("Flight created via API",
		logger.String("aircraft", req.ID),
		logger.String("origin", req.Origin),
		logger.String("destination", req.Destination))
	writeJSON(w, http.StatusCreated, a)
}

func flightErrorStatus(err error) int {
	switch {
	case errors.Is(err, controller.ErrDuplicateFlight), errors.Is(err, controller.ErrAirportSaturated):
		return http.StatusConflict
	case errors.Is(err, controller.ErrUnknownAirport):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

// RemoveFlight takes an en-route aircraft out of the simulation
func (h *Handler) RemoveFlight(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.sim.RemoveFlight(id)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, controller.ErrUnknownAircraft):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, controller.ErrNotEnRoute):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// DeclareEmergency moves a queued aircraft to the head of its landing queue
func (h *Handler) DeclareEmergency(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.sim.Aircraft(id); !ok {
		writeError(w, http.StatusNotFound, "aircraft not found: "+id)
		return
	}
	if err := h.sim.DeclareEmergency(id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, controller.ErrNotQueued) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	a, _ := h.sim.Aircraft(id)
	writeJSON(w, http.StatusOK, a)
}

// GetMessages queries the persistent message store
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	store := h.sim.Messages()
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "message storage is disabled")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	since, err := parseTime(q.Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid since: "+err.Error())
		return
	}
	until, err := parseTime(q.Get("until"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid until: "+err.Error())
		return
	}

	records, err := store.QueryMessages(sqlite.MessageFilter{
		Controller: q.Get("controller"),
		AircraftID: q.Get("aircraft"),
		Type:       q.Get("type"),
		Since:      since,
		Until:      until,
		Limit:      limit,
	})
	if err != nil {
		h.logger.Error("Failed to query messages", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to query messages")
		return
	}
	if records == nil {
		records = []*sqlite.MessageRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// GetStatus returns the airspace status boards. With cached=true the last
// collected board is served when there is one.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("cached") == "true" {
		if last := h.sim.LastStatus(); last != nil {
			writeJSON(w, http.StatusOK, last)
			return
		}
	}

	opts := status.Options{
		IncludeRosters:  q.Get("rosters") == "true",
		IncludeMessages: q.Get("messages") != "false",
	}
	if v := q.Get("max_en_route"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid max_en_route: "+v)
			return
		}
		opts.MaxEnRoute = n
	}
	writeJSON(w, http.StatusOK, h.sim.Status(opts))
}

// HandleWebSocket streams controller messages
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "message stream is disabled")
		return
	}
	h.hub.ServeHTTP(w, r)
}

func (h *Handler) controller(w http.ResponseWriter, r *http.Request) (*controller.Actor, bool) {
	name := chi.URLParam(r, "name")
	c, ok := h.sim.Controller(name)
	if !ok {
		writeError(w, http.StatusNotFound, "controller not found: "+name)
	}
	return c, ok
}

func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultMessageLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid limit: " + v)
	}
	if n > maxMessageLimit {
		n = maxMessageLimit
	}
	return n, nil
}

// parseTime accepts RFC 3339 timestamps; empty means unbounded.
func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
