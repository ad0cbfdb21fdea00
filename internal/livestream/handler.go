package livestream

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the orchestration endpoints using go-chi.
type Handler struct {
	svc *Service
	hub *Hub
	log *slog.Logger
}

// NewHandler returns a Handler for svc. hub may be nil to disable /events
// (e.g. in tests).
func NewHandler(svc *Service, hub *Hub, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Handler{svc: svc, hub: hub, log: log}
}

// Mount registers the handler's routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Get("/state", h.GetState)
	r.Get("/events", h.Events)
	r.Route("/overlay", func(r chi.Router) {
		r.Get("/", h.GetOverlay)
		r.Post("/route", h.SetRoute)
		r.Post("/dismiss", h.Dismiss)
		r.Put("/stream", h.RegisterStream)
		r.Delete("/stream", h.ClearStream)
	})
	r.Route("/playback", func(r chi.Router) {
		r.Post("/error", h.PlayerError)
		r.Post("/state", h.PlayerState)
	})
}

type routeRequest struct {
	Path string `json:"path"`
}

type errorSignal struct {
	Code *int `json:"code"`
}

type stateSignal struct {
	State *int `json:"state"`
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetState handles GET /state.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Snapshot())
}

// Events handles GET /events: a WebSocket stream of snapshots.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.hub.Serve(w, r, h.svc.Snapshot())
}

// GetOverlay handles GET /overlay.
func (h *Handler) GetOverlay(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Coordinator().State())
}

// SetRoute handles POST /overlay/route. Body: { "path": "/products/42" }.
func (h *Handler) SetRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		h.log.Debug("invalid route body")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	coord := h.svc.Coordinator()
	coord.SetPath(req.Path)
	writeJSON(w, http.StatusOK, coord.State())
}

// Dismiss handles POST /overlay/dismiss.
func (h *Handler) Dismiss(w http.ResponseWriter, r *http.Request) {
	coord := h.svc.Coordinator()
	coord.Dismiss()
	h.log.Info("overlay dismissed")
	writeJSON(w, http.StatusOK, coord.State())
}

// RegisterStream handles PUT /overlay/stream. Body: { "video_id": "abc", "slug": "launch" }.
func (h *Handler) RegisterStream(w http.ResponseWriter, r *http.Request) {
	var stream ActiveStream
	if err := json.NewDecoder(r.Body).Decode(&stream); err != nil {
		h.log.Debug("invalid stream body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if stream.VideoID == "" || stream.Slug == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	coord := h.svc.Coordinator()
	coord.Register(stream)
	h.log.Info("stream registered", slog.String("slug", stream.Slug), slog.String("video_id", stream.VideoID))
	writeJSON(w, http.StatusOK, coord.State())
}

// ClearStream handles DELETE /overlay/stream.
func (h *Handler) ClearStream(w http.ResponseWriter, r *http.Request) {
	h.svc.Coordinator().Clear()
	h.log.Info("stream cleared")
	w.WriteHeader(http.StatusNoContent)
}

// PlayerError handles POST /playback/error. Body: { "code": 150 }.
func (h *Handler) PlayerError(w http.ResponseWriter, r *http.Request) {
	var sig errorSignal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil || sig.Code == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.signalResult(w, h.svc.HandlePlayerError(*sig.Code))
}

// PlayerState handles POST /playback/state. Body: { "state": 1 }.
func (h *Handler) PlayerState(w http.ResponseWriter, r *http.Request) {
	var sig stateSignal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil || sig.State == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.signalResult(w, h.svc.HandlePlayerState(*sig.State))
}

func (h *Handler) signalResult(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, h.svc.Snapshot())
	case errors.Is(err, ErrNoBroadcast):
		w.WriteHeader(http.StatusConflict)
	default:
		h.log.Error("player signal failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
