// Package api exposes the HTTP surface next to the WebSocket endpoint:
// liveness, health, on-demand routing and the persisted room data.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"meet-lab/contract"
	"meet-lab/domain"
	"meet-lab/errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

var validate = validator.New()

type RouteRequest struct {
	Start *domain.Point `json:"start" validate:"required"`
	End   *domain.Point `json:"end" validate:"required"`
	Mode  string        `json:"mode" validate:"max=16"`
}

type RoomResponse struct {
	RoomKey     string        `json:"roomKey"`
	Destination *domain.Point `json:"destination"`
	CreatedAt   time.Time     `json:"createdAt"`
}

type MessageResponse struct {
	ID       string    `json:"id"`
	Author   string    `json:"author"`
	Message  string    `json:"message"`
	ReplyTo  *string   `json:"replyTo,omitempty"`
	System   bool      `json:"system"`
	PostedAt time.Time `json:"postedAt"`
}

type MessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
	Cursor   *string           `json:"cursor"`
}

type HealthResponse struct {
	Status       string    `json:"status"`
	Rooms        int       `json:"rooms"`
	Participants int       `json:"participants"`
	Sessions     int       `json:"sessions"`
	Goroutines   int       `json:"goroutines"`
	RSSBytes     uint64    `json:"rssBytes"`
	CPUPercent   float64   `json:"cpuPercent"`
	Rounds       uint64    `json:"rounds"`
	QuoteErrors  uint64    `json:"quoteErrors"`
	CollectedAt  time.Time `json:"collectedAt"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter mounts the API and the WebSocket handler, wrapped with CORS and an access log.
func NewRouter(log *slog.Logger, service contract.IPresenceService, ws http.Handler, accessLog io.Writer) http.Handler {
	h := &handler{log: log, service: service}
	r := mux.NewRouter()
	r.HandleFunc("/", h.liveness).Methods(http.MethodGet)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/ws", ws)

	v1 := r.PathPrefix("/api").Subrouter()
	v1.HandleFunc("/rooms/{roomKey}", h.room).Methods(http.MethodGet)
	v1.HandleFunc("/rooms/{roomKey}/messages", h.messages).Methods(http.MethodGet)
	// Registered last: a later GET route would turn GET /api/route into a 404 instead of a 405.
	v1.HandleFunc("/route", h.route).Methods(http.MethodPost)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	return handlers.LoggingHandler(accessLog, cors(r))
}

type handler struct {
	log     *slog.Logger
	service contract.IPresenceService
}

func (h *handler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "meet-lab presence server is running")
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	stats := h.service.Health()
	h.write(w, http.StatusOK, HealthResponse{
		Status:       "ok",
		Rooms:        stats.Rooms,
		Participants: stats.Participants,
		Sessions:     stats.Sessions,
		Goroutines:   stats.Goroutines,
		RSSBytes:     stats.RSSBytes,
		CPUPercent:   stats.CPUPercent,
		Rounds:       stats.Rounds,
		QuoteErrors:  stats.QuoteErrors,
		CollectedAt:  stats.CollectedAt,
	})
}

func (h *handler) route(w http.ResponseWriter, r *http.Request) {
	var body RouteRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body); err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	if err := validate.Struct(body); err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	if !body.Start.Valid() || !body.End.Valid() {
		h.fail(w, http.StatusBadRequest, errors.ErrInvalidInput)
		return
	}
	mode, _ := domain.ParseMode(body.Mode)
	quote, err := h.service.Route(r.Context(), *body.Start, *body.End, mode)
	switch {
	case errors.Is(err, errors.ErrProviderUnavailable):
		h.fail(w, http.StatusBadGateway, err)
	case err != nil:
		h.fail(w, http.StatusBadRequest, err)
	default:
		h.write(w, http.StatusOK, quote)
	}
}

func (h *handler) room(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.GetRoom(r.Context(), domain.RoomKey(mux.Vars(r)["roomKey"]))
	switch {
	case errors.Is(err, errors.ErrRoomNotFound):
		h.fail(w, http.StatusNotFound, err)
	case err != nil:
		h.fail(w, http.StatusInternalServerError, err)
	default:
		h.write(w, http.StatusOK, RoomResponse{
			RoomKey:     string(record.RoomKey),
			Destination: record.Destination,
			CreatedAt:   record.CreatedAt,
		})
	}
}

func (h *handler) messages(w http.ResponseWriter, r *http.Request) {
	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}
	messages, next, err := h.service.GetMessages(domain.RoomKey(mux.Vars(r)["roomKey"]), cursor)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, err)
		return
	}
	response := MessagesResponse{Messages: make([]MessageResponse, 0, len(messages)), Cursor: next}
	for _, m := range messages {
		response.Messages = append(response.Messages, MessageResponse{
			ID:       m.ID.String(),
			Author:   m.Author,
			Message:  m.Content,
			ReplyTo:  m.ReplyTo,
			System:   m.System,
			PostedAt: m.At,
		})
	}
	h.write(w, http.StatusOK, response)
}

func (h *handler) write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Debug("Response not written", "error", err)
	}
}

func (h *handler) fail(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.log.Warn("Request failed", "status", status, "error", err)
	}
	h.write(w, status, errorResponse{Error: err.Error()})
}
