package ws

import (
	"context"
	"log/slog"
	"meet-lab/contract"
	"meet-lab/domain"
	"meet-lab/errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the client.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the client.
	pongWait = 60 * time.Second

	// Send pings to client with this period. Must be less than pongWait.
	pingPeriod = 15 * time.Second
)

// Handler upgrades HTTP requests and runs one presence session per socket.
type Handler struct {
	log            *slog.Logger
	service        contract.IPresenceService
	upgrader       websocket.Upgrader
	bufferSize     int
	maxMessageSize int64
	leaveTimeout   time.Duration
}

// NewHandler builds the socket handler. leaveTimeout bounds the departure broadcast once the socket is gone.
func NewHandler(log *slog.Logger, service contract.IPresenceService, bufferSize int, maxMessageSize int64,
	leaveTimeout time.Duration) *Handler {
	return &Handler{
		log:     log,
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		bufferSize:     bufferSize,
		maxMessageSize: maxMessageSize,
		leaveTimeout:   leaveTimeout,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("WebSocket upgrade failed", "error", err)
		return
	}
	id := uuid.NewString()
	c := &connection{
		id:      id,
		log:     h.log.With("connection", id),
		conn:    conn,
		service: h.service,
		sink:    NewConnectionSink(id, h.bufferSize),
		timeout: h.leaveTimeout,
	}
	c.run(r.Context(), h.maxMessageSize)
}

type connection struct {
	id      string
	log     *slog.Logger
	conn    *websocket.Conn
	service contract.IPresenceService
	sink    *ConnectionSink
	timeout time.Duration
}

func (c *connection) run(ctx context.Context, maxMessageSize int64) {
	c.log.Debug("Connection opened")
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.writePump()
	}()
	go func() {
		defer wg.Done()
		defer c.sink.Close()
		c.readPump(ctx, maxMessageSize)
	}()
	wg.Wait()

	// The request context may already be gone, the departure must still be broadcast
	// but never wait on a stalled queue for longer than timeout.
	leaveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	if err := c.service.Leave(leaveCtx, c.id); err != nil {
		c.logError(err, "disconnect")
	}
	c.log.Debug("Connection closed")
}

func (c *connection) readPump(ctx context.Context, maxMessageSize int64) {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("Unexpected close", "error", err)
			}
			return
		}
		name, payload, err := Decode(raw)
		if err != nil {
			c.logError(err, name)
			continue
		}
		if err = c.handle(ctx, name, payload); err != nil {
			c.logError(err, name)
		}
	}
}

func (c *connection) handle(ctx context.Context, name string, payload any) error {
	switch p := payload.(type) {
	case *JoinPayload:
		cmd := domain.JoinCommand{
			ConnectionID: c.id,
			Room:         domain.RoomKey(p.RoomKey),
			Name:         p.Name,
			Mode:         p.Mode,
		}
		return c.service.Join(ctx, cmd, p.PreviousID, c.sink)
	case *LocationPayload:
		return c.service.UpdateLocation(ctx, c.id, p.Sample())
	case *DestinationPayload:
		return c.service.SetDestination(ctx, c.id, domain.Point{Lat: *p.Lat, Lng: *p.Lng})
	case *MessagePayload:
		return c.service.PostMessage(ctx, domain.PostMessageCommand{
			ConnectionID: c.id,
			Room:         domain.RoomKey(p.RoomKey),
			Author:       p.Author,
			Content:      p.Message,
			ReplyTo:      p.ReplyTo,
		})
	case nil:
		if name == EventClearDestination {
			return c.service.ClearDestination(ctx, c.id)
		}
	}
	return errors.ErrUnknownEvent
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.sink.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case raw := <-c.sink.Outbound():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.log.Debug("Write failed", "error", err)
				return
			}
		}
	}
}

// logError drops protocol misuse silently, everything else is worth a warning.
func (c *connection) logError(err error, what string) {
	switch {
	case errors.Is(err, errors.ErrNotJoined), errors.Is(err, errors.ErrTerminated),
		errors.Is(err, errors.ErrAlreadyJoined), errors.Is(err, errors.ErrInvalidInput),
		errors.Is(err, errors.ErrUnknownEvent):
		c.log.Debug("Event ignored", "event", what, "error", err)
	default:
		c.log.Warn("Event failed", "event", what, "error", err)
	}
}
