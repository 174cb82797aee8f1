package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"meet-lab/domain"
	"meet-lab/errors"
	"meet-lab/mocks"
	"meet-lab/observability"
	"meet-lab/repositories"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestRouter(t *testing.T) (http.Handler, *mocks.MockIPresenceService) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	service := mocks.NewMockIPresenceService(gomock.NewController(t))
	ws := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	return NewRouter(log, service, ws, io.Discard), service
}

func do(router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, reader))
	return rec
}

func TestRouter_Liveness_And_Health(t *testing.T) {
	req := require.New(t)
	router, service := newTestRouter(t)

	rec := do(router, http.MethodGet, "/", nil)
	req.Equal(http.StatusOK, rec.Code)
	req.Contains(rec.Body.String(), "running")

	service.EXPECT().Health().Return(observability.MonitoringStats{
		PresenceStats: observability.PresenceStats{Rooms: 2, Participants: 3, Sessions: 3},
		RSSBytes:      1024,
	}).Times(1)

	rec = do(router, http.MethodGet, "/health", nil)
	req.Equal(http.StatusOK, rec.Code)
	var health HealthResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &health))
	req.Equal(2, health.Rooms)
	req.Equal(3, health.Sessions)
	req.Equal(uint64(1024), health.RSSBytes)

	rec = do(router, http.MethodGet, "/ws", nil)
	req.Equal(http.StatusTeapot, rec.Code)
}

func TestRouter_Route(t *testing.T) {
	start := domain.Point{Lat: 48.85, Lng: 2.35}
	end := domain.Point{Lat: 48.86, Lng: 2.36}

	t.Run("quote", func(t *testing.T) {
		req := require.New(t)
		router, service := newTestRouter(t)
		service.EXPECT().Route(gomock.Any(), start, end, domain.ModeWalk).
			Return(domain.RouteQuote{DistanceMeters: 1200, DurationSeconds: 900}, nil).Times(1)

		rec := do(router, http.MethodPost, "/api/route", RouteRequest{Start: &start, End: &end, Mode: "walk"})

		req.Equal(http.StatusOK, rec.Code)
		var quote domain.RouteQuote
		req.NoError(json.Unmarshal(rec.Body.Bytes(), &quote))
		req.Equal(1200.0, quote.DistanceMeters)
	})

	t.Run("provider errors", func(t *testing.T) {
		req := require.New(t)
		router, service := newTestRouter(t)
		gomock.InOrder(
			service.EXPECT().Route(gomock.Any(), start, end, domain.ModeCar).Return(domain.RouteQuote{}, errors.ErrProviderUnavailable),
			service.EXPECT().Route(gomock.Any(), start, end, domain.ModeCar).Return(domain.RouteQuote{}, errors.ErrProviderRejected),
		)

		req.Equal(http.StatusBadGateway, do(router, http.MethodPost, "/api/route", RouteRequest{Start: &start, End: &end}).Code)
		req.Equal(http.StatusBadRequest, do(router, http.MethodPost, "/api/route", RouteRequest{Start: &start, End: &end}).Code)
	})

	t.Run("invalid body never reaches the provider", func(t *testing.T) {
		req := require.New(t)
		router, _ := newTestRouter(t)
		outside := domain.Point{Lat: 95, Lng: 0}

		req.Equal(http.StatusBadRequest, do(router, http.MethodPost, "/api/route", RouteRequest{Start: &start}).Code)
		req.Equal(http.StatusBadRequest, do(router, http.MethodPost, "/api/route", RouteRequest{Start: &start, End: &outside}).Code)
		req.Equal(http.StatusMethodNotAllowed, do(router, http.MethodGet, "/api/route", nil).Code)
	})
}

func TestRouter_Room(t *testing.T) {
	req := require.New(t)
	router, service := newTestRouter(t)
	createdAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	service.EXPECT().GetRoom(gomock.Any(), domain.RoomKey("R1")).
		Return(repositories.RoomRecord{RoomKey: "R1", CreatedAt: createdAt, Destination: &domain.Point{Lat: 1, Lng: 2}}, nil).Times(1)
	service.EXPECT().GetRoom(gomock.Any(), domain.RoomKey("gone")).
		Return(repositories.RoomRecord{}, errors.ErrRoomNotFound).Times(1)

	rec := do(router, http.MethodGet, "/api/rooms/R1", nil)
	req.Equal(http.StatusOK, rec.Code)
	req.JSONEq(`{"roomKey":"R1","destination":{"lat":1,"lng":2},"createdAt":"2024-05-01T10:00:00Z"}`, rec.Body.String())

	req.Equal(http.StatusNotFound, do(router, http.MethodGet, "/api/rooms/gone", nil).Code)
}

func TestRouter_Messages(t *testing.T) {
	req := require.New(t)
	router, service := newTestRouter(t)
	id := uuid.New()
	cursor := "next"
	service.EXPECT().GetMessages(domain.RoomKey("R1"), gomock.Nil()).
		Return([]domain.ChatMessage{{ID: id, Room: "R1", Author: "A", Content: "hi"}}, &cursor, nil).Times(1)
	service.EXPECT().GetMessages(domain.RoomKey("R1"), &cursor).
		Return(nil, nil, nil).Times(1)

	// Given a first page
	rec := do(router, http.MethodGet, "/api/rooms/R1/messages", nil)
	req.Equal(http.StatusOK, rec.Code)
	var page MessagesResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &page))
	req.Len(page.Messages, 1)
	req.Equal(id.String(), page.Messages[0].ID)
	req.Equal(&cursor, page.Cursor)

	// When the cursor is followed to the end
	rec = do(router, http.MethodGet, "/api/rooms/R1/messages?cursor=next", nil)

	// Then an empty page without cursor comes back
	req.JSONEq(`{"messages":[],"cursor":null}`, rec.Body.String())
}
