package services

import (
	"context"
	"meet-lab/contract"
	"meet-lab/domain"
	"meet-lab/observability"
	"meet-lab/repositories"
	"meet-lab/runtime"

	"github.com/samber/lo"
)

type PresenceService struct {
	orchestrator      *runtime.Orchestrator
	router            contract.RouteProvider
	roomRepository    repositories.IRoomRepository
	messageRepository repositories.IMessageRepository
	monitoring        *observability.MonitoringManager
}

func NewPresenceService(o *runtime.Orchestrator, router contract.RouteProvider,
	roomRepository repositories.IRoomRepository, messageRepository repositories.IMessageRepository,
	monitoring *observability.MonitoringManager) *PresenceService {
	return &PresenceService{
		orchestrator:      o,
		router:            router,
		roomRepository:    roomRepository,
		messageRepository: messageRepository,
		monitoring:        monitoring,
	}
}

// Join enters a room, replacing previousID when the client reconnects.
func (s *PresenceService) Join(ctx context.Context, cmd domain.JoinCommand, previousID string, sink contract.EventSink) error {
	if previousID != "" {
		return s.orchestrator.Reconnect(ctx, previousID, cmd, sink)
	}
	return s.orchestrator.Join(ctx, cmd, sink)
}

func (s *PresenceService) Leave(ctx context.Context, connectionID string) error {
	return s.orchestrator.Disconnect(ctx, connectionID)
}

func (s *PresenceService) UpdateLocation(ctx context.Context, connectionID string, sample domain.LocationSample) error {
	return s.orchestrator.UpdateLocation(ctx, connectionID, sample)
}

func (s *PresenceService) SetDestination(ctx context.Context, connectionID string, point domain.Point) error {
	return s.orchestrator.SetDestination(ctx, connectionID, point)
}

func (s *PresenceService) ClearDestination(ctx context.Context, connectionID string) error {
	return s.orchestrator.ClearDestination(ctx, connectionID)
}

func (s *PresenceService) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) error {
	return s.orchestrator.PostMessage(ctx, cmd)
}

func (s *PresenceService) GetMessages(room domain.RoomKey, cursor *string) ([]domain.ChatMessage, *string, error) {
	messages, next, err := s.messageRepository.GetMessages(string(room), cursor)
	if err != nil {
		return nil, nil, err
	}
	return lo.Map(messages, func(m repositories.DiskMessage, _ int) domain.ChatMessage {
		return domain.ChatMessage{
			ID:       m.ID,
			Room:     domain.RoomKey(m.Room),
			SenderID: m.SenderID,
			Author:   m.Author,
			Content:  m.Content,
			ReplyTo:  m.ReplyTo,
			System:   m.System,
			At:       m.At,
		}
	}), next, nil
}

func (s *PresenceService) GetRoom(ctx context.Context, room domain.RoomKey) (repositories.RoomRecord, error) {
	return s.roomRepository.Get(ctx, string(room))
}

// Route quotes a single route on demand, outside of any room.
func (s *PresenceService) Route(ctx context.Context, origin, destination domain.Point, mode domain.Mode) (domain.RouteQuote, error) {
	return s.router.Quote(ctx, origin, destination, mode)
}

// Health refreshes the monitoring stats, the last collected ones are returned if that fails.
func (s *PresenceService) Health() observability.MonitoringStats {
	stats, err := s.monitoring.Collect(s.orchestrator.Stats())
	if err != nil {
		return s.monitoring.GetLatest()
	}
	return stats
}
