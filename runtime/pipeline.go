package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"meet-lab/contract"
	"meet-lab/domain"
	"meet-lab/domain/event"
	"meet-lab/errors"
	"meet-lab/observability"
	"sync"
	"time"
)

// Pipeline turns one location sample into a consistent room snapshot.
// A round runs entirely under the round lock of its room: sample write, quotes and emission
// can't interleave with another round or a membership change of the same room.
type Pipeline struct {
	log            *slog.Logger
	registry       contract.IRegistry
	store          *RoomStore
	router         contract.RouteProvider
	dispatcher     contract.IDispatcher
	monitoring     *observability.MonitoringManager
	routingTimeout time.Duration
}

func NewPipeline(log *slog.Logger, registry contract.IRegistry, store *RoomStore,
	router contract.RouteProvider, dispatcher contract.IDispatcher,
	monitoring *observability.MonitoringManager, routingTimeout time.Duration) *Pipeline {
	return &Pipeline{
		log:            log,
		registry:       registry,
		store:          store,
		router:         router,
		dispatcher:     dispatcher,
		monitoring:     monitoring,
		routingTimeout: routingTimeout,
	}
}

type quoteResult struct {
	peerID        string
	toDestination bool
	quote         domain.RouteQuote
	err           error
}

// Process runs one round for the room of the connection.
// Samples from a connection that is not joined are dropped with ErrNotJoined or ErrTerminated.
func (p *Pipeline) Process(ctx context.Context, connectionID string, sample domain.LocationSample) error {
	room, err := p.registry.Lookup(connectionID)
	if err != nil {
		return err
	}
	_, err = p.store.WithRoom(room, func(r *domain.Room) error {
		return p.round(ctx, r, connectionID, sample)
	})
	if errors.Is(err, errors.ErrRoomNotFound) {
		return errors.ErrNotJoined
	}
	return err
}

func (p *Pipeline) round(ctx context.Context, r *domain.Room, connectionID string, sample domain.LocationSample) error {
	reporter, ok := r.Participant(connectionID)
	if !ok {
		return errors.ErrNotJoined
	}
	if p.monitoring != nil {
		p.monitoring.IncrRounds()
	}
	if !ApplySample(reporter, sample) {
		p.log.Warn("Unknown travel mode, falling back to car", "connection", connectionID, "mode", sample.Mode)
	}

	// Nothing to compare against until the reporter has a position. A mode or heading only sample
	// still refreshes the snapshot, peers keep the values computed against the previous reporter.
	if reporter.Position == nil {
		reporter.MarkSelf()
		return p.dispatcher.EmitSnapshot(ctx, r.Key, event.KindLocationUpdate, r.Views())
	}

	results := p.quoteAll(ctx, r, reporter)

	var destination *quoteResult
	for res := range results {
		if res.toDestination {
			destination = &res
			continue
		}
		peer, ok := r.Participant(res.peerID)
		if !ok {
			continue
		}
		if res.err != nil {
			p.log.Warn("Route quote failed", "room", r.Key, "from", res.peerID, "to", connectionID, "error", res.err)
			if p.monitoring != nil {
				p.monitoring.IncrQuoteErrors()
			}
			peer.ApplyFailure()
			continue
		}
		peer.ApplyQuote(res.quote)
	}
	reporter.MarkSelf()

	if err := p.dispatcher.EmitSnapshot(ctx, r.Key, event.KindLocationUpdate, r.Views()); err != nil {
		return fmt.Errorf("emit snapshot of room %s: %w", r.Key, err)
	}
	if destination != nil {
		if destination.err != nil {
			p.log.Warn("Destination quote failed", "room", r.Key, "from", connectionID, "error", destination.err)
		}
		return p.dispatcher.EmitDestinationEta(ctx, r.Key, connectionID, destination.quote, destination.err != nil)
	}
	return nil
}

// quoteAll issues every quote of the round concurrently.
// The returned channel is closed once all of them have settled.
func (p *Pipeline) quoteAll(ctx context.Context, r *domain.Room, reporter *domain.Participant) <-chan quoteResult {
	target := *reporter.Position
	peers := r.Peers(reporter.ID)
	destination := r.Destination()

	resChan := make(chan quoteResult, len(peers)+1)
	var wg sync.WaitGroup

	quote := func(res quoteResult, origin, destination domain.Point, mode domain.Mode) {
		defer wg.Done()
		qctx, cancel := p.withRoutingTimeout(ctx)
		defer cancel()
		res.quote, res.err = p.router.Quote(qctx, origin, destination, mode)
		resChan <- res
	}

	for _, peer := range peers {
		if peer.Position == nil {
			peer.ResetQuote()
			continue
		}
		wg.Add(1)
		// From the peer's point of view, using the peer's travel mode
		go quote(quoteResult{peerID: peer.ID}, *peer.Position, target, peer.Mode)
	}
	if destination != nil {
		wg.Add(1)
		go quote(quoteResult{toDestination: true}, target, *destination, reporter.Mode)
	}

	go func() {
		wg.Wait()
		close(resChan)
	}()
	return resChan
}

func (p *Pipeline) withRoutingTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.routingTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.routingTimeout)
}
