package runtime

import (
	"context"
	"log/slog"
	"meet-lab/contract"
	"meet-lab/domain"
	"meet-lab/domain/event"
	"meet-lab/errors"
	"meet-lab/mocks"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type pipelineFixture struct {
	pipeline   *Pipeline
	registry   *Registry
	store      *RoomStore
	dispatcher *Dispatcher
}

func newPipelineFixture(router contract.RouteProvider) pipelineFixture {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry(100)
	store := NewRoomStore()
	dispatcher := NewDispatcher(log, 100)
	return pipelineFixture{
		pipeline:   NewPipeline(log, registry, store, router, dispatcher, nil, time.Second),
		registry:   registry,
		store:      store,
		dispatcher: dispatcher,
	}
}

func (f pipelineFixture) join(t *testing.T, room domain.RoomKey, id, name string, mode domain.Mode) {
	require.NoError(t, f.registry.Register(id, room, Sink{name: id}))
	require.NoError(t, f.store.AddParticipant(room, id, name, mode))
}

func (f pipelineFixture) nextSnapshot(t *testing.T) event.RoomSnapshot {
	for {
		select {
		case e := <-f.dispatcher.Events():
			if snapshot, ok := e.(event.RoomSnapshot); ok {
				return snapshot
			}
		case <-time.After(2 * time.Second):
			require.FailNow(t, "no snapshot emitted")
		}
	}
}

func viewOf(t *testing.T, snapshot event.RoomSnapshot, id string) domain.ParticipantView {
	view, ok := lo.Find(snapshot.Views, func(v domain.ParticipantView) bool { return v.UserID == id })
	require.True(t, ok, "no view for %s", id)
	return view
}

func at(lat, lng float64) domain.LocationSample {
	return domain.LocationSample{Position: &domain.Point{Lat: lat, Lng: lng}}
}

func TestPipeline_Two_Participants_Scenario(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	router := mocks.NewMockRouteProvider(ctrl)
	f := newPipelineFixture(router)
	ctx := context.Background()

	f.join(t, "R1", "a", "A", domain.ModeCar)
	f.join(t, "R1", "b", "B", domain.ModeWalk)

	// When A reports while B has no position, no quote is requested
	req.NoError(f.pipeline.Process(ctx, "a", at(10, 10)))

	// Then A sees itself at zero and B stays empty
	snapshot := f.nextSnapshot(t)
	a, b := viewOf(t, snapshot, "a"), viewOf(t, snapshot, "b")
	req.Equal(10.0, *a.Lat)
	req.Equal(domain.ZeroDistance, *a.Distance)
	req.Equal(domain.ZeroEta, *a.Eta)
	req.Nil(b.Lat)
	req.Nil(b.Distance)
	req.Nil(b.Eta)

	// When B reports, A's distance is quoted from A to B using A's mode
	router.EXPECT().
		Quote(gomock.Any(), domain.Point{Lat: 10, Lng: 10}, domain.Point{Lat: 10.01, Lng: 10.01}, domain.ModeCar).
		Return(domain.RouteQuote{DistanceMeters: 1543.2, DurationSeconds: 330}, nil).
		Times(1)
	req.NoError(f.pipeline.Process(ctx, "b", at(10.01, 10.01)))

	// Then both have a distance and an eta
	snapshot = f.nextSnapshot(t)
	a, b = viewOf(t, snapshot, "a"), viewOf(t, snapshot, "b")
	req.Equal("1.54 km", *a.Distance)
	req.Equal("6 mins", *a.Eta)
	req.Equal(domain.ZeroDistance, *b.Distance)
	req.Equal(domain.ZeroEta, *b.Eta)
}

func TestPipeline_Reporter_Without_Position_Only_Sets_Itself(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	router := mocks.NewMockRouteProvider(ctrl)
	f := newPipelineFixture(router)

	f.join(t, "R1", "a", "A", domain.ModeCar)
	f.join(t, "R1", "b", "B", domain.ModeCar)
	req.NoError(f.store.UpdateLocation("R1", "b", at(1, 1)))

	// Given a sample carrying only a mode change
	router.EXPECT().Quote(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	req.NoError(f.pipeline.Process(context.Background(), "a", domain.LocationSample{Mode: "walk"}))

	snapshot := f.nextSnapshot(t)
	a := viewOf(t, snapshot, "a")
	req.Equal(domain.ModeWalk, a.Mode)
	req.Nil(a.Lat)
	req.Equal(domain.ZeroDistance, *a.Distance)
}

func TestPipeline_Partial_Failure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	router := mocks.NewMockRouteProvider(ctrl)
	f := newPipelineFixture(router)

	for _, id := range []string{"a", "b", "c", "d"} {
		f.join(t, "R1", id, id, domain.ModeCar)
	}
	req.NoError(f.store.UpdateLocation("R1", "b", at(1, 1)))
	req.NoError(f.store.UpdateLocation("R1", "c", at(2, 2)))
	req.NoError(f.store.UpdateLocation("R1", "d", at(3, 3)))

	// Given the provider fails only for c
	router.EXPECT().Quote(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, origin, destination domain.Point, mode domain.Mode) (domain.RouteQuote, error) {
			if origin.Lat == 2 {
				return domain.RouteQuote{}, errors.ErrProviderUnavailable
			}
			return domain.RouteQuote{DistanceMeters: origin.Lat * 1000, DurationSeconds: 600}, nil
		}).Times(3)

	// When a reports
	req.NoError(f.pipeline.Process(context.Background(), "a", at(0, 0)))

	// Then only c is not available
	snapshot := f.nextSnapshot(t)
	req.Equal("1.00 km", *viewOf(t, snapshot, "b").Distance)
	req.Equal(domain.NotAvailable, *viewOf(t, snapshot, "c").Distance)
	req.Equal(domain.NotAvailable, *viewOf(t, snapshot, "c").Eta)
	req.Equal("3.00 km", *viewOf(t, snapshot, "d").Distance)
	req.Equal("10 mins", *viewOf(t, snapshot, "d").Eta)
	req.Equal(domain.ZeroDistance, *viewOf(t, snapshot, "a").Distance)
}

func TestPipeline_Destination_Eta(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	router := mocks.NewMockRouteProvider(ctrl)
	f := newPipelineFixture(router)

	f.join(t, "R1", "a", "A", domain.ModeWalk)
	req.NoError(f.store.SetDestination("R1", domain.Point{Lat: 5, Lng: 5}))

	// Given a meeting point, the reporter is quoted to it with its own mode
	router.EXPECT().
		Quote(gomock.Any(), domain.Point{Lat: 1, Lng: 1}, domain.Point{Lat: 5, Lng: 5}, domain.ModeWalk).
		Return(domain.RouteQuote{DistanceMeters: 2000, DurationSeconds: 1500}, nil).
		Times(1)

	req.NoError(f.pipeline.Process(context.Background(), "a", at(1, 1)))

	// Then the snapshot is followed by the room wide destination eta
	f.nextSnapshot(t)
	select {
	case e := <-f.dispatcher.Events():
		eta, ok := e.(event.DestinationEta)
		req.True(ok)
		req.Equal("a", eta.UserID)
		req.Equal("2.00 km", eta.Distance)
		req.Equal("25 mins", eta.Eta)
	case <-time.After(time.Second):
		req.Fail("no destination eta emitted")
	}

	// When the provider is down for the next round
	router.EXPECT().
		Quote(gomock.Any(), domain.Point{Lat: 1, Lng: 1}, domain.Point{Lat: 5, Lng: 5}, domain.ModeWalk).
		Return(domain.RouteQuote{}, errors.ErrProviderUnavailable).
		Times(1)

	req.NoError(f.pipeline.Process(context.Background(), "a", at(1, 1)))

	// Then the destination eta is still emitted, marked as not available
	f.nextSnapshot(t)
	select {
	case e := <-f.dispatcher.Events():
		eta, ok := e.(event.DestinationEta)
		req.True(ok)
		req.Equal("a", eta.UserID)
		req.Equal(domain.NotAvailable, eta.Distance)
		req.Equal(domain.NotAvailable, eta.Eta)
	case <-time.After(time.Second):
		req.Fail("no destination eta emitted")
	}
}

func TestPipeline_Drops_Unjoined_Connection(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	router := mocks.NewMockRouteProvider(ctrl)
	f := newPipelineFixture(router)

	err := f.pipeline.Process(context.Background(), "ghost", at(1, 1))
	req.ErrorIs(err, errors.ErrNotJoined)
	req.Empty(f.dispatcher.Events())
}

// gatedRouter blocks its first call until released.
type gatedRouter struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRouter) Quote(ctx context.Context, origin, destination domain.Point, mode domain.Mode) (domain.RouteQuote, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-g.release
	}
	return domain.RouteQuote{DistanceMeters: 1000, DurationSeconds: 60}, nil
}

func TestPipeline_Overlapping_Rounds_Never_Mix(t *testing.T) {
	req := require.New(t)
	router := &gatedRouter{entered: make(chan struct{}), release: make(chan struct{})}
	f := newPipelineFixture(router)
	ctx := context.Background()

	f.join(t, "R1", "a", "A", domain.ModeCar)
	f.join(t, "R1", "b", "B", domain.ModeCar)
	req.NoError(f.store.UpdateLocation("R1", "a", at(1, 1)))
	req.NoError(f.store.UpdateLocation("R1", "b", at(2, 2)))

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)

	// Given a round of A stuck in the routing call
	go func() {
		defer wg.Done()
		errs <- f.pipeline.Process(ctx, "a", at(10, 10))
	}()
	<-router.entered

	// When B reports during that round
	go func() {
		defer wg.Done()
		errs <- f.pipeline.Process(ctx, "b", at(20, 20))
	}()
	time.Sleep(50 * time.Millisecond)

	// Then B's round waits for A's round to be emitted
	req.Equal(int32(1), router.calls.Load())
	req.Empty(f.dispatcher.Events())

	close(router.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	first := f.nextSnapshot(t)
	req.Equal(10.0, *viewOf(t, first, "a").Lat)
	req.Equal(2.0, *viewOf(t, first, "b").Lat)
	req.Equal(domain.ZeroDistance, *viewOf(t, first, "a").Distance)
	req.Equal("1.00 km", *viewOf(t, first, "b").Distance)

	second := f.nextSnapshot(t)
	req.Equal(10.0, *viewOf(t, second, "a").Lat)
	req.Equal(20.0, *viewOf(t, second, "b").Lat)
	req.Equal(domain.ZeroDistance, *viewOf(t, second, "b").Distance)
	req.Equal("1.00 km", *viewOf(t, second, "a").Distance)
}
