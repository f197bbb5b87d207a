package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
	"github.com/Temutjin2k/geo-tracker/pkg/logger"
	wrap "github.com/Temutjin2k/geo-tracker/pkg/logger/wrapper"
)

const eventBuffer = 64

// event runs on the session goroutine, to completion, one at a time
type event func(ctx context.Context)

// Session is the single-threaded core of a client. Channel messages, location samples,
// destination selections and route results are all queued onto one loop, so the store,
// planner and publisher are never touched concurrently.
type Session struct {
	store     *Store
	planner   *Planner
	publisher *Publisher

	channel Channel
	source  LocationSource

	events   chan event
	done     chan struct{}
	doneOnce sync.Once

	log logger.Logger
}

type SessionConfig struct {
	UserName      string
	MaxPathLength int
}

func NewSession(cfg SessionConfig, channel Channel, source LocationSource, renderer Renderer, router Router, log logger.Logger) *Session {
	s := &Session{
		channel: channel,
		source:  source,
		events:  make(chan event, eventBuffer),
		done:    make(chan struct{}),
		log:     log,
	}

	s.planner = NewPlanner(renderer, router, s.onRouteResult, log)
	s.store = NewStore(renderer, s.planner, cfg.MaxPathLength, log)
	s.publisher = NewPublisher(channel, s.planner, cfg.UserName, log)

	return s
}

// Run processes events until ctx is done or the channel stops.
// A lost channel ends the session; location source failures do not.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.doneOnce.Do(func() { close(s.done) })
	}()

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- s.channel.Listen(ctx, s.HandleEnvelope)
	}()

	if s.source != nil {
		go func() {
			err := s.source.Watch(ctx, s.onSample, s.onLocationError)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.post(func(ctx context.Context) {
					s.log.Error(ctx, "location source stopped", err)
				})
			}
		}()
	}

	s.log.Info(ctx, "session started", "user_name", s.publisher.UserName())

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-listenErr:
			if ctx.Err() != nil {
				return nil
			}
			if err == nil {
				err = types.ErrChannelClosed
			}
			return fmt.Errorf("session: %w", err)
		case ev := <-s.events:
			ev(ctx)
		}
	}
}

// post queues fn on the loop; false once the session has ended
func (s *Session) post(fn event) bool {
	select {
	case s.events <- fn:
		return true
	case <-s.done:
		return false
	}
}

// HandleEnvelope queues an inbound channel message
func (s *Session) HandleEnvelope(env models.Envelope) {
	s.post(func(ctx context.Context) {
		s.dispatch(ctx, env)
	})
}

func (s *Session) dispatch(ctx context.Context, env models.Envelope) {
	switch env.Event {
	case types.EventSession:
		var info models.SessionInfo
		if err := env.Decode(&info); err != nil {
			s.log.Warn(ctx, "bad session payload", "error", err.Error())
			return
		}
		s.store.SetLocalID(info.ID)
		s.log.Info(wrap.WithParticipantID(ctx, info.ID), "session id assigned")

	case types.EventReceiveLocation:
		var msg models.ReceiveLocation
		if err := env.Decode(&msg); err != nil {
			s.log.Warn(ctx, "bad receive-location payload", "error", err.Error())
			return
		}
		s.store.ApplyUpdate(ctx, msg.ID, msg.Position(), msg.UserName)

	case types.EventUserDisconnected:
		var id string
		if err := env.Decode(&id); err != nil {
			s.log.Warn(ctx, "bad user-disconnected payload", "error", err.Error())
			return
		}
		s.store.RemoveParticipant(ctx, id)

	case types.EventError:
		var msg models.ErrorMessage
		_ = env.Decode(&msg)
		s.log.Warn(ctx, "relay rejected a message", "message", msg.Message, "fields", msg.Fields)

	default:
		s.log.Debug(ctx, "ignoring unknown event", "event", env.Event.String())
	}
}

func (s *Session) onSample(pos models.Position) {
	s.post(func(ctx context.Context) {
		s.publisher.OnSample(ctx, pos)
	})
}

func (s *Session) onLocationError(err error) {
	s.post(func(ctx context.Context) {
		s.publisher.OnError(ctx, err)
	})
}

func (s *Session) onRouteResult(res RouteResult) {
	s.post(func(ctx context.Context) {
		s.planner.ApplyRoute(ctx, res)
	})
}

// SelectDestination queues a destination change, as a click on the map would
func (s *Session) SelectDestination(target models.Position) {
	s.post(func(ctx context.Context) {
		local, known := s.publisher.LocalPosition()
		s.planner.SelectDestination(ctx, target, local, known)
	})
}

// Snapshot is a consistent view of the session taken on the loop
type Snapshot struct {
	LocalID       string
	Participants  []Participant
	Destination   *models.Position
	LocalPosition *models.Position
}

// Snapshot asks the loop for a copy of its state
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)

	ok := s.post(func(context.Context) {
		snap := Snapshot{
			LocalID:      s.store.LocalID(),
			Participants: s.store.Participants(),
		}
		if dest, set := s.planner.Destination(); set {
			snap.Destination = &dest
		}
		if local, known := s.publisher.LocalPosition(); known {
			snap.LocalPosition = &local
		}
		reply <- snap
	})
	if !ok {
		return Snapshot{}, types.ErrChannelClosed
	}

	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-s.done:
		return Snapshot{}, types.ErrChannelClosed
	}
}
