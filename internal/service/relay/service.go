package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
	"github.com/Temutjin2k/geo-tracker/pkg/logger"
	wrap "github.com/Temutjin2k/geo-tracker/pkg/logger/wrapper"
	"github.com/Temutjin2k/geo-tracker/pkg/metrics"
	"github.com/Temutjin2k/geo-tracker/pkg/tracing"
	ws "github.com/Temutjin2k/geo-tracker/pkg/wsHub"
)

// Service is the fan-out relay. It names every connection, records the latest position of each
// participant and rebroadcasts positions and departures to every connection, the sender included.
type Service struct {
	hub        *ws.ConnectionHub
	broker     Broker
	snapshots  SnapshotStore
	validate   *validator.Validate
	instanceID string
	log        logger.Logger

	// replayMu orders a joiner's snapshot replay against live fan-out
	replayMu sync.Mutex
}

func New(hub *ws.ConnectionHub, broker Broker, snapshots SnapshotStore, log logger.Logger) *Service {
	return &Service{
		hub:        hub,
		broker:     broker,
		snapshots:  snapshots,
		validate:   newValidator(),
		instanceID: uuid.NewString(),
		log:        log,
	}
}

// InstanceID identifies this relay process on the broker
func (s *Service) InstanceID() string {
	return s.instanceID
}

// Start subscribes to the broker. Events are fanned out until ctx is done or the broker is closed.
func (s *Service) Start(ctx context.Context) error {
	const op = "Service.Start"

	if err := s.broker.Subscribe(ctx, s.fanOut); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info(wrap.WithAction(ctx, types.ActionFanOut), "relay subscribed to broker", "instance_id", s.instanceID)
	return nil
}

// Close drops every connection and stops the broker
func (s *Service) Close() error {
	s.hub.Close()
	return s.broker.Close()
}

func (s *Service) fanOut(ctx context.Context, ev models.RelayEvent) {
	ctx = wrap.WithAction(ctx, types.ActionFanOut)

	env, err := ev.Envelope()
	if err != nil {
		metrics.RecordRelayed("unknown", err)
		s.log.Warn(ctx, "dropping relay event", "origin", ev.Origin, "error", err.Error())
		return
	}

	s.replayMu.Lock()
	sent, err := s.hub.Broadcast(env)
	s.replayMu.Unlock()

	metrics.RecordRelayed(env.Event.String(), err)
	if err != nil {
		s.log.Warn(ctx, "fan-out partially failed", "event", env.Event.String(), "delivered", sent, "error", err.Error())
	}
}

// Serve runs one participant connection until the peer leaves or the connection is closed.
func (s *Service) Serve(ctx context.Context, wsConn *websocket.Conn) error {
	const op = "Service.Serve"

	id := uuid.NewString()
	ctx = wrap.WithParticipantID(ctx, id)
	conn := ws.NewConn(ctx, id, wsConn)

	if err := s.Join(ctx, conn); err != nil {
		_ = conn.Close()
		return fmt.Errorf("%s: %w", op, err)
	}
	defer s.Leave(context.WithoutCancel(ctx), id)

	go conn.KeepAlive(ws.PingPeriod)

	// messages of one connection are handled one at a time, which keeps them ordered on the broker
	err := conn.Listen(func(raw json.RawMessage) error {
		if err := s.HandleMessage(ctx, conn, raw); err != nil {
			s.log.Error(wrap.ErrorCtx(ctx, err), "failed to relay message", err)
		}
		return nil
	})
	if err != nil && !isClosure(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Join greets conn with its id, registers it for fan-out and replays the known positions of the others
func (s *Service) Join(ctx context.Context, conn *ws.Conn) error {
	const op = "Service.Join"
	ctx = wrap.WithAction(wrap.WithParticipantID(ctx, conn.ID()), types.ActionParticipantJoined)

	session, err := models.NewEnvelope(types.EventSession, models.SessionInfo{ID: conn.ID()})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := conn.Send(session); err != nil {
		return fmt.Errorf("%s: send session: %w", op, err)
	}

	// Live events wait until the replay is written. Anything broadcast before is already in the
	// snapshot, anything after reaches conn behind the replay, so a departure never precedes
	// the stale position it removes.
	s.replayMu.Lock()
	defer s.replayMu.Unlock()

	if err := s.hub.Add(conn); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.WebSocketConnectionsGauge.WithLabelValues(string(types.RelayService)).Set(float64(s.hub.Len()))

	known, err := s.snapshots.List(ctx)
	if err != nil {
		s.log.Warn(ctx, "snapshot unavailable, skipping replay", "error", err.Error())
		known = nil
	}

	for _, loc := range known {
		if loc.ID == conn.ID() {
			continue
		}
		env, err := models.NewEnvelope(types.EventReceiveLocation, loc)
		if err != nil {
			continue
		}
		if err := conn.Send(env); err != nil {
			_ = s.hub.Delete(conn.ID())
			return fmt.Errorf("%s: replay: %w", op, err)
		}
	}

	s.log.Info(ctx, "participant joined", "replayed", len(known), "connections", s.hub.Len())
	return nil
}

// HandleMessage processes one frame read from conn. Bad frames are answered on conn only.
func (s *Service) HandleMessage(ctx context.Context, conn *ws.Conn, raw json.RawMessage) error {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.reject(ctx, conn, types.ErrInvalidPayload.Error(), nil)
		return nil
	}

	switch env.Event {
	case types.EventSendLocation:
		var msg models.SendLocation
		if err := env.Decode(&msg); err != nil {
			s.reject(ctx, conn, err.Error(), nil)
			return nil
		}
		if err := s.validate.Struct(msg); err != nil {
			metrics.RejectedLocationsTotal.Inc()
			s.reject(ctx, conn, "invalid send-location payload", validationFields(err))
			return nil
		}
		return s.RelayLocation(ctx, conn.ID(), msg)

	default:
		s.reject(ctx, conn, fmt.Sprintf("%s: %q", types.ErrUnknownEvent, env.Event), nil)
		return nil
	}
}

// RelayLocation records the sender's position and publishes it tagged with the sender id
func (s *Service) RelayLocation(ctx context.Context, id string, msg models.SendLocation) error {
	const op = "Service.RelayLocation"
	ctx = wrap.WithAction(wrap.WithParticipantID(ctx, id), types.ActionRelayLocation)

	ctx, span := tracing.Tracer().Start(ctx, "relay.location")
	defer span.End()
	span.SetAttributes(attribute.String("participant.id", id))

	name := strings.TrimSpace(msg.UserName)
	if name == "" {
		name = types.DefaultUserName
	}

	loc := models.ReceiveLocation{
		ID:        id,
		Latitude:  msg.Latitude,
		Longitude: msg.Longitude,
		UserName:  name,
	}

	if err := s.snapshots.Put(ctx, loc); err != nil {
		s.log.Warn(ctx, "failed to record snapshot", "error", err.Error())
	}

	if err := s.broker.Publish(ctx, models.RelayEvent{Origin: s.instanceID, Location: &loc}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	return nil
}

// Leave unregisters id, forgets its position and announces the departure
func (s *Service) Leave(ctx context.Context, id string) {
	ctx = wrap.WithAction(wrap.WithParticipantID(ctx, id), types.ActionParticipantLeft)

	if err := s.hub.Delete(id); err != nil && !errors.Is(err, ws.ErrConnIsNotFound) {
		s.log.Warn(ctx, "failed to remove connection", "error", err.Error())
	}
	metrics.WebSocketConnectionsGauge.WithLabelValues(string(types.RelayService)).Set(float64(s.hub.Len()))

	if err := s.snapshots.Delete(ctx, id); err != nil {
		s.log.Warn(ctx, "failed to delete snapshot", "error", err.Error())
	}

	if err := s.broker.Publish(ctx, models.RelayEvent{Origin: s.instanceID, DepartedID: id}); err != nil {
		s.log.Error(wrap.ErrorCtx(ctx, err), "failed to announce departure", err)
		return
	}

	s.log.Info(ctx, "participant left", "connections", s.hub.Len())
}

func (s *Service) reject(ctx context.Context, conn *ws.Conn, message string, fields map[string]string) {
	env, err := models.NewEnvelope(types.EventError, models.ErrorMessage{Message: message, Fields: fields})
	if err != nil {
		return
	}
	if err := conn.Send(env); err != nil {
		s.log.Warn(ctx, "failed to send error event", "error", err.Error())
	}
}

// isClosure reports whether err only says the connection ended
func isClosure(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return true
	}
	return errors.Is(err, ws.ErrConnClosed) || errors.Is(err, net.ErrClosed)
}
