package relay_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Temutjin2k/geo-tracker/internal/adapter/memory"
	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
	"github.com/Temutjin2k/geo-tracker/internal/service/relay"
	"github.com/Temutjin2k/geo-tracker/pkg/logger"
	ws "github.com/Temutjin2k/geo-tracker/pkg/wsHub"
)

const readTimeout = 2 * time.Second

type relayHarness struct {
	url       string
	service   *relay.Service
	snapshots *memory.SnapshotStore
}

func startRelay(t *testing.T) *relayHarness {
	t.Helper()
	snapshots := memory.NewSnapshotStore()
	return startRelayWith(t, snapshots, snapshots)
}

// startRelayWith runs the relay on store; snapshots is the memory store behind it
func startRelayWith(t *testing.T, store relay.SnapshotStore, snapshots *memory.SnapshotStore) *relayHarness {
	t.Helper()

	log := logger.NewNop()
	svc := relay.New(ws.NewConnHub(log), memory.NewBroker(), store, log)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, svc.Start(ctx))

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = svc.Serve(r.Context(), conn)
	}))

	t.Cleanup(func() {
		_ = svc.Close()
		cancel()
		srv.Close()
	})

	return &relayHarness{
		url:       "ws" + strings.TrimPrefix(srv.URL, "http"),
		service:   svc,
		snapshots: snapshots,
	}
}

type participant struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

// join dials the relay and consumes the session event
func (h *relayHarness) join(t *testing.T) *participant {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(h.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	p := &participant{t: t, conn: conn}
	env := p.read()
	require.Equal(t, types.EventSession, env.Event)

	var info models.SessionInfo
	require.NoError(t, env.Decode(&info))
	require.NotEmpty(t, info.ID)
	p.id = info.ID

	return p
}

func (p *participant) read() models.Envelope {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(readTimeout)))

	var env models.Envelope
	require.NoError(p.t, p.conn.ReadJSON(&env))
	return env
}

func (p *participant) send(event types.ChannelEvent, data any) {
	p.t.Helper()
	env, err := models.NewEnvelope(event, data)
	require.NoError(p.t, err)
	require.NoError(p.t, p.conn.WriteJSON(env))
}

func (p *participant) readLocation() models.ReceiveLocation {
	p.t.Helper()
	env := p.read()
	require.Equal(p.t, types.EventReceiveLocation, env.Event)

	var loc models.ReceiveLocation
	require.NoError(p.t, env.Decode(&loc))
	return loc
}

func TestRelay_EchoesToSender(t *testing.T) {
	h := startRelay(t)
	a := h.join(t)

	a.send(types.EventSendLocation, models.SendLocation{Latitude: 10, Longitude: 20, UserName: "Alice"})

	loc := a.readLocation()
	require.Equal(t, models.ReceiveLocation{ID: a.id, Latitude: 10, Longitude: 20, UserName: "Alice"}, loc)
}

func TestRelay_BroadcastsWithSenderID(t *testing.T) {
	h := startRelay(t)
	a := h.join(t)
	b := h.join(t)
	require.NotEqual(t, a.id, b.id)

	a.send(types.EventSendLocation, models.SendLocation{Latitude: 1, Longitude: 2, UserName: "Alice"})

	require.Equal(t, a.id, a.readLocation().ID)
	got := b.readLocation()
	require.Equal(t, a.id, got.ID)
	require.Equal(t, "Alice", got.UserName)
}

func TestRelay_KeepsPerSenderOrder(t *testing.T) {
	h := startRelay(t)
	a := h.join(t)
	b := h.join(t)

	for i := range 20 {
		a.send(types.EventSendLocation, models.SendLocation{Latitude: float64(i), Longitude: 0, UserName: "Alice"})
	}

	for i := range 20 {
		require.Equal(t, float64(i), b.readLocation().Latitude)
	}
}

func TestRelay_LateJoinerGetsSnapshotAndDepartures(t *testing.T) {
	h := startRelay(t)
	a := h.join(t)

	a.send(types.EventSendLocation, models.SendLocation{Latitude: 10, Longitude: 20, UserName: "Alice"})
	a.readLocation()

	b := h.join(t)
	replayed := b.readLocation()
	require.Equal(t, a.id, replayed.ID)
	require.Equal(t, 10.0, replayed.Latitude)

	require.NoError(t, a.conn.Close())

	env := b.read()
	require.Equal(t, types.EventUserDisconnected, env.Event)
	var departed string
	require.NoError(t, env.Decode(&departed))
	require.Equal(t, a.id, departed)

	require.Eventually(t, func() bool {
		list, err := h.snapshots.List(context.Background())
		return err == nil && len(list) == 0
	}, readTimeout, 10*time.Millisecond)
}

// gatedStore holds the next List call after reading, until release is closed
type gatedStore struct {
	*memory.SnapshotStore

	armed       atomic.Bool
	listed      chan struct{}
	release     chan struct{}
	listOnce    sync.Once
	releaseOnce sync.Once
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		SnapshotStore: memory.NewSnapshotStore(),
		listed:        make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (g *gatedStore) List(ctx context.Context) ([]models.ReceiveLocation, error) {
	list, err := g.SnapshotStore.List(ctx)
	if g.armed.CompareAndSwap(true, false) {
		g.listOnce.Do(func() { close(g.listed) })
		<-g.release
	}
	return list, err
}

func (g *gatedStore) open() {
	g.releaseOnce.Do(func() { close(g.release) })
}

func TestRelay_DepartureDuringReplayArrivesAfterIt(t *testing.T) {
	store := newGatedStore()
	h := startRelayWith(t, store, store.SnapshotStore)
	t.Cleanup(store.open)

	a := h.join(t)
	a.send(types.EventSendLocation, models.SendLocation{Latitude: 10, Longitude: 20, UserName: "Alice"})
	a.readLocation()

	store.armed.Store(true)
	b := h.join(t)

	select {
	case <-store.listed:
	case <-time.After(readTimeout):
		t.Fatal("replay did not read the snapshot")
	}

	// A leaves while B's replay still carries A's last position
	require.NoError(t, a.conn.Close())
	require.Eventually(t, func() bool {
		list, err := store.SnapshotStore.List(context.Background())
		return err == nil && len(list) == 0
	}, readTimeout, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	store.open()

	replayed := b.readLocation()
	require.Equal(t, a.id, replayed.ID)

	env := b.read()
	require.Equal(t, types.EventUserDisconnected, env.Event)
	var departed string
	require.NoError(t, env.Decode(&departed))
	require.Equal(t, a.id, departed)
}

func TestRelay_EmptyNameDefaults(t *testing.T) {
	h := startRelay(t)
	a := h.join(t)

	a.send(types.EventSendLocation, models.SendLocation{Latitude: 1, Longitude: 1, UserName: "   "})

	require.Equal(t, types.DefaultUserName, a.readLocation().UserName)
}

func TestRelay_RejectsInvalidPayloads(t *testing.T) {
	h := startRelay(t)
	a := h.join(t)

	a.send(types.EventSendLocation, models.SendLocation{Latitude: 91, Longitude: -181, UserName: "Alice"})

	env := a.read()
	require.Equal(t, types.EventError, env.Event)
	var msg models.ErrorMessage
	require.NoError(t, env.Decode(&msg))
	require.Contains(t, msg.Fields, "latitude")
	require.Contains(t, msg.Fields, "longitude")

	a.send("teleport", map[string]any{"x": 1})
	env = a.read()
	require.Equal(t, types.EventError, env.Event)

	require.NoError(t, a.conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"send-location","data":"oops"}`)))
	env = a.read()
	require.Equal(t, types.EventError, env.Event)

	// the connection survives rejected frames
	a.send(types.EventSendLocation, models.SendLocation{Latitude: 1, Longitude: 1, UserName: "Alice"})
	require.Equal(t, a.id, a.readLocation().ID)

	list, err := h.snapshots.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestRelay_ErrorPayloadShape(t *testing.T) {
	h := startRelay(t)
	a := h.join(t)

	a.send(types.EventSendLocation, models.SendLocation{Latitude: 0, Longitude: 0, UserName: strings.Repeat("x", 65)})

	env := a.read()
	require.Equal(t, types.EventError, env.Event)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &raw))
	require.Contains(t, raw, "message")
	require.Contains(t, raw, "fields")
}
