package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
	"github.com/Temutjin2k/geo-tracker/pkg/logger"
	ws "github.com/Temutjin2k/geo-tracker/pkg/wsHub"
)

// Channel is the client end of the relay websocket
type Channel struct {
	conn *ws.Conn
	log  logger.Logger
}

// Dial connects to the relay at url (ws:// or wss://)
func Dial(ctx context.Context, url string, log logger.Logger) (*Channel, error) {
	const op = "wsclient.Dial"

	raw, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn := ws.NewConn(context.Background(), url, raw)
	go conn.KeepAlive(ws.PingPeriod)

	return &Channel{conn: conn, log: log}, nil
}

// Emit implements tracker.Channel
func (c *Channel) Emit(_ context.Context, event types.ChannelEvent, payload any) error {
	env, err := models.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	if err := c.conn.Send(env); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// Listen implements tracker.Channel. It returns when ctx is done or the connection is lost,
// closing the connection either way. Frames without an event name are skipped.
func (c *Channel) Listen(ctx context.Context, handler func(models.Envelope)) error {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()
	defer c.conn.Close()

	err := c.conn.Listen(func(raw json.RawMessage) error {
		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
			c.log.Debug(ctx, "skipping frame", "frame", string(raw))
			return nil
		}
		handler(env)
		return nil
	})

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil || errors.Is(err, ws.ErrConnClosed) {
		return types.ErrChannelClosed
	}
	return fmt.Errorf("%w: %v", types.ErrChannelClosed, err)
}

func (c *Channel) Close() error {
	return c.conn.Close()
}
