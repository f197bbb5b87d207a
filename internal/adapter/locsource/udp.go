package locsource

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
	"github.com/Temutjin2k/geo-tracker/internal/service/tracker"
	"github.com/Temutjin2k/geo-tracker/pkg/logger"
	wrap "github.com/Temutjin2k/geo-tracker/pkg/logger/wrapper"
)

const (
	DefaultUDPAddr = "0.0.0.0:49002"

	packetSize = 1024
)

// UDPSource listens for XGPS broadcasts from a flight simulator or a GPS bridge.
// A sample is raised for every valid packet. Malformed XGPS packets raise ErrLocationUnavailable,
// no packet within Timeout raises ErrLocationTimeout, other packet kinds are ignored.
type UDPSource struct {
	conn net.PacketConn
	opts tracker.LocationOptions
	log  logger.Logger
}

// ListenUDP binds addr right away so the caller learns about a busy port before watching
func ListenUDP(ctx context.Context, addr string, opts tracker.LocationOptions, log logger.Logger) (*UDPSource, error) {
	if addr == "" {
		addr = DefaultUDPAddr
	}

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}

	return &UDPSource{conn: conn, opts: opts, log: log}, nil
}

func (s *UDPSource) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Watch implements tracker.LocationSource. It closes the socket when it returns.
func (s *UDPSource) Watch(ctx context.Context, onSample func(models.Position), onError func(error)) error {
	ctx = wrap.WithAction(ctx, types.ActionPublishLocation)

	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()
	defer s.conn.Close()

	s.log.Info(ctx, "listening for XGPS broadcasts", "address", s.conn.LocalAddr().String())

	buf := make([]byte, packetSize)
	for {
		if s.opts.Timeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.Timeout))
		}

		n, _, err := s.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			var netErr net.Error
			switch {
			case errors.As(err, &netErr) && netErr.Timeout():
				onError(types.ErrLocationTimeout)
				continue
			case errors.Is(err, net.ErrClosed):
				return fmt.Errorf("udp source: %w", err)
			default:
				onError(fmt.Errorf("%w: %v", types.ErrLocationUnavailable, err))
				continue
			}
		}

		pos, err := parseXGPS(buf[:n])
		switch {
		case errors.Is(err, errNotXGPS):
			s.log.Debug(ctx, "skipping packet", "error", err.Error(), "length", n)
			continue
		case err != nil:
			onError(err)
			continue
		}

		onSample(pos)
	}
}
