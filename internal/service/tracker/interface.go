package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
)

// Handle references a drawable object owned by the Renderer. Zero means no object.
type Handle uint64

// Popup is the label attached to a marker
type Popup struct {
	Title      string
	DistanceKm *float64
}

func (p Popup) String() string {
	if p.DistanceKm == nil {
		return p.Title
	}
	return fmt.Sprintf("%s | Distance to destination: %s km", p.Title, FormatDistance(*p.DistanceKm))
}

// PathStyle describes how a polyline is drawn
type PathStyle struct {
	Color  string
	Weight int
}

var (
	LocalPathStyle  = PathStyle{Color: "#FF0000", Weight: 3}
	RemotePathStyle = PathStyle{Color: "#3388ff", Weight: 3}
	RouteStyle      = PathStyle{Color: "#00f", Weight: 4}
)

type (
	// Renderer is the map surface. It draws what it is told and makes no decisions.
	Renderer interface {
		PlaceMarker(pos models.Position, popup Popup) Handle
		UpdateMarker(h Handle, pos models.Position)
		SetPopupContent(h Handle, popup Popup)
		RemoveLayer(h Handle)
		DrawPath(positions []models.Position, style PathStyle) Handle
		ExtendPath(h Handle, positions []models.Position)
		DrawRoute(route models.Route, style PathStyle) Handle
		Recenter(pos models.Position)
	}

	// Router computes route geometry between two positions
	Router interface {
		Route(ctx context.Context, from, to models.Position) (models.Route, error)
	}

	// Channel is the client side of the transport channel
	Channel interface {
		Emit(ctx context.Context, event types.ChannelEvent, payload any) error
		Listen(ctx context.Context, handler func(models.Envelope)) error
	}

	// LocationSource pushes samples at its own cadence until ctx is done.
	// onError is a non-fatal signal; Watch returns only when the source cannot continue.
	LocationSource interface {
		Watch(ctx context.Context, onSample func(models.Position), onError func(error)) error
	}

	// DestinationProvider exposes the active destination, if any
	DestinationProvider interface {
		Destination() (models.Position, bool)
	}
)

// LocationOptions mirrors the device geolocation options
type LocationOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

// DefaultLocationOptions always asks for a fresh, accurate fix within 5 seconds
func DefaultLocationOptions() LocationOptions {
	return LocationOptions{
		HighAccuracy: true,
		Timeout:      5 * time.Second,
		MaximumAge:   0,
	}
}
