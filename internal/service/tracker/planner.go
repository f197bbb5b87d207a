package tracker

import (
	"context"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
	"github.com/Temutjin2k/geo-tracker/pkg/logger"
	wrap "github.com/Temutjin2k/geo-tracker/pkg/logger/wrapper"
	"github.com/Temutjin2k/geo-tracker/pkg/metrics"
)

const destinationTitle = "Destination"

// RouteResult is the outcome of one route request, tagged with the sequence it was issued under
type RouteResult struct {
	Seq   uint64
	Route models.Route
	Err   error
}

// Planner holds at most one destination and keeps exactly one route on the map for it.
// Every route request gets a new sequence number; only the result of the latest request is drawn.
type Planner struct {
	renderer Renderer
	router   Router
	deliver  func(RouteResult)
	spawn    func(func())

	target *models.Position
	marker Handle
	route  Handle
	seq    uint64

	log logger.Logger
}

// NewPlanner creates a planner in the Unset state. deliver receives route results
// from the request goroutine and must hand them back to the owner of the planner.
func NewPlanner(renderer Renderer, router Router, deliver func(RouteResult), log logger.Logger) *Planner {
	return &Planner{
		renderer: renderer,
		router:   router,
		deliver:  deliver,
		spawn:    func(f func()) { go f() },
		log:      log,
	}
}

// Destination implements DestinationProvider
func (p *Planner) Destination() (models.Position, bool) {
	if p.target == nil {
		return models.Position{}, false
	}
	return *p.target, true
}

func (p *Planner) IsSet() bool {
	return p.target != nil
}

// Seq returns the sequence number of the latest issued request
func (p *Planner) Seq() uint64 {
	return p.seq
}

// SelectDestination replaces the destination and drops the displayed route.
// A route is requested right away when the local position is known.
func (p *Planner) SelectDestination(ctx context.Context, target models.Position, local models.Position, localKnown bool) {
	ctx = wrap.WithAction(ctx, types.ActionSelectDestination)

	if p.marker != 0 {
		p.renderer.RemoveLayer(p.marker)
		p.marker = 0
	}
	p.clearRoute()

	p.target = &target
	// results still in flight belong to the old destination
	p.seq++

	p.marker = p.renderer.PlaceMarker(target, Popup{Title: destinationTitle})
	p.log.Info(ctx, "destination selected", "destination", target.String(), "local_known", localKnown)

	if localKnown {
		p.requestRoute(ctx, local, target)
	}
}

// OnLocalPosition recomputes the route from pos while a destination is set
func (p *Planner) OnLocalPosition(ctx context.Context, pos models.Position) {
	if p.target == nil {
		return
	}
	p.requestRoute(ctx, pos, *p.target)
}

func (p *Planner) requestRoute(ctx context.Context, from, to models.Position) {
	p.seq++
	seq := p.seq

	p.log.Debug(wrap.WithAction(ctx, types.ActionRouteRecompute), "route requested", "seq", seq, "from", from.String(), "to", to.String())

	p.spawn(func() {
		route, err := p.router.Route(ctx, from, to)
		p.deliver(RouteResult{Seq: seq, Route: route, Err: err})
	})
}

// ApplyRoute draws res if it answers the latest request and reports whether it was drawn.
func (p *Planner) ApplyRoute(ctx context.Context, res RouteResult) bool {
	ctx = wrap.WithAction(ctx, types.ActionRouteRecompute)

	if res.Seq != p.seq {
		metrics.RecordRoute("stale")
		p.log.Debug(ctx, "discarding stale route", "seq", res.Seq, "latest", p.seq)
		return false
	}

	p.clearRoute()

	if res.Err != nil {
		metrics.RecordRoute("error")
		p.log.Error(wrap.ErrorCtx(ctx, res.Err), "route recompute failed", res.Err, "seq", res.Seq)
		return false
	}

	p.route = p.renderer.DrawRoute(res.Route, RouteStyle)
	metrics.RecordRoute("success")

	return true
}

func (p *Planner) clearRoute() {
	if p.route != 0 {
		p.renderer.RemoveLayer(p.route)
		p.route = 0
	}
}

// RouteHandle returns the handle of the displayed route, 0 when none
func (p *Planner) RouteHandle() Handle {
	return p.route
}
