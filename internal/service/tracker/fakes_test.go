package tracker

import (
	"context"
	"errors"
	"sync"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
)

type fakeRenderer struct {
	mu sync.Mutex

	next      Handle
	markers   map[Handle]models.Position
	popups    map[Handle]Popup
	paths     map[Handle][]models.Position
	styles    map[Handle]PathStyle
	routes    map[Handle]models.Route
	recenters []models.Position
	removed   []Handle
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		markers: make(map[Handle]models.Position),
		popups:  make(map[Handle]Popup),
		paths:   make(map[Handle][]models.Position),
		styles:  make(map[Handle]PathStyle),
		routes:  make(map[Handle]models.Route),
	}
}

func (r *fakeRenderer) alloc() Handle {
	r.next++
	return r.next
}

func (r *fakeRenderer) PlaceMarker(pos models.Position, popup Popup) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.alloc()
	r.markers[h] = pos
	r.popups[h] = popup
	return h
}

func (r *fakeRenderer) UpdateMarker(h Handle, pos models.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markers[h] = pos
}

func (r *fakeRenderer) SetPopupContent(h Handle, popup Popup) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.popups[h] = popup
}

func (r *fakeRenderer) RemoveLayer(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, h)
	delete(r.markers, h)
	delete(r.popups, h)
	delete(r.paths, h)
	delete(r.styles, h)
	delete(r.routes, h)
}

func (r *fakeRenderer) DrawPath(positions []models.Position, style PathStyle) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.alloc()
	r.paths[h] = positions
	r.styles[h] = style
	return h
}

func (r *fakeRenderer) ExtendPath(h Handle, positions []models.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths[h] = positions
}

func (r *fakeRenderer) DrawRoute(route models.Route, style PathStyle) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.alloc()
	r.routes[h] = route
	r.styles[h] = style
	return h
}

func (r *fakeRenderer) Recenter(pos models.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recenters = append(r.recenters, pos)
}

func (r *fakeRenderer) counts() (markers, paths, routes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.markers), len(r.paths), len(r.routes)
}

type routeRequest struct {
	From, To models.Position
}

type fakeRouter struct {
	mu       sync.Mutex
	requests []routeRequest
	err      error
}

func (f *fakeRouter) Route(_ context.Context, from, to models.Position) (models.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, routeRequest{From: from, To: to})
	if f.err != nil {
		return models.Route{}, f.err
	}
	return models.Route{From: from, To: to, Geometry: []models.Position{from, to}}, nil
}

func (f *fakeRouter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type emitted struct {
	Event   types.ChannelEvent
	Payload any
}

type fakeChannel struct {
	mu      sync.Mutex
	emitted []emitted
	err     error
	inbox   chan models.Envelope
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{inbox: make(chan models.Envelope, 16)}
}

func (c *fakeChannel) Emit(_ context.Context, event types.ChannelEvent, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.emitted = append(c.emitted, emitted{Event: event, Payload: payload})
	return nil
}

func (c *fakeChannel) Listen(ctx context.Context, handler func(models.Envelope)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-c.inbox:
			if !ok {
				return errors.New("closed")
			}
			handler(env)
		}
	}
}

func (c *fakeChannel) sent() []emitted {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]emitted(nil), c.emitted...)
}

type fakeSource struct {
	samples []models.Position
	errs    []error
}

func (s *fakeSource) Watch(ctx context.Context, onSample func(models.Position), onError func(error)) error {
	for _, err := range s.errs {
		onError(err)
	}
	for _, pos := range s.samples {
		onSample(pos)
	}
	<-ctx.Done()
	return ctx.Err()
}

type staticDestination struct {
	pos models.Position
	set bool
}

func (d *staticDestination) Destination() (models.Position, bool) {
	return d.pos, d.set
}
