package renderer

import (
	"context"
	"sync"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
	"github.com/Temutjin2k/geo-tracker/internal/service/tracker"
	"github.com/Temutjin2k/geo-tracker/pkg/logger"
	wrap "github.com/Temutjin2k/geo-tracker/pkg/logger/wrapper"
)

type layerKind string

const (
	kindMarker layerKind = "marker"
	kindPath   layerKind = "path"
	kindRoute  layerKind = "route"
)

type layer struct {
	kind   layerKind
	points int
}

// Console is a headless map: it allocates handles, tracks live layers and logs every drawing command
type Console struct {
	mu     sync.Mutex
	next   tracker.Handle
	layers map[tracker.Handle]layer
	center *models.Position

	log logger.Logger
}

func NewConsole(log logger.Logger) *Console {
	return &Console{
		layers: make(map[tracker.Handle]layer),
		log:    log,
	}
}

func (c *Console) ctx() context.Context {
	return wrap.WithAction(context.Background(), types.ActionRender)
}

func (c *Console) add(kind layerKind, points int) tracker.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	c.layers[c.next] = layer{kind: kind, points: points}
	return c.next
}

func (c *Console) PlaceMarker(pos models.Position, popup tracker.Popup) tracker.Handle {
	h := c.add(kindMarker, 1)
	c.log.Info(c.ctx(), "marker placed", "handle", uint64(h), "position", pos.String(), "popup", popup.String())
	return h
}

func (c *Console) UpdateMarker(h tracker.Handle, pos models.Position) {
	c.log.Debug(c.ctx(), "marker moved", "handle", uint64(h), "position", pos.String())
}

func (c *Console) SetPopupContent(h tracker.Handle, popup tracker.Popup) {
	c.log.Debug(c.ctx(), "popup updated", "handle", uint64(h), "popup", popup.String())
}

func (c *Console) RemoveLayer(h tracker.Handle) {
	c.mu.Lock()
	l, ok := c.layers[h]
	delete(c.layers, h)
	c.mu.Unlock()

	if !ok {
		c.log.Warn(c.ctx(), "removing unknown layer", "handle", uint64(h))
		return
	}
	c.log.Info(c.ctx(), "layer removed", "handle", uint64(h), "kind", string(l.kind))
}

func (c *Console) DrawPath(positions []models.Position, style tracker.PathStyle) tracker.Handle {
	h := c.add(kindPath, len(positions))
	c.log.Info(c.ctx(), "path drawn", "handle", uint64(h), "points", len(positions), "color", style.Color, "weight", style.Weight)
	return h
}

func (c *Console) ExtendPath(h tracker.Handle, positions []models.Position) {
	c.mu.Lock()
	if l, ok := c.layers[h]; ok {
		l.points = len(positions)
		c.layers[h] = l
	}
	c.mu.Unlock()

	c.log.Debug(c.ctx(), "path extended", "handle", uint64(h), "points", len(positions))
}

func (c *Console) DrawRoute(route models.Route, style tracker.PathStyle) tracker.Handle {
	h := c.add(kindRoute, len(route.Geometry))
	c.log.Info(c.ctx(), "route drawn",
		"handle", uint64(h),
		"points", len(route.Geometry),
		"distance_m", route.DistanceMeters,
		"duration_s", route.DurationSeconds,
		"color", style.Color,
	)
	return h
}

func (c *Console) Recenter(pos models.Position) {
	c.mu.Lock()
	c.center = &pos
	c.mu.Unlock()

	c.log.Debug(c.ctx(), "view recentered", "position", pos.String())
}

// Counts reports live layers per kind
func (c *Console) Counts() (markers, paths, routes int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range c.layers {
		switch l.kind {
		case kindMarker:
			markers++
		case kindPath:
			paths++
		case kindRoute:
			routes++
		}
	}
	return markers, paths, routes
}

// Center returns the last recentered position
func (c *Console) Center() (models.Position, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.center == nil {
		return models.Position{}, false
	}
	return *c.center, true
}
