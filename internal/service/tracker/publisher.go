package tracker

import (
	"context"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
	"github.com/Temutjin2k/geo-tracker/pkg/logger"
	wrap "github.com/Temutjin2k/geo-tracker/pkg/logger/wrapper"
	"github.com/Temutjin2k/geo-tracker/pkg/metrics"
)

// Publisher emits every local sample on the channel and keeps the planner in step.
// Failed emits are not retried; the next sample supersedes them.
type Publisher struct {
	channel  Channel
	planner  *Planner
	userName string

	local *models.Position

	log logger.Logger
}

func NewPublisher(channel Channel, planner *Planner, userName string, log logger.Logger) *Publisher {
	if userName == "" {
		userName = types.DefaultUserName
	}

	return &Publisher{
		channel:  channel,
		planner:  planner,
		userName: userName,
		log:      log,
	}
}

// LocalPosition returns the last sample; false while unknown
func (p *Publisher) LocalPosition() (models.Position, bool) {
	if p.local == nil {
		return models.Position{}, false
	}
	return *p.local, true
}

func (p *Publisher) UserName() string {
	return p.userName
}

// OnSample handles one fresh sample from the location source
func (p *Publisher) OnSample(ctx context.Context, pos models.Position) {
	ctx = wrap.WithAction(ctx, types.ActionPublishLocation)

	p.local = &pos
	metrics.LocationSamplesTotal.WithLabelValues("success").Inc()

	msg := models.SendLocation{
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		UserName:  p.userName,
	}
	if err := p.channel.Emit(ctx, types.EventSendLocation, msg); err != nil {
		p.log.Error(wrap.ErrorCtx(ctx, err), "failed to publish location", err)
	}

	p.planner.OnLocalPosition(ctx, pos)
}

// OnError logs a location source failure. The last known position is kept.
func (p *Publisher) OnError(ctx context.Context, err error) {
	metrics.LocationSamplesTotal.WithLabelValues("error").Inc()
	p.log.Warn(wrap.WithAction(ctx, types.ActionLocationError), "location unavailable", "error", err.Error())
}
