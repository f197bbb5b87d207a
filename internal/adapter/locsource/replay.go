package locsource

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
	"github.com/Temutjin2k/geo-tracker/pkg/logger"
	wrap "github.com/Temutjin2k/geo-tracker/pkg/logger/wrapper"
)

const DefaultReplayInterval = time.Second

// ReplaySource plays back a recorded track: one "lat,lon" per line, blank lines and # comments skipped.
// After the last line the final position stays current unless Loop is set.
type ReplaySource struct {
	path     string
	interval time.Duration
	loop     bool
	log      logger.Logger
}

func NewReplay(path string, interval time.Duration, loop bool, log logger.Logger) *ReplaySource {
	if interval <= 0 {
		interval = DefaultReplayInterval
	}
	return &ReplaySource{path: path, interval: interval, loop: loop, log: log}
}

// Watch implements tracker.LocationSource
func (s *ReplaySource) Watch(ctx context.Context, onSample func(models.Position), onError func(error)) error {
	ctx = wrap.WithAction(ctx, types.ActionPublishLocation)

	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("replay source: %w", err)
	}
	defer f.Close()

	s.log.Info(ctx, "replaying track", "path", s.path, "interval", s.interval.String(), "loop", s.loop)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.play(ctx, f, ticker.C, onSample, onError); err != nil {
			return err
		}
		if !s.loop {
			<-ctx.Done()
			return ctx.Err()
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("replay source: rewind: %w", err)
		}
	}
}

// play emits the lines of r, the first one immediately and the rest one per tick
func (s *ReplaySource) play(ctx context.Context, r io.Reader, tick <-chan time.Time, onSample func(models.Position), onError func(error)) error {
	scanner := bufio.NewScanner(r)
	first := true
	line := 0

	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		if !first {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		}
		first = false

		pos, err := parseLatLon(text)
		if err != nil {
			onError(fmt.Errorf("line %d: %w", line, err))
			continue
		}
		onSample(pos)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("replay source: %w", err)
	}
	return nil
}

func parseLatLon(text string) (models.Position, error) {
	latStr, lonStr, ok := strings.Cut(text, ",")
	if !ok {
		return models.Position{}, fmt.Errorf("%w: expected \"lat,lon\", got %q", types.ErrLocationUnavailable, text)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return models.Position{}, fmt.Errorf("%w: latitude: %v", types.ErrLocationUnavailable, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return models.Position{}, fmt.Errorf("%w: longitude: %v", types.ErrLocationUnavailable, err)
	}

	return checkRange(models.Position{Latitude: lat, Longitude: lon})
}
