package locsource

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
	"github.com/Temutjin2k/geo-tracker/internal/service/tracker"
	"github.com/Temutjin2k/geo-tracker/pkg/logger"
)

type recorder struct {
	mu      sync.Mutex
	samples []models.Position
	errs    []error
}

func (r *recorder) onSample(p models.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, p)
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples), len(r.errs)
}

func TestParseXGPS(t *testing.T) {
	pos, err := parseXGPS([]byte("XGPSMSFS,-1.8342,54.9275,1200.5,270.0,110.2"))
	require.NoError(t, err)
	require.Equal(t, models.Position{Latitude: 54.9275, Longitude: -1.8342}, pos)

	for name, packet := range map[string]string{
		"short":        "XGPS",
		"wrong header": "XATT1,1,2,3,4,5",
		"few fields":   "XGPS1,1,2",
		"bad lat":      "XGPS1,1,north,3,4,5",
		"out of range": "XGPS1,200,10,3,4,5",
		"nan":          "XGPS1,NaN,NaN,3,4,5",
		"infinite lat": "XGPS1,1,-Inf,3,4,5",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseXGPS([]byte(packet))
			require.ErrorIs(t, err, types.ErrLocationUnavailable)
		})
	}
}

func TestParseLatLon(t *testing.T) {
	pos, err := parseLatLon(" 51.5, -0.12 ")
	require.NoError(t, err)
	require.Equal(t, models.Position{Latitude: 51.5, Longitude: -0.12}, pos)

	for name, line := range map[string]string{
		"no comma":     "51.5",
		"bad lat":      "north,1",
		"bad lon":      "1,east",
		"out of range": "91,0",
		"nan":          "NaN,NaN",
		"nan lon":      "10,nan",
		"infinite":     "+Inf,0",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseLatLon(line)
			require.ErrorIs(t, err, types.ErrLocationUnavailable)
		})
	}
}

func TestUDPSource_InvalidXGPSSignalled(t *testing.T) {
	opts := tracker.DefaultLocationOptions()
	opts.Timeout = 5 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, err := ListenUDP(ctx, "127.0.0.1:0", opts, logger.NewNop())
	require.NoError(t, err)

	var rec recorder
	go func() { _ = src.Watch(ctx, rec.onSample, rec.onError) }()

	sender, err := net.Dial("udp", src.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()

	// attitude packets share the port and are not errors
	_, err = sender.Write([]byte("XATT1,90,2,3"))
	require.NoError(t, err)
	_, err = sender.Write([]byte("XGPS1,NaN,NaN,100,90,50"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, errs := rec.counts()
		return errs == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Empty(t, rec.samples)
	require.ErrorIs(t, rec.errs[0], types.ErrLocationUnavailable)
	require.NotErrorIs(t, rec.errs[0], types.ErrLocationTimeout)
}

func TestUDPSource_SamplesAndTimeout(t *testing.T) {
	opts := tracker.DefaultLocationOptions()
	opts.Timeout = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, err := ListenUDP(ctx, "127.0.0.1:0", opts, logger.NewNop())
	require.NoError(t, err)

	var rec recorder
	done := make(chan error, 1)
	go func() { done <- src.Watch(ctx, rec.onSample, rec.onError) }()

	sender, err := net.Dial("udp", src.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()

	_, err = sender.Write([]byte("XGPS1,20.5,10.25,100,90,50"))
	require.NoError(t, err)
	_, err = sender.Write([]byte("garbage"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		samples, errs := rec.counts()
		return samples == 1 && errs >= 1
	}, 2*time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	require.Equal(t, models.Position{Latitude: 10.25, Longitude: 20.5}, rec.samples[0])
	require.ErrorIs(t, rec.errs[0], types.ErrLocationTimeout)
	rec.mu.Unlock()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("udp source did not stop")
	}
}

func TestReplaySource_PlaysTrack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.txt")
	track := "# recorded walk\n10.0,20.0\n\n10.001, 20.001\nnot-a-point\n10.002,20.002\n"
	require.NoError(t, os.WriteFile(path, []byte(track), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rec recorder
	done := make(chan error, 1)
	src := NewReplay(path, 5*time.Millisecond, false, logger.NewNop())
	go func() { done <- src.Watch(ctx, rec.onSample, rec.onError) }()

	require.Eventually(t, func() bool {
		samples, errs := rec.counts()
		return samples == 3 && errs == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	require.Equal(t, []models.Position{
		{Latitude: 10, Longitude: 20},
		{Latitude: 10.001, Longitude: 20.001},
		{Latitude: 10.002, Longitude: 20.002},
	}, rec.samples)
	require.ErrorIs(t, rec.errs[0], types.ErrLocationUnavailable)
	rec.mu.Unlock()

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestReplaySource_Loops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.txt")
	require.NoError(t, os.WriteFile(path, []byte("1,1\n2,2\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rec recorder
	src := NewReplay(path, time.Millisecond, true, logger.NewNop())
	go func() { _ = src.Watch(ctx, rec.onSample, rec.onError) }()

	require.Eventually(t, func() bool {
		samples, _ := rec.counts()
		return samples >= 4
	}, 2*time.Second, 5*time.Millisecond)
}

func TestReplaySource_MissingFile(t *testing.T) {
	src := NewReplay(filepath.Join(t.TempDir(), "missing"), 0, false, logger.NewNop())

	err := src.Watch(context.Background(), func(models.Position) {}, func(error) {})
	require.ErrorIs(t, err, os.ErrNotExist)
}
