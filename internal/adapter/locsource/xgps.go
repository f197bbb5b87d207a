package locsource

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
	"github.com/Temutjin2k/geo-tracker/internal/domain/types"
)

var xgpsHeader = []byte("XGPS")

// errNotXGPS marks packets of other kinds (XATT, XTRAFFIC) sharing the broadcast port
var errNotXGPS = fmt.Errorf("%w: not an XGPS packet", types.ErrLocationUnavailable)

// parseXGPS reads an fs2ff/X-Plane packet: XGPS<sim>,lon,lat,alt,track,groundspeed
func parseXGPS(packet []byte) (models.Position, error) {
	if len(packet) < 6 || !bytes.Equal(packet[:4], xgpsHeader) {
		return models.Position{}, errNotXGPS
	}

	parts := strings.Split(strings.TrimSpace(string(packet[4:])), ",")
	if len(parts) < 6 {
		return models.Position{}, fmt.Errorf("%w: expected at least 6 fields, got %d", types.ErrLocationUnavailable, len(parts))
	}

	lon, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return models.Position{}, fmt.Errorf("%w: longitude: %v", types.ErrLocationUnavailable, err)
	}
	lat, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return models.Position{}, fmt.Errorf("%w: latitude: %v", types.ErrLocationUnavailable, err)
	}

	return checkRange(models.Position{Latitude: lat, Longitude: lon})
}

func checkRange(p models.Position) (models.Position, error) {
	if !finite(p.Latitude) || !finite(p.Longitude) {
		return models.Position{}, fmt.Errorf("%w: %s is not a number", types.ErrLocationUnavailable, p)
	}
	if p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
		return models.Position{}, fmt.Errorf("%w: %s out of range", types.ErrLocationUnavailable, p)
	}
	return p, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
