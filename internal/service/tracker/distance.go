package tracker

import (
	"math"
	"strconv"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
)

const EarthRadiusKm = 6371.0

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// HaversineDistance returns the great-circle distance between a and b in kilometers.
func HaversineDistance(a, b models.Position) float64 {
	lat1Rad := degreesToRadians(a.Latitude)
	lat2Rad := degreesToRadians(b.Latitude)

	deltaLat := degreesToRadians(b.Latitude - a.Latitude)
	deltaLon := degreesToRadians(b.Longitude - a.Longitude)

	h := math.Pow(math.Sin(deltaLat/2), 2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Pow(math.Sin(deltaLon/2), 2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// FormatDistance renders km with two decimals
func FormatDistance(km float64) string {
	return strconv.FormatFloat(km, 'f', 2, 64)
}
