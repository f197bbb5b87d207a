package tracker

import (
	"math"
	"testing"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
)

func TestHaversineDistance_KnownVector(t *testing.T) {
	got := HaversineDistance(models.Position{Latitude: 0, Longitude: 0}, models.Position{Latitude: 0, Longitude: 1})
	if math.Abs(got-111.19) > 0.1 {
		t.Fatalf("expected ~111.19 km, got %f", got)
	}
}

func TestHaversineDistance_Symmetric(t *testing.T) {
	a := models.Position{Latitude: 51.5074, Longitude: -0.1278}
	b := models.Position{Latitude: 48.8566, Longitude: 2.3522}

	if HaversineDistance(a, b) != HaversineDistance(b, a) {
		t.Fatalf("distance must be symmetric")
	}
}

func TestHaversineDistance_Zero(t *testing.T) {
	a := models.Position{Latitude: 10, Longitude: 20}
	if got := HaversineDistance(a, a); got != 0 {
		t.Fatalf("distance to self must be 0, got %f", got)
	}
}

func TestFormatDistance(t *testing.T) {
	cases := map[float64]string{
		0:         "0.00",
		1.234:     "1.23",
		1.236:     "1.24",
		111.19492: "111.19",
	}
	for in, want := range cases {
		if got := FormatDistance(in); got != want {
			t.Errorf("FormatDistance(%v) = %s, want %s", in, got, want)
		}
	}
}

func BenchmarkHaversineDistance(b *testing.B) {
	a := models.Position{Latitude: 10, Longitude: 20}
	c := models.Position{Latitude: 10.001, Longitude: 20.001}

	for b.Loop() {
		_ = HaversineDistance(a, c)
	}
}
