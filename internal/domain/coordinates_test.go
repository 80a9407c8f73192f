package domain

import (
	"math"
	"testing"
)

func TestCacheKeyCollapsesNearbyPoints(t *testing.T) {
	a := Coordinates{Lat: 33.448376, Lng: -112.074036}
	b := Coordinates{Lat: 33.448392, Lng: -112.074011}

	if a.CacheKey(4) != b.CacheKey(4) {
		t.Fatalf("expected same bucket, got %q and %q", a.CacheKey(4), b.CacheKey(4))
	}

	c := Coordinates{Lat: 33.4495, Lng: -112.074036}
	if a.CacheKey(4) == c.CacheKey(4) {
		t.Fatalf("expected distinct buckets, both %q", a.CacheKey(4))
	}
}

func TestHaversine(t *testing.T) {
	// Phoenix to Tucson is roughly 173 km great-circle.
	phx := Coordinates{Lat: 33.4484, Lng: -112.0740}
	tus := Coordinates{Lat: 32.2226, Lng: -110.9747}

	d := Haversine(phx, tus)
	if math.Abs(d-173000) > 5000 {
		t.Fatalf("distance = %.0f m, want ~173000 m", d)
	}

	if Haversine(phx, phx) != 0 {
		t.Fatalf("zero-distance expected for identical points")
	}
}

func TestCoordinatesValid(t *testing.T) {
	cases := []struct {
		name string
		c    Coordinates
		want bool
	}{
		{"phoenix", Coordinates{Lat: 33.4, Lng: -112.0}, true},
		{"null island", Coordinates{}, false},
		{"lat out of range", Coordinates{Lat: 91, Lng: 0}, false},
		{"lng out of range", Coordinates{Lat: 0, Lng: -181}, false},
	}

	for _, tc := range cases {
		if got := tc.c.Valid(); got != tc.want {
			t.Errorf("%s: Valid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}
