package ranking

import (
	"math"
	"time"

	"lidacacau/feed-service/internal/geo"
	"lidacacau/feed-service/internal/model"
)

var (
	testNow  = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	testUser = geo.Coordinate{Latitude: 0, Longitude: 0}
)

// kmPerDegree is the length of one degree of latitude on the haversine sphere.
var kmPerDegree = geo.EarthRadiusKm * math.Pi / 180

// northOf returns a coordinate roughly km kilometers north of the test user.
func northOf(km float64) *geo.Coordinate {
	return &geo.Coordinate{Latitude: km / kmPerDegree, Longitude: 0}
}

func hoursAgo(h float64) time.Time {
	return testNow.Add(-time.Duration(h * float64(time.Hour)))
}

func job(id, service string, amount float64, created time.Time, loc *geo.Coordinate) model.JobCandidate {
	return model.JobCandidate{ID: id, ServiceTypeID: service, OfferAmount: amount, CreatedAt: created, Location: loc}
}

func ptr(f float64) *float64 { return &f }

func ids[T interface{ DistanceKm() *float64 }](items []T, id func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, id(it))
	}
	return out
}

func jobID(r model.RankedJob) string     { return r.ID }
func offerID(r model.RankedOffer) string { return r.ID }

type setOf map[string]struct{}

func (s setOf) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

func newSet(ids ...string) setOf {
	s := setOf{}
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}
