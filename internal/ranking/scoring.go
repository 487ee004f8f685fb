// Package ranking scores, orders and radius-filters the job and offer feeds.
//
// Every function in this package is pure: no I/O, no shared state. The wall
// clock is passed in so the same inputs always produce the same feed.
package ranking

import (
	"math"
	"time"

	"lidacacau/feed-service/internal/catalog"
	"lidacacau/feed-service/internal/geo"
	"lidacacau/feed-service/internal/model"
)

// Score components. Scores are ordering keys, not probabilities; they are
// never normalized.
const (
	jobExactMatchBonus    = 100.0
	jobCategoryMatchBonus = 30.0
	jobPriceDivisor       = 50.0

	offerMatchBonus   = 50.0
	offerPriceDivisor = 20.0
	offerExtraBonus   = 10.0

	maxFreshness      = 50.0
	maxPriceComponent = 30.0
)

// proximityBrackets are checked in order; the first bracket whose upper bound
// is >= the distance wins. Beyond the last bracket the bonus is 0.
var proximityBrackets = []struct {
	maxKm float64
	bonus float64
}{
	{10, 80},
	{25, 60},
	{50, 40},
	{100, 20},
}

// Result is the internal ranking key of one candidate. It never leaves the
// package's feed builders.
type Result struct {
	Score    float64
	Distance *float64
}

// ScoreJob scores a job from a worker's point of view.
func ScoreJob(job model.JobCandidate, prefs model.UserPreferences, userLocation geo.Coordinate, now time.Time) Result {
	var score float64

	if prefs.Prefers(job.ServiceTypeID) {
		score += jobExactMatchBonus
	}
	if categoryMatches(job.ServiceTypeID, prefs) {
		score += jobCategoryMatchBonus
	}

	score += freshness(job.CreatedAt, now)
	score += math.Min(job.OfferAmount/jobPriceDivisor, maxPriceComponent)

	distance := geo.DistanceToCandidate(userLocation, job.Location)
	score += proximityBonus(distance)

	return Result{Score: score, Distance: distance}
}

// ScoreOffer scores a worker's offer from a producer's point of view.
func ScoreOffer(offer model.OfferCandidate, prefs model.UserPreferences, userLocation geo.Coordinate, now time.Time) Result {
	var score float64

	for _, id := range offer.ServiceTypeIDs {
		if prefs.Prefers(id) {
			score += offerMatchBonus
		}
	}

	score += freshness(offer.CreatedAt, now)

	// Per-unit prices are display-only and do not count toward the score.
	if price, ok := primaryPrice(offer); ok {
		score += math.Min(price/offerPriceDivisor, maxPriceComponent)
	}

	if offer.Extras.ProvidesFood {
		score += offerExtraBonus
	}
	if offer.Extras.ProvidesAccommodation {
		score += offerExtraBonus
	}
	if offer.Extras.ProvidesTransport {
		score += offerExtraBonus
	}

	distance := geo.DistanceToCandidate(userLocation, offer.Location)
	score += proximityBonus(distance)

	return Result{Score: score, Distance: distance}
}

// categoryMatches reports whether the category prefix of id equals the
// prefix of any preferred service type.
func categoryMatches(id string, prefs model.UserPreferences) bool {
	category := catalog.Category(id)
	for _, p := range prefs.PreferredServiceTypes {
		if catalog.Category(p) == category {
			return true
		}
	}
	return false
}

// freshness decays linearly from 50 at creation to 0 at 50 hours old.
// Timestamps in the future count as brand new.
func freshness(createdAt, now time.Time) float64 {
	hours := now.Sub(createdAt).Hours()
	return math.Min(maxFreshness, math.Max(0, maxFreshness-hours))
}

// primaryPrice returns the per-day price, falling back to the per-hour price.
func primaryPrice(offer model.OfferCandidate) (float64, bool) {
	if offer.PricePerDay != nil && *offer.PricePerDay > 0 {
		return *offer.PricePerDay, true
	}
	if offer.PricePerHour != nil && *offer.PricePerHour > 0 {
		return *offer.PricePerHour, true
	}
	return 0, false
}

// proximityBonus is 0 for an unknown distance; unknown never disqualifies.
func proximityBonus(distanceKm *float64) float64 {
	if distanceKm == nil {
		return 0
	}
	for _, b := range proximityBrackets {
		if *distanceKm <= b.maxKm {
			return b.bonus
		}
	}
	return 0
}
