package ranking

import (
	"sort"
	"time"

	"lidacacau/feed-service/internal/geo"
	"lidacacau/feed-service/internal/model"
)

// IDSet is the read side of the dismissed-id set.
type IDSet interface {
	Contains(id string) bool
}

type scoredJob struct {
	job    model.JobCandidate
	result Result
}

type scoredOffer struct {
	offer  model.OfferCandidate
	result Result
}

// BuildJobFeed drops dismissed jobs, scores the rest and returns them ordered
// by descending score. Equal scores keep their fetch order. The output has one
// entry per surviving candidate; nothing is truncated.
func BuildJobFeed(candidates []model.JobCandidate, dismissed IDSet, prefs model.UserPreferences, userLocation geo.Coordinate, now time.Time) []model.RankedJob {
	scored := make([]scoredJob, 0, len(candidates))
	for _, c := range candidates {
		if dismissed != nil && dismissed.Contains(c.ID) {
			continue
		}
		scored = append(scored, scoredJob{job: c, result: ScoreJob(c, prefs, userLocation, now)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].result.Score > scored[j].result.Score
	})

	out := make([]model.RankedJob, 0, len(scored))
	for _, s := range scored {
		out = append(out, model.RankedJob{JobCandidate: s.job, CalculatedDistance: s.result.Distance})
	}
	return out
}

// BuildOfferFeed scores offers for a producer and returns them ordered by
// descending score. Offers owned by excludeOwnerID are never included.
func BuildOfferFeed(candidates []model.OfferCandidate, excludeOwnerID string, prefs model.UserPreferences, userLocation geo.Coordinate, now time.Time) []model.RankedOffer {
	scored := make([]scoredOffer, 0, len(candidates))
	for _, c := range candidates {
		if excludeOwnerID != "" && c.WorkerID == excludeOwnerID {
			continue
		}
		scored = append(scored, scoredOffer{offer: c, result: ScoreOffer(c, prefs, userLocation, now)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].result.Score > scored[j].result.Score
	})

	out := make([]model.RankedOffer, 0, len(scored))
	for _, s := range scored {
		out = append(out, model.RankedOffer{OfferCandidate: s.offer, CalculatedDistance: s.result.Distance})
	}
	return out
}
