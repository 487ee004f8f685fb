// Package model defines the candidates ranked by the feed and the user data
// that drives the ranking.
package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"lidacacau/feed-service/internal/geo"
)

var validate = validator.New()

// JobCandidate is an open demand for labor posted by a producer.
type JobCandidate struct {
	ID             string          `json:"id" validate:"required"`
	ProducerID     string          `json:"producerId"`
	Title          string          `json:"title"`
	ServiceTypeID  string          `json:"serviceTypeId" validate:"required"`
	OfferAmount    float64         `json:"offerAmount" validate:"gt=0"`
	MinWorkerLevel int             `json:"minWorkerLevel" validate:"gte=0"`
	CreatedAt      time.Time       `json:"createdAt" validate:"required"`
	Location       *geo.Coordinate `json:"location,omitempty"`
}

// Validate checks the invariants a job must hold before it can be ranked.
func (j JobCandidate) Validate() error {
	if err := validate.Struct(j); err != nil {
		return fmt.Errorf("job %q: %w", j.ID, err)
	}
	return nil
}

// Extras are the benefits a worker's offer bundles in.
type Extras struct {
	ProvidesFood          bool `json:"providesFood"`
	ProvidesAccommodation bool `json:"providesAccommodation"`
	ProvidesTransport     bool `json:"providesTransport"`
}

// OfferCandidate is a worker's standing offer of labor.
type OfferCandidate struct {
	ID             string          `json:"id" validate:"required"`
	WorkerID       string          `json:"workerId" validate:"required"`
	Title          string          `json:"title"`
	ServiceTypeIDs []string        `json:"serviceTypeIds" validate:"min=1,dive,required"`
	PricePerDay    *float64        `json:"pricePerDay,omitempty" validate:"omitempty,gt=0"`
	PricePerHour   *float64        `json:"pricePerHour,omitempty" validate:"omitempty,gt=0"`
	PricePerUnit   *float64        `json:"pricePerUnit,omitempty" validate:"omitempty,gt=0"`
	CreatedAt      time.Time       `json:"createdAt" validate:"required"`
	Location       *geo.Coordinate `json:"location,omitempty"`
	Extras         Extras          `json:"extras"`
}

// Validate checks the invariants an offer must hold before it can be ranked.
func (o OfferCandidate) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("offer %q: %w", o.ID, err)
	}
	return nil
}

// UserPreferences lists the service types a user wants to see first.
type UserPreferences struct {
	PreferredServiceTypes []string `json:"preferredServiceTypes"`
}

// NewPreferences builds preferences from a list of service type ids.
func NewPreferences(ids ...string) UserPreferences {
	return UserPreferences{PreferredServiceTypes: ids}
}

// Prefers reports whether id is one of the preferred service types.
func (p UserPreferences) Prefers(id string) bool {
	for _, s := range p.PreferredServiceTypes {
		if s == id {
			return true
		}
	}
	return false
}

// UserProfile is the slice of the user record the feed needs.
type UserProfile struct {
	ID          string          `json:"id"`
	Level       int             `json:"level"`
	Preferences UserPreferences `json:"preferences"`
}

// RankedJob is a job as exposed by the feed: ordered, with the computed
// distance attached and no score.
type RankedJob struct {
	JobCandidate
	CalculatedDistance *float64 `json:"calculatedDistance"`
}

// DistanceKm returns the computed distance, nil when unknown.
func (r RankedJob) DistanceKm() *float64 { return r.CalculatedDistance }

// RankedOffer is an offer as exposed by the feed.
type RankedOffer struct {
	OfferCandidate
	CalculatedDistance *float64 `json:"calculatedDistance"`
}

// DistanceKm returns the computed distance, nil when unknown.
func (r RankedOffer) DistanceKm() *float64 { return r.CalculatedDistance }
