// Package source loads feed candidates and user profiles from Postgres.
//
// Only status and eligibility filtering happens here. Ranking and radius
// filtering belong to the ranking package and are never pushed into SQL.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lidacacau/feed-service/internal/catalog"
	"lidacacau/feed-service/internal/geo"
	"lidacacau/feed-service/internal/model"
)

// AnyLevel makes OpenJobs return every open job regardless of the minimum
// worker level it requires.
const AnyLevel = math.MaxInt32

// DefaultLevel is assumed for users without a profile row.
const DefaultLevel = 1

// CandidateSource supplies the raw, unranked inputs of the feeds.
type CandidateSource interface {
	// OpenJobs returns open jobs a worker of workerLevel may take.
	OpenJobs(ctx context.Context, workerLevel int) ([]model.JobCandidate, error)
	// ActiveOffers returns every active worker offer.
	ActiveOffers(ctx context.Context) ([]model.OfferCandidate, error)
	// Profile returns the user's level and preferences.
	Profile(ctx context.Context, userID string) (model.UserProfile, error)
}

// PostgresSource reads candidates from the marketplace database.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource returns a source backed by pool.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// OpenJobs implements CandidateSource.
func (s *PostgresSource) OpenJobs(ctx context.Context, workerLevel int) ([]model.JobCandidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, producer_id::text, title, service_type_id,
		        offer_amount::float8, min_worker_level, created_at,
		        latitude, longitude
		 FROM jobs
		 WHERE status = 'open' AND min_worker_level <= $1
		 ORDER BY created_at DESC`,
		workerLevel,
	)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]model.JobCandidate, 0)
	for rows.Next() {
		var (
			j        model.JobCandidate
			lat, lng *float64
		)
		if err := rows.Scan(
			&j.ID, &j.ProducerID, &j.Title, &j.ServiceTypeID,
			&j.OfferAmount, &j.MinWorkerLevel, &j.CreatedAt,
			&lat, &lng,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		j.Location = coordinate(lat, lng)

		if err := AcceptJob(j); err != nil {
			slog.Warn("skipping job", "jobId", j.ID, "err", err)
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ActiveOffers implements CandidateSource.
func (s *PostgresSource) ActiveOffers(ctx context.Context) ([]model.OfferCandidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, worker_id::text, title, service_type_ids,
		        price_per_day::float8, price_per_hour::float8, price_per_unit::float8,
		        provides_food, provides_accommodation, provides_transport,
		        created_at, latitude, longitude
		 FROM offers
		 WHERE status = 'active'
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}
	defer rows.Close()

	offers := make([]model.OfferCandidate, 0)
	for rows.Next() {
		var (
			o        model.OfferCandidate
			lat, lng *float64
		)
		if err := rows.Scan(
			&o.ID, &o.WorkerID, &o.Title, &o.ServiceTypeIDs,
			&o.PricePerDay, &o.PricePerHour, &o.PricePerUnit,
			&o.Extras.ProvidesFood, &o.Extras.ProvidesAccommodation, &o.Extras.ProvidesTransport,
			&o.CreatedAt, &lat, &lng,
		); err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		o.Location = coordinate(lat, lng)

		if err := AcceptOffer(o); err != nil {
			slog.Warn("skipping offer", "offerId", o.ID, "err", err)
			continue
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

// Profile implements CandidateSource. A user without a profile row gets
// DefaultLevel and no preferences.
func (s *PostgresSource) Profile(ctx context.Context, userID string) (model.UserProfile, error) {
	p := model.UserProfile{ID: userID, Level: DefaultLevel}
	var preferred []string
	err := s.pool.QueryRow(ctx,
		`SELECT level, COALESCE(preferred_service_types, '{}')
		 FROM users
		 WHERE id = $1`,
		userID,
	).Scan(&p.Level, &preferred)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("query profile: %w", err)
	}
	p.Preferences = model.NewPreferences(KnownServiceTypes(preferred)...)
	return p, nil
}

// AcceptJob validates a job row and resolves its service type against the
// catalog.
func AcceptJob(j model.JobCandidate) error {
	if err := j.Validate(); err != nil {
		return err
	}
	if _, err := catalog.ParseServiceType(j.ServiceTypeID); err != nil {
		return err
	}
	return nil
}

// AcceptOffer validates an offer row and resolves every advertised service
// type against the catalog.
func AcceptOffer(o model.OfferCandidate) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if _, err := catalog.ParseAll(o.ServiceTypeIDs); err != nil {
		return err
	}
	return nil
}

// KnownServiceTypes drops preference ids missing from the catalog.
func KnownServiceTypes(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := catalog.ParseServiceType(id); err != nil {
			slog.Warn("ignoring preferred service type", "err", err)
			continue
		}
		out = append(out, id)
	}
	return out
}

// coordinate returns nil unless both halves are present.
func coordinate(lat, lng *float64) *geo.Coordinate {
	if lat == nil || lng == nil {
		return nil
	}
	return &geo.Coordinate{Latitude: *lat, Longitude: *lng}
}
