// Package feed assembles the job and offer feeds for the mobile app.
//
// It is transport-agnostic: the HTTP handler in this package and the rank
// command both drive it. Upstream and persistence failures are recovered here
// and never reach the caller; the only errors returned are caller mistakes.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"lidacacau/feed-service/internal/dismissal"
	"lidacacau/feed-service/internal/geo"
	"lidacacau/feed-service/internal/model"
	"lidacacau/feed-service/internal/ranking"
	"lidacacau/feed-service/internal/source"
)

// ─── Service ─────────────────────────────────────────────────────────────────

// Service encapsulates feed assembly, dismissal and radius viewing.
type Service struct {
	src      source.CandidateSource
	sessions *dismissal.Sessions
	events   Publisher
	fallback geo.Coordinate
	timeout  time.Duration
	now      func() time.Time
}

// NewService returns a configured Service. timeout bounds every upstream call;
// fallback replaces a missing device location.
func NewService(src source.CandidateSource, sessions *dismissal.Sessions, events Publisher, fallback geo.Coordinate, timeout time.Duration) *Service {
	if events == nil {
		events = NopPublisher{}
	}
	return &Service{
		src:      src,
		sessions: sessions,
		events:   events,
		fallback: fallback,
		timeout:  timeout,
		now:      time.Now,
	}
}

// JobFeedRequest asks for a worker's job feed.
type JobFeedRequest struct {
	UserID   string
	DeviceID string
	Location *geo.Coordinate // nil when the device could not report one
	Radius   ranking.Radius
}

// OfferFeedRequest asks for a producer's offer feed.
type OfferFeedRequest struct {
	ProducerID string
	Location   *geo.Coordinate
	Radius     ranking.Radius
}

// DismissRequest records a swipe-away.
type DismissRequest struct {
	UserID   string
	DeviceID string
	JobID    string
}

// ─── Business logic ──────────────────────────────────────────────────────────

// JobFeed fetches, ranks and holds the device's job feed, then returns it
// narrowed to req.Radius. If a newer load for the same device finished
// first, that newer feed is returned instead.
func (s *Service) JobFeed(ctx context.Context, req JobFeedRequest) ([]model.RankedJob, error) {
	if req.DeviceID == "" {
		return nil, &ValidationError{Msg: "device id is required"}
	}
	session := s.sessions.Get(req.DeviceID)
	generation := session.BeginRefresh()
	location := geo.Resolve(req.Location, s.fallback)

	var (
		profile   model.UserProfile
		jobs      []model.JobCandidate
		dismissed *dismissal.IDSet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profile = s.profile(gctx, req.UserID)
		jobs = s.openJobs(gctx, profile.Level)
		return nil
	})
	g.Go(func() error {
		dismissed = session.LoadDismissed(gctx)
		return nil
	})
	_ = g.Wait()

	ranked := ranking.BuildJobFeed(jobs, dismissed, profile.Preferences, location, s.now())
	held, installed := session.Install(generation, ranked)
	if !installed {
		slog.Info("discarding stale job feed", "deviceId", req.DeviceID, "generation", generation)
	}
	return ranking.FilterByRadius(held, req.Radius), nil
}

// CurrentJobs re-applies radius to the feed already held for the device
// without refetching.
func (s *Service) CurrentJobs(deviceID string, radius ranking.Radius) ([]model.RankedJob, error) {
	session, ok := s.sessions.Lookup(deviceID)
	if !ok {
		return nil, ErrNoSession
	}
	return ranking.FilterByRadius(session.Feed(), radius), nil
}

// Refresh is the pull-to-refresh path: it wipes the device's dismissals and
// loads a fresh feed.
func (s *Service) Refresh(ctx context.Context, req JobFeedRequest) ([]model.RankedJob, error) {
	if req.DeviceID == "" {
		return nil, &ValidationError{Msg: "device id is required"}
	}
	if err := s.sessions.Get(req.DeviceID).Reset(ctx); err != nil {
		slog.Warn("reset dismissals failed", "deviceId", req.DeviceID, "err", err)
	}
	s.publish(ctx, EventDismissalsReset, map[string]string{
		"type":     EventDismissalsReset,
		"userId":   req.UserID,
		"deviceId": req.DeviceID,
	})
	return s.JobFeed(ctx, req)
}

// Dismiss removes a job from the device's feed for good. A failed write is
// logged; the job stays dismissed for this session regardless.
func (s *Service) Dismiss(ctx context.Context, req DismissRequest) error {
	if req.DeviceID == "" {
		return &ValidationError{Msg: "device id is required"}
	}
	if req.JobID == "" {
		return &ValidationError{Msg: "job id is required"}
	}
	if err := s.sessions.Get(req.DeviceID).Dismiss(ctx, req.JobID); err != nil {
		slog.Warn("persist dismissal failed", "deviceId", req.DeviceID, "jobId", req.JobID, "err", err)
	}
	s.publish(ctx, EventJobDismissed, map[string]string{
		"type":     EventJobDismissed,
		"userId":   req.UserID,
		"deviceId": req.DeviceID,
		"jobId":    req.JobID,
	})
	return nil
}

// OfferFeed ranks active offers for a producer, never including the
// producer's own offers.
func (s *Service) OfferFeed(ctx context.Context, req OfferFeedRequest) ([]model.RankedOffer, error) {
	if req.ProducerID == "" {
		return nil, &ValidationError{Msg: "producer id is required"}
	}
	location := geo.Resolve(req.Location, s.fallback)

	var (
		profile model.UserProfile
		offers  []model.OfferCandidate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profile = s.profile(gctx, req.ProducerID)
		return nil
	})
	g.Go(func() error {
		offers = s.activeOffers(gctx)
		return nil
	})
	_ = g.Wait()

	ranked := ranking.BuildOfferFeed(offers, req.ProducerID, profile.Preferences, location, s.now())
	return ranking.FilterByRadius(ranked, req.Radius), nil
}

// ─── Upstream calls with fallbacks ───────────────────────────────────────────

// profile falls back to a default profile with no preferences.
func (s *Service) profile(ctx context.Context, userID string) model.UserProfile {
	fallback := model.UserProfile{ID: userID, Level: source.DefaultLevel}
	if userID == "" {
		return fallback
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	p, err := s.src.Profile(ctx, userID)
	if err != nil {
		slog.Warn("load profile failed, ranking without preferences", "userId", userID, "err", err)
		return fallback
	}
	return p
}

// openJobs falls back to an empty candidate list.
func (s *Service) openJobs(ctx context.Context, level int) []model.JobCandidate {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	jobs, err := s.src.OpenJobs(ctx, level)
	if err != nil {
		slog.Warn("load open jobs failed, serving empty feed", "err", err)
		return nil
	}
	return jobs
}

// activeOffers falls back to an empty candidate list.
func (s *Service) activeOffers(ctx context.Context) []model.OfferCandidate {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	offers, err := s.src.ActiveOffers(ctx)
	if err != nil {
		slog.Warn("load active offers failed, serving empty feed", "err", err)
		return nil
	}
	return offers
}

// bounded applies the upstream timeout. A non-positive timeout means none.
func (s *Service) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// publish sends an event; failures are logged and ignored.
func (s *Service) publish(ctx context.Context, channel string, event map[string]string) {
	payload, _ := json.Marshal(event)
	if err := s.events.Publish(ctx, channel, payload); err != nil {
		slog.Warn("publish failed", "channel", channel, "err", err)
	}
}

// ─── Sentinel errors ─────────────────────────────────────────────────────────

// ErrNoSession is returned when a device asks for its held feed before ever
// loading one.
var ErrNoSession = errors.New("no feed loaded for this device")

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }
