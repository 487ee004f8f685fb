package source

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"lidacacau/feed-service/internal/model"
)

// Snapshot caches open jobs and active offers, refreshed on a cron schedule.
// When a refresh fails the previous snapshot keeps being served. Until the
// first successful refresh, reads go straight to the wrapped source.
// Profiles are never cached.
type Snapshot struct {
	src  CandidateSource
	cron *cron.Cron
	spec string // cron spec, e.g. "@every 5m"

	mu          sync.RWMutex
	loaded      bool
	jobs        []model.JobCandidate
	offers      []model.OfferCandidate
	refreshedAt time.Time
}

// NewSnapshot wraps src and refreshes every intervalMinutes minutes.
func NewSnapshot(src CandidateSource, intervalMinutes int) *Snapshot {
	return &Snapshot{
		src:  src,
		cron: cron.New(cron.WithLogger(cron.DefaultLogger)),
		spec: fmt.Sprintf("@every %dm", intervalMinutes),
	}
}

// Start registers the refresh job and starts the scheduler. One refresh also
// runs immediately so the cache warms without waiting for the first tick.
func (s *Snapshot) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runRefresh(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[snapshot] Cron started, spec: %s", s.spec)

	go s.runRefresh(ctx)

	return nil
}

// Stop shuts the scheduler down and waits for a running refresh to finish.
func (s *Snapshot) Stop() {
	<-s.cron.Stop().Done()
	log.Println("[snapshot] Cron stopped")
}

func (s *Snapshot) runRefresh(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		log.Printf("[snapshot] Refresh failed, serving previous snapshot: %v", err)
	}
}

// Refresh reloads jobs and offers. Both must succeed for the snapshot to be
// replaced.
func (s *Snapshot) Refresh(ctx context.Context) error {
	var (
		jobs   []model.JobCandidate
		offers []model.OfferCandidate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		jobs, err = s.src.OpenJobs(gctx, AnyLevel)
		return err
	})
	g.Go(func() error {
		var err error
		offers, err = s.src.ActiveOffers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	s.jobs, s.offers = jobs, offers
	s.loaded = true
	s.refreshedAt = time.Now()
	s.mu.Unlock()

	log.Printf("[snapshot] Refreshed, jobs=%d offers=%d", len(jobs), len(offers))
	return nil
}

// RefreshedAt returns when the snapshot was last replaced, zero if never.
func (s *Snapshot) RefreshedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshedAt
}

// OpenJobs implements CandidateSource, applying the level eligibility filter
// to the cached jobs.
func (s *Snapshot) OpenJobs(ctx context.Context, workerLevel int) ([]model.JobCandidate, error) {
	s.mu.RLock()
	if !s.loaded {
		s.mu.RUnlock()
		return s.src.OpenJobs(ctx, workerLevel)
	}
	defer s.mu.RUnlock()

	out := make([]model.JobCandidate, 0, len(s.jobs))
	for _, j := range s.jobs {
		if j.MinWorkerLevel <= workerLevel {
			out = append(out, j)
		}
	}
	return out, nil
}

// ActiveOffers implements CandidateSource.
func (s *Snapshot) ActiveOffers(ctx context.Context) ([]model.OfferCandidate, error) {
	s.mu.RLock()
	if !s.loaded {
		s.mu.RUnlock()
		return s.src.ActiveOffers(ctx)
	}
	defer s.mu.RUnlock()

	out := make([]model.OfferCandidate, len(s.offers))
	copy(out, s.offers)
	return out, nil
}

// Profile implements CandidateSource by delegating to the wrapped source.
func (s *Snapshot) Profile(ctx context.Context, userID string) (model.UserProfile, error) {
	return s.src.Profile(ctx, userID)
}
