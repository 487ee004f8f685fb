package feed

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"lidacacau/feed-service/internal/dismissal"
	"lidacacau/feed-service/internal/geo"
	"lidacacau/feed-service/internal/model"
)

var (
	testNow  = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	testUser = geo.Coordinate{Latitude: 0, Longitude: 0}

	errUpstream = errors.New("upstream unavailable")
)

const (
	j1ID = "11111111-1111-4111-8111-111111111111"
	j2ID = "22222222-2222-4222-8222-222222222222"
)

func northOf(km float64) *geo.Coordinate {
	return &geo.Coordinate{Latitude: km / (geo.EarthRadiusKm * math.Pi / 180)}
}

// scenarioJobs returns J1 (preferred, fresh, 5 km) and J2 (stale, cheap, 80 km)
// in fetch order J2, J1.
func scenarioJobs() []model.JobCandidate {
	return []model.JobCandidate{
		{ID: j2ID, ServiceTypeID: "masonry", OfferAmount: 100, CreatedAt: testNow.Add(-49 * time.Hour), Location: northOf(80)},
		{ID: j1ID, ServiceTypeID: "harvest_cocoa", OfferAmount: 1500, CreatedAt: testNow, Location: northOf(5)},
	}
}

type fakeSource struct {
	mu          sync.Mutex
	jobs        []model.JobCandidate
	offers      []model.OfferCandidate
	profiles    map[string]model.UserProfile
	failJobs    bool
	failOffers  bool
	failProfile bool
	lastLevel   int
	block       chan struct{} // when set, OpenJobs waits on it or ctx
	waiting     int           // OpenJobs calls that parked on block
}

func (f *fakeSource) OpenJobs(ctx context.Context, level int) ([]model.JobCandidate, error) {
	f.mu.Lock()
	block := f.block
	f.lastLevel = level
	fail := f.failJobs
	jobs := append([]model.JobCandidate(nil), f.jobs...)
	f.mu.Unlock()

	if block != nil {
		f.mu.Lock()
		f.waiting++
		f.mu.Unlock()
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errUpstream
	}
	out := jobs[:0]
	for _, j := range jobs {
		if j.MinWorkerLevel <= level {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeSource) ActiveOffers(context.Context) ([]model.OfferCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOffers {
		return nil, errUpstream
	}
	return append([]model.OfferCandidate(nil), f.offers...), nil
}

func (f *fakeSource) Profile(_ context.Context, userID string) (model.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failProfile {
		return model.UserProfile{}, errUpstream
	}
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return model.UserProfile{ID: userID, Level: 1}, nil
}

type published struct {
	channel string
	payload string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	fail   bool
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errUpstream
	}
	p.events = append(p.events, published{channel: channel, payload: string(payload)})
	return nil
}

func (p *recordingPublisher) channels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.channel)
	}
	return out
}

// failingStore fails every persistence call.
type failingStore struct{}

func (failingStore) Load(context.Context, string) (*dismissal.IDSet, error) {
	return nil, errUpstream
}
func (failingStore) Save(context.Context, string, *dismissal.IDSet) error { return errUpstream }
func (failingStore) Clear(context.Context, string) error                  { return errUpstream }

// stuckClearStore persists normally but cannot clear.
type stuckClearStore struct {
	*dismissal.MemoryStore
}

func (stuckClearStore) Clear(context.Context, string) error { return errUpstream }

func newTestService(src *fakeSource, store dismissal.Store, pub Publisher) *Service {
	svc := NewService(src, dismissal.NewSessions(store), pub, testUser, time.Second)
	svc.now = func() time.Time { return testNow }
	return svc
}

func cocoaWorker() map[string]model.UserProfile {
	return map[string]model.UserProfile{
		"worker-1": {ID: "worker-1", Level: 2, Preferences: model.NewPreferences("harvest_cocoa")},
	}
}

func jobIDs(jobs []model.RankedJob) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.ID)
	}
	return out
}

func offerIDs(offers []model.RankedOffer) []string {
	out := make([]string, 0, len(offers))
	for _, o := range offers {
		out = append(out, o.ID)
	}
	return out
}
