package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lidacacau/feed-service/internal/dismissal"
	"lidacacau/feed-service/internal/model"
	"lidacacau/feed-service/internal/ranking"
)

func jobRequest(radius ranking.Radius) JobFeedRequest {
	return JobFeedRequest{UserID: "worker-1", DeviceID: "device-1", Location: &testUser, Radius: radius}
}

func TestJobFeed_RanksPreferredNearbyFirst(t *testing.T) {
	svc := newTestService(&fakeSource{jobs: scenarioJobs(), profiles: cocoaWorker()}, dismissal.NewMemoryStore(), nil)

	feed, err := svc.JobFeed(context.Background(), jobRequest(ranking.RadiusUnbounded))
	require.NoError(t, err)
	assert.Equal(t, []string{j1ID, j2ID}, jobIDs(feed))
	require.NotNil(t, feed[0].CalculatedDistance)
	assert.InDelta(t, 5, *feed[0].CalculatedDistance, 0.01)
}

func TestJobFeed_RadiusFilter(t *testing.T) {
	svc := newTestService(&fakeSource{jobs: scenarioJobs(), profiles: cocoaWorker()}, dismissal.NewMemoryStore(), nil)

	feed, err := svc.JobFeed(context.Background(), jobRequest(ranking.Radius50))
	require.NoError(t, err)
	assert.Equal(t, []string{j1ID}, jobIDs(feed))
}

func TestJobFeed_DismissThenRefresh(t *testing.T) {
	ctx := context.Background()
	store := dismissal.NewMemoryStore()
	pub := &recordingPublisher{}
	svc := newTestService(&fakeSource{jobs: scenarioJobs(), profiles: cocoaWorker()}, store, pub)

	_, err := svc.JobFeed(ctx, jobRequest(ranking.RadiusUnbounded))
	require.NoError(t, err)

	require.NoError(t, svc.Dismiss(ctx, DismissRequest{UserID: "worker-1", DeviceID: "device-1", JobID: j1ID}))

	held, err := svc.CurrentJobs("device-1", ranking.RadiusUnbounded)
	require.NoError(t, err)
	assert.Equal(t, []string{j2ID}, jobIDs(held), "dismissal shows without a refetch")

	feed, err := svc.JobFeed(ctx, jobRequest(ranking.RadiusUnbounded))
	require.NoError(t, err)
	assert.Equal(t, []string{j2ID}, jobIDs(feed), "dismissed job stays out of later loads")

	persisted, err := store.Load(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, []string{j1ID}, persisted.IDs())

	feed, err = svc.Refresh(ctx, jobRequest(ranking.RadiusUnbounded))
	require.NoError(t, err)
	assert.Equal(t, []string{j1ID, j2ID}, jobIDs(feed), "pull-to-refresh brings dismissed jobs back")

	assert.Equal(t, []string{EventJobDismissed, EventDismissalsReset}, pub.channels())
}

func TestRefresh_FailedClearStillBringsJobsBack(t *testing.T) {
	ctx := context.Background()
	store := stuckClearStore{MemoryStore: dismissal.NewMemoryStore()}
	svc := newTestService(&fakeSource{jobs: scenarioJobs(), profiles: cocoaWorker()}, store, nil)

	_, err := svc.JobFeed(ctx, jobRequest(ranking.RadiusUnbounded))
	require.NoError(t, err)
	require.NoError(t, svc.Dismiss(ctx, DismissRequest{UserID: "worker-1", DeviceID: "device-1", JobID: j1ID}))

	feed, err := svc.Refresh(ctx, jobRequest(ranking.RadiusUnbounded))
	require.NoError(t, err)
	assert.Equal(t, []string{j1ID, j2ID}, jobIDs(feed))

	// The stale stored set is not merged back on later loads either.
	feed, err = svc.JobFeed(ctx, jobRequest(ranking.RadiusUnbounded))
	require.NoError(t, err)
	assert.Equal(t, []string{j1ID, j2ID}, jobIDs(feed))
}

func TestJobFeed_DismissedSetSurvivesNewSession(t *testing.T) {
	ctx := context.Background()
	store := dismissal.NewMemoryStore()
	src := &fakeSource{jobs: scenarioJobs(), profiles: cocoaWorker()}

	first := newTestService(src, store, nil)
	require.NoError(t, first.Dismiss(ctx, DismissRequest{DeviceID: "device-1", JobID: j1ID}))

	second := newTestService(src, store, nil)
	feed, err := second.JobFeed(ctx, jobRequest(ranking.RadiusUnbounded))
	require.NoError(t, err)
	assert.Equal(t, []string{j2ID}, jobIDs(feed))
}

func TestJobFeed_UpstreamFailureGivesEmptyFeed(t *testing.T) {
	svc := newTestService(&fakeSource{jobs: scenarioJobs(), failJobs: true}, dismissal.NewMemoryStore(), nil)

	feed, err := svc.JobFeed(context.Background(), jobRequest(ranking.RadiusUnbounded))
	require.NoError(t, err)
	assert.Empty(t, feed)
}

func TestJobFeed_ProfileFailureRanksWithoutPreferences(t *testing.T) {
	src := &fakeSource{jobs: scenarioJobs(), profiles: cocoaWorker(), failProfile: true}
	svc := newTestService(src, dismissal.NewMemoryStore(), nil)

	feed, err := svc.JobFeed(context.Background(), jobRequest(ranking.RadiusUnbounded))
	require.NoError(t, err)
	assert.Len(t, feed, 2)
	assert.Equal(t, 1, src.lastLevel, "default level is used")
}

func TestJobFeed_PersistenceFailureFailsOpen(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{fail: true}
	svc := newTestService(&fakeSource{jobs: scenarioJobs(), profiles: cocoaWorker()}, failingStore{}, pub)

	feed, err := svc.JobFeed(ctx, jobRequest(ranking.RadiusUnbounded))
	require.NoError(t, err)
	assert.Len(t, feed, 2)

	require.NoError(t, svc.Dismiss(ctx, DismissRequest{DeviceID: "device-1", JobID: j1ID}))
	held, err := svc.CurrentJobs("device-1", ranking.RadiusUnbounded)
	require.NoError(t, err)
	assert.Equal(t, []string{j2ID}, jobIDs(held))

	feed, err = svc.JobFeed(ctx, jobRequest(ranking.RadiusUnbounded))
	require.NoError(t, err)
	assert.Equal(t, []string{j2ID}, jobIDs(feed), "session keeps the dismissal even though it never persisted")
}

func TestJobFeed_MissingLocationUsesFallback(t *testing.T) {
	svc := newTestService(&fakeSource{jobs: scenarioJobs(), profiles: cocoaWorker()}, dismissal.NewMemoryStore(), nil)
	req := jobRequest(ranking.RadiusUnbounded)
	req.Location = nil

	feed, err := svc.JobFeed(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	// The test fallback is the user's own position.
	assert.InDelta(t, 5, *feed[0].CalculatedDistance, 0.01)
}

func TestJobFeed_LevelEligibility(t *testing.T) {
	jobs := append(scenarioJobs(), model.JobCandidate{
		ID: "expert", ServiceTypeID: "grafting_cocoa", OfferAmount: 900, MinWorkerLevel: 5, CreatedAt: testNow,
	})
	svc := newTestService(&fakeSource{jobs: jobs, profiles: cocoaWorker()}, dismissal.NewMemoryStore(), nil)

	feed, err := svc.JobFeed(context.Background(), jobRequest(ranking.RadiusUnbounded))
	require.NoError(t, err)
	assert.NotContains(t, jobIDs(feed), "expert")
}

func TestJobFeed_RequiresDevice(t *testing.T) {
	svc := newTestService(&fakeSource{}, dismissal.NewMemoryStore(), nil)
	req := jobRequest(ranking.RadiusUnbounded)
	req.DeviceID = ""

	_, err := svc.JobFeed(context.Background(), req)
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestJobFeed_StaleLoadDoesNotOverwriteNewer(t *testing.T) {
	ctx := context.Background()
	block := make(chan struct{})
	src := &fakeSource{jobs: scenarioJobs(), profiles: cocoaWorker(), block: block}
	svc := newTestService(src, dismissal.NewMemoryStore(), nil)

	var (
		wg    sync.WaitGroup
		stale []model.RankedJob
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		stale, _ = svc.JobFeed(ctx, jobRequest(ranking.RadiusUnbounded))
	}()

	// Wait until the first load is parked inside OpenJobs.
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.waiting == 1
	}, time.Second, time.Millisecond)

	src.mu.Lock()
	src.block = nil
	src.jobs = scenarioJobs()[:1] // only J2 on the newer load
	src.mu.Unlock()

	fresh, err := svc.JobFeed(ctx, jobRequest(ranking.RadiusUnbounded))
	require.NoError(t, err)
	assert.Equal(t, []string{j2ID}, jobIDs(fresh))

	close(block)
	wg.Wait()
	assert.Equal(t, []string{j2ID}, jobIDs(stale), "stale load returns the newer held feed")

	held, err := svc.CurrentJobs("device-1", ranking.RadiusUnbounded)
	require.NoError(t, err)
	assert.Equal(t, []string{j2ID}, jobIDs(held))
}

func TestCurrentJobs_NoSession(t *testing.T) {
	svc := newTestService(&fakeSource{}, dismissal.NewMemoryStore(), nil)
	_, err := svc.CurrentJobs("unknown", ranking.RadiusUnbounded)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestCurrentJobs_RadiusChangeDoesNotRefetch(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{jobs: scenarioJobs(), profiles: cocoaWorker()}
	svc := newTestService(src, dismissal.NewMemoryStore(), nil)

	_, err := svc.JobFeed(ctx, jobRequest(ranking.RadiusUnbounded))
	require.NoError(t, err)

	src.mu.Lock()
	src.failJobs = true
	src.mu.Unlock()

	narrow, err := svc.CurrentJobs("device-1", ranking.Radius25)
	require.NoError(t, err)
	assert.Equal(t, []string{j1ID}, jobIDs(narrow))

	wide, err := svc.CurrentJobs("device-1", ranking.Radius100)
	require.NoError(t, err)
	assert.Equal(t, []string{j1ID, j2ID}, jobIDs(wide))
}

func TestDismiss_Validation(t *testing.T) {
	svc := newTestService(&fakeSource{}, dismissal.NewMemoryStore(), nil)
	var ve *ValidationError
	assert.True(t, errors.As(svc.Dismiss(context.Background(), DismissRequest{JobID: j1ID}), &ve))
	assert.True(t, errors.As(svc.Dismiss(context.Background(), DismissRequest{DeviceID: "d"}), &ve))
}

func TestOfferFeed_ExcludesOwnOffers(t *testing.T) {
	day := 1200.0
	src := &fakeSource{
		offers: []model.OfferCandidate{
			{ID: "own", WorkerID: "producer-1", ServiceTypeIDs: []string{"harvest_cocoa"}, PricePerDay: &day, CreatedAt: testNow, Location: northOf(1)},
			{ID: "near", WorkerID: "worker-7", ServiceTypeIDs: []string{"masonry"}, CreatedAt: testNow, Location: northOf(8)},
			{ID: "far", WorkerID: "worker-8", ServiceTypeIDs: []string{"harvest_cocoa"}, CreatedAt: testNow, Location: northOf(300)},
		},
		profiles: map[string]model.UserProfile{
			"producer-1": {ID: "producer-1", Preferences: model.NewPreferences("harvest_cocoa")},
		},
	}
	svc := newTestService(src, dismissal.NewMemoryStore(), nil)

	all, err := svc.OfferFeed(context.Background(), OfferFeedRequest{ProducerID: "producer-1", Location: &testUser})
	require.NoError(t, err)
	assert.Equal(t, []string{"near", "far"}, offerIDs(all))

	near, err := svc.OfferFeed(context.Background(), OfferFeedRequest{ProducerID: "producer-1", Location: &testUser, Radius: ranking.Radius10})
	require.NoError(t, err)
	assert.Equal(t, []string{"near"}, offerIDs(near))
}

func TestOfferFeed_UpstreamFailure(t *testing.T) {
	svc := newTestService(&fakeSource{failOffers: true}, dismissal.NewMemoryStore(), nil)
	offers, err := svc.OfferFeed(context.Background(), OfferFeedRequest{ProducerID: "p"})
	require.NoError(t, err)
	assert.Empty(t, offers)
}

func TestOfferFeed_RequiresProducer(t *testing.T) {
	svc := newTestService(&fakeSource{}, dismissal.NewMemoryStore(), nil)
	_, err := svc.OfferFeed(context.Background(), OfferFeedRequest{})
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
}
