package dismissal

import (
	"context"
	"log/slog"
	"sync"

	"lidacacau/feed-service/internal/model"
)

// Session holds one device's dismissed set and the job feed last shown to it.
// All methods are safe for concurrent use.
//
// Store writes run outside mu so a slow backend never blocks the feed. Each
// write takes a sequence number under mu; saveMu serializes the writes and a
// write older than one already attempted is dropped.
type Session struct {
	mu        sync.Mutex
	deviceID  string
	store     Store
	dismissed *IDSet
	feed      []model.RankedJob
	started   uint64 // last refresh handed out
	installed uint64 // refresh whose feed is held
	resets    uint64 // Reset calls so far
	stale     bool   // store may still hold ids a Reset dropped
	writes    uint64 // last write sequence handed out
	resetSeq  uint64 // write sequence of the latest Reset

	saveMu    sync.Mutex
	attempted uint64 // last write sequence sent to the store
}

// NewSession returns an empty session for deviceID.
func NewSession(deviceID string, store Store) *Session {
	return &Session{deviceID: deviceID, store: store, dismissed: NewIDSet()}
}

// DeviceID returns the device the session belongs to.
func (s *Session) DeviceID() string { return s.deviceID }

// LoadDismissed merges the persisted set into the session and returns a
// snapshot. A failed read is logged and treated as an empty persisted set, so
// the feed shows more rather than fewer jobs. The persisted set is ignored
// when a Reset ran during the read, or while the store still holds ids a
// Reset dropped.
func (s *Session) LoadDismissed(ctx context.Context) *IDSet {
	s.mu.Lock()
	resets, stale := s.resets, s.stale
	s.mu.Unlock()

	persisted, err := s.store.Load(ctx, s.deviceID)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err != nil:
		slog.Warn("load dismissed jobs failed, showing all", "deviceId", s.deviceID, "err", err)
	case stale || s.stale || s.resets != resets:
		slog.Info("ignoring persisted dismissals from before reset", "deviceId", s.deviceID)
	default:
		s.dismissed.Merge(persisted)
	}
	return s.dismissed.Clone()
}

// Dismissed returns a snapshot of the in-memory set.
func (s *Session) Dismissed() *IDSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dismissed.Clone()
}

// BeginRefresh hands out a generation number for a feed load.
func (s *Session) BeginRefresh() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
	return s.started
}

// Install stores feed as the current feed unless a newer refresh has already
// been installed, in which case feed is stale and dropped. Jobs dismissed
// while the refresh was in flight are removed. It reports whether feed was
// installed and returns the feed now held.
func (s *Session) Install(generation uint64, feed []model.RankedJob) ([]model.RankedJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation <= s.installed {
		return s.copyFeed(), false
	}
	s.installed = generation

	kept := make([]model.RankedJob, 0, len(feed))
	for _, j := range feed {
		if !s.dismissed.Contains(j.ID) {
			kept = append(kept, j)
		}
	}
	s.feed = kept
	return s.copyFeed(), true
}

// Feed returns a copy of the held feed.
func (s *Session) Feed() []model.RankedJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyFeed()
}

// Dismiss adds jobID to the set and drops it from the held feed. The
// in-memory removal stands even when persisting fails; the persistence error
// is returned for logging only. Dismissing an id twice is a no-op.
func (s *Session) Dismiss(ctx context.Context, jobID string) error {
	s.mu.Lock()
	s.removeFromFeed(jobID)
	if !s.dismissed.Add(jobID) {
		s.mu.Unlock()
		return nil
	}
	s.writes++
	seq, snapshot := s.writes, s.dismissed.Clone()
	s.mu.Unlock()

	return s.persist(ctx, seq, snapshot)
}

// Reset wipes the dismissed set, in memory and in the store. Until the store
// is cleared, or overwritten by a later successful save, persisted ids are
// not merged back.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.dismissed = NewIDSet()
	s.resets++
	s.stale = true
	s.writes++
	seq := s.writes
	s.resetSeq = seq
	s.mu.Unlock()

	return s.persist(ctx, seq, nil)
}

// persist writes set to the store, or clears it when set is nil. Any
// successful write issued at or after the latest Reset leaves the store free
// of the ids that Reset dropped.
func (s *Session) persist(ctx context.Context, seq uint64, set *IDSet) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if seq <= s.attempted {
		return nil // superseded by a newer write
	}
	s.attempted = seq

	var err error
	if set == nil {
		err = s.store.Clear(ctx, s.deviceID)
	} else {
		err = s.store.Save(ctx, s.deviceID, set)
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	if seq >= s.resetSeq {
		s.stale = false
	}
	s.mu.Unlock()
	return nil
}

func (s *Session) removeFromFeed(jobID string) {
	for i, j := range s.feed {
		if j.ID == jobID {
			s.feed = append(s.feed[:i:i], s.feed[i+1:]...)
			return
		}
	}
}

func (s *Session) copyFeed() []model.RankedJob {
	out := make([]model.RankedJob, len(s.feed))
	copy(out, s.feed)
	return out
}

// Sessions indexes sessions by device id, creating them on first use.
type Sessions struct {
	mu       sync.Mutex
	store    Store
	sessions map[string]*Session
}

// NewSessions returns an empty registry whose sessions persist to store.
func NewSessions(store Store) *Sessions {
	return &Sessions{store: store, sessions: make(map[string]*Session)}
}

// Get returns the session for deviceID, creating it if needed.
func (r *Sessions) Get(deviceID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[deviceID]
	if !ok {
		s = NewSession(deviceID, r.store)
		r.sessions[deviceID] = s
	}
	return s
}

// Lookup returns the session for deviceID if one exists.
func (r *Sessions) Lookup(deviceID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[deviceID]
	return s, ok
}
