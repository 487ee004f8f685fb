// Package dismissal keeps the set of jobs a device has swiped away and the
// feed currently shown on that device.
//
// State of one job id, per device:
//
//	Visible ──(swipe)──► Dismissed
//
// Dismissed is terminal until the user pulls to refresh, which wipes the whole
// set (Session.Reset). Nothing expires automatically.
package dismissal

import "encoding/json"

// IDSet is an insertion-ordered set of job ids. It serializes as a JSON array.
// The zero value is an empty set; a nil *IDSet contains nothing.
type IDSet struct {
	ids   []string
	index map[string]struct{}
}

// NewIDSet returns a set holding ids, duplicates collapsed.
func NewIDSet(ids ...string) *IDSet {
	s := &IDSet{}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id and reports whether it was new.
func (s *IDSet) Add(id string) bool {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = struct{}{}
	s.ids = append(s.ids, id)
	return true
}

// Contains reports whether id is in the set.
func (s *IDSet) Contains(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[id]
	return ok
}

// Len returns the number of ids.
func (s *IDSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// IDs returns a copy of the ids in insertion order.
func (s *IDSet) IDs() []string {
	if s == nil {
		return []string{}
	}
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Clone returns an independent copy.
func (s *IDSet) Clone() *IDSet {
	return NewIDSet(s.IDs()...)
}

// Merge adds every id of other.
func (s *IDSet) Merge(other *IDSet) {
	for _, id := range other.IDs() {
		s.Add(id)
	}
}

func (s *IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

func (s *IDSet) UnmarshalJSON(b []byte) error {
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	*s = IDSet{}
	for _, id := range ids {
		s.Add(id)
	}
	return nil
}
