package state

import (
	"sort"
	"time"

	"github.com/imamik/podkeeper/internal/pod"
)

// FormatVersion is the only document version Load accepts.
const FormatVersion = 1

// State maps logical pod names to the last known record of each pod.
// There is at most one record per name. Records are only removed by
// an explicit Delete.
type State struct {
	FormatVersion int                    `json:"formatVersion"`
	Pods          map[string]*pod.Record `json:"pods"`
}

// New creates an empty state.
func New() *State {
	return &State{
		FormatVersion: FormatVersion,
		Pods:          make(map[string]*pod.Record),
	}
}

// RecordPod inserts or overwrites the record for name with a pod created
// at now. The last write wins.
func (s *State) RecordPod(id, name, image string, now time.Time) *pod.Record {
	r := &pod.Record{
		ID:        id,
		Name:      name,
		Image:     image,
		Status:    pod.StatusProvisioning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Put(r)
	return r
}

// Put stores a copy of r under r.Name, replacing any previous record.
func (s *State) Put(r *pod.Record) {
	if s.Pods == nil {
		s.Pods = make(map[string]*pod.Record)
	}
	s.Pods[r.Name] = r.Clone()
}

// Get returns a copy of the record for name.
func (s *State) Get(name string) (*pod.Record, bool) {
	r, ok := s.Pods[name]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Delete removes the record for name and reports whether it existed.
func (s *State) Delete(name string) bool {
	if _, ok := s.Pods[name]; !ok {
		return false
	}
	delete(s.Pods, name)
	return true
}

// Names returns the stored pod names in sorted order.
func (s *State) Names() []string {
	names := make([]string, 0, len(s.Pods))
	for name := range s.Pods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of stored records.
func (s *State) Len() int {
	return len(s.Pods)
}
