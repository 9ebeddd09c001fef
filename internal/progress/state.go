package progress

import (
	"context"
	"encoding/json"
	"sort"
	"sync/atomic"

	"github.com/pot-code/course-progress/internal/course"
)

// LessonSet set of lesson ids, encoded as a sorted json array
type LessonSet map[course.LessonID]struct{}

// NewLessonSet absent ids are dropped
func NewLessonSet(ids ...course.LessonID) LessonSet {
	s := make(LessonSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add ignore absent ids
func (s LessonSet) Add(id course.LessonID) {
	if id.Valid() {
		s[id] = struct{}{}
	}
}

// Has ...
func (s LessonSet) Has(id course.LessonID) bool {
	_, ok := s[id]
	return ok
}

// Sorted ids in ascending order
func (s LessonSet) Sorted() []course.LessonID {
	ids := make([]course.LessonID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MarshalJSON implement json.Marshaler
func (s LessonSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON implement json.Unmarshaler
func (s *LessonSet) UnmarshalJSON(b []byte) error {
	var ids []course.LessonID
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	*s = NewLessonSet(ids...)
	return nil
}

// State denormalized progress of one enrolment. A State is never modified
// after it was published, refreshes build a new one.
type State struct {
	EnrolmentID      int64                      `json:"enrolmentId"`
	LastLessonID     course.LessonID            `json:"lastLessonId,omitempty"`
	InProgress       LessonSet                  `json:"inProgressLessonIds"`
	Completed        LessonSet                  `json:"completedLessonIds"`
	LessonURLs       map[course.LessonID]string `json:"lessonUrlMap"`
	ResumeLessonName string                     `json:"resumeLessonName"`
	ResumeModuleName string                     `json:"resumeModuleName"`
	ResumeURL        string                     `json:"resumeUrl"`
}

// LessonURL cached url of the lesson, "" when unknown
func (s *State) LessonURL(id course.LessonID) string {
	if s == nil {
		return ""
	}
	return s.LessonURLs[id]
}

// IsInProgress ...
func (s *State) IsInProgress(id course.LessonID) bool {
	return s != nil && s.InProgress.Has(id)
}

// Store holds the current State of a session
type Store struct {
	v atomic.Value
}

// Load current state, nil before the first refresh
func (s *Store) Load() *State {
	st, _ := s.v.Load().(*State)
	return st
}

// Replace the last call wins
func (s *Store) Replace(st *State) {
	s.v.Store(st)
}

// Publisher pushes states to the page rendering them
type Publisher interface {
	PublishState(ctx context.Context, st *State) error
}
