package progress

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/pot-code/course-progress/internal/course"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

func newTestAggregator(store *fakeEnrolmentStore) *Aggregator {
	return NewAggregator(store, store, store, zap.NewNop())
}

func TestRefreshScenario(t *testing.T) {
	store := &fakeEnrolmentStore{}
	st, err := newTestAggregator(store).Refresh(context.Background(), sampleContext(), scenarioModules())
	require.NoError(t, err)

	assert.Equal(t, "Welcome", st.ResumeLessonName)
	assert.Equal(t, "Start here", st.ResumeModuleName)
	u, err := url.Parse(st.ResumeURL)
	require.NoError(t, err)
	assert.Equal(t, "10", u.Query().Get("lessonId"))
	assert.Equal(t, course.LessonID(0), st.LastLessonID)
	assert.Empty(t, st.InProgress)
	assert.Empty(t, st.Completed)
}

func TestRefreshIsIdempotent(t *testing.T) {
	store := &fakeEnrolmentStore{lastLessonID: 21, inProgress: []course.LessonID{20}, completed: []course.LessonID{20, 30}}
	ag := newTestAggregator(store)

	first, err := ag.Refresh(context.Background(), sampleContext(), sampleModules())
	require.NoError(t, err)
	second, err := ag.Refresh(context.Background(), sampleContext(), sampleModules())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, first, second)
}

func TestRefreshPromotesLastLesson(t *testing.T) {
	tests := []struct {
		name       string
		last       course.LessonID
		inProgress []course.LessonID
	}{
		{name: "empty in-progress", last: 20},
		{name: "already in progress", last: 20, inProgress: []course.LessonID{20}},
		{name: "unknown lesson", last: 99, inProgress: []course.LessonID{30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeEnrolmentStore{lastLessonID: tt.last, inProgress: tt.inProgress}
			st, err := newTestAggregator(store).Refresh(context.Background(), sampleContext(), sampleModules())
			require.NoError(t, err)
			assert.Equal(t, tt.last, st.LastLessonID)
			assert.True(t, st.InProgress.Has(tt.last))
		})
	}
}

func TestRefreshResumeTarget(t *testing.T) {
	store := &fakeEnrolmentStore{lastLessonID: 21}
	st, err := newTestAggregator(store).Refresh(context.Background(), sampleContext(), sampleModules())
	require.NoError(t, err)
	// first match wins for duplicated ids
	assert.Equal(t, "Voice", st.ResumeLessonName)
	assert.Equal(t, "Key elements", st.ResumeModuleName)
	assert.Equal(t, "https://school.example/lesson?enrolmentId=7&lessonId=21&mode=read", st.ResumeURL)
	assert.Equal(t, st.ResumeURL, st.LessonURL(21))
	assert.Equal(t, "", st.LessonURL(30))
}

func TestRefreshFallsBackToFirstLesson(t *testing.T) {
	tests := []struct {
		name string
		last course.LessonID
	}{
		{name: "no last lesson"},
		{name: "last lesson not in tree", last: 99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeEnrolmentStore{lastLessonID: tt.last}
			st, err := newTestAggregator(store).Refresh(context.Background(), sampleContext(), sampleModules())
			require.NoError(t, err)
			assert.Equal(t, "Characters", st.ResumeLessonName)
			assert.Equal(t, "Key elements", st.ResumeModuleName)
			assert.Equal(t, st.LessonURL(20), st.ResumeURL)
			assert.NotEmpty(t, st.ResumeURL)
		})
	}
}

func TestRefreshEmptyTree(t *testing.T) {
	st, err := newTestAggregator(&fakeEnrolmentStore{}).Refresh(context.Background(), sampleContext(), course.Modules{{ID: 1}})
	require.NoError(t, err)
	assert.Empty(t, st.ResumeURL)
	assert.Empty(t, st.ResumeLessonName)
	assert.Empty(t, st.LessonURLs)
}

func TestRefreshDegradesFailedReads(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := &fakeEnrolmentStore{
		lastLessonID: 21,
		inProgress:   []course.LessonID{30},
		completed:    []course.LessonID{20},
		lastErr:      errStoreDown,
		completedErr: errStoreDown,
	}
	ag := NewAggregator(store, store, store, zap.New(core))

	st, err := ag.Refresh(context.Background(), sampleContext(), sampleModules())
	require.NoError(t, err)
	assert.Equal(t, course.LessonID(0), st.LastLessonID)
	assert.Equal(t, []course.LessonID{30}, st.InProgress.Sorted())
	assert.Empty(t, st.Completed)
	assert.Equal(t, "Characters", st.ResumeLessonName)
	assert.Equal(t, 2, logs.Len())
}

func TestRefreshAbortsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := &fakeEnrolmentStore{lastErr: context.Canceled}

	st, err := newTestAggregator(store).Refresh(ctx, sampleContext(), sampleModules())
	assert.Nil(t, st)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestStateJSON(t *testing.T) {
	st := &State{
		EnrolmentID: 7,
		InProgress:  NewLessonSet(30, 0, 20),
		Completed:   NewLessonSet(),
		LessonURLs:  map[course.LessonID]string{20: "https://app/l?lessonId=20"},
		ResumeURL:   "https://app/l?lessonId=20",
	}
	b, err := json.Marshal(st)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, []interface{}{float64(20), float64(30)}, decoded["inProgressLessonIds"])
	assert.Equal(t, []interface{}{}, decoded["completedLessonIds"])
	assert.Equal(t, map[string]interface{}{"20": "https://app/l?lessonId=20"}, decoded["lessonUrlMap"])
	assert.NotContains(t, decoded, "lastLessonId")
}

func TestStoreReplace(t *testing.T) {
	var s Store
	assert.Nil(t, s.Load())
	first, second := &State{EnrolmentID: 1}, &State{EnrolmentID: 2}
	s.Replace(first)
	s.Replace(second)
	assert.Same(t, second, s.Load())
}
