package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pot-code/course-progress/internal/course"
	"github.com/pot-code/course-progress/internal/enrolment"
)

var errStoreDown = errors.New("store down")

// fakeEnrolmentStore in-memory remote store for one enrolment
type fakeEnrolmentStore struct {
	mu sync.Mutex

	lastLessonID course.LessonID
	inProgress   []course.LessonID
	completed    []course.LessonID

	lastErr, inProgressErr, completedErr error
	writeErr                             error

	lastLessonUpdates []course.LessonID
	inProgressCreates []course.LessonID
}

func (f *fakeEnrolmentStore) GetEnrolment(ctx context.Context, enrolmentID int64) (*enrolment.Enrolment, error) {
	if enrolmentID != 7 {
		return nil, enrolment.ErrNoSuchEnrolment
	}
	return &enrolment.Enrolment{ID: 7, ContactID: 3, CourseID: 5, LastLessonID: f.lastLessonID}, nil
}

func (f *fakeEnrolmentStore) GetLastLessonID(ctx context.Context, enrolmentID int64) (course.LessonID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastErr != nil {
		return 0, f.lastErr
	}
	return f.lastLessonID, nil
}

func (f *fakeEnrolmentStore) UpdateLastLesson(ctx context.Context, enrolmentID int64, lessonID course.LessonID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLessonUpdates = append(f.lastLessonUpdates, lessonID)
	if f.writeErr != nil {
		return f.writeErr
	}
	f.lastLessonID = lessonID
	return nil
}

func (f *fakeEnrolmentStore) ListInProgress(ctx context.Context, enrolmentID int64) ([]course.LessonID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inProgressErr != nil {
		return nil, f.inProgressErr
	}
	return append([]course.LessonID(nil), f.inProgress...), nil
}

func (f *fakeEnrolmentStore) CreateInProgress(ctx context.Context, enrolmentID int64, lessonID course.LessonID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inProgressCreates = append(f.inProgressCreates, lessonID)
	if f.writeErr != nil {
		return f.writeErr
	}
	f.inProgress = append(f.inProgress, lessonID)
	return nil
}

func (f *fakeEnrolmentStore) ListCompleted(ctx context.Context, enrolmentID int64) ([]course.LessonID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completedErr != nil {
		return nil, f.completedErr
	}
	return append([]course.LessonID(nil), f.completed...), nil
}

func (f *fakeEnrolmentStore) IsCompleted(ctx context.Context, enrolmentID int64, lessonID course.LessonID) (bool, error) {
	return false, nil
}

func (f *fakeEnrolmentStore) CreateCompletion(ctx context.Context, enrolmentID int64, lessonID course.LessonID) error {
	return nil
}

type fakeWindow struct {
	id        string
	mu        sync.Mutex
	closed    bool
	navigated []string
	navErr    error
}

func (w *fakeWindow) ID() string { return w.id }

func (w *fakeWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *fakeWindow) Navigate(ctx context.Context, url string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.navigated = append(w.navigated, url)
	return w.navErr
}

type fakeOpener struct {
	opened      []string
	windows     []*fakeWindow
	closeOnOpen bool
	navErr      error
	err         error
}

func (o *fakeOpener) Open(ctx context.Context, url string) (Window, error) {
	o.opened = append(o.opened, url)
	if o.err != nil {
		return nil, o.err
	}
	w := &fakeWindow{id: fmt.Sprintf("w%d", len(o.windows)+1), closed: o.closeOnOpen, navErr: o.navErr}
	o.windows = append(o.windows, w)
	return w, nil
}

type countingRefresher struct {
	mu    sync.Mutex
	calls int
}

func (r *countingRefresher) Refresh(ctx context.Context) (*State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return &State{}, nil
}

func (r *countingRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type recordingPublisher struct {
	mu     sync.Mutex
	states []*State
}

func (p *recordingPublisher) PublishState(ctx context.Context, st *State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, st)
	return nil
}

func scenarioModules() course.Modules {
	return course.Modules{
		{ID: 1, Name: "Start here", Lessons: []*course.Lesson{
			{ID: 10, Name: "Welcome", TemplateURL: "https://app/l"},
		}},
	}
}

func sampleModules() course.Modules {
	return course.Modules{
		{ID: 1, Name: "Introduction", Lessons: []*course.Lesson{}},
		{ID: 2, Name: "Key elements", Lessons: []*course.Lesson{
			{ID: 20, Name: "Characters", TemplateURL: "https://app/lesson"},
			{ID: 21, Name: "Voice", TemplateURL: "/lesson?mode=read"},
		}},
		{ID: 3, Name: "Beginnings", Lessons: []*course.Lesson{
			{ID: 21, Name: "Voice again", TemplateURL: "https://other/lesson"},
			{ID: 30, Name: "Hooks"},
		}},
	}
}

func sampleContext() *Context {
	return &Context{EnrolmentID: 7, ContactID: 3, CourseID: 5, PageURL: "https://school.example/course?id=5"}
}
