package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/pot-code/course-progress/internal/course"
	"github.com/pot-code/course-progress/internal/enrolment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTrees struct {
	err error
}

func (f fakeTrees) Load(ctx context.Context, courseID int64) (*course.Course, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &course.Course{ID: courseID, Modules: sampleModules()}, nil
}

func TestContextResolver(t *testing.T) {
	resolver := NewContextResolver(&fakeEnrolmentStore{}, fakeTrees{}, "https://school.example/course")

	pctx, tree, err := resolver.Resolve(context.Background(), 3, 7)
	require.NoError(t, err)
	assert.Equal(t, &Context{EnrolmentID: 7, ContactID: 3, CourseID: 5, PageURL: "https://school.example/course"}, pctx)
	assert.Equal(t, int64(5), tree.ID)

	_, _, err = resolver.Resolve(context.Background(), 4, 7)
	assert.True(t, errors.Is(err, ErrForeignEnrolment))

	_, _, err = resolver.Resolve(context.Background(), 3, 8)
	assert.True(t, errors.Is(err, enrolment.ErrNoSuchEnrolment))

	resolver.Trees = fakeTrees{err: course.ErrNoSuchCourse}
	_, _, err = resolver.Resolve(context.Background(), 3, 7)
	assert.True(t, errors.Is(err, course.ErrNoSuchCourse))
}

func TestSessionWiring(t *testing.T) {
	store := &fakeEnrolmentStore{lastLessonID: 20}
	publisher := &recordingPublisher{}
	opener := &fakeOpener{}
	s := NewSession(sampleContext(), &course.Course{ID: 5, Modules: sampleModules()},
		NewAggregator(store, store, store, zap.NewNop()), opener, publisher, zap.NewNop())

	assert.True(t, s.Bridge.Receive(context.Background(), []byte(`{"type":"lesson-completed","enrolmentId":7}`)))
	require.Len(t, publisher.states, 1)
	assert.True(t, s.Tracker.Current().InProgress.Has(20))

	require.NoError(t, s.Launcher.Resume(context.Background(), 0))
	assert.Equal(t, []string{"https://app/lesson?enrolmentId=7&lessonId=20"}, opener.opened)
	assert.Len(t, publisher.states, 2)
}
