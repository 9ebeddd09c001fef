package enrolment

import (
	"context"
	"errors"
	"testing"

	"github.com/pot-code/course-progress/internal/course"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

type linkKey struct {
	enrolmentID int64
	lessonID    course.LessonID
}

type fakeCompletions struct {
	links     map[linkKey]bool
	createErr error
}

func (f *fakeCompletions) ListCompleted(ctx context.Context, enrolmentID int64) ([]course.LessonID, error) {
	var ids []course.LessonID
	for k := range f.links {
		if k.enrolmentID == enrolmentID {
			ids = append(ids, k.lessonID)
		}
	}
	return ids, nil
}

func (f *fakeCompletions) IsCompleted(ctx context.Context, enrolmentID int64, lessonID course.LessonID) (bool, error) {
	return f.links[linkKey{enrolmentID, lessonID}], nil
}

func (f *fakeCompletions) CreateCompletion(ctx context.Context, enrolmentID int64, lessonID course.LessonID) error {
	if f.createErr != nil {
		return f.createErr
	}
	key := linkKey{enrolmentID, lessonID}
	if f.links[key] {
		return ErrAlreadyCompleted
	}
	f.links[key] = true
	return nil
}

type fakeNotifier struct {
	sent []linkKey
	err  error
}

func (f *fakeNotifier) NotifyLessonCompleted(ctx context.Context, enrolmentID int64, lessonID course.LessonID) error {
	f.sent = append(f.sent, linkKey{enrolmentID, lessonID})
	return f.err
}

func TestCompleteLesson(t *testing.T) {
	repo := &fakeCompletions{links: map[linkKey]bool{}}
	notifier := &fakeNotifier{}
	uc := NewCompletionUseCase(repo, notifier, zap.NewNop())

	result, err := uc.CompleteLesson(context.Background(), 7, 42)
	require.NoError(t, err)
	assert.Equal(t, &CompletionResult{EnrolmentID: 7, LessonID: 42, Completed: true, Created: true}, result)

	result, err = uc.CompleteLesson(context.Background(), 7, 42)
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.True(t, result.Completed)

	assert.Equal(t, []linkKey{{7, 42}, {7, 42}}, notifier.sent)
}

func TestCompleteLessonStoreFailure(t *testing.T) {
	boom := errors.New("boom")
	notifier := &fakeNotifier{}
	uc := NewCompletionUseCase(&fakeCompletions{createErr: boom}, notifier, zap.NewNop())

	_, err := uc.CompleteLesson(context.Background(), 7, 42)
	assert.True(t, errors.Is(err, boom))
	assert.Empty(t, notifier.sent)
}

func TestCompleteLessonNotifyFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	notifier := &fakeNotifier{err: errors.New("bus down")}
	uc := NewCompletionUseCase(&fakeCompletions{links: map[linkKey]bool{}}, notifier, zap.New(core))

	result, err := uc.CompleteLesson(context.Background(), 7, 42)
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, 1, logs.FilterMessage("failed to notify lesson completion").Len())
}

func TestLessonCompletion(t *testing.T) {
	repo := &fakeCompletions{links: map[linkKey]bool{{7, 42}: true}}
	uc := NewCompletionUseCase(repo, &fakeNotifier{}, zap.NewNop())

	result, err := uc.LessonCompletion(context.Background(), 7, 42)
	require.NoError(t, err)
	assert.True(t, result.Completed)

	result, err = uc.LessonCompletion(context.Background(), 8, 42)
	require.NoError(t, err)
	assert.False(t, result.Completed)
	assert.Equal(t, int64(8), result.EnrolmentID)
}
