package enrolment

import (
	"context"
	"errors"

	"github.com/pot-code/course-progress/internal/course"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// CompletionUseCaseImpl ...
type CompletionUseCaseImpl struct {
	Completions CompletionRepository
	Notifier    Notifier
	logger      *zap.Logger
}

var _ CompletionUseCase = &CompletionUseCaseImpl{}

// NewCompletionUseCase ...
func NewCompletionUseCase(
	Completions CompletionRepository,
	Notifier Notifier,
	logger *zap.Logger,
) *CompletionUseCaseImpl {
	return &CompletionUseCaseImpl{Completions, Notifier, logger}
}

// CompleteLesson mark the lesson completed and notify the opener page.
//
// completing a lesson twice is not an error, Created reports whether this call wrote the record
func (cu *CompletionUseCaseImpl) CompleteLesson(ctx context.Context, enrolmentID int64, lessonID course.LessonID) (*CompletionResult, error) {
	apmSpan, _ := apm.StartSpan(ctx, "CompletionUseCaseImpl.CompleteLesson", "service")
	defer apmSpan.End()

	result := &CompletionResult{EnrolmentID: enrolmentID, LessonID: lessonID, Completed: true, Created: true}
	err := cu.Completions.CreateCompletion(ctx, enrolmentID, lessonID)
	if errors.Is(err, ErrAlreadyCompleted) {
		result.Created = false
	} else if err != nil {
		return nil, err
	}

	if err := cu.Notifier.NotifyLessonCompleted(ctx, enrolmentID, lessonID); err != nil {
		cu.logger.Warn("failed to notify lesson completion",
			zap.Int64("enrolment.id", enrolmentID),
			zap.Int64("lesson.id", int64(lessonID)),
			zap.Error(err))
	}
	return result, nil
}

// LessonCompletion query whether the lesson is completed
func (cu *CompletionUseCaseImpl) LessonCompletion(ctx context.Context, enrolmentID int64, lessonID course.LessonID) (*CompletionResult, error) {
	apmSpan, _ := apm.StartSpan(ctx, "CompletionUseCaseImpl.LessonCompletion", "service")
	defer apmSpan.End()

	completed, err := cu.Completions.IsCompleted(ctx, enrolmentID, lessonID)
	if err != nil {
		return nil, err
	}
	return &CompletionResult{EnrolmentID: enrolmentID, LessonID: lessonID, Completed: completed}, nil
}
