package enrolment

import (
	"context"
	"errors"

	"github.com/pot-code/course-progress/internal/course"
)

var (
	// ErrNoSuchEnrolment enrolment id matched nothing
	ErrNoSuchEnrolment = errors.New("no such enrolment")
	// ErrAlreadyInProgress the (enrolment, lesson) in-progress link exists
	ErrAlreadyInProgress = errors.New("lesson already in progress")
	// ErrAlreadyCompleted the (enrolment, lesson) completion link exists
	ErrAlreadyCompleted = errors.New("lesson already completed")
)

// Enrolment a learner's registration in a course
type Enrolment struct {
	ID           int64           `json:"id"`
	ContactID    int64           `json:"contact_id"`
	CourseID     int64           `json:"course_id"`
	LastLessonID course.LessonID `json:"last_lesson_id,omitempty"`
}

// Repository enrolment records
type Repository interface {
	GetEnrolment(ctx context.Context, enrolmentID int64) (*Enrolment, error)
	GetLastLessonID(ctx context.Context, enrolmentID int64) (course.LessonID, error)
	UpdateLastLesson(ctx context.Context, enrolmentID int64, lessonID course.LessonID) error
}

// InProgressRepository links between an enrolment and the lessons it started
type InProgressRepository interface {
	ListInProgress(ctx context.Context, enrolmentID int64) ([]course.LessonID, error)
	// CreateInProgress returns ErrAlreadyInProgress when the link exists
	CreateInProgress(ctx context.Context, enrolmentID int64, lessonID course.LessonID) error
}

// CompletionRepository links between an enrolment and the lessons it completed
type CompletionRepository interface {
	ListCompleted(ctx context.Context, enrolmentID int64) ([]course.LessonID, error)
	IsCompleted(ctx context.Context, enrolmentID int64, lessonID course.LessonID) (bool, error)
	// CreateCompletion returns ErrAlreadyCompleted when the link exists
	CreateCompletion(ctx context.Context, enrolmentID int64, lessonID course.LessonID) error
}

// Notifier tells the page that spawned a lesson window about a completion
type Notifier interface {
	NotifyLessonCompleted(ctx context.Context, enrolmentID int64, lessonID course.LessonID) error
}

// CompletionResult outcome of a completion request
type CompletionResult struct {
	EnrolmentID int64           `json:"enrolmentId"`
	LessonID    course.LessonID `json:"lessonId"`
	Completed   bool            `json:"completed"`
	Created     bool            `json:"created"` // false when the lesson was completed before
}

// CompletionUseCase marks lessons complete from inside a lesson window
type CompletionUseCase interface {
	CompleteLesson(ctx context.Context, enrolmentID int64, lessonID course.LessonID) (*CompletionResult, error)
	LessonCompletion(ctx context.Context, enrolmentID int64, lessonID course.LessonID) (*CompletionResult, error)
}
