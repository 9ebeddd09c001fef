package progress

import (
	"context"
	"errors"

	"github.com/pot-code/course-progress/internal/course"
	"github.com/pot-code/course-progress/internal/enrolment"
	"go.elastic.co/apm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Window a lesson browsing context opened for the learner
type Window interface {
	ID() string
	Closed() bool
	Navigate(ctx context.Context, url string) error
}

// WindowOpener opens lesson windows on the learner's page
type WindowOpener interface {
	Open(ctx context.Context, url string) (Window, error)
}

// Launcher opens lessons and records the learner's progress on them
type Launcher struct {
	pctx       *Context
	modules    course.Modules
	tracker    *Tracker
	enrolments enrolment.Repository
	inProgress enrolment.InProgressRepository
	opener     WindowOpener
	logger     *zap.Logger
}

// NewLauncher ...
func NewLauncher(
	pctx *Context,
	modules course.Modules,
	tracker *Tracker,
	enrolments enrolment.Repository,
	inProgress enrolment.InProgressRepository,
	opener WindowOpener,
	logger *zap.Logger,
) *Launcher {
	return &Launcher{pctx, modules, tracker, enrolments, inProgress, opener, logger}
}

// Launch open lessonID and mark it as the last and in-progress lesson. explicitURL
// wins over the cached lesson url. Write failures are logged, the state is
// refreshed in any case; only an aborted refresh is returned.
func (l *Launcher) Launch(ctx context.Context, lessonID course.LessonID, explicitURL string) error {
	if !lessonID.Valid() {
		return nil
	}
	apmSpan, ctx := apm.StartSpan(ctx, "Launcher.Launch", "service")
	defer apmSpan.End()

	logger := l.logger.With(zap.Int64("enrolment.id", l.pctx.EnrolmentID), zap.Int64("lesson.id", int64(lessonID)))
	current := l.tracker.Current()
	target := explicitURL
	if target == "" {
		target = current.LessonURL(lessonID)
	}
	if target == "" {
		target = NewLessonURLBuilder(l.pctx, l.modules).Build("", lessonID)
	}

	var window Window
	if target != "" {
		w, err := l.opener.Open(ctx, target)
		if err != nil {
			logger.Warn("failed to open lesson window", zap.Error(err))
		} else {
			window = w
		}
	}

	var eg errgroup.Group
	eg.Go(func() error {
		if err := l.enrolments.UpdateLastLesson(ctx, l.pctx.EnrolmentID, lessonID); err != nil {
			logger.Warn("failed to update last lesson", zap.Error(err))
		}
		return nil
	})
	if !current.IsInProgress(lessonID) {
		eg.Go(func() error {
			err := l.inProgress.CreateInProgress(ctx, l.pctx.EnrolmentID, lessonID)
			if errors.Is(err, enrolment.ErrAlreadyInProgress) {
				logger.Debug("lesson was already in progress")
			} else if err != nil {
				logger.Warn("failed to mark lesson in progress", zap.Error(err))
			}
			return nil
		})
	}
	eg.Wait()

	fresh, err := l.tracker.Refresh(ctx)
	if err != nil {
		return err
	}

	if window == nil || window.Closed() {
		return nil
	}
	if resolved := fresh.LessonURL(lessonID); explicitURL == "" && resolved != "" && resolved != target {
		if err := window.Navigate(ctx, resolved); err != nil {
			logger.Debug("failed to navigate lesson window", zap.String("window.id", window.ID()), zap.Error(err))
		}
	}
	return nil
}

// Resume launch lessonID, falling back to the last lesson and then to the first lesson of the course
func (l *Launcher) Resume(ctx context.Context, lessonID course.LessonID) error {
	if !lessonID.Valid() {
		if current := l.tracker.Current(); current != nil {
			lessonID = current.LastLessonID
		}
	}
	if !lessonID.Valid() {
		if first, _ := l.modules.FirstLesson(); first != nil {
			lessonID = first.ID
		}
	}
	return l.Launch(ctx, lessonID, "")
}
