package progress

import (
	"context"

	"github.com/pot-code/course-progress/internal/course"
	"github.com/pot-code/course-progress/internal/enrolment"
	"go.elastic.co/apm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Aggregator merges the enrolment records with the module tree into a State
type Aggregator struct {
	Enrolments  enrolment.Repository
	InProgress  enrolment.InProgressRepository
	Completions enrolment.CompletionRepository
	logger      *zap.Logger
}

// NewAggregator ...
func NewAggregator(
	Enrolments enrolment.Repository,
	InProgress enrolment.InProgressRepository,
	Completions enrolment.CompletionRepository,
	logger *zap.Logger,
) *Aggregator {
	return &Aggregator{Enrolments, InProgress, Completions, logger}
}

// Refresh build the State of pctx's enrolment.
//
// A failing read is logged and treated as empty, only a done ctx aborts the refresh.
func (ag *Aggregator) Refresh(ctx context.Context, pctx *Context, modules course.Modules) (*State, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "Aggregator.Refresh", "service")
	defer apmSpan.End()

	var (
		lastLessonID course.LessonID
		inProgress   []course.LessonID
		completed    []course.LessonID
		eg           errgroup.Group
	)
	eg.Go(func() (err error) {
		lastLessonID, err = ag.Enrolments.GetLastLessonID(ctx, pctx.EnrolmentID)
		return ag.degrade(ctx, "last lesson", pctx, err)
	})
	eg.Go(func() (err error) {
		inProgress, err = ag.InProgress.ListInProgress(ctx, pctx.EnrolmentID)
		return ag.degrade(ctx, "in-progress lessons", pctx, err)
	})
	eg.Go(func() (err error) {
		completed, err = ag.Completions.ListCompleted(ctx, pctx.EnrolmentID)
		return ag.degrade(ctx, "completed lessons", pctx, err)
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	builder := NewLessonURLBuilder(pctx, modules)
	st := &State{
		EnrolmentID: pctx.EnrolmentID,
		InProgress:  NewLessonSet(inProgress...),
		Completed:   NewLessonSet(completed...),
		LessonURLs:  make(map[course.LessonID]string),
	}
	seen := make(map[course.LessonID]bool)
	for _, m := range modules {
		for _, l := range m.Lessons {
			if seen[l.ID] || !l.ID.Valid() {
				continue
			}
			seen[l.ID] = true
			if u := builder.Build(l.TemplateURL, l.ID); u != "" {
				st.LessonURLs[l.ID] = u
			}
		}
	}

	if lastLessonID.Valid() {
		st.LastLessonID = lastLessonID
		st.InProgress.Add(lastLessonID)
	}
	lesson, module := modules.FindLesson(st.LastLessonID)
	if lesson == nil {
		lesson, module = modules.FirstLesson()
	}
	if lesson != nil {
		st.ResumeLessonName = lesson.Name
		st.ResumeModuleName = module.Name
		st.ResumeURL = st.LessonURLs[lesson.ID]
	}
	return st, nil
}

func (ag *Aggregator) degrade(ctx context.Context, what string, pctx *Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	ag.logger.Warn("failed to read "+what,
		zap.Int64("enrolment.id", pctx.EnrolmentID),
		zap.Error(err))
	return nil
}
