package progress

import (
	"github.com/pot-code/course-progress/internal/course"
	"go.uber.org/zap"
)

// Session progress components wired for one open course page
type Session struct {
	Context  *Context
	Tracker  *Tracker
	Launcher *Launcher
	Bridge   *Bridge
}

// NewSession ...
func NewSession(
	pctx *Context,
	tree *course.Course,
	aggregator *Aggregator,
	opener WindowOpener,
	publisher Publisher,
	logger *zap.Logger,
) *Session {
	logger = logger.With(zap.Int64("enrolment.id", pctx.EnrolmentID))
	tracker := NewTracker(pctx, tree.Modules, aggregator, new(Store), publisher, logger)
	return &Session{
		Context:  pctx,
		Tracker:  tracker,
		Launcher: NewLauncher(pctx, tree.Modules, tracker, aggregator.Enrolments, aggregator.InProgress, opener, logger),
		Bridge:   NewBridge(pctx, tracker, logger),
	}
}
