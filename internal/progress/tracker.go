package progress

import (
	"context"

	"github.com/pot-code/course-progress/internal/course"
	"go.uber.org/zap"
)

// Refresher recomputes the State of a session
type Refresher interface {
	Refresh(ctx context.Context) (*State, error)
}

// Tracker keeps the State of one session current and pushes every new State to the page
type Tracker struct {
	pctx       *Context
	modules    course.Modules
	aggregator *Aggregator
	store      *Store
	publisher  Publisher
	logger     *zap.Logger
}

var _ Refresher = &Tracker{}

// NewTracker publisher may be nil
func NewTracker(pctx *Context, modules course.Modules, aggregator *Aggregator, store *Store, publisher Publisher, logger *zap.Logger) *Tracker {
	return &Tracker{pctx, modules, aggregator, store, publisher, logger}
}

// Refresh aggregate, store and publish a new State. On error the previous State is kept.
func (t *Tracker) Refresh(ctx context.Context) (*State, error) {
	st, err := t.aggregator.Refresh(ctx, t.pctx, t.modules)
	if err != nil {
		t.logger.Warn("progress refresh aborted", zap.Int64("enrolment.id", t.pctx.EnrolmentID), zap.Error(err))
		return nil, err
	}
	t.store.Replace(st)
	if t.publisher != nil {
		if err := t.publisher.PublishState(ctx, st); err != nil {
			t.logger.Debug("failed to publish progress state", zap.Int64("enrolment.id", t.pctx.EnrolmentID), zap.Error(err))
		}
	}
	return st, nil
}

// Current latest State, nil before the first refresh
func (t *Tracker) Current() *State {
	return t.store.Load()
}
