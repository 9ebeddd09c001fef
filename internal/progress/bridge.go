package progress

import (
	"context"

	"go.uber.org/zap"
)

// Bridge refreshes a session when lesson windows report progress on its enrolment
type Bridge struct {
	pctx      *Context
	refresher Refresher
	logger    *zap.Logger
}

// NewBridge ...
func NewBridge(pctx *Context, refresher Refresher, logger *zap.Logger) *Bridge {
	return &Bridge{pctx, refresher, logger}
}

// EnrolmentID enrolment the bridge listens for
func (b *Bridge) EnrolmentID() int64 {
	return b.pctx.EnrolmentID
}

// Receive decode payload and handle it, undecodable payloads are dropped
func (b *Bridge) Receive(ctx context.Context, payload []byte) bool {
	msg, err := ParseMessage(payload)
	if err != nil {
		b.logger.Debug("dropped lesson message", zap.Error(err))
		return false
	}
	return b.Handle(ctx, msg)
}

// Handle refresh once per message addressed to the session enrolment, it
// reports whether a refresh ran
func (b *Bridge) Handle(ctx context.Context, msg *Message) bool {
	if !msg.Addresses(b.pctx.EnrolmentID) {
		return false
	}
	b.logger.Debug("lesson message received",
		zap.String("message.type", string(msg.Kind)),
		zap.Int64("enrolment.id", b.pctx.EnrolmentID),
		zap.Int64("lesson.id", int64(msg.LessonID)))
	b.refresher.Refresh(ctx)
	return true
}
