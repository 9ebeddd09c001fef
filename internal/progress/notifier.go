package progress

import (
	"context"
	"encoding/json"

	"github.com/pot-code/course-progress/internal/course"
	"github.com/pot-code/course-progress/internal/enrolment"
	"github.com/pot-code/course-progress/internal/infrastructure/driver"
)

// BusNotifier publishes lesson messages on the bus channel the Hub listens to
type BusNotifier struct {
	bus     driver.MessageBus
	channel string
}

var _ enrolment.Notifier = &BusNotifier{}

// NewBusNotifier ...
func NewBusNotifier(bus driver.MessageBus, channel string) *BusNotifier {
	return &BusNotifier{bus, channel}
}

// Notify publish msg
func (bn *BusNotifier) Notify(ctx context.Context, msg *Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return bn.bus.Publish(ctx, bn.channel, payload)
}

// NotifyLessonCompleted implement enrolment.Notifier
func (bn *BusNotifier) NotifyLessonCompleted(ctx context.Context, enrolmentID int64, lessonID course.LessonID) error {
	return bn.Notify(ctx, &Message{
		Kind:        KindLessonCompleted,
		EnrolmentID: enrolmentID,
		LessonID:    lessonID,
	})
}
