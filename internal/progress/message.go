package progress

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pot-code/course-progress/internal/course"
)

// Kind message type exchanged between lesson windows and the course page
type Kind string

// accepted message kinds
const (
	KindLessonCompleted       Kind = "lesson-completed"
	KindLessonProgressUpdated Kind = "lesson-progress-updated"
	KindLessonStateRefresh    Kind = "lesson-state-refresh"
)

var (
	// ErrMalformedMessage payload is not a json object with a string type
	ErrMalformedMessage = errors.New("malformed message")
	// ErrUnknownKind payload type is not one of the accepted kinds
	ErrUnknownKind = errors.New("unknown message kind")
)

// Message notification sent by a lesson window. EnrolmentID 0 addresses every session.
type Message struct {
	Kind        Kind            `json:"type"`
	EnrolmentID int64           `json:"enrolmentId,omitempty"`
	LessonID    course.LessonID `json:"lessonId,omitempty"`
}

// ParseMessage decode and validate an untyped payload
func ParseMessage(payload []byte) (*Message, error) {
	var raw map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return nil, ErrMalformedMessage
	}

	kind, ok := raw["type"].(string)
	if !ok {
		return nil, ErrMalformedMessage
	}
	msg := &Message{Kind: Kind(kind)}
	switch msg.Kind {
	case KindLessonCompleted, KindLessonProgressUpdated, KindLessonStateRefresh:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if v, present := raw["enrolmentId"]; present && v != nil {
		id, ok := course.ParseLessonID(v)
		if !ok {
			return nil, fmt.Errorf("%w: invalid enrolmentId", ErrMalformedMessage)
		}
		msg.EnrolmentID = int64(id)
	}
	msg.LessonID, _ = course.ParseLessonID(raw["lessonId"])
	return msg, nil
}

// Addresses whether the message concerns enrolmentID
func (m *Message) Addresses(enrolmentID int64) bool {
	return m.EnrolmentID == 0 || m.EnrolmentID == enrolmentID
}
