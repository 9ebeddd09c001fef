package course

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrNoSuchCourse course id matched nothing
var ErrNoSuchCourse = errors.New("no such course")

// LessonID canonical lesson identifier, zero means absent
type LessonID int64

// Valid reports whether the id refers to a lesson
func (id LessonID) Valid() bool {
	return id > 0
}

func (id LessonID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseLessonID normalizes loosely typed ids coming from the store or from
// browser messages. Null, non-numeric, fractional and non-positive values are absent.
func ParseLessonID(v interface{}) (LessonID, bool) {
	var n int64
	switch t := v.(type) {
	case nil:
		return 0, false
	case LessonID:
		n = int64(t)
	case int:
		n = int64(t)
	case int32:
		n = int64(t)
	case int64:
		n = t
	case uint:
		n = int64(t)
	case uint32:
		n = int64(t)
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		n = int64(t)
	case float64:
		// 1<<63 is the first float64 outside the int64 range
		if t != math.Trunc(t) || t < 1 || t >= 1<<63 {
			return 0, false
		}
		n = int64(t)
	case json.Number:
		parsed, err := t.Int64()
		if err != nil {
			return 0, false
		}
		n = parsed
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	case []byte:
		return ParseLessonID(string(t))
	default:
		return 0, false
	}
	id := LessonID(n)
	return id, id.Valid()
}

// Lesson a single content unit within a module
type Lesson struct {
	ID          LessonID `json:"id"`
	Name        string   `json:"lesson_name"`
	Length      *int     `json:"lesson_length"` // minutes
	TemplateURL string   `json:"lesson_template_url"`
}

// Module an ordered grouping of lessons
type Module struct {
	ID          int64     `json:"id"`
	Name        string    `json:"module_name"`
	Description string    `json:"description"`
	Units       *int      `json:"modules_unit"`   // number of lessons advertised by the module
	Length      *int      `json:"modules_length"` // minutes
	Lessons     []*Lesson `json:"lessons"`
}

// Modules module tree of a course in display order
type Modules []*Module

// FindLesson search lesson by id, the first match wins when ids repeat across modules
func (ms Modules) FindLesson(id LessonID) (*Lesson, *Module) {
	if !id.Valid() {
		return nil, nil
	}
	for _, m := range ms {
		for _, l := range m.Lessons {
			if l.ID == id {
				return l, m
			}
		}
	}
	return nil, nil
}

// FirstLesson first lesson of the first module having any
func (ms Modules) FirstLesson() (*Lesson, *Module) {
	for _, m := range ms {
		if len(m.Lessons) > 0 {
			return m.Lessons[0], m
		}
	}
	return nil, nil
}

// LessonCount lessons across all modules
func (ms Modules) LessonCount() int {
	var n int
	for _, m := range ms {
		n += len(m.Lessons)
	}
	return n
}

// Course course snapshot with its module tree
type Course struct {
	ID      int64   `json:"id"`
	Name    string  `json:"course_name"`
	Modules Modules `json:"modules"`
}

// Repository read access to course trees
type Repository interface {
	GetCourse(ctx context.Context, courseID int64) (*Course, error)
}
