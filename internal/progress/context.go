package progress

import (
	"context"
	"errors"

	"github.com/pot-code/course-progress/internal/course"
	"github.com/pot-code/course-progress/internal/enrolment"
)

// ErrForeignEnrolment the enrolment belongs to another contact
var ErrForeignEnrolment = errors.New("enrolment belongs to another contact")

// Context identifies the enrolment a session works on, built once and shared by
// every component of the session
type Context struct {
	EnrolmentID int64
	ContactID   int64
	CourseID    int64
	PageURL     string // relative lesson urls resolve against it
}

// CourseTrees source of course module trees
type CourseTrees interface {
	Load(ctx context.Context, courseID int64) (*course.Course, error)
}

var _ CourseTrees = &course.TreeLoader{}

// ContextResolver builds the Context of a learner's enrolment
type ContextResolver struct {
	Enrolments enrolment.Repository
	Trees      CourseTrees
	PageURL    string
}

// NewContextResolver ...
func NewContextResolver(Enrolments enrolment.Repository, Trees CourseTrees, PageURL string) *ContextResolver {
	return &ContextResolver{Enrolments, Trees, PageURL}
}

// Authorize load the enrolment, it must belong to contactID
func (cr *ContextResolver) Authorize(ctx context.Context, contactID, enrolmentID int64) (*enrolment.Enrolment, error) {
	e, err := cr.Enrolments.GetEnrolment(ctx, enrolmentID)
	if err != nil {
		return nil, err
	}
	if e.ContactID != contactID {
		return nil, ErrForeignEnrolment
	}
	return e, nil
}

// Resolve load the enrolment and its course tree, the enrolment must belong to contactID
func (cr *ContextResolver) Resolve(ctx context.Context, contactID, enrolmentID int64) (*Context, *course.Course, error) {
	e, err := cr.Authorize(ctx, contactID, enrolmentID)
	if err != nil {
		return nil, nil, err
	}
	tree, err := cr.Trees.Load(ctx, e.CourseID)
	if err != nil {
		return nil, nil, err
	}
	return &Context{
		EnrolmentID: e.ID,
		ContactID:   e.ContactID,
		CourseID:    e.CourseID,
		PageURL:     cr.PageURL,
	}, tree, nil
}
