package progress

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pot-code/course-progress/internal/course"
)

// LessonURLBuilder derives lesson deep links carrying the lesson and enrolment ids
type LessonURLBuilder struct {
	pctx    *Context
	page    *url.URL
	modules course.Modules
}

// NewLessonURLBuilder an unparsable PageURL leaves relative urls unresolved
func NewLessonURLBuilder(pctx *Context, modules course.Modules) *LessonURLBuilder {
	b := &LessonURLBuilder{pctx: pctx, modules: modules}
	if page, err := url.Parse(pctx.PageURL); err == nil && page.IsAbs() {
		b.page = page
	}
	return b
}

// Build return the url of lessonID based on base. An empty base falls back to
// the lesson template url, "" is returned when neither is available.
func (b *LessonURLBuilder) Build(base string, lessonID course.LessonID) string {
	if base == "" {
		if lesson, _ := b.modules.FindLesson(lessonID); lesson != nil {
			base = lesson.TemplateURL
		}
	}
	if base == "" {
		return ""
	}

	u, err := url.Parse(base)
	if err != nil {
		return b.concat(base, lessonID)
	}
	if b.page != nil {
		u = b.page.ResolveReference(u)
	}
	q := u.Query()
	q.Set("lessonId", lessonID.String())
	if b.pctx.EnrolmentID > 0 {
		q.Set("enrolmentId", strconv.FormatInt(b.pctx.EnrolmentID, 10))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (b *LessonURLBuilder) concat(base string, lessonID course.LessonID) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	out := base + sep + "lessonId=" + lessonID.String()
	if b.pctx.EnrolmentID > 0 {
		out += "&enrolmentId=" + strconv.FormatInt(b.pctx.EnrolmentID, 10)
	}
	return out
}
