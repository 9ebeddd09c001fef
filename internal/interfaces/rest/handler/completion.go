package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/course-progress/internal/course"
	"github.com/pot-code/course-progress/internal/enrolment"
	"github.com/pot-code/course-progress/internal/infrastructure/auth"
	"github.com/pot-code/course-progress/internal/infrastructure/validate"
	"github.com/pot-code/course-progress/internal/progress"
)

type CompletionHandler struct {
	completionUseCase enrolment.CompletionUseCase
	resolver          *progress.ContextResolver
	jwtUtil           *auth.JWTUtil
	validator         validate.Validator
}

func NewCompletionHandler(
	CompletionUseCase enrolment.CompletionUseCase,
	Resolver *progress.ContextResolver,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
) *CompletionHandler {
	return &CompletionHandler{CompletionUseCase, Resolver, JWTUtil, Validator}
}

// lessonContext ids a lesson window receives in its url
type lessonContext struct {
	EnrolmentID int64
	LessonID    course.LessonID
}

// bindLessonContext read the lesson context from the query string. A nil
// context means the response was written, or err must be handled.
func (ch *CompletionHandler) bindLessonContext(c echo.Context) (*lessonContext, error) {
	var invalid []*validate.FieldError
	enrolmentID, fe := parseID(ch.validator, "enrolmentId", c.QueryParam("enrolmentId"))
	invalid = append(invalid, fe...)
	lessonID, fe := parseID(ch.validator, "lessonId", c.QueryParam("lessonId"))
	invalid = append(invalid, fe...)
	if len(invalid) > 0 {
		return nil, c.JSON(http.StatusBadRequest,
			NewRESTValidationError(http.StatusBadRequest, "lesson context unavailable", invalid).SetTraceID(traceID(c)))
	}

	claims := ch.jwtUtil.GetContextToken(c)
	if _, err := ch.resolver.Authorize(c.Request().Context(), claims.ContactID, enrolmentID); err != nil {
		return nil, resolveError(c, err)
	}
	return &lessonContext{EnrolmentID: enrolmentID, LessonID: course.LessonID(lessonID)}, nil
}

// HandleGetCompletion report whether the lesson is completed
func (ch *CompletionHandler) HandleGetCompletion(c echo.Context) error {
	lc, err := ch.bindLessonContext(c)
	if lc == nil {
		return err
	}
	result, err := ch.completionUseCase.LessonCompletion(c.Request().Context(), lc.EnrolmentID, lc.LessonID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// HandleCompleteLesson mark the lesson completed and notify the course page
func (ch *CompletionHandler) HandleCompleteLesson(c echo.Context) error {
	lc, err := ch.bindLessonContext(c)
	if lc == nil {
		return err
	}
	result, err := ch.completionUseCase.CompleteLesson(c.Request().Context(), lc.EnrolmentID, lc.LessonID)
	if err != nil {
		return err
	}
	code := http.StatusOK
	if result.Created {
		code = http.StatusCreated
	}
	return c.JSON(code, result)
}
