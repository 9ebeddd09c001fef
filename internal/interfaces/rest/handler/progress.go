package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/course-progress/internal/course"
	"github.com/pot-code/course-progress/internal/enrolment"
	"github.com/pot-code/course-progress/internal/infrastructure/auth"
	"github.com/pot-code/course-progress/internal/infrastructure/validate"
	"github.com/pot-code/course-progress/internal/progress"
)

type ProgressHandler struct {
	resolver   *progress.ContextResolver
	aggregator *progress.Aggregator
	jwtUtil    *auth.JWTUtil
	validator  validate.Validator
}

func NewProgressHandler(
	Resolver *progress.ContextResolver,
	Aggregator *progress.Aggregator,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
) *ProgressHandler {
	return &ProgressHandler{Resolver, Aggregator, JWTUtil, Validator}
}

// HandleGetProgress aggregate the progress state of an enrolment once
func (ph *ProgressHandler) HandleGetProgress(c echo.Context) error {
	enrolmentID, invalid := parseID(ph.validator, "enrolmentId", c.Param("enrolmentId"))
	if invalid != nil {
		return respondInvalid(c, invalid)
	}

	ctx := c.Request().Context()
	claims := ph.jwtUtil.GetContextToken(c)
	pctx, tree, err := ph.resolver.Resolve(ctx, claims.ContactID, enrolmentID)
	if err != nil {
		return resolveError(c, err)
	}
	st, err := ph.aggregator.Refresh(ctx, pctx, tree.Modules)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

type lessonURLResponse struct {
	LessonID course.LessonID `json:"lessonId"`
	URL      string          `json:"url"`
}

// HandleGetLessonURL build the deep link of a lesson, the optional base query param overrides the template url
func (ph *ProgressHandler) HandleGetLessonURL(c echo.Context) error {
	enrolmentID, invalid := parseID(ph.validator, "enrolmentId", c.Param("enrolmentId"))
	if invalid != nil {
		return respondInvalid(c, invalid)
	}
	lessonID, invalid := parseID(ph.validator, "lessonId", c.Param("lessonId"))
	if invalid != nil {
		return respondInvalid(c, invalid)
	}

	claims := ph.jwtUtil.GetContextToken(c)
	pctx, tree, err := ph.resolver.Resolve(c.Request().Context(), claims.ContactID, enrolmentID)
	if err != nil {
		return resolveError(c, err)
	}
	u := progress.NewLessonURLBuilder(pctx, tree.Modules).Build(c.QueryParam("base"), course.LessonID(lessonID))
	if u == "" {
		return respondError(c, http.StatusNotFound, fmt.Sprintf("lesson %d has no url", lessonID))
	}
	return c.JSON(http.StatusOK, &lessonURLResponse{LessonID: course.LessonID(lessonID), URL: u})
}

// parseID validate a positive numeric id
func parseID(v validate.Validator, name, raw string) (int64, []*validate.FieldError) {
	if invalid := v.Empty(name, raw); invalid != nil {
		return 0, invalid
	}
	if invalid := v.Var(name, raw, "numeric"); invalid != nil {
		return 0, invalid
	}
	id, ok := course.ParseLessonID(raw)
	if !ok {
		return 0, []*validate.FieldError{validate.NewFieldError(name, fmt.Sprintf("%s must be a positive integer", name))}
	}
	return int64(id), nil
}

func resolveError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, enrolment.ErrNoSuchEnrolment), errors.Is(err, course.ErrNoSuchCourse):
		return respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, progress.ErrForeignEnrolment):
		return respondError(c, http.StatusForbidden, err.Error())
	}
	return err
}
