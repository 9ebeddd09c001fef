package enrolment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pot-code/course-progress/internal/course"
	"github.com/pot-code/course-progress/internal/infrastructure/driver"
	"github.com/pot-code/course-progress/internal/infrastructure/uuid"
)

// SQLRepository implements every enrolment repository on one connection
type SQLRepository struct {
	Conn          driver.ITransactionalDB `dep:""`
	UUIDGenerator uuid.Generator          `dep:""`
}

var (
	_ Repository           = &SQLRepository{}
	_ InProgressRepository = &SQLRepository{}
	_ CompletionRepository = &SQLRepository{}
)

func NewEnrolmentRepository(Conn driver.ITransactionalDB, UUIDGenerator uuid.Generator) *SQLRepository {
	return &SQLRepository{Conn, UUIDGenerator}
}

func (repo *SQLRepository) GetEnrolment(ctx context.Context, enrolmentID int64) (*Enrolment, error) {
	conn := repo.Conn
	rows, err := conn.QueryContext(ctx, `
SELECT id, contact_id, course_id, last_lesson_id
FROM enrolment
WHERE id = $1
	`, enrolmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNoSuchEnrolment
	}
	item := new(Enrolment)
	var last sql.NullInt64
	if err := rows.Scan(&item.ID, &item.ContactID, &item.CourseID, &last); err != nil {
		return nil, err
	}
	if last.Valid {
		item.LastLessonID, _ = course.ParseLessonID(last.Int64)
	}
	return item, nil
}

func (repo *SQLRepository) GetLastLessonID(ctx context.Context, enrolmentID int64) (course.LessonID, error) {
	e, err := repo.GetEnrolment(ctx, enrolmentID)
	if err != nil {
		return 0, err
	}
	return e.LastLessonID, nil
}

func (repo *SQLRepository) UpdateLastLesson(ctx context.Context, enrolmentID int64, lessonID course.LessonID) error {
	conn := repo.Conn
	_, err := conn.ExecContext(ctx, `
UPDATE enrolment
SET last_lesson_id = $1
WHERE id = $2
	`, int64(lessonID), enrolmentID)
	return err
}

func (repo *SQLRepository) ListInProgress(ctx context.Context, enrolmentID int64) ([]course.LessonID, error) {
	return repo.listLessonIDs(ctx, `
SELECT lesson_id
FROM enrolment_lesson_in_progress
WHERE enrolment_id = $1
ORDER BY created_at, id
	`, enrolmentID)
}

func (repo *SQLRepository) CreateInProgress(ctx context.Context, enrolmentID int64, lessonID course.LessonID) error {
	err := repo.insertLink(ctx, `
INSERT INTO enrolment_lesson_in_progress(id, enrolment_id, lesson_id, created_at)
VALUES($1, $2, $3, $4)
	`, enrolmentID, lessonID)
	if errors.Is(err, driver.ErrDuplicateKey) {
		return ErrAlreadyInProgress
	}
	return err
}

func (repo *SQLRepository) ListCompleted(ctx context.Context, enrolmentID int64) ([]course.LessonID, error) {
	return repo.listLessonIDs(ctx, `
SELECT lesson_id
FROM enrolment_lesson_completion
WHERE enrolment_id = $1
ORDER BY created_at, id
	`, enrolmentID)
}

func (repo *SQLRepository) IsCompleted(ctx context.Context, enrolmentID int64, lessonID course.LessonID) (bool, error) {
	conn := repo.Conn
	rows, err := conn.QueryContext(ctx, `
SELECT 1
FROM enrolment_lesson_completion
WHERE enrolment_id = $1 AND lesson_id = $2
	`, enrolmentID, int64(lessonID))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	found := rows.Next()
	return found, rows.Err()
}

func (repo *SQLRepository) CreateCompletion(ctx context.Context, enrolmentID int64, lessonID course.LessonID) error {
	err := repo.insertLink(ctx, `
INSERT INTO enrolment_lesson_completion(id, enrolment_id, lesson_id, created_at)
VALUES($1, $2, $3, $4)
	`, enrolmentID, lessonID)
	if errors.Is(err, driver.ErrDuplicateKey) {
		return ErrAlreadyCompleted
	}
	return err
}

// insertLink relies on the unique (enrolment_id, lesson_id) index of the link tables
func (repo *SQLRepository) insertLink(ctx context.Context, query string, enrolmentID int64, lessonID course.LessonID) error {
	id, err := repo.UUIDGenerator.Generate()
	if err != nil {
		return err
	}
	_, err = repo.Conn.ExecContext(ctx, query, id, enrolmentID, int64(lessonID), time.Now().UTC())
	return err
}

func (repo *SQLRepository) listLessonIDs(ctx context.Context, query string, enrolmentID int64) ([]course.LessonID, error) {
	rows, err := repo.Conn.QueryContext(ctx, query, enrolmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []course.LessonID
	for rows.Next() {
		var raw sql.NullInt64
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		if id, ok := course.ParseLessonID(raw.Int64); ok && raw.Valid {
			result = append(result, id)
		}
	}
	return result, rows.Err()
}
