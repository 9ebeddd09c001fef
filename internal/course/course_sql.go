package course

import (
	"context"
	"database/sql"

	"github.com/pot-code/course-progress/internal/infrastructure/driver"
)

type SQLRepository struct {
	Conn driver.ITransactionalDB `dep:""`
}

var _ Repository = &SQLRepository{}

func NewCourseRepository(Conn driver.ITransactionalDB) *SQLRepository {
	return &SQLRepository{
		Conn: Conn,
	}
}

// treeRow one line of the course/module/lesson join
type treeRow struct {
	CourseID          int64
	CourseName        sql.NullString
	ModuleID          sql.NullInt64
	ModuleName        sql.NullString
	ModuleDescription sql.NullString
	ModuleUnits       sql.NullInt64
	ModuleLength      sql.NullInt64
	LessonID          sql.NullInt64
	LessonName        sql.NullString
	LessonLength      sql.NullInt64
	LessonTemplateURL sql.NullString
}

func (repo *SQLRepository) GetCourse(ctx context.Context, courseID int64) (*Course, error) {
	conn := repo.Conn
	rows, err := conn.QueryContext(ctx, `
SELECT
    c.id, c.course_name,
    m.id, m.module_name, m.description, m.number_of_lessons_in_module, m.module_length_in_minute,
    l.id, l.lesson_name, l.lesson_length_in_minute, l.lesson_template_url
FROM
    course c
        LEFT JOIN
    course_module m ON (m.course_id = c.id)
        LEFT JOIN
    lesson l ON (l.module_id = m.id)
WHERE
    c.id = $1
ORDER BY m.sort_order, m.id, l.sort_order, l.id
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*treeRow
	for rows.Next() {
		item := new(treeRow)
		err := rows.Scan(&item.CourseID, &item.CourseName,
			&item.ModuleID, &item.ModuleName, &item.ModuleDescription, &item.ModuleUnits, &item.ModuleLength,
			&item.LessonID, &item.LessonName, &item.LessonLength, &item.LessonTemplateURL)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, ErrNoSuchCourse
	}
	return assembleCourse(result), nil
}

// assembleCourse folds ordered join rows into the module tree, keeping row order
func assembleCourse(rows []*treeRow) *Course {
	c := &Course{ID: rows[0].CourseID, Name: rows[0].CourseName.String, Modules: Modules{}}
	index := make(map[int64]*Module)
	for _, row := range rows {
		if !row.ModuleID.Valid {
			continue
		}
		m, ok := index[row.ModuleID.Int64]
		if !ok {
			m = &Module{
				ID:          row.ModuleID.Int64,
				Name:        row.ModuleName.String,
				Description: row.ModuleDescription.String,
				Units:       nullableInt(row.ModuleUnits),
				Length:      nullableInt(row.ModuleLength),
				Lessons:     []*Lesson{},
			}
			index[m.ID] = m
			c.Modules = append(c.Modules, m)
		}
		if id, ok := ParseLessonID(row.LessonID.Int64); ok && row.LessonID.Valid {
			m.Lessons = append(m.Lessons, &Lesson{
				ID:          id,
				Name:        row.LessonName.String,
				Length:      nullableInt(row.LessonLength),
				TemplateURL: row.LessonTemplateURL.String,
			})
		}
	}
	return c
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
