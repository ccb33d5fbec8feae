package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusops/enrollment-api/internal/models"
)

// seatUpdate is the guarded seat-counter mutation. The WHERE clause keeps
// occupied_seats inside [0, total_seats]; zero affected rows means the guard
// rejected the delta.
const seatUpdate = `UPDATE courses SET occupied_seats = occupied_seats + $2
        WHERE code = $1 AND occupied_seats + $2 >= 0 AND occupied_seats + $2 <= total_seats`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindActive returns the single ACTIVE enrollment for a (student, course) pair.
func (r *EnrollmentRepository) FindActive(ctx context.Context, studentCode, courseCode string) (*models.Enrollment, error) {
	const query = `SELECT id, student_code, course_code, created_at, closed_at, state FROM enrollments
        WHERE student_code = $1 AND course_code = $2 AND state = $3`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentCode, courseCode, models.EnrollmentStateActive); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ActiveByStudent returns the student's ACTIVE enrollments.
func (r *EnrollmentRepository) ActiveByStudent(ctx context.Context, studentCode string) ([]models.Enrollment, error) {
	return r.byStudentAndState(ctx, studentCode, models.EnrollmentStateActive)
}

// CompletedByStudent returns the student's COMPLETED enrollments.
func (r *EnrollmentRepository) CompletedByStudent(ctx context.Context, studentCode string) ([]models.Enrollment, error) {
	return r.byStudentAndState(ctx, studentCode, models.EnrollmentStateCompleted)
}

func (r *EnrollmentRepository) byStudentAndState(ctx context.Context, studentCode string, state models.EnrollmentState) ([]models.Enrollment, error) {
	const query = `SELECT id, student_code, course_code, created_at, closed_at, state FROM enrollments
        WHERE student_code = $1 AND state = $2`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, studentCode, state); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// ActiveByCourse returns the course's ACTIVE enrollments.
func (r *EnrollmentRepository) ActiveByCourse(ctx context.Context, courseCode string) ([]models.Enrollment, error) {
	const query = `SELECT id, student_code, course_code, created_at, closed_at, state FROM enrollments
        WHERE course_code = $1 AND state = $2`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, courseCode, models.EnrollmentStateActive); err != nil {
		return nil, fmt.Errorf("list course enrollments: %w", err)
	}
	return enrollments, nil
}

// ListActive returns every ACTIVE enrollment. Used by the term-close worker.
func (r *EnrollmentRepository) ListActive(ctx context.Context) ([]models.Enrollment, error) {
	const query = `SELECT id, student_code, course_code, created_at, closed_at, state FROM enrollments WHERE state = $1`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, models.EnrollmentStateActive); err != nil {
		return nil, fmt.Errorf("list active enrollments: %w", err)
	}
	return enrollments, nil
}

// CreateWithSeat inserts the enrollment and reserves its seat in one
// transaction. It returns false without error when the seat guard rejected the
// reservation (course already full).
func (r *EnrollmentRepository) CreateWithSeat(ctx context.Context, enrollment *models.Enrollment) (bool, error) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	if enrollment.State == "" {
		enrollment.State = models.EnrollmentStateActive
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, seatUpdate, enrollment.CourseCode, 1)
	if err != nil {
		return false, fmt.Errorf("reserve seat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve seat: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	const insert = `INSERT INTO enrollments (id, student_code, course_code, created_at, closed_at, state)
        VALUES (:id, :student_code, :course_code, :created_at, :closed_at, :state)`
	if _, err := tx.NamedExecContext(ctx, insert, enrollment); err != nil {
		return false, fmt.Errorf("create enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit enrollment: %w", err)
	}
	return true, nil
}

// TransitionActive moves an ACTIVE enrollment to a terminal state and releases
// its seat in one transaction. It returns false without error when the
// enrollment is no longer ACTIVE.
func (r *EnrollmentRepository) TransitionActive(ctx context.Context, id string, to models.EnrollmentState, at time.Time) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transition tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const update = `UPDATE enrollments SET state = $2, closed_at = $3 WHERE id = $1 AND state = $4
        RETURNING course_code`
	var courseCode string
	if err := tx.GetContext(ctx, &courseCode, update, id, to, at, models.EnrollmentStateActive); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("transition enrollment: %w", err)
	}

	res, err := tx.ExecContext(ctx, seatUpdate, courseCode, -1)
	if err != nil {
		return false, fmt.Errorf("release seat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release seat: %w", err)
	}
	if affected == 0 {
		return false, fmt.Errorf("release seat: counter for %s out of bounds", courseCode)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transition: %w", err)
	}
	return true, nil
}

// DetailsByStudent returns the student's enrollments enriched with course info.
func (r *EnrollmentRepository) DetailsByStudent(ctx context.Context, studentCode string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_code, e.course_code, e.created_at, e.closed_at, e.state,
        s.first_name || ' ' || s.last_name AS student_name, s.program,
        c.name AS course_name, c.credits, c.instructor, c.schedule
        FROM enrollments e
        JOIN students s ON s.code = e.student_code
        JOIN courses c ON c.code = e.course_code
        WHERE e.student_code = $1
        ORDER BY e.created_at DESC`
	var details []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &details, query, studentCode); err != nil {
		return nil, fmt.Errorf("list student enrollment details: %w", err)
	}
	return details, nil
}

// RosterByCourse returns the students actively enrolled in a course.
func (r *EnrollmentRepository) RosterByCourse(ctx context.Context, courseCode string) ([]models.RosterEntry, error) {
	const query = `SELECT e.student_code, s.first_name || ' ' || s.last_name AS student_name,
        s.program, s.email, e.created_at AS enrolled_at
        FROM enrollments e
        JOIN students s ON s.code = e.student_code
        WHERE e.course_code = $1 AND e.state = $2
        ORDER BY e.created_at ASC`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, courseCode, models.EnrollmentStateActive); err != nil {
		return nil, fmt.Errorf("list course roster: %w", err)
	}
	return roster, nil
}

type stateCountRow struct {
	State models.EnrollmentState `db:"state"`
	Count int                    `db:"count"`
}

type keyCountRow struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}

// CountByState returns the number of enrollments per state.
func (r *EnrollmentRepository) CountByState(ctx context.Context) (map[models.EnrollmentState]int, error) {
	const query = `SELECT state, COUNT(*) AS count FROM enrollments GROUP BY state`
	var rows []stateCountRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count enrollments by state: %w", err)
	}
	counts := make(map[models.EnrollmentState]int, len(rows))
	for _, row := range rows {
		counts[row.State] = row.Count
	}
	return counts, nil
}

// ActiveCountByProgram returns ACTIVE enrollment counts grouped by program.
func (r *EnrollmentRepository) ActiveCountByProgram(ctx context.Context) (map[string]int, error) {
	const query = `SELECT s.program AS key, COUNT(*) AS count
        FROM enrollments e
        JOIN students s ON s.code = e.student_code
        WHERE e.state = $1 GROUP BY s.program`
	return r.activeCounts(ctx, query)
}

// ActiveCountByCourse returns ACTIVE enrollment counts grouped by course code.
func (r *EnrollmentRepository) ActiveCountByCourse(ctx context.Context) (map[string]int, error) {
	const query = `SELECT course_code AS key, COUNT(*) AS count
        FROM enrollments WHERE state = $1 GROUP BY course_code`
	return r.activeCounts(ctx, query)
}

func (r *EnrollmentRepository) activeCounts(ctx context.Context, query string) (map[string]int, error) {
	var rows []keyCountRow
	if err := r.db.SelectContext(ctx, &rows, query, models.EnrollmentStateActive); err != nil {
		return nil, fmt.Errorf("count active enrollments: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Key] = row.Count
	}
	return counts, nil
}

// CountDistinctActiveStudents returns how many students hold at least one
// ACTIVE enrollment.
func (r *EnrollmentRepository) CountDistinctActiveStudents(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(DISTINCT student_code) FROM enrollments WHERE state = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, models.EnrollmentStateActive); err != nil {
		return 0, fmt.Errorf("count active students: %w", err)
	}
	return count, nil
}
