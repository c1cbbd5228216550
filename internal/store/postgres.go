package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanStudent(row pgx.Row) (*Student, error) {
	st := &Student{}
	err := row.Scan(&st.ID, &st.Name, &st.Gcurrent, &st.Gmin, &st.Gmax,
		&st.Ar, &st.Ls, &st.Ph, &st.Actual, &st.CreatedAt, &st.UpdatedAt)
	return st, err
}

func (s *PostgresStore) GetStudent(ctx context.Context, id int64) (*Student, error) {
	st, err := scanStudent(s.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *PostgresStore) ListStudents(ctx context.Context) ([]*Student, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+studentColumns+` FROM students ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []*Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

func (s *PostgresStore) UpsertStudent(ctx context.Context, st *Student) error {
	if st.ID == 0 {
		return s.pool.QueryRow(ctx, `
			INSERT INTO students (name, g_current, g_min, g_max, ar, ls, ph, actual)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, created_at, updated_at`,
			st.Name, st.Gcurrent, st.Gmin, st.Gmax, st.Ar, st.Ls, st.Ph, st.Actual,
		).Scan(&st.ID, &st.CreatedAt, &st.UpdatedAt)
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO students (id, name, g_current, g_min, g_max, ar, ls, ph, actual)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			g_current = EXCLUDED.g_current,
			g_min = EXCLUDED.g_min,
			g_max = EXCLUDED.g_max,
			ar = EXCLUDED.ar,
			ls = EXCLUDED.ls,
			ph = EXCLUDED.ph,
			actual = EXCLUDED.actual,
			updated_at = NOW()
		RETURNING created_at, updated_at`,
		st.ID, st.Name, st.Gcurrent, st.Gmin, st.Gmax, st.Ar, st.Ls, st.Ph, st.Actual,
	).Scan(&st.CreatedAt, &st.UpdatedAt)
}

// DeleteStudent removes the student; enrollments, plan rows and history cascade.
func (s *PostgresStore) DeleteStudent(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	return err
}

const enrollmentSelectPG = `
	SELECT e.id, e.student_id, e.course_id, e.course_name, e.enabled, e.grade, COALESCE(c.difficulty, 2.0)
	FROM enrollments e
	LEFT JOIN courses c ON c.id = e.course_id`

func scanEnrollment(row pgx.Row) (*Enrollment, error) {
	e := &Enrollment{}
	err := row.Scan(&e.ID, &e.StudentID, &e.CourseID, &e.Name, &e.Enabled, &e.Grade, &e.Difficulty)
	return e, err
}

func (s *PostgresStore) GetEnrollments(ctx context.Context, studentID int64) ([]*Enrollment, error) {
	rows, err := s.pool.Query(ctx, enrollmentSelectPG+`
		WHERE e.student_id = $1
		ORDER BY e.course_name, e.id`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetEnrollment(ctx context.Context, id int64) (*Enrollment, error) {
	e, err := scanEnrollment(s.pool.QueryRow(ctx, enrollmentSelectPG+` WHERE e.id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *PostgresStore) UpdateEnrollment(ctx context.Context, e *Enrollment) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE enrollments SET enabled = $2, grade = $3 WHERE id = $1`,
		e.ID, e.Enabled, e.Grade)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("enrollment %d not found", e.ID)
	}
	return nil
}

func (s *PostgresStore) EnsureEnrollments(ctx context.Context, studentID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO enrollments (student_id, course_name, enabled, grade, course_id)
		SELECT $1, c.name, FALSE, NULL, c.id
		FROM courses c
		WHERE c.name NOT IN (SELECT course_name FROM enrollments WHERE student_id = $1)
		ORDER BY c.name`, studentID)
	return err
}

func (s *PostgresStore) GetCatalog(ctx context.Context) ([]*Course, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.name, c.difficulty,
			COALESCE(ARRAY_AGG(p.prerequisite_course_id ORDER BY p.id)
				FILTER (WHERE p.prerequisite_course_id IS NOT NULL), '{}')
		FROM courses c
		LEFT JOIN course_prerequisites p ON p.course_id = c.id
		GROUP BY c.id, c.name, c.difficulty
		ORDER BY c.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Course
	for rows.Next() {
		c := &Course{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Difficulty, &c.Prerequisites); err != nil {
			return nil, err
		}
		if len(c.Prerequisites) == 0 {
			c.Prerequisites = nil
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateCourse(ctx context.Context, c *Course) error {
	if c.Difficulty <= 0 {
		c.Difficulty = DefaultDifficulty
	}
	if err := s.pool.QueryRow(ctx,
		`INSERT INTO courses (name, difficulty) VALUES ($1, $2) RETURNING id`,
		c.Name, c.Difficulty,
	).Scan(&c.ID); err != nil {
		return fmt.Errorf("create course %q: %w", c.Name, err)
	}
	return s.resolveEnrollments(ctx)
}

func (s *PostgresStore) GetPrerequisites(ctx context.Context, courseID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT prerequisite_course_id FROM course_prerequisites
		WHERE course_id = $1 ORDER BY id`, courseID)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

func (s *PostgresStore) AddPrerequisite(ctx context.Context, courseID, prerequisiteID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO course_prerequisites (course_id, prerequisite_course_id)
		VALUES ($1, $2)
		ON CONFLICT (course_id, prerequisite_course_id) DO NOTHING`,
		courseID, prerequisiteID)
	return err
}

func (s *PostgresStore) EnsureCatalog(ctx context.Context, names []string) error {
	if len(names) > 0 {
		if _, err := s.pool.Exec(ctx, `
			INSERT INTO courses (name, difficulty)
			SELECT n, $2 FROM UNNEST($1::text[]) AS n
			ON CONFLICT (name) DO NOTHING`, names, DefaultDifficulty); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
	}
	return s.resolveEnrollments(ctx)
}

func (s *PostgresStore) resolveEnrollments(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE enrollments e
		SET course_id = c.id
		FROM courses c
		WHERE c.name = e.course_name AND e.course_id IS NULL`)
	return err
}

func (s *PostgresStore) SavePlan(ctx context.Context, studentID int64, semester string, courseIDs []int64) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, cid := range courseIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO trajectory_plan (student_id, course_id, semester, status)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (student_id, course_id, semester) DO NOTHING`,
				studentID, cid, semester, string(PlanStatusPlanned)); err != nil {
				return fmt.Errorf("plan course %d: %w", cid, err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) RemoveFromPlan(ctx context.Context, studentID int64, semester string, courseID int64) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM trajectory_plan
		WHERE student_id = $1 AND course_id = $2 AND semester = $3`,
		studentID, courseID, semester)
	return err
}

func (s *PostgresStore) GetPlan(ctx context.Context, studentID int64, semester string) ([]*PlanEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tp.student_id, tp.course_id, c.name, tp.semester, tp.status, tp.created_at
		FROM trajectory_plan tp
		JOIN courses c ON c.id = tp.course_id
		WHERE tp.student_id = $1 AND tp.semester = $2
		ORDER BY c.name`, studentID, semester)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PlanEntry
	for rows.Next() {
		p := &PlanEntry{}
		if err := rows.Scan(&p.StudentID, &p.CourseID, &p.Name, &p.Semester, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendHistory(ctx context.Context, h *HistoryRecord) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO prediction_history (id, student_id, p_initial, p_adjusted,
			alpha, beta, gamma, delta, epsilon, actual, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`,
		h.ID, h.StudentID, h.Initial, h.Adjusted,
		h.Alpha, h.Beta, h.Gamma, h.Delta, h.Epsilon, h.Actual, h.Error,
	).Scan(&h.CreatedAt)
}

func (s *PostgresStore) ListHistory(ctx context.Context, studentID int64) ([]*HistoryRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, student_id, p_initial, p_adjusted, alpha, beta, gamma, delta, epsilon,
			actual, error, created_at
		FROM prediction_history
		WHERE student_id = $1
		ORDER BY created_at ASC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*HistoryRecord
	for rows.Next() {
		h := &HistoryRecord{}
		if err := rows.Scan(&h.ID, &h.StudentID, &h.Initial, &h.Adjusted,
			&h.Alpha, &h.Beta, &h.Gamma, &h.Delta, &h.Epsilon,
			&h.Actual, &h.Error, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
