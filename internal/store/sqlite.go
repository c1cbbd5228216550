package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists to a single SQLite file through modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection serializes writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS students (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			g_current REAL,
			g_min REAL,
			g_max REAL,
			ar REAL,
			ls REAL,
			ph REAL,
			actual REAL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS courses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			difficulty REAL NOT NULL DEFAULT 2.0
		);
		CREATE TABLE IF NOT EXISTS enrollments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			student_id INTEGER NOT NULL REFERENCES students(id) ON DELETE CASCADE,
			course_name TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 0,
			grade REAL,
			course_id INTEGER REFERENCES courses(id) ON DELETE SET NULL
		);
		CREATE TABLE IF NOT EXISTS course_prerequisites (
			course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
			prerequisite_course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
			UNIQUE(course_id, prerequisite_course_id)
		);
		CREATE TABLE IF NOT EXISTS trajectory_plan (
			student_id INTEGER NOT NULL REFERENCES students(id) ON DELETE CASCADE,
			course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
			semester TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'planned',
			created_at TEXT NOT NULL,
			UNIQUE(student_id, course_id, semester)
		);
		CREATE TABLE IF NOT EXISTS prediction_history (
			id TEXT PRIMARY KEY,
			student_id INTEGER NOT NULL REFERENCES students(id) ON DELETE CASCADE,
			p_initial REAL NOT NULL,
			p_adjusted REAL,
			alpha REAL NOT NULL,
			beta REAL NOT NULL,
			gamma REAL NOT NULL,
			delta REAL NOT NULL,
			epsilon REAL NOT NULL,
			actual REAL,
			error REAL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_enrollments_student ON enrollments(student_id);
		CREATE INDEX IF NOT EXISTS idx_history_student ON prediction_history(student_id, created_at);
	`)
	return err
}

// Students

// studentColumns is shared by the SQL backends.
const studentColumns = `id, name, g_current, g_min, g_max, ar, ls, ph, actual, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteStudent(row rowScanner) (*Student, error) {
	st := &Student{}
	var created, updated string
	if err := row.Scan(&st.ID, &st.Name, &st.Gcurrent, &st.Gmin, &st.Gmax,
		&st.Ar, &st.Ls, &st.Ph, &st.Actual, &created, &updated); err != nil {
		return nil, err
	}
	st.CreatedAt = parseTime(created)
	st.UpdatedAt = parseTime(updated)
	return st, nil
}

func (s *SQLiteStore) GetStudent(ctx context.Context, id int64) (*Student, error) {
	st, err := scanSQLiteStudent(s.db.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *SQLiteStore) ListStudents(ctx context.Context) ([]*Student, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+studentColumns+` FROM students ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Student
	for rows.Next() {
		st, err := scanSQLiteStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertStudent(ctx context.Context, st *Student) error {
	now := time.Now().UTC()
	ts := formatTime(now)

	if st.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO students (name, g_current, g_min, g_max, ar, ls, ph, actual, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			st.Name, st.Gcurrent, st.Gmin, st.Gmax, st.Ar, st.Ls, st.Ph, st.Actual, ts, ts)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		st.ID = id
		st.CreatedAt, st.UpdatedAt = now, now
		return nil
	}

	var created string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO students (id, name, g_current, g_min, g_max, ar, ls, ph, actual, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			g_current = excluded.g_current,
			g_min = excluded.g_min,
			g_max = excluded.g_max,
			ar = excluded.ar,
			ls = excluded.ls,
			ph = excluded.ph,
			actual = excluded.actual,
			updated_at = excluded.updated_at
		RETURNING created_at`,
		st.ID, st.Name, st.Gcurrent, st.Gmin, st.Gmax, st.Ar, st.Ls, st.Ph, st.Actual, ts, ts,
	).Scan(&created)
	if err != nil {
		return err
	}
	st.CreatedAt = parseTime(created)
	st.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) DeleteStudent(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM enrollments WHERE student_id = ?`,
		`DELETE FROM trajectory_plan WHERE student_id = ?`,
		`DELETE FROM prediction_history WHERE student_id = ?`,
		`DELETE FROM students WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Enrollments

const enrollmentSelect = `
	SELECT e.id, e.student_id, e.course_id, e.course_name, e.enabled, e.grade, COALESCE(c.difficulty, 2.0)
	FROM enrollments e
	LEFT JOIN courses c ON c.id = e.course_id`

func scanSQLiteEnrollment(row rowScanner) (*Enrollment, error) {
	e := &Enrollment{}
	var enabled int
	if err := row.Scan(&e.ID, &e.StudentID, &e.CourseID, &e.Name, &enabled, &e.Grade, &e.Difficulty); err != nil {
		return nil, err
	}
	e.Enabled = enabled != 0
	return e, nil
}

func (s *SQLiteStore) GetEnrollments(ctx context.Context, studentID int64) ([]*Enrollment, error) {
	rows, err := s.db.QueryContext(ctx, enrollmentSelect+` WHERE e.student_id = ? ORDER BY e.course_name, e.id`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Enrollment
	for rows.Next() {
		e, err := scanSQLiteEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetEnrollment(ctx context.Context, id int64) (*Enrollment, error) {
	e, err := scanSQLiteEnrollment(s.db.QueryRowContext(ctx, enrollmentSelect+` WHERE e.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (s *SQLiteStore) UpdateEnrollment(ctx context.Context, e *Enrollment) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE enrollments SET enabled = ?, grade = ? WHERE id = ?`,
		boolToInt(e.Enabled), e.Grade, e.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("enrollment %d not found", e.ID)
	}
	return nil
}

func (s *SQLiteStore) EnsureEnrollments(ctx context.Context, studentID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO enrollments (student_id, course_name, enabled, grade, course_id)
		SELECT ?, c.name, 0, NULL, c.id
		FROM courses c
		WHERE c.name NOT IN (SELECT course_name FROM enrollments WHERE student_id = ?)
		ORDER BY c.name`, studentID, studentID)
	return err
}

// Catalog

func (s *SQLiteStore) GetCatalog(ctx context.Context) ([]*Course, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, difficulty FROM courses ORDER BY name`)
	if err != nil {
		return nil, err
	}
	var out []*Course
	for rows.Next() {
		c := &Course{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Difficulty); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prereqs, err := s.allPrerequisites(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range out {
		c.Prerequisites = prereqs[c.ID]
	}
	return out, nil
}

func (s *SQLiteStore) allPrerequisites(ctx context.Context) (map[int64][]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT course_id, prerequisite_course_id FROM course_prerequisites ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := make(map[int64][]int64)
	for rows.Next() {
		var cid, pid int64
		if err := rows.Scan(&cid, &pid); err != nil {
			return nil, err
		}
		m[cid] = append(m[cid], pid)
	}
	return m, rows.Err()
}

func (s *SQLiteStore) CreateCourse(ctx context.Context, c *Course) error {
	if c.Difficulty <= 0 {
		c.Difficulty = DefaultDifficulty
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO courses (name, difficulty) VALUES (?, ?)`, c.Name, c.Difficulty)
	if err != nil {
		return fmt.Errorf("create course %q: %w", c.Name, err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	return s.resolveEnrollments(ctx)
}

func (s *SQLiteStore) GetPrerequisites(ctx context.Context, courseID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT prerequisite_course_id FROM course_prerequisites WHERE course_id = ? ORDER BY rowid`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddPrerequisite(ctx context.Context, courseID, prerequisiteID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO course_prerequisites (course_id, prerequisite_course_id)
		VALUES (?, ?)`, courseID, prerequisiteID)
	return err
}

func (s *SQLiteStore) EnsureCatalog(ctx context.Context, names []string) error {
	for _, name := range names {
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO courses (name, difficulty) VALUES (?, ?)`, name, DefaultDifficulty); err != nil {
			return fmt.Errorf("seed course %q: %w", name, err)
		}
	}
	return s.resolveEnrollments(ctx)
}

func (s *SQLiteStore) resolveEnrollments(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE enrollments
		SET course_id = (SELECT id FROM courses WHERE courses.name = enrollments.course_name)
		WHERE (course_id IS NULL OR course_id = 0)
		  AND course_name IN (SELECT name FROM courses)`)
	return err
}

// Plans

func (s *SQLiteStore) SavePlan(ctx context.Context, studentID int64, semester string, courseIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := formatTime(time.Now().UTC())
	for _, cid := range courseIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO trajectory_plan (student_id, course_id, semester, status, created_at)
			VALUES (?, ?, ?, ?, ?)`, studentID, cid, semester, string(PlanStatusPlanned), ts); err != nil {
			return fmt.Errorf("plan course %d: %w", cid, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) RemoveFromPlan(ctx context.Context, studentID int64, semester string, courseID int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM trajectory_plan
		WHERE student_id = ? AND course_id = ? AND semester = ?`, studentID, courseID, semester)
	return err
}

func (s *SQLiteStore) GetPlan(ctx context.Context, studentID int64, semester string) ([]*PlanEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tp.student_id, tp.course_id, c.name, tp.semester, tp.status, tp.created_at
		FROM trajectory_plan tp
		JOIN courses c ON c.id = tp.course_id
		WHERE tp.student_id = ? AND tp.semester = ?
		ORDER BY c.name`, studentID, semester)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PlanEntry
	for rows.Next() {
		p := &PlanEntry{}
		var status, created string
		if err := rows.Scan(&p.StudentID, &p.CourseID, &p.Name, &p.Semester, &status, &created); err != nil {
			return nil, err
		}
		p.Status = PlanStatus(status)
		p.CreatedAt = parseTime(created)
		out = append(out, p)
	}
	return out, rows.Err()
}

// History

func (s *SQLiteStore) AppendHistory(ctx context.Context, h *HistoryRecord) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prediction_history (id, student_id, p_initial, p_adjusted,
			alpha, beta, gamma, delta, epsilon, actual, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID.String(), h.StudentID, h.Initial, h.Adjusted,
		h.Alpha, h.Beta, h.Gamma, h.Delta, h.Epsilon, h.Actual, h.Error, formatTime(h.CreatedAt))
	return err
}

func (s *SQLiteStore) ListHistory(ctx context.Context, studentID int64) ([]*HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, p_initial, p_adjusted, alpha, beta, gamma, delta, epsilon, actual, error, created_at
		FROM prediction_history
		WHERE student_id = ?
		ORDER BY created_at, rowid`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*HistoryRecord
	for rows.Next() {
		h := &HistoryRecord{}
		var id, created string
		if err := rows.Scan(&id, &h.StudentID, &h.Initial, &h.Adjusted,
			&h.Alpha, &h.Beta, &h.Gamma, &h.Delta, &h.Epsilon, &h.Actual, &h.Error, &created); err != nil {
			return nil, err
		}
		if h.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse history id %q: %w", id, err)
		}
		h.CreatedAt = parseTime(created)
		out = append(out, h)
	}
	return out, rows.Err()
}

// sqliteTime is fixed width so stored timestamps sort lexically.
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
