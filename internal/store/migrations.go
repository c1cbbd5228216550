package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Migration is one forward-only schema step.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
}

const migration001Up = `
CREATE TABLE IF NOT EXISTS students (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	g_current DOUBLE PRECISION,
	g_min DOUBLE PRECISION,
	g_max DOUBLE PRECISION,
	ar DOUBLE PRECISION,
	ls DOUBLE PRECISION,
	ph DOUBLE PRECISION,
	actual DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS courses (
	id BIGSERIAL PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	difficulty DOUBLE PRECISION NOT NULL DEFAULT 2.0
);

CREATE TABLE IF NOT EXISTS enrollments (
	id BIGSERIAL PRIMARY KEY,
	student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	course_name TEXT NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT FALSE,
	grade DOUBLE PRECISION,
	course_id BIGINT REFERENCES courses(id) ON DELETE SET NULL
);
CREATE INDEX IF NOT EXISTS idx_enrollments_student ON enrollments(student_id);

CREATE TABLE IF NOT EXISTS course_prerequisites (
	id BIGSERIAL PRIMARY KEY,
	course_id BIGINT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
	prerequisite_course_id BIGINT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
	UNIQUE(course_id, prerequisite_course_id)
);
`

const migration002Up = `
CREATE TABLE IF NOT EXISTS trajectory_plan (
	student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	course_id BIGINT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
	semester TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'planned',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE(student_id, course_id, semester)
);

CREATE TABLE IF NOT EXISTS prediction_history (
	id UUID PRIMARY KEY,
	student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	p_initial DOUBLE PRECISION NOT NULL,
	p_adjusted DOUBLE PRECISION,
	alpha DOUBLE PRECISION NOT NULL,
	beta DOUBLE PRECISION NOT NULL,
	gamma DOUBLE PRECISION NOT NULL,
	delta DOUBLE PRECISION NOT NULL,
	epsilon DOUBLE PRECISION NOT NULL,
	actual DOUBLE PRECISION,
	error DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_history_student ON prediction_history(student_id, created_at);
`

// Migrations returns the embedded schema steps in version order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_catalog", UpSQL: migration001Up},
		{Version: 2, Name: "create_plan_and_history", UpSQL: migration002Up},
	}
}

// Migrate applies pending migrations, recording each in schema_migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("query applied migrations: %w", err)
	}
	applied, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return fmt.Errorf("scan applied migrations: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, m := range Migrations() {
		if done[m.Version] {
			continue
		}
		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}
