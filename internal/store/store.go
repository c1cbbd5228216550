package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PassGrade is the minimum grade (0–100 scale) for a course to count as passed.
const PassGrade = 60.0

// DefaultDifficulty is assigned to catalog courses created without one.
const DefaultDifficulty = 2.0

// DefaultCourses seeds an empty catalog.
var DefaultCourses = []string{
	"Mathematics",
	"Physics",
	"Programming",
	"Discrete Structures",
	"Databases",
	"Algorithms",
	"Computer Architecture",
	"Linear Algebra",
}

var ErrUnsupportedBackend = errors.New("unsupported store backend")

// Student is the per-student input to prediction. Nil numerics are unknown, not zero.
type Student struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`

	Gcurrent *float64 `json:"g_current,omitempty"`
	Gmin     *float64 `json:"g_min,omitempty"`
	Gmax     *float64 `json:"g_max,omitempty"`

	Ar *float64 `json:"ar,omitempty"`
	Ls *float64 `json:"ls,omitempty"`
	Ph *float64 `json:"ph,omitempty"`

	// Observed outcome, 0–1 or 0–100.
	Actual *float64 `json:"actual,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Course is a catalog entry.
type Course struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Difficulty    float64 `json:"difficulty"`
	Prerequisites []int64 `json:"prerequisites,omitempty"`
}

// Enrollment is a student×course row. CourseID stays nil until the name resolves against the catalog.
type Enrollment struct {
	ID         int64    `json:"id"`
	StudentID  int64    `json:"student_id"`
	CourseID   *int64   `json:"course_id,omitempty"`
	Name       string   `json:"name"`
	Enabled    bool     `json:"enabled"`
	Grade      *float64 `json:"grade,omitempty"`
	Difficulty float64  `json:"difficulty"`
}

// Passed reports whether the enrollment carries a passing grade.
func (e *Enrollment) Passed() bool {
	return e.Grade != nil && *e.Grade >= PassGrade
}

// Failed reports whether the enrollment carries a grade below the pass threshold.
func (e *Enrollment) Failed() bool {
	return e.Grade != nil && *e.Grade < PassGrade
}

type PlanStatus string

const PlanStatusPlanned PlanStatus = "planned"

type PlanEntry struct {
	StudentID int64      `json:"student_id"`
	CourseID  int64      `json:"course_id"`
	Name      string     `json:"name"`
	Semester  string     `json:"semester"`
	Status    PlanStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// HistoryRecord is one prediction call. Rows are append-only.
type HistoryRecord struct {
	ID        uuid.UUID `json:"id"`
	StudentID int64     `json:"student_id"`
	Initial   float64   `json:"p_initial"`
	Adjusted  *float64  `json:"p_adjusted,omitempty"`

	Alpha   float64 `json:"alpha"`
	Beta    float64 `json:"beta"`
	Gamma   float64 `json:"gamma"`
	Delta   float64 `json:"delta"`
	Epsilon float64 `json:"epsilon"`

	Actual *float64 `json:"actual,omitempty"`
	Error  *float64 `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type Store interface {
	// Students
	GetStudent(ctx context.Context, id int64) (*Student, error)
	ListStudents(ctx context.Context) ([]*Student, error)
	UpsertStudent(ctx context.Context, s *Student) error
	DeleteStudent(ctx context.Context, id int64) error

	// Enrollments
	GetEnrollments(ctx context.Context, studentID int64) ([]*Enrollment, error)
	GetEnrollment(ctx context.Context, id int64) (*Enrollment, error)
	UpdateEnrollment(ctx context.Context, e *Enrollment) error
	EnsureEnrollments(ctx context.Context, studentID int64) error

	// Catalog
	GetCatalog(ctx context.Context) ([]*Course, error)
	CreateCourse(ctx context.Context, c *Course) error
	GetPrerequisites(ctx context.Context, courseID int64) ([]int64, error)
	AddPrerequisite(ctx context.Context, courseID, prerequisiteID int64) error
	EnsureCatalog(ctx context.Context, names []string) error

	// Plans
	SavePlan(ctx context.Context, studentID int64, semester string, courseIDs []int64) error
	RemoveFromPlan(ctx context.Context, studentID int64, semester string, courseID int64) error
	GetPlan(ctx context.Context, studentID int64, semester string) ([]*PlanEntry, error)

	// History
	AppendHistory(ctx context.Context, h *HistoryRecord) error
	ListHistory(ctx context.Context, studentID int64) ([]*HistoryRecord, error)

	Close() error
}
