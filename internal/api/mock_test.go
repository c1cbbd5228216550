package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/MikeSquared-Agency/Trajectory/internal/store"
)

// mockStore lets tests force storage failures.
type mockStore struct {
	mock.Mock
}

var _ store.Store = (*mockStore)(nil)

func (m *mockStore) GetStudent(ctx context.Context, id int64) (*store.Student, error) {
	args := m.Called(ctx, id)
	st, _ := args.Get(0).(*store.Student)
	return st, args.Error(1)
}

func (m *mockStore) ListStudents(ctx context.Context) ([]*store.Student, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]*store.Student)
	return out, args.Error(1)
}

func (m *mockStore) UpsertStudent(ctx context.Context, s *store.Student) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockStore) DeleteStudent(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) GetEnrollments(ctx context.Context, studentID int64) ([]*store.Enrollment, error) {
	args := m.Called(ctx, studentID)
	out, _ := args.Get(0).([]*store.Enrollment)
	return out, args.Error(1)
}

func (m *mockStore) GetEnrollment(ctx context.Context, id int64) (*store.Enrollment, error) {
	args := m.Called(ctx, id)
	e, _ := args.Get(0).(*store.Enrollment)
	return e, args.Error(1)
}

func (m *mockStore) UpdateEnrollment(ctx context.Context, e *store.Enrollment) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockStore) EnsureEnrollments(ctx context.Context, studentID int64) error {
	return m.Called(ctx, studentID).Error(0)
}

func (m *mockStore) GetCatalog(ctx context.Context) ([]*store.Course, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]*store.Course)
	return out, args.Error(1)
}

func (m *mockStore) CreateCourse(ctx context.Context, c *store.Course) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockStore) GetPrerequisites(ctx context.Context, courseID int64) ([]int64, error) {
	args := m.Called(ctx, courseID)
	out, _ := args.Get(0).([]int64)
	return out, args.Error(1)
}

func (m *mockStore) AddPrerequisite(ctx context.Context, courseID, prerequisiteID int64) error {
	return m.Called(ctx, courseID, prerequisiteID).Error(0)
}

func (m *mockStore) EnsureCatalog(ctx context.Context, names []string) error {
	return m.Called(ctx, names).Error(0)
}

func (m *mockStore) SavePlan(ctx context.Context, studentID int64, semester string, courseIDs []int64) error {
	return m.Called(ctx, studentID, semester, courseIDs).Error(0)
}

func (m *mockStore) RemoveFromPlan(ctx context.Context, studentID int64, semester string, courseID int64) error {
	return m.Called(ctx, studentID, semester, courseID).Error(0)
}

func (m *mockStore) GetPlan(ctx context.Context, studentID int64, semester string) ([]*store.PlanEntry, error) {
	args := m.Called(ctx, studentID, semester)
	out, _ := args.Get(0).([]*store.PlanEntry)
	return out, args.Error(1)
}

func (m *mockStore) AppendHistory(ctx context.Context, h *store.HistoryRecord) error {
	return m.Called(ctx, h).Error(0)
}

func (m *mockStore) ListHistory(ctx context.Context, studentID int64) ([]*store.HistoryRecord, error) {
	args := m.Called(ctx, studentID)
	out, _ := args.Get(0).([]*store.HistoryRecord)
	return out, args.Error(1)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
