package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type planKey struct {
	studentID int64
	semester  string
	courseID  int64
}

// MemoryStore keeps everything in process. Values are copied in and out so
// callers never share memory with the store.
type MemoryStore struct {
	mu sync.RWMutex

	nextStudentID    int64
	nextCourseID     int64
	nextEnrollmentID int64

	students    map[int64]Student
	courses     map[int64]Course
	prereqs     map[int64][]int64
	enrollments map[int64]Enrollment
	plans       map[planKey]PlanEntry
	history     map[int64][]HistoryRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		students:    make(map[int64]Student),
		courses:     make(map[int64]Course),
		prereqs:     make(map[int64][]int64),
		enrollments: make(map[int64]Enrollment),
		plans:       make(map[planKey]PlanEntry),
		history:     make(map[int64][]HistoryRecord),
	}
}

func (s *MemoryStore) Close() error { return nil }

// Students

func (s *MemoryStore) GetStudent(_ context.Context, id int64) (*Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.students[id]
	if !ok {
		return nil, nil
	}
	return copyStudent(st), nil
}

func (s *MemoryStore) ListStudents(_ context.Context) ([]*Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Student, 0, len(s.students))
	for _, st := range s.students {
		out = append(out, copyStudent(st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpsertStudent(_ context.Context, st *Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if st.ID == 0 {
		s.nextStudentID++
		st.ID = s.nextStudentID
	} else if st.ID > s.nextStudentID {
		s.nextStudentID = st.ID
	}
	if existing, ok := s.students[st.ID]; ok {
		st.CreatedAt = existing.CreatedAt
	} else {
		st.CreatedAt = now
	}
	st.UpdatedAt = now
	s.students[st.ID] = *copyStudent(*st)
	return nil
}

func (s *MemoryStore) DeleteStudent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.students, id)
	delete(s.history, id)
	for eid, e := range s.enrollments {
		if e.StudentID == id {
			delete(s.enrollments, eid)
		}
	}
	for k := range s.plans {
		if k.studentID == id {
			delete(s.plans, k)
		}
	}
	return nil
}

// Enrollments

func (s *MemoryStore) GetEnrollments(_ context.Context, studentID int64) ([]*Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Enrollment
	for _, e := range s.enrollments {
		if e.StudentID == studentID {
			out = append(out, s.withDifficulty(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) GetEnrollment(_ context.Context, id int64) (*Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.enrollments[id]
	if !ok {
		return nil, nil
	}
	return s.withDifficulty(e), nil
}

func (s *MemoryStore) UpdateEnrollment(_ context.Context, e *Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.enrollments[e.ID]
	if !ok {
		return fmt.Errorf("enrollment %d not found", e.ID)
	}
	existing.Enabled = e.Enabled
	existing.Grade = copyFloat(e.Grade)
	s.enrollments[e.ID] = existing
	return nil
}

func (s *MemoryStore) EnsureEnrollments(_ context.Context, studentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.students[studentID]; !ok {
		return fmt.Errorf("student %d not found", studentID)
	}
	have := make(map[string]bool)
	for _, e := range s.enrollments {
		if e.StudentID == studentID {
			have[e.Name] = true
		}
	}
	for _, c := range s.sortedCourses() {
		if have[c.Name] {
			continue
		}
		s.nextEnrollmentID++
		id := c.ID
		s.enrollments[s.nextEnrollmentID] = Enrollment{
			ID:        s.nextEnrollmentID,
			StudentID: studentID,
			CourseID:  &id,
			Name:      c.Name,
		}
	}
	return nil
}

// Catalog

func (s *MemoryStore) GetCatalog(_ context.Context) ([]*Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	courses := s.sortedCourses()
	out := make([]*Course, 0, len(courses))
	for _, c := range courses {
		c.Prerequisites = append([]int64(nil), s.prereqs[c.ID]...)
		out = append(out, &c)
	}
	return out, nil
}

func (s *MemoryStore) CreateCourse(_ context.Context, c *Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.courses {
		if existing.Name == c.Name {
			return fmt.Errorf("course %q already exists", c.Name)
		}
	}
	if c.Difficulty <= 0 {
		c.Difficulty = DefaultDifficulty
	}
	s.nextCourseID++
	c.ID = s.nextCourseID
	s.courses[c.ID] = Course{ID: c.ID, Name: c.Name, Difficulty: c.Difficulty}
	s.resolveEnrollments()
	return nil
}

func (s *MemoryStore) GetPrerequisites(_ context.Context, courseID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]int64{}, s.prereqs[courseID]...), nil
}

func (s *MemoryStore) AddPrerequisite(_ context.Context, courseID, prerequisiteID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[courseID]; !ok {
		return fmt.Errorf("course %d not found", courseID)
	}
	if _, ok := s.courses[prerequisiteID]; !ok {
		return fmt.Errorf("course %d not found", prerequisiteID)
	}
	for _, p := range s.prereqs[courseID] {
		if p == prerequisiteID {
			return nil
		}
	}
	s.prereqs[courseID] = append(s.prereqs[courseID], prerequisiteID)
	return nil
}

func (s *MemoryStore) EnsureCatalog(_ context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	have := make(map[string]bool, len(s.courses))
	for _, c := range s.courses {
		have[c.Name] = true
	}
	for _, name := range names {
		if have[name] {
			continue
		}
		have[name] = true
		s.nextCourseID++
		s.courses[s.nextCourseID] = Course{ID: s.nextCourseID, Name: name, Difficulty: DefaultDifficulty}
	}
	s.resolveEnrollments()
	return nil
}

// Plans

func (s *MemoryStore) SavePlan(_ context.Context, studentID int64, semester string, courseIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, cid := range courseIDs {
		if _, ok := s.courses[cid]; !ok {
			return fmt.Errorf("course %d not found", cid)
		}
		k := planKey{studentID: studentID, semester: semester, courseID: cid}
		if _, ok := s.plans[k]; ok {
			continue
		}
		s.plans[k] = PlanEntry{
			StudentID: studentID,
			CourseID:  cid,
			Semester:  semester,
			Status:    PlanStatusPlanned,
			CreatedAt: now,
		}
	}
	return nil
}

func (s *MemoryStore) RemoveFromPlan(_ context.Context, studentID int64, semester string, courseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.plans, planKey{studentID: studentID, semester: semester, courseID: courseID})
	return nil
}

func (s *MemoryStore) GetPlan(_ context.Context, studentID int64, semester string) ([]*PlanEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*PlanEntry
	for k, p := range s.plans {
		if k.studentID != studentID || k.semester != semester {
			continue
		}
		p.Name = s.courses[k.courseID].Name
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// History

func (s *MemoryStore) AppendHistory(_ context.Context, h *HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	rec := *h
	rec.Adjusted = copyFloat(h.Adjusted)
	rec.Actual = copyFloat(h.Actual)
	rec.Error = copyFloat(h.Error)
	s.history[h.StudentID] = append(s.history[h.StudentID], rec)
	return nil
}

func (s *MemoryStore) ListHistory(_ context.Context, studentID int64) ([]*HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.history[studentID]
	out := make([]*HistoryRecord, 0, len(recs))
	for i := range recs {
		rec := recs[i]
		out = append(out, &rec)
	}
	return out, nil
}

// sortedCourses returns catalog entries by name. Caller holds the lock.
func (s *MemoryStore) sortedCourses() []Course {
	out := make([]Course, 0, len(s.courses))
	for _, c := range s.courses {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// resolveEnrollments fills missing course ids by name. Caller holds the write lock.
func (s *MemoryStore) resolveEnrollments() {
	byName := make(map[string]int64, len(s.courses))
	for _, c := range s.courses {
		byName[c.Name] = c.ID
	}
	for id, e := range s.enrollments {
		if e.CourseID != nil {
			continue
		}
		if cid, ok := byName[e.Name]; ok {
			e.CourseID = &cid
			s.enrollments[id] = e
		}
	}
}

func (s *MemoryStore) withDifficulty(e Enrollment) *Enrollment {
	out := e
	out.Grade = copyFloat(e.Grade)
	out.Difficulty = DefaultDifficulty
	if e.CourseID != nil {
		cid := *e.CourseID
		out.CourseID = &cid
		if c, ok := s.courses[cid]; ok {
			out.Difficulty = c.Difficulty
		}
	}
	return &out
}

func copyStudent(st Student) *Student {
	out := st
	out.Gcurrent = copyFloat(st.Gcurrent)
	out.Gmin = copyFloat(st.Gmin)
	out.Gmax = copyFloat(st.Gmax)
	out.Ar = copyFloat(st.Ar)
	out.Ls = copyFloat(st.Ls)
	out.Ph = copyFloat(st.Ph)
	out.Actual = copyFloat(st.Actual)
	return &out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
