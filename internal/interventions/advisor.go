// Package interventions turns a student's attendance and course grades into
// short advisory messages, split into recommended actions and cautions.
package interventions

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/Trajectory/internal/scoring"
	"github.com/MikeSquared-Agency/Trajectory/internal/store"
)

// DefaultAttendanceThreshold is the normalized attendance below which the
// advisor suggests specific lectures.
const DefaultAttendanceThreshold = 0.60

const (
	fallbackCourseName = "Course"
	maxFocusCourses    = 2
	maxEventsPerCourse = 2

	neutralRecommended = "Recommendation: continue per plan and keep regular activity."
	neutralCaution     = "No critical warnings for current data."
)

// Lecture is an upcoming session worth attending.
type Lecture struct {
	Number int    `yaml:"lecture" json:"lecture"`
	Topic  string `yaml:"topic" json:"topic"`
}

// Event is a deadline or colloquium tied to a course.
type Event struct {
	Type string `yaml:"type" json:"type"`
	Text string `yaml:"text" json:"text"`
}

// Tables maps course names to lectures and events.
type Tables struct {
	Topics map[string][]Lecture `yaml:"topics"`
	Events map[string][]Event   `yaml:"events"`
}

// DefaultTables returns the built-in lecture and event tables.
func DefaultTables() Tables {
	return Tables{
		Topics: map[string][]Lecture{
			"Mathematics": {
				{Number: 2, Topic: "Systems of linear equations"},
				{Number: 3, Topic: "Matrices and operations"},
			},
			"Programming": {
				{Number: 5, Topic: "Functions and recursion"},
				{Number: 6, Topic: "OOP basics"},
			},
			"Databases": {
				{Number: 3, Topic: "SQL SELECT/JOIN practice"},
				{Number: 4, Topic: "Normalization"},
			},
		},
		Events: map[string][]Event{
			"Programming": {
				{Type: "deadline", Text: "Deadline: Lab 2 (data structures) by end of week"},
				{Type: "colloquium", Text: "Colloquium: basic algorithms next week"},
			},
			"Databases": {
				{Type: "deadline", Text: "Deadline: ER model + SQL queries by Friday"},
				{Type: "colloquium", Text: "Colloquium: JOIN/aggregations next class"},
			},
			"Mathematics": {
				{Type: "deadline", Text: "Deadline: homework #1 (matrices) by Monday"},
			},
		},
	}
}

// LoadTables reads tables from a YAML file. An empty path yields the defaults.
// Sections missing from the file keep their default contents.
func LoadTables(path string) (Tables, error) {
	t := DefaultTables()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read intervention tables: %w", err)
	}
	var parsed Tables
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return Tables{}, fmt.Errorf("parse intervention tables: %w", err)
	}
	if parsed.Topics != nil {
		t.Topics = parsed.Topics
	}
	if parsed.Events != nil {
		t.Events = parsed.Events
	}
	return t, nil
}

// Advice is the advisor output. Both lists are always non-empty.
type Advice struct {
	Recommended []string `json:"recommended"`
	Caution     []string `json:"caution"`
}

// Advisor builds Advice from a fixed set of tables.
type Advisor struct {
	tables    Tables
	threshold float64
}

// NewAdvisor returns an advisor. A threshold outside (0, 1] falls back to
// DefaultAttendanceThreshold.
func NewAdvisor(tables Tables, threshold float64) *Advisor {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultAttendanceThreshold
	}
	return &Advisor{tables: tables, threshold: threshold}
}

// Build produces advice for a student. It reads only its arguments.
func (a *Advisor) Build(student *store.Student, enrollments []*store.Enrollment) Advice {
	var recommended, caution []string

	if student != nil && student.Ar != nil {
		ar := scoring.To01(*student.Ar, 0)
		if ar < a.threshold {
			for _, e := range focusCourses(enrollments) {
				recommended = append(recommended, a.attendanceNudge(courseName(e)))
			}
		}
	}

	for _, e := range enrollments {
		if e == nil || e.Grade == nil || *e.Grade >= store.PassGrade {
			continue
		}
		name := courseName(e)
		recommended = append(recommended,
			fmt.Sprintf("Low grade in %s: repeat material and do extra exercises.", name))

		events := a.tables.Events[name]
		if len(events) > maxEventsPerCourse {
			events = events[:maxEventsPerCourse]
		}
		for _, ev := range events {
			caution = append(caution, fmt.Sprintf("Caution: %s.", ev.Text))
		}
	}

	if len(recommended) == 0 {
		recommended = []string{neutralRecommended}
	}
	if len(caution) == 0 {
		caution = []string{neutralCaution}
	}
	return Advice{Recommended: recommended, Caution: caution}
}

func (a *Advisor) attendanceNudge(name string) string {
	if topics := a.tables.Topics[name]; len(topics) > 0 {
		t := topics[0]
		return fmt.Sprintf("Low attendance: attend lecture #%d of %s (topic: %s).", t.Number, name, t.Topic)
	}
	return fmt.Sprintf("Low attendance: attend the nearest session of %s (key topic).", name)
}

// focusCourses picks the first two enabled enrollments, or the first two
// overall when none are enabled.
func focusCourses(enrollments []*store.Enrollment) []*store.Enrollment {
	var enabled, all []*store.Enrollment
	for _, e := range enrollments {
		if e == nil {
			continue
		}
		all = append(all, e)
		if e.Enabled {
			enabled = append(enabled, e)
		}
	}
	focus := all
	if len(enabled) > 0 {
		focus = enabled
	}
	if len(focus) > maxFocusCourses {
		focus = focus[:maxFocusCourses]
	}
	return focus
}

func courseName(e *store.Enrollment) string {
	if e.Name == "" {
		return fallbackCourseName
	}
	return e.Name
}
