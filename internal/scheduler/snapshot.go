package scheduler

import (
	"errors"
	"fmt"
	"sort"

	"github.com/timetab-app/timetab-api/internal/models"
)

// ErrIncompleteReferenceData marks snapshots that cannot support generation.
// Callers detect it with errors.Is and translate it at the service boundary.
var ErrIncompleteReferenceData = errors.New("incomplete reference data")

// Demand is one (lesson, group, count) record consumed by the expander.
type Demand struct {
	LessonID string
	Group    models.GroupRef
	Count    int
}

// Snapshot is an immutable, institution-scoped view of everything generation
// needs. Build it once per run; the engine never touches storage.
type Snapshot struct {
	InstitutionID string

	Lessons     []models.Lesson
	Teachers    []models.Teacher
	Rooms       []models.Room
	TimeSlots   []models.TimeSlot
	ClassGroups []models.ClassGroup
	StudyGroups []models.StudyGroup

	// QualifiedTeachers maps lesson id to the sorted teacher ids assigned to it.
	QualifiedTeachers map[string][]string
	// StudyGroupSizes maps study group id to roster size.
	StudyGroupSizes map[string]int

	Demands     []Demand
	Constraints []models.Constraint

	lessonByID map[string]models.Lesson
	roomByID   map[string]models.Room
	slotByID   map[string]models.TimeSlot
	classByID  map[string]models.ClassGroup
	studyByID  map[string]models.StudyGroup
}

// Finalize builds lookup indexes and canonical orderings. Must be called once
// after the loader has populated the slices, before any other method.
func (s *Snapshot) Finalize() {
	s.lessonByID = make(map[string]models.Lesson, len(s.Lessons))
	for _, l := range s.Lessons {
		s.lessonByID[l.ID] = l
	}
	s.roomByID = make(map[string]models.Room, len(s.Rooms))
	for _, r := range s.Rooms {
		s.roomByID[r.ID] = r
	}
	s.slotByID = make(map[string]models.TimeSlot, len(s.TimeSlots))
	for _, t := range s.TimeSlots {
		s.slotByID[t.ID] = t
	}
	s.classByID = make(map[string]models.ClassGroup, len(s.ClassGroups))
	for _, g := range s.ClassGroups {
		s.classByID[g.ID] = g
	}
	s.studyByID = make(map[string]models.StudyGroup, len(s.StudyGroups))
	for _, g := range s.StudyGroups {
		s.studyByID[g.ID] = g
	}

	sort.Slice(s.Rooms, func(i, j int) bool { return s.Rooms[i].ID < s.Rooms[j].ID })
	sort.Slice(s.TimeSlots, func(i, j int) bool { return s.TimeSlots[i].ID < s.TimeSlots[j].ID })
	for _, teachers := range s.QualifiedTeachers {
		sort.Strings(teachers)
	}
}

// Lesson returns the lesson for an id.
func (s *Snapshot) Lesson(id string) (models.Lesson, bool) {
	l, ok := s.lessonByID[id]
	return l, ok
}

// Room returns the room for an id.
func (s *Snapshot) Room(id string) (models.Room, bool) {
	r, ok := s.roomByID[id]
	return r, ok
}

// TimeSlot returns the slot for an id.
func (s *Snapshot) TimeSlot(id string) (models.TimeSlot, bool) {
	t, ok := s.slotByID[id]
	return t, ok
}

// HasGroup reports whether the referenced group exists in the snapshot.
func (s *Snapshot) HasGroup(ref models.GroupRef) bool {
	switch ref.Kind {
	case models.GroupKindClass:
		_, ok := s.classByID[ref.ID]
		return ok
	case models.GroupKindStudy:
		_, ok := s.studyByID[ref.ID]
		return ok
	}
	return false
}

// GroupSize returns the effective size of the referenced group: the student
// count of a class group or the roster size of a study group.
func (s *Snapshot) GroupSize(ref models.GroupRef) int {
	switch ref.Kind {
	case models.GroupKindClass:
		if g, ok := s.classByID[ref.ID]; ok {
			return g.StudentCount
		}
	case models.GroupKindStudy:
		return s.StudyGroupSizes[ref.ID]
	}
	return 0
}

// GroupName resolves a human-readable label for diagnostics.
func (s *Snapshot) GroupName(ref models.GroupRef) string {
	switch ref.Kind {
	case models.GroupKindClass:
		if g, ok := s.classByID[ref.ID]; ok {
			return g.Name
		}
	case models.GroupKindStudy:
		if g, ok := s.studyByID[ref.ID]; ok {
			return g.Name
		}
	}
	return ref.String()
}

// Validate enforces the loader contract: generation requires at least one
// room and time slot, and every demand must reference entities that exist
// with at least one qualified teacher.
func (s *Snapshot) Validate() error {
	if len(s.TimeSlots) == 0 {
		return fmt.Errorf("%w: institution has no time slots", ErrIncompleteReferenceData)
	}
	if len(s.Rooms) == 0 {
		return fmt.Errorf("%w: institution has no rooms", ErrIncompleteReferenceData)
	}
	for _, d := range s.Demands {
		if d.Count <= 0 {
			return fmt.Errorf("%w: demand for lesson %s has non-positive count %d", ErrIncompleteReferenceData, d.LessonID, d.Count)
		}
		lesson, ok := s.lessonByID[d.LessonID]
		if !ok {
			return fmt.Errorf("%w: demand references unknown lesson %s", ErrIncompleteReferenceData, d.LessonID)
		}
		if !s.HasGroup(d.Group) {
			return fmt.Errorf("%w: demand for lesson %s references unknown group %s", ErrIncompleteReferenceData, lesson.Name, d.Group)
		}
		if len(s.QualifiedTeachers[d.LessonID]) == 0 {
			return fmt.Errorf("%w: no teacher is qualified for lesson %s", ErrIncompleteReferenceData, lesson.Name)
		}
	}
	return nil
}
