package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timetab-app/timetab-api/internal/models"
)

func TestSnapshotValidateAcceptsCompleteData(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Demands = []Demand{
		{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Count: 2},
		{LessonID: "lesson-phys", Group: models.StudyGroupRef("study-eng"), Count: 1},
	}

	assert.NoError(t, snap.Validate())
}

func TestSnapshotValidateRejectsIncompleteData(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Snapshot)
		message string
	}{
		{
			name:    "no time slots",
			mutate:  func(s *Snapshot) { s.TimeSlots = nil },
			message: "no time slots",
		},
		{
			name:    "no rooms",
			mutate:  func(s *Snapshot) { s.Rooms = nil },
			message: "no rooms",
		},
		{
			name: "unknown lesson",
			mutate: func(s *Snapshot) {
				s.Demands = []Demand{{LessonID: "lesson-ghost", Group: models.ClassGroupRef("class-9a"), Count: 1}}
			},
			message: "unknown lesson",
		},
		{
			name: "unknown group",
			mutate: func(s *Snapshot) {
				s.Demands = []Demand{{LessonID: "lesson-math", Group: models.ClassGroupRef("class-ghost"), Count: 1}}
			},
			message: "unknown group",
		},
		{
			name: "no qualified teacher",
			mutate: func(s *Snapshot) {
				delete(s.QualifiedTeachers, "lesson-math")
				s.Demands = []Demand{{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Count: 1}}
			},
			message: "no teacher is qualified",
		},
		{
			name: "non-positive count",
			mutate: func(s *Snapshot) {
				s.Demands = []Demand{{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Count: 0}}
			},
			message: "non-positive count",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			snap := fixtureSnapshot()
			if snap.Demands == nil {
				snap.Demands = []Demand{{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Count: 1}}
			}
			tc.mutate(snap)
			snap.Finalize()

			err := snap.Validate()

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrIncompleteReferenceData))
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestSnapshotGroupSize(t *testing.T) {
	snap := fixtureSnapshot()

	assert.Equal(t, 24, snap.GroupSize(models.ClassGroupRef("class-9a")))
	assert.Equal(t, 12, snap.GroupSize(models.StudyGroupRef("study-eng")))
	assert.Zero(t, snap.GroupSize(models.ClassGroupRef("missing")))
}

func TestSnapshotFinalizeSortsCanonically(t *testing.T) {
	snap := &Snapshot{
		Rooms: []models.Room{
			{ID: "room-b", Capacity: 10},
			{ID: "room-a", Capacity: 10},
		},
		TimeSlots: []models.TimeSlot{
			{ID: "slot-2"},
			{ID: "slot-1"},
		},
		QualifiedTeachers: map[string][]string{
			"lesson-1": {"teacher-z", "teacher-a"},
		},
	}
	snap.Finalize()

	assert.Equal(t, "room-a", snap.Rooms[0].ID)
	assert.Equal(t, "slot-1", snap.TimeSlots[0].ID)
	assert.Equal(t, []string{"teacher-a", "teacher-z"}, snap.QualifiedTeachers["lesson-1"])
}
