package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timetab-app/timetab-api/internal/models"
)

func validAssignment() Assignment {
	return Assignment{
		Request:   Request{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a")},
		Candidate: Candidate{TeacherID: "teacher-1", RoomID: "room-1", TimeSlotID: "slot-mon-1"},
	}
}

func TestVerifySolutionAcceptsValidAssignments(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Demands = []Demand{
		{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Count: 2},
	}
	a := validAssignment()
	b := validAssignment()
	b.Request.Index = 1
	b.Candidate.TimeSlotID = "slot-mon-2"

	assert.NoError(t, VerifySolution(snap, []Assignment{a, b}))
}

func TestVerifySolutionCatchesDoubleBookings(t *testing.T) {
	snap := fixtureSnapshot()
	snap.QualifiedTeachers["lesson-phys"] = []string{"teacher-1"}

	t.Run("teacher", func(t *testing.T) {
		a := validAssignment()
		b := Assignment{
			Request:   Request{Index: 1, LessonID: "lesson-phys", Group: models.StudyGroupRef("study-eng")},
			Candidate: Candidate{TeacherID: "teacher-1", RoomID: "room-2", TimeSlotID: "slot-mon-1"},
		}
		err := VerifySolution(snap, []Assignment{a, b})
		require.Error(t, err)
		var cerr *ConsistencyError
		require.ErrorAs(t, err, &cerr)
		assert.Contains(t, cerr.Reason, "teacher teacher-1 double-booked")
	})

	t.Run("room", func(t *testing.T) {
		a := validAssignment()
		b := Assignment{
			Request:   Request{Index: 1, LessonID: "lesson-phys", Group: models.StudyGroupRef("study-eng")},
			Candidate: Candidate{TeacherID: "teacher-2", RoomID: "room-1", TimeSlotID: "slot-mon-1"},
		}
		snap.QualifiedTeachers["lesson-phys"] = []string{"teacher-2"}
		err := VerifySolution(snap, []Assignment{a, b})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "room")
	})

	t.Run("group", func(t *testing.T) {
		// Distinct teacher and room so only the group collides.
		wide := fixtureSnapshot()
		wide.Rooms[1].Capacity = 30
		wide.Finalize()
		wide.QualifiedTeachers["lesson-math"] = []string{"teacher-1", "teacher-2"}
		a := validAssignment()
		b := validAssignment()
		b.Request.Index = 1
		b.Candidate.TeacherID = "teacher-2"
		b.Candidate.RoomID = "room-2"
		err := VerifySolution(wide, []Assignment{a, b})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `group "9A" double-booked`)
	})
}

func TestVerifySolutionAllowsDistinctWeeksInOneSlot(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Demands = []Demand{
		{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Count: 2},
	}
	a := validAssignment()
	a.Candidate.Week = intPtr(1)
	b := validAssignment()
	b.Request.Index = 1
	b.Candidate.Week = intPtr(2)

	assert.NoError(t, VerifySolution(snap, []Assignment{a, b}))
}

func TestVerifySolutionRejectsWeeklyAgainstConcreteWeek(t *testing.T) {
	snap := fixtureSnapshot()
	a := validAssignment()
	a.Candidate.Week = intPtr(1)
	b := validAssignment()
	b.Request.Index = 1

	err := VerifySolution(snap, []Assignment{a, b})

	require.Error(t, err)
	var cerr *ConsistencyError
	assert.ErrorAs(t, err, &cerr)
}

func TestVerifySolutionChecksDemandDelivery(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Demands = []Demand{
		{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Count: 2},
	}

	t.Run("under-delivered demand", func(t *testing.T) {
		a := validAssignment()
		err := VerifySolution(snap, []Assignment{a})
		require.Error(t, err)
		var cerr *ConsistencyError
		require.ErrorAs(t, err, &cerr)
		assert.Contains(t, cerr.Reason, "delivered 1 of 2 sessions")
	})

	t.Run("over-delivered demand", func(t *testing.T) {
		a := validAssignment()
		b := validAssignment()
		b.Request.Index = 1
		b.Candidate.TimeSlotID = "slot-mon-2"
		c := validAssignment()
		c.Request.Index = 2
		c.Candidate.TimeSlotID = "slot-mon-3"
		err := VerifySolution(snap, []Assignment{a, b, c})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "delivered 3 of 2 sessions")
	})

	t.Run("session without a demand", func(t *testing.T) {
		a := validAssignment()
		b := validAssignment()
		b.Request.Index = 1
		b.Candidate.TimeSlotID = "slot-mon-2"
		extra := Assignment{
			Request:   Request{Index: 2, LessonID: "lesson-phys", Group: models.ClassGroupRef("class-9a")},
			Candidate: Candidate{TeacherID: "teacher-2", RoomID: "room-1", TimeSlotID: "slot-tue-1"},
		}
		err := VerifySolution(snap, []Assignment{a, b, extra})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sessions without a demand")
	})

	t.Run("request assigned twice", func(t *testing.T) {
		a := validAssignment()
		b := validAssignment()
		b.Candidate.TimeSlotID = "slot-mon-2"
		err := VerifySolution(snap, []Assignment{a, b})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "request 0 assigned twice")
	})
}

func TestVerifySolutionChecksCapacityAndQualification(t *testing.T) {
	snap := fixtureSnapshot()

	t.Run("room too small", func(t *testing.T) {
		a := validAssignment()
		a.Candidate.RoomID = "room-2" // capacity 16 < class of 24
		err := VerifySolution(snap, []Assignment{a})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot hold group")
	})

	t.Run("unqualified teacher", func(t *testing.T) {
		a := validAssignment()
		a.Candidate.TeacherID = "teacher-2"
		err := VerifySolution(snap, []Assignment{a})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not qualified")
	})

	t.Run("unknown references", func(t *testing.T) {
		a := validAssignment()
		a.Candidate.TimeSlotID = "slot-ghost"
		err := VerifySolution(snap, []Assignment{a})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown time slot")
	})
}
