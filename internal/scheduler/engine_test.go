package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timetab-app/timetab-api/internal/models"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

// fixtureSnapshot builds a small but complete institution: two teachers, two
// rooms, a two-day grid of three slots each, one class group and one study
// group. Tests tighten or extend it per case.
func fixtureSnapshot() *Snapshot {
	snap := &Snapshot{
		InstitutionID: "inst-1",
		Lessons: []models.Lesson{
			{ID: "lesson-math", InstitutionID: "inst-1", Name: "Mathematics", DurationMinutes: 45},
			{ID: "lesson-phys", InstitutionID: "inst-1", Name: "Physics", DurationMinutes: 45},
		},
		Teachers: []models.Teacher{
			{ID: "teacher-1", InstitutionID: "inst-1", FullName: "Ivanova"},
			{ID: "teacher-2", InstitutionID: "inst-1", FullName: "Petrov"},
		},
		Rooms: []models.Room{
			{ID: "room-1", InstitutionID: "inst-1", Name: "101", Capacity: 30},
			{ID: "room-2", InstitutionID: "inst-1", Name: "Lab", Capacity: 16, RoomType: strPtr("lab")},
		},
		TimeSlots: []models.TimeSlot{
			{ID: "slot-mon-1", InstitutionID: "inst-1", DayOfWeek: 0, SlotNumber: 1, StartTime: "08:30", EndTime: "09:15"},
			{ID: "slot-mon-2", InstitutionID: "inst-1", DayOfWeek: 0, SlotNumber: 2, StartTime: "09:25", EndTime: "10:10"},
			{ID: "slot-mon-3", InstitutionID: "inst-1", DayOfWeek: 0, SlotNumber: 3, StartTime: "10:20", EndTime: "11:05"},
			{ID: "slot-tue-1", InstitutionID: "inst-1", DayOfWeek: 1, SlotNumber: 1, StartTime: "08:30", EndTime: "09:15"},
			{ID: "slot-tue-2", InstitutionID: "inst-1", DayOfWeek: 1, SlotNumber: 2, StartTime: "09:25", EndTime: "10:10"},
			{ID: "slot-tue-3", InstitutionID: "inst-1", DayOfWeek: 1, SlotNumber: 3, StartTime: "10:20", EndTime: "11:05"},
		},
		ClassGroups: []models.ClassGroup{
			{ID: "class-9a", InstitutionID: "inst-1", Name: "9A", StudentCount: 24},
		},
		StudyGroups: []models.StudyGroup{
			{ID: "study-eng", InstitutionID: "inst-1", StreamID: "stream-9", Name: "English Advanced"},
		},
		QualifiedTeachers: map[string][]string{
			"lesson-math": {"teacher-1"},
			"lesson-phys": {"teacher-2"},
		},
		StudyGroupSizes: map[string]int{"study-eng": 12},
	}
	snap.Finalize()
	return snap
}

func solveFixture(t *testing.T, snap *Snapshot, timeout time.Duration) Result {
	t.Helper()
	rules := Compile(snap, nil)
	requests := ExpandDemands(snap)
	return Solve(snap, rules, requests, time.Now().Add(timeout))
}

func TestSolveEmptyDemand(t *testing.T) {
	snap := fixtureSnapshot()

	res := solveFixture(t, snap, time.Second)

	require.Equal(t, StatusSolved, res.Status)
	require.NotNil(t, res.Best)
	assert.Empty(t, res.Best.Assignments)
}

func TestSolvePlacesEveryOccurrence(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Demands = []Demand{
		{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Count: 3},
		{LessonID: "lesson-phys", Group: models.ClassGroupRef("class-9a"), Count: 2},
	}

	res := solveFixture(t, snap, time.Second)

	require.Equal(t, StatusSolved, res.Status)
	require.NotNil(t, res.Best)
	assert.Len(t, res.Best.Assignments, 5)
	assert.NoError(t, VerifySolution(snap, res.Best.Assignments))
}

func TestSolveIsDeterministic(t *testing.T) {
	build := func() Result {
		snap := fixtureSnapshot()
		snap.Demands = []Demand{
			{LessonID: "lesson-phys", Group: models.ClassGroupRef("class-9a"), Count: 2},
			{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Count: 3},
		}
		return solveFixture(t, snap, time.Second)
	}

	first := build()
	second := build()

	require.Equal(t, StatusSolved, first.Status)
	require.Equal(t, StatusSolved, second.Status)
	assert.Equal(t, first.Best.Assignments, second.Best.Assignments)
	assert.Equal(t, first.Best.Cost, second.Best.Cost)
}

func TestSolveInfeasibleReportsExhaustedSlots(t *testing.T) {
	snap := fixtureSnapshot()
	// Seven occurrences for one group against a six-slot week cannot fit.
	snap.Demands = []Demand{
		{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Count: 7},
	}

	res := solveFixture(t, snap, time.Second)

	require.Equal(t, StatusInfeasible, res.Status)
	assert.Nil(t, res.Best)
	assert.Contains(t, res.Diagnostic, "time slot domain exhausted")
	assert.Contains(t, res.Diagnostic, "9A")
}

func TestSolveInfeasibleWhenNoRoomFits(t *testing.T) {
	snap := fixtureSnapshot()
	snap.ClassGroups[0].StudentCount = 40
	snap.Finalize()
	snap.Demands = []Demand{
		{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Count: 1},
	}

	res := solveFixture(t, snap, time.Second)

	require.Equal(t, StatusInfeasible, res.Status)
	assert.Contains(t, res.Diagnostic, "no room can hold group")
}

func TestSolveTimesOutBeforeSearch(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Demands = []Demand{
		{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Count: 3},
	}
	rules := Compile(snap, nil)
	requests := ExpandDemands(snap)

	res := Solve(snap, rules, requests, time.Now())

	require.Equal(t, StatusTimedOut, res.Status)
	assert.Nil(t, res.Best)
	assert.Contains(t, res.Diagnostic, "time budget exhausted")
}

func TestSolveTeacherUnavailableForcesOtherSlots(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Demands = []Demand{
		{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Count: 2},
	}
	snap.Constraints = []models.Constraint{{
		ID:             "c-1",
		InstitutionID:  "inst-1",
		ConstraintType: ConstraintTeacherUnavailable,
		ConstraintData: []byte(`{"teacher_id":"teacher-1","time_slot_ids":["slot-mon-1","slot-mon-2","slot-mon-3","slot-tue-1"]}`),
	}}

	res := solveFixture(t, snap, time.Second)

	require.Equal(t, StatusSolved, res.Status)
	for _, a := range res.Best.Assignments {
		assert.Contains(t, []string{"slot-tue-2", "slot-tue-3"}, a.Candidate.TimeSlotID)
	}
}

func TestSolveWeekAlternationSharesSlot(t *testing.T) {
	snap := fixtureSnapshot()
	// Only one slot and one room remain usable, so both occurrences must
	// land there on different weeks.
	snap.TimeSlots = snap.TimeSlots[:1]
	snap.Rooms = snap.Rooms[:1]
	snap.Finalize()
	snap.Demands = []Demand{
		{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Count: 2},
	}
	snap.Constraints = []models.Constraint{{
		ID:             "c-weeks",
		InstitutionID:  "inst-1",
		ConstraintType: ConstraintWeekAlternation,
		ConstraintData: []byte(`{"lesson_ids":["lesson-math"],"weeks":[1,2]}`),
	}}

	res := solveFixture(t, snap, time.Second)

	require.Equal(t, StatusSolved, res.Status)
	require.Len(t, res.Best.Assignments, 2)
	first, second := res.Best.Assignments[0].Candidate, res.Best.Assignments[1].Candidate
	assert.Equal(t, "slot-mon-1", first.TimeSlotID)
	assert.Equal(t, "slot-mon-1", second.TimeSlotID)
	require.NotNil(t, first.Week)
	require.NotNil(t, second.Week)
	assert.NotEqual(t, *first.Week, *second.Week)
	assert.NoError(t, VerifySolution(snap, res.Best.Assignments))
}

func TestSolveEveryWeekConflictsWithConcreteWeek(t *testing.T) {
	snap := fixtureSnapshot()
	snap.TimeSlots = snap.TimeSlots[:1]
	snap.Rooms = snap.Rooms[:1]
	snap.Finalize()
	// Physics rotates weeks, math repeats weekly. With a single slot the
	// weekly math session blocks the group for both weeks, so only one of
	// the demands can fit and the instance is infeasible.
	snap.Demands = []Demand{
		{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Count: 1},
		{LessonID: "lesson-phys", Group: models.ClassGroupRef("class-9a"), Count: 1},
	}
	snap.Constraints = []models.Constraint{{
		ID:             "c-weeks",
		InstitutionID:  "inst-1",
		ConstraintType: ConstraintWeekAlternation,
		ConstraintData: []byte(`{"lesson_ids":["lesson-phys"],"weeks":[1,2]}`),
	}}

	res := solveFixture(t, snap, time.Second)

	assert.Equal(t, StatusInfeasible, res.Status)
}

func TestSolvePrefersLowerCostPlacement(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Demands = []Demand{
		{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Count: 1},
	}
	snap.Constraints = []models.Constraint{{
		ID:             "c-window",
		InstitutionID:  "inst-1",
		ConstraintType: ConstraintPreferredTimeWindow,
		ConstraintData: []byte(`{"lesson_id":"lesson-math","days":[1]}`),
		Priority:       5,
	}}

	res := solveFixture(t, snap, time.Second)

	require.Equal(t, StatusSolved, res.Status)
	require.Len(t, res.Best.Assignments, 1)
	slot, ok := snap.TimeSlot(res.Best.Assignments[0].Candidate.TimeSlotID)
	require.True(t, ok)
	assert.Equal(t, 1, slot.DayOfWeek, "the single session should land on the preferred day")
	assert.Zero(t, res.Best.Cost)
}

func TestSolveStudyGroupSharesTeacherConflict(t *testing.T) {
	snap := fixtureSnapshot()
	snap.QualifiedTeachers["lesson-phys"] = []string{"teacher-1"}
	snap.Finalize()
	snap.Demands = []Demand{
		{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Count: 2},
		{LessonID: "lesson-phys", Group: models.StudyGroupRef("study-eng"), Count: 2},
	}

	res := solveFixture(t, snap, time.Second)

	require.Equal(t, StatusSolved, res.Status)
	require.NoError(t, VerifySolution(snap, res.Best.Assignments))

	// All four sessions share teacher-1, so every slot id must be distinct.
	seen := map[string]bool{}
	for _, a := range res.Best.Assignments {
		assert.Equal(t, "teacher-1", a.Candidate.TeacherID)
		assert.False(t, seen[a.Candidate.TimeSlotID], "slot reused by the same teacher")
		seen[a.Candidate.TimeSlotID] = true
	}
}

func TestWeekTaken(t *testing.T) {
	assert.True(t, weekTaken([]*int{nil}, intPtr(1)), "weekly occupant blocks any week")
	assert.True(t, weekTaken([]*int{intPtr(2)}, nil), "weekly candidate collides with any occupant")
	assert.True(t, weekTaken([]*int{intPtr(1)}, intPtr(1)))
	assert.False(t, weekTaken([]*int{intPtr(1)}, intPtr(2)), "distinct concrete weeks coexist")
	assert.False(t, weekTaken(nil, nil), "empty slot accepts anything")
}
