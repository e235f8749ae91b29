package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timetab-app/timetab-api/internal/models"
)

func TestCompileUnknownTypeBecomesWarning(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Constraints = []models.Constraint{{
		ID:             "c-odd",
		ConstraintType: "lunar_phase_alignment",
		ConstraintData: []byte(`{}`),
	}}

	rules := Compile(snap, nil)

	assert.Empty(t, rules.Hard)
	assert.Empty(t, rules.Soft)
	require.Len(t, rules.Warnings, 1)
	assert.Contains(t, rules.Warnings[0], "lunar_phase_alignment")
	assert.Contains(t, rules.Warnings[0], "no-op")
}

func TestCompileMalformedPayloadBecomesWarning(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Constraints = []models.Constraint{{
		ID:             "c-bad",
		ConstraintType: ConstraintTeacherUnavailable,
		ConstraintData: []byte(`{"time_slot_ids":["slot-mon-1"]}`),
	}}

	rules := Compile(snap, nil)

	assert.Empty(t, rules.Hard)
	require.Len(t, rules.Warnings, 1)
	assert.Contains(t, rules.Warnings[0], "invalid payload")
}

func TestCompileClampsPriorityWeight(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Constraints = []models.Constraint{
		{
			ID:             "c-high",
			ConstraintType: ConstraintRoomTypeMatch,
			ConstraintData: []byte(`{"lesson_id":"lesson-phys","room_type":"lab"}`),
			Priority:       99,
		},
		{
			ID:             "c-low",
			ConstraintType: ConstraintConsecutiveSessions,
			ConstraintData: []byte(`{"lesson_id":"lesson-math"}`),
			Priority:       -3,
		},
	}

	rules := Compile(snap, nil)

	require.Len(t, rules.Soft, 2)
	assert.Equal(t, 10.0, rules.Soft[0].Weight)
	assert.Equal(t, 0.0, rules.Soft[1].Weight)
}

func TestCompileHardRuleBlocksOnlyNamedResource(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Constraints = []models.Constraint{{
		ID:             "c-room",
		ConstraintType: ConstraintRoomUnavailable,
		ConstraintData: []byte(`{"room_id":"room-2","time_slot_ids":["slot-mon-1"]}`),
	}}

	rules := Compile(snap, nil)
	require.Len(t, rules.Hard, 1)
	blocks := rules.Hard[0].Blocks

	req := Request{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a")}
	assert.True(t, blocks(req, Candidate{RoomID: "room-2", TimeSlotID: "slot-mon-1"}))
	assert.False(t, blocks(req, Candidate{RoomID: "room-2", TimeSlotID: "slot-mon-2"}))
	assert.False(t, blocks(req, Candidate{RoomID: "room-1", TimeSlotID: "slot-mon-1"}))
}

func TestWeekDomainDefaultsToEveryWeek(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Constraints = []models.Constraint{{
		ID:             "c-weeks",
		ConstraintType: ConstraintWeekAlternation,
		ConstraintData: []byte(`{"lesson_ids":["lesson-phys"],"weeks":[1,2]}`),
	}}

	rules := Compile(snap, nil)

	def := rules.WeekDomain("lesson-math")
	require.Len(t, def, 1)
	assert.Nil(t, def[0])

	rotated := rules.WeekDomain("lesson-phys")
	require.Len(t, rotated, 2)
	assert.Equal(t, 1, *rotated[0])
	assert.Equal(t, 2, *rotated[1])
}

func TestMaxDailyLoadPenaltyUsesPlacementView(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Constraints = []models.Constraint{{
		ID:             "c-load",
		ConstraintType: ConstraintMaxDailyLoad,
		ConstraintData: []byte(`{"teacher_id":"teacher-1","max_per_day":2}`),
		Priority:       4,
	}}

	rules := Compile(snap, nil)
	require.Len(t, rules.Soft, 1)
	rule := rules.Soft[0]

	req := Request{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a")}
	under := stubView{teacherDay: 1}
	over := stubView{teacherDay: 2}

	assert.Zero(t, rule.Cost(req, Candidate{TeacherID: "teacher-1", TimeSlotID: "slot-mon-3"}, under))
	assert.Equal(t, 4.0, rule.Cost(req, Candidate{TeacherID: "teacher-1", TimeSlotID: "slot-mon-3"}, over))
	assert.Zero(t, rule.Cost(req, Candidate{TeacherID: "teacher-2", TimeSlotID: "slot-mon-3"}, over))
}

func TestConsecutiveSessionsPenalizesGaps(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Constraints = []models.Constraint{{
		ID:             "c-cons",
		ConstraintType: ConstraintConsecutiveSessions,
		ConstraintData: []byte(`{"lesson_id":"lesson-math"}`),
		Priority:       2,
	}}

	rules := Compile(snap, nil)
	require.Len(t, rules.Soft, 1)
	rule := rules.Soft[0]

	req := Request{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a")}
	adjacent := stubView{daySlots: []int{2}}
	gapped := stubView{daySlots: []int{1}}

	// slot-mon-3 has slot number 3: adjacent to 2, gapped from 1.
	assert.Zero(t, rule.Cost(req, Candidate{TimeSlotID: "slot-mon-3"}, adjacent))
	assert.Equal(t, 2.0, rule.Cost(req, Candidate{TimeSlotID: "slot-mon-3"}, gapped))
}

type stubView struct {
	teacherDay int
	daySlots   []int
}

func (s stubView) TeacherDayCount(string, int) int { return s.teacherDay }

func (s stubView) GroupLessonDaySlots(models.GroupRef, string, int) []int { return s.daySlots }
