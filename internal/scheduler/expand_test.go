package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timetab-app/timetab-api/internal/models"
)

func TestExpandDemandsOrdersAndNumbers(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Demands = []Demand{
		{LessonID: "lesson-phys", Group: models.ClassGroupRef("class-9a"), Count: 1},
		{LessonID: "lesson-math", Group: models.StudyGroupRef("study-eng"), Count: 2},
		{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Count: 2},
	}

	requests := ExpandDemands(snap)

	require.Len(t, requests, 5)
	// Sorted by lesson, then class before study, then group id; occurrences
	// numbered from zero within each demand.
	assert.Equal(t, Request{Index: 0, LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Occurrence: 0}, requests[0])
	assert.Equal(t, Request{Index: 1, LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Occurrence: 1}, requests[1])
	assert.Equal(t, Request{Index: 2, LessonID: "lesson-math", Group: models.StudyGroupRef("study-eng"), Occurrence: 0}, requests[2])
	assert.Equal(t, Request{Index: 3, LessonID: "lesson-math", Group: models.StudyGroupRef("study-eng"), Occurrence: 1}, requests[3])
	assert.Equal(t, Request{Index: 4, LessonID: "lesson-phys", Group: models.ClassGroupRef("class-9a"), Occurrence: 0}, requests[4])
}

func TestExpandDemandsEmpty(t *testing.T) {
	snap := fixtureSnapshot()

	assert.Empty(t, ExpandDemands(snap))
}

func TestExpandDemandsDoesNotMutateSnapshot(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Demands = []Demand{
		{LessonID: "lesson-phys", Group: models.ClassGroupRef("class-9a"), Count: 1},
		{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Count: 1},
	}

	ExpandDemands(snap)

	assert.Equal(t, "lesson-phys", snap.Demands[0].LessonID, "expansion sorts a copy, not the snapshot")
}
