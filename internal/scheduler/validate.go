package scheduler

import (
	"fmt"
)

// ConsistencyError reports a solution that violates a hard invariant. The
// validator runs over the engine's output with independent bookkeeping, so a
// non-nil error means an engine bug rather than bad input.
type ConsistencyError struct {
	Reason string
}

func (e *ConsistencyError) Error() string {
	return "inconsistent solution: " + e.Reason
}

// VerifySolution re-checks every hard invariant over a complete assignment:
// no teacher, room, or group holds two week-overlapping sessions in one time
// slot, every room fits its group, every teacher is qualified for the lesson,
// every referenced entity exists in the snapshot, and every demand is
// delivered exactly its declared count of times.
func VerifySolution(snap *Snapshot, assignments []Assignment) error {
	teachers := make(map[occKey][]*int)
	rooms := make(map[occKey][]*int)
	groups := make(map[occKey][]*int)

	type demandKey struct {
		lessonID string
		group    string
	}
	delivered := make(map[demandKey]int)
	seenIndex := make(map[int]bool)

	reserve := func(table map[occKey][]*int, key occKey, week *int, what string) error {
		if weekTaken(table[key], week) {
			return &ConsistencyError{Reason: fmt.Sprintf("%s double-booked in time slot %s", what, key.slot)}
		}
		table[key] = append(table[key], week)
		return nil
	}

	for _, a := range assignments {
		req, cand := a.Request, a.Candidate

		if seenIndex[req.Index] {
			return &ConsistencyError{Reason: fmt.Sprintf("request %d assigned twice", req.Index)}
		}
		seenIndex[req.Index] = true
		delivered[demandKey{req.LessonID, req.Group.String()}]++

		lesson, ok := snap.Lesson(req.LessonID)
		if !ok {
			return &ConsistencyError{Reason: fmt.Sprintf("assignment references unknown lesson %s", req.LessonID)}
		}
		if _, ok := snap.TimeSlot(cand.TimeSlotID); !ok {
			return &ConsistencyError{Reason: fmt.Sprintf("assignment references unknown time slot %s", cand.TimeSlotID)}
		}
		room, ok := snap.Room(cand.RoomID)
		if !ok {
			return &ConsistencyError{Reason: fmt.Sprintf("assignment references unknown room %s", cand.RoomID)}
		}
		if !snap.HasGroup(req.Group) {
			return &ConsistencyError{Reason: fmt.Sprintf("assignment references unknown group %s", req.Group)}
		}

		if size := snap.GroupSize(req.Group); room.Capacity < size {
			return &ConsistencyError{Reason: fmt.Sprintf("room %q (capacity %d) cannot hold group %q (size %d)", room.Name, room.Capacity, snap.GroupName(req.Group), size)}
		}
		if !qualifiedFor(snap, cand.TeacherID, req.LessonID) {
			return &ConsistencyError{Reason: fmt.Sprintf("teacher %s is not qualified for lesson %q", cand.TeacherID, lesson.Name)}
		}

		if err := reserve(teachers, occKey{cand.TeacherID, cand.TimeSlotID}, cand.Week, fmt.Sprintf("teacher %s", cand.TeacherID)); err != nil {
			return err
		}
		if err := reserve(rooms, occKey{cand.RoomID, cand.TimeSlotID}, cand.Week, fmt.Sprintf("room %q", room.Name)); err != nil {
			return err
		}
		if err := reserve(groups, occKey{req.Group.String(), cand.TimeSlotID}, cand.Week, fmt.Sprintf("group %q", snap.GroupName(req.Group))); err != nil {
			return err
		}
	}

	expected := make(map[demandKey]int)
	for _, d := range snap.Demands {
		expected[demandKey{d.LessonID, d.Group.String()}] += d.Count
	}
	for key, want := range expected {
		if got := delivered[key]; got != want {
			return &ConsistencyError{Reason: fmt.Sprintf("lesson %s for group %s delivered %d of %d sessions", key.lessonID, key.group, got, want)}
		}
		delete(delivered, key)
	}
	for key := range delivered {
		return &ConsistencyError{Reason: fmt.Sprintf("lesson %s for group %s has sessions without a demand", key.lessonID, key.group)}
	}
	return nil
}

func qualifiedFor(snap *Snapshot, teacherID, lessonID string) bool {
	for _, id := range snap.QualifiedTeachers[lessonID] {
		if id == teacherID {
			return true
		}
	}
	return false
}
