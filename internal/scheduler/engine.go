package scheduler

import (
	"fmt"
	"time"

	"github.com/timetab-app/timetab-api/internal/models"
)

// Status classifies the outcome of a solve run.
type Status string

const (
	StatusSolved     Status = "solved"
	StatusInfeasible Status = "infeasible"
	StatusTimedOut   Status = "timed_out"
)

// Assignment binds one request to its chosen tuple.
type Assignment struct {
	Request   Request
	Candidate Candidate
}

// Solution is a complete assignment with its soft-constraint cost.
type Solution struct {
	Assignments []Assignment
	Cost        float64
}

// Stats counts search effort for logging and metrics.
type Stats struct {
	Nodes      int
	Backtracks int
	Solutions  int
}

// Result reports the best assignment found, or why none exists.
type Result struct {
	Status     Status
	Best       *Solution
	Stats      Stats
	Diagnostic string
}

// Solve runs depth-first backtracking with forward checking and dynamic
// most-constrained-first variable ordering. The deadline is re-checked at
// every node so an expired budget aborts mid-search. When at least one
// complete assignment exists the lowest-cost one found so far is returned;
// the search keeps improving it (branch and bound) until the space is
// exhausted or time runs out.
func Solve(snap *Snapshot, rules *CompiledConstraints, requests []Request, deadline time.Time) Result {
	if len(requests) == 0 {
		return Result{Status: StatusSolved, Best: &Solution{}}
	}
	e := &engine{
		snap:     snap,
		rules:    rules,
		requests: requests,
		deadline: deadline,

		assigned:       make([]*Candidate, len(requests)),
		teacherOcc:     make(map[occKey][]*int),
		roomOcc:        make(map[occKey][]*int),
		groupOcc:       make(map[occKey][]*int),
		teacherDay:     make(map[dayKey]int),
		groupLessonDay: make(map[dayKey][]int),
	}

	if e.expired() {
		return Result{Status: StatusTimedOut, Diagnostic: "time budget exhausted before search began"}
	}

	if diag := e.buildDomains(); diag != "" {
		return Result{Status: StatusInfeasible, Stats: e.stats, Diagnostic: diag}
	}

	aborted := e.dfs()

	switch {
	case e.best != nil:
		// A deadline hit with a feasible assignment in hand is still success;
		// the budget only cut the optimization phase short.
		return Result{Status: StatusSolved, Best: e.best, Stats: e.stats}
	case aborted:
		diag := "time budget exhausted before any feasible assignment was found"
		if e.deadEnd != "" {
			diag += "; last dead end: " + e.deadEnd
		}
		return Result{Status: StatusTimedOut, Stats: e.stats, Diagnostic: diag}
	default:
		diag := e.deadEnd
		if diag == "" {
			diag = "search space exhausted without a feasible assignment"
		}
		return Result{Status: StatusInfeasible, Stats: e.stats, Diagnostic: diag}
	}
}

type occKey struct {
	owner string
	slot  string
}

type dayKey struct {
	owner string
	day   int
}

type engine struct {
	snap     *Snapshot
	rules    *CompiledConstraints
	requests []Request
	deadline time.Time

	domains  [][]Candidate
	assigned []*Candidate
	placed   int
	pathCost float64

	teacherOcc map[occKey][]*int
	roomOcc    map[occKey][]*int
	groupOcc   map[occKey][]*int

	teacherDay     map[dayKey]int
	groupLessonDay map[dayKey][]int

	best    *Solution
	deadEnd string
	stats   Stats
}

func (e *engine) expired() bool {
	return !time.Now().Before(e.deadline)
}

// buildDomains constructs each request's base candidate set: qualified
// teachers × rooms with sufficient capacity × time slots × week domain,
// filtered by compiled hard predicates. Candidates come out ordered by
// ascending (time slot, room, teacher, week) ids for reproducible search.
// A non-empty return is an infeasibility diagnostic for a request whose base
// domain is already empty.
func (e *engine) buildDomains() string {
	e.domains = make([][]Candidate, len(e.requests))
	for i, req := range e.requests {
		teachers := e.snap.QualifiedTeachers[req.LessonID]
		size := e.snap.GroupSize(req.Group)

		var rooms []models.Room
		for _, room := range e.snap.Rooms {
			if room.Capacity >= size {
				rooms = append(rooms, room)
			}
		}
		if len(rooms) == 0 {
			return fmt.Sprintf("no room can hold group %q (effective size %d)", e.snap.GroupName(req.Group), size)
		}

		weeks := e.rules.WeekDomain(req.LessonID)

		var domain []Candidate
		for _, slot := range e.snap.TimeSlots {
			for _, room := range rooms {
				for _, teacherID := range teachers {
					for _, week := range weeks {
						cand := Candidate{TeacherID: teacherID, RoomID: room.ID, TimeSlotID: slot.ID, Week: week}
						if e.hardBlocked(req, cand) {
							continue
						}
						domain = append(domain, cand)
					}
				}
			}
		}
		if len(domain) == 0 {
			lessonName := req.LessonID
			if lesson, ok := e.snap.Lesson(req.LessonID); ok {
				lessonName = lesson.Name
			}
			return fmt.Sprintf("hard constraints exclude every (teacher, room, time slot) tuple for lesson %q (group %q)", lessonName, e.snap.GroupName(req.Group))
		}
		e.domains[i] = domain
	}
	return ""
}

func (e *engine) hardBlocked(req Request, c Candidate) bool {
	for _, rule := range e.rules.Hard {
		if rule.Blocks(req, c) {
			return true
		}
	}
	return false
}

// dfs explores placements depth-first. The return value reports a deadline
// abort; infeasible branches return normally after backtracking.
func (e *engine) dfs() bool {
	e.stats.Nodes++
	if e.expired() {
		return true
	}
	if e.placed == len(e.requests) {
		e.stats.Solutions++
		e.captureSolution()
		return false
	}

	reqIdx, live := e.selectRequest()
	if len(live) == 0 {
		e.noteDeadEnd(reqIdx)
		e.stats.Backtracks++
		return false
	}

	req := e.requests[reqIdx]
	for i := range live {
		if e.expired() {
			return true
		}
		cand := live[i]
		cost := e.placementCost(req, cand)
		if e.best != nil && e.pathCost+cost >= e.best.Cost {
			continue
		}
		e.place(reqIdx, cand, cost)
		if e.dfs() {
			return true
		}
		e.unplace(reqIdx, cand, cost)
	}
	e.stats.Backtracks++
	return false
}

// selectRequest picks the unassigned request with the smallest live domain
// (most-constrained-first), preferring the lower index on ties. The live
// domain is the base domain filtered against current occupancy, which is the
// forward-checking view of the partial assignment.
func (e *engine) selectRequest() (int, []Candidate) {
	bestIdx := -1
	var bestLive []Candidate
	for i := range e.requests {
		if e.assigned[i] != nil {
			continue
		}
		live := e.liveDomain(i)
		if bestIdx == -1 || len(live) < len(bestLive) {
			bestIdx = i
			bestLive = live
			if len(live) == 0 {
				break
			}
		}
	}
	return bestIdx, bestLive
}

func (e *engine) liveDomain(reqIdx int) []Candidate {
	req := e.requests[reqIdx]
	var live []Candidate
	for _, cand := range e.domains[reqIdx] {
		if e.occupied(req, cand) {
			continue
		}
		live = append(live, cand)
	}
	return live
}

func (e *engine) occupied(req Request, c Candidate) bool {
	if weekTaken(e.teacherOcc[occKey{c.TeacherID, c.TimeSlotID}], c.Week) {
		return true
	}
	if weekTaken(e.roomOcc[occKey{c.RoomID, c.TimeSlotID}], c.Week) {
		return true
	}
	return weekTaken(e.groupOcc[occKey{req.Group.String(), c.TimeSlotID}], c.Week)
}

// weekTaken applies the week-equivalence rule: nil means every week, so it
// collides with anything in the slot; concrete weeks collide only when equal.
func weekTaken(weeks []*int, w *int) bool {
	for _, taken := range weeks {
		if taken == nil || w == nil || *taken == *w {
			return true
		}
	}
	return false
}

func (e *engine) placementCost(req Request, c Candidate) float64 {
	var cost float64
	for _, rule := range e.rules.Soft {
		cost += rule.Cost(req, c, e)
	}
	return cost
}

func (e *engine) place(reqIdx int, c Candidate, cost float64) {
	req := e.requests[reqIdx]
	cand := c
	e.assigned[reqIdx] = &cand
	e.placed++
	e.pathCost += cost

	tKey := occKey{c.TeacherID, c.TimeSlotID}
	rKey := occKey{c.RoomID, c.TimeSlotID}
	gKey := occKey{req.Group.String(), c.TimeSlotID}
	e.teacherOcc[tKey] = append(e.teacherOcc[tKey], c.Week)
	e.roomOcc[rKey] = append(e.roomOcc[rKey], c.Week)
	e.groupOcc[gKey] = append(e.groupOcc[gKey], c.Week)

	if slot, ok := e.snap.TimeSlot(c.TimeSlotID); ok {
		e.teacherDay[dayKey{c.TeacherID, slot.DayOfWeek}]++
		glKey := dayKey{req.Group.String() + "|" + req.LessonID, slot.DayOfWeek}
		e.groupLessonDay[glKey] = append(e.groupLessonDay[glKey], slot.SlotNumber)
	}
}

func (e *engine) unplace(reqIdx int, c Candidate, cost float64) {
	req := e.requests[reqIdx]
	e.assigned[reqIdx] = nil
	e.placed--
	e.pathCost -= cost

	tKey := occKey{c.TeacherID, c.TimeSlotID}
	rKey := occKey{c.RoomID, c.TimeSlotID}
	gKey := occKey{req.Group.String(), c.TimeSlotID}
	e.teacherOcc[tKey] = e.teacherOcc[tKey][:len(e.teacherOcc[tKey])-1]
	e.roomOcc[rKey] = e.roomOcc[rKey][:len(e.roomOcc[rKey])-1]
	e.groupOcc[gKey] = e.groupOcc[gKey][:len(e.groupOcc[gKey])-1]

	if slot, ok := e.snap.TimeSlot(c.TimeSlotID); ok {
		e.teacherDay[dayKey{c.TeacherID, slot.DayOfWeek}]--
		glKey := dayKey{req.Group.String() + "|" + req.LessonID, slot.DayOfWeek}
		e.groupLessonDay[glKey] = e.groupLessonDay[glKey][:len(e.groupLessonDay[glKey])-1]
	}
}

func (e *engine) captureSolution() {
	assignments := make([]Assignment, len(e.requests))
	for i, req := range e.requests {
		assignments[i] = Assignment{Request: req, Candidate: *e.assigned[i]}
	}
	if e.best == nil || e.pathCost < e.best.Cost {
		e.best = &Solution{Assignments: assignments, Cost: e.pathCost}
	}
}

// noteDeadEnd records the first exhausted request with the dominant reason
// its candidates were pruned, which becomes the infeasibility diagnostic.
func (e *engine) noteDeadEnd(reqIdx int) {
	if e.deadEnd != "" {
		return
	}
	req := e.requests[reqIdx]
	lessonName := req.LessonID
	if lesson, ok := e.snap.Lesson(req.LessonID); ok {
		lessonName = lesson.Name
	}
	groupName := e.snap.GroupName(req.Group)

	var byGroup, byTeacher, byRoom int
	for _, cand := range e.domains[reqIdx] {
		switch {
		case weekTaken(e.groupOcc[occKey{req.Group.String(), cand.TimeSlotID}], cand.Week):
			byGroup++
		case weekTaken(e.teacherOcc[occKey{cand.TeacherID, cand.TimeSlotID}], cand.Week):
			byTeacher++
		case weekTaken(e.roomOcc[occKey{cand.RoomID, cand.TimeSlotID}], cand.Week):
			byRoom++
		}
	}

	total := len(e.domains[reqIdx])
	switch {
	case byGroup >= byTeacher && byGroup >= byRoom:
		e.deadEnd = fmt.Sprintf("time slot domain exhausted for lesson %q (group %q): every usable time slot is already occupied for the group", lessonName, groupName)
	case byTeacher >= byRoom:
		e.deadEnd = fmt.Sprintf("teacher domain exhausted for lesson %q (group %q): all qualified teachers are busy in the %d remaining candidate slots", lessonName, groupName, total)
	default:
		e.deadEnd = fmt.Sprintf("room domain exhausted for lesson %q (group %q): no room is free in any remaining candidate slot", lessonName, groupName)
	}
}

// Implement PlacementView for soft scorers.

func (e *engine) TeacherDayCount(teacherID string, day int) int {
	return e.teacherDay[dayKey{teacherID, day}]
}

func (e *engine) GroupLessonDaySlots(group models.GroupRef, lessonID string, day int) []int {
	return e.groupLessonDay[dayKey{group.String() + "|" + lessonID, day}]
}
