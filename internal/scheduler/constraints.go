package scheduler

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/timetab-app/timetab-api/internal/models"
)

// Candidate is one possible (teacher, room, slot, week) tuple for a request.
// Week nil means the assignment repeats every week.
type Candidate struct {
	TeacherID  string
	RoomID     string
	TimeSlotID string
	Week       *int
}

// PlacementView exposes the partial assignment to soft scorers. The engine's
// search state implements it.
type PlacementView interface {
	// TeacherDayCount is the number of sessions already placed for a teacher
	// on a 0-based weekday.
	TeacherDayCount(teacherID string, day int) int
	// GroupLessonDaySlots lists slot numbers already placed for a
	// (group, lesson) pair on a weekday.
	GroupLessonDaySlots(group models.GroupRef, lessonID string, day int) []int
}

// HardRule prunes candidate tuples outright.
type HardRule struct {
	Name   string
	Blocks func(req Request, c Candidate) bool
}

// SoftRule contributes a weighted violation cost to a placement.
type SoftRule struct {
	Name    string
	Weight  float64
	Penalty func(req Request, c Candidate, view PlacementView) float64
}

// Cost is the weighted penalty for placing req at c given the partial state.
func (r SoftRule) Cost(req Request, c Candidate, view PlacementView) float64 {
	return r.Weight * r.Penalty(req, c, view)
}

// CompiledConstraints is the executable form of an institution's constraint
// set: hard predicates, weighted soft scorers, and the widened week domains.
type CompiledConstraints struct {
	Hard     []HardRule
	Soft     []SoftRule
	Warnings []string

	// weekLessons maps lesson id to its explicit rotation weeks. Lessons not
	// present schedule in every week (week nil).
	weekLessons map[string][]int
}

// WeekDomain returns the candidate weeks for a lesson: {nil} by default, or
// the explicit rotation weeks when a week_alternation constraint names it.
func (c *CompiledConstraints) WeekDomain(lessonID string) []*int {
	weeks, ok := c.weekLessons[lessonID]
	if !ok || len(weeks) == 0 {
		return []*int{nil}
	}
	domain := make([]*int, 0, len(weeks))
	for _, w := range weeks {
		week := w
		domain = append(domain, &week)
	}
	return domain
}

// Known constraint type tags. The registry keeps the set open: unknown tags
// compile to a recorded no-op so generation never fails on stored data alone.
const (
	ConstraintTeacherUnavailable  = "teacher_unavailable"
	ConstraintRoomUnavailable     = "room_unavailable"
	ConstraintPreferredTimeWindow = "preferred_time_window"
	ConstraintMaxDailyLoad        = "max_daily_load"
	ConstraintRoomTypeMatch       = "room_type_match"
	ConstraintConsecutiveSessions = "consecutive_sessions"
	ConstraintWeekAlternation     = "week_alternation"
)

type compiled struct {
	hard        *HardRule
	soft        *SoftRule
	weekLessons []string
	weeks       []int
}

type compileFunc func(rec models.Constraint, snap *Snapshot) (*compiled, error)

var constraintRegistry = map[string]compileFunc{
	ConstraintTeacherUnavailable:  compileTeacherUnavailable,
	ConstraintRoomUnavailable:     compileRoomUnavailable,
	ConstraintPreferredTimeWindow: compilePreferredTimeWindow,
	ConstraintMaxDailyLoad:        compileMaxDailyLoad,
	ConstraintRoomTypeMatch:       compileRoomTypeMatch,
	ConstraintConsecutiveSessions: compileConsecutiveSessions,
	ConstraintWeekAlternation:     compileWeekAlternation,
}

// Compile maps every stored constraint onto an executable rule. Unknown types
// and malformed payloads degrade to warnings, never to a failed generation.
func Compile(snap *Snapshot, logger *zap.Logger) *CompiledConstraints {
	if logger == nil {
		logger = zap.NewNop()
	}
	result := &CompiledConstraints{weekLessons: make(map[string][]int)}

	for _, rec := range snap.Constraints {
		fn, known := constraintRegistry[rec.ConstraintType]
		if !known {
			warning := fmt.Sprintf("unknown constraint type %q (id %s): compiled to no-op", rec.ConstraintType, rec.ID)
			result.Warnings = append(result.Warnings, warning)
			logger.Warn("skipping unrecognized constraint", zap.String("constraint_type", rec.ConstraintType), zap.String("constraint_id", rec.ID))
			continue
		}
		rule, err := fn(rec, snap)
		if err != nil {
			warning := fmt.Sprintf("constraint %s (%s) has invalid payload: %v", rec.ID, rec.ConstraintType, err)
			result.Warnings = append(result.Warnings, warning)
			logger.Warn("skipping malformed constraint", zap.String("constraint_type", rec.ConstraintType), zap.String("constraint_id", rec.ID), zap.Error(err))
			continue
		}
		if rule.hard != nil {
			result.Hard = append(result.Hard, *rule.hard)
		}
		if rule.soft != nil {
			soft := *rule.soft
			soft.Weight = clampPriority(rec.Priority)
			result.Soft = append(result.Soft, soft)
		}
		for _, lessonID := range rule.weekLessons {
			result.weekLessons[lessonID] = rule.weeks
		}
	}
	return result
}

func clampPriority(priority int) float64 {
	if priority < 0 {
		return 0
	}
	if priority > 10 {
		return 10
	}
	return float64(priority)
}

func compileTeacherUnavailable(rec models.Constraint, _ *Snapshot) (*compiled, error) {
	var payload struct {
		TeacherID   string   `json:"teacher_id"`
		TimeSlotIDs []string `json:"time_slot_ids"`
	}
	if err := json.Unmarshal(rec.ConstraintData, &payload); err != nil {
		return nil, err
	}
	if payload.TeacherID == "" {
		return nil, fmt.Errorf("teacher_id is required")
	}
	blocked := toSet(payload.TimeSlotIDs)
	return &compiled{hard: &HardRule{
		Name: ConstraintTeacherUnavailable,
		Blocks: func(_ Request, c Candidate) bool {
			return c.TeacherID == payload.TeacherID && blocked[c.TimeSlotID]
		},
	}}, nil
}

func compileRoomUnavailable(rec models.Constraint, _ *Snapshot) (*compiled, error) {
	var payload struct {
		RoomID      string   `json:"room_id"`
		TimeSlotIDs []string `json:"time_slot_ids"`
	}
	if err := json.Unmarshal(rec.ConstraintData, &payload); err != nil {
		return nil, err
	}
	if payload.RoomID == "" {
		return nil, fmt.Errorf("room_id is required")
	}
	blocked := toSet(payload.TimeSlotIDs)
	return &compiled{hard: &HardRule{
		Name: ConstraintRoomUnavailable,
		Blocks: func(_ Request, c Candidate) bool {
			return c.RoomID == payload.RoomID && blocked[c.TimeSlotID]
		},
	}}, nil
}

func compilePreferredTimeWindow(rec models.Constraint, snap *Snapshot) (*compiled, error) {
	var payload struct {
		LessonID    string `json:"lesson_id"`
		Days        []int  `json:"days"`
		SlotNumbers []int  `json:"slot_numbers"`
	}
	if err := json.Unmarshal(rec.ConstraintData, &payload); err != nil {
		return nil, err
	}
	if len(payload.Days) == 0 && len(payload.SlotNumbers) == 0 {
		return nil, fmt.Errorf("window requires days or slot_numbers")
	}
	days := toIntSet(payload.Days)
	slots := toIntSet(payload.SlotNumbers)
	return &compiled{soft: &SoftRule{
		Name: ConstraintPreferredTimeWindow,
		Penalty: func(req Request, c Candidate, _ PlacementView) float64 {
			if payload.LessonID != "" && req.LessonID != payload.LessonID {
				return 0
			}
			slot, ok := snap.TimeSlot(c.TimeSlotID)
			if !ok {
				return 0
			}
			if len(days) > 0 && !days[slot.DayOfWeek] {
				return 1
			}
			if len(slots) > 0 && !slots[slot.SlotNumber] {
				return 1
			}
			return 0
		},
	}}, nil
}

func compileMaxDailyLoad(rec models.Constraint, snap *Snapshot) (*compiled, error) {
	var payload struct {
		TeacherID string `json:"teacher_id"`
		MaxPerDay int    `json:"max_per_day"`
	}
	if err := json.Unmarshal(rec.ConstraintData, &payload); err != nil {
		return nil, err
	}
	if payload.TeacherID == "" || payload.MaxPerDay <= 0 {
		return nil, fmt.Errorf("teacher_id and positive max_per_day are required")
	}
	return &compiled{soft: &SoftRule{
		Name: ConstraintMaxDailyLoad,
		Penalty: func(_ Request, c Candidate, view PlacementView) float64 {
			if c.TeacherID != payload.TeacherID {
				return 0
			}
			slot, ok := snap.TimeSlot(c.TimeSlotID)
			if !ok {
				return 0
			}
			// Each placement beyond the cap pays once, so the total equals
			// the day's excess regardless of placement order.
			if view.TeacherDayCount(c.TeacherID, slot.DayOfWeek) >= payload.MaxPerDay {
				return 1
			}
			return 0
		},
	}}, nil
}

func compileRoomTypeMatch(rec models.Constraint, snap *Snapshot) (*compiled, error) {
	var payload struct {
		LessonID string `json:"lesson_id"`
		RoomType string `json:"room_type"`
	}
	if err := json.Unmarshal(rec.ConstraintData, &payload); err != nil {
		return nil, err
	}
	if payload.LessonID == "" || payload.RoomType == "" {
		return nil, fmt.Errorf("lesson_id and room_type are required")
	}
	return &compiled{soft: &SoftRule{
		Name: ConstraintRoomTypeMatch,
		Penalty: func(req Request, c Candidate, _ PlacementView) float64 {
			if req.LessonID != payload.LessonID {
				return 0
			}
			room, ok := snap.Room(c.RoomID)
			if !ok {
				return 0
			}
			if room.RoomType == nil || *room.RoomType != payload.RoomType {
				return 1
			}
			return 0
		},
	}}, nil
}

func compileConsecutiveSessions(rec models.Constraint, snap *Snapshot) (*compiled, error) {
	var payload struct {
		LessonID string `json:"lesson_id"`
	}
	if err := json.Unmarshal(rec.ConstraintData, &payload); err != nil {
		return nil, err
	}
	if payload.LessonID == "" {
		return nil, fmt.Errorf("lesson_id is required")
	}
	return &compiled{soft: &SoftRule{
		Name: ConstraintConsecutiveSessions,
		Penalty: func(req Request, c Candidate, view PlacementView) float64 {
			if req.LessonID != payload.LessonID {
				return 0
			}
			slot, ok := snap.TimeSlot(c.TimeSlotID)
			if !ok {
				return 0
			}
			// Pay once per already-placed same-day sibling that is not
			// adjacent; pairwise cost keeps the sum order-independent.
			var penalty float64
			for _, placed := range view.GroupLessonDaySlots(req.Group, req.LessonID, slot.DayOfWeek) {
				if diff := slot.SlotNumber - placed; diff > 1 || diff < -1 {
					penalty++
				}
			}
			return penalty
		},
	}}, nil
}

func compileWeekAlternation(rec models.Constraint, _ *Snapshot) (*compiled, error) {
	var payload struct {
		LessonIDs []string `json:"lesson_ids"`
		Weeks     []int    `json:"weeks"`
	}
	if err := json.Unmarshal(rec.ConstraintData, &payload); err != nil {
		return nil, err
	}
	if len(payload.LessonIDs) == 0 || len(payload.Weeks) < 2 {
		return nil, fmt.Errorf("lesson_ids and at least two weeks are required")
	}
	return &compiled{weekLessons: payload.LessonIDs, weeks: payload.Weeks}, nil
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

func toIntSet(items []int) map[int]bool {
	set := make(map[int]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
