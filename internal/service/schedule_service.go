package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/timetab-app/timetab-api/internal/models"
	"github.com/timetab-app/timetab-api/internal/scheduler"
	appErrors "github.com/timetab-app/timetab-api/pkg/errors"
	"github.com/timetab-app/timetab-api/pkg/export"
)

type scheduleRepository interface {
	ListAll(ctx context.Context, institutionID string) ([]models.Schedule, error)
	FindByID(ctx context.Context, institutionID, id string) (*models.Schedule, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	Update(ctx context.Context, schedule *models.Schedule) error
	Delete(ctx context.Context, institutionID, id string) error
	ListEntries(ctx context.Context, scheduleID string) ([]models.ScheduleEntry, error)
}

// ScheduleInput carries schedule create/update payloads.
type ScheduleInput struct {
	Name           string  `json:"name" validate:"required,min=1"`
	AcademicPeriod *string `json:"academic_period"`
}

// ScheduleService manages schedule records and assembles timetable views
// from their generated entries.
type ScheduleService struct {
	schedules scheduleRepository
	snapshots snapshotSource
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(schedules scheduleRepository, snapshots snapshotSource, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ScheduleService{
		schedules: schedules,
		snapshots: snapshots,
		validator: validate,
		logger:    logger,
	}
}

// List returns every schedule of the institution, without entries.
func (s *ScheduleService) List(ctx context.Context, institutionID string) ([]models.Schedule, error) {
	schedules, err := s.schedules.ListAll(ctx, institutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	return schedules, nil
}

// Get fetches one schedule with its entries attached.
func (s *ScheduleService) Get(ctx context.Context, institutionID, id string) (*models.Schedule, error) {
	schedule, err := s.schedules.FindByID(ctx, institutionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch schedule")
	}
	entries, err := s.schedules.ListEntries(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule entries")
	}
	schedule.Entries = entries
	return schedule, nil
}

// Create adds a draft schedule.
func (s *ScheduleService) Create(ctx context.Context, institutionID string, input ScheduleInput) (*models.Schedule, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	schedule := &models.Schedule{
		InstitutionID:  institutionID,
		Name:           input.Name,
		AcademicPeriod: input.AcademicPeriod,
		Status:         models.ScheduleStatusDraft,
	}
	if err := s.schedules.Create(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
	}
	return schedule, nil
}

// Update renames a schedule or moves it to another academic period.
func (s *ScheduleService) Update(ctx context.Context, institutionID, id string, input ScheduleInput) (*models.Schedule, error) {
	schedule, err := s.schedules.FindByID(ctx, institutionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch schedule")
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	schedule.Name = input.Name
	schedule.AcademicPeriod = input.AcademicPeriod
	if err := s.schedules.Update(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule")
	}
	return schedule, nil
}

// Delete removes a schedule and its entries.
func (s *ScheduleService) Delete(ctx context.Context, institutionID, id string) error {
	if err := s.schedules.Delete(ctx, institutionID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	return nil
}

// BuildGrid assembles the weekly timetable grid for a schedule, resolving
// entry ids into human-readable labels through the reference snapshot.
func (s *ScheduleService) BuildGrid(ctx context.Context, institutionID, scheduleID string) (export.TimetableGrid, error) {
	schedule, err := s.Get(ctx, institutionID, scheduleID)
	if err != nil {
		return export.TimetableGrid{}, err
	}
	snap, err := s.snapshots.Load(ctx, institutionID)
	if err != nil {
		return export.TimetableGrid{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reference data")
	}
	return buildTimetableGrid(schedule, snap), nil
}

// BuildDataset flattens a schedule's entries into tabular export rows.
func (s *ScheduleService) BuildDataset(ctx context.Context, institutionID, scheduleID string) (export.Dataset, string, error) {
	schedule, err := s.Get(ctx, institutionID, scheduleID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	snap, err := s.snapshots.Load(ctx, institutionID)
	if err != nil {
		return export.Dataset{}, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reference data")
	}

	teacherNames := teacherNameIndex(snap)
	headers := []string{"Day", "Time", "Group", "Lesson", "Teacher", "Room", "Week"}
	rows := make([]map[string]string, 0, len(schedule.Entries))
	for _, entry := range schedule.Entries {
		slot, _ := snap.TimeSlot(entry.TimeSlotID)
		lesson, _ := snap.Lesson(entry.LessonID)
		room, _ := snap.Room(entry.RoomID)
		group, groupErr := entry.Group()
		groupName := ""
		if groupErr == nil {
			groupName = snap.GroupName(group)
		}
		week := "every"
		if entry.WeekNumber != nil {
			week = fmt.Sprintf("%d", *entry.WeekNumber)
		}
		rows = append(rows, map[string]string{
			"Day":     models.DayName(slot.DayOfWeek),
			"Time":    fmt.Sprintf("%s-%s", slot.StartTime, slot.EndTime),
			"Group":   groupName,
			"Lesson":  lesson.Name,
			"Teacher": teacherNames[entry.TeacherID],
			"Room":    room.Name,
			"Week":    week,
		})
	}
	title := fmt.Sprintf("Timetable %s", schedule.Name)
	return export.Dataset{Headers: headers, Rows: rows}, title, nil
}

func buildTimetableGrid(schedule *models.Schedule, snap *scheduler.Snapshot) export.TimetableGrid {
	days := make([]int, 0, 7)
	daySeen := make(map[int]bool)
	slotRows := make([]models.TimeSlot, 0, len(snap.TimeSlots))
	rowSeen := make(map[int]bool)
	for _, slot := range snap.TimeSlots {
		if !daySeen[slot.DayOfWeek] {
			daySeen[slot.DayOfWeek] = true
			days = append(days, slot.DayOfWeek)
		}
		if !rowSeen[slot.SlotNumber] {
			rowSeen[slot.SlotNumber] = true
			slotRows = append(slotRows, slot)
		}
	}
	sort.Ints(days)
	sort.Slice(slotRows, func(i, j int) bool { return slotRows[i].SlotNumber < slotRows[j].SlotNumber })

	dayIdx := make(map[int]int, len(days))
	dayLabels := make([]string, len(days))
	for i, day := range days {
		dayIdx[day] = i
		dayLabels[i] = models.DayName(day)
	}
	rowIdx := make(map[int]int, len(slotRows))
	slotLabels := make([]string, len(slotRows))
	for i, slot := range slotRows {
		rowIdx[slot.SlotNumber] = i
		slotLabels[i] = fmt.Sprintf("%s-%s", slot.StartTime, slot.EndTime)
	}

	cells := make([][]string, len(slotRows))
	for i := range cells {
		cells[i] = make([]string, len(days))
	}

	teacherNames := teacherNameIndex(snap)
	for _, entry := range schedule.Entries {
		slot, ok := snap.TimeSlot(entry.TimeSlotID)
		if !ok {
			continue
		}
		row, rowOK := rowIdx[slot.SlotNumber]
		col, colOK := dayIdx[slot.DayOfWeek]
		if !rowOK || !colOK {
			continue
		}
		lesson, _ := snap.Lesson(entry.LessonID)
		room, _ := snap.Room(entry.RoomID)
		groupName := ""
		if group, err := entry.Group(); err == nil {
			groupName = snap.GroupName(group)
		}
		line := fmt.Sprintf("%s %s (%s, %s)", groupName, lesson.Name, teacherNames[entry.TeacherID], room.Name)
		if entry.WeekNumber != nil {
			line = fmt.Sprintf("%s [w%d]", line, *entry.WeekNumber)
		}
		if cells[row][col] != "" {
			line = cells[row][col] + "\n" + line
		}
		cells[row][col] = line
	}

	title := schedule.Name
	if schedule.AcademicPeriod != nil && *schedule.AcademicPeriod != "" {
		title = strings.TrimSpace(title + " " + *schedule.AcademicPeriod)
	}
	return export.TimetableGrid{
		Title:      title,
		DayLabels:  dayLabels,
		SlotLabels: slotLabels,
		Cells:      cells,
	}
}

func teacherNameIndex(snap *scheduler.Snapshot) map[string]string {
	names := make(map[string]string, len(snap.Teachers))
	for _, t := range snap.Teachers {
		names[t.ID] = t.FullName
	}
	return names
}
