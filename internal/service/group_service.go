package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/timetab-app/timetab-api/internal/models"
	appErrors "github.com/timetab-app/timetab-api/pkg/errors"
)

type classGroupRepository interface {
	ListAll(ctx context.Context, institutionID string) ([]models.ClassGroup, error)
	FindByID(ctx context.Context, institutionID, id string) (*models.ClassGroup, error)
	Create(ctx context.Context, group *models.ClassGroup) error
	Update(ctx context.Context, group *models.ClassGroup) error
	Delete(ctx context.Context, institutionID, id string) error
}

type streamRepository interface {
	ListAll(ctx context.Context, institutionID string) ([]models.Stream, error)
	FindByID(ctx context.Context, institutionID, id string) (*models.Stream, error)
	Create(ctx context.Context, stream *models.Stream) error
	Update(ctx context.Context, stream *models.Stream) error
	Delete(ctx context.Context, institutionID, id string) error
	ListClassGroupIDs(ctx context.Context, streamID string) ([]string, error)
	ReplaceClassGroups(ctx context.Context, streamID string, classGroupIDs []string) error
}

type studyGroupRepository interface {
	ListAll(ctx context.Context, institutionID string) ([]models.StudyGroup, error)
	FindByID(ctx context.Context, institutionID, id string) (*models.StudyGroup, error)
	Create(ctx context.Context, group *models.StudyGroup) error
	Update(ctx context.Context, group *models.StudyGroup) error
	Delete(ctx context.Context, institutionID, id string) error
	ListMemberIDs(ctx context.Context, studyGroupID string) ([]string, error)
	ReplaceMembers(ctx context.Context, studyGroupID string, studentIDs []string) error
}

type studentRepository interface {
	ListByClassGroup(ctx context.Context, institutionID, classGroupID string) ([]models.Student, error)
	FindByID(ctx context.Context, institutionID, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, institutionID, id string) error
}

// ClassGroupInput carries class-group create/update payloads.
type ClassGroupInput struct {
	Name         string `json:"name" validate:"required,min=1"`
	StudentCount int    `json:"student_count" validate:"min=0"`
}

// StreamInput carries stream create/update payloads.
type StreamInput struct {
	Name string `json:"name" validate:"required,min=1"`
}

// StudyGroupInput carries study-group create/update payloads.
type StudyGroupInput struct {
	StreamID string `json:"stream_id" validate:"required"`
	Name     string `json:"name" validate:"required,min=1"`
}

// StudentInput carries student create/update payloads.
type StudentInput struct {
	ClassGroupID  string  `json:"class_group_id" validate:"required"`
	FullName      string  `json:"full_name" validate:"required,min=2"`
	StudentNumber *string `json:"student_number"`
}

// GroupService manages the grouping hierarchy: class groups, streams,
// study groups with rosters, and students.
type GroupService struct {
	classGroups classGroupRepository
	streams     streamRepository
	studyGroups studyGroupRepository
	students    studentRepository
	snapshots   snapshotInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewGroupService constructs a GroupService. snapshots may be nil.
func NewGroupService(classGroups classGroupRepository, streams streamRepository, studyGroups studyGroupRepository, students studentRepository, snapshots snapshotInvalidator, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GroupService{
		classGroups: classGroups,
		streams:     streams,
		studyGroups: studyGroups,
		students:    students,
		snapshots:   snapshots,
		validator:   validate,
		logger:      logger,
	}
}

// ListClassGroups returns every class group of the institution.
func (s *GroupService) ListClassGroups(ctx context.Context, institutionID string) ([]models.ClassGroup, error) {
	groups, err := s.classGroups.ListAll(ctx, institutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class groups")
	}
	return groups, nil
}

// GetClassGroup fetches one class group.
func (s *GroupService) GetClassGroup(ctx context.Context, institutionID, id string) (*models.ClassGroup, error) {
	group, err := s.classGroups.FindByID(ctx, institutionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch class group")
	}
	return group, nil
}

// CreateClassGroup adds a class group.
func (s *GroupService) CreateClassGroup(ctx context.Context, institutionID string, input ClassGroupInput) (*models.ClassGroup, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class group payload")
	}
	group := &models.ClassGroup{
		InstitutionID: institutionID,
		Name:          input.Name,
		StudentCount:  input.StudentCount,
	}
	if err := s.classGroups.Create(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class group")
	}
	s.invalidate(ctx, institutionID)
	return group, nil
}

// UpdateClassGroup modifies a class group.
func (s *GroupService) UpdateClassGroup(ctx context.Context, institutionID, id string, input ClassGroupInput) (*models.ClassGroup, error) {
	group, err := s.GetClassGroup(ctx, institutionID, id)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class group payload")
	}
	group.Name = input.Name
	group.StudentCount = input.StudentCount
	if err := s.classGroups.Update(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class group")
	}
	s.invalidate(ctx, institutionID)
	return group, nil
}

// DeleteClassGroup removes a class group.
func (s *GroupService) DeleteClassGroup(ctx context.Context, institutionID, id string) error {
	if err := s.classGroups.Delete(ctx, institutionID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class group not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class group")
	}
	s.invalidate(ctx, institutionID)
	return nil
}

// ListStreams returns every stream of the institution.
func (s *GroupService) ListStreams(ctx context.Context, institutionID string) ([]models.Stream, error) {
	streams, err := s.streams.ListAll(ctx, institutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list streams")
	}
	return streams, nil
}

// CreateStream adds a stream.
func (s *GroupService) CreateStream(ctx context.Context, institutionID string, input StreamInput) (*models.Stream, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid stream payload")
	}
	stream := &models.Stream{InstitutionID: institutionID, Name: input.Name}
	if err := s.streams.Create(ctx, stream); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create stream")
	}
	return stream, nil
}

// SetStreamClassGroups replaces the class groups attached to a stream.
func (s *GroupService) SetStreamClassGroups(ctx context.Context, institutionID, streamID string, classGroupIDs []string) error {
	if _, err := s.streams.FindByID(ctx, institutionID, streamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "stream not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch stream")
	}
	for _, classGroupID := range classGroupIDs {
		if _, err := s.GetClassGroup(ctx, institutionID, classGroupID); err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "unknown class group "+classGroupID)
		}
	}
	if err := s.streams.ReplaceClassGroups(ctx, streamID, classGroupIDs); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach class groups")
	}
	return nil
}

// DeleteStream removes a stream.
func (s *GroupService) DeleteStream(ctx context.Context, institutionID, id string) error {
	if err := s.streams.Delete(ctx, institutionID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "stream not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete stream")
	}
	return nil
}

// ListStudyGroups returns every study group of the institution.
func (s *GroupService) ListStudyGroups(ctx context.Context, institutionID string) ([]models.StudyGroup, error) {
	groups, err := s.studyGroups.ListAll(ctx, institutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list study groups")
	}
	return groups, nil
}

// GetStudyGroup fetches one study group.
func (s *GroupService) GetStudyGroup(ctx context.Context, institutionID, id string) (*models.StudyGroup, error) {
	group, err := s.studyGroups.FindByID(ctx, institutionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "study group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch study group")
	}
	return group, nil
}

// CreateStudyGroup adds a study group under a stream.
func (s *GroupService) CreateStudyGroup(ctx context.Context, institutionID string, input StudyGroupInput) (*models.StudyGroup, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid study group payload")
	}
	if _, err := s.streams.FindByID(ctx, institutionID, input.StreamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown stream "+input.StreamID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch stream")
	}
	group := &models.StudyGroup{
		InstitutionID: institutionID,
		StreamID:      input.StreamID,
		Name:          input.Name,
	}
	if err := s.studyGroups.Create(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create study group")
	}
	s.invalidate(ctx, institutionID)
	return group, nil
}

// SetStudyGroupMembers replaces a study group's roster. Every student must
// belong to a class group attached to the study group's stream.
func (s *GroupService) SetStudyGroupMembers(ctx context.Context, institutionID, studyGroupID string, studentIDs []string) error {
	group, err := s.GetStudyGroup(ctx, institutionID, studyGroupID)
	if err != nil {
		return err
	}
	streamClassGroups, err := s.streams.ListClassGroupIDs(ctx, group.StreamID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load stream class groups")
	}
	allowed := make(map[string]bool, len(streamClassGroups))
	for _, id := range streamClassGroups {
		allowed[id] = true
	}
	for _, studentID := range studentIDs {
		student, err := s.students.FindByID(ctx, institutionID, studentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrValidation, "unknown student "+studentID)
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student")
		}
		if !allowed[student.ClassGroupID] {
			return appErrors.Clone(appErrors.ErrValidation, "student "+studentID+" is outside the study group's stream")
		}
	}
	if err := s.studyGroups.ReplaceMembers(ctx, studyGroupID, studentIDs); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace roster")
	}
	s.invalidate(ctx, institutionID)
	return nil
}

// DeleteStudyGroup removes a study group and its roster.
func (s *GroupService) DeleteStudyGroup(ctx context.Context, institutionID, id string) error {
	if err := s.studyGroups.Delete(ctx, institutionID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "study group not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete study group")
	}
	s.invalidate(ctx, institutionID)
	return nil
}

// ListStudents returns the students of one class group.
func (s *GroupService) ListStudents(ctx context.Context, institutionID, classGroupID string) ([]models.Student, error) {
	students, err := s.students.ListByClassGroup(ctx, institutionID, classGroupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// CreateStudent adds a student to a class group.
func (s *GroupService) CreateStudent(ctx context.Context, institutionID string, input StudentInput) (*models.Student, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if _, err := s.GetClassGroup(ctx, institutionID, input.ClassGroupID); err != nil {
		return nil, err
	}
	student := &models.Student{
		InstitutionID: institutionID,
		ClassGroupID:  input.ClassGroupID,
		FullName:      input.FullName,
		StudentNumber: input.StudentNumber,
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// DeleteStudent removes a student and its roster memberships.
func (s *GroupService) DeleteStudent(ctx context.Context, institutionID, id string) error {
	if err := s.students.Delete(ctx, institutionID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.invalidate(ctx, institutionID)
	return nil
}

func (s *GroupService) invalidate(ctx context.Context, institutionID string) {
	if s.snapshots != nil {
		s.snapshots.Invalidate(ctx, institutionID)
	}
}
