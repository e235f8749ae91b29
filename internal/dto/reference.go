package dto

// QualificationsRequest replaces a teacher's qualified lesson set.
type QualificationsRequest struct {
	LessonIDs []string `json:"lesson_ids" validate:"required"`
}

// ClassGroupIDsRequest replaces the class groups attached to a stream.
type ClassGroupIDsRequest struct {
	ClassGroupIDs []string `json:"class_group_ids" validate:"required"`
}

// StudentIDsRequest replaces a study group's roster.
type StudentIDsRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required"`
}
