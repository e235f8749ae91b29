package models

import (
	"fmt"
	"time"
)

// GroupKind discriminates the class-or-study group variant.
type GroupKind string

const (
	GroupKindClass GroupKind = "class"
	GroupKindStudy GroupKind = "study"
)

// GroupRef identifies a scheduling group as a tagged variant rather than a
// pair of nullable foreign keys, so the either/or invariant holds by shape.
type GroupRef struct {
	Kind GroupKind `json:"kind"`
	ID   string    `json:"id"`
}

// ClassGroupRef builds a class-group reference.
func ClassGroupRef(id string) GroupRef { return GroupRef{Kind: GroupKindClass, ID: id} }

// StudyGroupRef builds a study-group reference.
func StudyGroupRef(id string) GroupRef { return GroupRef{Kind: GroupKindStudy, ID: id} }

// Valid reports whether the reference carries a known kind and an id.
func (g GroupRef) Valid() bool {
	return g.ID != "" && (g.Kind == GroupKindClass || g.Kind == GroupKindStudy)
}

func (g GroupRef) String() string {
	return fmt.Sprintf("%s:%s", g.Kind, g.ID)
}

// Columns splits the reference onto the class_group_id / study_group_id pair
// used at the persistence boundary. Exactly one pointer is non-nil.
func (g GroupRef) Columns() (classGroupID, studyGroupID *string) {
	id := g.ID
	switch g.Kind {
	case GroupKindClass:
		return &id, nil
	case GroupKindStudy:
		return nil, &id
	}
	return nil, nil
}

// GroupRefFromColumns rebuilds the tagged variant from the XOR column pair.
func GroupRefFromColumns(classGroupID, studyGroupID *string) (GroupRef, error) {
	switch {
	case classGroupID != nil && studyGroupID != nil:
		return GroupRef{}, fmt.Errorf("entry references both a class group and a study group")
	case classGroupID != nil:
		return ClassGroupRef(*classGroupID), nil
	case studyGroupID != nil:
		return StudyGroupRef(*studyGroupID), nil
	}
	return GroupRef{}, fmt.Errorf("entry references no group")
}

// ClassGroup is a fixed cohort of students scheduled together.
type ClassGroup struct {
	ID            string    `db:"id" json:"id"`
	InstitutionID string    `db:"institution_id" json:"institution_id"`
	Name          string    `db:"name" json:"name"`
	StudentCount  int       `db:"student_count" json:"student_count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Stream is a named collection of class groups scoping study-group membership.
type Stream struct {
	ID            string    `db:"id" json:"id"`
	InstitutionID string    `db:"institution_id" json:"institution_id"`
	Name          string    `db:"name" json:"name"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// StreamClassGroup attaches a class group to a stream.
type StreamClassGroup struct {
	StreamID     string `db:"stream_id" json:"stream_id"`
	ClassGroupID string `db:"class_group_id" json:"class_group_id"`
}

// StudyGroup is a named subset of students drawn from one stream's classes.
type StudyGroup struct {
	ID            string    `db:"id" json:"id"`
	InstitutionID string    `db:"institution_id" json:"institution_id"`
	StreamID      string    `db:"stream_id" json:"stream_id"`
	Name          string    `db:"name" json:"name"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// StudyGroupMember is one roster row of a study group.
type StudyGroupMember struct {
	StudyGroupID string `db:"study_group_id" json:"study_group_id"`
	StudentID    string `db:"student_id" json:"student_id"`
}

// Student belongs to exactly one class group, optionally to study groups.
type Student struct {
	ID            string    `db:"id" json:"id"`
	InstitutionID string    `db:"institution_id" json:"institution_id"`
	ClassGroupID  string    `db:"class_group_id" json:"class_group_id"`
	FullName      string    `db:"full_name" json:"full_name"`
	StudentNumber *string   `db:"student_number" json:"student_number,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
