package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Constraint is a stored scheduling rule. ConstraintData is an opaque payload
// interpreted per ConstraintType by the compiler registry; Priority 0-10 is
// the soft-constraint weight.
type Constraint struct {
	ID             string         `db:"id" json:"id"`
	InstitutionID  string         `db:"institution_id" json:"institution_id"`
	ConstraintType string         `db:"constraint_type" json:"constraint_type"`
	ConstraintData types.JSONText `db:"constraint_data" json:"constraint_data"`
	Priority       int            `db:"priority" json:"priority"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}
