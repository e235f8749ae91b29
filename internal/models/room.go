package models

import "time"

// Room hosts a lesson occurrence; capacity bounds the group size.
type Room struct {
	ID            string    `db:"id" json:"id"`
	InstitutionID string    `db:"institution_id" json:"institution_id"`
	Name          string    `db:"name" json:"name"`
	Capacity      int       `db:"capacity" json:"capacity"`
	RoomType      *string   `db:"room_type" json:"room_type,omitempty"`
	Equipment     *string   `db:"equipment" json:"equipment,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
