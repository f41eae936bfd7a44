package models

import "time"

// Host is the aggregate for one bookable coach: public identity, timezone,
// availability policy, and the opaque external-calendar credential handle.
// The credential blob is owned by the calendar adapter and never parsed here.
type Host struct {
	ID          string             `db:"id" json:"id"`
	Slug        string             `db:"slug" json:"slug"`
	DisplayName string             `db:"display_name" json:"display_name"`
	Email       string             `db:"email" json:"email"`
	Timezone    string             `db:"timezone" json:"timezone"`
	Credential  string             `db:"calendar_credential" json:"-"`
	Policy      AvailabilityPolicy `db:"availability" json:"availability"`
	Active      bool               `db:"active" json:"active"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at" json:"updated_at"`
}

// Connected reports whether the host has an external calendar credential.
func (h *Host) Connected() bool {
	return h != nil && h.Credential != ""
}
