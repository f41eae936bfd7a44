package dto

// HostSummary is the public roster entry.
type HostSummary struct {
	Slug        string `json:"slug"`
	DisplayName string `json:"display_name"`
	Timezone    string `json:"timezone"`
	Connected   bool   `json:"calendar_connected"`
}

// HostProfile is the public profile with display hours.
type HostProfile struct {
	Slug                string              `json:"slug"`
	DisplayName         string              `json:"display_name"`
	Timezone            string              `json:"timezone"`
	Connected           bool                `json:"calendar_connected"`
	SlotDurationMinutes int                 `json:"slot_duration_minutes"`
	Hours               map[string][]string `json:"hours"`
}

// UpdateAvailabilityRequest replaces a host's availability policy. Hours map
// lowercase weekday names to ["HH:MM","HH:MM"] pairs, e.g.
// {"mon": [["09:00","12:00"], ["13:00","17:00"]]}.
type UpdateAvailabilityRequest struct {
	Hours               map[string][][2]string `json:"hours" binding:"required"`
	BufferMinutes       int                    `json:"buffer_minutes" validate:"gte=0"`
	MinNoticeMinutes    int                    `json:"min_notice_minutes" validate:"gte=0"`
	MaxDaysAhead        int                    `json:"max_days_ahead" validate:"gte=0"`
	SlotDurationMinutes int                    `json:"slot_duration_minutes" validate:"gte=0"`
}
