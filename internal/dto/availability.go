package dto

import "time"

// Slot is one offerable meeting start. Start is the canonical UTC instant;
// the label fields render it in the viewer's timezone.
type Slot struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	LocalLabel string    `json:"local_label"`
	LocalDate  string    `json:"local_date"`
}

// AvailabilityResponse is the public slot listing for one host and date.
type AvailabilityResponse struct {
	HostSlug        string `json:"host_slug"`
	Date            string `json:"date"`
	Timezone        string `json:"timezone"`
	DurationMinutes int    `json:"duration_minutes"`
	Slots           []Slot `json:"slots"`
}
