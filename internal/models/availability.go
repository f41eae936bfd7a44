package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// MinutesPerDay bounds the local time ranges of a working day.
const MinutesPerDay = 24 * 60

// TimeRange is a half-open [StartMinute, EndMinute) range of local wall-clock
// minutes within one day.
type TimeRange struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

// WeeklyHours maps weekdays to ordered, disjoint working ranges. Index 0 is
// Monday, following ISO-8601 rather than time.Weekday.
type WeeklyHours [7][]TimeRange

// AvailabilityPolicy is the per-host scheduling policy. It is validated once
// at the write boundary and treated as trusted everywhere else.
type AvailabilityPolicy struct {
	Hours               WeeklyHours `json:"hours"`
	BufferMinutes       int         `json:"buffer_minutes"`
	MinNoticeMinutes    int         `json:"min_notice_minutes"`
	MaxDaysAhead        int         `json:"max_days_ahead"`
	SlotDurationMinutes int         `json:"slot_duration_minutes"`
}

// Value serialises the policy to JSON for a jsonb column.
func (p AvailabilityPolicy) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan loads the policy from a jsonb column.
func (p *AvailabilityPolicy) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*p = AvailabilityPolicy{}
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported availability policy source %T", src)
	}
}
