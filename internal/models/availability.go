package models

// AvailabilityRule is one recurring weekly window during which a therapist
// accepts bookings. Start and end are minutes from midnight in the
// practice's deployment timezone; day_of_week uses 0 = Sunday.
type AvailabilityRule struct {
	ID          int64 `json:"id"`
	TherapistID int64 `json:"therapist_id"`
	DayOfWeek   int   `json:"day_of_week"`
	StartMinute int   `json:"start_minute"`
	EndMinute   int   `json:"end_minute"`
}

// Slot is a fixed-duration candidate window derived from availability
// rules for one calendar date. Times are wall-clock HH:MM strings.
type Slot struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Available bool   `json:"available"`
}
