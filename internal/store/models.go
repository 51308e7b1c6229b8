package store

import "time"

const (
	// DateLayout is the on-disk format of Event.Date.
	DateLayout = "2006-01-02"
	// DefaultTime is stored when an event is created without a time of day.
	DefaultTime = "12:00"
	// DefaultRetentionDays is how long past events are kept.
	DefaultRetentionDays = 14
)

// Event is one availability row: a user marked a day.
type Event struct {
	ID        int64
	Date      string
	UserName  string
	UserColor string
	Time      string
	CreatedAt time.Time
}

// RetentionCutoff returns the oldest date that survives a sweep run at ref.
// Rows dated strictly before it are expired.
func RetentionCutoff(ref time.Time, retentionDays int) string {
	return ref.AddDate(0, 0, -retentionDays).Format(DateLayout)
}
