// Package events is the server boundary for availability events: it validates
// submitted event lists and keeps the store in sync with them.
package events

import "github.com/jw6ventures/dispo/internal/store"

// Event is the wire form of an availability marker.
type Event struct {
	Date string `json:"date" validate:"notblank,datetime=2006-01-02"`
	User User   `json:"user"`
	Time string `json:"time,omitempty" validate:"omitempty,datetime=15:04"`
}

// User identifies who owns an event. Color is a display token only.
type User struct {
	Name  string `json:"name" validate:"notblank,max=50"`
	Color string `json:"color" validate:"notblank,max=20"`
}

// Summary is returned after a successful replacement.
type Summary struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
	// Expired counts stored rows removed by the retention sweep before the write.
	Expired int `json:"expired"`
}

func toRow(e Event) store.Event {
	return store.Event{
		Date:      e.Date,
		UserName:  e.User.Name,
		UserColor: e.User.Color,
		Time:      e.Time,
	}
}

func fromRow(row store.Event) Event {
	t := row.Time
	if t == "" {
		t = store.DefaultTime
	}
	return Event{
		Date: row.Date,
		User: User{Name: row.UserName, Color: row.UserColor},
		Time: t,
	}
}
