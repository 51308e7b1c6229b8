package client

import (
	"context"
	"strings"

	"github.com/jw6ventures/dispo/internal/events"
)

// Action is what a click on a day does for the selected user.
type Action int

const (
	ActionNone Action = iota
	ActionRemove
	ActionAdd
)

func (a Action) String() string {
	switch a {
	case ActionRemove:
		return "remove"
	case ActionAdd:
		return "add"
	default:
		return "none"
	}
}

// Decide maps a click on date to an action. Without a selected user nothing
// happens; an existing entry for the user on that day is removed, otherwise
// a new one is added.
func Decide(userName, date string, list []events.Event) Action {
	if strings.TrimSpace(userName) == "" || strings.TrimSpace(date) == "" {
		return ActionNone
	}
	for _, e := range list {
		if e.Date == date && e.User.Name == userName {
			return ActionRemove
		}
	}
	return ActionAdd
}

// Toggle applies Decide to the current list. at is only used when adding.
func (c *Cache) Toggle(ctx context.Context, user events.User, date, at string) (Action, error) {
	action := Decide(user.Name, date, c.Events())
	switch action {
	case ActionRemove:
		return action, c.Remove(ctx, date, user.Name)
	case ActionAdd:
		return action, c.Add(ctx, events.Event{Date: date, User: user, Time: at})
	default:
		return action, ErrLocalPrecondition
	}
}
