package service

import (
	"github.com/okunev/bookshelf-bot/internal/events"
	"github.com/okunev/bookshelf-bot/internal/users"
	"github.com/okunev/bookshelf-bot/pkg/icron"
)

// Notifier delivers a reminder text to one user. The default implementation
// only logs; a chat front-end plugs its own delivery in here.
type Notifier func(userID int64, message string)

// Reminder pairs an event with the users who should hear about it today.
type Reminder struct {
	EventID    string       `json:"event_id"`
	Event      events.Event `json:"event"`
	Message    string       `json:"message"`
	Recipients []int64      `json:"recipients"`
}

// AdminStats is the aggregate snapshot shown to administrators.
type AdminStats struct {
	Users     users.Stats                   `json:"users"`
	Books     int                           `json:"books"`
	Jobs      map[string]int                `json:"jobs"`
	Schedules map[string]*icron.TriggerInfo `json:"schedules,omitempty"`
}
