// Package events keeps book-club meetings: when the club gathers and
// which book is on the table.
package events

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/okunev/bookshelf-bot/internal/storage"
)

var ErrNotFound = errors.New("event not found")

// Event is one scheduled club meeting.
type Event struct {
	Title        string    `json:"title"`
	Date         string    `json:"date"` // YYYY-MM-DD
	Time         string    `json:"time"` // HH:MM
	Description  string    `json:"description,omitempty"`
	Book         string    `json:"book,omitempty"`
	Participants []string  `json:"participants,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// StartsAt combines the date and time fields in the local zone.
func (e Event) StartsAt() (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", e.Date+" "+e.Time, time.Local)
}

type Store struct {
	backing *storage.Store[map[string]Event]
}

func NewStore(path string, ttl time.Duration) *Store {
	return &Store{
		backing: storage.NewStore[map[string]Event](path, ttl, storage.WithClone(cloneEvents)),
	}
}

// cloneEvents deep-copies the event mapping, detaching each participant
// list from the cached copy.
func cloneEvents(events map[string]Event) map[string]Event {
	if events == nil {
		return nil
	}
	out := make(map[string]Event, len(events))
	for id, event := range events {
		event.Participants = slices.Clone(event.Participants)
		out[id] = event
	}
	return out
}

func (s *Store) all() (map[string]Event, error) {
	events, err := s.backing.Read()
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = make(map[string]Event)
	}
	return events, nil
}

// All returns every event keyed by ID.
func (s *Store) All() (map[string]Event, error) {
	return s.all()
}

// Get returns one event, or ErrNotFound.
func (s *Store) Get(id string) (Event, error) {
	events, err := s.all()
	if err != nil {
		return Event{}, err
	}
	event, ok := events[id]
	if !ok {
		return Event{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return event, nil
}

// Create validates and stores a new event, returning its generated ID.
func (s *Store) Create(event Event) (string, error) {
	if event.Title == "" {
		return "", errors.New("event title is empty")
	}
	if _, err := event.StartsAt(); err != nil {
		return "", fmt.Errorf("invalid event date/time: %w", err)
	}

	events, err := s.all()
	if err != nil {
		return "", err
	}

	id := nextID(events)
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	events[id] = event
	if err := s.backing.Write(events); err != nil {
		return "", err
	}
	return id, nil
}

// nextID picks one past the highest issued number, so deleting an event
// never recycles an ID.
func nextID(events map[string]Event) string {
	max := 0
	for id := range events {
		var n int
		if _, err := fmt.Sscanf(id, "event_%03d", &n); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("event_%03d", max+1)
}

// Update replaces an existing event.
func (s *Store) Update(id string, event Event) error {
	events, err := s.all()
	if err != nil {
		return err
	}
	if _, ok := events[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	events[id] = event
	return s.backing.Write(events)
}

// Delete removes an event.
func (s *Store) Delete(id string) error {
	events, err := s.all()
	if err != nil {
		return err
	}
	if _, ok := events[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(events, id)
	return s.backing.Write(events)
}

// Join adds a participant; joining twice is a no-op.
func (s *Store) Join(id, participant string) error {
	events, err := s.all()
	if err != nil {
		return err
	}
	event, ok := events[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	for _, p := range event.Participants {
		if p == participant {
			return nil
		}
	}
	event.Participants = append(event.Participants, participant)
	events[id] = event
	return s.backing.Write(events)
}

// Leave removes a participant; leaving an event never joined is a no-op.
func (s *Store) Leave(id, participant string) error {
	events, err := s.all()
	if err != nil {
		return err
	}
	event, ok := events[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	kept := event.Participants[:0]
	for _, p := range event.Participants {
		if p != participant {
			kept = append(kept, p)
		}
	}
	event.Participants = kept
	events[id] = event
	return s.backing.Write(events)
}

// Upcoming returns IDs of events starting on or after now, soonest first.
// Events with unparseable schedules are skipped.
func (s *Store) Upcoming(now time.Time) ([]string, error) {
	events, err := s.all()
	if err != nil {
		return nil, err
	}

	type scheduled struct {
		id string
		at time.Time
	}
	var upcoming []scheduled
	for id, event := range events {
		at, err := event.StartsAt()
		if err != nil || at.Before(now) {
			continue
		}
		upcoming = append(upcoming, scheduled{id: id, at: at})
	}
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].at.Before(upcoming[j].at) })

	ids := make([]string, 0, len(upcoming))
	for _, e := range upcoming {
		ids = append(ids, e.id)
	}
	return ids, nil
}

// OnDay returns IDs of events scheduled for the given calendar day.
func (s *Store) OnDay(day time.Time) ([]string, error) {
	events, err := s.all()
	if err != nil {
		return nil, err
	}
	want := day.Format("2006-01-02")
	var ids []string
	for id, event := range events {
		if event.Date == want {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
