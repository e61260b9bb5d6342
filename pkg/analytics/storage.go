package analytics

import (
	"sync"
	"time"

	"github.com/stockcall/adsim/pkg/ads"
)

// StorageBackend persists analytics events
type StorageBackend interface {
	Store(event ads.Event) error
	Query(filter QueryFilter) ([]ads.Event, error)
}

// QueryFilter for retrieving events. Zero fields match everything.
type QueryFilter struct {
	StartTime  time.Time
	EndTime    time.Time
	EventTypes []ads.EventType
	UnitIDs    []string
	Limit      int
}

// InMemoryStorage keeps the most recent events in memory
type InMemoryStorage struct {
	mu     sync.RWMutex
	events []ads.Event
	max    int
}

// NewInMemoryStorage creates storage retaining at most max events
func NewInMemoryStorage(max int) *InMemoryStorage {
	return &InMemoryStorage{
		events: make([]ads.Event, 0),
		max:    max,
	}
}

// Store saves an event, evicting the oldest one when full
func (s *InMemoryStorage) Store(event ads.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.max > 0 && len(s.events) >= s.max {
		copy(s.events, s.events[1:])
		s.events = s.events[:len(s.events)-1]
	}
	s.events = append(s.events, event)
	return nil
}

// Query retrieves events matching filter, oldest first
func (s *InMemoryStorage) Query(filter QueryFilter) ([]ads.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]ads.Event, 0)
	for i := range s.events {
		if !matchesFilter(&s.events[i], filter) {
			continue
		}
		results = append(results, s.events[i])
		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}
	return results, nil
}

func matchesFilter(event *ads.Event, filter QueryFilter) bool {
	if !filter.StartTime.IsZero() && event.Time.Before(filter.StartTime) {
		return false
	}
	if !filter.EndTime.IsZero() && !event.Time.Before(filter.EndTime) {
		return false
	}

	if len(filter.EventTypes) > 0 && !contains(filter.EventTypes, event.Type) {
		return false
	}
	if len(filter.UnitIDs) > 0 && !contains(filter.UnitIDs, event.UnitID) {
		return false
	}
	return true
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
