package services

import (
	"sync"

	"hygiene-log-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// EventType identifies a record change delivered over the live feed.
type EventType string

const (
	EventRecordAdded   EventType = "record_added"
	EventRecordUpdated EventType = "record_updated"
	EventRecordDeleted EventType = "record_deleted"
)

// RecordEvent is one change in a scope's record set. Record is set for adds
// and updates; deletes carry only RecordID.
type RecordEvent struct {
	Type     EventType             `json:"type"`
	ScopeID  string                `json:"scope_id"`
	RecordID string                `json:"record_id"`
	Record   *models.HygieneRecord `json:"record,omitempty"`
}

// subscriptionBuffer bounds how many undelivered events a subscriber may
// hold before further events to it are dropped.
const subscriptionBuffer = 64

// Subscription is one live feed over a scope's record changes. Events
// arrive on C until Cancel is called.
type Subscription struct {
	C       chan RecordEvent
	scopeID string
	hub     *Hub
	once    sync.Once
}

// Cancel tears the subscription down and closes C. Safe to call twice.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
	})
}

// Hub fans record change events out to the live subscriptions of each
// scope. It is the change-notification side of the remote backing store.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe establishes a live feed for a scope.
func (h *Hub) Subscribe(scopeID string) *Subscription {
	sub := &Subscription{
		C:       make(chan RecordEvent, subscriptionBuffer),
		scopeID: scopeID,
		hub:     h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[scopeID] == nil {
		h.subs[scopeID] = make(map[*Subscription]struct{})
	}
	h.subs[scopeID][sub] = struct{}{}

	log.Debug().Str("scope_id", scopeID).Msg("Live feed subscription established")
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.subs[sub.scopeID]; ok {
		if _, ok := set[sub]; ok {
			delete(set, sub)
			close(sub.C)
		}
		if len(set) == 0 {
			delete(h.subs, sub.scopeID)
		}
	}
}

// Publish delivers an event to every subscription of its scope. A
// subscriber that has fallen subscriptionBuffer events behind misses the
// event rather than blocking the writer.
func (h *Hub) Publish(ev RecordEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[ev.ScopeID] {
		select {
		case sub.C <- ev:
		default:
			log.Warn().
				Str("scope_id", ev.ScopeID).
				Str("type", string(ev.Type)).
				Msg("Slow live feed subscriber, dropping event")
		}
	}
}

// SubscriberCount reports how many live subscriptions a scope has.
func (h *Hub) SubscriberCount(scopeID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[scopeID])
}
