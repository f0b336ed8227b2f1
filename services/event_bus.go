package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventBattleCreated       EventType = "battleCreated"
	EventBattleStarted       EventType = "battleStarted"
	EventBattleStatusChanged EventType = "battleStatusChanged"
	EventPowerUpUsed         EventType = "powerUpUsed"
	EventRoundCompleted      EventType = "roundCompleted"
	EventBattleCompleted     EventType = "battleCompleted"
	EventLadderUpdated       EventType = "ladderUpdated"
	EventTournamentCreated   EventType = "tournamentCreated"
	EventTournamentCompleted EventType = "tournamentCompleted"
	EventMatchmakingPaired   EventType = "matchmakingPaired"
)

// Event is a domain notification. Data holds event-specific fields.
type Event struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	BattleID     string         `json:"battle_id,omitempty"`
	TournamentID string         `json:"tournament_id,omitempty"`
	UserIDs      []string       `json:"user_ids,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	At           time.Time      `json:"at"`
}

// Involves reports whether userID is named by the event.
func (e Event) Involves(userID string) bool {
	for _, id := range e.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

const DefaultEventBuffer = 64

// EventBus fans events out to subscribers over buffered channels. A subscriber
// whose buffer is full misses the event; Publish never blocks.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	next   int
	buffer int
}

func NewEventBus(buffer int) *EventBus {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &EventBus{subs: make(map[int]chan Event), buffer: buffer}
}

// Subscribe returns a receive channel and a cancel func that closes it.
func (b *EventBus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *EventBus) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			log.Printf("[EventBus] subscriber %d is full, dropped %s", id, e.Type)
		}
	}
}

// PublishAll publishes events in order. Nil-safe so services can run without a bus.
func (b *EventBus) PublishAll(events []Event) {
	if b == nil {
		return
	}
	for _, e := range events {
		b.Publish(e)
	}
}

// LogEvents logs every event until ctx is done.
func (b *EventBus) LogEvents(ctx context.Context) {
	ch, cancel := b.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			log.Printf("[Event] %s battle=%s tournament=%s users=%v", e.Type, e.BattleID, e.TournamentID, e.UserIDs)
		}
	}
}
