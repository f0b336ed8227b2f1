package services

import (
	"context"
	"log"
	"sync"
	"time"

	"battle-engine/models"

	"github.com/jonboulle/clockwork"
)

const DefaultRatingTolerance = 200

type QueueRequest struct {
	UserID   string                 `json:"user_id"`
	Type     models.BattleType      `json:"type"`
	Format   models.BattleFormat    `json:"format"`
	Settings *models.BattleSettings `json:"settings,omitempty"`
}

type QueueEntry struct {
	UserID     string                 `json:"user_id"`
	Type       models.BattleType      `json:"type"`
	Format     models.BattleFormat    `json:"format"`
	Settings   *models.BattleSettings `json:"settings,omitempty"`
	EnqueuedAt time.Time              `json:"enqueued_at"`
}

// Matchmaker pairs queued players of similar rating into new battles. All
// queue mutation, including battle creation for a pair, happens under mu.
type Matchmaker struct {
	mu        sync.Mutex
	queue     []QueueEntry
	battles   *BattleService
	ladder    *LadderService
	bus       *EventBus
	tolerance int
	clock     clockwork.Clock
}

func NewMatchmaker(battles *BattleService, ladder *LadderService, bus *EventBus, tolerance int, clock clockwork.Clock) *Matchmaker {
	if tolerance <= 0 {
		tolerance = DefaultRatingTolerance
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Matchmaker{battles: battles, ladder: ladder, bus: bus, tolerance: tolerance, clock: clock}
}

func queueable(t models.BattleType) bool {
	return t == models.BattleTypeQuick || t == models.BattleTypeLadder
}

// Enqueue adds a user to the queue. A user may hold one entry at a time.
func (m *Matchmaker) Enqueue(_ context.Context, req QueueRequest) (*QueueEntry, error) {
	if req.UserID == "" {
		return nil, newError(CodeInvalidArgument, "user id is required")
	}
	if !queueable(req.Type) {
		return nil, newError(CodeInvalidArgument, "only quick and ladder battles can be queued, got %q", req.Type)
	}
	if req.Format == "" {
		req.Format = models.BattleFormatClassic
	}
	if !req.Format.Valid() {
		return nil, newError(CodeInvalidArgument, "unknown battle format %q", req.Format)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.queue {
		if e.UserID == req.UserID {
			return nil, newError(CodeInvalidState, "%s is already queued", req.UserID)
		}
	}
	entry := QueueEntry{
		UserID:     req.UserID,
		Type:       req.Type,
		Format:     req.Format,
		Settings:   req.Settings,
		EnqueuedAt: m.clock.Now(),
	}
	m.queue = append(m.queue, entry)
	return &entry, nil
}

func (m *Matchmaker) Dequeue(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.queue {
		if e.UserID == userID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return nil
		}
	}
	return notFound("queue entry", userID)
}

// Queue returns a snapshot in arrival order.
func (m *Matchmaker) Queue() []QueueEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]QueueEntry(nil), m.queue...)
}

type rated struct {
	rating int
	ok     bool
}

func (m *Matchmaker) compatible(a, b QueueEntry, ra, rb rated) bool {
	if a.Type != b.Type || a.Format != b.Format {
		return false
	}
	if !ra.ok || !rb.ok {
		return true
	}
	diff := ra.rating - rb.rating
	if diff < 0 {
		diff = -diff
	}
	return diff <= m.tolerance
}

// Tick pairs compatible entries in arrival order and returns the battles it created.
// Running it again with nothing compatible is a no-op.
func (m *Matchmaker) Tick(ctx context.Context) []*models.Battle {
	m.mu.Lock()
	defer m.mu.Unlock()

	ratings := make([]rated, len(m.queue))
	for i, e := range m.queue {
		r, ok, err := m.ladder.Rating(ctx, e.UserID)
		if err != nil {
			log.Printf("[Matchmaker] rating for %s: %v", e.UserID, err)
		}
		ratings[i] = rated{rating: r, ok: ok}
	}

	matched := make([]bool, len(m.queue))
	var created []*models.Battle
	for i := range m.queue {
		if matched[i] {
			continue
		}
		for j := i + 1; j < len(m.queue); j++ {
			if matched[j] || !m.compatible(m.queue[i], m.queue[j], ratings[i], ratings[j]) {
				continue
			}
			b, err := m.pair(ctx, m.queue[i], m.queue[j])
			if err != nil {
				log.Printf("[Matchmaker] pairing %s with %s failed: %v", m.queue[i].UserID, m.queue[j].UserID, err)
				continue
			}
			matched[i], matched[j] = true, true
			created = append(created, b)
			break
		}
	}

	remaining := m.queue[:0]
	for i, e := range m.queue {
		if !matched[i] {
			remaining = append(remaining, e)
		}
	}
	m.queue = remaining
	if len(created) > 0 {
		log.Printf("[Matchmaker] paired %d battles, %d still queued", len(created), len(m.queue))
	}
	return created
}

// pair creates a two-seat battle from first's preferences and joins second, which starts it.
// The battle is private and invites only second, so nobody else can take the seat.
func (m *Matchmaker) pair(ctx context.Context, first, second QueueEntry) (*models.Battle, error) {
	var settings models.BattleSettings
	if first.Settings != nil {
		settings = *first.Settings
	}
	settings.Capacity = models.MinCapacity

	b, err := m.battles.CreateBattle(ctx, CreateBattleRequest{
		CreatorID: first.UserID,
		Type:      first.Type,
		Format:    first.Format,
		Settings:  &settings,
		Invitees:  []string{second.UserID},
	})
	if err != nil {
		return nil, err
	}
	if err := m.battles.JoinBattle(ctx, b.ID, second.UserID); err != nil {
		derr := m.battles.discard(ctx, b.ID, func(b *models.Battle) bool {
			return b.Status == models.BattleStatusWaiting && len(b.Participants) == 1 && b.Participants[0].UserID == first.UserID
		})
		if derr != nil {
			log.Printf("[Matchmaker] cleanup of %s failed: %v", b.ID, derr)
		}
		return nil, err
	}
	m.bus.PublishAll([]Event{{
		Type:     EventMatchmakingPaired,
		BattleID: b.ID,
		UserIDs:  []string{first.UserID, second.UserID},
		Data:     map[string]any{"type": first.Type, "format": first.Format},
		At:       m.clock.Now(),
	}})
	return m.battles.GetBattle(ctx, b.ID)
}
