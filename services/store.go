package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"battle-engine/models"
)

// BattleFilter narrows ListBattles. Zero values match everything.
type BattleFilter struct {
	UserID   string
	Type     models.BattleType
	Statuses []models.BattleStatus
	Limit    int
	Offset   int
}

func (f BattleFilter) matches(b *models.Battle) bool {
	if f.UserID != "" && !b.HasUser(f.UserID) {
		return false
	}
	if f.Type != "" && b.Type != f.Type {
		return false
	}
	return len(f.Statuses) == 0 || containsStatus(f.Statuses, b.Status)
}

// BattleStore persists battle aggregates. Get returns ErrNotFound for unknown ids.
// ListBattles orders newest first.
type BattleStore interface {
	GetBattle(ctx context.Context, id string) (*models.Battle, error)
	SaveBattle(ctx context.Context, b *models.Battle) error
	DeleteBattle(ctx context.Context, id string) error
	ListBattles(ctx context.Context, filter BattleFilter) ([]*models.Battle, error)
}

// LadderStore persists ratings. GetRank returns nil, nil when the user has no rank yet.
type LadderStore interface {
	GetRank(ctx context.Context, userID string) (*models.LadderRank, error)
	SaveRank(ctx context.Context, r *models.LadderRank) error
	TopRanks(ctx context.Context, limit int) ([]models.LadderRank, error)
	AppendRatingChange(ctx context.Context, c models.RatingChange) error
	RatingHistory(ctx context.Context, userID string, limit int) ([]models.RatingChange, error)
}

type TournamentStore interface {
	GetTournament(ctx context.Context, id string) (*models.Tournament, error)
	SaveTournament(ctx context.Context, t *models.Tournament) error
	ListTournaments(ctx context.Context, statuses ...models.TournamentStatus) ([]*models.Tournament, error)
}

// MemoryStore keeps every aggregate in maps. Values are deep-copied on the way
// in and out so callers never share state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	battles     map[string]*models.Battle
	ranks       map[string]models.LadderRank
	history     map[string][]models.RatingChange
	tournaments map[string]*models.Tournament
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		battles:     make(map[string]*models.Battle),
		ranks:       make(map[string]models.LadderRank),
		history:     make(map[string][]models.RatingChange),
		tournaments: make(map[string]*models.Tournament),
	}
}

func clone[T any](v *T) (*T, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MemoryStore) GetBattle(_ context.Context, id string) (*models.Battle, error) {
	s.mu.RLock()
	b, ok := s.battles[id]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound("battle", id)
	}
	return clone(b)
}

func (s *MemoryStore) SaveBattle(_ context.Context, b *models.Battle) error {
	c, err := clone(b)
	if err != nil {
		return fmt.Errorf("copy battle %s: %w", b.ID, err)
	}
	s.mu.Lock()
	s.battles[b.ID] = c
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteBattle(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.battles, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListBattles(_ context.Context, filter BattleFilter) ([]*models.Battle, error) {
	s.mu.RLock()
	matched := make([]*models.Battle, 0)
	for _, b := range s.battles {
		if filter.matches(b) {
			matched = append(matched, b)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	matched = paginate(matched, filter.Offset, filter.Limit)

	out := make([]*models.Battle, 0, len(matched))
	for _, b := range matched {
		c, err := clone(b)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (s *MemoryStore) GetRank(_ context.Context, userID string) (*models.LadderRank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.ranks[userID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *MemoryStore) SaveRank(_ context.Context, r *models.LadderRank) error {
	s.mu.Lock()
	s.ranks[r.UserID] = *r
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) TopRanks(_ context.Context, limit int) ([]models.LadderRank, error) {
	s.mu.RLock()
	out := make([]models.LadderRank, 0, len(s.ranks))
	for _, r := range s.ranks {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating == out[j].Rating {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Rating > out[j].Rating
	})
	return paginate(out, 0, limit), nil
}

func (s *MemoryStore) AppendRatingChange(_ context.Context, c models.RatingChange) error {
	s.mu.Lock()
	s.history[c.UserID] = append(s.history[c.UserID], c)
	s.mu.Unlock()
	return nil
}

// RatingHistory returns the most recent changes first.
func (s *MemoryStore) RatingHistory(_ context.Context, userID string, limit int) ([]models.RatingChange, error) {
	s.mu.RLock()
	rows := s.history[userID]
	out := make([]models.RatingChange, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, rows[i])
	}
	s.mu.RUnlock()
	return paginate(out, 0, limit), nil
}

func (s *MemoryStore) GetTournament(_ context.Context, id string) (*models.Tournament, error) {
	s.mu.RLock()
	t, ok := s.tournaments[id]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound("tournament", id)
	}
	return clone(t)
}

func (s *MemoryStore) SaveTournament(_ context.Context, t *models.Tournament) error {
	c, err := clone(t)
	if err != nil {
		return fmt.Errorf("copy tournament %s: %w", t.ID, err)
	}
	s.mu.Lock()
	s.tournaments[t.ID] = c
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListTournaments(_ context.Context, statuses ...models.TournamentStatus) ([]*models.Tournament, error) {
	s.mu.RLock()
	matched := make([]*models.Tournament, 0)
	for _, t := range s.tournaments {
		if len(statuses) == 0 || containsStatus(statuses, t.Status) {
			matched = append(matched, t)
		}
	}
	s.mu.RUnlock()
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })

	out := make([]*models.Tournament, 0, len(matched))
	for _, t := range matched {
		c, err := clone(t)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func containsStatus[T comparable](list []T, v T) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
