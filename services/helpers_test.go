package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"battle-engine/models"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2026, 9, 6, 17, 0, 0, 0, time.UTC)

// fakeFeed returns fixed points per player, def for anyone else.
type fakeFeed struct {
	mu     sync.Mutex
	points map[string]float64
	def    float64
	fail   bool
}

func newFakeFeed(def float64) *fakeFeed {
	return &fakeFeed{points: make(map[string]float64), def: def}
}

func (f *fakeFeed) GetPlayerPoints(_ context.Context, playerID string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return 0, errors.New("feed unavailable")
	}
	if v, ok := f.points[playerID]; ok {
		return v, nil
	}
	return f.def, nil
}

func (f *fakeFeed) set(playerID string, pts float64) {
	f.mu.Lock()
	f.points[playerID] = pts
	f.mu.Unlock()
}

func (f *fakeFeed) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

type testEngine struct {
	clock   *clockwork.FakeClock
	store   *MemoryStore
	bus     *EventBus
	feed    *fakeFeed
	ladder  *LadderService
	sink    *MemoryRewardSink
	prizes  *PrizeService
	battles *BattleService
}

func newTestEngine(t *testing.T, opts ...BattleOption) *testEngine {
	t.Helper()
	e := &testEngine{
		clock: clockwork.NewFakeClockAt(testStart),
		store: NewMemoryStore(),
		bus:   NewEventBus(512),
		feed:  newFakeFeed(10),
		sink:  NewMemoryRewardSink(),
	}
	e.ladder = NewLadderService(e.store, e.bus, e.clock)
	e.prizes = NewPrizeService(e.sink)
	e.battles = NewBattleService(e.store, e.ladder, e.prizes, e.feed, e.bus, append([]BattleOption{WithClock(e.clock)}, opts...)...)
	return e
}

// duel creates a battle of type typ for a and b. Filling the second seat starts it.
func (e *testEngine) duel(t *testing.T, typ models.BattleType, settings *models.BattleSettings, a, b string) *models.Battle {
	t.Helper()
	ctx := context.Background()
	if settings != nil {
		settings.Capacity = 2
	}
	created, err := e.battles.CreateBattle(ctx, CreateBattleRequest{CreatorID: a, Type: typ, Settings: settings, IsPublic: true})
	require.NoError(t, err)
	require.NoError(t, e.battles.JoinBattle(ctx, created.ID, b))
	got, err := e.battles.GetBattle(ctx, created.ID)
	require.NoError(t, err)
	return got
}

// nextRound moves the clock past the current round end and ticks the battle.
func (e *testEngine) nextRound(t *testing.T, battleID string) *models.Battle {
	t.Helper()
	ctx := context.Background()
	b, err := e.battles.GetBattle(ctx, battleID)
	require.NoError(t, err)
	if r := b.ActiveRound(); r != nil {
		if d := r.EndDate.Sub(e.clock.Now()) + time.Minute; d > 0 {
			e.clock.Advance(d)
		}
	}
	require.NoError(t, e.battles.UpdateBattleScores(ctx, battleID))
	b, err = e.battles.GetBattle(ctx, battleID)
	require.NoError(t, err)
	return b
}

// drain returns every event buffered on ch.
func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

// flakyBattleStore fails exactly one SaveBattle call, the failAt-th.
type flakyBattleStore struct {
	*MemoryStore
	mu     sync.Mutex
	saves  int
	failAt int
}

func (f *flakyBattleStore) SaveBattle(ctx context.Context, b *models.Battle) error {
	f.mu.Lock()
	f.saves++
	fail := f.saves == f.failAt
	f.mu.Unlock()
	if fail {
		return errors.New("db hiccup")
	}
	return f.MemoryStore.SaveBattle(ctx, b)
}
