package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"battle-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBattleDefaults(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	b, err := e.battles.CreateBattle(ctx, CreateBattleRequest{CreatorID: "alice", Type: models.BattleTypeCustom})
	require.NoError(t, err)
	assert.Equal(t, models.BattleStatusWaiting, b.Status)
	assert.Equal(t, models.BattleFormatClassic, b.Format)
	assert.Equal(t, models.DefaultCustomCapacity, b.Settings.Capacity)
	assert.Equal(t, models.DefaultCustomRounds, b.TotalRounds)
	assert.Equal(t, float64(models.DefaultSalaryCap), b.Settings.SalaryCap)
	assert.Equal(t, DefaultRoundDuration, b.Settings.RoundDuration)
	require.Len(t, b.Participants, 1)
	assert.Equal(t, "alice", b.Participants[0].UserID)
}

func TestCreateBattleValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.battles.CreateBattle(ctx, CreateBattleRequest{CreatorID: "alice", Type: "arena"})
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))

	_, err = e.battles.CreateBattle(ctx, CreateBattleRequest{
		CreatorID: "alice", Type: models.BattleTypeQuick, Settings: &models.BattleSettings{Capacity: 3},
	})
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	_, err = e.battles.CreateBattle(ctx, CreateBattleRequest{
		CreatorID: "alice", Type: models.BattleTypeCustom, Settings: &models.BattleSettings{SalaryCap: 20000},
	})
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	_, err = e.battles.CreateBattle(ctx, CreateBattleRequest{
		CreatorID: "alice", Type: models.BattleTypeCustom,
		Settings: &models.BattleSettings{AllowedPowerUps: []string{"time_warp"}},
	})
	assert.ErrorIs(t, err, ErrUnknownPowerUp)
}

func TestQuickBattleThirdJoinRejected(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	b := e.duel(t, models.BattleTypeQuick, nil, "alice", "bob")
	assert.Equal(t, models.BattleStatusActive, b.Status)
	assert.Equal(t, 1, b.CurrentRound)
	for _, p := range b.Participants {
		require.NotNil(t, p.Roster)
		assert.Len(t, p.Roster.Players, 9)
	}

	err := e.battles.JoinBattle(ctx, b.ID, "carol")
	assert.ErrorIs(t, err, ErrAlreadyStarted)
	assert.Equal(t, CodeInvalidState, CodeOf(err))
}

func TestJoinBattleErrors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	assert.ErrorIs(t, e.battles.JoinBattle(ctx, "missing", "bob"), ErrNotFound)

	b, err := e.battles.CreateBattle(ctx, CreateBattleRequest{
		CreatorID: "alice", Type: models.BattleTypeCustom, Invitees: []string{"bob"},
	})
	require.NoError(t, err)
	assert.ErrorIs(t, e.battles.JoinBattle(ctx, b.ID, "alice"), ErrInvalidState)
	assert.ErrorIs(t, e.battles.JoinBattle(ctx, b.ID, "mallory"), ErrNotParticipant)
	require.NoError(t, e.battles.JoinBattle(ctx, b.ID, "bob"))

	got, err := e.battles.GetBattle(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BattleStatusWaiting, got.Status)
	assert.Len(t, got.Participants, 2)
}

func TestStartBattle(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	b, err := e.battles.CreateBattle(ctx, CreateBattleRequest{CreatorID: "alice", Type: models.BattleTypeCustom, IsPublic: true})
	require.NoError(t, err)
	assert.ErrorIs(t, e.battles.StartBattle(ctx, b.ID), ErrInvalidState)

	require.NoError(t, e.battles.JoinBattle(ctx, b.ID, "bob"))
	require.NoError(t, e.battles.JoinBattle(ctx, b.ID, "carol"))
	require.NoError(t, e.battles.StartBattle(ctx, b.ID))

	got, err := e.battles.GetBattle(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BattleStatusActive, got.Status)
	require.NotNil(t, got.StartedAt)

	// three participants: one sits out each round
	assert.Len(t, got.Rounds[0].Matchups, 1)

	// starting again is a no-op
	require.NoError(t, e.battles.StartBattle(ctx, b.ID))
	again, _ := e.battles.GetBattle(ctx, b.ID)
	assert.Equal(t, got.StartedAt, again.StartedAt)
}

func TestStatusNeverMovesBackwards(t *testing.T) {
	statuses := []models.BattleStatus{
		models.BattleStatusWaiting, models.BattleStatusDrafting, models.BattleStatusActive, models.BattleStatusCompleted,
	}
	for i, from := range statuses {
		for j, to := range statuses {
			assert.Equal(t, j > i, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	e := newTestEngine(t)
	b := e.duel(t, models.BattleTypeQuick, nil, "alice", "bob")
	b = e.nextRound(t, b.ID)
	require.Equal(t, models.BattleStatusCompleted, b.Status)

	var m mutation
	err := e.battles.transition(b, models.BattleStatusActive, &m)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, models.BattleStatusCompleted, b.Status)
}

func TestLadderBattleCompletionUpdatesRatings(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	events, cancel := e.bus.Subscribe()
	defer cancel()

	b := e.duel(t, models.BattleTypeLadder, nil, "alice", "bob")
	// variant rotation gives alice qb-02 and bob qb-01
	_, ok := b.Participant("alice").Roster.Player("qb-02")
	require.True(t, ok)
	e.feed.set("qb-02", 40)

	b = e.nextRound(t, b.ID)
	require.Equal(t, models.BattleStatusCompleted, b.Status)
	require.NotNil(t, b.CompletedAt)
	assert.Equal(t, "alice", b.WinnerID)

	alice, bob := b.Participant("alice"), b.Participant("bob")
	assert.Greater(t, alice.Score, bob.Score)
	assert.Equal(t, 1, alice.Rank)
	assert.Equal(t, 2, bob.Rank)
	assert.Equal(t, 1, alice.Stats.RoundsWon)

	delta := RatingDelta(1200, 1200, alice.Score, bob.Score)
	ra, err := e.ladder.GetLadderRank(ctx, "alice")
	require.NoError(t, err)
	rb, err := e.ladder.GetLadderRank(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1200+delta, ra.Rating)
	assert.Equal(t, 1200-delta, rb.Rating)
	assert.Equal(t, b.ID, ra.LastBattleID)

	types := eventTypes(drain(events))
	assert.Contains(t, types, EventBattleCreated)
	assert.Contains(t, types, EventBattleStarted)
	assert.Contains(t, types, EventRoundCompleted)
	assert.Contains(t, types, EventLadderUpdated)
	assert.Contains(t, types, EventBattleCompleted)
}

func TestQuickBattleDoesNotMoveRatings(t *testing.T) {
	e := newTestEngine(t)
	b := e.duel(t, models.BattleTypeQuick, nil, "alice", "bob")
	e.feed.set("qb-02", 40)
	b = e.nextRound(t, b.ID)
	require.Equal(t, models.BattleStatusCompleted, b.Status)

	r, err := e.ladder.GetLadderRank(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestRatedTypesOption(t *testing.T) {
	e := newTestEngine(t, WithRatedTypes(models.BattleTypeQuick))
	b := e.duel(t, models.BattleTypeQuick, nil, "alice", "bob")
	e.feed.set("qb-02", 40)
	e.nextRound(t, b.ID)

	r, err := e.ladder.GetLadderRank(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Greater(t, r.Rating, models.InitialRating)
}

func TestFeedFailureDefersAdvancement(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	b := e.duel(t, models.BattleTypeLadder, nil, "alice", "bob")
	require.NoError(t, e.battles.UpdateBattleScores(ctx, b.ID))
	b, _ = e.battles.GetBattle(ctx, b.ID)
	before := b.Participant("alice").Score
	assert.Greater(t, before, 0.0)

	e.feed.setFail(true)
	b = e.nextRound(t, b.ID)
	assert.Equal(t, models.BattleStatusActive, b.Status)
	assert.False(t, b.Rounds[0].Completed)
	assert.Equal(t, before, b.Participant("alice").Score)

	e.feed.setFail(false)
	require.NoError(t, e.battles.UpdateBattleScores(ctx, b.ID))
	b, _ = e.battles.GetBattle(ctx, b.ID)
	assert.Equal(t, models.BattleStatusCompleted, b.Status)
}

func TestUpdateBeforeRoundEndOnlyRefreshes(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	b := e.duel(t, models.BattleTypeQuick, nil, "alice", "bob")
	e.clock.Advance(time.Hour)
	require.NoError(t, e.battles.UpdateBattleScores(ctx, b.ID))

	b, _ = e.battles.GetBattle(ctx, b.ID)
	assert.Equal(t, models.BattleStatusActive, b.Status)
	r := b.ActiveRound()
	require.Len(t, r.Leaderboard.Entries, 2)
	assert.Greater(t, r.Leaderboard.HighScore, 0.0)
	assert.False(t, r.Completed)
}

func TestCustomBattleRoundsAndEvents(t *testing.T) {
	e := newTestEngine(t)
	b := e.duel(t, models.BattleTypeCustom, &models.BattleSettings{Rounds: 2}, "alice", "bob")
	require.Equal(t, 2, b.TotalRounds)

	// bob wins round 1 comfortably, alice takes round 2 by more
	e.feed.set("qb-01", 50)
	b = e.nextRound(t, b.ID)
	require.Equal(t, 2, b.CurrentRound)
	assert.Equal(t, "bob", b.Rounds[0].Matchups[0].WinnerID)

	e.feed.set("qb-01", 10)
	e.feed.set("qb-02", 120)
	b = e.nextRound(t, b.ID)
	require.Equal(t, models.BattleStatusCompleted, b.Status)
	assert.Equal(t, "alice", b.Rounds[1].Matchups[0].WinnerID)
	assert.Equal(t, "alice", b.WinnerID)
	assert.Equal(t, 1, b.Participant("alice").Stats.Comebacks)

	var kinds []models.BattleEventType
	for _, ev := range b.Rounds[1].Events {
		kinds = append(kinds, ev.Type)
	}
	assert.Contains(t, kinds, models.BattleEventComeback)
	assert.Contains(t, kinds, models.BattleEventMilestone)
}

func TestTiedMatchupHasNoWinner(t *testing.T) {
	e := newTestEngine(t)
	b := e.duel(t, models.BattleTypeLadder, nil, "alice", "bob")
	b = e.nextRound(t, b.ID)

	require.Equal(t, models.BattleStatusCompleted, b.Status)
	m := b.Rounds[0].Matchups[0]
	assert.True(t, m.Tied)
	assert.Empty(t, m.WinnerID)
	// equal scores: join order decides and ratings stay put
	assert.Equal(t, "alice", b.WinnerID)
	r, _ := e.ladder.GetLadderRank(context.Background(), "alice")
	assert.Nil(t, r)
}

func TestLeaveBattle(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	b, err := e.battles.CreateBattle(ctx, CreateBattleRequest{CreatorID: "alice", Type: models.BattleTypeCustom, IsPublic: true})
	require.NoError(t, err)
	require.NoError(t, e.battles.JoinBattle(ctx, b.ID, "bob"))

	assert.ErrorIs(t, e.battles.LeaveBattle(ctx, b.ID, "carol"), ErrNotParticipant)
	require.NoError(t, e.battles.LeaveBattle(ctx, b.ID, "bob"))
	got, err := e.battles.GetBattle(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, got.Participants, 1)

	require.NoError(t, e.battles.LeaveBattle(ctx, b.ID, "alice"))
	_, err = e.battles.GetBattle(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	active := e.duel(t, models.BattleTypeQuick, nil, "alice", "bob")
	assert.ErrorIs(t, e.battles.LeaveBattle(ctx, active.ID, "bob"), ErrAlreadyStarted)
}

func TestBattleHistory(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		b := e.duel(t, models.BattleTypeQuick, nil, "alice", "bob")
		ids = append(ids, b.ID)
		e.clock.Advance(time.Minute)
	}
	custom, err := e.battles.CreateBattle(ctx, CreateBattleRequest{CreatorID: "alice", Type: models.BattleTypeCustom})
	require.NoError(t, err)
	_, err = e.battles.CreateBattle(ctx, CreateBattleRequest{CreatorID: "zed", Type: models.BattleTypeCustom})
	require.NoError(t, err)

	all, err := e.battles.GetBattleHistory(ctx, "alice", HistoryQuery{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, custom.ID, all[0].ID)
	assert.Equal(t, ids[2], all[1].ID)

	quick, err := e.battles.GetBattleHistory(ctx, "alice", HistoryQuery{Type: models.BattleTypeQuick, Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, quick, 2)
	assert.Equal(t, ids[1], quick[0].ID)
	assert.Equal(t, ids[0], quick[1].ID)

	_, err = e.battles.GetBattleHistory(ctx, "alice", HistoryQuery{Type: "arena"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestBattlePrizesAndArchive(t *testing.T) {
	arch := &recordingArchiver{}
	notes := &recordingNotifier{}
	e := newTestEngine(t, WithArchiver(arch), WithSocialNotifier(notes))
	ctx := context.Background()

	created, err := e.battles.CreateBattle(ctx, CreateBattleRequest{
		CreatorID: "alice",
		Type:      models.BattleTypeQuick,
		IsPublic:  true,
		Prizes: []models.PrizeTableEntry{
			{Rank: 1, Reward: models.RewardBundle{Points: 500, Badges: []string{"duelist"}}},
			{Rank: 2, Reward: models.RewardBundle{Points: 100}},
		},
	})
	require.NoError(t, err)
	require.NoError(t, e.battles.JoinBattle(ctx, created.ID, "bob"))
	e.feed.set("qb-01", 60)
	b := e.nextRound(t, created.ID)
	require.Equal(t, "bob", b.WinnerID)

	grants := e.sink.Grants()
	require.Len(t, grants, 2)
	byUser := map[string]models.PrizeGrant{}
	for _, g := range grants {
		byUser[g.UserID] = g
	}
	assert.Equal(t, int64(500), byUser["bob"].Reward.Points)
	assert.Equal(t, 1, byUser["bob"].Rank)
	assert.Equal(t, "battle:"+b.ID, byUser["bob"].Source)
	assert.Equal(t, int64(100), byUser["alice"].Reward.Points)

	assert.Equal(t, []string{b.ID}, arch.ids)
	assert.ElementsMatch(t, []string{"alice", "bob"}, notes.users)
	assert.Equal(t, "h2h:alice:bob", notes.keys[0])
}

func TestCheckRoundsTicksDueBattles(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	due := e.duel(t, models.BattleTypeQuick, nil, "alice", "bob")
	e.clock.Advance(12 * time.Hour)
	fresh := e.duel(t, models.BattleTypeQuick, nil, "carol", "dave")
	e.clock.Advance(13 * time.Hour)

	assert.Equal(t, 1, e.battles.CheckRounds(ctx))
	got, _ := e.battles.GetBattle(ctx, due.ID)
	assert.Equal(t, models.BattleStatusCompleted, got.Status)
	got, _ = e.battles.GetBattle(ctx, fresh.ID)
	assert.Equal(t, models.BattleStatusActive, got.Status)
}

func TestCompletionHooksRunAfterSave(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	var seen []models.BattleStatus
	e.battles.OnComplete(func(ctx context.Context, b *models.Battle) {
		stored, err := e.battles.GetBattle(ctx, b.ID)
		if err == nil {
			seen = append(seen, stored.Status)
		}
	})

	b := e.duel(t, models.BattleTypeQuick, nil, "alice", "bob")
	e.nextRound(t, b.ID)
	assert.Equal(t, []models.BattleStatus{models.BattleStatusCompleted}, seen)

	assert.True(t, errors.Is(e.battles.UpdateBattleScores(ctx, "missing"), ErrNotFound))
	assert.Len(t, seen, 1)
}

type recordingArchiver struct{ ids []string }

func (a *recordingArchiver) Archive(_ context.Context, b *models.Battle) error {
	a.ids = append(a.ids, b.ID)
	return nil
}

type recordingNotifier struct {
	keys  []string
	users []string
}

func (n *recordingNotifier) Notify(_ context.Context, key, userID, eventType string, increment int) error {
	n.keys = append(n.keys, key)
	n.users = append(n.users, userID)
	return nil
}

func TestCreatorLeavingHandsOver(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	b, err := e.battles.CreateBattle(ctx, CreateBattleRequest{CreatorID: "alice", Type: models.BattleTypeCustom, IsPublic: true})
	require.NoError(t, err)
	require.NoError(t, e.battles.JoinBattle(ctx, b.ID, "bob"))
	require.NoError(t, e.battles.JoinBattle(ctx, b.ID, "carol"))

	require.NoError(t, e.battles.LeaveBattle(ctx, b.ID, "alice"))
	got, err := e.battles.GetBattle(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.CreatorID)

	require.NoError(t, e.battles.LeaveBattle(ctx, b.ID, "carol"))
	got, err = e.battles.GetBattle(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.CreatorID)
}

func TestPartialSettingsKeepPowerUps(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	b := e.duel(t, models.BattleTypeCustom, &models.BattleSettings{SalaryCap: 60000}, "alice", "bob")
	assert.True(t, b.Settings.PowerUpsOn())
	require.NoError(t, e.battles.UsePowerUp(ctx, b.ID, "alice", "shield", models.PowerUpTarget{}))

	off := false
	b = e.duel(t, models.BattleTypeCustom, &models.BattleSettings{PowerUpsEnabled: &off}, "carol", "dave")
	assert.False(t, b.Settings.PowerUpsOn())
	assert.ErrorIs(t, e.battles.UsePowerUp(ctx, b.ID, "carol", "shield", models.PowerUpTarget{}), ErrInvalidState)
}

func TestDiscardChecksCurrentState(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	active := e.duel(t, models.BattleTypeQuick, nil, "alice", "bob")
	err := e.battles.discard(ctx, active.ID, func(b *models.Battle) bool {
		return b.Status == models.BattleStatusWaiting
	})
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = e.battles.GetBattle(ctx, active.ID)
	require.NoError(t, err)

	waiting, err := e.battles.CreateBattle(ctx, CreateBattleRequest{CreatorID: "carol", Type: models.BattleTypeQuick, Invitees: []string{"dave"}})
	require.NoError(t, err)
	require.NoError(t, e.battles.discard(ctx, waiting.ID, func(b *models.Battle) bool {
		return b.Status == models.BattleStatusWaiting && len(b.Participants) == 1
	}))
	_, err = e.battles.GetBattle(ctx, waiting.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
