package services

import (
	"context"
	"testing"

	"battle-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captainOf(t *testing.T, p *models.Participant) models.RosterPlayer {
	t.Helper()
	require.NotNil(t, p.Roster)
	for _, pl := range p.Roster.Players {
		if pl.IsCaptain {
			return pl
		}
	}
	t.Fatalf("no captain on %s's roster", p.UserID)
	return models.RosterPlayer{}
}

func TestBoostCaptainCooldown(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	b := e.duel(t, models.BattleTypeCustom, &models.BattleSettings{Rounds: 4}, "alice", "bob")
	captain := captainOf(t, b.Participant("alice"))
	target := models.PowerUpTarget{PlayerID: captain.PlayerID}

	require.NoError(t, e.battles.UsePowerUp(ctx, b.ID, "alice", "boost_captain", target))

	e.nextRound(t, b.ID)
	b = e.nextRound(t, b.ID)
	require.Equal(t, 3, b.CurrentRound)

	err := e.battles.UsePowerUp(ctx, b.ID, "alice", "boost_captain", target)
	require.ErrorIs(t, err, ErrOnCooldown)
	assert.Contains(t, err.Error(), "1 more round")
	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "1", de.Metadata["remaining_rounds"])

	b = e.nextRound(t, b.ID)
	require.Equal(t, 4, b.CurrentRound)
	require.NoError(t, e.battles.UsePowerUp(ctx, b.ID, "alice", "boost_captain", target))

	b, err = e.battles.GetBattle(ctx, b.ID)
	require.NoError(t, err)
	used := b.Participant("alice").PowerUpsUsed
	require.Len(t, used, 2)
	assert.Equal(t, 1, used[0].Round)
	assert.Equal(t, 4, used[1].Round)
}

func TestBoostCaptainRaisesRoundScore(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	b := e.duel(t, models.BattleTypeCustom, &models.BattleSettings{Rounds: 2}, "alice", "bob")
	captain := captainOf(t, b.Participant("alice"))
	require.NoError(t, e.battles.UsePowerUp(ctx, b.ID, "alice", "boost_captain", models.PowerUpTarget{PlayerID: captain.PlayerID}))

	b = e.nextRound(t, b.ID)
	alice, bob := b.Participant("alice"), b.Participant("bob")
	// captain 10 points at x2, boosted by 1.5 adds 10
	assert.Equal(t, 115.0, alice.RoundScores[0])
	assert.Equal(t, 105.0, bob.RoundScores[0])
	assert.Equal(t, "alice", b.Rounds[0].Matchups[0].WinnerID)

	// the boost lasts one round
	b = e.nextRound(t, b.ID)
	assert.Equal(t, 105.0, b.Participant("alice").RoundScores[1])
}

func TestPowerUpRejections(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	waiting, err := e.battles.CreateBattle(ctx, CreateBattleRequest{CreatorID: "alice", Type: models.BattleTypeCustom})
	require.NoError(t, err)
	assert.ErrorIs(t, e.battles.UsePowerUp(ctx, waiting.ID, "alice", "shield", models.PowerUpTarget{}), ErrNotActive)

	b := e.duel(t, models.BattleTypeCustom, &models.BattleSettings{AllowedPowerUps: []string{"shield", "sabotage"}}, "alice", "bob")

	err = e.battles.UsePowerUp(ctx, b.ID, "alice", "time_warp", models.PowerUpTarget{})
	assert.ErrorIs(t, err, ErrUnknownPowerUp)
	assert.Equal(t, CodeUnknownPowerUp, CodeOf(err))

	assert.ErrorIs(t, e.battles.UsePowerUp(ctx, b.ID, "carol", "shield", models.PowerUpTarget{}), ErrNotParticipant)
	assert.ErrorIs(t, e.battles.UsePowerUp(ctx, b.ID, "alice", "double_points", models.PowerUpTarget{}), ErrInvalidState)

	err = e.battles.UsePowerUp(ctx, b.ID, "alice", "sabotage", models.PowerUpTarget{UserID: "alice"})
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))

	off := false
	disabled := e.duel(t, models.BattleTypeCustom, &models.BattleSettings{PowerUpsEnabled: &off}, "carol", "dave")
	assert.ErrorIs(t, e.battles.UsePowerUp(ctx, disabled.ID, "carol", "shield", models.PowerUpTarget{}), ErrInvalidState)
}

func TestSabotageDefaultsToOpponentAndShieldBlocks(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	events, cancel := e.bus.Subscribe()
	defer cancel()

	b := e.duel(t, models.BattleTypeCustom, &models.BattleSettings{Rounds: 2}, "alice", "bob")
	require.NoError(t, e.battles.UsePowerUp(ctx, b.ID, "alice", "sabotage", models.PowerUpTarget{}))

	b, err := e.battles.GetBattle(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, b.ActiveEffects, 1)
	assert.Equal(t, "bob", b.ActiveEffects[0].TargetRef)

	require.NoError(t, e.battles.UsePowerUp(ctx, b.ID, "bob", "shield", models.PowerUpTarget{}))
	b = e.nextRound(t, b.ID)
	assert.Equal(t, 105.0, b.Participant("bob").RoundScores[0])

	var powerUps int
	for _, ev := range drain(events) {
		if ev.Type == EventPowerUpUsed {
			powerUps++
		}
	}
	assert.Equal(t, 2, powerUps)
	var kinds []models.BattleEventType
	for _, ev := range b.Rounds[0].Events {
		kinds = append(kinds, ev.Type)
	}
	assert.Contains(t, kinds, models.BattleEventPowerUp)
}

func TestBenchSwap(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// a loose cap leaves room for a bench
	b := e.duel(t, models.BattleTypeCustom, &models.BattleSettings{SalaryCap: 100000}, "alice", "bob")
	roster := b.Participant("alice").Roster
	require.NotEmpty(t, roster.Bench)
	bench := roster.Bench[0]

	var out models.RosterPlayer
	for _, pl := range roster.Players {
		if pl.Slot == models.SlotFlex {
			out = pl
		}
	}
	require.NotEmpty(t, out.PlayerID)

	err := e.battles.UsePowerUp(ctx, b.ID, "alice", "bench_swap", models.PowerUpTarget{PlayerID: bench.PlayerID, SwapOutPlayerID: out.PlayerID})
	require.NoError(t, err)

	b, err = e.battles.GetBattle(ctx, b.ID)
	require.NoError(t, err)
	roster = b.Participant("alice").Roster
	idx, ok := roster.Player(bench.PlayerID)
	require.True(t, ok)
	assert.Equal(t, models.SlotFlex, roster.Players[idx].Slot)
	_, ok = roster.BenchPlayer(out.PlayerID)
	assert.True(t, ok)
}

func TestCooldownRemaining(t *testing.T) {
	pu, _ := models.LookupPowerUp("position_surge")
	p := &models.Participant{}
	assert.Equal(t, 0, CooldownRemaining(p, pu, 1))

	p.PowerUpsUsed = []models.PowerUpUsage{{PowerUpID: "position_surge", Round: 2}}
	assert.Equal(t, 2, CooldownRemaining(p, pu, 2))
	assert.Equal(t, 1, CooldownRemaining(p, pu, 3))
	assert.Equal(t, 0, CooldownRemaining(p, pu, 4))
}

func TestBenchSwapLastsOneRound(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	b := e.duel(t, models.BattleTypeCustom, &models.BattleSettings{Rounds: 2, SalaryCap: 100000}, "alice", "bob")
	roster := b.Participant("alice").Roster
	require.NotEmpty(t, roster.Bench)
	bench := roster.Bench[0]
	var out models.RosterPlayer
	for _, pl := range roster.Players {
		if pl.Slot == models.SlotFlex {
			out = pl
		}
	}
	require.NotEmpty(t, out.PlayerID)

	require.NoError(t, e.battles.UsePowerUp(ctx, b.ID, "alice", "bench_swap", models.PowerUpTarget{PlayerID: bench.PlayerID, SwapOutPlayerID: out.PlayerID}))

	b = e.nextRound(t, b.ID)
	require.Equal(t, 2, b.CurrentRound)
	roster = b.Participant("alice").Roster
	idx, ok := roster.Player(out.PlayerID)
	require.True(t, ok)
	assert.Equal(t, models.SlotFlex, roster.Players[idx].Slot)
	assert.Equal(t, out.Multiplier, roster.Players[idx].Multiplier)
	_, ok = roster.BenchPlayer(bench.PlayerID)
	assert.True(t, ok)

	var swap models.ActiveEffect
	for _, eff := range b.ActiveEffects {
		if eff.PowerUpID == "bench_swap" {
			swap = eff
		}
	}
	assert.True(t, swap.Reverted)
	assert.Equal(t, out.PlayerID, swap.SwappedOutID)
}
