package services

import (
	"context"
	"errors"
	"testing"

	"battle-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrizeValidate(t *testing.T) {
	s := NewPrizeService(NewMemoryRewardSink())

	require.NoError(t, s.Validate(nil))
	require.NoError(t, s.Validate([]models.PrizeTableEntry{
		{Rank: 1}, {Rank: 2}, {FromRank: 3, ToRank: 8, Label: "top 8"},
	}))

	err := s.Validate([]models.PrizeTableEntry{{FromRank: 1, ToRank: 4}, {Rank: 3}})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "ranks 1-4")

	assert.ErrorIs(t, s.Validate([]models.PrizeTableEntry{{Rank: 1, ToRank: 3}}), ErrInvalidArgument)
	assert.ErrorIs(t, s.Validate([]models.PrizeTableEntry{{FromRank: 5, ToRank: 2}}), ErrInvalidArgument)
	assert.ErrorIs(t, s.Validate([]models.PrizeTableEntry{{}}), ErrInvalidArgument)
}

func TestPrizeMatchBands(t *testing.T) {
	s := NewPrizeService(NewMemoryRewardSink())
	table := []models.PrizeTableEntry{
		{Rank: 1, Reward: models.RewardBundle{Points: 100}},
		{FromRank: 2, ToRank: 4, Label: "podium-ish", Reward: models.RewardBundle{Points: 10}},
	}
	e, ok := s.Match(table, 3)
	require.True(t, ok)
	assert.Equal(t, "podium-ish", e.String())
	_, ok = s.Match(table, 5)
	assert.False(t, ok)
}

type failingSink struct{ fail string }

func (f failingSink) Grant(_ context.Context, userID string, _ models.PrizeGrant) error {
	if userID == f.fail {
		return errors.New("wallet offline")
	}
	return nil
}

func TestPrizeAwardContinuesPastFailures(t *testing.T) {
	s := NewPrizeService(failingSink{fail: "alice"})
	table := []models.PrizeTableEntry{
		{Rank: 1, Reward: models.RewardBundle{Points: 100}},
		{Rank: 2, Reward: models.RewardBundle{Points: 50}},
		{Rank: 3},
	}
	grants, err := s.Award(context.Background(), "battle:b-1", []Standing{
		{UserID: "alice", Rank: 1}, {UserID: "bob", Rank: 2}, {UserID: "carol", Rank: 3}, {UserID: "dave", Rank: 4},
	}, table)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet offline")
	require.Len(t, grants, 1)
	assert.Equal(t, "bob", grants[0].UserID)
	assert.Equal(t, "rank 2", grants[0].Label)
}
