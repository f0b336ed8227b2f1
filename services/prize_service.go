package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"battle-engine/models"
)

// Standing is a final position used for prize matching
type Standing struct {
	UserID string
	Rank   int
}

type PrizeService struct {
	sink RewardSink
}

func NewPrizeService(sink RewardSink) *PrizeService {
	return &PrizeService{sink: sink}
}

// Validate rejects malformed entries and any rank covered by two entries.
func (s *PrizeService) Validate(table []models.PrizeTableEntry) error {
	for i, e := range table {
		if e.Rank > 0 && (e.FromRank > 0 || e.ToRank > 0) {
			return newError(CodeInvalidArgument, "prize entry %d sets both rank and range", i)
		}
		lo, hi := e.Bounds()
		if lo < 1 || hi < lo {
			return newError(CodeInvalidArgument, "prize entry %d has invalid ranks %d-%d", i, lo, hi)
		}
		for j := 0; j < i; j++ {
			plo, phi := table[j].Bounds()
			if lo <= phi && plo <= hi {
				return &Error{
					Code:     CodeInvalidState,
					Message:  fmt.Sprintf("prize entries %q and %q overlap", table[j].String(), e.String()),
					Metadata: map[string]string{"first": fmt.Sprint(j), "second": fmt.Sprint(i)},
				}
			}
		}
	}
	return nil
}

// Match returns the first entry covering rank.
func (s *PrizeService) Match(table []models.PrizeTableEntry, rank int) (models.PrizeTableEntry, bool) {
	for _, e := range table {
		if e.Matches(rank) {
			return e, true
		}
	}
	return models.PrizeTableEntry{}, false
}

// Award grants the matching bundle to every standing. Each grant is attempted
// even if an earlier one failed; the failures are joined.
func (s *PrizeService) Award(ctx context.Context, source string, standings []Standing, table []models.PrizeTableEntry) ([]models.PrizeGrant, error) {
	var grants []models.PrizeGrant
	var errs []error
	for _, st := range standings {
		entry, ok := s.Match(table, st.Rank)
		if !ok || entry.Reward.Empty() {
			continue
		}
		g := models.PrizeGrant{
			UserID: st.UserID,
			Rank:   st.Rank,
			Label:  entry.String(),
			Source: source,
			Reward: entry.Reward,
		}
		if err := s.sink.Grant(ctx, st.UserID, g); err != nil {
			errs = append(errs, fmt.Errorf("grant %s to %s: %w", g.Label, st.UserID, err))
			continue
		}
		log.Printf("[Prize] %s rank %d (%s) from %s", st.UserID, st.Rank, g.Label, source)
		grants = append(grants, g)
	}
	return grants, errors.Join(errs...)
}
