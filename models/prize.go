package models

import "fmt"

// RewardBundle is what a prize table entry grants
type RewardBundle struct {
	Points   int64    `json:"points,omitempty"`
	Currency float64  `json:"currency,omitempty"`
	Badges   []string `json:"badges,omitempty"`
	Titles   []string `json:"titles,omitempty"`
	Items    []string `json:"items,omitempty"`
}

func (b RewardBundle) Empty() bool {
	return b.Points == 0 && b.Currency == 0 && len(b.Badges) == 0 && len(b.Titles) == 0 && len(b.Items) == 0
}

// PrizeTableEntry matches an exact rank (Rank > 0) or a band FromRank..ToRank
type PrizeTableEntry struct {
	Rank     int          `json:"rank,omitempty"`
	FromRank int          `json:"from_rank,omitempty"`
	ToRank   int          `json:"to_rank,omitempty"`
	Label    string       `json:"label,omitempty"` // e.g. "top 8"
	Reward   RewardBundle `json:"reward"`
}

// Bounds returns the inclusive rank range covered by the entry.
func (e PrizeTableEntry) Bounds() (int, int) {
	if e.Rank > 0 {
		return e.Rank, e.Rank
	}
	return e.FromRank, e.ToRank
}

func (e PrizeTableEntry) Matches(rank int) bool {
	lo, hi := e.Bounds()
	return rank >= lo && rank <= hi
}

func (e PrizeTableEntry) String() string {
	if e.Label != "" {
		return e.Label
	}
	lo, hi := e.Bounds()
	if lo == hi {
		return fmt.Sprintf("rank %d", lo)
	}
	return fmt.Sprintf("ranks %d-%d", lo, hi)
}

// PrizeGrant records a reward granted for a final rank
type PrizeGrant struct {
	UserID string       `json:"user_id"`
	Rank   int          `json:"rank"`
	Label  string       `json:"label"`
	Source string       `json:"source"` // battle:<id> or tournament:<id>
	Reward RewardBundle `json:"reward"`
}
