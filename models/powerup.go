package models

import "sort"

// EffectTarget is the scope a power-up modifies
type EffectTarget string

const (
	TargetSelf     EffectTarget = "self"
	TargetOpponent EffectTarget = "opponent"
	TargetPlayer   EffectTarget = "player"
	TargetPosition EffectTarget = "position"
)

type PowerUpEffect struct {
	Target     EffectTarget `json:"target"`
	Duration   int          `json:"duration"` // rounds, including the round of use
	Multiplier float64      `json:"multiplier,omitempty"`
	Protection bool         `json:"protection,omitempty"`
	SwapLimit  int          `json:"swap_limit,omitempty"`
}

// PowerUp is an immutable catalog entry; usage lives on the participant
type PowerUp struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Effect      PowerUpEffect `json:"effect"`
	Cooldown    int           `json:"cooldown"` // rounds
	Rarity      string        `json:"rarity"`   // common, rare, epic, legendary
}

// PowerUpTarget names what a power-up is aimed at when used
type PowerUpTarget struct {
	UserID          string `json:"user_id,omitempty"`
	PlayerID        string `json:"player_id,omitempty"`
	Position        string `json:"position,omitempty"`
	SwapOutPlayerID string `json:"swap_out_player_id,omitempty"`
}

// ActiveEffect is an installed power-up consulted by scoring
type ActiveEffect struct {
	PowerUpID  string       `json:"power_up_id"`
	OwnerID    string       `json:"owner_id"`
	Target     EffectTarget `json:"target"`
	TargetRef  string       `json:"target_ref"` // user id, player id or position
	Multiplier float64      `json:"multiplier,omitempty"`
	Protection bool         `json:"protection,omitempty"`
	FromRound  int          `json:"from_round"`
	UntilRound int          `json:"until_round"`

	// bench swaps only: the lineup player benched by the swap, restored once the effect expires
	SwappedOutID string `json:"swapped_out_id,omitempty"`
	Reverted     bool   `json:"reverted,omitempty"`
}

// ActiveIn reports whether the effect covers round.
func (e ActiveEffect) ActiveIn(round int) bool {
	return round >= e.FromRound && round <= e.UntilRound
}

// PowerUpCatalog is the static registry of power-ups
var PowerUpCatalog = map[string]PowerUp{
	"boost_captain": {
		ID:          "boost_captain",
		Name:        "Captain Boost",
		Description: "Multiplies one rostered player's points by 1.5 for a round",
		Effect:      PowerUpEffect{Target: TargetPlayer, Duration: 1, Multiplier: 1.5},
		Cooldown:    3,
		Rarity:      "common",
	},
	"double_points": {
		ID:          "double_points",
		Name:        "Double Points",
		Description: "Doubles your whole roster for a round",
		Effect:      PowerUpEffect{Target: TargetSelf, Duration: 1, Multiplier: 2.0},
		Cooldown:    4,
		Rarity:      "rare",
	},
	"shield": {
		ID:          "shield",
		Name:        "Shield",
		Description: "Blocks opponent power-ups for a round",
		Effect:      PowerUpEffect{Target: TargetSelf, Duration: 1, Protection: true},
		Cooldown:    3,
		Rarity:      "common",
	},
	"sabotage": {
		ID:          "sabotage",
		Name:        "Sabotage",
		Description: "Cuts your opponent's points by 20% for a round",
		Effect:      PowerUpEffect{Target: TargetOpponent, Duration: 1, Multiplier: 0.8},
		Cooldown:    3,
		Rarity:      "rare",
	},
	"position_surge": {
		ID:          "position_surge",
		Name:        "Position Surge",
		Description: "Boosts every rostered player at one position by 25% for a round",
		Effect:      PowerUpEffect{Target: TargetPosition, Duration: 1, Multiplier: 1.25},
		Cooldown:    2,
		Rarity:      "common",
	},
	"bench_swap": {
		ID:          "bench_swap",
		Name:        "Bench Swap",
		Description: "Swap a benched player into your active lineup",
		Effect:      PowerUpEffect{Target: TargetPlayer, Duration: 1, SwapLimit: 1},
		Cooldown:    5,
		Rarity:      "epic",
	},
}

func LookupPowerUp(id string) (PowerUp, bool) {
	p, ok := PowerUpCatalog[id]
	return p, ok
}

// PowerUps lists the catalog sorted by id.
func PowerUps() []PowerUp {
	out := make([]PowerUp, 0, len(PowerUpCatalog))
	for _, p := range PowerUpCatalog {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
