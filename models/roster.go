package models

import "time"

// Roster slot names. FLEX accepts any position in FlexPositions.
const (
	PositionQB   = "QB"
	PositionRB   = "RB"
	PositionWR   = "WR"
	PositionTE   = "TE"
	PositionK    = "K"
	PositionDEF  = "DEF"
	SlotFlex     = "FLEX"
	SlotBench    = "BENCH"
	FormationStd = "standard"
)

var FlexPositions = []string{PositionRB, PositionWR, PositionTE}

// SlotOrder is the fill order used by auto-assignment and the draft
var SlotOrder = []string{PositionQB, PositionRB, PositionWR, PositionTE, SlotFlex, PositionK, PositionDEF}

const DefaultSalaryCap = 50000

// DefaultRosterRequirements totals 9 slots
func DefaultRosterRequirements() map[string]int {
	return map[string]int{
		PositionQB:  1,
		PositionRB:  2,
		PositionWR:  2,
		PositionTE:  1,
		SlotFlex:    1,
		PositionK:   1,
		PositionDEF: 1,
	}
}

// SlotAccepts reports whether a player at position may fill slot.
func SlotAccepts(slot, position string) bool {
	if slot == position {
		return true
	}
	if slot != SlotFlex {
		return false
	}
	for _, p := range FlexPositions {
		if p == position {
			return true
		}
	}
	return false
}

type PlayerStatus string

const (
	PlayerStatusActive       PlayerStatus = "active"
	PlayerStatusQuestionable PlayerStatus = "questionable"
	PlayerStatusOut          PlayerStatus = "out"
)

// Captain multipliers applied at roster assignment
const (
	CaptainMultiplier     = 2.0
	ViceCaptainMultiplier = 1.5
	BaseMultiplier        = 1.0
)

type RosterPlayer struct {
	PlayerID      string       `json:"player_id"`
	Name          string       `json:"name"`
	Position      string       `json:"position"`
	Slot          string       `json:"slot"`
	Salary        float64      `json:"salary"`
	Multiplier    float64      `json:"multiplier"`
	Status        PlayerStatus `json:"status"`
	IsCaptain     bool         `json:"is_captain,omitempty"`
	IsViceCaptain bool         `json:"is_vice_captain,omitempty"`
	LastPoints    float64      `json:"last_points"`
}

type Roster struct {
	Players     []RosterPlayer `json:"players"`
	Bench       []RosterPlayer `json:"bench"`
	TotalSalary float64        `json:"total_salary"`
	Formation   string         `json:"formation"`
}

// SlotCounts counts active players per filled slot.
func (r *Roster) SlotCounts() map[string]int {
	counts := make(map[string]int)
	for _, p := range r.Players {
		counts[p.Slot]++
	}
	return counts
}

// Player finds an active player by id.
func (r *Roster) Player(playerID string) (int, bool) {
	for i, p := range r.Players {
		if p.PlayerID == playerID {
			return i, true
		}
	}
	return -1, false
}

func (r *Roster) BenchPlayer(playerID string) (int, bool) {
	for i, p := range r.Bench {
		if p.PlayerID == playerID {
			return i, true
		}
	}
	return -1, false
}

func (r *Roster) HasPosition(position string) bool {
	for _, p := range r.Players {
		if p.Position == position {
			return true
		}
	}
	return false
}

// RecomputeSalary sums active and bench salaries.
func (r *Roster) RecomputeSalary() {
	total := 0.0
	for _, p := range r.Players {
		total += p.Salary
	}
	for _, p := range r.Bench {
		total += p.Salary
	}
	r.TotalSalary = total
}

// PoolPlayer is a draftable player from the player pool
type PoolPlayer struct {
	PlayerID  string  `json:"player_id"`
	Name      string  `json:"name"`
	Position  string  `json:"position"`
	Salary    float64 `json:"salary"`
	Projected float64 `json:"projected"`
}

// DraftState tracks a snake draft while a battle is drafting
type DraftState struct {
	Order    []string    `json:"order"`
	Picks    []DraftPick `json:"picks"`
	Deadline time.Time   `json:"deadline"`
	Slots    int         `json:"slots"` // picks per participant
}

type DraftPick struct {
	UserID   string    `json:"user_id"`
	PlayerID string    `json:"player_id"`
	Slot     string    `json:"slot"`
	Auto     bool      `json:"auto"`
	At       time.Time `json:"at"`
}

// NextDrafter returns who picks next in snake order, or "" when done.
func (d *DraftState) NextDrafter() string {
	n := len(d.Order)
	if n == 0 || len(d.Picks) >= n*d.Slots {
		return ""
	}
	pick := len(d.Picks)
	round := pick / n
	idx := pick % n
	if round%2 == 1 {
		idx = n - 1 - idx
	}
	return d.Order[idx]
}

func (d *DraftState) Done() bool {
	return d.NextDrafter() == ""
}

// Taken reports whether a pool player was already drafted.
func (d *DraftState) Taken(playerID string) bool {
	for _, p := range d.Picks {
		if p.PlayerID == playerID {
			return true
		}
	}
	return false
}

// DefaultPlayerPool is the static pool used when no external pool is wired
var DefaultPlayerPool = []PoolPlayer{
	{PlayerID: "qb-01", Name: "Jalen Hurts", Position: PositionQB, Salary: 8200, Projected: 24.1},
	{PlayerID: "qb-02", Name: "Josh Allen", Position: PositionQB, Salary: 8400, Projected: 24.8},
	{PlayerID: "qb-03", Name: "Jared Goff", Position: PositionQB, Salary: 6400, Projected: 19.2},
	{PlayerID: "qb-04", Name: "Baker Mayfield", Position: PositionQB, Salary: 6000, Projected: 18.4},
	{PlayerID: "rb-01", Name: "Christian McCaffrey", Position: PositionRB, Salary: 9000, Projected: 22.5},
	{PlayerID: "rb-02", Name: "Bijan Robinson", Position: PositionRB, Salary: 8100, Projected: 19.9},
	{PlayerID: "rb-03", Name: "Saquon Barkley", Position: PositionRB, Salary: 7900, Projected: 19.1},
	{PlayerID: "rb-04", Name: "Kyren Williams", Position: PositionRB, Salary: 6600, Projected: 15.8},
	{PlayerID: "rb-05", Name: "James Cook", Position: PositionRB, Salary: 6200, Projected: 14.7},
	{PlayerID: "rb-06", Name: "Rhamondre Stevenson", Position: PositionRB, Salary: 5200, Projected: 11.3},
	{PlayerID: "rb-07", Name: "Zack Moss", Position: PositionRB, Salary: 4800, Projected: 10.2},
	{PlayerID: "wr-01", Name: "Justin Jefferson", Position: PositionWR, Salary: 8800, Projected: 20.8},
	{PlayerID: "wr-02", Name: "CeeDee Lamb", Position: PositionWR, Salary: 8600, Projected: 20.1},
	{PlayerID: "wr-03", Name: "Amon-Ra St. Brown", Position: PositionWR, Salary: 7800, Projected: 18.2},
	{PlayerID: "wr-04", Name: "Garrett Wilson", Position: PositionWR, Salary: 6500, Projected: 15.0},
	{PlayerID: "wr-05", Name: "DeVonta Smith", Position: PositionWR, Salary: 6100, Projected: 14.1},
	{PlayerID: "wr-06", Name: "Jordan Addison", Position: PositionWR, Salary: 5400, Projected: 12.0},
	{PlayerID: "wr-07", Name: "Romeo Doubs", Position: PositionWR, Salary: 4700, Projected: 10.4},
	{PlayerID: "te-01", Name: "Travis Kelce", Position: PositionTE, Salary: 7000, Projected: 15.2},
	{PlayerID: "te-02", Name: "Sam LaPorta", Position: PositionTE, Salary: 5800, Projected: 12.1},
	{PlayerID: "te-03", Name: "Dalton Kincaid", Position: PositionTE, Salary: 4600, Projected: 9.6},
	{PlayerID: "te-04", Name: "Hunter Henry", Position: PositionTE, Salary: 3900, Projected: 7.8},
	{PlayerID: "k-01", Name: "Justin Tucker", Position: PositionK, Salary: 4800, Projected: 9.1},
	{PlayerID: "k-02", Name: "Harrison Butker", Position: PositionK, Salary: 4600, Projected: 8.7},
	{PlayerID: "k-03", Name: "Jake Elliott", Position: PositionK, Salary: 4200, Projected: 8.0},
	{PlayerID: "def-01", Name: "Cowboys D/ST", Position: PositionDEF, Salary: 4000, Projected: 8.9},
	{PlayerID: "def-02", Name: "49ers D/ST", Position: PositionDEF, Salary: 3800, Projected: 8.4},
	{PlayerID: "def-03", Name: "Browns D/ST", Position: PositionDEF, Salary: 3300, Projected: 7.5},
}
