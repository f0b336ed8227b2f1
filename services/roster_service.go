package services

import (
	"fmt"
	"sort"
	"time"

	"battle-engine/models"
)

const DefaultBenchSize = 2

// RosterService builds rosters from a player pool under slot requirements and a salary cap.
type RosterService struct {
	pool []models.PoolPlayer
}

func NewRosterService(pool []models.PoolPlayer) *RosterService {
	if len(pool) == 0 {
		pool = models.DefaultPlayerPool
	}
	return &RosterService{pool: pool}
}

func (s *RosterService) Pool() []models.PoolPlayer {
	return append([]models.PoolPlayer(nil), s.pool...)
}

func (s *RosterService) poolPlayer(id string) (models.PoolPlayer, bool) {
	for _, p := range s.pool {
		if p.PlayerID == id {
			return p, true
		}
	}
	return models.PoolPlayer{}, false
}

// slotList expands requirements into individual slots in fill order. Slots not
// in SlotOrder follow, sorted by name.
func slotList(reqs map[string]int) []string {
	var out []string
	seen := make(map[string]bool)
	for _, slot := range models.SlotOrder {
		seen[slot] = true
		for i := 0; i < reqs[slot]; i++ {
			out = append(out, slot)
		}
	}
	var extra []string
	for slot := range reqs {
		if !seen[slot] {
			extra = append(extra, slot)
		}
	}
	sort.Strings(extra)
	for _, slot := range extra {
		for i := 0; i < reqs[slot]; i++ {
			out = append(out, slot)
		}
	}
	return out
}

// byProjection orders players best first, id as tie-break.
func byProjection(players []models.PoolPlayer) {
	sort.SliceStable(players, func(i, j int) bool {
		if players[i].Projected == players[j].Projected {
			return players[i].PlayerID < players[j].PlayerID
		}
		return players[i].Projected > players[j].Projected
	})
}

// minCost is the cheapest way to fill slots from players not in used.
func (s *RosterService) minCost(slots []string, used map[string]bool) (float64, bool) {
	taken := make(map[string]bool, len(used))
	for id := range used {
		taken[id] = true
	}
	cheap := append([]models.PoolPlayer(nil), s.pool...)
	sort.SliceStable(cheap, func(i, j int) bool { return cheap[i].Salary < cheap[j].Salary })

	// exact-position slots first so FLEX does not steal the only cheap TE
	ordered := append([]string(nil), slots...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i] != models.SlotFlex && ordered[j] == models.SlotFlex })

	total := 0.0
	for _, slot := range ordered {
		found := false
		for _, p := range cheap {
			if !taken[p.PlayerID] && models.SlotAccepts(slot, p.Position) {
				taken[p.PlayerID] = true
				total += p.Salary
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return total, true
}

// AutoRoster fills every required slot greedily by projection while keeping
// enough budget for the remaining slots. variant rotates the choice among
// affordable candidates so participants in the same battle get different
// lineups. exclude holds players that are not available.
func (s *RosterService) AutoRoster(settings models.BattleSettings, variant int, exclude map[string]bool) (*models.Roster, error) {
	reqs := settings.RosterRequirements
	if len(reqs) == 0 {
		reqs = models.DefaultRosterRequirements()
	}
	slots := slotList(reqs)
	budget := settings.SalaryCap
	if budget <= 0 {
		budget = 1e12
	}

	used := make(map[string]bool, len(exclude))
	for id := range exclude {
		used[id] = true
	}
	candidates := append([]models.PoolPlayer(nil), s.pool...)
	byProjection(candidates)

	roster := &models.Roster{Formation: models.FormationStd}
	spent := 0.0
	for i, slot := range slots {
		var fits []models.PoolPlayer
		for _, p := range candidates {
			if used[p.PlayerID] || !models.SlotAccepts(slot, p.Position) {
				continue
			}
			used[p.PlayerID] = true
			reserve, ok := s.minCost(slots[i+1:], used)
			delete(used, p.PlayerID)
			if ok && spent+p.Salary+reserve <= budget {
				fits = append(fits, p)
			}
		}
		if len(fits) == 0 {
			return nil, &Error{
				Code:     CodeCapacityExceeded,
				Message:  fmt.Sprintf("no affordable player for %s slot under salary cap %.0f", slot, settings.SalaryCap),
				Metadata: map[string]string{"slot": slot},
			}
		}
		pick := fits[variant%len(fits)]
		used[pick.PlayerID] = true
		spent += pick.Salary
		roster.Players = append(roster.Players, rosterPlayer(pick, slot))
	}

	benchSize := settings.BenchSize
	for _, p := range candidates {
		if len(roster.Bench) >= benchSize {
			break
		}
		if used[p.PlayerID] || !models.SlotAccepts(models.SlotFlex, p.Position) || spent+p.Salary > budget {
			continue
		}
		used[p.PlayerID] = true
		spent += p.Salary
		bp := rosterPlayer(p, models.SlotBench)
		roster.Bench = append(roster.Bench, bp)
	}

	assignCaptains(roster)
	roster.RecomputeSalary()
	return roster, nil
}

func rosterPlayer(p models.PoolPlayer, slot string) models.RosterPlayer {
	return models.RosterPlayer{
		PlayerID:   p.PlayerID,
		Name:       p.Name,
		Position:   p.Position,
		Slot:       slot,
		Salary:     p.Salary,
		Multiplier: models.BaseMultiplier,
		Status:     models.PlayerStatusActive,
	}
}

// assignCaptains marks the highest-salary active player captain and the second vice-captain.
func assignCaptains(r *models.Roster) {
	idx := make([]int, len(r.Players))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return r.Players[idx[a]].Salary > r.Players[idx[b]].Salary })
	for i := range r.Players {
		r.Players[i].IsCaptain, r.Players[i].IsViceCaptain = false, false
		r.Players[i].Multiplier = models.BaseMultiplier
	}
	if len(idx) > 0 {
		r.Players[idx[0]].IsCaptain = true
		r.Players[idx[0]].Multiplier = models.CaptainMultiplier
	}
	if len(idx) > 1 {
		r.Players[idx[1]].IsViceCaptain = true
		r.Players[idx[1]].Multiplier = models.ViceCaptainMultiplier
	}
}

// Validate checks slot counts match requirements exactly and salary stays under the cap.
func (s *RosterService) Validate(r *models.Roster, settings models.BattleSettings) error {
	if r == nil {
		return newError(CodeCapacityExceeded, "roster not assigned")
	}
	reqs := settings.RosterRequirements
	if len(reqs) == 0 {
		reqs = models.DefaultRosterRequirements()
	}
	counts := r.SlotCounts()
	for slot, want := range reqs {
		if counts[slot] != want {
			return &Error{
				Code:     CodeCapacityExceeded,
				Message:  fmt.Sprintf("roster has %d %s, needs %d", counts[slot], slot, want),
				Metadata: map[string]string{"slot": slot},
			}
		}
	}
	for slot, n := range counts {
		if reqs[slot] == 0 && n > 0 {
			return newError(CodeCapacityExceeded, "roster slot %s is not allowed", slot)
		}
	}
	for _, p := range r.Players {
		if !models.SlotAccepts(p.Slot, p.Position) {
			return newError(CodeCapacityExceeded, "%s %s cannot play %s", p.Position, p.PlayerID, p.Slot)
		}
	}
	if settings.SalaryCap > 0 && r.TotalSalary > settings.SalaryCap {
		return newError(CodeCapacityExceeded, "salary %.0f exceeds cap %.0f", r.TotalSalary, settings.SalaryCap)
	}
	return nil
}

// StartDraft sets up a snake draft in join order.
func (s *RosterService) StartDraft(b *models.Battle, now time.Time) {
	order := make([]string, len(b.Participants))
	for i, p := range b.Participants {
		order[i] = p.UserID
	}
	reqs := b.Settings.RosterRequirements
	if len(reqs) == 0 {
		reqs = models.DefaultRosterRequirements()
	}
	b.Draft = &models.DraftState{
		Order:    order,
		Slots:    len(slotList(reqs)),
		Deadline: now.Add(b.Settings.DraftTimeLimit),
	}
}

func (s *RosterService) openSlots(b *models.Battle, userID string) []string {
	reqs := b.Settings.RosterRequirements
	if len(reqs) == 0 {
		reqs = models.DefaultRosterRequirements()
	}
	filled := make(map[string]int)
	for _, pk := range b.Draft.Picks {
		if pk.UserID == userID {
			filled[pk.Slot]++
		}
	}
	var open []string
	for _, slot := range slotList(reqs) {
		if filled[slot] > 0 {
			filled[slot]--
			continue
		}
		open = append(open, slot)
	}
	return open
}

func (s *RosterService) draftSpent(b *models.Battle, userID string) float64 {
	total := 0.0
	for _, pk := range b.Draft.Picks {
		if pk.UserID != userID {
			continue
		}
		if p, ok := s.poolPlayer(pk.PlayerID); ok {
			total += p.Salary
		}
	}
	return total
}

func draftTaken(d *models.DraftState) map[string]bool {
	taken := make(map[string]bool, len(d.Picks))
	for _, pk := range d.Picks {
		taken[pk.PlayerID] = true
	}
	return taken
}

// slotFor returns the first open slot the player can fill affordably, or "".
func (s *RosterService) slotFor(b *models.Battle, userID string, p models.PoolPlayer) string {
	open := s.openSlots(b, userID)
	budget := b.Settings.SalaryCap
	spent := s.draftSpent(b, userID)
	taken := draftTaken(b.Draft)
	taken[p.PlayerID] = true
	for i, slot := range open {
		if !models.SlotAccepts(slot, p.Position) {
			continue
		}
		rest := append(append([]string(nil), open[:i]...), open[i+1:]...)
		reserve, ok := s.minCost(rest, taken)
		if !ok {
			continue
		}
		if budget > 0 && spent+p.Salary+reserve > budget {
			continue
		}
		return slot
	}
	return ""
}

// Pick records userID's draft pick. It must be userID's turn.
func (s *RosterService) Pick(b *models.Battle, userID, playerID string, now time.Time) error {
	if b.Draft == nil || b.Status != models.BattleStatusDrafting {
		return newError(CodeInvalidState, "battle is not drafting")
	}
	if !b.HasUser(userID) {
		return ErrNotParticipant
	}
	if next := b.Draft.NextDrafter(); next != userID {
		return newError(CodeInvalidState, "it is %s's pick", next)
	}
	p, ok := s.poolPlayer(playerID)
	if !ok {
		return notFound("player", playerID)
	}
	if b.Draft.Taken(playerID) {
		return newError(CodeInvalidState, "player %s already drafted", playerID)
	}
	slot := s.slotFor(b, userID, p)
	if slot == "" {
		return newError(CodeCapacityExceeded, "no open slot for %s %s within the salary cap", p.Position, playerID)
	}
	s.recordPick(b, userID, playerID, slot, false, now)
	return nil
}

func (s *RosterService) recordPick(b *models.Battle, userID, playerID, slot string, auto bool, now time.Time) {
	b.Draft.Picks = append(b.Draft.Picks, models.DraftPick{
		UserID: userID, PlayerID: playerID, Slot: slot, Auto: auto, At: now,
	})
	b.Draft.Deadline = now.Add(b.Settings.DraftTimeLimit)
}

// AutoPick makes the best available pick for whoever is on the clock.
func (s *RosterService) AutoPick(b *models.Battle, now time.Time) error {
	userID := b.Draft.NextDrafter()
	if userID == "" {
		return nil
	}
	candidates := append([]models.PoolPlayer(nil), s.pool...)
	byProjection(candidates)
	for _, p := range candidates {
		if b.Draft.Taken(p.PlayerID) {
			continue
		}
		if slot := s.slotFor(b, userID, p); slot != "" {
			s.recordPick(b, userID, p.PlayerID, slot, true, now)
			return nil
		}
	}
	return newError(CodeCapacityExceeded, "player pool exhausted while drafting for %s", userID)
}

// AutoDraft completes every remaining pick.
func (s *RosterService) AutoDraft(b *models.Battle, now time.Time) error {
	for !b.Draft.Done() {
		if err := s.AutoPick(b, now); err != nil {
			return err
		}
	}
	return nil
}

// FinishDraft turns the picks into rosters and fills benches from undrafted players.
func (s *RosterService) FinishDraft(b *models.Battle) error {
	if b.Draft == nil || !b.Draft.Done() {
		return newError(CodeInvalidState, "draft is not complete")
	}
	taken := draftTaken(b.Draft)
	rest := append([]models.PoolPlayer(nil), s.pool...)
	byProjection(rest)

	for _, part := range b.Participants {
		roster := &models.Roster{Formation: models.FormationStd}
		for _, pk := range b.Draft.Picks {
			if pk.UserID != part.UserID {
				continue
			}
			p, _ := s.poolPlayer(pk.PlayerID)
			roster.Players = append(roster.Players, rosterPlayer(p, pk.Slot))
		}
		roster.RecomputeSalary()
		for _, p := range rest {
			if len(roster.Bench) >= b.Settings.BenchSize {
				break
			}
			if taken[p.PlayerID] || !models.SlotAccepts(models.SlotFlex, p.Position) {
				continue
			}
			if b.Settings.SalaryCap > 0 && roster.TotalSalary+p.Salary > b.Settings.SalaryCap {
				continue
			}
			taken[p.PlayerID] = true
			roster.Bench = append(roster.Bench, rosterPlayer(p, models.SlotBench))
			roster.RecomputeSalary()
		}
		assignCaptains(roster)
		part.Roster = roster
	}
	return nil
}
