package services

import (
	"sort"

	"battle-engine/models"
)

// seedOrder returns the bracket positions of seeds 1..size so that the top
// seeds meet as late as possible: 1v8, 4v5, 2v7, 3v6 for eight.
func seedOrder(size int) []int {
	order := []int{1}
	for len(order) < size {
		n := len(order) * 2
		next := make([]int, 0, n)
		for _, s := range order {
			next = append(next, s, n+1-s)
		}
		order = next
	}
	return order
}

// seedEntrants orders entrants by rating, unrated last, registration order
// breaking ties, and assigns seeds 1..n.
func seedEntrants(entrants []models.TournamentEntrant) {
	sort.SliceStable(entrants, func(i, j int) bool { return entrants[i].Rating > entrants[j].Rating })
	for i := range entrants {
		entrants[i].Seed = i + 1
	}
}

// scheduledRounds is the number of calendar slots a format needs for n entrants.
func scheduledRounds(format models.TournamentFormat, n int) int {
	switch format {
	case models.FormatRoundRobin:
		if n%2 == 1 {
			return n
		}
		return max(n-1, 1)
	case models.FormatDoubleElimination:
		return 2*models.EliminationRounds(n) + 1
	}
	return max(models.EliminationRounds(n), 1)
}

func byeMatch(number int, label, userID string, seed int) models.BracketMatch {
	return models.BracketMatch{
		Number:      number,
		Bracket:     label,
		CompetitorA: userID,
		SeedA:       seed,
		WinnerID:    userID,
		Bye:         true,
		Status:      models.MatchStatusCompleted,
	}
}

// buildSingleElimination lays out every round. Round 1 byes are resolved and
// their winners already placed in round 2.
func buildSingleElimination(entrants []models.TournamentEntrant) models.Bracket {
	rounds := models.EliminationRounds(len(entrants))
	size := 1 << rounds
	order := seedOrder(size)

	var br models.Bracket
	for r := 1; r <= rounds; r++ {
		matches := make([]models.BracketMatch, size>>r)
		for i := range matches {
			matches[i] = models.BracketMatch{Number: i + 1, Status: models.MatchStatusPending}
		}
		br.Rounds = append(br.Rounds, models.BracketRound{Number: r, Matches: matches})
	}

	first := br.Rounds[0].Matches
	for i := range first {
		sa, sb := order[2*i], order[2*i+1]
		m := &first[i]
		if sa <= len(entrants) {
			m.CompetitorA, m.SeedA = entrants[sa-1].UserID, sa
		}
		if sb <= len(entrants) {
			m.CompetitorB, m.SeedB = entrants[sb-1].UserID, sb
		}
		if m.CompetitorB == "" {
			m.Bye = true
			m.WinnerID = m.CompetitorA
			m.Status = models.MatchStatusCompleted
		}
	}
	for i, m := range first {
		if m.Bye {
			placeWinner(&br, 1, i, m.WinnerID, m.SeedA)
		}
	}
	return br
}

// placeWinner moves the winner of match idx in round into its slot in round+1.
func placeWinner(br *models.Bracket, round, idx int, userID string, seed int) {
	if round >= len(br.Rounds) {
		return
	}
	next := &br.Rounds[round].Matches[idx/2]
	if idx%2 == 0 {
		next.CompetitorA, next.SeedA = userID, seed
	} else {
		next.CompetitorB, next.SeedB = userID, seed
	}
}

// buildRoundRobin schedules every pairing with the circle method.
func buildRoundRobin(entrants []models.TournamentEntrant) models.Bracket {
	ids := make([]string, len(entrants))
	seeds := make(map[string]int, len(entrants))
	for i, e := range entrants {
		ids[i] = e.UserID
		seeds[e.UserID] = e.Seed
	}
	var br models.Bracket
	for r := 1; r <= scheduledRounds(models.FormatRoundRobin, len(ids)); r++ {
		round := models.BracketRound{Number: r}
		for i, mu := range pairings(ids, r) {
			round.Matches = append(round.Matches, models.BracketMatch{
				Number:      i + 1,
				CompetitorA: mu.ParticipantA,
				CompetitorB: mu.ParticipantB,
				SeedA:       seeds[mu.ParticipantA],
				SeedB:       seeds[mu.ParticipantB],
				Status:      models.MatchStatusPending,
			})
		}
		br.Rounds = append(br.Rounds, round)
	}
	return br
}

func playedBefore(t *models.Tournament, a, b string) bool {
	for _, r := range t.Bracket.Rounds {
		for _, m := range r.Matches {
			if (m.CompetitorA == a && m.CompetitorB == b) || (m.CompetitorA == b && m.CompetitorB == a) {
				return true
			}
		}
	}
	return false
}

func hadBye(t *models.Tournament, userID string) bool {
	for _, r := range t.Bracket.Rounds {
		for _, m := range r.Matches {
			if m.Bye && m.CompetitorA == userID {
				return true
			}
		}
	}
	return false
}

// standingsOrder sorts by wins, points scored, then seed.
func standingsOrder(entrants []models.TournamentEntrant) []models.TournamentEntrant {
	out := append([]models.TournamentEntrant(nil), entrants...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.PointsFor != b.PointsFor {
			return a.PointsFor > b.PointsFor
		}
		return a.Seed < b.Seed
	})
	return out
}

// swissRound pairs round 1 top half against bottom half, later rounds by
// standings avoiding rematches where possible. Odd fields give the lowest
// player without a previous bye a bye.
func swissRound(t *models.Tournament, number int) models.BracketRound {
	var order []models.TournamentEntrant
	if number == 1 {
		order = append(order, t.Entrants...)
		sort.SliceStable(order, func(i, j int) bool { return order[i].Seed < order[j].Seed })
	} else {
		order = standingsOrder(t.Entrants)
	}

	round := models.BracketRound{Number: number}
	var bye *models.TournamentEntrant
	if len(order)%2 == 1 {
		byeIdx := len(order) - 1
		for i := len(order) - 1; i >= 0; i-- {
			if !hadBye(t, order[i].UserID) {
				byeIdx = i
				break
			}
		}
		e := order[byeIdx]
		bye = &e
		order = append(order[:byeIdx:byeIdx], order[byeIdx+1:]...)
	}

	add := func(a, b models.TournamentEntrant) {
		round.Matches = append(round.Matches, models.BracketMatch{
			Number:      len(round.Matches) + 1,
			CompetitorA: a.UserID,
			CompetitorB: b.UserID,
			SeedA:       a.Seed,
			SeedB:       b.Seed,
			Status:      models.MatchStatusPending,
		})
	}
	if number == 1 {
		half := len(order) / 2
		for i := 0; i < half; i++ {
			add(order[i], order[half+i])
		}
	} else {
		pairByStandings(t, order, add)
	}
	if bye != nil {
		round.Matches = append(round.Matches, byeMatch(len(round.Matches)+1, "", bye.UserID, bye.Seed))
	}
	return round
}

func pairByStandings(t *models.Tournament, order []models.TournamentEntrant, add func(a, b models.TournamentEntrant)) {
	paired := make([]bool, len(order))
	for i := range order {
		if paired[i] {
			continue
		}
		pick := -1
		for j := i + 1; j < len(order); j++ {
			if paired[j] {
				continue
			}
			if pick < 0 {
				pick = j
			}
			if !playedBefore(t, order[i].UserID, order[j].UserID) {
				pick = j
				break
			}
		}
		if pick < 0 {
			break
		}
		paired[i], paired[pick] = true, true
		add(order[i], order[pick])
	}
}

// doubleEliminationRound pairs the unbeaten and once-beaten groups. It returns
// a champion instead when only one competitor is left standing.
func doubleEliminationRound(t *models.Tournament, number int) (models.BracketRound, string) {
	var unbeaten, beaten []models.TournamentEntrant
	for _, e := range t.Entrants {
		switch e.Losses {
		case 0:
			unbeaten = append(unbeaten, e)
		case 1:
			beaten = append(beaten, e)
		}
	}
	round := models.BracketRound{Number: number}
	switch {
	case len(unbeaten)+len(beaten) == 1:
		if len(unbeaten) == 1 {
			return round, unbeaten[0].UserID
		}
		return round, beaten[0].UserID
	case len(unbeaten) <= 1 && len(unbeaten)+len(beaten) == 2:
		finalists := append(unbeaten, beaten...)
		round.Matches = append(round.Matches, models.BracketMatch{
			Number:      1,
			Bracket:     models.BracketFinal,
			CompetitorA: finalists[0].UserID,
			CompetitorB: finalists[1].UserID,
			SeedA:       finalists[0].Seed,
			SeedB:       finalists[1].Seed,
			Status:      models.MatchStatusPending,
		})
		return round, ""
	}

	group := func(label string, players []models.TournamentEntrant) {
		sort.SliceStable(players, func(i, j int) bool { return players[i].Seed < players[j].Seed })
		if len(players)%2 == 1 {
			top := players[0]
			players = players[1:]
			round.Matches = append(round.Matches, byeMatch(len(round.Matches)+1, label, top.UserID, top.Seed))
		}
		n := len(players)
		for i := 0; i < n/2; i++ {
			a, b := players[i], players[n-1-i]
			round.Matches = append(round.Matches, models.BracketMatch{
				Number:      len(round.Matches) + 1,
				Bracket:     label,
				CompetitorA: a.UserID,
				CompetitorB: b.UserID,
				SeedA:       a.Seed,
				SeedB:       b.Seed,
				Status:      models.MatchStatusPending,
			})
		}
	}
	group(models.BracketWinners, unbeaten)
	group(models.BracketLosers, beaten)
	return round, ""
}

// finalRanks assigns final positions once a tournament is decided.
func finalRanks(t *models.Tournament) {
	switch t.Format {
	case models.FormatSingleElimination:
		total := len(t.Bracket.Rounds)
		for i := range t.Entrants {
			e := &t.Entrants[i]
			switch {
			case e.UserID == t.ChampionID:
				e.FinalRank = 1
			case e.EliminatedRound > 0:
				e.FinalRank = 1<<(total-e.EliminatedRound) + 1
			}
		}
	case models.FormatDoubleElimination:
		order := append([]models.TournamentEntrant(nil), t.Entrants...)
		sort.SliceStable(order, func(i, j int) bool {
			a, b := order[i], order[j]
			if (a.UserID == t.ChampionID) != (b.UserID == t.ChampionID) {
				return a.UserID == t.ChampionID
			}
			if a.EliminatedRound != b.EliminatedRound {
				return a.EliminatedRound > b.EliminatedRound
			}
			if a.Wins != b.Wins {
				return a.Wins > b.Wins
			}
			return a.Seed < b.Seed
		})
		for i, e := range order {
			t.Entrant(e.UserID).FinalRank = i + 1
		}
	default:
		for i, e := range standingsOrder(t.Entrants) {
			t.Entrant(e.UserID).FinalRank = i + 1
		}
	}
}
