package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"battle-engine/models"
)

// Score thresholds that produce a milestone event the first time they are crossed
var Milestones = []float64{100, 200, 500}

// UpsetRatingGap is the minimum rating difference for a win to count as an upset
const UpsetRatingGap = 100

// pairings rotates participants with the circle method so every round gets
// fresh matchups. With an odd count one participant sits out each round.
func pairings(ids []string, round int) []models.Matchup {
	list := append([]string(nil), ids...)
	if len(list)%2 == 1 {
		list = append(list, "")
	}
	n := len(list)
	if n < 2 {
		return nil
	}
	rest := list[1:]
	shift := (round - 1) % len(rest)
	rotated := append(append([]string{list[0]}, rest[len(rest)-shift:]...), rest[:len(rest)-shift]...)

	var out []models.Matchup
	for i := 0; i < n/2; i++ {
		a, b := rotated[i], rotated[n-1-i]
		if a == "" || b == "" {
			continue
		}
		out = append(out, models.Matchup{ParticipantA: a, ParticipantB: b})
	}
	return out
}

func participantIDs(b *models.Battle) []string {
	ids := make([]string, len(b.Participants))
	for i, p := range b.Participants {
		ids[i] = p.UserID
	}
	return ids
}

func openRound(b *models.Battle, n int, now time.Time) *models.BattleRound {
	r := &models.BattleRound{
		Number:    n,
		StartDate: now,
		EndDate:   now.Add(b.Settings.RoundDuration),
		Matchups:  pairings(participantIDs(b), n),
	}
	for _, p := range b.Participants {
		for len(p.RoundScores) < n {
			p.RoundScores = append(p.RoundScores, 0)
		}
	}
	rankLeaderboard(b, r)
	return r
}

func sum(vals []float64) float64 {
	total := 0.0
	for _, v := range vals {
		total += v
	}
	return total
}

// refreshScores recomputes every participant's score for the active round.
// Participants whose feed call fails keep their last score; ok is false if any failed.
func (s *BattleService) refreshScores(ctx context.Context, b *models.Battle, now time.Time) (ok bool) {
	r := b.ActiveRound()
	if r == nil {
		return false
	}
	ok = true
	for _, p := range b.Participants {
		score, err := s.scoring.ScoreParticipant(ctx, b, p, r.Number)
		if err != nil {
			log.Printf("[Battle] %s: keeping last score for %s: %v", b.ID, p.UserID, err)
			ok = false
			continue
		}
		p.RoundScores[r.Number-1] = score
		p.Score = roundPoints(sum(p.RoundScores))
		if score > p.Stats.HighestScore {
			p.Stats.HighestScore = score
		}
		for _, m := range Milestones {
			if p.Score >= m && !hasMilestone(b, p.UserID, m) {
				r.Events = append(r.Events, models.BattleEvent{
					Type:    models.BattleEventMilestone,
					UserID:  p.UserID,
					Message: fmt.Sprintf("%s passed %.0f points", p.UserID, m),
					Data:    map[string]string{"threshold": fmt.Sprintf("%.0f", m)},
					At:      now,
				})
			}
		}
	}
	for i := range r.Matchups {
		m := &r.Matchups[i]
		m.ScoreA = b.Participant(m.ParticipantA).RoundScores[r.Number-1]
		m.ScoreB = b.Participant(m.ParticipantB).RoundScores[r.Number-1]
		m.Margin = roundPoints(abs(m.ScoreA - m.ScoreB))
	}
	rankLeaderboard(b, r)
	return ok
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func hasMilestone(b *models.Battle, userID string, threshold float64) bool {
	want := fmt.Sprintf("%.0f", threshold)
	for _, r := range b.Rounds {
		for _, e := range r.Events {
			if e.Type == models.BattleEventMilestone && e.UserID == userID && e.Data["threshold"] == want {
				return true
			}
		}
	}
	return false
}

// rankLeaderboard orders the round by round score; equal scores share a rank.
func rankLeaderboard(b *models.Battle, r *models.BattleRound) {
	entries := make([]models.LeaderboardEntry, 0, len(b.Participants))
	high, total := 0.0, 0.0
	for i, p := range b.Participants {
		score := 0.0
		if r.Number-1 < len(p.RoundScores) {
			score = p.RoundScores[r.Number-1]
		}
		if i == 0 || score > high {
			high = score
		}
		total += score
		entries = append(entries, models.LeaderboardEntry{UserID: p.UserID, Score: score})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	for i := range entries {
		if i > 0 && entries[i].Score == entries[i-1].Score {
			entries[i].Rank = entries[i-1].Rank
		} else {
			entries[i].Rank = i + 1
		}
	}
	r.Leaderboard.Entries = entries
	r.Leaderboard.HighScore = high
	if len(entries) > 0 {
		r.Leaderboard.AverageScore = roundPoints(total / float64(len(entries)))
	}
}

// finalizeRound decides every matchup. A tie has no winner and credits no round win.
func finalizeRound(b *models.Battle, r *models.BattleRound, now time.Time) {
	for i := range r.Matchups {
		m := &r.Matchups[i]
		if m.ScoreA == m.ScoreB {
			m.Tied = true
			m.WinnerID = ""
			continue
		}
		winnerID, loserID := m.ParticipantA, m.ParticipantB
		if m.ScoreB > m.ScoreA {
			winnerID, loserID = loserID, winnerID
		}
		m.WinnerID = winnerID
		w, l := b.Participant(winnerID), b.Participant(loserID)
		w.Stats.RoundsWon++

		if r.Number > 1 {
			wBefore := w.Score - w.RoundScores[r.Number-1]
			lBefore := l.Score - l.RoundScores[r.Number-1]
			if wBefore < lBefore {
				w.Stats.Comebacks++
				r.Events = append(r.Events, models.BattleEvent{
					Type:    models.BattleEventComeback,
					UserID:  winnerID,
					Message: fmt.Sprintf("%s came back to beat %s", winnerID, loserID),
					Data:    map[string]string{"opponent": loserID, "deficit": fmt.Sprintf("%.2f", lBefore-wBefore)},
					At:      now,
				})
			}
		}
		if w.Rating > 0 && l.Rating > 0 && l.Rating-w.Rating >= UpsetRatingGap {
			r.Events = append(r.Events, models.BattleEvent{
				Type:    models.BattleEventUpset,
				UserID:  winnerID,
				Message: fmt.Sprintf("%s (%d) upset %s (%d)", winnerID, w.Rating, loserID, l.Rating),
				Data:    map[string]string{"opponent": loserID, "rating_gap": fmt.Sprint(l.Rating - w.Rating)},
				At:      now,
			})
		}
	}
	r.Completed = true
}

// rankFinal assigns ranks 1..N by total score, then rounds won, then join order.
func rankFinal(b *models.Battle) []*models.Participant {
	order := append([]*models.Participant(nil), b.Participants...)
	sort.SliceStable(order, func(i, j int) bool {
		a, c := order[i], order[j]
		if a.Score != c.Score {
			return a.Score > c.Score
		}
		return a.Stats.RoundsWon > c.Stats.RoundsWon
	})
	for i, p := range order {
		p.Rank = i + 1
	}
	return order
}
