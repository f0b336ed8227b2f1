package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"battle-engine/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultRegistrationWindow = 7 * 24 * time.Hour
	DefaultRoundLength        = 7 * 24 * time.Hour
	RoundGap                  = 24 * time.Hour
	MaxTournamentSize         = 64
)

type TournamentRequest struct {
	Name               string                   `json:"name"`
	Format             models.TournamentFormat  `json:"format"`
	Size               int                      `json:"size"`
	PrizeTable         []models.PrizeTableEntry `json:"prize_table,omitempty"`
	MinRating          int                      `json:"min_rating,omitempty"`
	BattleSettings     *models.BattleSettings   `json:"battle_settings,omitempty"`
	RegistrationWindow time.Duration            `json:"registration_window,omitempty"`
	RoundLength        time.Duration            `json:"round_length,omitempty"`
}

// TournamentService runs brackets and drives their matches through BattleService.
type TournamentService struct {
	store   TournamentStore
	battles *BattleService
	ladder  *LadderService
	prizes  *PrizeService
	bus     *EventBus
	clock   clockwork.Clock
	locks   *keyedMutex
}

func NewTournamentService(store TournamentStore, battles *BattleService, ladder *LadderService, prizes *PrizeService, bus *EventBus, clock clockwork.Clock) *TournamentService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &TournamentService{
		store:   store,
		battles: battles,
		ladder:  ladder,
		prizes:  prizes,
		bus:     bus,
		clock:   clock,
		locks:   newKeyedMutex(),
	}
	battles.OnComplete(s.onBattleComplete)
	return s
}

// buildSchedule lays out rounds back to back with a one-day gap, starting at start.
func buildSchedule(start time.Time, rounds int, length time.Duration) []models.ScheduledRound {
	out := make([]models.ScheduledRound, rounds)
	for i := range out {
		begin := start.Add(time.Duration(i) * (length + RoundGap))
		out[i] = models.ScheduledRound{Number: i + 1, Start: begin, End: begin.Add(length)}
	}
	return out
}

func roundLength(t *models.Tournament) time.Duration {
	if len(t.Schedule.Rounds) > 0 {
		if d := t.Schedule.Rounds[0].End.Sub(t.Schedule.Rounds[0].Start); d > 0 {
			return d
		}
	}
	return DefaultRoundLength
}

// CreateTournament opens registration for a new tournament.
func (s *TournamentService) CreateTournament(ctx context.Context, name string, format models.TournamentFormat, size int, prizeTable []models.PrizeTableEntry) (*models.Tournament, error) {
	return s.Create(ctx, TournamentRequest{Name: name, Format: format, Size: size, PrizeTable: prizeTable})
}

func (s *TournamentService) Create(ctx context.Context, req TournamentRequest) (*models.Tournament, error) {
	if req.Name == "" {
		return nil, newError(CodeInvalidArgument, "tournament name is required")
	}
	if req.Format == "" {
		req.Format = models.FormatSingleElimination
	}
	if !req.Format.Valid() {
		return nil, newError(CodeInvalidArgument, "unknown tournament format %q", req.Format)
	}
	if req.Size < 2 || req.Size > MaxTournamentSize {
		return nil, newError(CodeInvalidArgument, "tournament size must be between 2 and %d", MaxTournamentSize)
	}
	if err := s.prizes.Validate(req.PrizeTable); err != nil {
		return nil, err
	}
	if req.BattleSettings != nil {
		st := *req.BattleSettings
		st.Capacity = models.MinCapacity
		if err := s.battles.ValidateSettings(models.BattleTypeTournament, models.BattleFormatClassic, st); err != nil {
			return nil, fmt.Errorf("tournament battle settings: %w", err)
		}
	}
	if req.RegistrationWindow <= 0 {
		req.RegistrationWindow = DefaultRegistrationWindow
	}
	if req.RoundLength <= 0 {
		req.RoundLength = DefaultRoundLength
	}

	now := s.clock.Now()
	id := uuid.NewString()
	closes := now.Add(req.RegistrationWindow)
	rounds := scheduledRounds(req.Format, req.Size)
	t := &models.Tournament{
		ID:           id,
		Name:         req.Name,
		Slug:         slug.Make(req.Name) + "-" + id[:8],
		Format:       req.Format,
		Size:         req.Size,
		Status:       models.TournamentStatusRegistration,
		PrizeTable:   req.PrizeTable,
		Requirements: models.TournamentRequirements{MinRating: req.MinRating},
		TotalRounds:  rounds,
		Schedule: models.TournamentSchedule{
			RegistrationOpens:  now,
			RegistrationCloses: closes,
			Rounds:             buildSchedule(closes.Add(RoundGap), rounds, req.RoundLength),
		},
		BattleSettings: req.BattleSettings,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.SaveTournament(ctx, t); err != nil {
		return nil, fmt.Errorf("save tournament: %w", err)
	}
	s.bus.PublishAll([]Event{{
		Type:         EventTournamentCreated,
		TournamentID: t.ID,
		Data:         map[string]any{"name": t.Name, "format": t.Format, "size": t.Size},
		At:           now,
	}})
	log.Printf("[Tournament] created %s (%s, %s, size %d)", t.Slug, t.ID, t.Format, t.Size)
	return t, nil
}

func (s *TournamentService) GetTournament(ctx context.Context, id string) (*models.Tournament, error) {
	return s.store.GetTournament(ctx, id)
}

func (s *TournamentService) ListTournaments(ctx context.Context, statuses ...models.TournamentStatus) ([]*models.Tournament, error) {
	return s.store.ListTournaments(ctx, statuses...)
}

// withTournament runs fn under the tournament lock and saves when fn reports a change.
func (s *TournamentService) withTournament(ctx context.Context, id string, fn func(t *models.Tournament) (bool, error)) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	t, err := s.store.GetTournament(ctx, id)
	if err != nil {
		return err
	}
	changed, err := fn(t)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	t.UpdatedAt = s.clock.Now()
	if err := s.store.SaveTournament(ctx, t); err != nil {
		return fmt.Errorf("save tournament %s: %w", id, err)
	}
	return nil
}

// JoinTournament registers userID. The entrant that fills the field closes
// registration and starts round 1.
func (s *TournamentService) JoinTournament(ctx context.Context, tournamentID, userID string) error {
	if userID == "" {
		return newError(CodeInvalidArgument, "user id is required")
	}
	return s.withTournament(ctx, tournamentID, func(t *models.Tournament) (bool, error) {
		now := s.clock.Now()
		if t.Status != models.TournamentStatusRegistration {
			return false, newError(CodeRegistrationClosed, "tournament %s already started", t.ID)
		}
		if now.After(t.Schedule.RegistrationCloses) {
			return false, newError(CodeRegistrationClosed, "registration for %s closed at %s", t.ID, t.Schedule.RegistrationCloses.Format(time.RFC3339))
		}
		if t.Entrant(userID) != nil {
			return false, newError(CodeInvalidState, "%s is already registered", userID)
		}
		if len(t.Entrants) >= t.Size {
			return false, newError(CodeRegistrationClosed, "tournament %s is full", t.ID)
		}

		rating, ok, err := s.ladder.Rating(ctx, userID)
		if err != nil {
			return false, err
		}
		if t.Requirements.MinRating > 0 {
			effective := rating
			if !ok {
				effective = models.InitialRating
			}
			if effective < t.Requirements.MinRating {
				return false, &Error{
					Code:    CodeRequirementsNotMet,
					Message: fmt.Sprintf("rating %d is below the required %d", effective, t.Requirements.MinRating),
					Metadata: map[string]string{
						"rating":     fmt.Sprint(effective),
						"min_rating": fmt.Sprint(t.Requirements.MinRating),
					},
				}
			}
		}

		t.Entrants = append(t.Entrants, models.TournamentEntrant{UserID: userID, Rating: rating, JoinedAt: now})
		if len(t.Entrants) == t.Size {
			if err := s.begin(ctx, t); err != nil {
				return false, err
			}
		}
		return true, nil
	})
}

// CloseRegistration seeds the bracket with whoever registered.
func (s *TournamentService) CloseRegistration(ctx context.Context, tournamentID string) error {
	return s.withTournament(ctx, tournamentID, func(t *models.Tournament) (bool, error) {
		if t.Status != models.TournamentStatusRegistration {
			return false, newError(CodeInvalidState, "tournament %s is not in registration", t.ID)
		}
		if len(t.Entrants) < 2 {
			return false, newError(CodeInvalidState, "tournament %s needs at least 2 entrants", t.ID)
		}
		return true, s.begin(ctx, t)
	})
}

// begin seeds entrants, builds the bracket and starts round 1.
func (s *TournamentService) begin(ctx context.Context, t *models.Tournament) error {
	seedEntrants(t.Entrants)
	n := len(t.Entrants)
	switch t.Format {
	case models.FormatSingleElimination:
		t.Bracket = buildSingleElimination(t.Entrants)
	case models.FormatRoundRobin:
		t.Bracket = buildRoundRobin(t.Entrants)
	case models.FormatSwiss:
		t.Bracket = models.Bracket{Rounds: []models.BracketRound{swissRound(t, 1)}}
		s.creditByes(t, 1)
	case models.FormatDoubleElimination:
		round, _ := doubleEliminationRound(t, 1)
		t.Bracket = models.Bracket{Rounds: []models.BracketRound{round}}
	}
	t.TotalRounds = scheduledRounds(t.Format, n)
	now := s.clock.Now()
	t.Schedule.Rounds = buildSchedule(now, t.TotalRounds, roundLength(t))
	t.Status = models.TournamentStatusInProgress
	t.CurrentRound = 1
	log.Printf("[Tournament] %s seeded %d entrants, %d rounds", t.ID, n, t.TotalRounds)
	return s.startRound(ctx, t)
}

// creditByes counts a swiss bye as a win.
func (s *TournamentService) creditByes(t *models.Tournament, round int) {
	r := t.Round(round)
	if r == nil || t.Format != models.FormatSwiss {
		return
	}
	for _, m := range r.Matches {
		if m.Bye {
			t.Entrant(m.CompetitorA).Wins++
		}
	}
}

// StartTournamentRound creates battles for every ready match of the current round.
func (s *TournamentService) StartTournamentRound(ctx context.Context, tournamentID string) error {
	return s.withTournament(ctx, tournamentID, func(t *models.Tournament) (bool, error) {
		if t.Status != models.TournamentStatusInProgress {
			return false, newError(CodeInvalidState, "tournament %s is not in progress", t.ID)
		}
		return true, s.startRound(ctx, t)
	})
}

func (s *TournamentService) battleSettings(t *models.Tournament) models.BattleSettings {
	var st models.BattleSettings
	if t.BattleSettings != nil {
		st = *t.BattleSettings
	}
	st.Capacity = models.MinCapacity
	if st.RoundDuration <= 0 {
		st.RoundDuration = roundLength(t)
	}
	return st
}

// startRound creates a battle for every ready match of the current round. Either
// every match gets its battle or none does: on failure the battles created so
// far are discarded, so a retry never plays a match twice.
func (s *TournamentService) startRound(ctx context.Context, t *models.Tournament) error {
	r := t.Round(t.CurrentRound)
	if r == nil {
		return nil
	}
	var started []int
	for i := range r.Matches {
		m := &r.Matches[i]
		if !m.Ready() || m.BattleID != "" {
			continue
		}
		if err := s.startMatch(ctx, t, r.Number, m); err != nil {
			s.rollback(ctx, t, r, append(started, i))
			return err
		}
		started = append(started, i)
	}
	return nil
}

func (s *TournamentService) startMatch(ctx context.Context, t *models.Tournament, round int, m *models.BracketMatch) error {
	settings := s.battleSettings(t)
	b, err := s.battles.CreateBattle(ctx, CreateBattleRequest{
		CreatorID:    m.CompetitorA,
		Type:         models.BattleTypeTournament,
		Format:       models.BattleFormatClassic,
		Settings:     &settings,
		Invitees:     []string{m.CompetitorB},
		TournamentID: t.ID,
		BracketRound: round,
		BracketMatch: m.Number,
	})
	if err != nil {
		return fmt.Errorf("battle for match %d.%d: %w", round, m.Number, err)
	}
	m.BattleID = b.ID
	m.Status = models.MatchStatusPlaying
	if err := s.battles.JoinBattle(ctx, b.ID, m.CompetitorB); err != nil {
		return fmt.Errorf("seat %s in %s: %w", m.CompetitorB, b.ID, err)
	}
	return nil
}

// rollback discards the battles of the given matches and puts them back to pending.
func (s *TournamentService) rollback(ctx context.Context, t *models.Tournament, r *models.BracketRound, idx []int) {
	for _, i := range idx {
		m := &r.Matches[i]
		if m.BattleID == "" {
			continue
		}
		err := s.battles.discard(ctx, m.BattleID, func(b *models.Battle) bool {
			return b.TournamentID == t.ID && b.Status != models.BattleStatusCompleted
		})
		if err != nil && !errors.Is(err, ErrNotFound) {
			log.Printf("[Tournament] %s: discarding battle %s of match %d.%d: %v", t.ID, m.BattleID, r.Number, m.Number, err)
		}
		m.BattleID = ""
		m.Status = models.MatchStatusPending
	}
}

func (s *TournamentService) onBattleComplete(ctx context.Context, b *models.Battle) {
	if b.TournamentID == "" {
		return
	}
	var scoreA, scoreB float64
	if len(b.Participants) > 0 {
		scoreA = b.Participants[0].Score
	}
	if len(b.Participants) > 1 {
		scoreB = b.Participants[1].Score
	}
	if err := s.RecordMatchResult(ctx, b.TournamentID, b.BracketRound, b.BracketMatch, b.WinnerID, scoreA, scoreB); err != nil {
		log.Printf("[Tournament] recording battle %s for %s: %v", b.ID, b.TournamentID, err)
	}
}

// RecordMatchResult stores a match outcome, moves the winner on and, once the
// round is finished, opens the next round or completes the tournament.
func (s *TournamentService) RecordMatchResult(ctx context.Context, tournamentID string, round, match int, winnerID string, scoreA, scoreB float64) error {
	var completed *models.Tournament
	err := s.withTournament(ctx, tournamentID, func(t *models.Tournament) (bool, error) {
		if t.Status != models.TournamentStatusInProgress {
			return false, newError(CodeInvalidState, "tournament %s is not in progress", t.ID)
		}
		r := t.Round(round)
		if r == nil || match < 1 || match > len(r.Matches) {
			return false, notFound("match", fmt.Sprintf("%d.%d", round, match))
		}
		m := &r.Matches[match-1]
		if m.Status == models.MatchStatusCompleted {
			if m.WinnerID == winnerID {
				return false, nil
			}
			return false, newError(CodeInvalidState, "match %d.%d already decided", round, match)
		}
		if winnerID != m.CompetitorA && winnerID != m.CompetitorB {
			return false, newError(CodeInvalidArgument, "%s is not in match %d.%d", winnerID, round, match)
		}

		m.WinnerID, m.ScoreA, m.ScoreB = winnerID, scoreA, scoreB
		m.Status = models.MatchStatusCompleted
		loserID := m.Loser()
		w, l := t.Entrant(winnerID), t.Entrant(loserID)
		w.Wins++
		l.Losses++
		if winnerID == m.CompetitorA {
			w.PointsFor += scoreA
			l.PointsFor += scoreB
		} else {
			w.PointsFor += scoreB
			l.PointsFor += scoreA
		}
		switch t.Format {
		case models.FormatSingleElimination:
			l.EliminatedRound = round
			seed := m.SeedA
			if winnerID == m.CompetitorB {
				seed = m.SeedB
			}
			placeWinner(&t.Bracket, round, match-1, winnerID, seed)
		case models.FormatDoubleElimination:
			if l.Losses >= 2 {
				l.EliminatedRound = round
			}
		}

		if round != t.CurrentRound || !roundDone(r) {
			return true, nil
		}
		done, err := s.advance(ctx, t)
		if err != nil {
			return false, err
		}
		if done {
			completed = t
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if completed != nil {
		s.award(ctx, completed)
	}
	return nil
}

func roundDone(r *models.BracketRound) bool {
	for _, m := range r.Matches {
		if m.Status != models.MatchStatusCompleted {
			return false
		}
	}
	return true
}

// advance opens the next round, or completes the tournament when there is none.
func (s *TournamentService) advance(ctx context.Context, t *models.Tournament) (bool, error) {
	next := t.CurrentRound + 1
	switch t.Format {
	case models.FormatSingleElimination:
		if next > len(t.Bracket.Rounds) {
			final := t.Bracket.Rounds[len(t.Bracket.Rounds)-1].Matches[0]
			return true, s.finish(t, final.WinnerID)
		}
	case models.FormatRoundRobin:
		if next > len(t.Bracket.Rounds) {
			return true, s.finish(t, standingsOrder(t.Entrants)[0].UserID)
		}
	case models.FormatSwiss:
		if next > t.TotalRounds {
			return true, s.finish(t, standingsOrder(t.Entrants)[0].UserID)
		}
		t.Bracket.Rounds = append(t.Bracket.Rounds, swissRound(t, next))
		s.creditByes(t, next)
	case models.FormatDoubleElimination:
		round, champion := doubleEliminationRound(t, next)
		if champion != "" {
			return true, s.finish(t, champion)
		}
		t.Bracket.Rounds = append(t.Bracket.Rounds, round)
		if next > len(t.Schedule.Rounds) {
			last := t.Schedule.Rounds[len(t.Schedule.Rounds)-1]
			begin := last.End.Add(RoundGap)
			t.Schedule.Rounds = append(t.Schedule.Rounds, models.ScheduledRound{Number: next, Start: begin, End: begin.Add(roundLength(t))})
			t.TotalRounds = len(t.Schedule.Rounds)
		}
	}
	t.CurrentRound = next
	if r := t.Round(next); r != nil && roundDone(r) {
		// every match was a bye
		return s.advance(ctx, t)
	}
	return false, s.startRound(ctx, t)
}

func (s *TournamentService) finish(t *models.Tournament, championID string) error {
	now := s.clock.Now()
	t.ChampionID = championID
	t.Status = models.TournamentStatusCompleted
	t.CompletedAt = &now
	finalRanks(t)
	log.Printf("[Tournament] %s completed, champion %s", t.ID, championID)
	return nil
}

// award grants the prize table and publishes completion. Runs after the tournament is saved.
func (s *TournamentService) award(ctx context.Context, t *models.Tournament) {
	standings := make([]Standing, 0, len(t.Entrants))
	ids := make([]string, 0, len(t.Entrants))
	for _, e := range t.Entrants {
		standings = append(standings, Standing{UserID: e.UserID, Rank: e.FinalRank})
		ids = append(ids, e.UserID)
	}
	if len(t.PrizeTable) > 0 {
		if _, err := s.prizes.Award(ctx, "tournament:"+t.ID, standings, t.PrizeTable); err != nil {
			log.Printf("[Tournament] prizes for %s: %v", t.ID, err)
		}
	}
	s.bus.PublishAll([]Event{{
		Type:         EventTournamentCompleted,
		TournamentID: t.ID,
		UserIDs:      ids,
		Data:         map[string]any{"champion_id": t.ChampionID},
		At:           s.clock.Now(),
	}})
}

// CheckTournaments closes registrations whose window has passed and restarts
// any ready match that has no battle yet.
func (s *TournamentService) CheckTournaments(ctx context.Context) {
	list, err := s.store.ListTournaments(ctx, models.TournamentStatusRegistration, models.TournamentStatusInProgress)
	if err != nil {
		log.Printf("[Tournament] monitor: %v", err)
		return
	}
	now := s.clock.Now()
	for _, t := range list {
		switch t.Status {
		case models.TournamentStatusRegistration:
			if !now.After(t.Schedule.RegistrationCloses) {
				continue
			}
			if len(t.Entrants) < 2 {
				log.Printf("[Tournament] %s closed with %d entrants, waiting", t.ID, len(t.Entrants))
				continue
			}
			if err := s.CloseRegistration(ctx, t.ID); err != nil {
				log.Printf("[Tournament] closing %s: %v", t.ID, err)
			}
		case models.TournamentStatusInProgress:
			if err := s.StartTournamentRound(ctx, t.ID); err != nil {
				log.Printf("[Tournament] restarting round of %s: %v", t.ID, err)
			}
		}
	}
}
