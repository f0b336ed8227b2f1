package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"battle-engine/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultRoundDuration = 24 * time.Hour
	DefaultScoringSystem = "ppr"
	DefaultHistoryLimit  = 20
	MaxHistoryLimit      = 100
)

type CreateBattleRequest struct {
	CreatorID string                   `json:"creator_id"`
	Type      models.BattleType        `json:"type"`
	Format    models.BattleFormat      `json:"format"`
	Settings  *models.BattleSettings   `json:"settings,omitempty"`
	Invitees  []string                 `json:"invitees,omitempty"`
	IsPublic  bool                     `json:"is_public"`
	Prizes    []models.PrizeTableEntry `json:"prizes,omitempty"`

	// set by the tournament service only
	TournamentID string `json:"-"`
	BracketRound int    `json:"-"`
	BracketMatch int    `json:"-"`
}

type HistoryQuery struct {
	Limit  int
	Offset int
	Type   models.BattleType
}

// CompletionHook runs after a battle completes, outside the battle lock.
type CompletionHook func(ctx context.Context, b *models.Battle)

type BattleOption func(*BattleService)

func WithClock(c clockwork.Clock) BattleOption {
	return func(s *BattleService) { s.clock = c }
}

func WithSocialNotifier(n SocialNotifier) BattleOption {
	return func(s *BattleService) { s.social = n }
}

func WithArchiver(a Archiver) BattleOption {
	return func(s *BattleService) { s.archiver = a }
}

func WithPlayerPool(pool []models.PoolPlayer) BattleOption {
	return func(s *BattleService) { s.rosters = NewRosterService(pool) }
}

// WithRatedTypes replaces the battle types whose two-player results move ladder ratings.
func WithRatedTypes(types ...models.BattleType) BattleOption {
	return func(s *BattleService) {
		s.rated = make(map[models.BattleType]bool, len(types))
		for _, t := range types {
			s.rated[t] = true
		}
	}
}

type BattleService struct {
	store    BattleStore
	ladder   *LadderService
	prizes   *PrizeService
	rosters  *RosterService
	scoring  *ScoringService
	powerUps *PowerUpService
	bus      *EventBus
	social   SocialNotifier
	archiver Archiver
	clock    clockwork.Clock
	locks    *keyedMutex
	rated    map[models.BattleType]bool

	hooksMu sync.RWMutex
	hooks   []CompletionHook
}

func NewBattleService(store BattleStore, ladder *LadderService, prizes *PrizeService, feed ScoreFeed, bus *EventBus, opts ...BattleOption) *BattleService {
	s := &BattleService{
		store:    store,
		ladder:   ladder,
		prizes:   prizes,
		rosters:  NewRosterService(nil),
		scoring:  NewScoringService(feed),
		powerUps: NewPowerUpService(),
		bus:      bus,
		social:   LogNotifier{},
		archiver: noopArchiver{},
		clock:    clockwork.NewRealClock(),
		locks:    newKeyedMutex(),
		rated:    map[models.BattleType]bool{models.BattleTypeLadder: true},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnComplete registers a hook run after every battle completion.
func (s *BattleService) OnComplete(h CompletionHook) {
	s.hooksMu.Lock()
	s.hooks = append(s.hooks, h)
	s.hooksMu.Unlock()
}

func (s *BattleService) runHooks(ctx context.Context, b *models.Battle) {
	s.hooksMu.RLock()
	hooks := append([]CompletionHook(nil), s.hooks...)
	s.hooksMu.RUnlock()
	for _, h := range hooks {
		h(ctx, b)
	}
}

func (s *BattleService) PowerUps() *PowerUpService { return s.powerUps }
func (s *BattleService) Rosters() *RosterService   { return s.rosters }

// mutation collects what an operation did so the shared tail can persist and publish it.
type mutation struct {
	dirty     bool
	completed bool
	events    []Event
}

func (m *mutation) emit(e Event) {
	m.events = append(m.events, e)
}

func (s *BattleService) event(t EventType, b *models.Battle, data map[string]any) Event {
	return Event{
		Type:         t,
		BattleID:     b.ID,
		TournamentID: b.TournamentID,
		UserIDs:      participantIDs(b),
		Data:         data,
		At:           s.clock.Now(),
	}
}

// transition moves b to next and records the status event.
func (s *BattleService) transition(b *models.Battle, next models.BattleStatus, m *mutation) error {
	if !b.Status.CanTransitionTo(next) {
		return newError(CodeInvalidState, "battle %s cannot move from %s to %s", b.ID, b.Status, next)
	}
	prev := b.Status
	b.Status = next
	m.dirty = true
	m.emit(s.event(EventBattleStatusChanged, b, map[string]any{"from": prev, "to": next}))
	return nil
}

// mutate loads the battle under its lock, applies fn, then saves, runs
// completion side effects and publishes. Completion hooks run after unlock.
func (s *BattleService) mutate(ctx context.Context, id string, fn func(b *models.Battle, m *mutation) error) (*models.Battle, error) {
	unlock := s.locks.Lock(id)
	b, m, err := s.mutateLocked(ctx, id, fn)
	unlock()
	if err != nil {
		return nil, err
	}
	if m.completed {
		s.runHooks(ctx, b)
	}
	return b, nil
}

func (s *BattleService) mutateLocked(ctx context.Context, id string, fn func(b *models.Battle, m *mutation) error) (*models.Battle, *mutation, error) {
	b, err := s.store.GetBattle(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	m := &mutation{}
	if err := fn(b, m); err != nil {
		return nil, nil, err
	}
	if m.dirty {
		b.UpdatedAt = s.clock.Now()
		if err := s.store.SaveBattle(ctx, b); err != nil {
			return nil, nil, fmt.Errorf("save battle %s: %w", id, err)
		}
	}
	if m.completed {
		s.afterCompletion(ctx, b)
	}
	s.bus.PublishAll(m.events)
	return b, m, nil
}

// normalize fills defaults and derives the round count.
func (s *BattleService) normalize(req CreateBattleRequest) (models.BattleSettings, int, error) {
	var st models.BattleSettings
	if req.Settings != nil {
		st = *req.Settings
	}
	if st.PowerUpsEnabled == nil {
		on := true
		st.PowerUpsEnabled = &on
	}
	if len(st.RosterRequirements) == 0 {
		st.RosterRequirements = models.DefaultRosterRequirements()
	}
	if st.SalaryCap < 0 {
		return st, 0, newError(CodeInvalidArgument, "salary cap must not be negative")
	}
	if st.SalaryCap == 0 {
		st.SalaryCap = models.DefaultSalaryCap
	}
	if st.ScoringSystem == "" {
		st.ScoringSystem = DefaultScoringSystem
	}
	if st.RoundDuration <= 0 {
		st.RoundDuration = DefaultRoundDuration
	}
	if st.BenchSize <= 0 {
		st.BenchSize = DefaultBenchSize
	}
	for _, id := range st.AllowedPowerUps {
		if _, ok := models.LookupPowerUp(id); !ok {
			return st, 0, &Error{Code: CodeUnknownPowerUp, Message: fmt.Sprintf("unknown power-up %s", id)}
		}
	}

	minCap, maxCap, defCap := models.MinCapacity, models.CustomMaxCapacity, models.DefaultCustomCapacity
	switch req.Type {
	case models.BattleTypeQuick:
		minCap, maxCap, defCap = models.QuickCapacity, models.QuickCapacity, models.QuickCapacity
	case models.BattleTypeLadder:
		maxCap, defCap = models.LadderMaxCapacity, models.MinCapacity
	case models.BattleTypeTournament:
		maxCap, defCap = models.TournamentMaxCapacity, models.MinCapacity
	}
	if st.Capacity == 0 {
		st.Capacity = defCap
	}
	if st.Capacity > maxCap {
		return st, 0, newError(CodeCapacityExceeded, "%s battles hold at most %d participants", req.Type, maxCap)
	}
	if st.Capacity < minCap {
		return st, 0, newError(CodeInvalidArgument, "%s battles need at least %d participants", req.Type, minCap)
	}

	rounds := 1
	switch req.Type {
	case models.BattleTypeTournament:
		rounds = max(models.EliminationRounds(st.Capacity), 1)
	case models.BattleTypeCustom:
		rounds = st.Rounds
		if rounds <= 0 {
			rounds = models.DefaultCustomRounds
		}
	}
	if req.Type != models.BattleTypeCustom {
		st.Rounds = 0
	}
	return st, rounds, nil
}

// checkRosterable makes sure every participant can be rostered before anyone joins.
func (s *BattleService) checkRosterable(format models.BattleFormat, st models.BattleSettings) error {
	if format != models.BattleFormatDraft {
		_, err := s.rosters.AutoRoster(st, 0, nil)
		return err
	}
	trial := &models.Battle{Status: models.BattleStatusDrafting, Settings: st}
	for i := 0; i < st.Capacity; i++ {
		trial.Participants = append(trial.Participants, &models.Participant{UserID: fmt.Sprintf("seat-%d", i)})
	}
	s.rosters.StartDraft(trial, time.Time{})
	if err := s.rosters.AutoDraft(trial, time.Time{}); err != nil {
		return newError(CodeCapacityExceeded, "player pool cannot support a %d-team draft", st.Capacity)
	}
	return nil
}

// ValidateSettings runs the checks CreateBattle applies to settings, so callers
// that create battles later can reject impossible settings up front.
func (s *BattleService) ValidateSettings(typ models.BattleType, format models.BattleFormat, settings models.BattleSettings) error {
	st, _, err := s.normalize(CreateBattleRequest{Type: typ, Settings: &settings})
	if err != nil {
		return err
	}
	return s.checkRosterable(format, st)
}

func (s *BattleService) newParticipant(ctx context.Context, userID string, now time.Time) *models.Participant {
	p := &models.Participant{UserID: userID, JoinedAt: now}
	if s.ladder != nil {
		rating, ok, err := s.ladder.Rating(ctx, userID)
		if err != nil {
			log.Printf("[Battle] rating lookup for %s failed: %v", userID, err)
		} else if ok {
			p.Rating = rating
		}
	}
	return p
}

// CreateBattle creates a waiting battle with the creator as first participant.
func (s *BattleService) CreateBattle(ctx context.Context, req CreateBattleRequest) (*models.Battle, error) {
	if req.CreatorID == "" {
		return nil, newError(CodeInvalidArgument, "creator id is required")
	}
	if !req.Type.Valid() {
		return nil, newError(CodeInvalidArgument, "unknown battle type %q", req.Type)
	}
	if req.Format == "" {
		req.Format = models.BattleFormatClassic
	}
	if !req.Format.Valid() {
		return nil, newError(CodeInvalidArgument, "unknown battle format %q", req.Format)
	}
	settings, rounds, err := s.normalize(req)
	if err != nil {
		return nil, err
	}
	if err := s.checkRosterable(req.Format, settings); err != nil {
		return nil, err
	}
	if s.prizes != nil {
		if err := s.prizes.Validate(req.Prizes); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	b := &models.Battle{
		ID:           uuid.NewString(),
		Type:         req.Type,
		Format:       req.Format,
		Status:       models.BattleStatusWaiting,
		CreatorID:    req.CreatorID,
		IsPublic:     req.IsPublic,
		Invitees:     req.Invitees,
		Settings:     settings,
		TotalRounds:  rounds,
		Prizes:       req.Prizes,
		TournamentID: req.TournamentID,
		BracketRound: req.BracketRound,
		BracketMatch: req.BracketMatch,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	b.Participants = append(b.Participants, s.newParticipant(ctx, req.CreatorID, now))

	unlock := s.locks.Lock(b.ID)
	defer unlock()
	if err := s.store.SaveBattle(ctx, b); err != nil {
		return nil, fmt.Errorf("save battle %s: %w", b.ID, err)
	}
	s.bus.PublishAll([]Event{s.event(EventBattleCreated, b, map[string]any{
		"type": b.Type, "format": b.Format, "capacity": settings.Capacity, "creator_id": b.CreatorID,
	})})
	log.Printf("[Battle] created %s %s/%s by %s", b.ID, b.Type, b.Format, b.CreatorID)
	return b, nil
}

func (s *BattleService) GetBattle(ctx context.Context, id string) (*models.Battle, error) {
	return s.store.GetBattle(ctx, id)
}

func (s *BattleService) ListBattles(ctx context.Context, filter BattleFilter) ([]*models.Battle, error) {
	return s.store.ListBattles(ctx, filter)
}

func invited(b *models.Battle, userID string) bool {
	if b.IsPublic || len(b.Invitees) == 0 || userID == b.CreatorID {
		return true
	}
	for _, id := range b.Invitees {
		if id == userID {
			return true
		}
	}
	return false
}

// JoinBattle adds userID to a waiting battle. Filling the last seat starts it.
func (s *BattleService) JoinBattle(ctx context.Context, battleID, userID string) error {
	if userID == "" {
		return newError(CodeInvalidArgument, "user id is required")
	}
	_, err := s.mutate(ctx, battleID, func(b *models.Battle, m *mutation) error {
		if b.Status != models.BattleStatusWaiting {
			return ErrAlreadyStarted
		}
		if b.HasUser(userID) {
			return newError(CodeInvalidState, "%s already joined battle %s", userID, b.ID)
		}
		if len(b.Participants) >= b.Settings.Capacity {
			return ErrFull
		}
		if !invited(b, userID) {
			return newError(CodeNotParticipant, "%s is not invited to battle %s", userID, b.ID)
		}
		b.Participants = append(b.Participants, s.newParticipant(ctx, userID, s.clock.Now()))
		m.dirty = true
		if len(b.Participants) == b.Settings.Capacity {
			return s.start(ctx, b, m)
		}
		return nil
	})
	return err
}

// LeaveBattle removes userID from a waiting battle. A battle left empty is
// deleted; when the creator leaves, the earliest remaining joiner takes over.
func (s *BattleService) LeaveBattle(ctx context.Context, battleID, userID string) error {
	unlock := s.locks.Lock(battleID)
	defer unlock()

	b, err := s.store.GetBattle(ctx, battleID)
	if err != nil {
		return err
	}
	if b.Status != models.BattleStatusWaiting {
		return ErrAlreadyStarted
	}
	idx := -1
	for i, p := range b.Participants {
		if p.UserID == userID {
			idx = i
		}
	}
	if idx < 0 {
		return ErrNotParticipant
	}
	b.Participants = append(b.Participants[:idx], b.Participants[idx+1:]...)
	if len(b.Participants) == 0 {
		log.Printf("[Battle] %s deleted, last participant left", b.ID)
		return s.store.DeleteBattle(ctx, b.ID)
	}
	if b.CreatorID == userID {
		b.CreatorID = b.Participants[0].UserID
		log.Printf("[Battle] %s: creator %s left, %s takes over", b.ID, userID, b.CreatorID)
	}
	b.UpdatedAt = s.clock.Now()
	return s.store.SaveBattle(ctx, b)
}

// discard deletes a battle under its lock, provided ok still holds for its
// current state. It undoes battles created by a pairing or bracket step that failed.
func (s *BattleService) discard(ctx context.Context, id string, ok func(b *models.Battle) bool) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	b, err := s.store.GetBattle(ctx, id)
	if err != nil {
		return err
	}
	if !ok(b) {
		return newError(CodeInvalidState, "battle %s changed, not discarding it", id)
	}
	log.Printf("[Battle] discarded %s", id)
	return s.store.DeleteBattle(ctx, id)
}

// StartBattle starts a waiting battle with at least two participants. It is a
// no-op for battles that already left waiting.
func (s *BattleService) StartBattle(ctx context.Context, battleID string) error {
	_, err := s.mutate(ctx, battleID, func(b *models.Battle, m *mutation) error {
		if b.Status != models.BattleStatusWaiting {
			return nil
		}
		if len(b.Participants) < models.MinCapacity {
			return newError(CodeInvalidState, "battle %s needs at least %d participants", b.ID, models.MinCapacity)
		}
		if b.Type == models.BattleTypeTournament {
			b.TotalRounds = max(models.EliminationRounds(len(b.Participants)), 1)
		}
		return s.start(ctx, b, m)
	})
	return err
}

// start leaves waiting: draft battles go to drafting, others get rosters and go active.
func (s *BattleService) start(ctx context.Context, b *models.Battle, m *mutation) error {
	now := s.clock.Now()
	b.StartedAt = &now
	if b.Format == models.BattleFormatDraft {
		if err := s.transition(b, models.BattleStatusDrafting, m); err != nil {
			return err
		}
		s.rosters.StartDraft(b, now)
		if b.Settings.DraftTimeLimit > 0 {
			return nil
		}
		if err := s.rosters.AutoDraft(b, now); err != nil {
			return err
		}
		return s.finishDraft(ctx, b, m)
	}

	for i, p := range b.Participants {
		roster, err := s.rosters.AutoRoster(b.Settings, i, nil)
		if err != nil {
			return err
		}
		p.Roster = roster
	}
	return s.activate(ctx, b, m)
}

func (s *BattleService) finishDraft(ctx context.Context, b *models.Battle, m *mutation) error {
	if err := s.rosters.FinishDraft(b); err != nil {
		return err
	}
	return s.activate(ctx, b, m)
}

// activate validates rosters and opens round 1.
func (s *BattleService) activate(_ context.Context, b *models.Battle, m *mutation) error {
	for _, p := range b.Participants {
		if err := s.rosters.Validate(p.Roster, b.Settings); err != nil {
			return fmt.Errorf("roster for %s: %w", p.UserID, err)
		}
	}
	if err := s.transition(b, models.BattleStatusActive, m); err != nil {
		return err
	}
	now := s.clock.Now()
	b.CurrentRound = 1
	b.Rounds = []*models.BattleRound{openRound(b, 1, now)}
	m.emit(s.event(EventBattleStarted, b, map[string]any{
		"total_rounds": b.TotalRounds,
		"round_ends":   b.Rounds[0].EndDate,
	}))
	log.Printf("[Battle] %s started with %d participants, %d rounds", b.ID, len(b.Participants), b.TotalRounds)
	return nil
}

// DraftPick records a manual pick in a drafting battle.
func (s *BattleService) DraftPick(ctx context.Context, battleID, userID, playerID string) error {
	_, err := s.mutate(ctx, battleID, func(b *models.Battle, m *mutation) error {
		if err := s.rosters.Pick(b, userID, playerID, s.clock.Now()); err != nil {
			return err
		}
		m.dirty = true
		if b.Draft.Done() {
			return s.finishDraft(ctx, b, m)
		}
		return nil
	})
	return err
}

// UsePowerUp applies a power-up for userID in the current round.
func (s *BattleService) UsePowerUp(ctx context.Context, battleID, userID, powerUpID string, target models.PowerUpTarget) error {
	_, err := s.mutate(ctx, battleID, func(b *models.Battle, m *mutation) error {
		ev, err := s.powerUps.Apply(b, userID, powerUpID, target, s.clock.Now())
		if err != nil {
			return err
		}
		m.dirty = true
		m.emit(s.event(EventPowerUpUsed, b, map[string]any{
			"user_id":     userID,
			"power_up_id": powerUpID,
			"round":       b.CurrentRound,
			"target":      ev.Data["target"],
		}))
		return nil
	})
	return err
}

// UpdateBattleScores refreshes live scores and advances the round or the battle
// once the round end has passed. Feed failures defer advancement and are not errors.
func (s *BattleService) UpdateBattleScores(ctx context.Context, battleID string) error {
	_, err := s.mutate(ctx, battleID, func(b *models.Battle, m *mutation) error {
		now := s.clock.Now()
		switch b.Status {
		case models.BattleStatusDrafting:
			if b.Settings.DraftTimeLimit <= 0 || !now.After(b.Draft.Deadline) {
				return nil
			}
			if err := s.rosters.AutoPick(b, now); err != nil {
				return err
			}
			m.dirty = true
			if b.Draft.Done() {
				return s.finishDraft(ctx, b, m)
			}
			return nil
		case models.BattleStatusActive:
		default:
			return nil
		}

		fed := s.refreshScores(ctx, b, now)
		m.dirty = true
		r := b.ActiveRound()
		if !now.After(r.EndDate) || !fed {
			return nil
		}
		finalizeRound(b, r, now)
		m.emit(s.event(EventRoundCompleted, b, map[string]any{
			"round":       r.Number,
			"leaderboard": r.Leaderboard.Entries,
		}))
		if b.CurrentRound < b.TotalRounds {
			b.CurrentRound++
			revertExpiredSwaps(b, b.CurrentRound)
			b.Rounds = append(b.Rounds, openRound(b, b.CurrentRound, now))
			return nil
		}
		return s.complete(ctx, b, m)
	})
	return err
}

// complete ranks participants and applies the rating update. The ladder runs
// before the battle is saved so a ladder failure leaves the battle active for
// the next tick.
func (s *BattleService) complete(ctx context.Context, b *models.Battle, m *mutation) error {
	order := rankFinal(b)
	b.WinnerID = order[0].UserID

	if s.ladder != nil && s.rated[b.Type] && len(order) == 2 && order[0].Score != order[1].Score {
		_, err := s.ladder.RecordResult(ctx, MatchResult{
			BattleID:    b.ID,
			WinnerID:    order[0].UserID,
			LoserID:     order[1].UserID,
			WinnerScore: order[0].Score,
			LoserScore:  order[1].Score,
		})
		if err != nil {
			return fmt.Errorf("ladder update for %s: %w", b.ID, err)
		}
	}

	if err := s.transition(b, models.BattleStatusCompleted, m); err != nil {
		return err
	}
	now := s.clock.Now()
	b.CompletedAt = &now
	m.completed = true

	standings := make([]map[string]any, len(order))
	for i, p := range order {
		standings[i] = map[string]any{"user_id": p.UserID, "rank": p.Rank, "score": p.Score}
	}
	m.emit(s.event(EventBattleCompleted, b, map[string]any{
		"winner_id": b.WinnerID,
		"standings": standings,
	}))
	log.Printf("[Battle] %s completed, winner %s", b.ID, b.WinnerID)
	return nil
}

// afterCompletion grants prizes, notifies the social system and archives. Failures are logged.
func (s *BattleService) afterCompletion(ctx context.Context, b *models.Battle) {
	if s.prizes != nil && len(b.Prizes) > 0 {
		standings := make([]Standing, len(b.Participants))
		for i, p := range b.Participants {
			standings[i] = Standing{UserID: p.UserID, Rank: p.Rank}
		}
		if _, err := s.prizes.Award(ctx, "battle:"+b.ID, standings, b.Prizes); err != nil {
			log.Printf("[Battle] prizes for %s: %v", b.ID, err)
		}
	}

	for i := 0; i < len(b.Participants); i++ {
		for j := i + 1; j < len(b.Participants); j++ {
			a, c := b.Participants[i].UserID, b.Participants[j].UserID
			key := challengeKey(a, c)
			for _, uid := range []string{a, c} {
				if err := s.social.Notify(ctx, key, uid, "battle_completed", 1); err != nil {
					log.Printf("[Battle] social notify %s for %s: %v", key, uid, err)
				}
			}
		}
	}

	if err := s.archiver.Archive(ctx, b); err != nil {
		log.Printf("[Battle] archive %s: %v", b.ID, err)
	}
}

func challengeKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "h2h:" + a + ":" + b
}

// GetBattleHistory lists battles userID took part in, newest first.
func (s *BattleService) GetBattleHistory(ctx context.Context, userID string, q HistoryQuery) ([]*models.Battle, error) {
	if q.Type != "" && !q.Type.Valid() {
		return nil, newError(CodeInvalidArgument, "unknown battle type %q", q.Type)
	}
	if q.Limit <= 0 {
		q.Limit = DefaultHistoryLimit
	}
	q.Limit = min(q.Limit, MaxHistoryLimit)
	q.Offset = max(q.Offset, 0)
	return s.store.ListBattles(ctx, BattleFilter{UserID: userID, Type: q.Type, Limit: q.Limit, Offset: q.Offset})
}

// ListLiveBattles returns battles a score driver should tick.
func (s *BattleService) ListLiveBattles(ctx context.Context) ([]*models.Battle, error) {
	return s.store.ListBattles(ctx, BattleFilter{
		Statuses: []models.BattleStatus{models.BattleStatusDrafting, models.BattleStatusActive},
	})
}

// CheckRounds ticks every battle whose round or draft clock has run out and
// returns how many were ticked.
func (s *BattleService) CheckRounds(ctx context.Context) int {
	battles, err := s.ListLiveBattles(ctx)
	if err != nil {
		log.Printf("[Battle] round check: %v", err)
		return 0
	}
	now := s.clock.Now()
	ticked := 0
	for _, b := range battles {
		due := false
		switch b.Status {
		case models.BattleStatusActive:
			r := b.ActiveRound()
			due = r != nil && now.After(r.EndDate)
		case models.BattleStatusDrafting:
			due = b.Draft != nil && b.Settings.DraftTimeLimit > 0 && now.After(b.Draft.Deadline)
		}
		if !due {
			continue
		}
		if err := s.UpdateBattleScores(ctx, b.ID); err != nil {
			log.Printf("[Battle] round check %s: %v", b.ID, err)
			continue
		}
		ticked++
	}
	return ticked
}
