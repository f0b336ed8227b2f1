package services

import (
	"fmt"
	"log"
	"time"

	"battle-engine/models"
)

// PowerUpService enforces cooldowns and installs effects on a battle. It holds
// no state; callers serialize access through the battle lock.
type PowerUpService struct {
	catalog map[string]models.PowerUp
}

func NewPowerUpService() *PowerUpService {
	return &PowerUpService{catalog: models.PowerUpCatalog}
}

func (s *PowerUpService) Catalog() []models.PowerUp {
	return models.PowerUps()
}

func (s *PowerUpService) lookup(id string) (models.PowerUp, bool) {
	p, ok := s.catalog[id]
	return p, ok
}

// CooldownRemaining returns how many rounds the participant still has to wait
// before using pu in round. Zero means usable.
func CooldownRemaining(p *models.Participant, pu models.PowerUp, round int) int {
	last := 0
	for _, u := range p.PowerUpsUsed {
		if u.PowerUpID == pu.ID && u.Round > last {
			last = u.Round
		}
	}
	if last == 0 {
		return 0
	}
	remaining := last + pu.Cooldown - round
	if remaining < 0 {
		return 0
	}
	return remaining
}

func allowed(settings models.BattleSettings, id string) bool {
	if len(settings.AllowedPowerUps) == 0 {
		return true
	}
	for _, a := range settings.AllowedPowerUps {
		if a == id {
			return true
		}
	}
	return false
}

// Apply validates a power-up use in the battle's current round, installs its
// effect, records the usage and returns the appended battle event.
func (s *PowerUpService) Apply(b *models.Battle, userID, powerUpID string, target models.PowerUpTarget, now time.Time) (models.BattleEvent, error) {
	if b.Status != models.BattleStatusActive {
		return models.BattleEvent{}, ErrNotActive
	}
	p := b.Participant(userID)
	if p == nil {
		return models.BattleEvent{}, ErrNotParticipant
	}
	pu, ok := s.lookup(powerUpID)
	if !ok {
		return models.BattleEvent{}, &Error{Code: CodeUnknownPowerUp, Message: fmt.Sprintf("unknown power-up %s", powerUpID)}
	}
	if !b.Settings.PowerUpsOn() {
		return models.BattleEvent{}, newError(CodeInvalidState, "power-ups are disabled in this battle")
	}
	if !allowed(b.Settings, powerUpID) {
		return models.BattleEvent{}, newError(CodeInvalidState, "power-up %s is not allowed in this battle", powerUpID)
	}
	round := b.CurrentRound
	if remaining := CooldownRemaining(p, pu, round); remaining > 0 {
		return models.BattleEvent{}, cooldownError(pu.ID, remaining)
	}

	ref, err := s.resolveTarget(b, p, pu, &target)
	if err != nil {
		return models.BattleEvent{}, err
	}

	duration := max(pu.Effect.Duration, 1)
	effect := models.ActiveEffect{
		PowerUpID:  pu.ID,
		OwnerID:    userID,
		Target:     pu.Effect.Target,
		TargetRef:  ref,
		Multiplier: pu.Effect.Multiplier,
		Protection: pu.Effect.Protection,
		FromRound:  round,
		UntilRound: round + duration - 1,
	}
	if pu.Effect.SwapLimit > 0 {
		effect.SwappedOutID = target.SwapOutPlayerID
	}
	b.ActiveEffects = append(b.ActiveEffects, effect)
	p.PowerUpsUsed = append(p.PowerUpsUsed, models.PowerUpUsage{
		PowerUpID: pu.ID,
		Round:     round,
		Target:    target,
		UsedAt:    now,
	})

	ev := models.BattleEvent{
		Type:    models.BattleEventPowerUp,
		UserID:  userID,
		Message: fmt.Sprintf("%s used %s", userID, pu.Name),
		Data: map[string]string{
			"power_up_id": pu.ID,
			"target":      ref,
			"round":       fmt.Sprint(round),
		},
		At: now,
	}
	if r := b.ActiveRound(); r != nil {
		r.Events = append(r.Events, ev)
	}
	return ev, nil
}

func invalidTarget(format string, args ...any) *Error {
	return newError(CodeInvalidArgument, format, args...)
}

// resolveTarget checks the target against the effect scope and returns the
// reference stored on the active effect. bench_swap is applied here.
func (s *PowerUpService) resolveTarget(b *models.Battle, p *models.Participant, pu models.PowerUp, target *models.PowerUpTarget) (string, error) {
	switch pu.Effect.Target {
	case models.TargetSelf:
		target.UserID = p.UserID
		return p.UserID, nil

	case models.TargetOpponent:
		if target.UserID == "" {
			m, ok := b.MatchupFor(b.CurrentRound, p.UserID)
			if !ok {
				return "", invalidTarget("no opponent this round")
			}
			target.UserID = m.Opponent(p.UserID)
		}
		if target.UserID == p.UserID || !b.HasUser(target.UserID) {
			return "", invalidTarget("%s is not an opponent in this battle", target.UserID)
		}
		return target.UserID, nil

	case models.TargetPlayer:
		if p.Roster == nil {
			return "", newError(CodeInvalidState, "no roster assigned")
		}
		if pu.Effect.SwapLimit > 0 {
			return target.PlayerID, swapBench(p.Roster, target.PlayerID, target.SwapOutPlayerID)
		}
		if _, ok := p.Roster.Player(target.PlayerID); !ok {
			return "", invalidTarget("player %s is not in the active lineup", target.PlayerID)
		}
		return target.PlayerID, nil

	case models.TargetPosition:
		if p.Roster == nil || !p.Roster.HasPosition(target.Position) {
			return "", invalidTarget("no active player at position %s", target.Position)
		}
		return target.Position, nil
	}
	return "", invalidTarget("unsupported effect target %s", pu.Effect.Target)
}

// revertExpiredSwaps undoes bench swaps whose effect ended before round.
func revertExpiredSwaps(b *models.Battle, round int) {
	for i := range b.ActiveEffects {
		e := &b.ActiveEffects[i]
		if e.SwappedOutID == "" || e.Reverted || e.UntilRound >= round {
			continue
		}
		e.Reverted = true
		p := b.Participant(e.OwnerID)
		if p == nil || p.Roster == nil {
			continue
		}
		if err := swapBench(p.Roster, e.SwappedOutID, e.TargetRef); err != nil {
			log.Printf("[PowerUp] %s: restoring %s for %s: %v", b.ID, e.SwappedOutID, e.OwnerID, err)
		}
	}
}

// swapBench moves benchID into the slot held by outID.
func swapBench(r *models.Roster, benchID, outID string) error {
	bi, ok := r.BenchPlayer(benchID)
	if !ok {
		return invalidTarget("player %s is not on the bench", benchID)
	}
	ai, ok := r.Player(outID)
	if !ok {
		return invalidTarget("player %s is not in the active lineup", outID)
	}
	in, out := r.Bench[bi], r.Players[ai]
	if !models.SlotAccepts(out.Slot, in.Position) {
		return invalidTarget("%s cannot fill the %s slot", in.Position, out.Slot)
	}
	in.Slot = out.Slot
	in.Multiplier = out.Multiplier
	in.IsCaptain, in.IsViceCaptain = out.IsCaptain, out.IsViceCaptain
	out.Slot = models.SlotBench
	out.Multiplier = models.BaseMultiplier
	out.IsCaptain, out.IsViceCaptain = false, false
	r.Players[ai] = in
	r.Bench[bi] = out
	return nil
}
