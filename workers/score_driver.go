package workers

import (
	"context"
	"log"
	"time"

	"battle-engine/models"
)

// BattleTicker is the part of the battle service the driver needs.
type BattleTicker interface {
	ListLiveBattles(ctx context.Context) ([]*models.Battle, error)
	UpdateBattleScores(ctx context.Context, battleID string) error
}

// ScoreDriver polls live battles and pushes fresh scores through the engine.
type ScoreDriver struct {
	battles  BattleTicker
	interval time.Duration
}

func NewScoreDriver(battles BattleTicker, interval time.Duration) *ScoreDriver {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ScoreDriver{battles: battles, interval: interval}
}

func (d *ScoreDriver) Start(ctx context.Context) {
	log.Printf("[ScoreDriver] polling live battles every %s", d.interval)
	go d.run(ctx)
}

func (d *ScoreDriver) run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.Tick(ctx)
		case <-ctx.Done():
			log.Println("[ScoreDriver] stopped")
			return
		}
	}
}

// Tick updates every live battle once and returns how many updated cleanly.
func (d *ScoreDriver) Tick(ctx context.Context) int {
	battles, err := d.battles.ListLiveBattles(ctx)
	if err != nil {
		log.Printf("[ScoreDriver] listing live battles: %v", err)
		return 0
	}
	ok := 0
	for _, b := range battles {
		if err := d.battles.UpdateBattleScores(ctx, b.ID); err != nil {
			log.Printf("[ScoreDriver] battle %s: %v", b.ID, err)
			continue
		}
		ok++
	}
	return ok
}
