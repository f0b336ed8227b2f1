package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// Scheduler runs the periodic engine jobs on gocron. A run that overlaps the
// previous one is skipped.
type Scheduler struct {
	sched  gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(clock clockwork.Clock) (*Scheduler, error) {
	opts := []gocron.SchedulerOption{}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}
	sched, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{sched: sched, ctx: ctx, cancel: cancel}, nil
}

// Every registers fn to run each interval.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(ctx context.Context)) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { fn(s.ctx) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	log.Printf("[Scheduler] %s every %s", name, interval)
	return nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
}

func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.sched.Shutdown()
}

// ScheduleEngineJobs wires the matchmaking tick, the round monitor and the tournament monitor.
func ScheduleEngineJobs(s *Scheduler, mm *Matchmaker, battles *BattleService, tournaments *TournamentService, matchEvery, roundEvery, tournamentEvery time.Duration) error {
	if err := s.Every("matchmaking", matchEvery, func(ctx context.Context) { mm.Tick(ctx) }); err != nil {
		return err
	}
	if err := s.Every("round-monitor", roundEvery, func(ctx context.Context) { battles.CheckRounds(ctx) }); err != nil {
		return err
	}
	return s.Every("tournament-monitor", tournamentEvery, func(ctx context.Context) { tournaments.CheckTournaments(ctx) })
}
