package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"battle-engine/config"
	"battle-engine/handlers"
	"battle-engine/middleware"
	"battle-engine/models"
	"battle-engine/services"
	"battle-engine/utils"
	"battle-engine/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type stores struct {
	battles     services.BattleStore
	ladder      services.LadderStore
	tournaments services.TournamentStore
	rewards     services.RewardSink
}

func openStores(cfg *config.Config) stores {
	if cfg.DatabaseURL == "" {
		log.Println("⚠️  DATABASE_URL not set, keeping battles in memory")
		mem := services.NewMemoryStore()
		return stores{battles: mem, ladder: mem, tournaments: mem, rewards: services.NewMemoryRewardSink()}
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	store := services.NewGormStore(db)
	if err := store.AutoMigrate(); err != nil {
		log.Fatal("failed to migrate database:", err)
	}
	return stores{battles: store, ladder: store, tournaments: store, rewards: services.NewGormRewardSink(db)}
}

func ratedTypes(names []string) []models.BattleType {
	var out []models.BattleType
	for _, n := range names {
		t := models.BattleType(strings.TrimSpace(n))
		if !t.Valid() {
			log.Fatalf("RATED_BATTLE_TYPES: unknown battle type %q", n)
		}
		out = append(out, t)
	}
	return out
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := openStores(cfg)
	bus := services.NewEventBus(cfg.EventBuffer)
	go bus.LogEvents(ctx)

	var feed services.ScoreFeed
	if cfg.ScoreFeedURL != "" {
		feed = workers.NewScoreFeedClient(cfg.ScoreFeedURL, cfg.ScoreFeedToken)
	} else {
		log.Println("⚠️  SCORE_FEED_URL not set, scoring from player projections")
		feed = workers.NewProjectionFeed(models.DefaultPlayerPool)
	}

	opts := []services.BattleOption{services.WithRatedTypes(ratedTypes(cfg.RatedBattleTypes)...)}
	if cfg.R2.Enabled() {
		archiver, err := utils.NewR2Archiver(ctx, utils.R2Options{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			AccessKeySecret: cfg.R2.AccessKeySecret,
			Bucket:          cfg.R2.Bucket,
			CDNBaseURL:      cfg.R2.CDNBaseURL,
		})
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		opts = append(opts, services.WithArchiver(archiver))
	}

	ladder := services.NewLadderService(st.ladder, bus, nil)
	prizes := services.NewPrizeService(st.rewards)
	battles := services.NewBattleService(st.battles, ladder, prizes, feed, bus, opts...)
	tournaments := services.NewTournamentService(st.tournaments, battles, ladder, prizes, bus, nil)
	matchmaker := services.NewMatchmaker(battles, ladder, bus, cfg.RatingTolerance, nil)

	scheduler, err := services.NewScheduler(nil)
	if err != nil {
		log.Fatal("failed to create scheduler:", err)
	}
	if err := services.ScheduleEngineJobs(scheduler, matchmaker, battles, tournaments,
		cfg.MatchmakingInterval, cfg.RoundMonitorInterval, cfg.TournamentCheckInterval); err != nil {
		log.Fatal("failed to schedule jobs:", err)
	}
	scheduler.Start()

	workers.NewScoreDriver(battles, cfg.ScorePollInterval).Start(ctx)

	app := fiber.New()
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, Cache-Control",
		MaxAge:       86400,
	}))

	handlers.SetupBattleRoutes(app, battles)
	handlers.SetupMatchmakingRoutes(app, matchmaker)
	handlers.SetupTournamentRoutes(app, tournaments)
	handlers.SetupLadderRoutes(app, ladder)
	handlers.SetupEventRoutes(app, bus)

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()
	log.Printf("✅ Battle engine listening on %s", cfg.HTTPAddr)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := scheduler.Shutdown(); err != nil {
		log.Printf("scheduler shutdown: %v", err)
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}
