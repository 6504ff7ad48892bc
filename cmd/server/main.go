package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/guildpulse/internal/adapter/discord"
	"github.com/pscheid92/guildpulse/internal/adapter/httpserver"
	"github.com/pscheid92/guildpulse/internal/adapter/memory"
	"github.com/pscheid92/guildpulse/internal/adapter/postgres"
	"github.com/pscheid92/guildpulse/internal/adapter/redis"
	"github.com/pscheid92/guildpulse/internal/app"
	"github.com/pscheid92/guildpulse/internal/config"
	"github.com/pscheid92/guildpulse/internal/coordination"
	"github.com/pscheid92/guildpulse/internal/domain"
	"github.com/pscheid92/guildpulse/internal/logging"
	"github.com/pscheid92/guildpulse/internal/platform/retry"
	"github.com/pscheid92/guildpulse/internal/poll"
	"github.com/pscheid92/guildpulse/internal/rank"
	"github.com/pscheid92/guildpulse/internal/reconcile"
	"github.com/pscheid92/guildpulse/internal/xp"
)

var startupRetryPolicy = retry.Policy{
	MaxAttempts:      5,
	InitialBackoff:   time.Second,
	RateLimitBackoff: 10 * time.Second,
	OnRetry: func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Startup connect failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	},
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(ctx context.Context, cfg *config.Config) *pgxpool.Pool {
	pool, err := retry.Do(ctx, startupRetryPolicy, retry.AlwaysRetry, func() (*pgxpool.Pool, error) {
		return postgres.Connect(ctx, cfg.DatabaseURL)
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	return pool
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	client, err := retry.Do(ctx, startupRetryPolicy, retry.AlwaysRetry, func() (*goredis.Client, error) {
		return redis.Connect(ctx, cfg.RedisURL)
	})
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupDiscord(ctx context.Context, cfg *config.Config) *discordgo.Session {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		slog.Error("Failed to create Discord session", "error", err)
		os.Exit(1)
	}

	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMembers |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildVoiceStates |
		discordgo.IntentMessageContent
	session.StateEnabled = true

	if err := retry.DoVoid(ctx, startupRetryPolicy, retry.AlwaysRetry, session.Open); err != nil {
		slog.Error("Failed to open Discord gateway", "error", err)
		os.Exit(1)
	}
	return session
}

func instanceID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

func main() {
	clock := clockwork.NewRealClock()
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := setupDB(ctx, cfg)
	defer pool.Close()

	// Redis is optional: without it cooldowns live in process memory and
	// sweeps run unguarded, which is fine for a single instance.
	var (
		redisClient *goredis.Client
		cooldowns   domain.ChatCooldowns
		leader      *coordination.SweepLeader
	)
	if cfg.RedisURL != "" {
		redisClient = setupRedis(ctx, cfg)
		defer func() { _ = redisClient.Close() }()
		cooldowns = redis.NewChatCooldowns(redisClient)
		leader = coordination.NewSweepLeader(redisClient, instanceID())
	} else {
		cooldowns = memory.NewChatCooldowns(clock)
	}

	session := setupDiscord(ctx, cfg)
	defer func() { _ = session.Close() }()

	platform := discord.NewAdapter(session)
	presenter := discord.NewPresenter(session)

	memberRepo := postgres.NewMemberRepo(pool)
	pollRepo := postgres.NewPollRepo(pool)
	locks := coordination.NewCommunityLocks()

	accountant := xp.NewAccountant(memberRepo, locks, xp.AccountantConfig{
		MaxXP:         cfg.MaxXP,
		BucketSeconds: cfg.BucketSeconds,
		PerBucketCap:  cfg.PerBucketCap,
	})
	gate := xp.NewChatGate(accountant, cooldowns, xp.GateConfig{
		MinChars: cfg.ChatMinChars,
		Cooldown: cfg.ChatCooldown,
		ChatXP:   cfg.ChatXP,
	})
	voice := xp.NewVoiceTracker(accountant, memberRepo, locks, platform, clock, xp.VoiceConfig{
		ThresholdMinutes: cfg.VoiceThresholdMin,
		VoiceXP:          cfg.VoiceXP,
	})
	decay := xp.NewDecayProcessor(memberRepo, locks, clock, xp.DecayConfig{
		Rate:       cfg.DecayRate,
		MinDecay:   cfg.MinDecay,
		Floor:      cfg.DecayFloor,
		Grace:      cfg.DecayGrace,
		BatchSize:  cfg.DecayBatch,
		BatchPause: cfg.BatchPause,
	})
	reconciler := reconcile.NewReconciler(memberRepo, platform, platform, locks, clock, reconcile.Config{
		Labels: domain.TierLabels{
			Entry: cfg.RoleEntry,
			Mid:   cfg.RoleMid,
			Upper: cfg.RoleUpper,
			Top:   cfg.RoleTop,
		},
		Rank: rank.Config{
			ExitThreshold: cfg.ExitThreshold,
			TopN:          cfg.TopN,
			NextM:         cfg.NextM,
		},
		OpsPerSecond: cfg.LabelOpsPerSec,
	})
	pollEngine := poll.NewEngine(pollRepo, presenter, clock, poll.Config{
		MinOptions:  2,
		MaxOptions:  10,
		MinDuration: cfg.PollMinDuration,
		MaxDuration: cfg.PollMaxDuration,
	})

	appSvc := app.NewService(
		gate, accountant, voice, decay, reconciler, pollEngine,
		memberRepo, platform.PrivilegeChecker(cfg.AdminRoles), clock, cfg.ReconcileQuiet,
	)

	discord.BindMessageEvents(session, appSvc)

	scheduler := app.NewScheduler(appSvc, platform, clock, leader,
		cfg.VoiceTickInterval, cfg.DecayInterval, cfg.ReconcileInterval)
	scheduler.Start(ctx)

	sweeper := poll.NewSweeper(pollEngine, cfg.PollSweepInterval, clock, leader)
	go sweeper.Start(ctx)

	healthChecks := []httpserver.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
	}
	if redisClient != nil {
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	srv := httpserver.NewServer(cfg.Port, appSvc, healthChecks)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server stopped", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	slog.Info("Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}

	sweeper.Stop()
	scheduler.Stop()
	appSvc.Stop()
	cancel()

	slog.Info("Shutdown complete")
}
