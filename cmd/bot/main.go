package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/Jenderlion/Quiz-bot/internal/archive"
	"github.com/Jenderlion/Quiz-bot/internal/config"
	"github.com/Jenderlion/Quiz-bot/internal/repository"
	"github.com/Jenderlion/Quiz-bot/internal/service"
	"github.com/Jenderlion/Quiz-bot/internal/telegram"
	"github.com/Jenderlion/Quiz-bot/pkg/db"
	"github.com/Jenderlion/Quiz-bot/pkg/logger"
	"github.com/Jenderlion/Quiz-bot/pkg/metrics"
)

func main() {
	log := logger.NewLogger("quiz-bot")

	cfg, err := config.Load()
	if err != nil {
		log.WithField("error", err.Error()).Fatal("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.NewConnection(db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
	})
	if err != nil {
		log.WithField("error", err.Error()).Fatal("failed to connect to database")
	}
	defer conn.Close()

	if err := repository.Migrate(ctx, conn.DB); err != nil {
		log.WithField("error", err.Error()).Fatal("failed to run migrations")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()
	// the rate guard degrades to pass-through without redis, so this is a
	// warning, not a fatal
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithField("error", err.Error()).Warn("redis unreachable, rate guard disabled")
	}

	var quizArchive archive.Archive = archive.Noop{}
	if cfg.FTPEnabled {
		quizArchive = archive.NewFTPArchive(cfg.FTPHost, cfg.FTPPort, cfg.FTPUser, cfg.FTPPassword, cfg.FTPDir)
	}
	defer quizArchive.Close()

	m := metrics.NewMetrics("bot")

	userRepo := repository.NewUserRepository(conn.DB)
	quizRepo := repository.NewQuizRepository(conn.DB)
	answerRepo := repository.NewAnswerRepository(conn.DB)
	banRepo := repository.NewBanRepository(conn.DB)
	msgLogRepo := repository.NewMessageLogRepository(conn.DB)
	throttleRepo := repository.NewThrottleRepository(redisClient)
	txRunner := repository.NewTxRunner(conn.DB)

	locks := service.NewUserLocks()
	sessionSvc := service.NewSessionService(userRepo, quizRepo, answerRepo, txRunner, locks)
	moderationSvc := service.NewModerationService(userRepo, banRepo, locks, log)
	quizSvc := service.NewQuizService(quizRepo, quizArchive, log)
	exportSvc := service.NewExportService(quizRepo, answerRepo)

	bot, err := telegram.NewBot(cfg, telegram.Deps{
		Sessions:   sessionSvc,
		Quizzes:    quizSvc,
		Moderation: moderationSvc,
		Export:     exportSvc,
		Users:      userRepo,
		MsgLog:     msgLogRepo,
		Throttle:   throttleRepo,
	}, log, m)
	if err != nil {
		log.WithField("error", err.Error()).Fatal("failed to start bot")
	}

	mailingSvc := service.NewMailingService(userRepo, bot, log)
	bot.SetMailing(mailingSvc)

	go func() {
		if err := metrics.Serve(cfg.MetricsAddr); err != nil {
			log.WithField("error", err.Error()).Error("metrics server stopped")
		}
	}()

	go moderationSvc.RunExpirySweep(ctx, cfg.BanSweepInterval, func(int) {
		m.BanSweepRuns.Inc()
	})

	log.Info("quiz bot started")
	if err := bot.Run(ctx); err != nil && err != context.Canceled {
		log.WithField("error", err.Error()).Error("bot stopped with error")
		os.Exit(1)
	}
	log.Info("quiz bot stopped")
}
