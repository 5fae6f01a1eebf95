package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"todo-planner/internal/api"
	"todo-planner/internal/bot"
	"todo-planner/internal/config"
	"todo-planner/internal/logging"
	"todo-planner/internal/repository"
	"todo-planner/internal/service"
)

const shutdownTimeout = 10 * time.Second

type app struct {
	userRepo    *repository.UserRepository
	categorySvc *service.CategoryService
	todoSvc     *service.TodoService
	digestSvc   *service.DigestService
	generator   *service.InstanceGenerator
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("todoplanner stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	command := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := logging.Setup(cfg.LogLevel)
	ctx = logging.WithContext(ctx, logger)

	switch command {
	case "generate":
		days, err := parseGenerateArgs(args)
		if err != nil {
			return err
		}
		a, closeDB, err := open(cfg)
		if err != nil {
			return err
		}
		defer closeDB()
		created, err := a.generator.Generate(ctx, days)
		if err != nil {
			return err
		}
		fmt.Printf("created %d todo instances\n", created)
		return nil
	case "serve":
		a, closeDB, err := open(cfg)
		if err != nil {
			return err
		}
		defer closeDB()
		return serve(ctx, cfg, a)
	default:
		return fmt.Errorf("unknown command %q (want generate or serve)", command)
	}
}

// parseGenerateArgs reads --days for the generate command.
func parseGenerateArgs(args []string) (int, error) {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	days := fs.Int("days", config.DefaultManualGenerateDays, "number of days ahead to generate instances for")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	if *days <= 0 {
		return 0, fmt.Errorf("--days must be a positive integer, got %d", *days)
	}
	return *days, nil
}

func open(cfg config.Config) (*app, func(), error) {
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db: %w", err)
	}
	closeDB := func() {}
	if sqlDB, err := db.DB(); err == nil {
		closeDB = func() { sqlDB.Close() }
	}

	userRepo := repository.NewUserRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	todoRepo := repository.NewTodoRepository(db)
	instanceRepo := repository.NewInstanceRepository(db)

	return &app{
		userRepo:    userRepo,
		categorySvc: service.NewCategoryService(categoryRepo),
		todoSvc:     service.NewTodoService(todoRepo, instanceRepo, categoryRepo),
		digestSvc:   service.NewDigestService(todoRepo, categoryRepo),
		generator:   service.NewInstanceGenerator(todoRepo, instanceRepo).WithMaxHorizon(cfg.MaxGenerateDays),
	}, closeDB, nil
}

func serve(ctx context.Context, cfg config.Config, a *app) error {
	log := logging.FromContext(ctx)

	handler := api.NewHandler(a.userRepo, a.todoSvc, a.categorySvc, a.generator, cfg.AdminSubjects)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if len(cfg.AdminSubjects) == 0 {
		log.Warn("no admin subjects configured, /admin routes will refuse every caller")
	}

	scheduler := service.NewSchedulerService(time.Local, log)
	if _, err := scheduler.ScheduleInterval(cfg.GenerateInterval, generationJob(ctx, a.generator, cfg.GenerateDays)); err != nil {
		return fmt.Errorf("schedule generation: %w", err)
	}

	var telegramBot *bot.Bot
	if cfg.BotEnabled() {
		var err error
		telegramBot, err = bot.New(cfg.TelegramToken, a.userRepo, a.categorySvc, a.todoSvc, a.digestSvc, a.generator)
		if err != nil {
			return fmt.Errorf("bot: %w", err)
		}
		if _, err := scheduler.ScheduleDaily(cfg.DigestTime, digestJob(ctx, telegramBot)); err != nil {
			return fmt.Errorf("schedule digest: %w", err)
		}
	} else {
		log.Info("telegram token not set, bot disabled")
	}

	scheduler.Start()
	defer scheduler.Stop()

	errCh := make(chan error, 2)
	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	if telegramBot != nil {
		go func() {
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("bot: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	log.Info("shutdown complete")
	return runErr
}

func generationJob(ctx context.Context, generator *service.InstanceGenerator, days int) func() {
	return func() {
		log := logging.FromContext(ctx)
		log.Info("starting scheduled todo instance generation", "days", days)
		created, err := generator.Generate(ctx, days)
		if err != nil {
			log.Error("scheduled todo instance generation failed", "error", err, "created", created)
			return
		}
		log.Info("completed scheduled todo instance generation", "created", created)
	}
}

func digestJob(ctx context.Context, telegramBot *bot.Bot) func() {
	return func() {
		jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := telegramBot.SendDailyDigests(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			logging.FromContext(ctx).Error("daily digest", "error", err)
		}
	}
}
