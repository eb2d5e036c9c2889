package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/barber-academy-api/pkg/config"
	"github.com/noah-isme/barber-academy-api/pkg/logger"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg, "sequence-cron")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Sequences.InvokerToken == "" {
		logr.Fatal("SEQUENCES_INVOKER_TOKEN must be set")
	}
	inv := newInvoker(cfg.Sequences.InvokerURL, cfg.Sequences.InvokerToken, cfg.Sequences.BatchSize, cfg.Sequences.InvokeTimeout, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		inv.tick(ctx)
		return
	}

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := scheduler.AddFunc(cfg.Sequences.CronSchedule, func() { inv.tick(ctx) }); err != nil {
		logr.Fatal("invalid cron schedule", zap.String("schedule", cfg.Sequences.CronSchedule), zap.Error(err))
	}
	scheduler.Start()
	logr.Info("sequence cron started",
		zap.String("schedule", cfg.Sequences.CronSchedule),
		zap.String("target", cfg.Sequences.InvokerURL),
	)

	<-ctx.Done()
	<-scheduler.Stop().Done()
	logr.Info("sequence cron stopped")
}
