// Command worker delivers queued confirmation mail.
//
// The API enqueues onto Redis when REDIS_ADDR is set; this process pops
// jobs and sends them through SMTP (or logs them when SMTP_HOST is unset).
// Run as many copies as needed: BLPOP hands each job to exactly one worker.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sakif/vem/internal/config"
	"github.com/sakif/vem/internal/mail"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	if cfg.Development() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
	}

	if !cfg.QueueEnabled() {
		logger.Error("REDIS_ADDR is not set; nothing to consume")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := mail.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Error("failed to connect to redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer rdb.Close()

	sender, err := mail.NewDirectSender(mail.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.User,
		Password: cfg.Mail.Pass,
	}, logger)
	if err != nil {
		logger.Error("failed to create mail sender", slog.String("error", err.Error()))
		os.Exit(1)
	}

	worker := mail.NewWorker(mail.NewQueue(rdb, logger), sender, logger)
	worker.Run(ctx)
}
