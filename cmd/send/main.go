// Command send dispatches a single newsletter from the command line,
// outside the HTTP API. Useful for cron-driven sends and operator
// intervention.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/skypost/mailing-service/internal/config"
	"github.com/skypost/mailing-service/internal/core"
	"github.com/skypost/mailing-service/internal/db"
	"github.com/skypost/mailing-service/internal/mailer"
)

func main() {
	id := flag.String("id", "", "newsletter id to dispatch")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall dispatch timeout")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if *id == "" {
		log.Error("usage: send -id <newsletter-id>")
		os.Exit(2)
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal("db", zap.Error(err))
	}
	defer pool.Close()

	var sender mailer.Sender
	if cfg.SMTP.Host != "" {
		sender = mailer.NewSMTP(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username,
			cfg.SMTP.Password, cfg.SMTP.From, cfg.SMTP.FromName, cfg.SMTP.UseTLS)
	} else {
		sender = mailer.NewDummy()
	}

	d := &core.Dispatcher{Store: &core.Store{DB: pool}, Sender: sender}
	attempt, err := d.Dispatch(ctx, *id)
	if err != nil {
		log.Fatal("dispatch", zap.String("newsletter", *id), zap.Error(err))
	}

	log.Info("dispatch finished",
		zap.String("newsletter", *id),
		zap.String("attempt", attempt.ID),
		zap.Bool("success", attempt.Success),
		zap.String("response", attempt.ServerResponse),
	)
	if !attempt.Success {
		os.Exit(1)
	}
}
