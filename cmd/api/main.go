package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/skypost/mailing-service/internal/cache"
	"github.com/skypost/mailing-service/internal/config"
	"github.com/skypost/mailing-service/internal/db"
	httpapi "github.com/skypost/mailing-service/internal/http"
	"github.com/skypost/mailing-service/internal/mailer"
	"github.com/skypost/mailing-service/internal/metrics"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}
	if cfg.JWT.Secret == "" {
		log.Fatal("config: jwt secret is required (JWT_SECRET)")
	}

	rootCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ---- DB ----
	pool, err := db.Connect(rootCtx, cfg.DB.DSN)
	if err != nil {
		log.Fatal("db", zap.Error(err))
	}
	defer pool.Close()
	if err := db.Migrate(rootCtx, pool); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	// ---- Cache ----
	var store cache.Cache
	if cfg.Redis.Addr != "" {
		rc := cache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := rc.Ping(rootCtx); err != nil {
			log.Fatal("redis", zap.Error(err))
		}
		store = rc
		log.Info("cache: redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		store = cache.NewMemory()
		log.Info("cache: in-process")
	}

	// ---- Mailer ----
	var sender mailer.Sender
	if cfg.SMTP.Host != "" {
		sender = mailer.NewSMTP(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username,
			cfg.SMTP.Password, cfg.SMTP.From, cfg.SMTP.FromName, cfg.SMTP.UseTLS)
		log.Info("mailer: smtp", zap.String("host", cfg.SMTP.Host))
	} else {
		sender = mailer.NewDummy()
		log.Info("mailer: dummy (no SMTP_HOST configured)")
	}

	// ---- Metrics ----
	stop := make(chan struct{})
	defer close(stop)
	go metrics.NewPGXPoolStats(pool).Start(10*time.Second, stop)

	// ---- HTTP server ----
	srv := httpapi.NewServer(pool, httpapi.Options{
		Cache:     store,
		Mailer:    sender,
		Log:       log,
		JWTSecret: cfg.JWT.Secret,
		TokenTTL:  time.Duration(cfg.JWT.TTLHours) * time.Hour,
		CacheTTL:  time.Duration(cfg.Cache.TTLSeconds) * time.Second,
	})
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info("HTTP listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server", zap.Error(err))
		}
	}()

	<-rootCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}
