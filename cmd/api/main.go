package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"vendoor.org/internal/auth"
	"vendoor.org/internal/config"
	"vendoor.org/internal/httpapi"
	"vendoor.org/internal/notify"
	"vendoor.org/internal/obs"
	"vendoor.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := pg.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := pg.Ping(pingCtx, db, 5*time.Second); err != nil {
		log.Printf("db not reachable yet: %v", err)
	}
	cancelPing()

	opts := []auth.ServiceOption{
		auth.WithStrategy(auth.Strategy(cfg.Strategy)),
		auth.WithAccessTTL(cfg.AccessTokenTTL),
		auth.WithRefreshTTL(cfg.RefreshTokenTTL),
		auth.WithSessionTTL(cfg.SessionTTL),
		auth.WithResetTTL(cfg.ResetTokenTTL),
		auth.WithOTPTTL(cfg.OTPTTL),
		auth.WithResetURL(cfg.PasswordResetURL),
	}

	if cfg.SMTPHost != "" {
		opts = append(opts, auth.WithMailer(notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Login:    cfg.SMTPLogin,
			Password: cfg.SMTPPassword,
			From:     cfg.FromEmail,
		})))
	}
	if cfg.SMSEndpoint != "" {
		opts = append(opts, auth.WithTexter(notify.NewSMSSender(notify.SMSConfig{
			Endpoint: cfg.SMSEndpoint,
			APIKey:   cfg.SMSAPIKey,
			Sender:   cfg.SMSSender,
		})))
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		opts = append(opts, auth.WithNonceStore(auth.NewRedisNonceStore(rdb)))
	}

	svc, err := auth.NewService(auth.NewPGStore(db), []byte(cfg.AuthSecret), opts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, svc,
		httpapi.WithRateLimit(cfg.RateBurst, cfg.RatePerSec),
	)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting vendoor-api %s (%s strategy) on %s", version, cfg.Strategy, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
