package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/authclient"
	appcfg "github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/config"
	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/match"
	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/msgcat"
	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/obslog"
	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/presence"
	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/stats"
	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/ws"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	cat, err := msgcat.New(cfg.MessageOverrideDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	store, err := match.NewStoreFromURL(cfg.RedisURL, cfg.MatchTTL)
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}
	defer store.Close()

	engine := match.NewEngine(store)
	engine.SetConflictRetries(cfg.ConflictRetries)

	if cfg.DatabaseURL != "" {
		repo, err := stats.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("stats repo init error: %v", err)
		}
		defer repo.Close()
		engine.AttachStats(repo)
	} else {
		obslog.L().Warn("stats_disabled", zap.String("reason", "DATABASE_URL not set"))
	}

	guard := presence.NewGuard(store.Client(), cfg.PresenceTTL)
	verifier := authclient.NewClient(cfg.AuthVerifyURL,
		authclient.WithTimeout(time.Duration(cfg.AuthTimeoutSec)*time.Second),
	)

	server := ws.NewServer(ws.NewHub(), engine, guard, verifier, cat, cfg.MaxChatLen)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		obslog.L().Info("server_listen", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("server_error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	obslog.L().Info("server_shutdown_begin")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		obslog.L().Error("server_shutdown_error", zap.Error(err))
	}
	obslog.L().Info("server_shutdown_done")
}
