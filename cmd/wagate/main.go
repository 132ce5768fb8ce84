package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bjo163/wagate/config"
	"github.com/bjo163/wagate/internal/api"
	"github.com/bjo163/wagate/internal/app"
	"github.com/bjo163/wagate/internal/gateway"
	"github.com/bjo163/wagate/internal/store"
	"github.com/bjo163/wagate/internal/webserver"
	"go.uber.org/zap"
)

var (
	h        bool
	x        bool
	initdb   bool
	conffile string
)

func init() {
	flag.BoolVar(&h, "h", false, "help usage")
	flag.BoolVar(&x, "x", false, "debug mode")
	flag.BoolVar(&initdb, "initdb", false, "drop and recreate database tables")
	flag.StringVar(&conffile, "c", "/etc/wagate.yml", "config file")
}

func main() {
	flag.Parse()
	if h {
		flag.Usage()
		os.Exit(0)
	}

	cfg := config.LoadConfig(conffile)
	if x {
		cfg.System.Debug = true
		cfg.Database.Debug = true
	}
	_ = os.MkdirAll(cfg.System.Workdir, 0o755)
	_ = os.MkdirAll(cfg.Gateway.SessionDir, 0o755)

	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if initdb {
		application.InitDb()
		zap.L().Info("database initialized")
		return
	}

	db := application.DB()
	mgr, err := gateway.NewManager(
		gateway.NewWhatsmeowDialer(),
		store.NewGormTenantRepository(db),
		store.NewGormInstanceRepository(db),
		store.NewGormMessageRepository(db),
		gateway.Options{
			SessionDir:     cfg.Gateway.SessionDir,
			PairTimeout:    time.Duration(cfg.Gateway.PairTimeoutSec) * time.Second,
			ReconnectDelay: time.Duration(cfg.Gateway.ReconnectDelaySec) * time.Second,
			MaxReconnects:  cfg.Gateway.MaxReconnects,
		})
	if err != nil {
		zap.S().Panicf("gateway init failed: %v", err)
	}
	application.SetSessionCounter(mgr.LiveCount)

	// bring persisted sessions back without blocking startup
	go mgr.Reconcile(context.Background())

	application.StartBackgroundJobs()

	ws := webserver.Init(cfg)
	api.Register(mgr)

	errChan := make(chan error, 1)
	go func() {
		errChan <- ws.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			zap.L().Error("web server stopped", zap.Error(err))
		}
	case sig := <-sigChan:
		fmt.Println("received signal:", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ws.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("web server shutdown failed", zap.Error(err))
	}
	mgr.Close()
}
