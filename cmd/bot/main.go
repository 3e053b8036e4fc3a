package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitos/trade_signal_bot/internal/config"
	"github.com/vitos/trade_signal_bot/internal/domain"
	"github.com/vitos/trade_signal_bot/internal/infrastructure/exchange"
	"github.com/vitos/trade_signal_bot/internal/infrastructure/logger"
	"github.com/vitos/trade_signal_bot/internal/infrastructure/predictor"
	"github.com/vitos/trade_signal_bot/internal/infrastructure/storage"
	"github.com/vitos/trade_signal_bot/internal/risk"
	"github.com/vitos/trade_signal_bot/internal/strategy"
	"github.com/vitos/trade_signal_bot/internal/usecase"
	"github.com/vitos/trade_signal_bot/internal/web"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	paper := flag.Bool("paper", false, "run against the in-memory paper broker")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *paper {
		err = cfg.ValidateOffline()
	} else {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Broker
	var broker domain.Broker
	if *paper {
		log.Info("using paper broker")
		broker = exchange.NewPaperBroker(cfg.Backtest.InitialCapital)
	} else {
		broker = exchange.NewAlpacaBroker(exchange.AlpacaConfig{
			KeyID:     cfg.Broker.KeyID,
			SecretKey: cfg.Broker.SecretKey,
			BaseURL:   cfg.Broker.BaseURL,
			DataURL:   cfg.Broker.DataURL,
			Timeframe: cfg.Timeframe,
		}, log)
	}

	// 5. Init Strategy + Risk
	model, err := predictor.NewFileModel(cfg.Model.Path, log)
	if err != nil {
		log.Fatal("Failed to load model", zap.Error(err))
	}
	strat, err := strategy.New(cfg.Strategy, model)
	if err != nil {
		log.Fatal("Failed to init strategy", zap.Error(err))
	}
	riskManager := risk.NewManager(risk.Config{
		RiskPerTrade:  cfg.Risk.RiskPerTrade,
		StopLossPct:   cfg.Risk.StopLossPct,
		TakeProfitPct: cfg.Risk.TakeProfitPct,
		MaxPositions:  cfg.Risk.MaxPositions,
	})

	// 6. Init Service + Web. The hub needs the service's snapshot for new
	// clients and the service publishes to the hub, so wire through a
	// late-bound pointer.
	var svc *usecase.BotService
	hub := web.NewHub(func() domain.Snapshot { return svc.Snapshot() }, log)
	svc = usecase.NewBotService(broker, store, store, strat, riskManager, hub, log, usecase.BotConfig{
		Symbols:   cfg.Symbols,
		Timeframe: cfg.Timeframe,
		BarLimit:  cfg.BarLimit,
		MinBars:   cfg.MinBars,
	})

	server := web.NewServer(cfg.Server.Port, svc, hub, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 7. Start Worker
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := usecase.NewBotWorker(svc, time.Duration(cfg.TickIntervalSec)*time.Second, log)
	worker.Start(ctx)

	log.Info("bot started",
		zap.String("strategy", strat.Name()),
		zap.Strings("symbols", cfg.Symbols),
		zap.Int("port", cfg.Server.Port))

	// 8. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	cancel()
	server.Shutdown(context.Background())
}
