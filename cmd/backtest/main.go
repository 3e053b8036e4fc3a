package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vitos/trade_signal_bot/internal/config"
	"github.com/vitos/trade_signal_bot/internal/infrastructure/exchange"
	"github.com/vitos/trade_signal_bot/internal/infrastructure/logger"
	"github.com/vitos/trade_signal_bot/internal/infrastructure/predictor"
	"github.com/vitos/trade_signal_bot/internal/infrastructure/storage"
	"github.com/vitos/trade_signal_bot/internal/risk"
	"github.com/vitos/trade_signal_bot/internal/strategy"
	"github.com/vitos/trade_signal_bot/internal/usecase"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	logPath := flag.String("log", "backtest.log", "path to backtest log file")
	flag.Parse()

	// 1. Load Config (credentials optional: cached bars may be enough)
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateOffline(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewFileLogger(*logPath, cfg.Logging.Level)
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

	// 4. Init Broker (data source only; no orders are placed)
	broker := exchange.NewAlpacaBroker(exchange.AlpacaConfig{
		KeyID:     cfg.Broker.KeyID,
		SecretKey: cfg.Broker.SecretKey,
		BaseURL:   cfg.Broker.BaseURL,
		DataURL:   cfg.Broker.DataURL,
		Timeframe: cfg.Timeframe,
	}, log)

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

	// 6. Run
	svc := usecase.NewBacktestService(broker, store, strat, riskManager, log, usecase.BacktestConfig{
		Symbols:        cfg.Symbols,
		Timeframe:      cfg.Timeframe,
		InitialCapital: cfg.Backtest.InitialCapital,
		BarLimit:       cfg.Backtest.BarLimit,
	})
	report, err := svc.Run(context.Background())
	if err != nil {
		log.Fatal("Backtest failed", zap.Error(err))
	}

	fmt.Printf("\n=== Backtest Report (%s) ===\n", strat.Name())
	fmt.Printf("Initial capital: %.2f\n", report.InitialCapital)
	fmt.Printf("Final equity:    %.2f\n", report.FinalEquity)
	fmt.Printf("Return:          %.2f%%\n", report.ReturnPct)
	fmt.Printf("Trades:          %d (wins %d / losses %d, win rate %.1f%%)\n",
		len(report.Trades), report.Wins, report.Losses, report.WinRatePct)
}
