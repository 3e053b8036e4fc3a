package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/vitos/trade_signal_bot/internal/domain"
	"github.com/vitos/trade_signal_bot/internal/risk"
	"github.com/vitos/trade_signal_bot/internal/strategy"
	"go.uber.org/zap"
)

// backtestWindow is how many bars of history each evaluation sees, matching
// the live bot's default bar fetch.
const backtestWindow = 50

// BacktestConfig holds the offline replay parameters.
type BacktestConfig struct {
	Symbols        []string
	Timeframe      string
	InitialCapital float64
	BarLimit       int
}

// BacktestReport summarizes a replay run. Win rate counts closing trades
// only; entries carry no realized P&L.
type BacktestReport struct {
	InitialCapital float64
	FinalEquity    float64
	ReturnPct      float64
	Wins           int
	Losses         int
	WinRatePct     float64
	Trades         []domain.TradeRecord
}

// BacktestService replays historical bars through the same strategy and risk
// code as the live bot, with equity accumulated locally since no broker
// account exists. Fetched bars are upserted into the cache; when the broker
// is unreachable, cached bars are used instead.
type BacktestService struct {
	broker  domain.Broker
	barRepo domain.BarRepository
	strat   strategy.Strategy
	risk    *risk.Manager
	logger  *zap.Logger
	cfg     BacktestConfig
}

func NewBacktestService(
	broker domain.Broker,
	barRepo domain.BarRepository,
	strat strategy.Strategy,
	riskManager *risk.Manager,
	logger *zap.Logger,
	cfg BacktestConfig,
) *BacktestService {
	return &BacktestService{
		broker:  broker,
		barRepo: barRepo,
		strat:   strat,
		risk:    riskManager,
		logger:  logger,
		cfg:     cfg,
	}
}

// Run replays every configured symbol chronologically and returns the
// aggregate report.
func (s *BacktestService) Run(ctx context.Context) (*BacktestReport, error) {
	s.logger.Info("starting backtest",
		zap.String("strategy", s.strat.Name()),
		zap.Strings("symbols", s.cfg.Symbols),
		zap.Float64("initial_capital", s.cfg.InitialCapital))

	equity := s.cfg.InitialCapital
	var trades []domain.TradeRecord

	for _, symbol := range s.cfg.Symbols {
		bars, err := s.loadBars(ctx, symbol)
		if err != nil {
			s.logger.Warn("no data for symbol, skipping",
				zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		if len(bars) <= backtestWindow {
			s.logger.Warn("not enough data, skipping",
				zap.String("symbol", symbol), zap.Int("bars", len(bars)))
			continue
		}

		s.logger.Info("replaying",
			zap.String("symbol", symbol), zap.Int("bars", len(bars)))

		symbolTrades, symbolEquity := s.replaySymbol(symbol, bars, equity)
		trades = append(trades, symbolTrades...)
		equity = symbolEquity
	}

	report := buildReport(s.cfg.InitialCapital, equity, trades)
	s.logger.Info("backtest complete",
		zap.Float64("final_equity", report.FinalEquity),
		zap.Float64("return_pct", report.ReturnPct),
		zap.Int("wins", report.Wins),
		zap.Int("losses", report.Losses),
		zap.Float64("win_rate_pct", report.WinRatePct),
		zap.Int("trades", len(report.Trades)))
	return report, nil
}

// replaySymbol walks one symbol's bars, feeding a sliding window to the
// strategy. A single position per symbol is simulated; the exit check runs
// before the strategy each bar so a position never rolls past its risk
// bounds; a dangling position is closed at end of data.
func (s *BacktestService) replaySymbol(symbol string, bars []domain.Bar, equity float64) ([]domain.TradeRecord, float64) {
	var trades []domain.TradeRecord
	var position *domain.Position

	closeOut := func(action string, price float64, at time.Time) {
		pnl := (price - position.EntryPrice) * position.Qty
		equity += pnl
		trades = append(trades, domain.TradeRecord{
			ID:          ulid.Make().String(),
			Symbol:      symbol,
			Action:      action,
			Price:       price,
			Qty:         domain.QuantityOf(position.Qty),
			RealizedPnL: pnl,
			At:          at,
		})
		position = nil
	}

	for i := backtestWindow; i < len(bars); i++ {
		window := bars[i-backtestWindow : i+1]
		bar := bars[i]
		price := bar.Close

		if position != nil {
			position.CurrentPrice = price
			position.UnrealizedPnL = (price - position.EntryPrice) * position.Qty
			if notional := position.EntryPrice * position.Qty; notional != 0 {
				position.UnrealizedPnLPct = position.UnrealizedPnL / notional * 100
			}
			if exit := s.risk.CheckExit(position, price); exit != risk.ExitNone {
				closeOut(fmt.Sprintf("SELL (%s)", exit), price, bar.Time)
			}
		}

		decision := s.strat.Analyze(window, position)

		if decision.Signal == domain.SignalBuy && position == nil {
			qty := s.risk.PositionSize(equity, price)
			if qty > 0 {
				position = &domain.Position{
					Symbol:       symbol,
					Side:         domain.SideLong,
					Qty:          qty,
					EntryPrice:   price,
					CurrentPrice: price,
				}
				trades = append(trades, domain.TradeRecord{
					ID:     ulid.Make().String(),
					Symbol: symbol,
					Action: "BUY",
					Price:  price,
					Qty:    domain.QuantityOf(qty),
					At:     bar.Time,
				})
			}
		} else if decision.Signal == domain.SignalSell && position != nil {
			closeOut("SELL (Signal)", price, bar.Time)
		}
	}

	if position != nil {
		last := bars[len(bars)-1]
		closeOut("SELL (End of Data)", last.Close, last.Time)
	}
	return trades, equity
}

func (s *BacktestService) loadBars(ctx context.Context, symbol string) ([]domain.Bar, error) {
	bars, err := s.broker.GetBars(ctx, symbol, s.cfg.BarLimit)
	if err == nil && len(bars) > 0 {
		if s.barRepo != nil {
			if cerr := s.barRepo.UpsertBars(ctx, symbol, s.cfg.Timeframe, bars); cerr != nil {
				s.logger.Warn("bar cache write failed",
					zap.String("symbol", symbol), zap.Error(cerr))
			}
		}
		return bars, nil
	}

	if s.barRepo == nil {
		if err == nil {
			err = fmt.Errorf("broker returned no bars")
		}
		return nil, err
	}
	s.logger.Warn("broker fetch failed, using cached bars",
		zap.String("symbol", symbol), zap.Error(err))
	cached, cerr := s.barRepo.GetBars(ctx, symbol, s.cfg.Timeframe, time.Time{}, time.Now())
	if cerr != nil {
		return nil, fmt.Errorf("cached bars: %w", cerr)
	}
	if len(cached) == 0 {
		return nil, fmt.Errorf("no cached bars for %s", symbol)
	}
	return cached, nil
}

func buildReport(initial, final float64, trades []domain.TradeRecord) *BacktestReport {
	wins, losses := 0, 0
	for _, t := range trades {
		if t.Action == "BUY" {
			continue
		}
		if t.RealizedPnL > 0 {
			wins++
		} else {
			losses++
		}
	}
	winRate := 0.0
	if wins+losses > 0 {
		winRate = float64(wins) / float64(wins+losses) * 100
	}
	return &BacktestReport{
		InitialCapital: initial,
		FinalEquity:    final,
		ReturnPct:      (final - initial) / initial * 100,
		Wins:           wins,
		Losses:         losses,
		WinRatePct:     winRate,
		Trades:         trades,
	}
}
