package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/vitos/trade_signal_bot/internal/domain"
	"github.com/vitos/trade_signal_bot/internal/metrics"
	"github.com/vitos/trade_signal_bot/internal/risk"
	"github.com/vitos/trade_signal_bot/internal/strategy"
	"go.uber.org/zap"
)

// BotConfig holds the orchestrator's runtime parameters.
type BotConfig struct {
	Symbols   []string
	Timeframe string
	// BarLimit is how many bars to request per symbol each cycle.
	BarLimit int
	// MinBars is the warm-up floor; symbols with fewer bars are skipped
	// with a warning, which is a normal state, not an error.
	MinBars int
}

// BotService runs the per-tick orchestration state machine:
// sync account/positions, sweep exits, re-sync, evaluate each symbol,
// publish the updated snapshot. All mutable state is owned here and only
// written under the service mutex; readers get deep-copied snapshots.
type BotService struct {
	broker      domain.Broker
	barRepo     domain.BarRepository
	tradeRepo   domain.TradeRepository
	strat       strategy.Strategy
	risk        *risk.Manager
	broadcaster domain.Broadcaster
	logger      *zap.Logger
	cfg         BotConfig

	mu        sync.Mutex
	account   domain.Account
	positions []domain.Position
	signals   *RingLog[domain.SignalDecision]
	trades    *RingLog[domain.TradeRecord]
	errors    *RingLog[domain.ErrorRecord]
	lastTick  time.Time
	running   bool

	timeNow func() time.Time // for testing
}

// NewBotService wires the orchestrator. barRepo, tradeRepo and broadcaster
// may be nil; the corresponding side effects are then skipped.
func NewBotService(
	broker domain.Broker,
	barRepo domain.BarRepository,
	tradeRepo domain.TradeRepository,
	strat strategy.Strategy,
	riskManager *risk.Manager,
	broadcaster domain.Broadcaster,
	logger *zap.Logger,
	cfg BotConfig,
) *BotService {
	return &BotService{
		broker:      broker,
		barRepo:     barRepo,
		tradeRepo:   tradeRepo,
		strat:       strat,
		risk:        riskManager,
		broadcaster: broadcaster,
		logger:      logger,
		cfg:         cfg,
		signals:     NewRingLog[domain.SignalDecision](SignalLogCapacity),
		trades:      NewRingLog[domain.TradeRecord](TradeLogCapacity),
		errors:      NewRingLog[domain.ErrorRecord](ErrorLogCapacity),
		timeNow:     time.Now,
	}
}

// Tick executes one full orchestration cycle. A failure before the
// per-symbol loop aborts the cycle (and is recorded); per-symbol failures
// are isolated and never abort the remaining symbols. The updated snapshot
// is published even when the cycle aborted early, so dashboards always see
// the freshest state.
func (s *BotService) Tick(ctx context.Context) error {
	start := s.timeNow()
	s.mu.Lock()
	s.running = true
	s.lastTick = start
	s.mu.Unlock()

	defer func() {
		metrics.TicksTotal.Inc()
		metrics.TickDuration.Observe(time.Since(start).Seconds())
		if s.broadcaster != nil {
			s.broadcaster.Publish(s.Snapshot())
		}
	}()

	// Sync: the broker's view is authoritative, replaced wholesale.
	account, err := s.broker.GetAccount(ctx)
	if err != nil {
		err = fmt.Errorf("account sync: %w", err)
		s.recordError("", err)
		return err
	}
	s.mu.Lock()
	s.account = account
	s.mu.Unlock()
	s.logger.Info("account synced",
		zap.Float64("equity", account.Equity),
		zap.Float64("pnl", account.PnL))

	positions, err := s.broker.GetPositions(ctx)
	if err != nil {
		err = fmt.Errorf("position sync: %w", err)
		s.recordError("", err)
		return err
	}
	s.setPositions(positions)

	s.sweepExits(ctx, positions)

	// Re-sync after closes so the already-open set is accurate and a
	// symbol closed this cycle is not immediately re-entered.
	positions, err = s.broker.GetPositions(ctx)
	if err != nil {
		err = fmt.Errorf("position re-sync: %w", err)
		s.recordError("", err)
		return err
	}
	s.setPositions(positions)

	openSymbols := make(map[string]bool, len(positions))
	for _, p := range positions {
		openSymbols[normalizeSymbol(p.Symbol)] = true
	}
	// openCount reflects the effects of earlier symbols in this same
	// cycle, so the max-positions gate cannot be overrun within a tick.
	openCount := len(positions)

	for _, symbol := range s.cfg.Symbols {
		if err := s.evaluateSymbol(ctx, symbol, positions, openSymbols, &openCount); err != nil {
			s.logger.Error("symbol evaluation failed",
				zap.String("symbol", symbol), zap.Error(err))
			s.recordError(symbol, err)
			metrics.SymbolErrorsTotal.WithLabelValues(symbol).Inc()
		}
	}
	return nil
}

// sweepExits closes every open position whose stop-loss or take-profit has
// been hit. Positions whose price lookup fails are skipped (not closed)
// this cycle, leaving prior state unchanged.
func (s *BotService) sweepExits(ctx context.Context, positions []domain.Position) {
	for i := range positions {
		pos := positions[i]
		price, err := s.broker.GetLatestPrice(ctx, pos.Symbol)
		if err != nil || price <= 0 {
			s.logger.Warn("price lookup failed, skipping exit check",
				zap.String("symbol", pos.Symbol), zap.Error(err))
			continue
		}
		exit := s.risk.CheckExit(&pos, price)
		if exit == risk.ExitNone {
			continue
		}
		s.logger.Warn("closing position",
			zap.String("symbol", pos.Symbol),
			zap.String("reason", string(exit)),
			zap.Float64("price", price))
		if err := s.broker.ClosePosition(ctx, pos.Symbol); err != nil {
			s.recordError(pos.Symbol, fmt.Errorf("close position: %w", err))
			continue
		}
		s.recordTrade(ctx, domain.TradeRecord{
			ID:          ulid.Make().String(),
			Symbol:      pos.Symbol,
			Action:      fmt.Sprintf("CLOSE (%s)", exit),
			Price:       price,
			Qty:         domain.EntirePosition(),
			RealizedPnL: (price - pos.EntryPrice) * pos.Qty,
			At:          s.timeNow(),
		})
	}
}

func (s *BotService) evaluateSymbol(
	ctx context.Context,
	symbol string,
	positions []domain.Position,
	openSymbols map[string]bool,
	openCount *int,
) error {
	bars, err := s.broker.GetBars(ctx, symbol, s.cfg.BarLimit)
	if err != nil {
		return fmt.Errorf("fetch bars: %w", err)
	}
	if len(bars) < s.cfg.MinBars {
		s.logger.Warn("not enough bars",
			zap.String("symbol", symbol),
			zap.Int("got", len(bars)),
			zap.Int("need", s.cfg.MinBars))
		return nil
	}
	if s.barRepo != nil {
		if err := s.barRepo.UpsertBars(ctx, symbol, s.cfg.Timeframe, bars); err != nil {
			s.logger.Warn("bar cache write failed",
				zap.String("symbol", symbol), zap.Error(err))
		}
	}

	clean := normalizeSymbol(symbol)
	alreadyOpen := openSymbols[clean]
	var current *domain.Position
	for i := range positions {
		if normalizeSymbol(positions[i].Symbol) == clean {
			current = &positions[i]
			break
		}
	}

	decision := s.strat.Analyze(bars, current)
	decision.Symbol = symbol
	decision.At = s.timeNow()
	lastPrice := bars[len(bars)-1].Close

	s.logger.Info("signal",
		zap.String("symbol", symbol),
		zap.String("signal", string(decision.Signal)),
		zap.String("reason", decision.Reason),
		zap.Float64("price", lastPrice))
	s.mu.Lock()
	s.signals.Push(decision)
	s.mu.Unlock()
	metrics.SignalsTotal.WithLabelValues(symbol, string(decision.Signal)).Inc()

	switch {
	case decision.Signal == domain.SignalBuy && !alreadyOpen:
		if !s.risk.CanOpenPosition(*openCount) {
			s.logger.Warn("max positions reached, skipping entry",
				zap.String("symbol", symbol),
				zap.Int("open", *openCount),
				zap.Int("max", s.risk.MaxPositions()))
			return nil
		}
		s.mu.Lock()
		equity := s.account.Equity
		s.mu.Unlock()
		qty := s.risk.PositionSize(equity, lastPrice)
		if qty <= 0 {
			return nil
		}
		handle, err := s.broker.PlaceOrder(ctx, symbol, qty, domain.OrderBuy)
		if err != nil {
			return fmt.Errorf("place order: %w", err)
		}
		if handle == nil {
			// Rejected orders are a no-op, logged and not retried
			// within the same cycle.
			s.logger.Warn("order rejected by broker",
				zap.String("symbol", symbol), zap.Float64("qty", qty))
			return nil
		}
		s.recordTrade(ctx, domain.TradeRecord{
			ID:     ulid.Make().String(),
			Symbol: symbol,
			Action: "BUY",
			Price:  lastPrice,
			Qty:    domain.QuantityOf(qty),
			At:     s.timeNow(),
		})
		metrics.OrdersTotal.WithLabelValues(symbol, string(domain.OrderBuy)).Inc()
		openSymbols[clean] = true
		*openCount++

	case decision.Signal == domain.SignalSell && alreadyOpen:
		if err := s.broker.ClosePosition(ctx, symbol); err != nil {
			return fmt.Errorf("close position: %w", err)
		}
		s.recordTrade(ctx, domain.TradeRecord{
			ID:     ulid.Make().String(),
			Symbol: symbol,
			Action: "SELL/CLOSE",
			Price:  lastPrice,
			Qty:    domain.EntirePosition(),
			At:     s.timeNow(),
		})
		metrics.OrdersTotal.WithLabelValues(symbol, string(domain.OrderSell)).Inc()
		delete(openSymbols, clean)
		*openCount--
	}
	return nil
}

func (s *BotService) setPositions(positions []domain.Position) {
	s.mu.Lock()
	s.positions = positions
	s.mu.Unlock()
}

func (s *BotService) recordTrade(ctx context.Context, trade domain.TradeRecord) {
	s.mu.Lock()
	s.trades.Push(trade)
	s.mu.Unlock()
	if s.tradeRepo != nil {
		if err := s.tradeRepo.SaveTrade(ctx, trade); err != nil {
			s.logger.Warn("trade persist failed",
				zap.String("symbol", trade.Symbol), zap.Error(err))
		}
	}
}

func (s *BotService) recordError(symbol string, err error) {
	s.mu.Lock()
	s.errors.Push(domain.ErrorRecord{
		Symbol:  symbol,
		Message: err.Error(),
		At:      s.timeNow(),
	})
	s.mu.Unlock()
}

// Snapshot returns a deep copy of the aggregate state; publish happens only
// after the per-symbol loop, so receivers never see a half-updated cycle.
func (s *BotService) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions := make([]domain.Position, len(s.positions))
	copy(positions, s.positions)

	signals := s.signals.Items()
	for i := range signals {
		signals[i].Metrics = copyMetrics(signals[i].Metrics)
	}

	return domain.Snapshot{
		Running:   s.running,
		LastTick:  s.lastTick,
		Account:   s.account,
		Positions: positions,
		Signals:   signals,
		Trades:    s.trades.Items(),
		Errors:    s.errors.Items(),
	}
}

func copyMetrics(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func normalizeSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}
