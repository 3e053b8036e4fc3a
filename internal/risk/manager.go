// Package risk implements position sizing, the max-concurrent-position gate,
// and stop-loss / take-profit evaluation.
package risk

import "github.com/vitos/trade_signal_bot/internal/domain"

// Config is the process-wide risk policy, read-only during a run.
type Config struct {
	RiskPerTrade  float64
	StopLossPct   float64
	TakeProfitPct float64
	MaxPositions  int
}

// ExitReason classifies why an open position should be closed.
type ExitReason string

const (
	ExitNone       ExitReason = ""
	ExitStopLoss   ExitReason = "STOP_LOSS"
	ExitTakeProfit ExitReason = "TAKE_PROFIT"
)

// Levels are the exit prices attached to an entry.
type Levels struct {
	StopLoss   float64
	TakeProfit float64
}

// Manager applies the risk policy. Its three operations are orthogonal:
// sizing determines how much, the open-position gate determines whether at
// all, and the exit check determines when to close.
type Manager struct {
	cfg Config
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// PositionSize returns the fixed-fractional order quantity
// equity*riskPerTrade/price, or 0 when the price is not positive.
func (m *Manager) PositionSize(equity, price float64) float64 {
	if price <= 0 {
		return 0
	}
	return equity * m.cfg.RiskPerTrade / price
}

// CanOpenPosition reports whether another position may be opened given the
// current open count.
func (m *Manager) CanOpenPosition(openCount int) bool {
	return openCount < m.cfg.MaxPositions
}

// ExitLevels computes stop-loss and take-profit prices for an entry,
// mirrored for shorts.
func (m *Manager) ExitLevels(entryPrice float64, side domain.Side) Levels {
	if side == domain.SideShort {
		return Levels{
			StopLoss:   entryPrice * (1 + m.cfg.StopLossPct),
			TakeProfit: entryPrice * (1 - m.cfg.TakeProfitPct),
		}
	}
	return Levels{
		StopLoss:   entryPrice * (1 - m.cfg.StopLossPct),
		TakeProfit: entryPrice * (1 + m.cfg.TakeProfitPct),
	}
}

// CheckExit evaluates an open position against the current price. Only the
// long side is implemented; short positions currently get no exit signal
// here and rely on strategy-driven closes (the entry path never opens
// shorts, so the branch is unreachable in practice).
func (m *Manager) CheckExit(position *domain.Position, currentPrice float64) ExitReason {
	if position == nil {
		return ExitNone
	}
	if position.Side != domain.SideLong {
		return ExitNone
	}
	levels := m.ExitLevels(position.EntryPrice, position.Side)
	if currentPrice <= levels.StopLoss {
		return ExitStopLoss
	}
	if currentPrice >= levels.TakeProfit {
		return ExitTakeProfit
	}
	return ExitNone
}

// MaxPositions exposes the configured cap for log messages.
func (m *Manager) MaxPositions() int {
	return m.cfg.MaxPositions
}
