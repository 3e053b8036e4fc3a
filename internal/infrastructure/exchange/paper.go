package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/vitos/trade_signal_bot/internal/domain"
)

// PaperBroker is an in-memory broker with deterministic fills at the current
// price. It backs local runs without credentials and the orchestrator tests.
type PaperBroker struct {
	mu           sync.Mutex
	cash         float64
	initialCash  float64
	positions    map[string]*domain.Position
	bars         map[string][]domain.Bar
	prices       map[string]float64
	barErrs      map[string]error
	rejectOrders bool
}

func NewPaperBroker(cash float64) *PaperBroker {
	return &PaperBroker{
		cash:        cash,
		initialCash: cash,
		positions:   make(map[string]*domain.Position),
		bars:        make(map[string][]domain.Bar),
		prices:      make(map[string]float64),
		barErrs:     make(map[string]error),
	}
}

var _ domain.Broker = (*PaperBroker)(nil)

// SeedBars installs the bar history for a symbol; the last close becomes the
// current price.
func (b *PaperBroker) SeedBars(symbol string, bars []domain.Bar) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bars[paperKey(symbol)] = bars
	if len(bars) > 0 {
		b.prices[paperKey(symbol)] = bars[len(bars)-1].Close
	}
}

func (b *PaperBroker) SetPrice(symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[paperKey(symbol)] = price
}

// FailBars makes bar fetches for symbol return err; pass nil to clear.
func (b *PaperBroker) FailBars(symbol string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.barErrs, paperKey(symbol))
		return
	}
	b.barErrs[paperKey(symbol)] = err
}

func (b *PaperBroker) SetRejectOrders(reject bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejectOrders = reject
}

// SeedPosition installs a pre-existing open position.
func (b *PaperBroker) SeedPosition(pos domain.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := pos
	b.positions[paperKey(pos.Symbol)] = &p
}

func (b *PaperBroker) GetAccount(ctx context.Context) (domain.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	equity := b.cash
	for key, p := range b.positions {
		price, ok := b.prices[key]
		if !ok {
			price = p.EntryPrice
		}
		equity += price * p.Qty
	}
	return domain.Account{
		Equity:      equity,
		Cash:        b.cash,
		BuyingPower: b.cash,
		PnL:         equity - b.initialCash,
	}, nil
}

func (b *PaperBroker) GetPositions(ctx context.Context) ([]domain.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	positions := make([]domain.Position, 0, len(b.positions))
	for key, p := range b.positions {
		pos := *p
		if price, ok := b.prices[key]; ok {
			pos.CurrentPrice = price
			pos.UnrealizedPnL = (price - pos.EntryPrice) * pos.Qty
			if notional := pos.EntryPrice * pos.Qty; notional != 0 {
				pos.UnrealizedPnLPct = pos.UnrealizedPnL / notional * 100
			}
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

func (b *PaperBroker) GetBars(ctx context.Context, symbol string, limit int) ([]domain.Bar, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := paperKey(symbol)
	if err := b.barErrs[key]; err != nil {
		return nil, err
	}
	bars := b.bars[key]
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	out := make([]domain.Bar, len(bars))
	copy(out, bars)
	return out, nil
}

func (b *PaperBroker) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	price, ok := b.prices[paperKey(symbol)]
	if !ok {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return price, nil
}

func (b *PaperBroker) PlaceOrder(ctx context.Context, symbol string, qty float64, side domain.OrderSide) (*domain.OrderHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rejectOrders {
		return nil, nil
	}
	key := paperKey(symbol)
	price, ok := b.prices[key]
	if !ok {
		return nil, fmt.Errorf("no price for %s", symbol)
	}

	switch side {
	case domain.OrderBuy:
		cost := price * qty
		if cost > b.cash {
			return nil, nil
		}
		b.cash -= cost
		if p, exists := b.positions[key]; exists {
			total := p.Qty + qty
			p.EntryPrice = (p.EntryPrice*p.Qty + price*qty) / total
			p.Qty = total
		} else {
			b.positions[key] = &domain.Position{
				Symbol:       symbol,
				Side:         domain.SideLong,
				Qty:          qty,
				EntryPrice:   price,
				CurrentPrice: price,
			}
		}
	case domain.OrderSell:
		p, exists := b.positions[key]
		if !exists || p.Qty < qty {
			return nil, nil
		}
		b.cash += price * qty
		p.Qty -= qty
		if p.Qty <= 0 {
			delete(b.positions, key)
		}
	}

	return &domain.OrderHandle{
		ID:     ulid.Make().String(),
		Symbol: symbol,
		Qty:    qty,
		Side:   side,
	}, nil
}

func (b *PaperBroker) ClosePosition(ctx context.Context, symbol string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := paperKey(symbol)
	p, exists := b.positions[key]
	if !exists {
		return fmt.Errorf("no open position for %s", symbol)
	}
	price, ok := b.prices[key]
	if !ok {
		price = p.EntryPrice
	}
	b.cash += price * p.Qty
	delete(b.positions, key)
	return nil
}

func paperKey(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}
