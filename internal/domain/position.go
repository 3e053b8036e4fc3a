package domain

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Position represents an open position held at the broker.
type Position struct {
	Symbol           string  `json:"symbol"`
	Side             Side    `json:"side"`
	Qty              float64 `json:"qty"`
	EntryPrice       float64 `json:"entry_price"`
	CurrentPrice     float64 `json:"current_price"`
	UnrealizedPnL    float64 `json:"unrealized_pnl"`
	UnrealizedPnLPct float64 `json:"unrealized_pnl_pct"`
}

// Account is the broker's authoritative account snapshot, replaced wholesale
// each tick.
type Account struct {
	Equity      float64 `json:"equity"`
	Cash        float64 `json:"cash"`
	BuyingPower float64 `json:"buying_power"`
	PnL         float64 `json:"pnl"`
}
