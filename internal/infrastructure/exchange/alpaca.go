package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vitos/trade_signal_bot/internal/domain"
	"go.uber.org/zap"
)

// AlpacaBroker is a REST client for the Alpaca trading and market-data APIs.
// Crypto symbols (containing a slash, e.g. "BTC/USD") use the crypto data
// endpoint and gtc orders; everything else is treated as a stock symbol on
// the free IEX feed with day orders.
type AlpacaBroker struct {
	keyID     string
	secretKey string
	baseURL   string
	dataURL   string
	timeframe string
	client    *http.Client
	logger    *zap.Logger
}

type AlpacaConfig struct {
	KeyID     string
	SecretKey string
	BaseURL   string
	DataURL   string
	Timeframe string
}

func NewAlpacaBroker(cfg AlpacaConfig, logger *zap.Logger) *AlpacaBroker {
	return &AlpacaBroker{
		keyID:     cfg.KeyID,
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		dataURL:   strings.TrimRight(cfg.DataURL, "/"),
		timeframe: cfg.Timeframe,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    logger,
	}
}

var _ domain.Broker = (*AlpacaBroker)(nil)

// Alpaca serializes most numbers as strings.
type alpacaAccount struct {
	Equity      string `json:"equity"`
	Cash        string `json:"cash"`
	BuyingPower string `json:"buying_power"`
	LastEquity  string `json:"last_equity"`
}

type alpacaPosition struct {
	Symbol         string `json:"symbol"`
	Side           string `json:"side"`
	Qty            string `json:"qty"`
	AvgEntryPrice  string `json:"avg_entry_price"`
	CurrentPrice   string `json:"current_price"`
	UnrealizedPL   string `json:"unrealized_pl"`
	UnrealizedPLPC string `json:"unrealized_plpc"`
}

type alpacaBar struct {
	Time   time.Time `json:"t"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume float64   `json:"v"`
}

type alpacaOrder struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Qty    string `json:"qty"`
	Side   string `json:"side"`
}

func (b *AlpacaBroker) GetAccount(ctx context.Context) (domain.Account, error) {
	var raw alpacaAccount
	if err := b.get(ctx, b.baseURL+"/v2/account", &raw); err != nil {
		return domain.Account{}, fmt.Errorf("alpaca account: %w", err)
	}
	equity := parseFloat(raw.Equity)
	return domain.Account{
		Equity:      equity,
		Cash:        parseFloat(raw.Cash),
		BuyingPower: parseFloat(raw.BuyingPower),
		PnL:         equity - parseFloat(raw.LastEquity),
	}, nil
}

func (b *AlpacaBroker) GetPositions(ctx context.Context) ([]domain.Position, error) {
	var raw []alpacaPosition
	if err := b.get(ctx, b.baseURL+"/v2/positions", &raw); err != nil {
		return nil, fmt.Errorf("alpaca positions: %w", err)
	}
	positions := make([]domain.Position, 0, len(raw))
	for _, p := range raw {
		side := domain.SideLong
		if p.Side == "short" {
			side = domain.SideShort
		}
		positions = append(positions, domain.Position{
			Symbol:           p.Symbol,
			Side:             side,
			Qty:              parseFloat(p.Qty),
			EntryPrice:       parseFloat(p.AvgEntryPrice),
			CurrentPrice:     parseFloat(p.CurrentPrice),
			UnrealizedPnL:    parseFloat(p.UnrealizedPL),
			UnrealizedPnLPct: parseFloat(p.UnrealizedPLPC) * 100,
		})
	}
	return positions, nil
}

func (b *AlpacaBroker) GetBars(ctx context.Context, symbol string, limit int) ([]domain.Bar, error) {
	if isCrypto(symbol) {
		return b.getCryptoBars(ctx, symbol, limit)
	}
	return b.getStockBars(ctx, symbol, limit)
}

func (b *AlpacaBroker) getCryptoBars(ctx context.Context, symbol string, limit int) ([]domain.Bar, error) {
	q := url.Values{}
	q.Set("symbols", symbol)
	q.Set("timeframe", b.timeframe)
	q.Set("limit", strconv.Itoa(limit))

	var resp struct {
		Bars map[string][]alpacaBar `json:"bars"`
	}
	endpoint := b.dataURL + "/v1beta3/crypto/us/bars?" + q.Encode()
	if err := b.get(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("alpaca crypto bars %s: %w", symbol, err)
	}
	return toBars(resp.Bars[symbol]), nil
}

func (b *AlpacaBroker) getStockBars(ctx context.Context, symbol string, limit int) ([]domain.Bar, error) {
	q := url.Values{}
	q.Set("timeframe", b.timeframe)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("feed", "iex")

	var resp struct {
		Bars []alpacaBar `json:"bars"`
	}
	endpoint := b.dataURL + "/v2/stocks/" + url.PathEscape(symbol) + "/bars?" + q.Encode()
	if err := b.get(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("alpaca stock bars %s: %w", symbol, err)
	}
	return toBars(resp.Bars), nil
}

func (b *AlpacaBroker) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	bars, err := b.GetBars(ctx, symbol, 1)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("no bars for %s", symbol)
	}
	return bars[len(bars)-1].Close, nil
}

func (b *AlpacaBroker) PlaceOrder(ctx context.Context, symbol string, qty float64, side domain.OrderSide) (*domain.OrderHandle, error) {
	tif := "day"
	if isCrypto(symbol) {
		tif = "gtc"
	}
	body := map[string]any{
		"symbol":        strings.ReplaceAll(symbol, "/", ""),
		"qty":           strconv.FormatFloat(qty, 'f', -1, 64),
		"side":          string(side),
		"type":          "market",
		"time_in_force": tif,
	}

	var raw alpacaOrder
	status, err := b.post(ctx, b.baseURL+"/v2/orders", body, &raw)
	if err != nil {
		return nil, fmt.Errorf("alpaca order %s: %w", symbol, err)
	}
	if status >= 400 && status < 500 {
		// Rejections (insufficient funds, halted asset) are a no-op.
		b.logger.Warn("order rejected",
			zap.String("symbol", symbol), zap.Int("status", status))
		return nil, nil
	}
	return &domain.OrderHandle{
		ID:     raw.ID,
		Symbol: raw.Symbol,
		Qty:    parseFloat(raw.Qty),
		Side:   side,
	}, nil
}

func (b *AlpacaBroker) ClosePosition(ctx context.Context, symbol string) error {
	endpoint := b.baseURL + "/v2/positions/" + url.PathEscape(strings.ReplaceAll(symbol, "/", ""))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	b.setHeaders(req)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("alpaca close %s: %w", symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("alpaca close %s: status %d: %s", symbol, resp.StatusCode, readBody(resp.Body))
	}
	return nil
}

func (b *AlpacaBroker) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	b.setHeaders(req)

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, readBody(resp.Body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// post returns the HTTP status so callers can treat 4xx as a rejection
// rather than a transport failure.
func (b *AlpacaBroker) post(ctx context.Context, endpoint string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	b.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, readBody(resp.Body))
	}
	if resp.StatusCode < 400 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (b *AlpacaBroker) setHeaders(req *http.Request) {
	req.Header.Set("APCA-API-KEY-ID", b.keyID)
	req.Header.Set("APCA-API-SECRET-KEY", b.secretKey)
}

func isCrypto(symbol string) bool {
	return strings.Contains(symbol, "/")
}

func toBars(raw []alpacaBar) []domain.Bar {
	bars := make([]domain.Bar, len(raw))
	for i, rb := range raw {
		bars[i] = domain.Bar{
			Time:   rb.Time,
			Open:   rb.Open,
			High:   rb.High,
			Low:    rb.Low,
			Close:  rb.Close,
			Volume: rb.Volume,
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func readBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(data)
}
