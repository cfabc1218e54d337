package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/risk_guard/internal/domain"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	BybitBaseURL        = "https://api.bybit.com"
	BybitTestnetBaseURL = "https://api-testnet.bybit.com"

	recvWindow        = 5000
	closedPnLLookback = 7 * 24 * time.Hour
)

// stop order types that protect a position against loss
var protectiveStopTypes = map[string]bool{
	"StopLoss":        true,
	"PartialStopLoss": true,
	"TrailingStop":    true,
	"Stop":            true,
}

// BybitAdapter reads one account's linear USDT perpetuals through the v5
// REST API.
type BybitAdapter struct {
	apiKey    string
	apiSecret string
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	logger    *zap.Logger
	now       func() time.Time
}

func NewBybitAdapter(apiKey, apiSecret, baseURL string, logger *zap.Logger) *BybitAdapter {
	if baseURL == "" {
		baseURL = BybitBaseURL
	}
	return &BybitAdapter{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(10), 5),
		logger:    logger,
		now:       time.Now,
	}
}

// --- REST API ---

func (b *BybitAdapter) sign(params string, timestamp int64) string {
	// timestamp + apiKey + recvWindow + params
	toSign := fmt.Sprintf("%d%s%d%s", timestamp, b.apiKey, recvWindow, params)
	h := hmac.New(sha256.New, []byte(b.apiSecret))
	h.Write([]byte(toSign))
	return hex.EncodeToString(h.Sum(nil))
}

// get performs a signed GET and decodes the "result" object into out.
func (b *BybitAdapter) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	params := query.Encode()
	timestamp := b.now().UnixMilli()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path+"?"+params, bytes.NewReader(nil))
	if err != nil {
		return err
	}
	req.Header.Set("X-BAPI-API-KEY", b.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("X-BAPI-SIGN", b.sign(params, timestamp))
	req.Header.Set("X-BAPI-RECV-WINDOW", strconv.Itoa(recvWindow))
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("bybit %s: http %d: %s", path, resp.StatusCode, string(body))
	}

	var envelope struct {
		RetCode int             `json:"retCode"`
		RetMsg  string          `json:"retMsg"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("bybit %s: decode: %w", path, err)
	}
	if envelope.RetCode != 0 {
		return fmt.Errorf("bybit %s: error %d: %s", path, envelope.RetCode, envelope.RetMsg)
	}
	return json.Unmarshal(envelope.Result, out)
}

func (b *BybitAdapter) GetWalletBalance(ctx context.Context) (float64, error) {
	var result struct {
		List []struct {
			TotalWalletBalance string `json:"totalWalletBalance"`
			TotalEquity        string `json:"totalEquity"`
		} `json:"list"`
	}
	q := url.Values{"accountType": {"UNIFIED"}}
	if err := b.get(ctx, "/v5/account/wallet-balance", q, &result); err != nil {
		return 0, err
	}
	if len(result.List) == 0 {
		return 0, fmt.Errorf("bybit wallet balance: empty account list")
	}

	acct := result.List[0]
	raw := acct.TotalWalletBalance
	if raw == "" {
		raw = acct.TotalEquity
	}
	return parseNumber(raw)
}

type bybitPosition struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Size          string `json:"size"`
	AvgPrice      string `json:"avgPrice"`
	MarkPrice     string `json:"markPrice"`
	Leverage      string `json:"leverage"`
	LiqPrice      string `json:"liqPrice"`
	UnrealisedPnl string `json:"unrealisedPnl"`
	StopLoss      string `json:"stopLoss"`
}

// GetPositions returns every open position enriched with account risk.
// Positions the exchange reports with unparseable figures are left out of
// the result and reported together as MalformedSnapshotErrors next to the
// valid snapshots.
func (b *BybitAdapter) GetPositions(ctx context.Context) ([]domain.PositionSnapshot, error) {
	balance, err := b.GetWalletBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("wallet balance: %w", err)
	}

	var result struct {
		List []bybitPosition `json:"list"`
	}
	q := url.Values{"category": {"linear"}, "settleCoin": {"USDT"}}
	if err := b.get(ctx, "/v5/position/list", q, &result); err != nil {
		return nil, err
	}

	var open []bybitPosition
	for _, raw := range result.List {
		if raw.Side == "Buy" || raw.Side == "Sell" {
			open = append(open, raw)
		}
	}
	if len(open) == 0 {
		return nil, nil
	}

	stops, err := b.protectedSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("stop orders: %w", err)
	}

	var malformed error
	snapshots := make([]domain.PositionSnapshot, 0, len(open))
	for _, raw := range open {
		snap, err := b.toSnapshot(raw, balance, stops[raw.Symbol])
		if err != nil {
			b.logger.Warn("Skipping position", zap.String("symbol", raw.Symbol), zap.Error(err))
			malformed = multierr.Append(malformed, err)
			continue
		}
		if snap.Size == 0 {
			continue
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, malformed
}

func (b *BybitAdapter) toSnapshot(raw bybitPosition, balance float64, hasStopOrder bool) (domain.PositionSnapshot, error) {
	var size, entry, mark, leverage, liq, pnl, stopLoss float64
	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"size", raw.Size, &size},
		{"avgPrice", raw.AvgPrice, &entry},
		{"markPrice", raw.MarkPrice, &mark},
		{"leverage", raw.Leverage, &leverage},
		{"liqPrice", raw.LiqPrice, &liq},
		{"unrealisedPnl", raw.UnrealisedPnl, &pnl},
		{"stopLoss", raw.StopLoss, &stopLoss},
	}
	for _, f := range fields {
		v, err := parseNumber(f.raw)
		if err != nil {
			return domain.PositionSnapshot{}, &domain.MalformedSnapshotError{Symbol: raw.Symbol, Field: f.name, Reason: err.Error()}
		}
		*f.dst = v
	}

	// Portfolio margin accounts report no leverage per position.
	if raw.Leverage == "" {
		leverage = 1
	}

	side := domain.SideLong
	if raw.Side == "Sell" {
		side = domain.SideShort
	}

	return domain.NewPositionSnapshot(domain.PositionParams{
		Symbol:           raw.Symbol,
		Side:             side,
		Size:             size,
		EntryPrice:       entry,
		MarkPrice:        mark,
		Leverage:         int(leverage),
		LiquidationPrice: liq,
		UnrealizedPnL:    pnl,
		HasStopLoss:      stopLoss > 0 || hasStopOrder,
	}, balance), nil
}

// protectedSymbols lists the symbols with an open protective stop order.
func (b *BybitAdapter) protectedSymbols(ctx context.Context) (map[string]bool, error) {
	var result struct {
		List []struct {
			Symbol        string `json:"symbol"`
			StopOrderType string `json:"stopOrderType"`
		} `json:"list"`
	}
	q := url.Values{"category": {"linear"}, "settleCoin": {"USDT"}, "orderFilter": {"StopOrder"}}
	if err := b.get(ctx, "/v5/order/realtime", q, &result); err != nil {
		return nil, err
	}

	out := make(map[string]bool)
	for _, o := range result.List {
		if protectiveStopTypes[o.StopOrderType] {
			out[o.Symbol] = true
		}
	}
	return out, nil
}

// GetRecentTrades returns closed trades of the last seven days, most recent
// first. Break-even closes are skipped.
func (b *BybitAdapter) GetRecentTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	var result struct {
		List []struct {
			Symbol      string `json:"symbol"`
			OrderID     string `json:"orderId"`
			ClosedPnl   string `json:"closedPnl"`
			UpdatedTime string `json:"updatedTime"`
		} `json:"list"`
	}
	q := url.Values{
		"category":  {"linear"},
		"limit":     {strconv.Itoa(limit)},
		"startTime": {strconv.FormatInt(b.now().Add(-closedPnLLookback).UnixMilli(), 10)},
	}
	if err := b.get(ctx, "/v5/position/closed-pnl", q, &result); err != nil {
		return nil, err
	}

	trades := make([]domain.TradeRecord, 0, len(result.List))
	for _, raw := range result.List {
		pnl, err := decimal.NewFromString(raw.ClosedPnl)
		if err != nil {
			b.logger.Warn("Skipping closed pnl record", zap.String("order_id", raw.OrderID), zap.Error(err))
			continue
		}
		if pnl.IsZero() {
			continue
		}
		ms, err := strconv.ParseInt(raw.UpdatedTime, 10, 64)
		if err != nil {
			b.logger.Warn("Skipping closed pnl record", zap.String("order_id", raw.OrderID), zap.Error(err))
			continue
		}
		trades = append(trades, domain.NewTradeRecord(raw.Symbol, pnl.InexactFloat64(), time.UnixMilli(ms).UTC(), raw.OrderID))
	}
	return trades, nil
}

func parseNumber(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// BybitFactory hands out one adapter per API key so each account keeps its
// own request budget.
type BybitFactory struct {
	baseURL string
	logger  *zap.Logger

	mu       sync.Mutex
	adapters map[string]*BybitAdapter
}

func NewBybitFactory(baseURL string, logger *zap.Logger) *BybitFactory {
	return &BybitFactory{
		baseURL:  baseURL,
		logger:   logger,
		adapters: make(map[string]*BybitAdapter),
	}
}

func (f *BybitFactory) ForUser(u *domain.User) domain.AccountProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.adapters[u.APIKey]; ok && a.apiSecret == u.APISecret {
		return a
	}
	a := NewBybitAdapter(u.APIKey, u.APISecret, f.baseURL, f.logger.With(zap.Int64("user_id", u.ID)))
	f.adapters[u.APIKey] = a
	return a
}
