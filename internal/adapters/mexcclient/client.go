package mexcclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sniperBot/internal/domain"
	"sniperBot/internal/execution"
	"sniperBot/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"golang.org/x/time/rate"
)

const (
	baseURLProduction = "https://api.mexc.com"

	defaultRequestsPerSecond = 10
)

// MEXC error codes.
const (
	codeInsufficientBalance = 10101
	codeInsufficientPos     = 30004
	codeMinTransaction      = 30002
	codeTradingDisabled     = 30016
	codeInvalidSymbol       = 30014
	codeUnknownOrder        = -2011
	codeOrderNotExist       = -2013
	codeAPIKeyInvalid       = 700001
	codeSignatureInvalid    = 700002
	codeTimestampOutside    = 700003
	codeParamError          = 700004
	codePairNotFound        = 730001
)

// Client implements ports.ExchangeClient against the MEXC spot v3 REST API.
// Public endpoints follow the Binance wire format and go through go-binance;
// order endpoints use MEXC's own key header and string order ids (orders.go).
type Client struct {
	spot    *binance.Client
	limiter *rate.Limiter
	logger  ports.Logger

	fillPollAttempts int
	fillPollInterval time.Duration
}

// Config holds configuration for the MEXC adapter.
type Config struct {
	APIKey            string
	SecretKey         string
	BaseURL           string // defaults to https://api.mexc.com
	RequestsPerSecond float64
	Logger            ports.Logger

	// FillPollAttempts bounds the order lookups after a market order is
	// acknowledged. Defaults to 3, 200ms apart.
	FillPollAttempts int
	FillPollInterval time.Duration
}

// New creates a MEXC client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for MEXC client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	client.BaseURL = baseURLProduction
	if cfg.BaseURL != "" {
		client.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}

	cfg.Logger.Info(context.Background(), "MEXC client configured", map[string]interface{}{
		"baseURL":           client.BaseURL,
		"requestsPerSecond": rps,
	})

	if cfg.FillPollAttempts <= 0 {
		cfg.FillPollAttempts = defaultFillPollAttempts
	}
	if cfg.FillPollInterval <= 0 {
		cfg.FillPollInterval = defaultFillPollInterval
	}

	return &Client{
		spot:             client,
		limiter:          rate.NewLimiter(rate.Limit(rps), burst),
		logger:           cfg.Logger,
		fillPollAttempts: cfg.FillPollAttempts,
		fillPollInterval: cfg.FillPollInterval,
	}, nil
}

// mapAPICode translates a MEXC error code into a ports error. The two
// transient codes keep their raw form so the retry executor can see them.
func mapAPICode(code int, msg string) error {
	switch code {
	case ports.CodeSymbolNotTradeable, ports.CodeRateLimited:
		return &ports.ExchangeError{Code: code, Message: msg}
	case codeSignatureInvalid, codeAPIKeyInvalid:
		return ports.ErrAuthenticationFailed
	case codeTimestampOutside:
		return ports.ErrTimeout
	case codeParamError, codeMinTransaction:
		return ports.ErrInvalidRequest
	case codeInsufficientBalance, codeInsufficientPos:
		return ports.ErrInsufficientFunds
	case codeUnknownOrder, codeOrderNotExist:
		return ports.ErrOrderNotFound
	case codeInvalidSymbol, codePairNotFound:
		return ports.ErrSymbolNotFound
	case codeTradingDisabled:
		return ports.ErrTradingDisabled
	default:
		return ports.ErrUnknown
	}
}

// handleError translates API and transport errors into ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		mappedErr := mapAPICode(int(apiErr.Code), apiErr.Message)
		var exErr *ports.ExchangeError
		if errors.As(mappedErr, &exErr) {
			// Transient: the caller decides whether to retry, so keep the log quiet.
			c.logger.Warn(ctx, operation+" returned a transient exchange error", fields)
		} else {
			c.logger.Error(ctx, err, operation+" failed with API error", fields)
		}
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"),
		strings.Contains(err.Error(), "no such host"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrExchangeUnavailable, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, operation+" failed", fields)
	return finalErr
}

// wait blocks until the rate limiter admits another request.
func (c *Client) wait(ctx context.Context, operation string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return c.handleError(ctx, err, operation)
	}
	return nil
}

// GetTickerPrice retrieves the last traded price for symbol.
func (c *Client) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	op := "GetTickerPrice"
	if err := c.wait(ctx, op); err != nil {
		return 0, err
	}

	prices, err := c.spot.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	for _, p := range prices {
		if p.Symbol != symbol {
			continue
		}
		price, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			parseErr := fmt.Errorf("could not parse price '%s': %w", p.Price, err)
			return 0, c.handleError(ctx, parseErr, op)
		}
		return price, nil
	}
	return 0, fmt.Errorf("%s failed: %w: no ticker for %s", op, ports.ErrSymbolNotFound, symbol)
}

// GetOrderBook returns a depth snapshot limited to limit levels per side.
func (c *Client) GetOrderBook(ctx context.Context, symbol string, limit int) (*ports.OrderBook, error) {
	op := "GetOrderBook"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}

	svc := c.spot.NewDepthService().Symbol(symbol)
	if limit > 0 {
		svc = svc.Limit(limit)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	book := &ports.OrderBook{
		Symbol: symbol,
		Bids:   make([]ports.PriceLevel, 0, len(res.Bids)),
		Asks:   make([]ports.PriceLevel, 0, len(res.Asks)),
	}
	for _, b := range res.Bids {
		book.Bids = append(book.Bids, parseLevel(b.Price, b.Quantity))
	}
	for _, a := range res.Asks {
		book.Asks = append(book.Asks, parseLevel(a.Price, a.Quantity))
	}
	return book, nil
}

// GetSymbolInfo returns the trading rules for symbol, or ErrSymbolNotFound
// when it is not listed yet.
func (c *Client) GetSymbolInfo(ctx context.Context, symbol string) (*ports.SymbolInfo, error) {
	op := "GetSymbolInfo"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}

	info, err := c.spot.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	for i := range info.Symbols {
		s := &info.Symbols[i]
		if s.Symbol != symbol {
			continue
		}
		return translateSymbol(s.Symbol, s.Status, s.BaseAsset, s.QuoteAsset, s.IsSpotTradingAllowed, s.BaseAssetPrecision, s.Filters), nil
	}
	return nil, fmt.Errorf("%s failed: %w: %s", op, ports.ErrSymbolNotFound, symbol)
}

// GetAccountBalances returns every non-empty asset balance.
func (c *Client) GetAccountBalances(ctx context.Context) ([]ports.Balance, error) {
	op := "GetAccountBalances"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}

	account, err := c.spot.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	balances := make([]ports.Balance, 0, len(account.Balances))
	for _, b := range account.Balances {
		free, err := strconv.ParseFloat(b.Free, 64)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("could not parse free balance '%s' for %s: %w", b.Free, b.Asset, err), op)
		}
		locked, err := strconv.ParseFloat(b.Locked, 64)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("could not parse locked balance '%s' for %s: %w", b.Locked, b.Asset, err), op)
		}
		if free == 0 && locked == 0 {
			continue
		}
		balances = append(balances, ports.Balance{Asset: b.Asset, Free: free, Locked: locked})
	}
	return balances, nil
}

// GetKlines retrieves the most recent limit candles for symbol.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error) {
	op := "GetKlines"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}

	svc := c.spot.NewKlinesService().Symbol(symbol).Interval(interval)
	if limit > 0 {
		svc = svc.Limit(limit)
	}
	raw, err := svc.Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	klines := make([]*domain.Kline, 0, len(raw))
	for _, bk := range raw {
		k, err := translateKline(bk, symbol, interval)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		klines = append(klines, k)
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "interval": interval, "count": len(klines)})
	return klines, nil
}

// GetKlinesRange pages through candles between start and end, oldest first.
func (c *Client) GetKlinesRange(ctx context.Context, symbol, interval string, start, end time.Time, pageSize int) ([]*domain.Kline, error) {
	op := "GetKlinesRange"
	if pageSize <= 0 {
		pageSize = 500
	}

	var all []*domain.Kline
	cursor := start
	for cursor.Before(end) {
		if err := c.wait(ctx, op); err != nil {
			return nil, err
		}
		raw, err := c.spot.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(cursor.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(pageSize).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(raw) == 0 {
			break
		}
		for _, bk := range raw {
			k, err := translateKline(bk, symbol, interval)
			if err != nil {
				return nil, c.handleError(ctx, err, op)
			}
			all = append(all, k)
		}
		next := time.UnixMilli(raw[len(raw)-1].CloseTime + 1)
		if !next.After(cursor) {
			break
		}
		cursor = next
		if len(raw) < pageSize {
			break
		}
	}
	return all, nil
}

// Ping checks connectivity to the exchange.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.wait(ctx, op); err != nil {
		return err
	}
	if err := c.spot.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	return nil
}

// --- Translation Helpers ---

func parseLevel(price, qty string) ports.PriceLevel {
	p, _ := strconv.ParseFloat(price, 64)
	q, _ := strconv.ParseFloat(qty, 64)
	return ports.PriceLevel{Price: p, Quantity: q}
}

// averagePrice derives the fill price from cumulative quote over executed
// quantity, falling back to the order price.
func averagePrice(cumQuote, executed, price float64) float64 {
	if executed > 0 && cumQuote > 0 {
		return cumQuote / executed
	}
	return price
}

// symbolTradeable reports whether a listing accepts API orders. MEXC uses
// "1"/"ENABLED" where Binance uses "TRADING".
func symbolTradeable(status string, spotAllowed bool) bool {
	switch strings.ToUpper(status) {
	case "1", "ENABLED", "TRADING":
		return spotAllowed
	default:
		return false
	}
}

func translateSymbol(symbol, status, base, quote string, spotAllowed bool, basePrecision int, filters []map[string]interface{}) *ports.SymbolInfo {
	info := &ports.SymbolInfo{
		Symbol:     symbol,
		Status:     status,
		BaseAsset:  base,
		QuoteAsset: quote,
		Tradeable:  symbolTradeable(status, spotAllowed),
	}

	for _, f := range filters {
		filterType, _ := f["filterType"].(string)
		switch filterType {
		case execution.FilterLotSize:
			info.Filters = append(info.Filters, ports.SymbolFilter{
				FilterType: filterType,
				MinQty:     stringField(f, "minQty"),
				MaxQty:     stringField(f, "maxQty"),
				StepSize:   stringField(f, "stepSize"),
			})
		case execution.FilterMinNotional, execution.FilterNotional:
			info.Filters = append(info.Filters, ports.SymbolFilter{
				FilterType:  filterType,
				MinNotional: stringField(f, "minNotional"),
			})
		case "PRICE_FILTER":
			info.Filters = append(info.Filters, ports.SymbolFilter{
				FilterType: filterType,
				TickSize:   stringField(f, "tickSize"),
			})
		}
	}

	if info.Filter(execution.FilterLotSize) == nil && basePrecision > 0 {
		step := precisionStep(basePrecision)
		info.Filters = append(info.Filters, ports.SymbolFilter{
			FilterType: execution.FilterLotSize,
			MinQty:     step,
			StepSize:   step,
		})
	}
	return info
}

func stringField(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// precisionStep renders 10^-precision, e.g. 4 -> "0.0001".
func precisionStep(precision int) string {
	if precision <= 0 {
		return "1"
	}
	return "0." + strings.Repeat("0", precision-1) + "1"
}

func translateKline(bk *binance.Kline, symbol, interval string) (*domain.Kline, error) {
	if bk == nil {
		return nil, errors.New("received nil kline")
	}
	open, err := strconv.ParseFloat(bk.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing open price '%s': %w", bk.Open, err)
	}
	high, err := strconv.ParseFloat(bk.High, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing high price '%s': %w", bk.High, err)
	}
	low, err := strconv.ParseFloat(bk.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing low price '%s': %w", bk.Low, err)
	}
	cls, err := strconv.ParseFloat(bk.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing close price '%s': %w", bk.Close, err)
	}
	vol, err := strconv.ParseFloat(bk.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing volume '%s': %w", bk.Volume, err)
	}
	quoteVol, _ := strconv.ParseFloat(bk.QuoteAssetVolume, 64)

	return &domain.Kline{
		OpenTime:    time.UnixMilli(bk.OpenTime),
		CloseTime:   time.UnixMilli(bk.CloseTime),
		Symbol:      symbol,
		Interval:    interval,
		Open:        open,
		High:        high,
		Low:         low,
		Close:       cls,
		Volume:      vol,
		QuoteVolume: quoteVol,
	}, nil
}
