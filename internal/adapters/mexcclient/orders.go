package mexcclient

import (
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
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

const (
	orderPath         = "/api/v3/order"
	apiKeyHeader      = "X-MEXC-APIKEY"
	defaultRecvWindow = 5000

	defaultFillPollAttempts = 3
	defaultFillPollInterval = 200 * time.Millisecond
)

// MEXC spot order types that Binance expresses as LIMIT + time in force.
const (
	orderTypeImmediateOrCancel = "IMMEDIATE_OR_CANCEL"
	orderTypeFillOrKill        = "FILL_OR_KILL"
	orderTypeStopLossLimit     = "STOP_LOSS_LIMIT"
)

// mexcOrderID accepts both the string ids MEXC returns and numeric ids.
type mexcOrderID string

func (id *mexcOrderID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = mexcOrderID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = mexcOrderID(n.String())
	return nil
}

// mexcOrder is the spot v3 order payload shared by new, cancel and query.
// The new-order reply carries no status or executed quantity.
type mexcOrder struct {
	Symbol              string      `json:"symbol"`
	OrderID             mexcOrderID `json:"orderId"`
	ClientOrderID       string      `json:"clientOrderId"`
	Price               string      `json:"price"`
	OrigQty             string      `json:"origQty"`
	ExecutedQty         string      `json:"executedQty"`
	CummulativeQuoteQty string      `json:"cummulativeQuoteQty"`
	Status              string      `json:"status"`
	Type                string      `json:"type"`
	Side                string      `json:"side"`
	TransactTime        int64       `json:"transactTime"`
	UpdateTime          int64       `json:"updateTime"`
}

func (o *mexcOrder) translate() *ports.OrderResponse {
	price, _ := strconv.ParseFloat(o.Price, 64)
	origQty, _ := strconv.ParseFloat(o.OrigQty, 64)
	execQty, _ := strconv.ParseFloat(o.ExecutedQty, 64)
	cumQuote, _ := strconv.ParseFloat(o.CummulativeQuoteQty, 64)

	ts := time.Now()
	switch {
	case o.UpdateTime > 0:
		ts = time.UnixMilli(o.UpdateTime)
	case o.TransactTime > 0:
		ts = time.UnixMilli(o.TransactTime)
	}

	return &ports.OrderResponse{
		OrderID:             string(o.OrderID),
		Symbol:              o.Symbol,
		ClientOrderID:       o.ClientOrderID,
		Side:                o.Side,
		Type:                o.Type,
		Price:               price,
		AvgPrice:            averagePrice(cumQuote, execQty, price),
		OrigQuantity:        origQty,
		ExecutedQty:         execQty,
		CummulativeQuoteQty: cumQuote,
		Status:              o.Status,
		Timestamp:           ts,
	}
}

// PlaceOrder submits a new spot order. MEXC acknowledges without a status, so
// the order is looked up afterwards to learn whether it filled.
func (c *Client) PlaceOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderResponse, error) {
	op := "PlaceOrder"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", toOrderType(req.Type, req.TimeInForce))
	if req.QuoteOrderQty != "" {
		params.Set("quoteOrderQty", req.QuoteOrderQty)
	} else {
		params.Set("quantity", req.Quantity)
	}
	if req.Type != domain.OrderTypeMarket {
		params.Set("price", req.Price)
	}
	if req.StopPrice != "" {
		params.Set("stopPrice", req.StopPrice)
	}
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}

	c.logger.Debug(ctx, "Submitting order", map[string]interface{}{
		"symbol":        req.Symbol,
		"side":          req.Side,
		"type":          params.Get("type"),
		"quantity":      req.Quantity,
		"quoteOrderQty": req.QuoteOrderQty,
		"price":         req.Price,
	})

	var placed mexcOrder
	if err := c.signedRequest(ctx, http.MethodPost, params, &placed); err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	if placed.OrderID == "" {
		return nil, c.handleError(ctx, fmt.Errorf("order acknowledged without an order id"), op)
	}

	resp := placed.translate()
	if resp.ClientOrderID == "" {
		resp.ClientOrderID = req.ClientOrderID
	}
	if resp.Status == "" {
		resp = c.resolveStatus(ctx, req.Symbol, req.Type, resp)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": req.Symbol, "orderID": resp.OrderID, "status": resp.Status})
	return resp, nil
}

// resolveStatus queries a freshly placed order. Market orders are polled
// until they leave NEW; limit orders are looked up once. When no lookup
// succeeds the order is reported as NEW, since it exists on the exchange.
func (c *Client) resolveStatus(ctx context.Context, symbol string, orderType domain.OrderType, placed *ports.OrderResponse) *ports.OrderResponse {
	attempts := c.fillPollAttempts
	if orderType != domain.OrderTypeMarket {
		attempts = 1
	}

	resolved := placed
poll:
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				break poll
			case <-time.After(c.fillPollInterval):
			}
		}
		order, err := c.GetOrder(ctx, symbol, placed.OrderID)
		if err != nil {
			c.logger.Warn(ctx, "Could not resolve status of placed order", map[string]interface{}{
				"symbol":  symbol,
				"orderID": placed.OrderID,
				"error":   err.Error(),
			})
			continue
		}
		resolved = order
		if order.Status != ports.ExchangeStatusNew && order.Status != ports.ExchangeStatusPartiallyFilled {
			break
		}
	}
	if resolved.Status == "" {
		resolved.Status = ports.ExchangeStatusNew
	}
	if resolved.ClientOrderID == "" {
		resolved.ClientOrderID = placed.ClientOrderID
	}
	return resolved
}

// CancelOrder cancels an open order.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) (*ports.OrderResponse, error) {
	op := "CancelOrder"
	if orderID == "" {
		return nil, fmt.Errorf("%s failed: %w: empty order id", op, ports.ErrInvalidRequest)
	}
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}

	c.logger.Debug(ctx, "Attempting to cancel order", map[string]interface{}{"symbol": symbol, "orderID": orderID})
	var res mexcOrder
	params := url.Values{"symbol": {symbol}, "orderId": {orderID}}
	if err := c.signedRequest(ctx, http.MethodDelete, params, &res); err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	resp := res.translate()
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "orderID": orderID, "status": resp.Status})
	return resp, nil
}

// GetOrder queries an order by its exchange id.
func (c *Client) GetOrder(ctx context.Context, symbol, orderID string) (*ports.OrderResponse, error) {
	op := "GetOrder"
	if orderID == "" {
		return nil, fmt.Errorf("%s failed: %w: empty order id", op, ports.ErrInvalidRequest)
	}
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}

	var res mexcOrder
	params := url.Values{"symbol": {symbol}, "orderId": {orderID}}
	if err := c.signedRequest(ctx, http.MethodGet, params, &res); err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	return res.translate(), nil
}

// signedRequest calls the order endpoint with an HMAC-SHA256 signed query
// string. Error payloads are decoded into common.APIError so handleError
// maps them like the public endpoints.
func (c *Client) signedRequest(ctx context.Context, method string, params url.Values, out interface{}) error {
	params.Set("recvWindow", strconv.Itoa(defaultRecvWindow))
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	query := params.Encode()
	query += "&signature=" + sign(c.spot.SecretKey, query)

	req, err := http.NewRequestWithContext(ctx, method, c.spot.BaseURL+orderPath+"?"+query, nil)
	if err != nil {
		return err
	}
	req.Header.Set(apiKeyHeader, c.spot.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.spot.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &common.APIError{}
		if jsonErr := json.Unmarshal(body, apiErr); jsonErr == nil && apiErr.Code != 0 {
			return apiErr
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &common.APIError{Code: ports.CodeRateLimited, Message: strings.TrimSpace(string(body))}
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, orderPath, err)
	}
	return nil
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// toOrderType maps a domain order onto the MEXC type. LIMIT with IOC or FOK
// becomes the matching MEXC type since MEXC has no timeInForce parameter.
func toOrderType(t domain.OrderType, tif domain.TimeInForce) string {
	switch t {
	case domain.OrderTypeStopLimit:
		return orderTypeStopLossLimit
	case domain.OrderTypeLimit:
		switch tif {
		case domain.TimeInForceIOC:
			return orderTypeImmediateOrCancel
		case domain.TimeInForceFOK:
			return orderTypeFillOrKill
		}
	}
	return string(t)
}
