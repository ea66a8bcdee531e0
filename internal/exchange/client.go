// Package exchange provides the Delta Exchange REST integration: a low level
// signed HTTP client and a resilient gateway layered on top of it.
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
	"sort"
	"strconv"
	"time"

	apperrors "delta-trader/internal/errors"
	"delta-trader/internal/models"
)

const (
	defaultTimeout    = 30 * time.Second
	maxCandlesPerPage = 2000
)

// HTTPError carries the status code of a failed request so the gateway can
// classify it for retry.
type HTTPError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d from %s: %s", e.StatusCode, e.Endpoint, e.Body)
}

// Product describes a tradable contract.
type Product struct {
	ID            int     `json:"id"`
	Symbol        string  `json:"symbol"`
	ContractValue float64 `json:"contract_value,string"`
	ContractType  string  `json:"contract_type"`
	State         string  `json:"state"`
}

// Order is the exchange's view of a placed order.
type Order struct {
	ID            int64   `json:"id"`
	ProductID     int     `json:"product_id"`
	Size          int     `json:"size"`
	Side          string  `json:"side"`
	State         string  `json:"state"`
	AvgFillPrice  float64 `json:"average_fill_price,string"`
	ClientOrderID string  `json:"client_order_id"`
}

// Balance is one asset entry from the wallet.
type Balance struct {
	AssetSymbol string  `json:"asset_symbol"`
	Available   float64 `json:"available_balance,string"`
	Total       float64 `json:"balance,string"`
}

// apiEnvelope is the common Delta response wrapper.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *apiErrorBody   `json:"error"`
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Context struct {
		ServerTime int64 `json:"server_time"`
	} `json:"context"`
}

// Client is a minimal signed REST client for Delta Exchange. Each method
// performs exactly one HTTP attempt; retry policy lives in the Gateway.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client

	// timeOffset compensates for clock drift against the exchange. Updated
	// when the exchange rejects a signature as expired.
	timeOffset int64
}

// NewClient creates a REST client for the given base URL and credentials.
func NewClient(baseURL, apiKey, apiSecret string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// sign computes the HMAC-SHA256 request signature over
// method + timestamp + path(incl. query) + body.
func (c *Client) sign(method, pathWithQuery, payload, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(method + timestamp + pathWithQuery + payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body interface{}, authed bool, out interface{}) error {
	pathWithQuery := endpoint
	if len(query) > 0 {
		pathWithQuery = endpoint + "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(err, "encoding request body")
		}
	}

	// One extra attempt to resync the clock when the exchange reports an
	// expired signature.
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+pathWithQuery, bytes.NewReader(payload))
		if err != nil {
			return apperrors.Wrap(err, "building request")
		}
		req.Header.Set("Content-Type", "application/json")

		if authed {
			timestamp := strconv.FormatInt(time.Now().Unix()+c.timeOffset, 10)
			req.Header.Set("api-key", c.apiKey)
			req.Header.Set("timestamp", timestamp)
			req.Header.Set("signature", c.sign(method, pathWithQuery, string(payload), timestamp))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return apperrors.Wrapf(apperrors.ErrConnectionFailed, "%s %s: %v", method, endpoint, err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return apperrors.Wrap(err, "reading response body")
		}

		if resp.StatusCode == http.StatusUnauthorized && authed && attempt == 0 {
			if serverTime, ok := expiredSignatureServerTime(respBody); ok {
				c.timeOffset = serverTime - time.Now().Unix() + 2
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &HTTPError{
				StatusCode: resp.StatusCode,
				Endpoint:   endpoint,
				Body:       truncate(string(respBody), 256),
			}
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return apperrors.Wrapf(err, "decoding response from %s", endpoint)
			}
		}
		return nil
	}
}

func expiredSignatureServerTime(body []byte) (int64, bool) {
	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return 0, false
	}
	if env.Error == nil || env.Error.Code != "expired_signature" || env.Error.Context.ServerTime == 0 {
		return 0, false
	}
	return env.Error.Context.ServerTime, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (c *Client) result(ctx context.Context, method, endpoint string, query url.Values, body interface{}, authed bool, result interface{}) error {
	var env apiEnvelope
	if err := c.do(ctx, method, endpoint, query, body, authed, &env); err != nil {
		return err
	}
	if result == nil || len(env.Result) == 0 {
		return nil
	}
	return json.Unmarshal(env.Result, result)
}

// Products returns all tradable products.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := c.result(ctx, http.MethodGet, "/v2/products", nil, nil, false, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// Product looks up a single product by symbol.
func (c *Client) Product(ctx context.Context, symbol string) (Product, error) {
	products, err := c.Products(ctx)
	if err != nil {
		return Product{}, err
	}
	for _, p := range products {
		if p.Symbol == symbol && p.State == "live" {
			return p, nil
		}
	}
	return Product{}, apperrors.Wrapf(apperrors.ErrSymbolNotFound, "symbol %s", symbol)
}

// rawCandle is the wire form of one history entry.
type rawCandle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Candles fetches historical candles for [start, end] and returns them in
// ascending open-time order regardless of the order the exchange uses. The
// history endpoint pages at 2000 candles; pagination is handled here.
func (c *Client) Candles(ctx context.Context, symbol string, tf models.Timeframe, start, end time.Time) ([]models.Candle, error) {
	var all []rawCandle
	currentStart := start.Unix()
	endUnix := end.Unix()

	for currentStart < endUnix {
		query := url.Values{}
		query.Set("symbol", symbol)
		query.Set("resolution", string(tf))
		query.Set("start", strconv.FormatInt(currentStart, 10))
		query.Set("end", strconv.FormatInt(endUnix, 10))

		var page []rawCandle
		if err := c.result(ctx, http.MethodGet, "/v2/history/candles", query, nil, false, &page); err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		all = append(all, page...)
		if len(page) < maxCandlesPerPage {
			break
		}

		latest := page[0].Time
		for _, rc := range page {
			if rc.Time > latest {
				latest = rc.Time
			}
		}
		if latest <= currentStart {
			break
		}
		currentStart = latest + 1
	}

	candles := make([]models.Candle, 0, len(all))
	for _, rc := range all {
		candles = append(candles, models.Candle{
			OpenTime:  time.Unix(rc.Time, 0).UTC(),
			Open:      rc.Open,
			High:      rc.High,
			Low:       rc.Low,
			Close:     rc.Close,
			Volume:    rc.Volume,
			Timeframe: tf,
		})
	}
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})
	return candles, nil
}

// Positions returns margined positions, optionally filtered by product.
func (c *Client) Positions(ctx context.Context, productID int) ([]models.ExchangePosition, error) {
	query := url.Values{}
	if productID != 0 {
		query.Set("product_ids", strconv.Itoa(productID))
	}

	var raw []struct {
		Size       float64 `json:"size"`
		EntryPrice float64 `json:"entry_price,string"`
		ProductSym string  `json:"product_symbol"`
	}
	if err := c.result(ctx, http.MethodGet, "/v2/positions/margined", query, nil, true, &raw); err != nil {
		return nil, err
	}

	positions := make([]models.ExchangePosition, 0, len(raw))
	for _, p := range raw {
		positions = append(positions, models.ExchangePosition{
			Symbol:     p.ProductSym,
			Size:       p.Size,
			EntryPrice: p.EntryPrice,
		})
	}
	return positions, nil
}

// orderRequest is the wire form of an order placement.
type orderRequest struct {
	ProductID     int    `json:"product_id"`
	Size          int    `json:"size"`
	Side          string `json:"side"`
	OrderType     string `json:"order_type"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

// PlaceMarketOrder submits a market order. This is a single attempt with no
// retry; the gateway decides whether resubmission is safe.
func (c *Client) PlaceMarketOrder(ctx context.Context, productID int, side models.OrderSide, size int, clientOrderID string) (Order, error) {
	req := orderRequest{
		ProductID:     productID,
		Size:          size,
		Side:          string(side),
		OrderType:     "market_order",
		ClientOrderID: clientOrderID,
	}
	var order Order
	if err := c.result(ctx, http.MethodPost, "/v2/orders", nil, req, true, &order); err != nil {
		return Order{}, err
	}
	return order, nil
}

// SetLeverage sets the order leverage for a product.
func (c *Client) SetLeverage(ctx context.Context, productID, leverage int) error {
	endpoint := fmt.Sprintf("/v2/products/%d/orders/leverage", productID)
	body := map[string]string{"leverage": strconv.Itoa(leverage)}
	return c.result(ctx, http.MethodPost, endpoint, nil, body, true, nil)
}

// WalletBalances returns balances for all assets.
func (c *Client) WalletBalances(ctx context.Context) ([]Balance, error) {
	var balances []Balance
	if err := c.result(ctx, http.MethodGet, "/v2/wallet/balances", nil, nil, true, &balances); err != nil {
		return nil, err
	}
	return balances, nil
}

// Ticker returns the latest traded price for a symbol.
func (c *Client) Ticker(ctx context.Context, symbol string) (float64, error) {
	var raw struct {
		Close float64 `json:"close"`
	}
	if err := c.result(ctx, http.MethodGet, "/v2/tickers/"+symbol, nil, nil, false, &raw); err != nil {
		return 0, err
	}
	return raw.Close, nil
}
