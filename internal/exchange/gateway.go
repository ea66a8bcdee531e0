package exchange

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	apperrors "delta-trader/internal/errors"
	"delta-trader/internal/models"
	"delta-trader/internal/ratelimit"
	"delta-trader/pkg/utils"
)

// retryableStatus reports whether an HTTP status is worth retrying. 400 is
// included because the exchange returns it on public endpoints when
// overloaded; genuine bad parameters fail every attempt and surface as an
// APIError with Overloaded set.
func retryableStatus(status int) bool {
	switch status {
	case 400, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// Gateway wraps the REST client with the shared rate limiter and the retry
// policy. All exchange access above this package goes through a Gateway.
type Gateway struct {
	client  *Client
	limiter *ratelimit.Limiter
	backoff utils.BackoffConfig
	retries int
	logger  zerolog.Logger

	// sleep is replaced in tests.
	sleep func(context.Context, time.Duration) error
}

// GatewayConfig holds the gateway retry policy.
type GatewayConfig struct {
	MaxRetries  int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// NewGateway creates a Gateway over the given client and limiter.
func NewGateway(client *Client, limiter *ratelimit.Limiter, cfg GatewayConfig, logger zerolog.Logger) *Gateway {
	backoff := utils.DefaultBackoffConfig()
	if cfg.BackoffBase > 0 {
		backoff.Base = cfg.BackoffBase
	}
	if cfg.BackoffCap > 0 {
		backoff.Cap = cfg.BackoffCap
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 4
	}
	return &Gateway{
		client:  client,
		limiter: limiter,
		backoff: backoff,
		retries: retries,
		logger:  logger,
		sleep:   utils.SleepContext,
	}
}

// call runs fn under the rate limiter with exponential backoff on transient
// failures. Each attempt acquires its own limiter slot.
func call[T any](ctx context.Context, g *Gateway, endpoint string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	lastStatus := 0

	for attempt := 0; attempt <= g.retries; attempt++ {
		if err := g.limiter.Acquire(ctx); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var httpErr *HTTPError
		switch {
		case apperrors.As(err, &httpErr):
			lastStatus = httpErr.StatusCode
			if !retryableStatus(httpErr.StatusCode) {
				return zero, apperrors.NewAPIError(endpoint, httpErr.StatusCode, httpErr.Body, attempt+1, err)
			}
		case apperrors.Is(err, apperrors.ErrConnectionFailed):
			lastStatus = 0
		case apperrors.Is(err, context.Canceled) || apperrors.Is(err, context.DeadlineExceeded):
			return zero, err
		default:
			return zero, err
		}

		if attempt < g.retries {
			wait := utils.Backoff(attempt, g.backoff)
			g.logger.Warn().
				Str("endpoint", endpoint).
				Int("attempt", attempt+1).
				Int("max_attempts", g.retries+1).
				Dur("backoff", wait).
				Err(err).
				Msg("Retrying exchange call")
			if err := g.sleep(ctx, wait); err != nil {
				return zero, err
			}
		}
	}

	return zero, apperrors.NewAPIError(endpoint, lastStatus, lastErr.Error(), g.retries+1, lastErr)
}

// Candles fetches candle history in ascending open-time order.
func (g *Gateway) Candles(ctx context.Context, symbol string, tf models.Timeframe, start, end time.Time) ([]models.Candle, error) {
	return call(ctx, g, "/v2/history/candles", func(ctx context.Context) ([]models.Candle, error) {
		return g.client.Candles(ctx, symbol, tf, start, end)
	})
}

// Product resolves a symbol to its product metadata.
func (g *Gateway) Product(ctx context.Context, symbol string) (Product, error) {
	return call(ctx, g, "/v2/products", func(ctx context.Context) (Product, error) {
		return g.client.Product(ctx, symbol)
	})
}

// Position returns the live position for a product. A product with no open
// position yields a zero-size position, not an error.
func (g *Gateway) Position(ctx context.Context, productID int, symbol string) (models.ExchangePosition, error) {
	positions, err := call(ctx, g, "/v2/positions/margined", func(ctx context.Context) ([]models.ExchangePosition, error) {
		return g.client.Positions(ctx, productID)
	})
	if err != nil {
		return models.ExchangePosition{}, err
	}
	for _, p := range positions {
		if p.Symbol == symbol && p.Size != 0 {
			return p, nil
		}
	}
	return models.ExchangePosition{Symbol: symbol}, nil
}

// SetLeverage sets the order leverage for a product.
func (g *Gateway) SetLeverage(ctx context.Context, productID, leverage int) error {
	_, err := call(ctx, g, "/v2/products/{id}/orders/leverage", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.client.SetLeverage(ctx, productID, leverage)
	})
	return err
}

// WalletBalances returns all asset balances.
func (g *Gateway) WalletBalances(ctx context.Context) ([]Balance, error) {
	return call(ctx, g, "/v2/wallet/balances", func(ctx context.Context) ([]Balance, error) {
		return g.client.WalletBalances(ctx)
	})
}

// Ticker returns the latest traded price for a symbol.
func (g *Gateway) Ticker(ctx context.Context, symbol string) (float64, error) {
	return call(ctx, g, "/v2/tickers/{symbol}", func(ctx context.Context) (float64, error) {
		return g.client.Ticker(ctx, symbol)
	})
}

// PlaceMarketOrder submits a market order exactly once. Orders are never
// blindly retried: a duplicate market order moves real money. On an
// ambiguous failure, where the request may have reached the exchange, the
// live position is re-read and compared against the size recorded before
// submission; a matching delta means the order went through.
func (g *Gateway) PlaceMarketOrder(ctx context.Context, productID int, intent models.OrderIntent) (*models.OrderResult, error) {
	before, err := g.Position(ctx, productID, intent.Symbol)
	if err != nil {
		return nil, apperrors.NewOrderError(intent.Symbol, string(intent.Signal.Action), "reading position before submit", err)
	}

	if err := g.limiter.Acquire(ctx); err != nil {
		return nil, apperrors.NewOrderError(intent.Symbol, string(intent.Signal.Action), "rate limiter", err)
	}

	order, err := g.client.PlaceMarketOrder(ctx, productID, intent.Side, intent.Quantity, intent.ClientOrderID)
	if err == nil {
		return &models.OrderResult{
			OrderID:     formatOrderID(order.ID),
			FilledPrice: order.AvgFillPrice,
		}, nil
	}

	var httpErr *HTTPError
	if apperrors.As(err, &httpErr) && httpErr.StatusCode < 500 {
		// Definitive rejection: the exchange processed and refused it.
		return nil, apperrors.NewOrderError(intent.Symbol, string(intent.Signal.Action), "order rejected", apperrors.Wrap(apperrors.ErrOrderRejected, httpErr.Error()))
	}

	// Connection failure or 5xx after the request was sent. The order may
	// or may not have executed; let the fill settle, then check the
	// position delta.
	g.logger.Warn().
		Str("symbol", intent.Symbol).
		Str("client_order_id", intent.ClientOrderID).
		Err(err).
		Msg("Ambiguous order failure, verifying via position delta")

	if serr := g.sleep(ctx, 2*time.Second); serr != nil {
		return nil, apperrors.NewOrderError(intent.Symbol, string(intent.Signal.Action), "interrupted while verifying", serr)
	}

	after, perr := g.Position(ctx, productID, intent.Symbol)
	if perr != nil {
		return nil, apperrors.NewOrderError(intent.Symbol, string(intent.Signal.Action), "unable to verify ambiguous order", perr)
	}

	expected := float64(intent.Quantity)
	if intent.Side == models.OrderSideSell {
		expected = -expected
	}
	if after.Size-before.Size == expected {
		return &models.OrderResult{FilledPrice: after.EntryPrice}, nil
	}

	return nil, apperrors.NewOrderError(intent.Symbol, string(intent.Signal.Action), "order did not execute", err)
}

func formatOrderID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
