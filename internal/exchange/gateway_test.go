package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "delta-trader/internal/errors"
	"delta-trader/internal/models"
	"delta-trader/internal/ratelimit"
)

func testGateway(t *testing.T, handler http.Handler) (*Gateway, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "test-key", "test-secret")
	limiter := ratelimit.New(150, 5*time.Minute)
	g := NewGateway(client, limiter, GatewayConfig{
		MaxRetries:  3,
		BackoffBase: 5 * time.Millisecond,
		BackoffCap:  20 * time.Millisecond,
	}, zerolog.Nop())
	g.backoff.Jitter = 0
	return g, server
}

func TestGatewayRetriesTransientErrorsThenSucceeds(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"success":true,"result":[{"id":27,"symbol":"BTCUSD","contract_value":"0.001","contract_type":"perpetual_futures","state":"live"}]}`)
	})

	g, _ := testGateway(t, handler)

	start := time.Now()
	product, err := g.Product(context.Background(), "BTCUSD")
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 27, product.ID)
	assert.Equal(t, 0.001, product.ContractValue)
	assert.EqualValues(t, 4, atomic.LoadInt32(&calls))
	// Three backoffs at 5ms, 10ms, 20ms.
	assert.GreaterOrEqual(t, elapsed, 35*time.Millisecond)
}

func TestGatewayExhaustedRetriesReturnAPIError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	g, _ := testGateway(t, handler)

	_, err := g.Product(context.Background(), "BTCUSD")
	require.Error(t, err)

	var apiErr *apperrors.APIError
	require.True(t, apperrors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, 4, apiErr.Attempts)
	assert.True(t, apiErr.Overloaded, "repeated 400 marks exchange overload")
}

func TestGatewayDoesNotRetryAuthErrors(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	})

	g, _ := testGateway(t, handler)

	_, err := g.WalletBalances(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGatewayCandlesNormalizedAscending(t *testing.T) {
	// The history endpoint returns newest first.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"result":[
			{"time":7200,"open":3,"high":3,"low":3,"close":3,"volume":1},
			{"time":3600,"open":2,"high":2,"low":2,"close":2,"volume":1},
			{"time":0,"open":1,"high":1,"low":1,"close":1,"volume":1}
		]}`)
	})

	g, _ := testGateway(t, handler)

	candles, err := g.Candles(context.Background(), "BTCUSD", models.Timeframe1h, time.Unix(0, 0), time.Unix(10000, 0))
	require.NoError(t, err)
	require.Len(t, candles, 3)
	for i := 1; i < len(candles); i++ {
		assert.True(t, candles[i].OpenTime.After(candles[i-1].OpenTime), "candles must ascend by open time")
	}
	assert.Equal(t, 1.0, candles[0].Close)
	assert.Equal(t, 3.0, candles[2].Close)
}

func TestGatewayPositionMissingMeansFlat(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"result":[]}`)
	})

	g, _ := testGateway(t, handler)

	pos, err := g.Position(context.Background(), 27, "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, models.Flat, pos.Direction())
	assert.Equal(t, 0, pos.Contracts())
}

func TestGatewayOrderRejectionIsNotRetried(t *testing.T) {
	var orderCalls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/positions/margined":
			fmt.Fprint(w, `{"success":true,"result":[]}`)
		case "/v2/orders":
			atomic.AddInt32(&orderCalls, 1)
			w.WriteHeader(http.StatusBadRequest)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	g, _ := testGateway(t, handler)

	intent := models.OrderIntent{
		Symbol:        "BTCUSD",
		Side:          models.OrderSideBuy,
		Quantity:      2,
		ClientOrderID: "dedup-1",
		Signal:        models.Signal{Action: models.ActionEnterLong},
	}
	_, err := g.PlaceMarketOrder(context.Background(), 27, intent)
	require.Error(t, err)

	var orderErr *apperrors.OrderError
	require.True(t, apperrors.As(err, &orderErr))
	assert.True(t, apperrors.Is(err, apperrors.ErrOrderRejected))
	assert.EqualValues(t, 1, atomic.LoadInt32(&orderCalls), "a rejected order must not be resubmitted")
}

func TestGatewayAmbiguousOrderVerifiedByPositionDelta(t *testing.T) {
	var positionCalls, orderCalls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/positions/margined":
			if atomic.AddInt32(&positionCalls, 1) == 1 {
				fmt.Fprint(w, `{"success":true,"result":[]}`)
				return
			}
			fmt.Fprint(w, `{"success":true,"result":[{"size":2,"entry_price":"50000","product_symbol":"BTCUSD"}]}`)
		case "/v2/orders":
			atomic.AddInt32(&orderCalls, 1)
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	g, _ := testGateway(t, handler)
	g.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	intent := models.OrderIntent{
		Symbol:        "BTCUSD",
		Side:          models.OrderSideBuy,
		Quantity:      2,
		ClientOrderID: "dedup-2",
		Signal:        models.Signal{Action: models.ActionEnterLong},
	}
	result, err := g.PlaceMarketOrder(context.Background(), 27, intent)

	require.NoError(t, err, "matching position delta means the order executed")
	assert.Equal(t, 50000.0, result.FilledPrice)
	assert.EqualValues(t, 1, atomic.LoadInt32(&orderCalls), "ambiguous failure must not trigger resubmission")
}

func TestGatewayAmbiguousOrderWithoutDeltaFails(t *testing.T) {
	var orderCalls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/positions/margined":
			fmt.Fprint(w, `{"success":true,"result":[]}`)
		case "/v2/orders":
			atomic.AddInt32(&orderCalls, 1)
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	g, _ := testGateway(t, handler)
	g.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	intent := models.OrderIntent{
		Symbol:        "BTCUSD",
		Side:          models.OrderSideBuy,
		Quantity:      2,
		ClientOrderID: "dedup-3",
		Signal:        models.Signal{Action: models.ActionEnterLong},
	}
	_, err := g.PlaceMarketOrder(context.Background(), 27, intent)

	require.Error(t, err)
	var orderErr *apperrors.OrderError
	require.True(t, apperrors.As(err, &orderErr))
	assert.EqualValues(t, 1, atomic.LoadInt32(&orderCalls))
}
