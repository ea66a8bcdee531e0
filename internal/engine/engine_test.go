package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "delta-trader/internal/errors"
	"delta-trader/internal/executor"
	"delta-trader/internal/models"
	"delta-trader/internal/strategy"
)

type fakeMarket struct {
	series []models.Candle
	err    error
}

func (f *fakeMarket) Candles(ctx context.Context, symbol string, tf models.Timeframe, start, end time.Time) ([]models.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.series, nil
}

type fakeAPI struct {
	position models.ExchangePosition
	orders   []models.OrderIntent
	fillAt   float64
}

func (f *fakeAPI) Position(ctx context.Context, productID int, symbol string) (models.ExchangePosition, error) {
	return f.position, nil
}

func (f *fakeAPI) PlaceMarketOrder(ctx context.Context, productID int, intent models.OrderIntent) (*models.OrderResult, error) {
	f.orders = append(f.orders, intent)
	return &models.OrderResult{OrderID: "1", FilledPrice: f.fillAt}, nil
}

func (f *fakeAPI) SetLeverage(ctx context.Context, productID, leverage int) error {
	return nil
}

// hourlySeries builds an ascending 1h series ending just before now, one
// candle per close value, with a final still-forming candle appended.
func hourlySeries(now time.Time, closes []float64) []models.Candle {
	start := now.Truncate(time.Hour).Add(-time.Duration(len(closes)) * time.Hour)
	series := make([]models.Candle, 0, len(closes)+1)
	for i, c := range closes {
		series = append(series, models.Candle{
			OpenTime:  start.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    10,
			Timeframe: models.Timeframe1h,
		})
	}
	// Forming candle with an extreme close; it must never be evaluated.
	series = append(series, models.Candle{
		OpenTime:  now.Truncate(time.Hour),
		Open:      200,
		High:      201,
		Low:       199,
		Close:     200,
		Timeframe: models.Timeframe1h,
	})
	return series
}

// crossingCloses produces a flat-then-dip-then-spike sequence whose fast/slow
// EMA cross lands exactly on the final candle.
func crossingCloses() []float64 {
	closes := make([]float64, 0, 51)
	for i := 0; i < 40; i++ {
		closes = append(closes, 100)
	}
	for i := 0; i < 10; i++ {
		closes = append(closes, 90)
	}
	closes = append(closes, 150)
	return closes
}

func newTestEngine(t *testing.T, market *fakeMarket, api *fakeAPI) *Engine {
	return newTestEngineMode(t, market, api, strategy.ModeBoth)
}

func newTestEngineMode(t *testing.T, market *fakeMarket, api *fakeAPI, mode strategy.TradeMode) *Engine {
	t.Helper()
	rules, err := strategy.New("ema_cross", strategy.Config{Mode: mode})
	require.NoError(t, err)
	machine := strategy.NewMachine(rules, false, 0.5)

	exec := executor.New(api, machine, executor.Config{
		Symbol:        "BTCUSD",
		ProductID:     27,
		TargetMargin:  100,
		Leverage:      10,
		ContractValue: 0.001,
	}, nil, nil, zerolog.Nop())

	return New(market, machine, exec, Config{
		Symbol:      "BTCUSD",
		Timeframe:   models.Timeframe1h,
		HistoryDays: 30,
	}, nil, zerolog.Nop())
}

func TestTickBullishCrossEntersLong(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC)
	market := &fakeMarket{series: hourlySeries(now, crossingCloses())}
	api := &fakeAPI{fillAt: 150}
	eng := newTestEngine(t, market, api)

	outcome := eng.Tick(context.Background(), now)
	require.NoError(t, outcome.Err)
	assert.Equal(t, models.ActionEnterLong, outcome.Signal.Action)
	require.NotNil(t, outcome.Order)

	// floor(100 * 10 / (150 * 0.001)) = 6666
	require.Len(t, api.orders, 1)
	assert.Equal(t, 6666, api.orders[0].Quantity)
	assert.Equal(t, models.OrderSideBuy, api.orders[0].Side)

	state := eng.Machine().State()
	assert.Equal(t, models.Long, state.Direction)
	assert.Equal(t, 6666, state.Quantity)
	assert.Equal(t, 150.0, state.EntryPrice)
}

func TestTickQuietSeriesEmitsNone(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC)
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100
	}
	market := &fakeMarket{series: hourlySeries(now, closes)}
	api := &fakeAPI{}
	eng := newTestEngine(t, market, api)

	outcome := eng.Tick(context.Background(), now)
	require.NoError(t, outcome.Err)
	assert.Equal(t, models.ActionNone, outcome.Signal.Action)
	assert.Empty(t, api.orders)
}

func TestTickInsufficientHistoryIsNoneNotError(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC)
	market := &fakeMarket{series: hourlySeries(now, []float64{100, 101, 102})}
	eng := newTestEngine(t, market, &fakeAPI{})

	outcome := eng.Tick(context.Background(), now)
	require.NoError(t, outcome.Err)
	assert.Equal(t, models.ActionNone, outcome.Signal.Action)
}

func TestTickMarketErrorSurfaces(t *testing.T) {
	market := &fakeMarket{err: apperrors.ErrConnectionFailed}
	eng := newTestEngine(t, market, &fakeAPI{})

	outcome := eng.Tick(context.Background(), time.Now())
	assert.ErrorIs(t, outcome.Err, apperrors.ErrConnectionFailed)
	assert.Equal(t, models.ActionNone, outcome.Signal.Action)
}

func TestTickNeverEvaluatesFormingCandle(t *testing.T) {
	// Close times align exactly with now: the boundary candle counts as
	// closed, the forming one does not.
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	market := &fakeMarket{series: hourlySeries(now, crossingCloses())}
	api := &fakeAPI{fillAt: 150}
	eng := newTestEngine(t, market, api)

	outcome := eng.Tick(context.Background(), now)
	require.NoError(t, outcome.Err)
	assert.Equal(t, models.ActionEnterLong, outcome.Signal.Action)
	assert.Equal(t, 150.0, eng.Machine().State().EntryPrice, "fill derives from the closed candle, not the forming one")
}

func TestReplaySeedsStateWithoutOrders(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC)
	market := &fakeMarket{series: hourlySeries(now, crossingCloses())}
	api := &fakeAPI{}
	eng := newTestEngineMode(t, market, api, strategy.ModeLong)

	require.NoError(t, eng.Replay(context.Background(), now))

	assert.Empty(t, api.orders, "replay must not touch the exchange")
	state := eng.Machine().State()
	assert.Equal(t, models.Long, state.Direction)
	assert.Equal(t, 150.0, state.EntryPrice)
}
