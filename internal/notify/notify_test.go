package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delta-trader/internal/models"
)

func TestDisabledNotifierIsInert(t *testing.T) {
	n := New("", zerolog.Nop())
	n.Started("BTCUSD", "ema_cross", "paper")
	n.TradeExecuted(models.TradeEvent{})
	n.Close()
}

func TestTradeExecutedPostsWebhookPayload(t *testing.T) {
	var mu sync.Mutex
	var bodies []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var p struct {
			Content string `json:"content"`
		}
		require.NoError(t, json.Unmarshal(raw, &p))
		mu.Lock()
		bodies = append(bodies, p.Content)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := New(server.URL, zerolog.Nop())
	n.TradeExecuted(models.TradeEvent{
		Symbol:   "BTCUSD",
		Action:   models.ActionEnterLong,
		Price:    50000,
		Quantity: 4,
		Reason:   "Bullish cross",
		At:       time.Now(),
	})
	n.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "ENTER_LONG")
	assert.Contains(t, bodies[0], "BTCUSD")
	assert.Contains(t, bodies[0], "Bullish cross")
}

func TestTradeExecutedExitIncludesPnL(t *testing.T) {
	var mu sync.Mutex
	var bodies []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var p struct {
			Content string `json:"content"`
		}
		require.NoError(t, json.Unmarshal(raw, &p))
		mu.Lock()
		bodies = append(bodies, p.Content)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := New(server.URL, zerolog.Nop())
	n.TradeExecuted(models.TradeEvent{
		Symbol:     "BTCUSD",
		Action:     models.ActionExitLong,
		Price:      51000,
		Quantity:   12,
		Reason:     "Bearish cross",
		PnL:        120,
		PnLPercent: 2.4,
		At:         time.Now(),
	})
	n.TradeExecuted(models.TradeEvent{
		Symbol:   "BTCUSD",
		Action:   models.ActionEnterLong,
		Price:    50000,
		Quantity: 12,
		Reason:   "Bullish cross",
		At:       time.Now(),
	})
	n.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	assert.Contains(t, bodies[0], "+$120.00")
	assert.Contains(t, bodies[0], "+2.40%")
	assert.NotContains(t, bodies[1], "PnL", "entries carry no PnL line")
}

func TestFailingWebhookDoesNotBlockSender(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := New(server.URL, zerolog.Nop())
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			n.Stopped("BTCUSD")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sender blocked on failing webhook")
	}
	n.Close()
}
