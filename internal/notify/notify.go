// Package notify delivers trade and lifecycle alerts to a Discord-style
// webhook. Delivery is asynchronous: a slow or failing webhook never blocks
// the trading loop.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"delta-trader/internal/models"
	"delta-trader/pkg/utils"
)

// Notifier posts messages to a webhook URL. A nil or disabled Notifier
// discards everything, so callers never need to branch.
type Notifier struct {
	url    string
	client *http.Client
	logger zerolog.Logger
	queue  chan payload
	done   chan struct{}
}

type payload struct {
	Content string `json:"content"`
}

// New creates a Notifier posting to url. An empty url returns a disabled
// notifier.
func New(url string, logger zerolog.Logger) *Notifier {
	n := &Notifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
		queue:  make(chan payload, 64),
		done:   make(chan struct{}),
	}
	if url != "" {
		go n.deliver()
	}
	return n
}

// Close drains pending messages and stops the delivery goroutine.
func (n *Notifier) Close() {
	if n.url == "" {
		return
	}
	close(n.queue)
	<-n.done
}

func (n *Notifier) deliver() {
	defer close(n.done)
	for msg := range n.queue {
		body, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(body))
		if err != nil {
			n.logger.Warn().Err(err).Msg("Webhook delivery failed")
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			n.logger.Warn().Int("status", resp.StatusCode).Msg("Webhook rejected message")
		}
	}
}

func (n *Notifier) send(content string) {
	if n.url == "" {
		return
	}
	select {
	case n.queue <- payload{Content: content}:
	default:
		// Queue full; dropping an alert is better than stalling a tick.
		n.logger.Warn().Msg("Notification queue full, dropping message")
	}
}

// Started announces the trading loop starting.
func (n *Notifier) Started(symbol, strategyName, mode string) {
	n.send(fmt.Sprintf(":rocket: **%s** started on %s (%s mode)", strategyName, symbol, mode))
}

// Stopped announces a clean shutdown.
func (n *Notifier) Stopped(symbol string) {
	n.send(fmt.Sprintf(":octagonal_sign: Trading stopped on %s", symbol))
}

// TradeExecuted announces a confirmed fill. Exits and partial exits carry a
// realized PnL line.
func (n *Notifier) TradeExecuted(event models.TradeEvent) {
	msg := fmt.Sprintf("**%s** %s %s @ %s\n%s",
		event.Action, utils.FormatContracts(event.Quantity), event.Symbol,
		utils.FormatUSD(event.Price), event.Reason)
	if event.Action.IsExit() || event.Action.IsPartialExit() {
		msg += fmt.Sprintf("\nPnL: %s (%s)", utils.FormatPnL(event.PnL), utils.FormatPercent(event.PnLPercent))
	}
	n.send(msg)
}

// TickFailed announces a failed tick.
func (n *Notifier) TickFailed(symbol string, err error) {
	n.send(fmt.Sprintf(":warning: Tick failed on %s: %v", symbol, err))
}
