package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delta-trader/internal/models"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordMintsReferenceForNewTrade(t *testing.T) {
	j := openTestJournal(t)

	ref, err := j.Record(models.TradeEvent{
		Symbol:   "BTCUSD",
		Strategy: "ema_cross",
		Action:   models.ActionEnterLong,
		Price:    50000,
		Quantity: 4,
		Reason:   "Bullish cross",
		At:       time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ref)
}

func TestRecordForwardsExistingReference(t *testing.T) {
	j := openTestJournal(t)

	entry, err := j.Record(models.TradeEvent{
		Symbol: "BTCUSD", Strategy: "ema_cross", Action: models.ActionEnterLong,
		Price: 50000, Quantity: 4, At: time.Now().UTC(),
	})
	require.NoError(t, err)

	exit, err := j.Record(models.TradeEvent{
		Symbol: "BTCUSD", Strategy: "ema_cross", Action: models.ActionExitLong,
		Price: 51000, Quantity: 4, JournalRef: entry, At: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, entry, exit)

	var count int
	err = j.db.QueryRow(`SELECT COUNT(*) FROM trade_events WHERE trade_ref = ?`, entry).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
