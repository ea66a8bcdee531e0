// Package logging provides structured logging functionality.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"delta-trader/internal/models"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "delta-trader", "logs", "trader.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		writers = append(writers, consoleWriter)
	}

	if cfg.File {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	var writer io.Writer
	if len(writers) == 0 {
		writer = os.Stdout
	} else if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(writer).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()

	return logger
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithStrategy adds a strategy name to the logger context.
func WithStrategy(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("strategy", name).Logger()
}

// LogSignal logs a strategy signal.
func LogSignal(logger zerolog.Logger, symbol string, sig models.Signal) {
	logger.Info().
		Str("event", "signal").
		Str("symbol", symbol).
		Str("action", string(sig.Action)).
		Int("candle_index", sig.CandleIndex).
		Str("reason", sig.Reason).
		Msg("Signal generated")
}

// LogOrder logs an order placement.
func LogOrder(logger zerolog.Logger, intent models.OrderIntent, result *models.OrderResult) {
	event := logger.Info().
		Str("event", "order").
		Str("symbol", intent.Symbol).
		Str("side", string(intent.Side)).
		Int("quantity", intent.Quantity).
		Str("client_order_id", intent.ClientOrderID)
	if result != nil {
		event = event.Str("order_id", result.OrderID).Float64("filled_price", result.FilledPrice)
	}
	event.Msg("Order placed")
}

// LogReconciliation logs a position reconciliation outcome.
func LogReconciliation(logger zerolog.Logger, symbol string, local, exchange models.Direction, qty int) {
	logger.Warn().
		Str("event", "reconcile").
		Str("symbol", symbol).
		Str("local", local.String()).
		Str("exchange", exchange.String()).
		Int("quantity", qty).
		Msg("Position reconciled to exchange state")
}
