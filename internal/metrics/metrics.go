// Package metrics holds the game counters and the OTLP meter setup.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "gachabot/game"

type Metrics struct {
	Drops    metric.Int64Counter
	Rolls    metric.Int64Counter
	Trades   metric.Int64Counter
	Removals metric.Int64Counter
	Currency metric.Int64Counter
}

// New builds the counters against the current global meter provider.
func New() (*Metrics, error) {
	meter := otel.Meter(meterName)

	drops, err := meter.Int64Counter("gacha_drops_total",
		metric.WithDescription("Drops by outcome"))
	if err != nil {
		return nil, err
	}
	rolls, err := meter.Int64Counter("gacha_rolls_total",
		metric.WithDescription("Rolls by rarity"))
	if err != nil {
		return nil, err
	}
	trades, err := meter.Int64Counter("gacha_trades_total",
		metric.WithDescription("Finished trades by outcome"))
	if err != nil {
		return nil, err
	}
	removals, err := meter.Int64Counter("gacha_removed_items_total",
		metric.WithDescription("Waifus removed for currency"))
	if err != nil {
		return nil, err
	}
	currency, err := meter.Int64Counter("gacha_currency_flow_total",
		metric.WithDescription("Currency granted or spent by source"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Drops:    drops,
		Rolls:    rolls,
		Trades:   trades,
		Removals: removals,
		Currency: currency,
	}, nil
}

// Nop returns counters bound to whatever provider is global, never failing.
func Nop() *Metrics {
	m, err := New()
	if err != nil {
		return &Metrics{}
	}
	return m
}

func (m *Metrics) add(ctx context.Context, c metric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	if m == nil || c == nil {
		return
	}
	c.Add(ctx, n, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordDrop(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.add(ctx, m.Drops, 1, attribute.String("outcome", outcome))
}

func (m *Metrics) RecordRoll(ctx context.Context, rarity int) {
	if m == nil {
		return
	}
	m.add(ctx, m.Rolls, 1, attribute.Int("rarity", rarity))
}

func (m *Metrics) RecordTrade(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.add(ctx, m.Trades, 1, attribute.String("outcome", outcome))
}

func (m *Metrics) RecordRemoval(ctx context.Context, items int) {
	if m == nil || items == 0 {
		return
	}
	m.add(ctx, m.Removals, int64(items))
}

// RecordCurrency counts a positive amount moved by source ("daily", "roll", ...).
func (m *Metrics) RecordCurrency(ctx context.Context, source string, amount int64) {
	if m == nil || amount <= 0 {
		return
	}
	m.add(ctx, m.Currency, amount, attribute.String("source", source))
}
