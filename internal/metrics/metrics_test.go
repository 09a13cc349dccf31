package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNewMetrics(t *testing.T) {
	otel.SetMeterProvider(noop.NewMeterProvider())

	m, err := New()
	require.NoError(t, err)
	assert.NotNil(t, m.Drops)
	assert.NotNil(t, m.Rolls)
	assert.NotNil(t, m.Trades)
	assert.NotNil(t, m.Removals)
	assert.NotNil(t, m.Currency)

	ctx := context.Background()
	m.RecordDrop(ctx, "claimed")
	m.RecordRoll(ctx, 3)
	m.RecordTrade(ctx, "settled")
	m.RecordRemoval(ctx, 2)
	m.RecordCurrency(ctx, "daily", 500)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordDrop(context.Background(), "timeout")
		m.RecordRemoval(context.Background(), 1)
	})
}

func TestInitMeterDisabled(t *testing.T) {
	shutdown, err := InitMeter(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
