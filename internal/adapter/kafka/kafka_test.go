package kafka

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/rainfall-insights/internal/config"
	"github.com/couchcryptid/rainfall-insights/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	event := domain.ActivityEvent{
		ID:         "evt-1",
		Kind:       domain.KindForecast,
		Outcome:    domain.OutcomeSuccess,
		TargetYear: 2024,
		Steps:      23,
		Duration:   1500 * time.Millisecond,
		OccurredAt: now,
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("evt-1"), msg.Key)
	assert.JSONEq(t, `{
		"id": "evt-1",
		"kind": "forecast",
		"outcome": "success",
		"target_year": 2024,
		"steps": 23,
		"duration_ns": 1500000000,
		"occurred_at": "2024-04-26T15:10:00Z"
	}`, string(msg.Value))
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_kind", msg.Headers[0].Key)
	assert.Equal(t, []byte("forecast"), msg.Headers[0].Value)
	assert.Equal(t, "occurred_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestSerializeToMessage_ExplanationOmitsForecastFields(t *testing.T) {
	msg, err := serializeToMessage(domain.ActivityEvent{
		ID:      "evt-2",
		Kind:    domain.KindExplanation,
		Outcome: domain.OutcomeProviderError,
		Term:    "Mean",
	})
	require.NoError(t, err)

	assert.Contains(t, string(msg.Value), `"term":"Mean"`)
	assert.NotContains(t, string(msg.Value), "target_year")
	assert.NotContains(t, string(msg.Value), "steps")
}

func TestPublish_UnreachableBrokerFails(t *testing.T) {
	w := NewWriter(&config.Config{
		KafkaBrokers: []string{"127.0.0.1:1"},
		KafkaTopic:   "rainfall-activity",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := w.Publish(ctx, domain.ActivityEvent{ID: "evt-3", Kind: domain.KindForecast})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evt-3")
}
