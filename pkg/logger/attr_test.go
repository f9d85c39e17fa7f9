package logger_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

func TestError(t *testing.T) {
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	empty := logger.Error(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestIdentifierAttrs(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
		key  string
	}{
		{"user", logger.UserID("u1"), "user_id"},
		{"subscription", logger.SubscriptionID("s1"), "subscription_id"},
		{"order", logger.OrderID("o1"), "order_id"},
		{"plan", logger.PlanID("p1"), "plan_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, tt.attr.Key)
		})
	}

	assert.True(t, logger.UserID(nil).Equal(slog.Attr{}))
	assert.True(t, logger.SubscriptionID(nil).Equal(slog.Attr{}))
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithFormat(logger.FormatJSON),
		logger.WithService("billingd"),
	)

	log.Info("subscription activated", logger.SubscriptionID("sub-1"))

	out := buf.String()
	assert.Contains(t, out, `"service":"billingd"`)
	assert.Contains(t, out, `"subscription_id":"sub-1"`)
	assert.Contains(t, out, "subscription activated")
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithLevel(slog.LevelWarn),
		logger.WithFormat(logger.FormatText),
	)

	log.Info("hidden")
	log.Warn("visible")

	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.Contains(t, out, "visible")
}

func TestNewFromConfig(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewFromConfig(logger.Config{
		Level:   "debug",
		Format:  "text",
		Service: "sweeper",
	}, logger.WithOutput(&buf))

	log.Debug("tick")
	assert.Contains(t, buf.String(), "tick")
}

func TestWithFormat_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() {
		logger.New(logger.WithFormat("xml"))
	})
}
