package configuration_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restmode/restmode/internal/configuration"
	"github.com/restmode/restmode/pkg/pubsub"
)

func testViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("activation.delay", 5*time.Minute)
	v.SetDefault("activation.interval", 30*time.Second)
	v.SetDefault("activation.auto", true)
	v.SetDefault("system.screen-off-delay", time.Duration(0))
	v.SetDefault("system.low-power", false)
	v.SetDefault("display.time-format", "24h")
	v.SetDefault("display.show-seconds", false)
	v.SetDefault("display.date-format", "full")
	v.SetDefault("weather.interval", 30*time.Minute)
	v.SetDefault("todo.max-items", 5)
	v.SetDefault("notifications.mqtt.topic", "restmode/events")
	return v
}

func TestFromViper(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := configuration.FromViper(testViper())
		require.NoError(t, err)
		assert.Equal(t, 5*time.Minute, cfg.Activation.Delay)
		assert.Equal(t, 30*time.Second, cfg.Activation.PollInterval)
		assert.True(t, cfg.Activation.Auto)
		assert.Zero(t, cfg.System.ScreenOffDelay)
		assert.False(t, cfg.System.LowPower)
		assert.Equal(t, "24h", cfg.Display.TimeFormat)
		assert.Equal(t, "full", cfg.Display.DateFormat)
		assert.False(t, cfg.Weather.Enabled())
	})

	t.Run("overrides", func(t *testing.T) {
		v := testViper()
		v.Set("activation.delay", "10m")
		v.Set("system.screen-off-delay", "2m")
		v.Set("display.time-format", "12h")
		v.Set("weather.apikey", "1234")
		v.Set("weather.location", "Brussels")
		cfg, err := configuration.FromViper(v)
		require.NoError(t, err)
		assert.Equal(t, 10*time.Minute, cfg.Activation.Delay)
		assert.Equal(t, 2*time.Minute, cfg.System.ScreenOffDelay)
		assert.Equal(t, "12h", cfg.Display.TimeFormat)
		assert.True(t, cfg.Weather.Enabled())
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name  string
			key   string
			value any
		}{
			{"zero delay", "activation.delay", "0s"},
			{"negative delay", "activation.delay", "-5m"},
			{"zero interval", "activation.interval", "0s"},
			{"negative screen-off delay", "system.screen-off-delay", "-1m"},
			{"bad time format", "display.time-format", "av"},
			{"bad date format", "display.date-format", "long"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				v := testViper()
				v.Set(tt.key, tt.value)
				_, err := configuration.FromViper(v)
				assert.Error(t, err)
			})
		}
	})

	t.Run("weather needs an interval", func(t *testing.T) {
		v := testViper()
		v.Set("weather.apikey", "1234")
		v.Set("weather.location", "Brussels")
		v.Set("weather.interval", "0s")
		_, err := configuration.FromViper(v)
		assert.Error(t, err)
	})
}

func TestWatch(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("activation:\n  delay: 10m\n"), 0644))

	v := testViper()
	v.SetConfigFile(configFile)
	require.NoError(t, v.ReadInConfig())

	logger := slog.New(slog.DiscardHandler)
	p := pubsub.New[configuration.Configuration](logger)
	ch := p.Subscribe()

	var delay atomic.Int64
	go func() {
		for cfg := range ch {
			delay.Store(int64(cfg.Activation.Delay))
		}
	}()

	configuration.Watch(v, p, logger)

	require.NoError(t, os.WriteFile(configFile, []byte("activation:\n  delay: 15m\n"), 0644))
	assert.Eventually(t, func() bool {
		return time.Duration(delay.Load()) == 15*time.Minute
	}, 5*time.Second, 100*time.Millisecond)
}
