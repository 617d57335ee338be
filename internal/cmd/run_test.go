package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/clambin/go-common/charmer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restmode/restmode/internal/configuration"
	"github.com/restmode/restmode/internal/platform"
	"github.com/restmode/restmode/pkg/pubsub"
)

func Test_makeTasks(t *testing.T) {
	testCases := []struct {
		name   string
		config string
		length int
	}{
		{
			name:   "base",
			length: 9,
		},
		{
			name:   "pprof",
			config: "pprof: 127.0.0.1:6060\n",
			length: 10,
		},
		{
			name: "slack",
			config: `
notifications:
  slack:
    webhook: https://hooks.slack.com/services/T0/B0/XXX
`,
			length: 9,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := viper.New()
			require.NoError(t, charmer.SetDefaults(v, args))
			if tt.config != "" {
				v.SetConfigType("yaml")
				require.NoError(t, v.ReadConfig(bytes.NewBufferString(tt.config)))
			}
			v.Set("history.database", filepath.Join(t.TempDir(), "history.db"))

			cfg, err := configuration.FromViper(v)
			require.NoError(t, err)

			configs := pubsub.New[configuration.Configuration](slog.New(slog.DiscardHandler))
			registry := prometheus.NewPedanticRegistry()

			tasks, cleanup, err := makeTasks(cfg, v, platform.Unsupported{}, configs, registry, slog.New(slog.DiscardHandler))
			require.NoError(t, err)
			assert.Len(t, tasks, tt.length)

			_, err = registry.Gather()
			assert.NoError(t, err)

			cleanup()
		})
	}
}

func Test_run(t *testing.T) {
	v := viper.New()
	require.NoError(t, charmer.SetDefaults(v, args))
	v.Set("monitor.addr", "127.0.0.1:0")
	v.Set("history.database", filepath.Join(t.TempDir(), "history.db"))

	cfg, err := configuration.FromViper(v)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error)
	go func() {
		errCh <- run(ctx, cfg, v, platform.Unsupported{}, prometheus.NewRegistry(), "dev", slog.New(slog.DiscardHandler))
	}()

	// let all components start before shutting the daemon down
	time.Sleep(100 * time.Millisecond)
	cancel()
	assert.NoError(t, <-errCh)
}
