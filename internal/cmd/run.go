package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/restmode/restmode/internal/activity"
	"github.com/restmode/restmode/internal/collector"
	"github.com/restmode/restmode/internal/configuration"
	"github.com/restmode/restmode/internal/health"
	"github.com/restmode/restmode/internal/history"
	"github.com/restmode/restmode/internal/inspector"
	"github.com/restmode/restmode/internal/notifier"
	"github.com/restmode/restmode/internal/overlay"
	"github.com/restmode/restmode/internal/overlay/content"
	"github.com/restmode/restmode/internal/platform"
	"github.com/restmode/restmode/internal/platform/x11"
	"github.com/restmode/restmode/internal/todo"
	"github.com/restmode/restmode/internal/watcher"
	"github.com/restmode/restmode/internal/weather"
	"github.com/restmode/restmode/pkg/pubsub"
)

// inputSampleInterval sets input detection latency. It is deliberately much
// shorter than the poll interval: a keypress must reliably flip the pending
// flag before the next poll consumes it.
const inputSampleInterval = time.Second

var (
	toggleHotkey    = platform.Hotkey{Key: 's', Ctrl: true, Alt: true}
	emergencyHotkey = platform.Hotkey{Key: 'q', Ctrl: true, Alt: true}
)

var runCmd = cobra.Command{
	Use:   "run",
	Short: "Run the restmode daemon",
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := configuration.FromViper(viper.GetViper())
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	logger := slog.Default()
	return run(cmd.Context(), cfg, viper.GetViper(), newBackend(logger), prometheus.NewRegistry(), cmd.Root().Version, logger)
}

func run(ctx context.Context, cfg configuration.Configuration, v *viper.Viper, backend platform.Platform, registry *prometheus.Registry, version string, logger *slog.Logger) error {
	logger.Info("restmode starting", "version", version)
	defer logger.Info("restmode stopped")

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	configs := pubsub.New[configuration.Configuration](logger.With("component", "config"))
	configuration.Watch(v, configs, logger.With("component", "config"))

	tasks, cleanup, err := makeTasks(cfg, v, backend, configs, registry, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	g, ctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		g.Go(func() error { return t.Run(ctx) })
	}
	return g.Wait()
}

// newBackend connects to the display server, falling back to the degraded
// backend when none is available.
func newBackend(logger *slog.Logger) platform.Platform {
	c, err := x11.New(logger.With("component", "x11"))
	if err != nil {
		logger.Warn("no supported display server found, running degraded", "err", err)
		return platform.Unsupported{Reason: err}
	}
	return c
}

type task interface {
	Run(ctx context.Context) error
}

type taskFunc func(ctx context.Context) error

func (f taskFunc) Run(ctx context.Context) error { return f(ctx) }

func makeTasks(cfg configuration.Configuration, v *viper.Viper, backend platform.Platform, configs *pubsub.Publisher[configuration.Configuration], registry *prometheus.Registry, logger *slog.Logger) ([]task, func(), error) {
	var tasks []task
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	tasks = append(tasks, backend)

	// Notifiers fan out to the log and the configured transports. Components
	// hold the list by pointer: the metrics collector can only join once the
	// watcher exists.
	events := notifier.Notifiers{notifier.SLogNotifier{Logger: logger.With("component", "notifier")}}
	if cfg.Notifications.Slack.WebhookURL != "" {
		events = append(events, notifier.NewSlackNotifier(cfg.Notifications.Slack.WebhookURL, logger.With("component", "slack")))
	}
	if cfg.Notifications.MQTT.Broker != "" {
		m, err := notifier.NewMQTTNotifier(cfg.Notifications.MQTT.Broker, cfg.Notifications.MQTT.Topic, logger.With("component", "mqtt"))
		if err != nil {
			return nil, nil, fmt.Errorf("mqtt: %w", err)
		}
		events = append(events, m)
		closers = append(closers, m.Close)
	}

	// Input tracking
	tracker := activity.New(backend, inputSampleInterval, &events, logger.With("component", "activity"))
	tasks = append(tasks, tracker)

	// Foreground inspection
	insp := inspector.New(backend, backend, &events, logger.With("component", "inspector"))

	// Overlay content providers
	weatherMetrics := weather.NewMetrics()
	registry.MustRegister(weatherMetrics)
	weatherMonitor := weather.New(cfg.Weather, weatherMetrics, logger.With("component", "weather"))
	tasks = append(tasks, weatherMonitor)

	todoWatcher := todo.New(cfg.Todo.File, logger.With("component", "todo"))
	tasks = append(tasks, todoWatcher)

	// Overlay
	manager := overlay.New(backend, backend, content.Composer{Weather: weatherMonitor, Todo: todoWatcher}, &events, logger.With("component", "overlay"))

	// Watcher
	w := watcher.New(cfg, tracker, insp, manager, backend, configs, &events, logger.With("component", "watcher"))
	tasks = append(tasks, w)

	if err := backend.BindHotkey(toggleHotkey, w.Toggle); err != nil {
		logger.Warn("toggle hotkey unavailable", "hotkey", toggleHotkey.String(), "err", err)
	}
	if err := backend.BindHotkey(emergencyHotkey, w.Emergency); err != nil {
		logger.Warn("emergency hotkey unavailable", "hotkey", emergencyHotkey.String(), "err", err)
	}

	// Metrics
	coll := collector.New(w, logger.With("component", "collector"))
	registry.MustRegister(coll)
	tasks = append(tasks, coll)
	events = append(events, coll)

	// Session history
	store, err := history.Open(cfg.History.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("history: %w", err)
	}
	closers = append(closers, func() { _ = store.Close() })
	tasks = append(tasks, history.NewRecorder(store, w, &events, logger.With("component", "history")))

	// Health endpoint, served next to the metrics
	h := health.New(w, logger.With("component", "health"))
	tasks = append(tasks, h)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/health", h)
	tasks = append(tasks, taskFunc(func(ctx context.Context) error {
		return runServer(ctx, v.GetString("monitor.addr"), mux)
	}))

	// pprof registers on the default mux
	if addr := v.GetString("pprof"); addr != "" {
		tasks = append(tasks, taskFunc(func(ctx context.Context) error {
			return runServer(ctx, addr, http.DefaultServeMux)
		}))
	}

	return tasks, cleanup, nil
}

func runServer(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
