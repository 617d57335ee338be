// Package weather polls weatherapi.com for the current conditions at the
// configured location and caches the latest snapshot for the overlay.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/clambin/go-common/http/metrics"
	"github.com/clambin/go-common/http/roundtripper"

	"github.com/restmode/restmode/internal/configuration"
)

const baseURL = "https://api.weatherapi.com/v1"

// Info is the latest weather snapshot.
type Info struct {
	Condition string
	Emoji     string
	TempC     float64
	Updated   time.Time
}

// String renders the overlay's weather line.
func (i Info) String() string {
	return fmt.Sprintf("%s %.1f°C  %s", i.Emoji, i.TempC, i.Condition)
}

// Monitor refreshes the weather on a fixed interval. A failed refresh keeps
// the previous snapshot.
type Monitor struct {
	httpClient *http.Client
	baseURL    string
	cfg        configuration.WeatherConfiguration
	logger     *slog.Logger
	refresh    chan struct{}

	mu    sync.RWMutex
	info  Info
	valid bool
}

// New returns a Monitor for the given configuration. Requests are
// instrumented with the given request metrics.
func New(cfg configuration.WeatherConfiguration, m metrics.RequestMetrics, logger *slog.Logger) *Monitor {
	return &Monitor{
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: roundtripper.New(roundtripper.WithRequestMetrics(m)),
		},
		baseURL: baseURL,
		cfg:     cfg,
		logger:  logger,
		refresh: make(chan struct{}),
	}
}

// NewMetrics returns the request metrics instrumenting the weatherapi client.
func NewMetrics() metrics.RequestMetrics {
	return metrics.NewRequestMetrics(metrics.Options{
		Namespace: "restmode",
		Subsystem: "weather",
	})
}

// Run refreshes the weather once at startup and then on every interval tick,
// until ctx is canceled. If no API key or location is configured, Run blocks
// until ctx is canceled without ever querying the service.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.cfg.Enabled() {
		m.logger.Debug("weather not configured")
		<-ctx.Done()
		return nil
	}

	m.logger.Debug("started", slog.Duration("interval", m.cfg.Interval))
	defer m.logger.Debug("stopped")

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := m.update(ctx); err != nil && ctx.Err() == nil {
			m.logger.Error("failed to get weather", slog.Any("err", err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-m.refresh:
		}
	}
}

// Refresh triggers an immediate update.
func (m *Monitor) Refresh() {
	m.refresh <- struct{}{}
}

// Info returns the cached snapshot. ok is false until the first successful
// refresh.
func (m *Monitor) Info() (info Info, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.info, m.valid
}

func (m *Monitor) update(ctx context.Context) error {
	values := url.Values{}
	values.Set("key", m.cfg.APIKey)
	values.Set("q", m.cfg.Location)
	values.Set("aqi", "no")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/current.json?"+values.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weatherapi: %s", resp.Status)
	}

	var response struct {
		Current struct {
			TempC     float64 `json:"temp_c"`
			Condition struct {
				Text string `json:"text"`
			} `json:"condition"`
		} `json:"current"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	info := Info{
		Condition: response.Current.Condition.Text,
		Emoji:     emojiFor(response.Current.Condition.Text),
		TempC:     response.Current.TempC,
		Updated:   time.Now(),
	}

	m.mu.Lock()
	m.info = info
	m.valid = true
	m.mu.Unlock()

	m.logger.Debug("weather updated", slog.String("condition", info.Condition), slog.Float64("temp_c", info.TempC))
	return nil
}

func emojiFor(condition string) string {
	desc := strings.ToLower(condition)
	switch {
	case strings.Contains(desc, "sun"), strings.Contains(desc, "clear"):
		return "☀️"
	case strings.Contains(desc, "cloud"):
		return "☁️"
	case strings.Contains(desc, "rain"), strings.Contains(desc, "drizzle"):
		return "🌧️"
	case strings.Contains(desc, "snow"):
		return "❄️"
	case strings.Contains(desc, "storm"), strings.Contains(desc, "thunder"):
		return "⛈️"
	case strings.Contains(desc, "fog"), strings.Contains(desc, "mist"):
		return "🌫️"
	default:
		return "❓"
	}
}
