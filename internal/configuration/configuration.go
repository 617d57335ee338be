// Package configuration defines the daemon's typed configuration, loads it
// from viper and republishes it when the configuration file changes.
package configuration

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/restmode/restmode/pkg/pubsub"
)

// Configuration is one immutable snapshot of the daemon's settings. The
// inactivity watcher applies a new snapshot between polls, so a poll cycle
// always sees consistent values.
type Configuration struct {
	Activation    ActivationConfiguration   `yaml:"activation"`
	System        SystemConfiguration       `yaml:"system"`
	Display       DisplayConfiguration      `yaml:"display"`
	Weather       WeatherConfiguration      `yaml:"weather"`
	Todo          TodoConfiguration         `yaml:"todo"`
	Notifications NotificationConfiguration `yaml:"notifications"`
	History       HistoryConfiguration      `yaml:"history"`
}

// ActivationConfiguration drives the inactivity watcher.
type ActivationConfiguration struct {
	Delay        time.Duration `yaml:"delay"`
	PollInterval time.Duration `yaml:"interval"`
	Auto         bool          `yaml:"auto"`
}

type SystemConfiguration struct {
	ScreenOffDelay time.Duration `yaml:"screen-off-delay"`
	LowPower       bool          `yaml:"low-power"`
}

// DisplayConfiguration selects the overlay's time and date formats.
type DisplayConfiguration struct {
	TimeFormat  string `yaml:"time-format"` // "12h" or "24h"
	ShowSeconds bool   `yaml:"show-seconds"`
	DateFormat  string `yaml:"date-format"` // "full", "short" or "iso"
}

type WeatherConfiguration struct {
	APIKey   string        `yaml:"apikey"`
	Location string        `yaml:"location"`
	Interval time.Duration `yaml:"interval"`
}

// Enabled reports whether enough is configured to query the weather service.
func (c WeatherConfiguration) Enabled() bool {
	return c.APIKey != "" && c.Location != ""
}

type TodoConfiguration struct {
	File     string `yaml:"file"`
	MaxItems int    `yaml:"max-items"`
}

type NotificationConfiguration struct {
	Slack SlackConfiguration `yaml:"slack"`
	MQTT  MQTTConfiguration  `yaml:"mqtt"`
}

type SlackConfiguration struct {
	WebhookURL string `yaml:"webhook"`
}

type MQTTConfiguration struct {
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
}

type HistoryConfiguration struct {
	Database string `yaml:"database"`
}

// FromViper builds a validated snapshot from the current viper state.
func FromViper(v *viper.Viper) (Configuration, error) {
	cfg := Configuration{
		Activation: ActivationConfiguration{
			Delay:        v.GetDuration("activation.delay"),
			PollInterval: v.GetDuration("activation.interval"),
			Auto:         v.GetBool("activation.auto"),
		},
		System: SystemConfiguration{
			ScreenOffDelay: v.GetDuration("system.screen-off-delay"),
			LowPower:       v.GetBool("system.low-power"),
		},
		Display: DisplayConfiguration{
			TimeFormat:  v.GetString("display.time-format"),
			ShowSeconds: v.GetBool("display.show-seconds"),
			DateFormat:  v.GetString("display.date-format"),
		},
		Weather: WeatherConfiguration{
			APIKey:   v.GetString("weather.apikey"),
			Location: v.GetString("weather.location"),
			Interval: v.GetDuration("weather.interval"),
		},
		Todo: TodoConfiguration{
			File:     v.GetString("todo.file"),
			MaxItems: v.GetInt("todo.max-items"),
		},
		Notifications: NotificationConfiguration{
			Slack: SlackConfiguration{WebhookURL: v.GetString("notifications.slack.webhook")},
			MQTT: MQTTConfiguration{
				Broker: v.GetString("notifications.mqtt.broker"),
				Topic:  v.GetString("notifications.mqtt.topic"),
			},
		},
		History: HistoryConfiguration{Database: v.GetString("history.database")},
	}
	return cfg, cfg.validate()
}

func (c Configuration) validate() error {
	if c.Activation.Delay <= 0 {
		return fmt.Errorf("activation.delay must be positive, got %s", c.Activation.Delay)
	}
	if c.Activation.PollInterval <= 0 {
		return fmt.Errorf("activation.interval must be positive, got %s", c.Activation.PollInterval)
	}
	if c.System.ScreenOffDelay < 0 {
		return fmt.Errorf("system.screen-off-delay must not be negative, got %s", c.System.ScreenOffDelay)
	}
	switch c.Display.TimeFormat {
	case "12h", "24h":
	default:
		return fmt.Errorf("display.time-format must be 12h or 24h, got %q", c.Display.TimeFormat)
	}
	switch c.Display.DateFormat {
	case "full", "short", "iso":
	default:
		return fmt.Errorf("display.date-format must be full, short or iso, got %q", c.Display.DateFormat)
	}
	if c.Weather.Enabled() && c.Weather.Interval <= 0 {
		return fmt.Errorf("weather.interval must be positive, got %s", c.Weather.Interval)
	}
	return nil
}

// Watch republishes a snapshot on every valid change to the configuration
// file. Invalid changes are logged and dropped, keeping the last good
// snapshot active.
func Watch(v *viper.Viper, p *pubsub.Publisher[Configuration], logger *slog.Logger) {
	v.OnConfigChange(func(event fsnotify.Event) {
		cfg, err := FromViper(v)
		if err != nil {
			logger.Error("invalid configuration change ignored", "err", err, "file", event.Name)
			return
		}
		logger.Info("configuration reloaded", "file", event.Name)
		p.Publish(cfg)
	})
	v.WatchConfig()
}
