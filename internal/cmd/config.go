package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/restmode/restmode/internal/configuration"
)

var configCmd = cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE: func(_ *cobra.Command, _ []string) error {
		return showConfig(viper.GetViper(), yaml.NewEncoder(os.Stdout))
	},
}

type encoder interface {
	Encode(any) error
}

// report is the printable view of a configuration snapshot: durations as
// strings, secrets redacted.
type report struct {
	Activation struct {
		Delay    string `yaml:"delay"`
		Interval string `yaml:"interval"`
		Auto     bool   `yaml:"auto"`
	} `yaml:"activation"`
	System struct {
		ScreenOffDelay string `yaml:"screen-off-delay"`
		LowPower       bool   `yaml:"low-power"`
	} `yaml:"system"`
	Display struct {
		TimeFormat  string `yaml:"time-format"`
		ShowSeconds bool   `yaml:"show-seconds"`
		DateFormat  string `yaml:"date-format"`
	} `yaml:"display"`
	Weather struct {
		APIKey   string `yaml:"apikey"`
		Location string `yaml:"location"`
		Interval string `yaml:"interval"`
	} `yaml:"weather"`
	Todo struct {
		File     string `yaml:"file"`
		MaxItems int    `yaml:"max-items"`
	} `yaml:"todo"`
	Notifications struct {
		SlackWebhook string `yaml:"slack-webhook"`
		MQTTBroker   string `yaml:"mqtt-broker"`
		MQTTTopic    string `yaml:"mqtt-topic"`
	} `yaml:"notifications"`
	History struct {
		Database string `yaml:"database"`
	} `yaml:"history"`
}

func showConfig(v *viper.Viper, e encoder) error {
	cfg, err := configuration.FromViper(v)
	if err != nil {
		return err
	}
	return e.Encode(newReport(cfg))
}

func newReport(cfg configuration.Configuration) report {
	var r report
	r.Activation.Delay = cfg.Activation.Delay.String()
	r.Activation.Interval = cfg.Activation.PollInterval.String()
	r.Activation.Auto = cfg.Activation.Auto
	r.System.ScreenOffDelay = cfg.System.ScreenOffDelay.String()
	r.System.LowPower = cfg.System.LowPower
	r.Display.TimeFormat = cfg.Display.TimeFormat
	r.Display.ShowSeconds = cfg.Display.ShowSeconds
	r.Display.DateFormat = cfg.Display.DateFormat
	r.Weather.APIKey = redacted(cfg.Weather.APIKey)
	r.Weather.Location = cfg.Weather.Location
	r.Weather.Interval = cfg.Weather.Interval.String()
	r.Todo.File = cfg.Todo.File
	r.Todo.MaxItems = cfg.Todo.MaxItems
	r.Notifications.SlackWebhook = redacted(cfg.Notifications.Slack.WebhookURL)
	r.Notifications.MQTTBroker = cfg.Notifications.MQTT.Broker
	r.Notifications.MQTTTopic = cfg.Notifications.MQTT.Topic
	r.History.Database = cfg.History.Database
	return r
}

// redacted shows only whether a secret is set.
func redacted(s string) string {
	if s == "" {
		return "(not set)"
	}
	return "(set)"
}
