// Package cmd implements the restmode command line: the daemon itself plus
// helpers to inspect the configuration and the session history.
package cmd

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/clambin/go-common/charmer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFilename string
	RootCmd        = cobra.Command{
		Use:   "restmode",
		Short: "Desktop idle watcher with a full-screen rest overlay",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			charmer.SetJSONLogger(cmd, viper.GetBool("debug"))
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&configFilename, "config", "", "Configuration file")
	RootCmd.PersistentFlags().Bool("debug", false, "Log debug messages")
	_ = viper.BindPFlag("debug", RootCmd.PersistentFlags().Lookup("debug"))

	RootCmd.AddCommand(&runCmd, &historyCmd, &configCmd)
}

var args = charmer.Arguments{
	"debug":        charmer.Argument{Default: false, Help: "Log debug messages"},
	"pprof":        charmer.Argument{Default: "", Help: "Address of the pprof endpoint (empty: disabled)"},
	"monitor.addr": charmer.Argument{Default: ":9091", Help: "Address of the metrics & health endpoint"},

	"activation.delay":    charmer.Argument{Default: 5 * time.Minute, Help: "Inactivity before the overlay activates"},
	"activation.interval": charmer.Argument{Default: 30 * time.Second, Help: "How often inactivity is checked"},
	"activation.auto":     charmer.Argument{Default: true, Help: "Activate automatically when idle"},

	"system.screen-off-delay": charmer.Argument{Default: time.Duration(0), Help: "Turn displays off this long after activation (0: never)"},
	"system.low-power":        charmer.Argument{Default: false, Help: "Redraw the overlay less often"},

	"display.time-format":  charmer.Argument{Default: "24h", Help: "Clock format: 12h or 24h"},
	"display.show-seconds": charmer.Argument{Default: false, Help: "Show seconds on the clock"},
	"display.date-format":  charmer.Argument{Default: "full", Help: "Date format: full, short or iso"},

	"weather.apikey":   charmer.Argument{Default: "", Help: "weatherapi.com API key"},
	"weather.location": charmer.Argument{Default: "", Help: "Location to show the weather for"},
	"weather.interval": charmer.Argument{Default: 30 * time.Minute, Help: "Weather refresh interval"},

	"todo.file":      charmer.Argument{Default: "", Help: "YAML file with the to-do list shown on the overlay"},
	"todo.max-items": charmer.Argument{Default: 5, Help: "Maximum number of to-do items shown"},

	"notifications.slack.webhook": charmer.Argument{Default: "", Help: "Slack webhook URL for session notifications"},
	"notifications.mqtt.broker":   charmer.Argument{Default: "", Help: "MQTT broker URL for session notifications"},
	"notifications.mqtt.topic":    charmer.Argument{Default: "restmode/events", Help: "MQTT topic for session notifications"},

	"history.database": charmer.Argument{Default: "", Help: "Session database path (empty: $HOME/.restmode/history.db)"},
	"history.limit":    charmer.Argument{Default: 20, Help: "Number of sessions the history command lists"},
}

func initConfig() {
	if configFilename != "" {
		viper.SetConfigFile(configFilename)
	} else {
		viper.AddConfigPath("/etc/restmode/")
		viper.AddConfigPath("$HOME/.restmode")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	if err := charmer.SetDefaults(viper.GetViper(), args); err != nil {
		panic("failed to set viper defaults: " + err.Error())
	}

	viper.SetEnvPrefix("RESTMODE")
	viper.AutomaticEnv()

	// the daemon runs fine on defaults alone, so only an explicitly named
	// config file is required to exist.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", "err", err)
			os.Exit(1)
		}
	}
}
