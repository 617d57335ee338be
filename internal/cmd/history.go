package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/restmode/restmode/internal/history"
)

var historyCmd = cobra.Command{
	Use:   "history",
	Short: "List recent rest sessions",
	RunE:  listSessions(os.Stdout, viper.GetViper()),
}

const historyFormat = "%-20s %-10s %-10s %s\n"

func listSessions(w io.Writer, v *viper.Viper) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, _ []string) error {
		store, err := history.Open(v.GetString("history.database"))
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		records, err := store.Recent(v.GetInt("history.limit"))
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(w, historyFormat, "STARTED", "DURATION", "TRIGGER", "REASON")
		for _, r := range records {
			duration := time.Duration(r.Duration * float64(time.Second)).Round(time.Second)
			_, _ = fmt.Fprintf(w, historyFormat,
				r.StartedAt.Local().Format("2006-01-02 15:04:05"), duration.String(), r.Trigger, r.Reason,
			)
		}
		return nil
	}
}
