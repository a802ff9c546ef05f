package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/philtim/timearchitect/geonames"
	"github.com/philtim/timearchitect/notify"
	"github.com/philtim/timearchitect/tui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the terminal UI (the default)",
	Long: `Opens the dashboard: the selected zone, every configured zone with its
offset from yours, and the alarm.

Keys:
  ←/→ or 1-9   Select zone
  t            Set the alarm
  c            Cancel the alarm
  s            Alarm sound, volume and stop key
  a / d        Add or delete zones`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cities := geonames.NewDatabase("")
	cities.LoadAsync(ctx)

	notifier := notify.New(cfg.Notifications.URLs)
	notifier.Start(a.bus)
	defer notifier.Wait()

	return tui.Run(tui.Options{
		Session:  a.session,
		Config:   cfg,
		Cities:   cities,
		Interval: cfg.TickInterval,
	})
}
