package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/philtim/timearchitect/alarm"
)

var alarmZone string

var alarmCmd = &cobra.Command{
	Use:   "alarm",
	Short: "Set, cancel or inspect the alarm",
	Long: `Manages the single alarm. A running UI or daemon picks up changes made
here the next time it starts.`,
}

var alarmSetCmd = &cobra.Command{
	Use:   "set <HH:MM>",
	Short: "Arm the alarm in the selected zone",
	Long: `Arms the alarm for a 24-hour wall-clock time. The time is read in the
selected zone, or in --zone, which also becomes the selected zone.

Examples:
  timearchitect alarm set 07:30
  timearchitect alarm set 6:45 --zone IST`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if alarmZone != "" {
			if _, err := a.session.SelectZone(alarmZone); err != nil {
				return err
			}
		}

		req, err := a.session.SetAlarm(args[0])
		if err != nil {
			var aerr *alarm.Error
			if errors.As(err, &aerr) {
				return errors.New(aerr.Description)
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Alarm set for %s (%s)\n", req.Target, req.Zone)
		return nil
	},
}

var alarmCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the pending alarm",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.session.CancelAlarm() {
			fmt.Fprintln(cmd.OutOrStdout(), "Alarm cancelled")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "No alarm set")
		}
		return nil
	},
}

var alarmStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the alarm and its playback settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		view := a.session.Alarm()
		fmt.Fprintf(out, "State:    %s\n", view.State)
		if view.Pending != nil {
			fmt.Fprintf(out, "Target:   %s (%s)\n", view.Pending.Target, view.Pending.Zone)
		}
		p := view.Preferences
		fmt.Fprintf(out, "Sound:    %s\n", alarm.SoundByID(p.Sound).Name)
		fmt.Fprintf(out, "Volume:   %d%%\n", int(p.Volume*100+0.5))
		fmt.Fprintf(out, "Stop key: %s\n", p.StopKey)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(alarmCmd)
	alarmCmd.AddCommand(alarmSetCmd, alarmCancelCmd, alarmStatusCmd)
	alarmSetCmd.Flags().StringVarP(&alarmZone, "zone", "z", "", "zone the time is read in")
}
