package cmd

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/philtim/timearchitect/alarm"
	"github.com/philtim/timearchitect/prefs"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change saved preferences",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show every saved preference",
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

		keys := a.store.Keys()
		if len(keys) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No preferences saved")
			return nil
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Key", "Value"})
		table.SetBorder(false)
		table.SetColumnSeparator("  ")
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		for _, k := range keys {
			table.Append([]string{k, a.store.Get(k, "")})
		}
		table.Render()
		return nil
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a preference",
	Long: `Sets one preference. Alarm settings are checked: alarmSound is one of
classic, digital, chime, bell; alarmVolume is clamped to 0-1; stopKey is one
of space, enter, esc, x. zone selects a configured zone. Other keys are
stored as given, and an empty value removes the key.

Examples:
  timearchitect prefs set alarmSound chime
  timearchitect prefs set alarmVolume 0.4
  timearchitect prefs set theme theme-dark`,
	Args: cobra.ExactArgs(2),
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

		key, value := args[0], args[1]
		p := a.session.Preferences()
		switch key {
		case prefs.KeyAlarmSound:
			p.Sound = value
		case prefs.KeyAlarmVolume:
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("volume must be a number: %w", err)
			}
			p.Volume = v
		case prefs.KeyStopKey:
			p.StopKey = alarm.NormalizeKey(value)
		case prefs.KeyZone:
			z, err := a.session.SelectZone(value)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, z.Code)
			return nil
		case prefs.KeyAlarmTime:
			return fmt.Errorf("use 'timearchitect alarm set' to change %s", key)
		default:
			if err := a.store.Set(key, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
			return nil
		}

		if _, err := a.session.SavePreferences(p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, a.store.Get(key, ""))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(prefsCmd)
	prefsCmd.AddCommand(prefsShowCmd, prefsSetCmd)
}
