package cmd

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/philtim/timearchitect/clock"
	"github.com/philtim/timearchitect/session"
)

var (
	nowAll  bool
	nowFrom string
)

var nowCmd = &cobra.Command{
	Use:   "now [zone]",
	Short: "Print the current time in a zone",
	Long: `Prints the time, date and UTC offset in a zone, the selected zone when
none is given. Unknown zones fall back to the default zone.

Examples:
  timearchitect now
  timearchitect now ist
  timearchitect now --all --from GMT`,
	Args: cobra.MaximumNArgs(1),
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
		now := a.session.Now()

		if nowAll {
			printDashboard(out, a.session.Dashboard(nowFrom, now))
			return nil
		}

		view := a.session.Snapshot(now).Zone
		if len(args) == 1 {
			z := a.session.Registry().Resolve(args[0])
			view = session.View(z, now)
			view.Delta = clock.FormatDelta(clock.Delta(clock.Local(), z, now))
		}

		fmt.Fprintf(out, "%s  %s\n", view.Code, view.Label)
		fmt.Fprintf(out, "%s\n", view.Time)
		fmt.Fprintf(out, "%s  %s  (%s from local)\n", view.Date, view.Offset, view.Delta)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(nowCmd)
	nowCmd.Flags().BoolVarP(&nowAll, "all", "a", false, "show every configured zone")
	nowCmd.Flags().StringVar(&nowFrom, "from", "", "zone the deltas are measured from (default: local)")
}

func printDashboard(out io.Writer, views []session.ZoneView) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Zone", "Time", "Date", "Offset", "Delta", "Location"})
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)

	for _, v := range views {
		table.Append([]string{v.Code, v.Time, v.Date, v.Offset, v.Delta, v.Location})
	}
	table.Render()
}
