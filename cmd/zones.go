package cmd

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/philtim/timearchitect/clock"
	"github.com/philtim/timearchitect/config"
	"github.com/philtim/timearchitect/geonames"
)

var (
	zoneCode     string
	zoneLabel    string
	zoneLocation string
	searchLimit  int
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Manage configured zones",
}

var zonesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured zones",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := cfg.Registry()
		if err != nil {
			return err
		}

		now := time.Now()
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"", "Code", "Timezone", "Label", "Location", "Offset"})
		table.SetBorder(false)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAutoWrapText(false)

		for _, z := range reg.Zones() {
			mark := ""
			if z == reg.Default() {
				mark = "*"
			}
			table.Append([]string{mark, z.Code, z.TZ, z.Label, z.Location, clock.FormatUTCOffset(z, now)})
		}
		table.Render()
		return nil
	},
}

var zonesSearchCmd = &cobra.Command{
	Use:   "search <city>",
	Short: "Search the GeoNames city database",
	Long: `Searches cities with more than 15000 inhabitants. The database is
downloaded from GeoNames on first use and cached.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db := geonames.NewDatabase("")
		if err := db.Load(cmd.Context()); err != nil {
			return err
		}

		results := db.Search(strings.Join(args, " "), searchLimit)
		if len(results) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No cities found")
			return nil
		}

		now := time.Now()
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"City", "Country", "Timezone", "Population", "Code"})
		table.SetBorder(false)
		table.SetColumnAlignment([]int{
			tablewriter.ALIGN_LEFT,
			tablewriter.ALIGN_LEFT,
			tablewriter.ALIGN_LEFT,
			tablewriter.ALIGN_RIGHT,
			tablewriter.ALIGN_LEFT,
		})
		for _, c := range results {
			table.Append([]string{c.Name, c.CountryCode, c.Timezone, fmt.Sprintf("%d", c.Population), geonames.SuggestCode(c, now)})
		}
		table.Render()
		return nil
	},
}

var zonesAddCmd = &cobra.Command{
	Use:   "add <timezone|city>",
	Short: "Add a zone",
	Long: `Adds a zone by IANA timezone name, or by city name looked up in GeoNames.
Without --code the zone's abbreviation (or the city's first letters) is used.

Examples:
  timearchitect zones add Europe/Berlin
  timearchitect zones add "Sao Paulo" --code SAO`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		zone, err := resolveZone(cmd, cfg, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if err := cfg.AddZone(zone); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", clock.NormalizeCode(zone.Code), zone.Timezone)
		return nil
	},
}

var zonesDeleteCmd = &cobra.Command{
	Use:     "delete <code>...",
	Aliases: []string{"rm"},
	Short:   "Delete zones by code",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		for _, code := range args {
			if !cfg.HasZone(code) {
				return fmt.Errorf("zone '%s' not found", clock.NormalizeCode(code))
			}
		}
		if err := cfg.DeleteZones(args); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d zone(s), default is %s\n", len(args), cfg.DefaultZone)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(zonesCmd)
	zonesCmd.AddCommand(zonesListCmd, zonesSearchCmd, zonesAddCmd, zonesDeleteCmd)

	zonesSearchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	zonesAddCmd.Flags().StringVarP(&zoneCode, "code", "c", "", "zone code")
	zonesAddCmd.Flags().StringVar(&zoneLabel, "label", "", "display label")
	zonesAddCmd.Flags().StringVar(&zoneLocation, "location", "", "location shown under the clock")
}

// resolveZone turns a timezone name or city into a zone, filling in the
// flags the user gave.
func resolveZone(cmd *cobra.Command, cfg *config.Config, query string) (config.Zone, error) {
	now := time.Now()

	var entry clock.Entry
	if _, err := time.LoadLocation(query); err == nil && strings.Contains(query, "/") {
		city := geonames.City{Name: strings.ReplaceAll(path.Base(query), "_", " "), Timezone: query}
		entry = clock.Entry{
			Code:     geonames.SuggestCode(city, now),
			TZ:       query,
			Label:    query,
			Location: city.Name,
		}
	} else {
		db := geonames.NewDatabase("")
		if err := db.Load(cmd.Context()); err != nil {
			return config.Zone{}, err
		}
		results := db.Search(query, 1)
		if len(results) == 0 {
			return config.Zone{}, fmt.Errorf("no city matches %q", query)
		}
		entry = results[0].Entry(geonames.SuggestCode(results[0], now))
	}

	zone := config.Zone{
		Code:     cfg.UniqueCode(entry.Code),
		Timezone: entry.TZ,
		Label:    entry.Label,
		Location: entry.Location,
	}
	if zoneCode != "" {
		zone.Code = zoneCode
	}
	if zoneLabel != "" {
		zone.Label = zoneLabel
	}
	if zoneLocation != "" {
		zone.Location = zoneLocation
	}
	return zone, nil
}
