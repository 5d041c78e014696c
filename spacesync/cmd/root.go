// Package cmd provides the command-line interface of spacesync.
package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/spacegame/netsync/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "spacesync",
	Short: "spacesync runs the servers and clients of the space building game.",
	Long: `spacesync runs the servers and clients of the space building game ` +
		`and inspects the traffic between them. Settings are read from a ` +
		`dotenv file and SPACESYNC_* environment variables, and flags ` +
		`override both.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	addSettingsFlags(rootCmd)
}

// addSettingsFlags registers the flags that override settings.
func addSettingsFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("env", "",
		"dotenv file to read settings from (default .env if present)")
	cmd.PersistentFlags().Float64("tick-rate", 0,
		"ticks per second")
	cmd.PersistentFlags().Int("queue-capacity", 0,
		"capacity of every message queue, 0 for unbounded")
	cmd.PersistentFlags().String("record", "",
		"record the traffic into a SQLite file")
	cmd.PersistentFlags().Int("monitor-port", 0,
		"serve the HTTP monitor on this port")
	cmd.PersistentFlags().Bool("open-monitor", false,
		"open the HTTP monitor in a browser")
	cmd.PersistentFlags().Bool("log-traffic", false,
		"log every message to stderr")
}

// loadConfig reads the settings and applies the flags the user set.
func loadConfig(cmd *cobra.Command) config.Config {
	path := flagString(cmd, "env")

	c, err := config.Load(path)
	if err != nil {
		log.Fatalf("Error loading settings: %v", err)
	}

	flags := cmd.Flags()

	if flags.Changed("tick-rate") {
		c.TickRate = flagFloat64(cmd, "tick-rate")
		if c.TickRate <= 0 {
			log.Fatalf("Error: tick rate must be positive")
		}
	}

	if flags.Changed("queue-capacity") {
		c.QueueCapacity = flagInt(cmd, "queue-capacity")
	}

	if flags.Changed("record") {
		c.RecordPath = flagString(cmd, "record")
	}

	if flags.Changed("monitor-port") {
		c.MonitorPort = flagInt(cmd, "monitor-port")
	}

	if flags.Changed("open-monitor") {
		c.OpenMonitor = flagBool(cmd, "open-monitor")
	}

	if flags.Changed("log-traffic") {
		c.LogTraffic = flagBool(cmd, "log-traffic")
	}

	if flags.Lookup("listen") != nil && flags.Changed("listen") {
		c.ListenAddr = flagString(cmd, "listen")
	}

	if flags.Lookup("server") != nil && flags.Changed("server") {
		c.ServerURL = flagString(cmd, "server")
	}

	if flags.Lookup("name") != nil && flags.Changed("name") {
		c.PlayerName = flagString(cmd, "name")
	}

	return c
}

func flagString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	dieOnFlagErr(name, err)

	return v
}

func flagInt(cmd *cobra.Command, name string) int {
	v, err := cmd.Flags().GetInt(name)
	dieOnFlagErr(name, err)

	return v
}

func flagFloat64(cmd *cobra.Command, name string) float64 {
	v, err := cmd.Flags().GetFloat64(name)
	dieOnFlagErr(name, err)

	return v
}

func flagBool(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	dieOnFlagErr(name, err)

	return v
}

func dieOnFlagErr(name string, err error) {
	if err != nil {
		log.Fatalf("Error reading flag --%s: %v", name, err)
	}
}
