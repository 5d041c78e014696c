package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spacegame/netsync/game"
)

var protocolCmd = &cobra.Command{
	Use:   "protocol",
	Short: "Print the game protocol.",
	Long: "`protocol` prints the fingerprint that servers and clients " +
		"compare during the handshake, followed by every message type.",
	Run: func(_ *cobra.Command, _ []string) {
		registry := game.NewRegistry()

		fmt.Printf("fingerprint %s\n\n", registry.Fingerprint())

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tNAME\tDIRECTION\tCHANNEL\tSENDER\tFIELDS")

		for _, info := range registry.Infos() {
			fields := ""
			for i, f := range info.Fields {
				if i > 0 {
					fields += ","
				}

				fields += f.Name + ":" + f.Policy.String()
			}

			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%t\t%s\n",
				info.Kind, info.Name, info.Direction, info.Channel,
				info.HasSender, fields)
		}

		_ = tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(protocolCmd)
}
