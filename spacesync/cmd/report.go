package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spacegame/netsync/datarecording"
)

var reportCmd = &cobra.Command{
	Use:   "report [recording.sqlite3]",
	Short: "Summarize a traffic recording.",
	Long: "`report` reads a recording made with --record and prints the " +
		"number of messages sent, dropped, received and discarded per " +
		"message type.",
	Args: cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		path := args[0]
		if _, err := os.Stat(path); err != nil {
			log.Fatalf("Error opening recording: %v", err)
		}

		reader, err := datarecording.NewReader(path)
		if err != nil {
			log.Fatalf("Error opening recording: %v", err)
		}
		defer reader.Close()

		summary, err := datarecording.SummarizeTraffic(
			context.Background(), reader)
		if err != nil {
			log.Fatalf("Error reading recording: %v", err)
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSENT\tDROPPED\tRECEIVED\tDISCARDED\tBYTES")

		for _, s := range summary {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n",
				s.Name, s.Sent, s.Dropped, s.Received, s.Discarded, s.Bytes)
		}

		_ = tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
