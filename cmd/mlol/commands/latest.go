package commands

import (
	"mlol-client/lib/scrapers/mlol"
	"mlol-client/lib/serviceutil"

	"github.com/spf13/cobra"
)

var latestDeep *bool

func init() {
	latestDeep = latestCmd.Flags().Bool("deep", false, "Fetch the detail page of every result.")
	rootCmd.AddCommand(latestCmd)
}

var latestCmd = &cobra.Command{
	Use:   "latest [--deep]",
	Short: "Lists the ebooks added to the catalog in the last two weeks.",
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient(cmd.Context())

		results, err := client.LatestBooks(cmd.Context(), mlol.SearchOptions{
			Deep: *latestDeep,
		})
		if err != nil {
			serviceutil.Fatal("failed to fetch latest books", err)
		}
		drainResults(cmd, results, 1)
	},
}
