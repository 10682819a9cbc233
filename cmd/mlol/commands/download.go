package commands

import (
	"fmt"
	"os"

	"mlol-client/lib/serviceutil"

	"github.com/spf13/cobra"
)

var downloadOutput *string

func init() {
	downloadOutput = downloadCmd.Flags().StringP("output", "o", "", "Output path for the .acsm file.")
	rootCmd.AddCommand(downloadCmd)
}

var downloadCmd = &cobra.Command{
	Use:   "download <id> [-o <path/to/book.acsm>]",
	Short: "Downloads the ACSM fulfillment file for a book.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient(cmd.Context())

		contents, err := client.DownloadBookByID(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to download book", err)
		}

		out := *downloadOutput
		if out == "" {
			out = fmt.Sprintf("%s.acsm", args[0])
		}
		err = os.WriteFile(out, contents, 0644)
		if err != nil {
			serviceutil.Fatal("failed to write acsm file", err)
		}
		fmt.Printf("written to %s\n", out)
	},
}
