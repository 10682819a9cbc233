package commands

import (
	"os"
	"strings"

	"mlol-client/lib/scrapers/mlol"
	"mlol-client/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	searchDeep  *bool
	searchPages *int
)

func init() {
	searchDeep = searchCmd.Flags().Bool("deep", false, "Fetch the detail page of every result.")
	searchPages = searchCmd.Flags().Int("pages", 1, "Number of result pages to print, 0 for all.")
	rootCmd.AddCommand(searchCmd)
}

func renderBookTable(books []mlol.Book) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Title", "Authors", "Status"})
	for _, book := range books {
		t.AppendRow(table.Row{
			book.ID,
			book.Title,
			strings.Join(book.Authors, "; "),
			string(book.Status),
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func drainResults(cmd *cobra.Command, results *mlol.SearchResults, pages int) {
	var books []mlol.Book
	for {
		page, err := results.Next(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to fetch results page", err)
		}
		if page == nil {
			break
		}
		books = append(books, page...)
		pages--
		if pages == 0 {
			break
		}
	}
	renderBookTable(books)
}

var searchCmd = &cobra.Command{
	Use:   "search <query> [--deep] [--pages <n>]",
	Short: "Searches the portal's ebook catalog.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient(cmd.Context())

		results, err := client.SearchBooks(cmd.Context(), args[0], mlol.SearchOptions{
			Deep: *searchDeep,
		})
		if err != nil {
			serviceutil.Fatal("failed to search books", err)
		}
		drainResults(cmd, results, *searchPages)
	},
}
