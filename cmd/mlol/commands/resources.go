package commands

import (
	"fmt"
	"os"
	"time"

	"mlol-client/lib/scrapers/mlol"
	"mlol-client/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var resourcesDeep *bool

func init() {
	resourcesDeep = resourcesCmd.Flags().Bool("deep", false, "Fetch the detail page of every listed book.")
	rootCmd.AddCommand(resourcesCmd)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func renderLoanTable(title string, loans []mlol.Loan) {
	fmt.Println(title)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Loan ID", "Book ID", "Title", "Start", "End"})
	for _, loan := range loans {
		t.AppendRow(table.Row{
			loan.ID,
			loan.Book.ID,
			loan.Book.Title,
			formatDate(loan.StartDate),
			formatDate(loan.EndDate),
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

var resourcesCmd = &cobra.Command{
	Use:   "resources [--deep]",
	Short: "Lists your reservations, active loans and loan history.",
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient(cmd.Context())

		resources, err := client.GetResources(cmd.Context(), mlol.ResourceOptions{
			Deep: *resourcesDeep,
		})
		if err != nil {
			serviceutil.Fatal("failed to fetch resources", err)
		}

		fmt.Println("Reservations")
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Book ID", "Title", "Date", "Status", "Queue"})
		for _, r := range resources.Reservations {
			queue := ""
			if r.QueuePosition != nil {
				queue = fmt.Sprintf("%d", *r.QueuePosition)
			}
			t.AppendRow(table.Row{
				r.ID,
				r.Book.ID,
				r.Book.Title,
				formatDate(r.Date),
				string(r.Status),
				queue,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()

		renderLoanTable("Active loans", resources.ActiveLoans)
		renderLoanTable("Loan history", resources.LoanHistory)
	},
}
