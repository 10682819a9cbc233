package commands

import (
	"fmt"
	"os"

	"mlol-client/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(portalsCmd)
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Prints your account profile.",
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient(cmd.Context())

		user, err := client.GetUser(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to fetch user profile", err)
		}

		fmt.Printf("Name:                   %s %s\n", user.Name, user.Surname)
		fmt.Printf("Username:               %s\n", user.Username)
		fmt.Printf("Remaining loans:        %d\n", user.RemainingLoans)
		fmt.Printf("Remaining reservations: %d\n", user.RemainingReservations)
		fmt.Printf("Account expires:        %s\n", formatDate(user.ExpirationDate))
	},
}

var portalsCmd = &cobra.Command{
	Use:   "portals",
	Short: "Lists every participating library portal.",
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient(cmd.Context())

		portals, err := client.Portals(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to fetch portals", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Name", "URL"})
		for _, portal := range portals {
			t.AppendRow(table.Row{portal.ID, portal.Name, portal.URL})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
