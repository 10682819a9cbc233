package commands

import (
	"fmt"

	"mlol-client/lib/serviceutil"

	"github.com/spf13/cobra"
)

var reserveEmail *string

func init() {
	reserveEmail = reserveCmd.Flags().String("email", "", "Email to notify when the book becomes available.")
	reserveCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(reserveCmd)
	rootCmd.AddCommand(cancelCmd)
}

var reserveCmd = &cobra.Command{
	Use:   "reserve <id> --email <address>",
	Short: "Reserves a book that is currently taken.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient(cmd.Context())

		ok, err := client.ReserveBookByID(cmd.Context(), args[0], *reserveEmail)
		if err != nil {
			serviceutil.Fatal("failed to reserve book", err)
		}
		if !ok {
			fmt.Println("the portal rejected the reservation")
			return
		}
		fmt.Println("reservation placed")
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <reservation-id>",
	Short: "Cancels a reservation by its id.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient(cmd.Context())

		ok, err := client.CancelReservationByID(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to cancel reservation", err)
		}
		if !ok {
			fmt.Println("the portal rejected the cancellation")
			return
		}
		fmt.Println("reservation canceled")
	},
}
