package commands

import (
	"fmt"
	"strings"

	"mlol-client/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(bookCmd)
}

var bookCmd = &cobra.Command{
	Use:   "book <id>",
	Short: "Prints the detail-page fields of a book.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient(cmd.Context())

		book, err := client.GetBookByID(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to fetch book", err)
		}
		if book == nil {
			fmt.Println("book not found")
			return
		}

		fmt.Printf("Title:       %s\n", book.Title)
		fmt.Printf("Authors:     %s\n", strings.Join(book.Authors, "; "))
		fmt.Printf("Status:      %s\n", book.Status)
		fmt.Printf("Publisher:   %s\n", book.Publisher)
		fmt.Printf("ISBNs:       %s\n", strings.Join(book.ISBNs, ", "))
		fmt.Printf("Language:    %s\n", book.Language)
		if book.Year != 0 {
			fmt.Printf("Year:        %d\n", book.Year)
		}
		fmt.Printf("Formats:     %s\n", strings.Join(book.Formats, ", "))
		if book.DRM != nil {
			fmt.Printf("DRM:         %t\n", *book.DRM)
		}
		for _, path := range book.Categories {
			fmt.Printf("Category:    %s\n", strings.Join(path, " / "))
		}
		if book.Description != "" {
			fmt.Printf("\n%s\n", book.Description)
		}
		fmt.Printf("\n%s\n", client.BookURL(book.ID))
	},
}
