package commands

import (
	"context"
	"fmt"
	"os"

	"mlol-client/lib/configutil"
	"mlol-client/lib/restyutil"
	"mlol-client/lib/scrapers/mlol"
	"mlol-client/lib/serviceutil"
	"mlol-client/lib/telemetry"

	"github.com/spf13/cobra"
)

// Config holds the account the CLI acts as. Every field is optional;
// without credentials only anonymous operations work.
type Config struct {
	Domain    string `json:"domain"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	LibraryID string `json:"library_id"`
}

var verbose *bool

var rootCmd = &cobra.Command{
	Use:   "mlol",
	Short: "mlol is a CLI for browsing and borrowing ebooks on a MLOL portal.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
		if *verbose {
			telemetry.InstrumentPerfStats(cmd.Context())
			mlol.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/mlol"))
		}
	},
}

func init() {
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enables debug logging and request dumps.")
}

func createClient(ctx context.Context) *mlol.Client {
	cfg, err := configutil.ReadRecursively[Config]("mlol.json5")
	if err != nil && !os.IsNotExist(err) {
		serviceutil.Fatal("failed to read config", err)
	}

	client, err := mlol.NewClient(ctx, mlol.ClientOptions{
		Domain:    cfg.Domain,
		Username:  cfg.Username,
		Password:  cfg.Password,
		LibraryID: cfg.LibraryID,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize mlol client", err)
	}
	return client
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
