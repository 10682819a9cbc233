package main

import (
	"mlol-client/cmd/mlol/commands"
	"mlol-client/lib/serviceutil"
	"mlol-client/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()
	telemetry.SetupFromEnv(ctx, "mlol-cli")
	commands.ExecuteContext(ctx)
}
