// Command feed-service serves the LidaCacau job and offer feeds.
//
// Ranks open jobs for workers and worker offers for producers by preference,
// freshness, price and distance, and keeps each device's swiped-away jobs out
// of its feed until the user pulls to refresh.
//
// Commands:
//   - serve: HTTP API for the Gateway plus a gRPC health endpoint
//   - rank: rank candidates from JSON files, no backends required
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:     "feed-service",
	Short:   "LidaCacau feed ranking service",
	Long:    "Ranks open jobs and worker offers for the LidaCacau app and tracks swipe dismissals per device.",
	Version: version,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
