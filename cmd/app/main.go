package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lmsledger/internal/logger"
)

var Version = "dev"

// @title LMS Ledger API
// @version 1.0
// @description Wallets, cashboxes and payments for education centers.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger.Init()

	rootCmd := &cobra.Command{
		Use:           "lmsledger",
		Short:         "Education center ledger and payment engine",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
