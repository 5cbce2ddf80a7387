package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const serviceName = "P4 Solution"

var rootCmd = &cobra.Command{
	Use:           "portfolio-api",
	Short:         "Portfolio site backend",
	Long:          "Serves the projects API, admin login and the contact form.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
