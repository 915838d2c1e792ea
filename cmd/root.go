/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "shopfront",
	Short: "Shopfront storefront backend",
	Long: `Shopfront serves the storefront API: accounts, sessions, the product
catalog and checkout.`,
	SilenceUsage: true,
}

// Execute runs the root command with ctx, which is cancelled on shutdown
// signals.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
