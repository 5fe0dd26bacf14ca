package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ordercopilot/lattice/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "lattice",
	Short: "Lattice is an order support copilot with human-in-the-loop refunds",
	Long: `Lattice answers order questions (status, price, tracking, policies) and
runs refund requests through a human approval gate, driven by a declarative
workflow graph with durable per-conversation checkpoints.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the configuration file (YAML or JSON)")
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}
