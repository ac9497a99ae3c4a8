package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/obradoria/budget-agent/pkg/llm"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured LLM providers and check their reachability",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := llm.NewRegistry(cfg.LLM)

		for _, name := range registry.Available() {
			client, err := registry.Get(name)
			if err != nil {
				continue
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			status := "ok"
			if err := client.Ping(ctx); err != nil {
				status = "unreachable: " + err.Error()
			}
			cancel()

			marker := " "
			if name == registry.Default() {
				marker = "*"
			}
			fmt.Printf("%s %-10s %s\n", marker, name, status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
