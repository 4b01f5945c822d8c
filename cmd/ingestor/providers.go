package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JoaoPedroMBiofy/ingestor/internal/app"
	"github.com/JoaoPedroMBiofy/ingestor/internal/embedding"
)

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List available embedding providers",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available embedding providers:")
			fmt.Println()
			for _, name := range app.NewEmbeddingFactory().Names() {
				fmt.Printf("  %-8s %s\n", name, embedding.KnownProviders[name])
			}
			fmt.Println()
			fmt.Println("Set embedding.provider in the config or INGESTOR_EMBEDDING_PROVIDER.")
		},
	}
}
