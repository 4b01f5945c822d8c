package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd(flags *rootFlags) *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search <collection> <query>",
		Short: "Query a collection for the closest chunks",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.build(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			hits, err := a.Search(cmd.Context(), args[0], strings.Join(args[1:], " "), topK)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Println("No results.")
				return nil
			}
			for i, h := range hits {
				fmt.Printf("%d. [%.4f] %s page=%s\n", i+1, h.Score, h.Metadata["source_file"], h.Metadata["page"])
				fmt.Printf("   %s\n\n", preview(h.Content, 200))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 5, "Number of results")
	return cmd
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
