package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/JoaoPedroMBiofy/ingestor/internal/chunk"
	"github.com/JoaoPedroMBiofy/ingestor/internal/ingest"
)

type ingestFlags struct {
	collection string
	strategy   string
	mode       string
	jsonOutput bool
	noProgress bool
}

func (f *ingestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.collection, "collection", "", "Collection name (default: file name without extension)")
	cmd.Flags().StringVar(&f.strategy, "strategy", "", "Splitter: recursive_character or semantic_chunker")
	cmd.Flags().StringVar(&f.mode, "mode", "", "Mode: whole_document, per_page or chunked")
}

func newIngestCmd(flags *rootFlags) *cobra.Command {
	var f ingestFlags

	cmd := &cobra.Command{
		Use:   "ingest <pdf>",
		Short: "Ingest one PDF in this process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.build(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			progress := newPageProgress(!f.noProgress && !f.jsonOutput && term.IsTerminal(int(os.Stderr.Fd())))
			res, err := a.Pipeline.Ingest(cmd.Context(), ingest.Request{
				PDFPath:    args[0],
				Collection: f.collection,
				Strategy:   chunk.Strategy(f.strategy),
				Mode:       ingest.Mode(f.mode),
				Observer:   progress.observe,
			})
			progress.finish()
			if err != nil {
				return err
			}

			if f.jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Printf("Collection:  %s\n", res.CollectionName)
			fmt.Printf("Pages:       %d\n", res.Pages)
			fmt.Printf("Documents:   %d\n", res.DocumentCount)
			fmt.Printf("Splitter:    %s (%s)\n", res.SplitterType, res.Mode)
			if res.MarkdownFile != "" {
				fmt.Printf("Markdown:    %s\n", res.MarkdownFile)
			}
			if res.BucketURL != "" {
				fmt.Printf("Uploaded:    %s\n", res.BucketURL)
			}
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&f.noProgress, "no-progress", false, "Disable the progress bar")
	return cmd
}

// pageProgress draws a bar over page conversion and names the later stages.
type pageProgress struct {
	enabled bool
	bar     *progressbar.ProgressBar
}

func newPageProgress(enabled bool) *pageProgress {
	return &pageProgress{enabled: enabled}
}

func (p *pageProgress) observe(e ingest.Event) {
	if !p.enabled {
		return
	}
	switch {
	case e.State == ingest.Converting && e.Pages > 0:
		if p.bar == nil {
			p.bar = progressbar.NewOptions(e.Pages,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription("converting"),
				progressbar.OptionSetWidth(32),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "=",
					SaucerHead:    ">",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
			)
		}
		_ = p.bar.Set(e.Page)
	case e.State == ingest.Splitting || e.State == ingest.Embedding:
		if p.bar != nil {
			p.bar.Describe(string(e.State))
		}
	}
}

func (p *pageProgress) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
