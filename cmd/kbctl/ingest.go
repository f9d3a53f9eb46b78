package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marzetti/salon-assistant/internal/factory"
	"github.com/marzetti/salon-assistant/internal/ingest"
)

func init() {
	var root string
	var concurrency int
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk, embed and index the knowledge base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()
			if root == "" {
				root = e.cfg.KBRoot
			}

			providers, err := factory.NewProviders(ctx, e.cfg, e.log)
			if err != nil {
				return err
			}
			idx, err := factory.NewKnowledgeIndex(ctx, e.cfg, e.backend, providers.Embedder, e.log)
			if err != nil {
				return err
			}
			ing := ingest.New(providers.Embedder, idx, e.backend.Store.Meta(), e.log,
				ingest.WithConcurrency(concurrency), ingest.WithEmbedTimeout(e.cfg.EmbedTimeout()))
			n, err := ing.Run(ctx, root)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ingested %d chunks from %s\n", n, root)
			return nil
		},
	}
	ingestCmd.Flags().StringVarP(&root, "root", "r", "", "Knowledge base directory (defaults to KB_ROOT)")
	ingestCmd.Flags().IntVarP(&concurrency, "concurrency", "c", ingest.DefaultConcurrency, "Chunks embedded in parallel")
	rootCmd.AddCommand(ingestCmd)
}
