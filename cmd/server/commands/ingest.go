package commands

import (
	"fmt"

	"github.com/asisten-gizi/server/internal/app"
	"github.com/spf13/cobra"
)

func NewIngestCmd() *cobra.Command {
	var opts app.IngestOptions

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Build the retrieval index from the corpus",
		Long: `Read every .txt, .md and .pdf file in CORPUS_DIR, embed the chunks
and write the index to INDEX_PATH.

An existing index is kept unless --force is given. With --pgvector the
index is also mirrored into PGVECTOR_URL.`,
		Example: `  # first run, or after adding documents
  asisten-gizi ingest --force

  # share the index with other replicas
  asisten-gizi ingest --pgvector`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			idx, err := app.Ingest(cmd.Context(), cfg, log, opts)
			if err != nil {
				return err
			}
			if idx == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Corpus is empty, no index written.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks into %s (%s)\n", idx.Len(), cfg.IndexPath, idx.EmbeddingModel())
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "rebuild even if an index exists")
	cmd.Flags().BoolVar(&opts.PGVector, "pgvector", false, "mirror the index into PGVECTOR_URL")
	return cmd
}
