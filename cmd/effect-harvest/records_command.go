package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"effectharvest/internal/adapters/sqliteindex"
)

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	var keyword string
	var limit int

	cmd := &cobra.Command{
		Use:   "records",
		Short: "List saved result and descriptor documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			index, err := sqliteindex.Open(cmd.Context(), cfg.IndexPath())
			if err != nil {
				return err
			}
			defer index.Close()

			docs, err := index.ListDocuments(cmd.Context(), keyword, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(docs) == 0 {
				fmt.Fprintln(out, "No documents recorded")
				return nil
			}

			rows := make([][]string, 0, len(docs))
			for _, doc := range docs {
				rows = append(rows, []string{
					strconv.FormatInt(doc.ID, 10),
					doc.Keyword,
					string(doc.Kind),
					strconv.Itoa(doc.ItemCount),
					yesNo(doc.Partial),
					humanize.Time(doc.CreatedAt),
					doc.Path,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Keyword", "Kind", "Items", "Partial", "Saved", "Path"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&keyword, "keyword", "k", "", "Only list documents for this keyword")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of documents to list")
	return cmd
}
