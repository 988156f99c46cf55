package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/fingest/internal/retrieval"
)

var searchFlags queryFlags

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "List the top-k report chunks most similar to a question",
	Long: `Index one or two reports and print the chunks whose tf-idf similarity
to the question is at least --threshold, best first, at most --top-k.

Unlike context, no keyword fallback is tried and nothing is packed.

Examples:
  fingest search --a 2023.txt --b 2024.txt --question "營業收入" --top-k 3
  fingest search --a 2024.pdf --question "每股盈餘" --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, sess, question, err := loadSession(cmd, searchFlags)
		if err != nil {
			return err
		}
		results := sess.Selector.Search(question)
		if results == nil {
			results = []retrieval.Result{}
		}
		if searchFlags.json {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}
		a.Log.Info("search done", "results", len(results))
		out := cmd.OutOrStdout()
		for i, r := range results {
			if _, err := fmt.Fprintf(out, "%d. %s chunk %d (score %.3f)\n%s\n\n", i+1, retrieval.Label(r.DocumentID), r.ChunkID, r.Score, r.Text); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	addQueryFlags(searchCmd, &searchFlags)
	rootCmd.AddCommand(searchCmd)
}
