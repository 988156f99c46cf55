package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/fingest/internal/app"
	"github.com/dgallion1/fingest/internal/doctree"
	"github.com/dgallion1/fingest/internal/retrieval"
)

type queryFlags struct {
	a, b     string
	question string
	json     bool
}

var contextFlags queryFlags

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Select the report passages most relevant to a question",
	Long: `Index two reports and print the packed context for a question.

Each input is a PDF (extracted on the fly) or a saved text/markdown report.
The first is labeled 報告A and the second 報告B in the packed context.

Examples:
  fingest context --a 2023.txt --b 2024.txt --question "營業收入成長多少"
  fingest context --a 2023.pdf --b 2024.pdf --question "淨利" --budget 4000 --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, sel, err := selectContext(cmd, contextFlags)
		if err != nil {
			return err
		}
		if contextFlags.json {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sel)
		}
		a.Log.Info("context selected", "summary", sel.Describe())
		_, err = fmt.Fprintln(cmd.OutOrStdout(), sel.Context)
		return err
	},
}

func addQueryFlags(cmd *cobra.Command, q *queryFlags) {
	f := cmd.Flags()
	f.StringVar(&q.a, "a", "", "first report (PDF, .txt or .md), labeled A")
	f.StringVar(&q.b, "b", "", "second report (PDF, .txt or .md), labeled B")
	f.StringVar(&q.question, "question", "", "question to select context for")
	f.BoolVar(&q.json, "json", false, "print JSON instead of text")
	f.Int("budget", 15000, "context budget in characters")
	f.Int("top-k", 5, "results returned by search")
	f.Float64("threshold", 0.1, "minimum similarity score")
	f.Int("chunk-size", 500, "chunk size in characters")
	f.Bool("ocr", true, "use image recognition for PDF inputs when available")
	cmd.MarkFlagRequired("a")
	cmd.MarkFlagRequired("question")
}

func init() {
	addQueryFlags(contextCmd, &contextFlags)
	rootCmd.AddCommand(contextCmd)
}

// selectContext loads the inputs named by q and selects context for its
// question. --b may be omitted to query a single report.
func selectContext(cmd *cobra.Command, q queryFlags) (*app.App, retrieval.Selection, error) {
	a, sess, question, err := loadSession(cmd, q)
	if err != nil {
		return nil, retrieval.Selection{}, err
	}
	return a, sess.Selector.Select(question), nil
}

func loadSession(cmd *cobra.Command, q queryFlags) (*app.App, *retrieval.Session, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, "", err
	}
	question := strings.TrimSpace(q.question)
	if question == "" {
		return nil, nil, "", fmt.Errorf("--question is empty")
	}

	a, err := app.New(cfg, cliLogger(cfg))
	if err != nil {
		return nil, nil, "", err
	}

	var trees []*doctree.DocTree
	for _, in := range []struct{ id, path string }{{"A", q.a}, {"B", q.b}} {
		if in.path == "" {
			continue
		}
		tree, err := a.LoadTree(cmd.Context(), in.id, in.path)
		if err != nil {
			return nil, nil, "", err
		}
		trees = append(trees, tree)
	}
	return a, a.NewSession(trees), question, nil
}
