package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/fingest/internal/llm"
)

var askFlags queryFlags

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question from two reports with a local language model",
	Long: `Select context as "fingest context" does, then ask an Ollama model.

Answers that hedge, are too short or carry no figures are replaced with a
standard refusal. If the model cannot be reached the command prints a
notice and exits non-zero.

Examples:
  fingest ask --a 2023.txt --b 2024.txt --question "兩年營業收入差多少"
  fingest ask --a 2024.pdf --question "每股盈餘" --model qwen2.5:7b`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, sel, err := selectContext(cmd, askFlags)
		if err != nil {
			return err
		}
		a.Log.Info("context selected", "summary", sel.Describe())

		ans, err := a.Answerer.Answer(cmd.Context(), askFlags.question, sel.Context)
		if err != nil && !errors.Is(err, llm.ErrUnavailable) {
			return err
		}
		if askFlags.json {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(map[string]any{"answer": ans, "context": sel}); encErr != nil {
				return encErr
			}
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), ans.Text)
		}
		return err
	},
}

func init() {
	addQueryFlags(askCmd, &askFlags)
	askCmd.Flags().String("model", "llama3:latest", "Ollama model")
	askCmd.Flags().String("ollama-host", "http://localhost:11434", "Ollama server URL")
	rootCmd.AddCommand(askCmd)
}
