package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/asisten-gizi/server/internal/app"
	"github.com/asisten-gizi/server/internal/core"
	"github.com/spf13/cobra"
)

func NewAskCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a nutrition question",
		Args:  cobra.MinimumNArgs(1),
		Example: `  asisten-gizi ask "Apa manfaat minum susu?"
  asisten-gizi ask --json berapa kalori nasi merah`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			rt, err := app.Bootstrap(cmd.Context(), cfg, log, app.Options{})
			if err != nil {
				return err
			}
			defer rt.Close()

			answer, err := rt.Answers.Answer(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printAnswer(cmd, answer, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the answer and documents as JSON")
	return cmd
}

func printAnswer(cmd *cobra.Command, answer *core.Answer, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}

	fmt.Fprintln(out, answer.Text)
	if sources := uniqueSources(answer); len(sources) > 0 {
		fmt.Fprintf(out, "\nSumber: %s\n", strings.Join(sources, ", "))
	}
	return nil
}

func uniqueSources(answer *core.Answer) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, d := range answer.Documents {
		if d.Source == "" || seen[d.Source] {
			continue
		}
		seen[d.Source] = true
		sources = append(sources, d.Source)
	}
	return sources
}
