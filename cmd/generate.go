package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/obradoria/budget-agent/internal/budget"
	"github.com/obradoria/budget-agent/internal/model"
)

var (
	genProvider string
	genProject  string
	genProgress bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [request text]",
	Short: "Generate a budget from a free-text request",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		text := strings.Join(args, " ")

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		run, err := e.Store.CreateRun(ctx, text, genProvider)
		if err != nil {
			return eris.Wrap(err, "create run")
		}
		if err := e.Store.MarkRunning(ctx, run.ID); err != nil {
			return eris.Wrap(err, "mark run running")
		}

		in := budget.Input{Text: text, Provider: genProvider, ProjectName: genProject}

		var b *model.Budget
		if genProgress {
			for ev := range e.Orchestrator.Stream(ctx, in) {
				fmt.Fprintf(os.Stderr, "[%3.0f%%] %s: %s\n", ev.Progress*100, ev.Stage, ev.Message)
				switch ev.Stage {
				case model.StageCompleted:
					b = ev.Data.(*model.Budget)
				case model.StageFailed:
					err = eris.New(ev.Message)
				}
			}
		} else {
			b, err = e.Orchestrator.Generate(ctx, in)
		}

		if err != nil {
			if ferr := e.Store.FailRun(ctx, run.ID, err.Error()); ferr != nil {
				zap.L().Warn("failed to record run failure", zap.Error(ferr))
			}
			return err
		}

		if serr := e.Store.CompleteRun(ctx, run.ID, b); serr != nil {
			zap.L().Warn("failed to record run result", zap.Error(serr))
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	},
}

func init() {
	generateCmd.Flags().StringVar(&genProvider, "provider", "", "LLM provider (ollama, openai, anthropic; default from config)")
	generateCmd.Flags().StringVar(&genProject, "project", "", "persist the budget under a project with this name")
	generateCmd.Flags().BoolVar(&genProgress, "progress", false, "print stage progress to stderr")
	rootCmd.AddCommand(generateCmd)
}
