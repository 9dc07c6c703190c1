package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/asisten-gizi/server/internal/api"
	"github.com/asisten-gizi/server/internal/app"
	"github.com/asisten-gizi/server/internal/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

// NewMCPCmd serves the nutrition tools over MCP stdio.
func NewMCPCmd() *cobra.Command {
	var programsOnly bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Exposes ask_nutrition and generate_diet_program as MCP tools over stdio.
Logs go to stderr so stdout carries only protocol messages. With
--programs-only the corpus is never loaded and only generate_diet_program
is exposed.`,
		Example: `  # claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "gizi": {"command": "asisten-gizi", "args": ["mcp"]}
  #   }
  # }`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(programsOnly)
		},
	}
	cmd.Flags().BoolVar(&programsOnly, "programs-only", false, "serve generate_diet_program without loading the corpus")
	return cmd
}

func runMCP(programsOnly bool) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootstrap := app.Bootstrap
	if programsOnly {
		bootstrap = app.BootstrapPrograms
	}
	rt, err := bootstrap(ctx, cfg, log, app.Options{})
	if err != nil {
		return err
	}
	defer rt.Close()

	var answers api.Answerer
	if rt.Answers != nil {
		answers = rt.Answers
	}
	server := mcpserver.NewMCPServer("Asisten Gizi", versionInfo.Version)
	mcp.RegisterTools(server, answers, rt.Programs, log)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	log.Info("mcp server starting on stdio")
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	return nil
}
