package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/asisten-gizi/server/internal/api"
	"github.com/asisten-gizi/server/internal/core"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

type Handlers struct {
	answers  api.Answerer
	programs api.ProgramGenerator
	logger   *zap.Logger
}

func (h *Handlers) AskNutrition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question argument is required and must be a string"), nil
	}

	answer, err := h.answers.Answer(ctx, question)
	if err != nil {
		return h.toolError("ask_nutrition", err), nil
	}

	var b strings.Builder
	b.WriteString(answer.Text)
	if len(answer.Documents) > 0 {
		b.WriteString("\n\nSumber:")
		seen := map[string]bool{}
		for _, d := range answer.Documents {
			if seen[d.Source] {
				continue
			}
			seen[d.Source] = true
			b.WriteString("\n- ")
			b.WriteString(d.Source)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (h *Handlers) GenerateDietProgram(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	profile := core.UserProfile{
		Goal:              request.GetString("goal", ""),
		Duration:          request.GetString("duration", ""),
		Age:               request.GetInt("age", 0),
		Weight:            core.MeasurementOf(args["weight"]),
		Height:            core.MeasurementOf(args["height"]),
		EatingPattern:     request.GetString("eatingPattern", ""),
		Allergies:         request.GetString("allergies", ""),
		Dislikes:          request.GetString("dislikes", ""),
		ExerciseFrequency: request.GetString("exerciseFrequency", ""),
		SleepQuality:      request.GetString("sleepQuality", ""),
	}

	if !profile.Weight.Valid() || !profile.Height.Valid() {
		h.logger.Debug("non-numeric body measurement", zap.Any("weight", args["weight"]), zap.Any("height", args["height"]))
	}

	program, err := h.programs.Generate(ctx, profile)
	if err != nil {
		return h.toolError("generate_diet_program", err), nil
	}
	return mcp.NewToolResultText(program.Markdown()), nil
}

// toolError turns err into a tool result. Only unexpected failures are logged.
func (h *Handlers) toolError(tool string, err error) *mcp.CallToolResult {
	if errors.Is(err, core.ErrValidation) {
		return mcp.NewToolResultError(err.Error())
	}
	h.logger.Error("tool failed", zap.String("tool", tool), zap.Error(err))
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", tool, err))
}
