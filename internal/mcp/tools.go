// Package mcp exposes the nutrition assistant as Model Context Protocol tools.
package mcp

import (
	"github.com/asisten-gizi/server/internal/api"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func numberProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": description}
}

// RegisterTools adds ask_nutrition and generate_diet_program to server.
// ask_nutrition is left out when answers is nil.
func RegisterTools(server *mcpserver.MCPServer, answers api.Answerer, programs api.ProgramGenerator, logger *zap.Logger) *Handlers {
	handlers := &Handlers{answers: answers, programs: programs, logger: logger.Named("mcp")}

	if answers != nil {
		server.AddTool(mcp.Tool{
			Name:        "ask_nutrition",
			Description: "Answer a nutrition question in Indonesian, grounded in the WHO/FAO document corpus when relevant passages exist.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"question": stringProp("Nutrition question, e.g. 'Apa manfaat susu untuk anak?'"),
				},
				Required: []string{"question"},
			},
		}, handlers.AskNutrition)
	}

	server.AddTool(mcp.Tool{
		Name:        "generate_diet_program",
		Description: "Generate a week-by-week Indonesian diet and exercise program as Markdown. Long durations take several minutes.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"goal":              stringProp("Program goal, e.g. 'turun berat badan'"),
				"duration":          stringProp("Program length such as '2 minggu' or '1 bulan'"),
				"age":               numberProp("Age in years"),
				"weight":            numberProp("Body weight in kg"),
				"height":            numberProp("Body height in cm"),
				"eatingPattern":     stringProp("Usual eating pattern"),
				"allergies":         stringProp("Food allergies"),
				"dislikes":          stringProp("Disliked foods"),
				"exerciseFrequency": stringProp("How often the user exercises"),
				"sleepQuality":      stringProp("Sleep quality"),
			},
			Required: []string{"duration", "weight", "height"},
		},
	}, handlers.GenerateDietProgram)

	return handlers
}
