package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/asisten-gizi/server/internal/core"
	"github.com/asisten-gizi/server/internal/rag"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubAnswerer struct {
	answer *core.Answer
	err    error
	got    string
}

func (s *stubAnswerer) Answer(_ context.Context, q string) (*core.Answer, error) {
	s.got = q
	return s.answer, s.err
}

type stubPrograms struct {
	got core.UserProfile
	err error
}

func (s *stubPrograms) Generate(_ context.Context, p core.UserProfile) (*core.Program, error) {
	s.got = p
	if s.err != nil {
		return nil, s.err
	}
	return &core.Program{
		Profile:    p.WithDefaults(),
		Metrics:    core.ComputeHealthMetrics(p.Weight, p.Height),
		TotalWeeks: 1,
		Weeks:      []core.WeekSection{{Window: core.NewWeekWindow(1), Text: "Sarapan: bubur kacang hijau"}},
	}, nil
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestAskNutrition(t *testing.T) {
	answers := &stubAnswerer{answer: &core.Answer{
		Text: "Teh hijau mengandung antioksidan.",
		Documents: []rag.Document{
			{Source: "who.pdf", Content: "a"},
			{Source: "who.pdf", Content: "b"},
			{Source: "fao.pdf", Content: "c"},
		},
	}}
	h := &Handlers{answers: answers, logger: zap.NewNop()}

	res, err := h.AskNutrition(context.Background(), callRequest("ask_nutrition", map[string]interface{}{"question": "Manfaat teh hijau?"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "Manfaat teh hijau?", answers.got)
	assert.Equal(t, "Teh hijau mengandung antioksidan.\n\nSumber:\n- who.pdf\n- fao.pdf", resultText(t, res))
}

func TestAskNutrition_MissingQuestion(t *testing.T) {
	h := &Handlers{answers: &stubAnswerer{}, logger: zap.NewNop()}
	res, err := h.AskNutrition(context.Background(), callRequest("ask_nutrition", map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestAskNutrition_GenerationFailure(t *testing.T) {
	h := &Handlers{answers: &stubAnswerer{err: errors.New("model offline")}, logger: zap.NewNop()}
	res, err := h.AskNutrition(context.Background(), callRequest("ask_nutrition", map[string]interface{}{"question": "halo"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "model offline")
}

func TestGenerateDietProgram(t *testing.T) {
	programs := &stubPrograms{}
	h := &Handlers{programs: programs, logger: zap.NewNop()}

	res, err := h.GenerateDietProgram(context.Background(), callRequest("generate_diet_program", map[string]interface{}{
		"goal":      "turun berat badan",
		"duration":  "1 minggu",
		"age":       float64(30),
		"weight":    float64(80),
		"height":    float64(170),
		"allergies": "udang",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	assert.Equal(t, 30, programs.got.Age)
	assert.Equal(t, "udang", programs.got.Allergies)
	w, ok := programs.got.Weight.Float()
	assert.True(t, ok)
	assert.Equal(t, 80.0, w)
	assert.Contains(t, resultText(t, res), "**BMI:** 27.68")
}

func TestGenerateDietProgram_ValidationError(t *testing.T) {
	programs := &stubPrograms{err: &core.FormatError{Text: "selamanya"}}
	h := &Handlers{programs: programs, logger: zap.NewNop()}

	res, err := h.GenerateDietProgram(context.Background(), callRequest("generate_diet_program", map[string]interface{}{
		"duration": "selamanya",
		"weight":   "berat",
		"height":   float64(170),
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.False(t, programs.got.Weight.Valid())
	assert.Equal(t, "Format durasi tidak dikenali: selamanya. Gunakan format seperti 'X minggu' atau 'Y bulan'.", resultText(t, res))
}

func TestRegisterTools(t *testing.T) {
	server := mcpserver.NewMCPServer("asisten-gizi", "test")
	h := RegisterTools(server, &stubAnswerer{}, &stubPrograms{}, zap.NewNop())
	assert.NotNil(t, h)
	assert.NotNil(t, server.GetTool("ask_nutrition"))
	assert.NotNil(t, server.GetTool("generate_diet_program"))
}

func TestRegisterTools_ProgramsOnly(t *testing.T) {
	server := mcpserver.NewMCPServer("asisten-gizi", "test")
	RegisterTools(server, nil, &stubPrograms{}, zap.NewNop())

	tools := server.ListTools()
	assert.Len(t, tools, 1)
	assert.Nil(t, server.GetTool("ask_nutrition"))
	assert.NotNil(t, server.GetTool("generate_diet_program"))
}
