package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	DefaultGeminiModel      = "gemini-1.5-flash-latest"
	DefaultGeminiEmbedModel = "text-embedding-004"
)

type GeminiClient struct {
	client     *genai.Client
	model      string
	embedModel string
	logger     *zap.Logger
}

func NewGeminiClient(ctx context.Context, apiKey, model, embedModel string, logger *zap.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if embedModel == "" {
		embedModel = DefaultGeminiEmbedModel
	}
	return &GeminiClient{
		client:     client,
		model:      model,
		embedModel: embedModel,
		logger:     logger.Named("gemini"),
	}, nil
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

func (c *GeminiClient) Complete(ctx context.Context, prompt string, cfg SamplingConfig) (string, error) {
	model := c.client.GenerativeModel(c.model)

	maxTokens := int32(cfg.MaxNewTokens)
	candidates := int32(1)
	model.GenerationConfig = genai.GenerationConfig{
		CandidateCount:  &candidates,
		MaxOutputTokens: &maxTokens,
	}
	if cfg.DoSample {
		temp, topP := cfg.Temperature, cfg.TopP
		model.GenerationConfig.Temperature = &temp
		model.GenerationConfig.TopP = &topP
	} else {
		temp, topK := float32(0), int32(1)
		model.GenerationConfig.Temperature = &temp
		model.GenerationConfig.TopK = &topK
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate request failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		} else {
			c.logger.Debug("skipping non-text part", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}
	return text.String(), nil
}

func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	em := c.client.EmbeddingModel(c.embedModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

func (c *GeminiClient) ModelName() string {
	return "gemini/" + c.embedModel
}
