package llm

import (
	"context"
	"fmt"
	"math"

	"github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenAIModel      = "gpt-3.5-turbo-instruct"
	DefaultOpenAIEmbedModel = string(openai.SmallEmbedding3)
)

// OpenAIClient uses the legacy completions endpoint, which also fronts
// self-hosted servers such as vLLM when OPENAI_BASE_URL is set.
type OpenAIClient struct {
	client     *openai.Client
	model      string
	embedModel string
}

func NewOpenAIClient(apiKey, baseURL, model, embedModel string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if embedModel == "" {
		embedModel = DefaultOpenAIEmbedModel
	}
	return &OpenAIClient{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		embedModel: embedModel,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt string, cfg SamplingConfig) (string, error) {
	req := openai.CompletionRequest{
		Model:     c.model,
		Prompt:    prompt,
		MaxTokens: cfg.MaxNewTokens,
	}
	if cfg.DoSample {
		req.Temperature = cfg.Temperature
		req.TopP = cfg.TopP
	} else {
		// the client drops a zero temperature (omitempty)
		req.Temperature = math.SmallestNonzeroFloat32
	}

	resp, err := c.client.CreateCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Text, nil
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding data received from openai")
	}
	return resp.Data[0].Embedding, nil
}

func (c *OpenAIClient) ModelName() string {
	return "openai/" + c.embedModel
}
