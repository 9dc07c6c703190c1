package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultOllamaURL        = "http://localhost:11434"
	DefaultOllamaModel      = "mistral:instruct"
	DefaultOllamaEmbedModel = "all-minilm" // sentence-transformers all-MiniLM-L6-v2
	defaultOllamaTimeout    = 10 * time.Minute
)

type OllamaConfig struct {
	BaseURL    string
	Model      string
	EmbedModel string
	Timeout    time.Duration
}

// OllamaClient talks to a local Ollama server. Prompts are sent in raw mode
// because they are already rendered with the chat template.
type OllamaClient struct {
	client     *http.Client
	baseURL    string
	model      string
	embedModel string
}

func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultOllamaEmbedModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultOllamaTimeout
	}
	return &OllamaClient{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		embedModel: cfg.EmbedModel,
	}
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Raw     bool          `json:"raw"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

// Temperature has no omitempty: zero is how greedy decoding is requested.
type ollamaOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float32 `json:"temperature"`
	TopP        float32 `json:"top_p,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

func (c *OllamaClient) Complete(ctx context.Context, prompt string, cfg SamplingConfig) (string, error) {
	opts := ollamaOptions{NumPredict: cfg.MaxNewTokens}
	if cfg.DoSample {
		opts.Temperature = cfg.Temperature
		opts.TopP = cfg.TopP
	} else {
		opts.TopK = 1
	}

	var resp ollamaGenerateResponse
	err := c.post(ctx, "/api/generate", ollamaGenerateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Raw:     true,
		Stream:  false,
		Options: opts,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Response, nil
}

func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp ollamaEmbeddingResponse
	if err := c.post(ctx, "/api/embeddings", ollamaEmbeddingRequest{Model: c.embedModel, Prompt: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("no embedding data received from ollama")
	}
	out := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

func (c *OllamaClient) ModelName() string {
	return "ollama/" + c.embedModel
}

func (c *OllamaClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
