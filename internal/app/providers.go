package app

import (
	"context"
	"fmt"

	"github.com/asisten-gizi/server/internal/config"
	"github.com/asisten-gizi/server/internal/llm"
	"github.com/asisten-gizi/server/internal/rag"
	"go.uber.org/zap"
)

// providers creates each model client at most once, so a single Ollama or
// Gemini client can serve both embeddings and generation.
type providers struct {
	cfg    *config.Config
	logger *zap.Logger

	ollama *llm.OllamaClient
	gemini *llm.GeminiClient
	openai *llm.OpenAIClient
}

func newProviders(cfg *config.Config, logger *zap.Logger) *providers {
	return &providers{cfg: cfg, logger: logger}
}

func (p *providers) modelsFor(provider string) (model, embedModel string) {
	if p.cfg.LLMProvider == provider {
		model = p.cfg.LLMModel
	}
	if p.cfg.EmbedProvider == provider {
		embedModel = p.cfg.EmbedModel
	}
	return model, embedModel
}

func (p *providers) ollamaClient() *llm.OllamaClient {
	if p.ollama == nil {
		model, embedModel := p.modelsFor(config.ProviderOllama)
		p.ollama = llm.NewOllamaClient(llm.OllamaConfig{
			BaseURL:    p.cfg.OllamaURL,
			Model:      model,
			EmbedModel: embedModel,
			Timeout:    p.cfg.GenerationTimeout,
		})
	}
	return p.ollama
}

func (p *providers) geminiClient(ctx context.Context) (*llm.GeminiClient, error) {
	if p.gemini == nil {
		model, embedModel := p.modelsFor(config.ProviderGemini)
		c, err := llm.NewGeminiClient(ctx, p.cfg.GeminiAPIKey, model, embedModel, p.logger)
		if err != nil {
			return nil, err
		}
		p.gemini = c
	}
	return p.gemini, nil
}

func (p *providers) openaiClient() *llm.OpenAIClient {
	if p.openai == nil {
		model, embedModel := p.modelsFor(config.ProviderOpenAI)
		p.openai = llm.NewOpenAIClient(p.cfg.OpenAIAPIKey, p.cfg.OpenAIBaseURL, model, embedModel)
	}
	return p.openai
}

func (p *providers) embedder(ctx context.Context) (rag.Embedder, error) {
	switch p.cfg.EmbedProvider {
	case config.ProviderOllama:
		return p.ollamaClient(), nil
	case config.ProviderGemini:
		return p.geminiClient(ctx)
	case config.ProviderOpenAI:
		return p.openaiClient(), nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q", p.cfg.EmbedProvider)
}

func (p *providers) completer(ctx context.Context) (llm.Completer, error) {
	switch p.cfg.LLMProvider {
	case config.ProviderOllama:
		return p.ollamaClient(), nil
	case config.ProviderGemini:
		return p.geminiClient(ctx)
	case config.ProviderOpenAI:
		return p.openaiClient(), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", p.cfg.LLMProvider)
}

func (p *providers) Close() error {
	if p.gemini != nil {
		return p.gemini.Close()
	}
	return nil
}
