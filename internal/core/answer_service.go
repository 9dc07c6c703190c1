package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/asisten-gizi/server/internal/llm"
	"github.com/asisten-gizi/server/internal/rag"
	"go.uber.org/zap"
)

type Answer struct {
	Text      string         `json:"answer"`
	Documents []rag.Document `json:"documents"`
}

type AnswerService struct {
	retriever rag.Retriever
	generator llm.Generator
	logger    *zap.Logger
}

// NewAnswerService accepts a nil retriever; every question is then answered
// from general knowledge.
func NewAnswerService(retriever rag.Retriever, generator llm.Generator, logger *zap.Logger) *AnswerService {
	return &AnswerService{retriever: retriever, generator: generator, logger: logger.Named("answer")}
}

func (s *AnswerService) Answer(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &ValidationError{Field: "question", Message: "Pertanyaan tidak boleh kosong."}
	}

	kind := Classify(question)

	var docs []rag.Document
	if s.retriever != nil {
		var err error
		docs, err = s.retriever.Retrieve(ctx, question)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// A query embedded in another vector space can never match; that is
			// a configuration error, not a transient failure.
			if errors.Is(err, rag.ErrEmbeddingMismatch) {
				return nil, fmt.Errorf("failed to retrieve documents: %w", err)
			}
			// Partial results are still useful context.
			s.logger.Warn("retrieval failed", zap.Error(err), zap.Int("documents", len(docs)))
		}
	}

	prompt := ComposeAnswerPrompt(question, kind, docs)
	s.logger.Debug("answering question",
		zap.String("kind", kind.String()),
		zap.Int("documents", len(docs)),
		zap.Int("prompt_chars", len(prompt)),
	)

	text, err := s.generator.Generate(ctx, prompt, llm.AnswerSampling)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	if docs == nil {
		docs = []rag.Document{}
	}
	return &Answer{Text: text, Documents: docs}, nil
}
