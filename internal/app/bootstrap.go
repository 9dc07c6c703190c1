// Package app wires configuration into the long-lived runtime shared by the
// HTTP server, the CLI and the MCP server.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/asisten-gizi/server/internal/auth"
	"github.com/asisten-gizi/server/internal/cache"
	"github.com/asisten-gizi/server/internal/config"
	"github.com/asisten-gizi/server/internal/core"
	"github.com/asisten-gizi/server/internal/llm"
	"github.com/asisten-gizi/server/internal/monitoring"
	"github.com/asisten-gizi/server/internal/rag"
	"github.com/asisten-gizi/server/internal/store"
	"go.uber.org/zap"
)

// Runtime is built once at startup and is read-only afterwards.
type Runtime struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *monitoring.Metrics
	Index     *rag.Index
	Retriever *rag.CombinedRetriever
	Queue     *llm.Queue
	Answers   *core.AnswerService // nil for a programs-only runtime
	Programs  *core.ProgramService
	Auth      *auth.Authenticator

	tokenizer Tokenizer
	providers *providers
	closers   []func() error
}

// Tokenizer counts prompt tokens for the engine and, with CHUNK_UNIT=tokens,
// sizes corpus chunks.
type Tokenizer interface {
	llm.Tokenizer
	rag.TokenCodec
}

type Options struct {
	Metrics   *monitoring.Metrics // optional
	Tokenizer Tokenizer           // defaults to the tiktoken encoding in ENCODING
}

// Bootstrap returns only after the index is loaded or built, so nothing is
// served before retrieval is ready.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*Runtime, error) {
	rt := newRuntime(cfg, logger, opts)
	if err := rt.initGeneration(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	if err := rt.initRetrieval(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	if cfg.JWTSecret != "" {
		a, err := auth.NewAuthenticator(cfg.JWTSecret)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.Auth = a
	}

	logger.Info("runtime ready",
		zap.String("llm_provider", cfg.LLMProvider),
		zap.String("embed_provider", cfg.EmbedProvider),
		zap.Int("retrievers", rt.Retriever.Len()),
		zap.Int("workers", cfg.GenerationWorkers),
	)
	return rt, nil
}

// BootstrapPrograms builds only the generation side. No index is loaded and
// the embedder is never contacted; Answers stays nil.
func BootstrapPrograms(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*Runtime, error) {
	rt := newRuntime(cfg, logger, opts)
	if err := rt.initGeneration(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	logger.Info("program runtime ready", zap.String("llm_provider", cfg.LLMProvider))
	return rt, nil
}

func newRuntime(cfg *config.Config, logger *zap.Logger, opts Options) *Runtime {
	rt := &Runtime{Config: cfg, Logger: logger, Metrics: opts.Metrics, tokenizer: opts.Tokenizer, providers: newProviders(cfg, logger)}
	rt.closers = append(rt.closers, rt.providers.Close)
	return rt
}

// initGeneration sets up the tokenizer, the model host behind the queue and
// the program service.
func (rt *Runtime) initGeneration(ctx context.Context) error {
	cfg := rt.Config

	if rt.tokenizer == nil {
		tokenizer, err := llm.NewTiktokenTokenizer(cfg.Encoding)
		if err != nil {
			return err
		}
		rt.tokenizer = tokenizer
	}

	template, err := llm.ParseChatTemplate(cfg.ChatTemplate)
	if err != nil {
		return err
	}
	completer, err := rt.providers.completer(ctx)
	if err != nil {
		return err
	}
	engine := llm.NewEngine(rt.tokenizer, llm.NewRemoteHost(rt.tokenizer, completer), rt.Logger)

	qcfg := llm.QueueConfig{
		Workers: cfg.GenerationWorkers,
		Size:    cfg.GenerationQueueSize,
		Timeout: cfg.GenerationTimeout,
		Retries: cfg.GenerationRetries,
	}
	if rt.Metrics != nil {
		qcfg.Observer = rt.Metrics
	}
	rt.Queue = llm.NewQueue(engine, qcfg, rt.Logger)
	rt.closers = append(rt.closers, func() error { rt.Queue.Close(); return nil })

	rt.Programs = core.NewProgramService(rt.Queue, template, cfg.MaxProgramWeeks, rt.Logger)
	return nil
}

// initRetrieval loads or builds the index, registers the retrievers and
// creates the answer service. It needs initGeneration first.
func (rt *Runtime) initRetrieval(ctx context.Context) error {
	cfg, logger := rt.Config, rt.Logger

	embedder, err := rt.embedder(ctx, rt.providers)
	if err != nil {
		return err
	}

	idx, err := EnsureIndex(ctx, indexSettings(cfg, rt.tokenizer), embedder, logger)
	if err != nil {
		return err
	}
	rt.Index = idx

	retrievers := []rag.Retriever{rag.NewIndexRetriever(idx, embedder, cfg.RetrievalK)}
	if cfg.PGVectorURL != "" {
		pg, err := store.NewPGVectorStore(ctx, cfg.PGVectorURL, logger)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, pg.Close)

		r, err := pg.Retriever(ctx, embedder, cfg.RetrievalK)
		if err != nil {
			return err
		}
		if r == nil {
			logger.Warn("pgvector store is empty, run `ingest --pgvector` to populate it")
		}
		retrievers = append(retrievers, r)
	}
	if rt.Metrics != nil {
		for i, r := range retrievers {
			retrievers[i] = rt.Metrics.InstrumentRetriever(r)
		}
	}
	rt.Retriever = rag.Combined(logger, retrievers...)

	var answerRetriever rag.Retriever
	if rt.Retriever.Len() > 0 {
		answerRetriever = rt.Retriever
	}
	rt.Answers = core.NewAnswerService(answerRetriever, rt.Queue, logger)
	return nil
}

// embedder returns the configured embedder, wrapped in the Redis cache when
// REDIS_URL is set.
func (rt *Runtime) embedder(ctx context.Context, prov *providers) (rag.Embedder, error) {
	embedder, err := prov.embedder(ctx)
	if err != nil {
		return nil, err
	}
	if rt.Config.RedisURL == "" {
		return embedder, nil
	}

	client, err := cache.NewRedisClient(ctx, rt.Config.RedisURL)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, client.Close)
	return cache.NewCachedEmbedder(embedder, client, rt.Config.EmbedCacheTTL, rt.Logger), nil
}

// Close releases everything in reverse construction order. The queue drains
// first.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func indexSettings(cfg *config.Config, tokenizer Tokenizer) IndexSettings {
	s := IndexSettings{
		CorpusDir:    cfg.CorpusDir,
		IndexPath:    cfg.IndexPath,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		RateLimit:    cfg.EmbedRateLimit,
	}
	if cfg.ChunkUnit == "tokens" {
		s.Codec = tokenizer
	}
	return s
}

type IngestOptions struct {
	Force    bool // rebuild even when an index exists
	PGVector bool // mirror the index into PGVECTOR_URL
}

// Ingest builds the index outside of server startup.
func Ingest(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts IngestOptions) (*rag.Index, error) {
	tokenizer, err := llm.NewTiktokenTokenizer(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	rt := newRuntime(cfg, logger, Options{})
	defer rt.Close()

	embedder, err := rt.embedder(ctx, rt.providers)
	if err != nil {
		return nil, err
	}

	settings := indexSettings(cfg, tokenizer)
	var idx *rag.Index
	if opts.Force {
		idx, err = RebuildIndex(ctx, settings, embedder, logger)
	} else {
		idx, err = EnsureIndex(ctx, settings, embedder, logger)
	}
	if err != nil {
		return nil, err
	}

	if opts.PGVector {
		if cfg.PGVectorURL == "" {
			return nil, errors.New("PGVECTOR_URL must be set to mirror the index")
		}
		if idx == nil {
			return nil, errors.New("nothing to mirror: the corpus produced no index")
		}
		pg, err := store.NewPGVectorStore(ctx, cfg.PGVectorURL, logger)
		if err != nil {
			return nil, err
		}
		defer pg.Close()
		if err := pg.ReplaceIndex(ctx, idx); err != nil {
			return nil, fmt.Errorf("failed to mirror index to pgvector: %w", err)
		}
	}
	return idx, nil
}
