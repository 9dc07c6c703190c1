package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Inputs is the tensor set a causal host accepts. Segment ids never reach a
// host.
type Inputs struct {
	InputIDs      []int
	AttentionMask []int
	PadTokenID    int
	EOSTokenID    int
}

// Host runs autoregressive decoding. The returned sequence starts with the
// prompt tokens, followed by at most cfg.MaxNewTokens new tokens.
type Host interface {
	Generate(ctx context.Context, in Inputs, cfg SamplingConfig) ([]int, error)
}

type Engine struct {
	tokenizer Tokenizer
	host      Host
	logger    *zap.Logger
}

func NewEngine(tokenizer Tokenizer, host Host, logger *zap.Logger) *Engine {
	return &Engine{tokenizer: tokenizer, host: host, logger: logger.Named("engine")}
}

// Generate returns only the continuation of prompt.
func (e *Engine) Generate(ctx context.Context, prompt string, cfg SamplingConfig) (string, error) {
	in := e.inputs(e.tokenizer.Encode(prompt))

	out, err := e.host.Generate(ctx, in, cfg)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &GenerationError{Err: err}
	}
	if len(out) < len(in.InputIDs) {
		return "", &GenerationError{Err: fmt.Errorf("host returned %d tokens for a %d token prompt", len(out), len(in.InputIDs))}
	}

	continuation := e.skipSpecial(out[len(in.InputIDs):], in)
	e.logger.Debug("generation finished",
		zap.Int("prompt_tokens", len(in.InputIDs)),
		zap.Int("new_tokens", len(continuation)),
		zap.Bool("sampled", cfg.DoSample),
	)
	return strings.TrimSpace(e.tokenizer.Decode(continuation)), nil
}

func (e *Engine) inputs(enc Encoding) Inputs {
	eos := e.tokenizer.EOSTokenID()
	pad, ok := e.tokenizer.PadTokenID()
	if !ok {
		pad = eos
	}
	mask := enc.AttentionMask
	if len(mask) != len(enc.InputIDs) {
		mask = make([]int, len(enc.InputIDs))
		for i := range mask {
			mask[i] = 1
		}
	}
	return Inputs{
		InputIDs:      enc.InputIDs,
		AttentionMask: mask,
		PadTokenID:    pad,
		EOSTokenID:    eos,
	}
}

func (e *Engine) skipSpecial(ids []int, in Inputs) []int {
	kept := make([]int, 0, len(ids))
	for _, id := range ids {
		if id == in.EOSTokenID || id == in.PadTokenID {
			continue
		}
		kept = append(kept, id)
	}
	return kept
}
