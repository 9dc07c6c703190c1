package llm

import (
	"context"
)

// Completer is a text-in, text-out model endpoint: Ollama in raw mode, Gemini,
// or an OpenAI-compatible completions server.
type Completer interface {
	Complete(ctx context.Context, prompt string, cfg SamplingConfig) (string, error)
}

// RemoteHost adapts a Completer to the token-level Host contract, so the
// engine strips the prompt by token offset regardless of where the model runs.
type RemoteHost struct {
	tokenizer Tokenizer
	completer Completer
}

func NewRemoteHost(tokenizer Tokenizer, completer Completer) *RemoteHost {
	return &RemoteHost{tokenizer: tokenizer, completer: completer}
}

func (h *RemoteHost) Generate(ctx context.Context, in Inputs, cfg SamplingConfig) ([]int, error) {
	prompt := h.tokenizer.Decode(in.InputIDs)

	text, err := h.completer.Complete(ctx, prompt, cfg)
	if err != nil {
		return nil, err
	}

	continuation := h.tokenizer.Encode(text).InputIDs
	out := make([]int, 0, len(in.InputIDs)+len(continuation)+1)
	out = append(out, in.InputIDs...)
	out = append(out, continuation...)
	out = append(out, in.EOSTokenID)
	return out, nil
}
