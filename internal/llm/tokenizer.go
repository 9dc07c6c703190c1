package llm

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const endOfText = "<|endoftext|>"

// Encoding is what a tokenizer hands back for one text. TokenTypeIDs is
// populated only by tokenizers that emit segment ids; causal hosts never
// accept it.
type Encoding struct {
	InputIDs      []int
	AttentionMask []int
	TokenTypeIDs  []int
}

type Tokenizer interface {
	Encode(text string) Encoding
	Decode(ids []int) string
	EOSTokenID() int
	// PadTokenID reports false when the vocabulary has no dedicated pad token.
	PadTokenID() (int, bool)
}

type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
	eos int
}

func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encoding, err)
	}
	eos := enc.Encode(endOfText, []string{endOfText}, nil)
	if len(eos) != 1 {
		return nil, fmt.Errorf("encoding %q has no single %s token", encoding, endOfText)
	}
	return &TiktokenTokenizer{enc: enc, eos: eos[0]}, nil
}

func (t *TiktokenTokenizer) Encode(text string) Encoding {
	ids := t.enc.Encode(text, nil, nil)
	mask := make([]int, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	return Encoding{InputIDs: ids, AttentionMask: mask}
}

func (t *TiktokenTokenizer) Decode(ids []int) string {
	return t.enc.Decode(ids)
}

func (t *TiktokenTokenizer) EOSTokenID() int {
	return t.eos
}

func (t *TiktokenTokenizer) PadTokenID() (int, bool) {
	return 0, false
}

// EncodeIDs and DecodeIDs let the chunker measure windows in tokens.
func (t *TiktokenTokenizer) EncodeIDs(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *TiktokenTokenizer) DecodeIDs(ids []int) string {
	return t.enc.Decode(ids)
}
