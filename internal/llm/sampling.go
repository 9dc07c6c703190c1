package llm

// SamplingConfig controls decoding. DoSample=false means greedy decoding and
// Temperature/TopP are ignored.
type SamplingConfig struct {
	MaxNewTokens int
	DoSample     bool
	Temperature  float32
	TopP         float32
}

var (
	AnswerSampling = SamplingConfig{
		MaxNewTokens: 256,
		DoSample:     true,
		Temperature:  0.9,
		TopP:         0.95,
	}

	ProgramSampling = SamplingConfig{
		MaxNewTokens: 2000,
		DoSample:     false,
	}
)
