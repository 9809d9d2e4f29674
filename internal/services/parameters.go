package services

// LLMParameters are the optional sampling parameters shared by every provider. A nil field leaves the
// provider default in place.
type LLMParameters struct {
	Temperature *float32 `yaml:"temperature"`
	TopP        *float32 `yaml:"topP"`
	MaxTokens   *int     `yaml:"maxTokens"`
}
