// AI provider configuration for the reference backend's SQL generation.
//
// API keys can live in ~/.sqlchat/config.json or come from the usual
// environment variables (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...).
package config

// AIConfig holds the AI provider selection and credentials.
type AIConfig struct {
	Provider  string          `json:"provider" env:"SQLCHAT_AI_PROVIDER"` // "openai", "anthropic", "gemini", "ollama", "placeholder"
	OpenAI    OpenAIConfig    `json:"openai"`
	Anthropic AnthropicConfig `json:"anthropic"`
	Gemini    GeminiConfig    `json:"gemini"`
	Ollama    OllamaConfig    `json:"ollama"`
}

// OpenAIConfig holds OpenAI-compatible settings. BaseURL lets the
// provider talk to any chat-completions compatible endpoint.
type OpenAIConfig struct {
	APIKey  string `json:"api_key,omitempty" env:"OPENAI_API_KEY"`
	Model   string `json:"model" env:"OPENAI_MODEL"`
	BaseURL string `json:"base_url,omitempty" env:"OPENAI_BASE_URL"`
}

// AnthropicConfig holds Anthropic-specific settings.
type AnthropicConfig struct {
	APIKey string `json:"api_key,omitempty" env:"ANTHROPIC_API_KEY"`
	Model  string `json:"model" env:"ANTHROPIC_MODEL"`
}

// GeminiConfig holds Google Gemini-specific settings.
type GeminiConfig struct {
	APIKey string `json:"api_key,omitempty" env:"GEMINI_API_KEY"`
	Model  string `json:"model" env:"GEMINI_MODEL"`
}

// OllamaConfig holds Ollama-specific settings.
type OllamaConfig struct {
	Host  string `json:"host" env:"OLLAMA_HOST"`
	Model string `json:"model" env:"OLLAMA_MODEL"`
}

// DefaultAIConfig returns sensible defaults.
func DefaultAIConfig() AIConfig {
	return AIConfig{
		Provider: "placeholder",
		OpenAI: OpenAIConfig{
			Model:   "gpt-4o-mini",
			BaseURL: "https://api.openai.com/v1",
		},
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-20250514",
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.0-flash",
		},
		Ollama: OllamaConfig{
			Host:  "http://localhost:11434",
			Model: "llama3.2",
		},
	}
}
