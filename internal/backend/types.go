package backend

// Message is one completion request.
type Message struct {
	System    string // System prompt; falls back to Config.SystemPrompt
	Content   string // User prompt
	MaxTokens int    // Falls back to Config.MaxTokens
}

// Response is the text produced for a Message.
type Response struct {
	Content      string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Config defines the configuration for a backend.
type Config struct {
	Type         string // "anthropic", "bedrock" or "claude-cli"
	Model        string
	MaxTokens    int
	SystemPrompt string

	// Anthropic API
	APIKey  string // Defaults to ANTHROPIC_API_KEY
	BaseURL string // Overrides the API endpoint

	// AWS Bedrock
	AWSRegion  string
	AWSProfile string

	// Claude CLI
	Command string // Executable name or path (default "claude")
	WorkDir string
}

const defaultMaxTokens = 1024
