package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	Port         int
	UploadDir    string
	ImagesDir    string
	ExampleDir   string
	CheckpointDB string
	LogLevel     string
	MaxUploadMB  int
	APIKey       string
	// Hosted model
	OpenAIAPIKey  string
	OpenAIBaseURL string
	AgentModel    string
	ToolModel     string
	ChartModel    string
	SummaryModel  string
	AgentMaxSteps int
	// Tree building
	FileAnalysis    bool
	TreeFixtureJSON string
	TreeFixtureText string
	// Sandbox
	PythonBin      string
	SandboxTimeout time.Duration
	SandboxMaxOut  int
	// Tracing
	TracingV2      string
	TracingProject string
	// MCP adapter
	ServerURL string
}

func Load() (*Config, error) {
	uploadDir := envStr("UPLOAD_DIR", "uploads")
	cfg := &Config{
		Port:            envInt("PORT", 5000),
		UploadDir:       uploadDir,
		ImagesDir:       envStr("IMAGES_DIR", filepath.Join(uploadDir, "images")),
		ExampleDir:      envStr("EXAMPLE_DIR", "example_data"),
		CheckpointDB:    envStr("CHECKPOINT_DB", ":memory:"),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		MaxUploadMB:     envInt("MAX_UPLOAD_MB", 100),
		APIKey:          envStr("API_KEY", ""),
		OpenAIAPIKey:    envStr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   envStr("OPENAI_BASE_URL", ""),
		AgentModel:      envStr("AGENT_MODEL", "gpt-4o"),
		ToolModel:       envStr("TOOL_MODEL", "gpt-4o"),
		ChartModel:      envStr("CHART_MODEL", "gpt-4"),
		SummaryModel:    envStr("SUMMARY_MODEL", "gpt-3.5-turbo"),
		AgentMaxSteps:   envInt("AGENT_MAX_STEPS", 25),
		FileAnalysis:    envBool("FILE_ANALYSIS", false),
		TreeFixtureJSON: envStr("TREE_FIXTURE_JSON", ""),
		TreeFixtureText: envStr("TREE_FIXTURE_TEXT", ""),
		PythonBin:       envStr("PYTHON_BIN", "python3"),
		SandboxTimeout:  time.Duration(envInt("SANDBOX_TIMEOUT_SECONDS", 60)) * time.Second,
		SandboxMaxOut:   envInt("SANDBOX_MAX_OUTPUT_BYTES", 64*1024),
		TracingV2:       envStr("LANGCHAIN_TRACING_V2", "true"),
		TracingProject:  envStr("LANGCHAIN_PROJECT", "Finance Agent"),
		ServerURL:       envStr("FINAGENT_SERVER_URL", "http://localhost:5000"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// TracingEnabled reports whether LANGCHAIN_TRACING_V2 parses as true.
func (c *Config) TracingEnabled() bool {
	b, err := strconv.ParseBool(c.TracingV2)
	return err == nil && b
}

// FixtureEnabled reports whether uploads replay a fixed overview instead of walking the archive.
func (c *Config) FixtureEnabled() bool {
	return c.TreeFixtureJSON != "" && c.TreeFixtureText != ""
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR must not be empty")
	}
	if c.ImagesDir == "" {
		return fmt.Errorf("IMAGES_DIR must not be empty")
	}
	if c.ExampleDir == "" {
		return fmt.Errorf("EXAMPLE_DIR must not be empty")
	}
	if c.AgentMaxSteps < 1 {
		return fmt.Errorf("AGENT_MAX_STEPS must be positive, got %d", c.AgentMaxSteps)
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	if c.SandboxTimeout <= 0 {
		return fmt.Errorf("SANDBOX_TIMEOUT_SECONDS must be positive")
	}
	if c.SandboxMaxOut < 1 {
		return fmt.Errorf("SANDBOX_MAX_OUTPUT_BYTES must be positive, got %d", c.SandboxMaxOut)
	}
	if (c.TreeFixtureJSON == "") != (c.TreeFixtureText == "") {
		return fmt.Errorf("TREE_FIXTURE_JSON and TREE_FIXTURE_TEXT must be set together")
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}
