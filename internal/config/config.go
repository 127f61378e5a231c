package config

// Config is the top-level configuration structure mapping to colony.toml.
type Config struct {
	LLM      LLMConfig      `toml:"llm"`
	Workflow WorkflowConfig `toml:"workflow"`
	Testing  TestingConfig  `toml:"testing"`
	Review   ReviewConfig   `toml:"review"`
	Security SecurityConfig `toml:"security"`
	Output   OutputConfig   `toml:"output"`
}

// LLMConfig maps to the [llm] section in colony.toml.
type LLMConfig struct {
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`

	// Temperatures overrides the sampling temperature per role, keyed by
	// role name (e.g. "BackendDeveloper"). Unlisted roles use their
	// built-in temperature.
	Temperatures map[string]float64 `toml:"temperatures"`
}

// WorkflowConfig maps to the [workflow] section in colony.toml.
type WorkflowConfig struct {
	MaxIterations int  `toml:"max_iterations"`
	MinIterations int  `toml:"min_iterations"`
	AutoStop      bool `toml:"auto_stop"`
	MaxTeamSize   int  `toml:"max_team_size"`
}

// TestingConfig maps to the [testing] section in colony.toml.
type TestingConfig struct {
	Enabled        bool   `toml:"enabled"`
	Command        string `toml:"command"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ReviewConfig maps to the [review] section in colony.toml.
type ReviewConfig struct {
	Enabled   bool `toml:"enabled"`
	MaxRounds int  `toml:"max_rounds"`
}

// SecurityConfig maps to the [security] section in colony.toml.
type SecurityConfig struct {
	ScanEnabled bool `toml:"scan_enabled"`
}

// OutputConfig maps to the [output] section in colony.toml.
type OutputConfig struct {
	Dir string `toml:"dir"`
}
