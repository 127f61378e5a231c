package config

// NewDefaults returns a Config populated with all default values. A run with
// no colony.toml and no environment overrides uses exactly these.
func NewDefaults() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:        "http://localhost:11434",
			Model:          "qwen2.5-coder:latest",
			TimeoutSeconds: 120,
		},
		Workflow: WorkflowConfig{
			MaxIterations: 3,
			MinIterations: 2,
			AutoStop:      true,
			// Zero means no cap: team size is bounded only by what the
			// task analysis asks for unless --max-team-size is given.
			MaxTeamSize: 0,
		},
		Testing: TestingConfig{
			Enabled:        true,
			TimeoutSeconds: 300,
		},
		Review: ReviewConfig{
			Enabled:   true,
			MaxRounds: 2,
		},
		Security: SecurityConfig{
			ScanEnabled: true,
		},
		Output: OutputConfig{
			Dir: "./generated_projects",
		},
	}
}
