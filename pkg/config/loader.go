package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the complete mutaforge.yaml file structure,
// mirroring the shape of the teacher's TarsyYAMLConfig.
type YAMLConfig struct {
	LLM           LLMConfig            `yaml:"llm"`
	Knowledge     *KnowledgeConfig     `yaml:"knowledge"`
	Preprocessing *PreprocessingConfig `yaml:"preprocessing"`
	Formatting    *FormattingConfig    `yaml:"formatting"`
	Agent         *AgentConfig         `yaml:"agent"`
	Store         *StoreConfig         `yaml:"store"`
	Workspace     WorkspaceConfig      `yaml:"workspace"`
	BuildTool     BuildToolConfig      `yaml:"build_tool"`
	Analyzer      AnalyzerConfig       `yaml:"analyzer"`
}

// Initialize loads, merges, validates and returns ready-to-use
// configuration. Mirrors the teacher's config.Initialize entry point:
//  1. Load mutaforge.yaml from configDir
//  2. Expand environment variables
//  3. Merge built-in defaults under user overrides
//  4. Apply any CLI-flag overrides (e.g. --project-path), which may fill in
//     a field YAML left required-but-empty
//  5. Validate
func Initialize(_ context.Context, configDir string, overrides ...func(*Config)) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	for _, o := range overrides {
		o(cfg)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"knowledge_enabled", stats.KnowledgeEnabled,
		"preprocess_workers", stats.PreprocessWorkers,
		"parallel_targets", stats.ParallelTargets)

	return cfg, nil
}

func load(configDir string) (*Config, error) {
	path := filepath.Join(configDir, "mutaforge.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewLoadError(path, ErrConfigNotFound)
		}
		return nil, NewLoadError(path, err)
	}
	data = ExpandEnv(data)

	var y YAMLConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	knowledge := DefaultKnowledgeConfig()
	if y.Knowledge != nil {
		if err := mergo.Merge(knowledge, y.Knowledge, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge knowledge config: %w", err)
		}
	}

	preprocessing := DefaultPreprocessingConfig()
	if y.Preprocessing != nil {
		if err := mergo.Merge(preprocessing, y.Preprocessing, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge preprocessing config: %w", err)
		}
	}

	// mergo.WithOverride skips zero values, so an explicit "enabled: false"
	// would otherwise lose to the default of true.
	var explicit struct {
		Knowledge struct {
			Enabled *bool `yaml:"enabled"`
		} `yaml:"knowledge"`
		Preprocessing struct {
			Enabled *bool `yaml:"enabled"`
		} `yaml:"preprocessing"`
	}
	if err := yaml.Unmarshal(data, &explicit); err == nil {
		if explicit.Knowledge.Enabled != nil {
			knowledge.Enabled = *explicit.Knowledge.Enabled
		}
		if explicit.Preprocessing.Enabled != nil {
			preprocessing.Enabled = *explicit.Preprocessing.Enabled
		}
	}

	formatting := DefaultFormattingConfig()
	if y.Formatting != nil {
		if err := mergo.Merge(formatting, y.Formatting, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge formatting config: %w", err)
		}
	}

	agent := DefaultAgentConfig()
	if y.Agent != nil {
		if err := mergo.Merge(agent, y.Agent, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge agent config: %w", err)
		}
	}

	store := DefaultStoreConfig()
	if y.Store != nil {
		if err := mergo.Merge(store, y.Store, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge store config: %w", err)
		}
	}

	workspace := y.Workspace
	if workspace.Root == "" {
		workspace.Root = filepath.Join(os.TempDir(), "mutaforge-workspace")
	}

	buildTool := y.BuildTool
	if buildTool.PathEnv == "" {
		buildTool.PathEnv = "BUILD_TOOL_PATH"
	}

	analyzer := y.Analyzer
	if analyzer.PathEnv == "" {
		analyzer.PathEnv = "ANALYZER_TOOL_PATH"
	}

	if formatting.PathEnv == "" {
		formatting.PathEnv = "FORMATTER_TOOL_PATH"
	}

	return &Config{
		configDir:     configDir,
		LLM:           y.LLM,
		Knowledge:     knowledge,
		Preprocessing: preprocessing,
		Formatting:    formatting,
		Agent:         agent,
		Store:         store,
		Workspace:     workspace,
		BuildTool:     buildTool,
		Analyzer:      analyzer,
	}, nil
}

func validate(cfg *Config) error {
	v := &Validator{cfg: cfg}
	return v.ValidateAll()
}
