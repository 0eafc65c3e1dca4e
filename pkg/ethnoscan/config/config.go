// Package config loads pipeline settings from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/ethnoscan/internal/llm"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/internalerr"
)

// Cache backends.
const (
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config is the full pipeline configuration.
type Config struct {
	TextsDir      string `yaml:"texts_dir"`
	MetadataPath  string `yaml:"metadata"`
	TermsPath     string `yaml:"terms"`
	StopwordsPath string `yaml:"stopwords"`
	OutputDir     string `yaml:"output_dir"`

	Window   int `yaml:"window"`
	MinWords int `yaml:"min_words"`

	Cache   Cache   `yaml:"cache"`
	API     API     `yaml:"api"`
	Prompts Prompts `yaml:"prompts"`
	Lexical Lexical `yaml:"lexical"`
}

// Cache selects the annotation cache backend.
type Cache struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	// Import is a JSONL cache file loaded into the sqlite backend on start.
	Import string `yaml:"import"`
}

// API configures the completion endpoint and retry policy.
type API struct {
	BaseURL       string        `yaml:"base_url"`
	Model         string        `yaml:"model"`
	KeyEnv        string        `yaml:"key_env"`
	EnvFile       string        `yaml:"env_file"`
	Attempts      int           `yaml:"attempts"`
	Delay         time.Duration `yaml:"delay"`
	Timeout       time.Duration `yaml:"timeout"`
	CacheFailures bool          `yaml:"cache_failures"`
}

// Prompts parameterizes the annotation prompts.
type Prompts struct {
	Group    string `yaml:"group"`
	Language string `yaml:"language"`
}

// Lexical configures the local NLP pass.
type Lexical struct {
	Enabled bool `yaml:"enabled"`
	// Stopwords are added to the stopword file's entries.
	Stopwords []string `yaml:"stopwords"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		TextsDir:      filepath.Join("data", "texts"),
		MetadataPath:  filepath.Join("data", "metadata.csv"),
		TermsPath:     filepath.Join("data", "ethnonyms.txt"),
		StopwordsPath: filepath.Join("data", "stopwords_en.txt"),
		OutputDir:     "output",
		Window:        3,
		MinWords:      20,
		Cache: Cache{
			Backend: BackendJSONL,
			Path:    filepath.Join("output", "deepseek_responses.jsonl"),
		},
		API: API{
			BaseURL:       llm.DefaultBaseURL,
			Model:         llm.DefaultModel,
			KeyEnv:        "DEEPSEEK_API_KEY",
			EnvFile:       ".env",
			Attempts:      3,
			Delay:         3 * time.Second,
			Timeout:       40 * time.Second,
			CacheFailures: true,
		},
		Prompts: Prompts{Group: "Kalmyks", Language: "Russian"},
		Lexical: Lexical{Enabled: true},
	}
}

// Load reads path over the defaults. Keys absent from the file keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: config %s", internalerr.ErrNotFound, path)
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", internalerr.ErrInvalidConfig, path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var problems []string
	if c.Window < 0 {
		problems = append(problems, "window must be >= 0")
	}
	if c.MinWords < 0 {
		problems = append(problems, "min_words must be >= 0")
	}
	if c.OutputDir == "" {
		problems = append(problems, "output_dir required")
	}
	switch c.Cache.Backend {
	case BackendJSONL, BackendSQLite:
		if c.Cache.Path == "" {
			problems = append(problems, "cache.path required")
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown cache backend %q", c.Cache.Backend))
	}
	if c.API.Attempts < 1 {
		problems = append(problems, "api.attempts must be >= 1")
	}
	if c.API.Delay < 0 || c.API.Timeout <= 0 {
		problems = append(problems, "api.delay must be >= 0 and api.timeout > 0")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", internalerr.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// APIKey returns the credential from the environment, loading the env file
// first if one exists. Variables already set are not overridden.
func (c Config) APIKey() string {
	if c.API.EnvFile != "" {
		if _, err := os.Stat(c.API.EnvFile); err == nil {
			_ = godotenv.Load(c.API.EnvFile)
		}
	}
	return strings.TrimSpace(os.Getenv(c.API.KeyEnv))
}

// BaseURL returns the API base, honoring DEEPSEEK_API_BASE.
func (c Config) BaseURL() string {
	if v := strings.TrimSpace(os.Getenv("DEEPSEEK_API_BASE")); v != "" {
		return v
	}
	return c.API.BaseURL
}

// OutputPath joins name onto the output directory.
func (c Config) OutputPath(name string) string {
	return filepath.Join(c.OutputDir, name)
}
