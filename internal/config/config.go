// Package config provides configuration loading and structs for the Quaigle server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	LLM     LLMConfig     `yaml:"llm"`
	Chat    ChatConfig    `yaml:"chat"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for staged files and the retrieval indices.
type StorageConfig struct {
	DataDir  string `yaml:"data_dir"`
	IndexDir string `yaml:"index_dir"`
}

// LLMConfig holds model settings for generation and embeddings.
type LLMConfig struct {
	Model           string `yaml:"model"`
	EmbedModel      string `yaml:"embed_model"`
	EmbedDimensions int    `yaml:"embed_dimensions"`
	EmbedCacheSize  int    `yaml:"embed_cache_size"`
}

// ChatConfig holds chunking, retrieval, and conversation settings.
type ChatConfig struct {
	ChunkSize       int     `yaml:"chunk_size"`
	ChunkOverlap    int     `yaml:"chunk_overlap"`
	TopK            int     `yaml:"top_k"`
	MemoryTurns     int     `yaml:"memory_turns"`
	QuizQuestions   int     `yaml:"quiz_questions"`
	KeywordWeight   float64 `yaml:"keyword_weight"`
	SemanticWeight  float64 `yaml:"semantic_weight"`
	MaxContextChars int     `yaml:"max_context_chars"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, configDir)
	cfg.Storage.IndexDir = expandPath(cfg.Storage.IndexDir, configDir)

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
