// Package config holds runtime settings for the validation service.
// Everything is configurable via environment variables; optional YAML
// files supply exemplars, compliance rules, and custom patterns.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Profile selects a validation posture.
type Profile string

const (
	ProfileDefault       Profile = "default"
	ProfileHighSecurity  Profile = "high_security"
	ProfileHighUsability Profile = "high_usability"
)

// Config holds global settings for the sentinel service. All settings can
// be set via environment variables or programmatically.
type Config struct {
	// === Server ===
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // zap level: debug, info, warn, error

	// === Validation ===
	Profile         Profile // default, high_security, high_usability
	MaxInputLength  int     // oversize cutoff in bytes
	BlockThreshold  float64 // 0 keeps the profile's value
	MinDetectors    int     // 0 keeps the profile's value
	BenignContext   bool    // technical/academic context reduction
	BenignReduction float64
	HistorySize     int

	// === Semantic similarity ===
	EnableSimilarity     bool
	ExemplarsPath        string  // YAML exemplar file, empty disables loading
	SimilarityThreshold  float32 // 0 keeps the adapter default
	SimilarityWeight     float64
	SimilarityFailClosed bool
	EmbedModel           string // Ollama embedding model
	EmbedBaseURL         string // Ollama base URL

	// === Model judge ===
	JudgeEndpoint   string // OpenAI-compatible chat completions URL, empty disables
	JudgeAPIKey     string
	JudgeModel      string
	JudgeTimeout    time.Duration
	JudgeWeight     float64
	JudgeFailClosed bool

	// === Compliance rules ===
	RulesPath   string // YAML rule file, empty disables
	RulesWeight float64

	// === Custom patterns ===
	PatternsPath string // YAML custom pattern file, empty disables

	// === Verdict cache ===
	RedisAddr string // empty selects the in-process cache
	CacheTTL  time.Duration
}

// FromEnv builds a Config from the environment with defaults filled in.
func FromEnv() *Config {
	return &Config{
		ListenAddr: GetEnv("SENTINEL_LISTEN_ADDR", ":8080"),
		LogLevel:   GetEnv("SENTINEL_LOG_LEVEL", "info"),

		Profile:         Profile(GetEnv("SENTINEL_PROFILE", string(ProfileDefault))),
		MaxInputLength:  GetEnvInt("SENTINEL_MAX_INPUT_LENGTH", 0),
		BlockThreshold:  GetEnvFloat("SENTINEL_BLOCK_THRESHOLD", 0),
		MinDetectors:    GetEnvInt("SENTINEL_MIN_DETECTORS", 0),
		BenignContext:   GetEnvBool("SENTINEL_BENIGN_CONTEXT", true),
		BenignReduction: GetEnvFloat("SENTINEL_BENIGN_REDUCTION", 0),
		HistorySize:     GetEnvInt("SENTINEL_HISTORY_SIZE", 0),

		EnableSimilarity:     GetEnvBool("SENTINEL_ENABLE_SIMILARITY", false),
		ExemplarsPath:        GetEnv("SENTINEL_EXEMPLARS_PATH", ""),
		SimilarityThreshold:  float32(GetEnvFloat("SENTINEL_SIMILARITY_THRESHOLD", 0)),
		SimilarityWeight:     GetEnvFloat("SENTINEL_SIMILARITY_WEIGHT", 1.2),
		SimilarityFailClosed: GetEnvBool("SENTINEL_SIMILARITY_FAIL_CLOSED", false),
		EmbedModel:           GetEnv("SENTINEL_EMBED_MODEL", "embeddinggemma"),
		EmbedBaseURL:         GetEnv("SENTINEL_EMBED_URL", "http://localhost:11434"),

		JudgeEndpoint:   GetEnv("SENTINEL_JUDGE_ENDPOINT", ""),
		JudgeAPIKey:     GetEnv("SENTINEL_JUDGE_API_KEY", os.Getenv("OPENAI_API_KEY")),
		JudgeModel:      GetEnv("SENTINEL_JUDGE_MODEL", "gpt-4o-mini"),
		JudgeTimeout:    GetEnvDuration("SENTINEL_JUDGE_TIMEOUT", 10*time.Second),
		JudgeWeight:     GetEnvFloat("SENTINEL_JUDGE_WEIGHT", 1.4),
		JudgeFailClosed: GetEnvBool("SENTINEL_JUDGE_FAIL_CLOSED", true),

		RulesPath:   GetEnv("SENTINEL_RULES_PATH", ""),
		RulesWeight: GetEnvFloat("SENTINEL_RULES_WEIGHT", 1.0),

		PatternsPath: GetEnv("SENTINEL_PATTERNS_PATH", ""),

		RedisAddr: GetEnv("SENTINEL_REDIS_ADDR", ""),
		CacheTTL:  GetEnvDuration("SENTINEL_CACHE_TTL", 10*time.Minute),
	}
}

// Validate rejects settings that would silently misbehave at runtime.
func (c *Config) Validate() error {
	switch c.Profile {
	case ProfileDefault, ProfileHighSecurity, ProfileHighUsability:
	default:
		return fmt.Errorf("config: unknown profile %q", c.Profile)
	}
	if c.BlockThreshold < 0 || c.BlockThreshold > 1 {
		return fmt.Errorf("config: block threshold %.2f out of range", c.BlockThreshold)
	}
	if c.BenignReduction < 0 || c.BenignReduction > 1 {
		return fmt.Errorf("config: benign reduction %.2f out of range", c.BenignReduction)
	}
	if c.JudgeEndpoint != "" && !strings.HasPrefix(c.JudgeEndpoint, "http") {
		return fmt.Errorf("config: judge endpoint %q is not a URL", c.JudgeEndpoint)
	}
	return nil
}

// Helper functions for environment variable parsing.

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvBool returns the boolean value of an environment variable or a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvInt returns the integer value of an environment variable or a default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

// GetEnvFloat returns the float64 value of an environment variable or a default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvDuration returns the duration value of an environment variable or a default value.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetEnvSlice returns a comma-separated list from an environment variable or a default value.
func GetEnvSlice(key string, defaultValue []string) []string {
	if v := os.Getenv(key); v != "" {
		var parts []string
		for _, p := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}
