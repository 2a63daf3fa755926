package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port        string
	Environment string // "production" or "development"
	MongoURI    string // optional - learning records and entitlement lookups
	RedisURL    string // optional - entitlement cache

	// Skill manifests loaded at startup (and hot-reloaded on change)
	SkillsFile string

	// Preview blob store
	BlobTTL        time.Duration
	BlobSweepEvery time.Duration

	// Learning loop
	LearningFlushEvery time.Duration

	// External link analysis rate limit (requests/sec, burst)
	LinkAnalysisRPS   float64
	LinkAnalysisBurst int

	// Users granted unconditional enterprise override (comma-separated)
	EnterpriseOverrideUserIDs []string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	overrideEnv := getEnv("ENTERPRISE_OVERRIDE_USER_IDS", "")
	var overrideIDs []string
	if overrideEnv != "" {
		overrideIDs = strings.Split(overrideEnv, ",")
		for i := range overrideIDs {
			overrideIDs[i] = strings.TrimSpace(overrideIDs[i])
		}
	}

	return &Config{
		Port:        getEnv("PORT", "3001"),
		Environment: getEnv("ENVIRONMENT", "development"),
		MongoURI:    getEnv("MONGODB_URI", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		SkillsFile: getEnv("SKILLS_FILE", ""),

		BlobTTL:        getDurationEnv("PREVIEW_BLOB_TTL", 15*time.Minute),
		BlobSweepEvery: getDurationEnv("PREVIEW_BLOB_SWEEP_INTERVAL", 5*time.Minute),

		LearningFlushEvery: getDurationEnv("LEARNING_FLUSH_INTERVAL", 10*time.Minute),

		LinkAnalysisRPS:   getFloatEnv("LINK_ANALYSIS_RPS", 2),
		LinkAnalysisBurst: getIntEnv("LINK_ANALYSIS_BURST", 4),

		EnterpriseOverrideUserIDs: overrideIDs,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
