package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings is the process configuration assembled from the environment.
type Settings struct {
	Port       string
	LogLevel   string
	LogPretty  bool
	Store      string
	RedisAddr  string
	RedisPass  string
	RedisDB    int
	CacheTTL   time.Duration
	SQLitePath string

	KafkaBrokers []string
	KafkaTopic   string

	S3Bucket       string
	S3Prefix       string
	S3Region       string
	S3Profile      string
	S3UsePathStyle bool

	CohereAPIKey  string
	CohereBaseURL string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	DefaultModel  string

	AnalysisWorkers int
	ScheduleCron    string
	ScheduleSources []string

	// RateRules maps a domain to a "requests/window" override.
	RateRules map[string]RateRule
}

// RateRule is a per-domain request budget parsed from the environment.
type RateRule struct {
	MaxRequests int
	Window      time.Duration
}

// Load reads .env (if present) and the process environment.
func Load() Settings {
	_ = godotenv.Load()

	s := Settings{
		Port:       GetEnvOrDefault("PORT", "8080"),
		LogLevel:   GetEnvOrDefault("LOG_LEVEL", "info"),
		LogPretty:  GetEnvBool("LOG_PRETTY", false),
		Store:      GetEnvOrDefault("STORE", "memory"),
		RedisAddr:  GetEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPass:  os.Getenv("REDIS_PASS"),
		RedisDB:    GetEnvInt("REDIS_DB", 0),
		CacheTTL:   time.Duration(GetEnvInt("CACHE_TTL_HOURS", int(CacheTTL/time.Hour))) * time.Hour,
		SQLitePath: GetEnvOrDefault("SQLITE_PATH", "catalystbot.db"),

		KafkaBrokers: GetEnvList("KAFKA_BOOTSTRAP_SERVERS"),
		KafkaTopic:   GetEnvOrDefault("KAFKA_EVENTS_TOPIC", "catalystbot.events"),

		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Prefix:       GetEnvOrDefault("S3_PREFIX", "sessions/"),
		S3Region:       GetEnvOrDefault("S3_REGION", "us-east-1"),
		S3Profile:      os.Getenv("S3_PROFILE"),
		S3UsePathStyle: GetEnvBool("S3_USE_PATH_STYLE", false),

		CohereAPIKey:  os.Getenv("COHERE_API_KEY"),
		CohereBaseURL: os.Getenv("COHERE_BASE_URL"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		DefaultModel:  GetEnvOrDefault("DEFAULT_MODEL", DefaultModel),

		AnalysisWorkers: GetEnvInt("MAX_CONCURRENT_ANALYSES", DefaultAnalysisWorkers),
		ScheduleCron:    os.Getenv("SCHEDULE_CRON"),
		ScheduleSources: GetEnvList("SCHEDULE_SOURCES"),

		RateRules: RateRulesFromEnv(os.Environ()),
	}
	return s
}

// GetEnvOrDefault returns the environment value for key, or fallback when unset.
func GetEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetEnvInt parses an integer variable, falling back on absence or parse error.
func GetEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvBool parses a boolean variable.
func GetEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// GetEnvList splits a comma-separated variable, dropping empty entries.
func GetEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

const rateLimitPrefix = "RATE_LIMIT_"

// RateRulesFromEnv collects RATE_LIMIT_<DOMAIN>=<n>/<window> entries from a
// KEY=VALUE list. Underscores in the domain part become dots, so
// RATE_LIMIT_FINANCE_YAHOO_COM=5/60s applies to finance.yahoo.com.
// Malformed entries are skipped.
func RateRulesFromEnv(environ []string) map[string]RateRule {
	rules := make(map[string]RateRule)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, rateLimitPrefix) {
			continue
		}
		domain := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, rateLimitPrefix), "_", "."))
		if domain == "" {
			continue
		}
		rule, err := ParseRateRule(value)
		if err != nil {
			continue
		}
		rules[domain] = rule
	}
	return rules
}

// ParseRateRule parses "<requests>/<duration>", e.g. "5/60s".
func ParseRateRule(s string) (RateRule, error) {
	n, w, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return RateRule{}, fmt.Errorf("rate rule %q: want <requests>/<window>", s)
	}
	requests, err := strconv.Atoi(n)
	if err != nil || requests <= 0 {
		return RateRule{}, fmt.Errorf("rate rule %q: invalid request count", s)
	}
	window, err := time.ParseDuration(w)
	if err != nil || window <= 0 {
		return RateRule{}, fmt.Errorf("rate rule %q: invalid window", s)
	}
	return RateRule{MaxRequests: requests, Window: window}, nil
}
