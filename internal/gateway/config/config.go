package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort           = ":8081"
	defaultReviewModel    = "gemini-1.5-flash"
	defaultExplainModel   = "gemini-2.5-flash"
	defaultMaxUploadBytes = 1 << 20
	defaultMaxSuggestions = 50
)

type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string
	LLM         LLMConfig
	Review      ReviewConfig
	Cache       CacheConfig
	Artifact    ArtifactConfig
}

// LLMConfig selects the provider and the middleware stack around it.
// Provider is "gemini" or "fake".
type LLMConfig struct {
	Provider     string
	APIKey       string
	Model        string
	ExplainModel string
	RPS          float64
	Burst        int
	Retries      int
	Timeout      time.Duration
}

type ReviewConfig struct {
	RulesPath      string
	MaxSuggestions int
	MaxUploadBytes int64
}

type CacheConfig struct {
	TTL        time.Duration
	MaxEntries int
}

type ArtifactConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// CanUseS3 reports whether enough settings exist to reach an object store.
func (a ArtifactConfig) CanUseS3() bool {
	return a.Enabled && a.Endpoint != "" && a.AccessKey != "" && a.SecretKey != "" && a.Bucket != ""
}

// Load reads .env, the -port flag and the environment. It is meant for the
// gateway binary; other entry points use FromEnv.
func Load() (*Config, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	port := fs.String("port", defaultPort, "server port")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, err
	}
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if os.Getenv("PORT") == "" {
		cfg.Port = normalizePort(*port)
	}
	return cfg, nil
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (*Config, error) {
	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	llm, err := loadLLMConfig()
	if err != nil {
		return nil, err
	}
	review, err := loadReviewConfig()
	if err != nil {
		return nil, err
	}
	cacheTTL, err := durationEnv("CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	cacheSize, err := intEnv("CACHE_MAX_ENTRIES", 256)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:        normalizePort(firstNonEmpty(strings.TrimSpace(os.Getenv("PORT")), defaultPort)),
		Env:         env,
		LogLevel:    strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		LLM:         llm,
		Review:      review,
		Cache:       CacheConfig{TTL: cacheTTL, MaxEntries: cacheSize},
		Artifact:    loadArtifactConfig(env),
	}, nil
}

func loadLLMConfig() (LLMConfig, error) {
	key := firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_API_KEY")), strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")))
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER")))
	switch provider {
	case "":
		provider = "fake"
		if key != "" {
			provider = "gemini"
		}
	case "gemini", "fake":
	default:
		return LLMConfig{}, fmt.Errorf("LLM_PROVIDER: unknown provider %q", provider)
	}

	rps, err := floatEnv("LLM_RPS", 0)
	if err != nil {
		return LLMConfig{}, err
	}
	burst, err := intEnv("LLM_BURST", 1)
	if err != nil {
		return LLMConfig{}, err
	}
	retries, err := intEnv("LLM_RETRIES", 3)
	if err != nil {
		return LLMConfig{}, err
	}
	timeout, err := durationEnv("LLM_TIMEOUT", 60*time.Second)
	if err != nil {
		return LLMConfig{}, err
	}
	return LLMConfig{
		Provider:     provider,
		APIKey:       key,
		Model:        firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_MODEL")), defaultReviewModel),
		ExplainModel: firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_EXPLAIN_MODEL")), defaultExplainModel),
		RPS:          rps,
		Burst:        burst,
		Retries:      retries,
		Timeout:      timeout,
	}, nil
}

func loadReviewConfig() (ReviewConfig, error) {
	maxSuggestions, err := intEnv("MAX_SUGGESTIONS", defaultMaxSuggestions)
	if err != nil {
		return ReviewConfig{}, err
	}
	maxUpload, err := intEnv("MAX_UPLOAD_BYTES", defaultMaxUploadBytes)
	if err != nil {
		return ReviewConfig{}, err
	}
	return ReviewConfig{
		RulesPath:      strings.TrimSpace(os.Getenv("RULES_PATH")),
		MaxSuggestions: maxSuggestions,
		MaxUploadBytes: int64(maxUpload),
	}, nil
}

func loadArtifactConfig(env string) ArtifactConfig {
	endpoint := resolveArtifactEndpoint(env)
	return ArtifactConfig{
		Enabled:   strings.EqualFold(strings.TrimSpace(env), "local") || endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")), "codereview-raw"),
		UseSSL:    resolveArtifactUseSSL(env),
	}
}

func resolveArtifactEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_MINIO_ENDPOINT")), "minio:9000")
	}
	return strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT"))
}

func resolveArtifactUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("ARTIFACT_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func normalizePort(p string) string {
	if strings.HasPrefix(p, ":") {
		return p
	}
	return ":" + p
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// durationEnv accepts Go durations ("90s") and plain seconds ("90").
func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
