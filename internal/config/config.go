package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"pdfqa/internal/apperr"
)

// Supported index backends.
const (
	BackendChroma = "chroma"
	BackendQdrant = "qdrant"
)

// Config holds all configuration for the application.
type Config struct {
	CollectionName  string
	IndexBackend    string
	IndexURL        string
	IndexVectorSize int
	IndexTimeout    time.Duration

	ChunkSize         int
	ChunkOverlap      int
	BatchSize         int
	IngestConcurrency int
	IngestRateLimit   float64
	LoaderExtensions  []string
	RetrievalK        int

	OpenAIAPIKey    string
	OpenAIBaseURL   string
	ChatModel       string
	EmbeddingModel  string
	ModelTimeout    time.Duration
	ModelMaxRetries int

	UnidocLicenseKey string
	DBPath           string
	APIPort          string
	LogLevel         string
	LogFormat        string
}

var defaults = map[string]any{
	"INDEX_BACKEND":      BackendChroma,
	"INDEX_VECTOR_SIZE":  "1536",
	"INDEX_TIMEOUT":      "30s",
	"CHUNK_SIZE":         "1000",
	"CHUNK_OVERLAP":      "200",
	"BATCH_SIZE":         "100",
	"INGEST_CONCURRENCY": "1",
	"INGEST_RATE_LIMIT":  "0",
	"LOADER_EXTENSIONS":  ".pdf",
	"RETRIEVAL_K":        "4",
	"CHAT_MODEL":         "gpt-3.5-turbo",
	"EMBEDDING_MODEL":    "text-embedding-ada-002",
	"MODEL_TIMEOUT":      "60s",
	"MODEL_MAX_RETRIES":  "2",
	"DB_PATH":            "./data/pdfqa.db",
	"API_PORT":           "9000",
	"LOG_LEVEL":          "info",
	"LOG_FORMAT":         "text",
}

// Load reads configuration from an optional yaml file, the environment and any .env file.
// Environment variables already set take precedence over .env file values.
// Missing or malformed settings are reported as apperr.ErrConfiguration.
func Load(configPath string) (*Config, error) {
	loadDotEnv()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, apperr.Wrap(apperr.ErrConfiguration, err, "failed to read config file")
		}
	}

	cfg := &Config{
		CollectionName:   strings.TrimSpace(v.GetString("COLLECTION_NAME")),
		IndexBackend:     strings.ToLower(v.GetString("INDEX_BACKEND")),
		OpenAIAPIKey:     v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL:    v.GetString("OPENAI_BASE_URL"),
		ChatModel:        v.GetString("CHAT_MODEL"),
		EmbeddingModel:   v.GetString("EMBEDDING_MODEL"),
		UnidocLicenseKey: v.GetString("UNIDOC_LICENSE_KEY"),
		DBPath:           v.GetString("DB_PATH"),
		APIPort:          v.GetString("API_PORT"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		LogFormat:        v.GetString("LOG_FORMAT"),
	}

	if cfg.CollectionName == "" {
		return nil, apperr.New(apperr.ErrConfiguration, "COLLECTION_NAME is required")
	}

	switch cfg.IndexBackend {
	case BackendChroma, BackendQdrant:
	default:
		return nil, apperr.Newf(apperr.ErrConfiguration, "INDEX_BACKEND must be %q or %q, got %q",
			BackendChroma, BackendQdrant, cfg.IndexBackend)
	}

	// CHROMA_URL is accepted for compatibility with existing deployments.
	cfg.IndexURL = firstNonEmpty(v.GetString("INDEX_URL"), v.GetString("CHROMA_URL"))
	if cfg.IndexURL == "" {
		cfg.IndexURL = defaultIndexURL(cfg.IndexBackend)
	}

	var err error
	ints := []struct {
		key string
		dst *int
		min int
	}{
		{"INDEX_VECTOR_SIZE", &cfg.IndexVectorSize, 1},
		// Range of chunk parameters is checked by the splitter.
		{"CHUNK_SIZE", &cfg.ChunkSize, math.MinInt},
		{"CHUNK_OVERLAP", &cfg.ChunkOverlap, math.MinInt},
		{"BATCH_SIZE", &cfg.BatchSize, 1},
		{"INGEST_CONCURRENCY", &cfg.IngestConcurrency, 1},
		{"RETRIEVAL_K", &cfg.RetrievalK, 1},
		{"MODEL_MAX_RETRIES", &cfg.ModelMaxRetries, 0},
	}
	for _, i := range ints {
		if *i.dst, err = parseInt(v, i.key, i.min); err != nil {
			return nil, err
		}
	}

	if cfg.IndexTimeout, err = parseDuration(v, "INDEX_TIMEOUT"); err != nil {
		return nil, err
	}
	if cfg.ModelTimeout, err = parseDuration(v, "MODEL_TIMEOUT"); err != nil {
		return nil, err
	}

	rate, err := strconv.ParseFloat(v.GetString("INGEST_RATE_LIMIT"), 64)
	if err != nil || rate < 0 {
		return nil, apperr.Newf(apperr.ErrConfiguration, "INGEST_RATE_LIMIT must be a non-negative number, got %q",
			v.GetString("INGEST_RATE_LIMIT"))
	}
	cfg.IngestRateLimit = rate

	cfg.LoaderExtensions = ParseExtensions(v.GetString("LOADER_EXTENSIONS"))
	if len(cfg.LoaderExtensions) == 0 {
		return nil, apperr.New(apperr.ErrConfiguration, "LOADER_EXTENSIONS must list at least one extension")
	}

	// Create the data directory for the ledger database
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// RequireCredentials fails when no model API key is configured.
func (c *Config) RequireCredentials() error {
	if strings.TrimSpace(c.OpenAIAPIKey) == "" {
		return apperr.New(apperr.ErrConfiguration, "OPENAI_API_KEY is required")
	}
	return nil
}

// RequirePDFLicense fails when PDF loading is enabled without a UniPDF license key.
func (c *Config) RequirePDFLicense() error {
	if slices.Contains(c.LoaderExtensions, ".pdf") && strings.TrimSpace(c.UnidocLicenseKey) == "" {
		return apperr.New(apperr.ErrConfiguration, "UNIDOC_LICENSE_KEY is required to extract PDF text")
	}
	return nil
}

// ParseExtensions splits a comma separated extension list into lowercase ".ext" entries.
func ParseExtensions(raw string) []string {
	var exts []string
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if !seen[ext] {
			seen[ext] = true
			exts = append(exts, ext)
		}
	}
	return exts
}

func defaultIndexURL(backend string) string {
	if backend == BackendQdrant {
		return "http://localhost:6333"
	}
	return "http://localhost:8000"
}

// loadDotEnv loads .env from the current directory, then the nearest parent that has one.
func loadDotEnv() {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for i := 0; i < 5; i++ { // Limit search depth
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func parseInt(v *viper.Viper, key string, min int) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrConfiguration, err, key+" must be a valid integer")
	}
	if n < min {
		return 0, apperr.Newf(apperr.ErrConfiguration, "%s must be at least %d, got %d", key, min, n)
	}
	return n, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrConfiguration, err, key+" must be a valid duration")
	}
	if d <= 0 {
		return 0, apperr.Newf(apperr.ErrConfiguration, "%s must be positive", key)
	}
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, s := range values {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
