package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the visearch server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Blob     BlobConfig
	Embed    EmbedConfig
	Video    VideoConfig
	Search   SearchConfig
	Jobs     JobsConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	MaxUploadSize   int64
	RateLimitPerMin int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type BlobConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type EmbedConfig struct {
	Provider  string
	Timeout   time.Duration
	Dimension int
	CLIP      CLIPConfig
}

type CLIPConfig struct {
	BaseURL string
	Model   string
}

type VideoConfig struct {
	ExtractorBaseURL string
	Timeout          time.Duration
	FrameInterval    time.Duration
	MaxFrames        int
}

type SearchConfig struct {
	SimilarityThreshold float64
	TopK                int
	ResultCacheTTL      time.Duration
	ProgressTTL         time.Duration
}

type JobsConfig struct {
	Workers   int
	QueueSize int
}

var validEmbedProviders = map[string]bool{
	"clip": true,
	"mock": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("VISEARCH_PORT", 8080),
			Env:             envString("VISEARCH_ENV", "development"),
			MaxUploadSize:   envInt64("VISEARCH_MAX_UPLOAD_SIZE", 100<<20),
			RateLimitPerMin: envInt("VISEARCH_RATE_LIMIT_PER_MIN", 60),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Blob: BlobConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    envString("MINIO_BUCKET", "products"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		Embed: EmbedConfig{
			Provider:  os.Getenv("EMBED_PROVIDER"),
			Timeout:   envDurationSecs("EMBED_TIMEOUT_SECS", 60*time.Second),
			Dimension: envInt("EMBEDDING_DIMENSION", 768),
			CLIP: CLIPConfig{
				BaseURL: envString("CLIP_BASE_URL", "http://localhost:8093"),
				Model:   envString("CLIP_MODEL", "ViT-L/14"),
			},
		},
		Video: VideoConfig{
			ExtractorBaseURL: envString("FRAME_EXTRACTOR_BASE_URL", "http://localhost:8094"),
			Timeout:          envDurationSecs("FRAME_EXTRACTOR_TIMEOUT_SECS", 60*time.Second),
			FrameInterval:    envDurationSecs("VIDEO_FRAME_INTERVAL_SECS", 2*time.Second),
			MaxFrames:        envInt("VIDEO_MAX_FRAMES", 8),
		},
		Search: SearchConfig{
			SimilarityThreshold: envFloat("SIMILARITY_THRESHOLD", 0.7),
			TopK:                envInt("SEARCH_TOP_K", 5),
			ResultCacheTTL:      envDuration("SEARCH_CACHE_TTL", time.Hour),
			ProgressTTL:         envDuration("PROGRESS_TTL", time.Hour),
		},
		Jobs: JobsConfig{
			Workers:   envInt("JOB_WORKERS", 4),
			QueueSize: envInt("JOB_QUEUE_SIZE", 256),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Blob.Endpoint == "" {
		return fmt.Errorf("MINIO_ENDPOINT is required")
	}
	if c.Blob.AccessKey == "" || c.Blob.SecretKey == "" {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required")
	}

	if c.Embed.Provider == "" {
		return fmt.Errorf("EMBED_PROVIDER is required")
	}
	if !validEmbedProviders[c.Embed.Provider] {
		return fmt.Errorf("EMBED_PROVIDER must be one of clip, mock; got %q", c.Embed.Provider)
	}
	if c.Embed.Provider == "clip" {
		if !strings.HasPrefix(c.Embed.CLIP.BaseURL, "http://") && !strings.HasPrefix(c.Embed.CLIP.BaseURL, "https://") {
			return fmt.Errorf("CLIP_BASE_URL must start with http:// or https://, got %q", c.Embed.CLIP.BaseURL)
		}
	}
	if c.Embed.Dimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", c.Embed.Dimension)
	}

	if c.Search.SimilarityThreshold <= 0 || c.Search.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be in (0, 1], got %v", c.Search.SimilarityThreshold)
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("SEARCH_TOP_K must be positive, got %d", c.Search.TopK)
	}

	if c.Video.MaxFrames <= 0 {
		return fmt.Errorf("VIDEO_MAX_FRAMES must be positive, got %d", c.Video.MaxFrames)
	}

	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("JOB_WORKERS must be positive, got %d", c.Jobs.Workers)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
