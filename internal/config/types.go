package config

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// Config is the top-level lexmine configuration, corresponding to .lexmine.yml.
type Config struct {
	Provider ProviderType `yaml:"provider" koanf:"provider"`
	Model    string       `yaml:"model" koanf:"model"`
	DataDir  string       `yaml:"data_dir" koanf:"data_dir"`
	Port     int          `yaml:"port" koanf:"port"`

	// Similarity checking against the concept index.
	SimilarityBatchSize int     `yaml:"similarity_batch_size" koanf:"similarity_batch_size"`
	SimilarityDelayMS   int     `yaml:"similarity_delay_ms" koanf:"similarity_delay_ms"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" koanf:"similarity_threshold"`

	// Chunking of lesson content.
	ChunkSize int `yaml:"chunk_size" koanf:"chunk_size"` // target characters per chunk

	// RequestsPerMinute caps calls to the LLM provider.
	RequestsPerMinute int `yaml:"requests_per_minute" koanf:"requests_per_minute"`

	Ingest    IngestConfig    `yaml:"ingest" koanf:"ingest"`
	Retention RetentionConfig `yaml:"retention" koanf:"retention"`
}

// IngestConfig controls which lesson files the ingest command picks up.
type IngestConfig struct {
	Include []string `yaml:"include" koanf:"include"`
	Exclude []string `yaml:"exclude" koanf:"exclude"`
}

// RetentionConfig holds session cleanup thresholds, in days.
type RetentionConfig struct {
	ArchivedDays int `yaml:"archived_days" koanf:"archived_days"`
	StaleDays    int `yaml:"stale_days" koanf:"stale_days"`
	ReviewedDays int `yaml:"reviewed_days" koanf:"reviewed_days"`
}
