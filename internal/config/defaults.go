package config

// DefaultIncludes are glob patterns the ingest command matches by default.
var DefaultIncludes = []string{
	"**/*.md",
	"**/*.txt",
}

// DefaultExcludes are glob patterns excluded from ingest by default.
var DefaultExcludes = []string{
	".git/**",
	"node_modules/**",
	"README.md",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:            ProviderOpenAI,
		Model:               "gpt-4o-mini",
		DataDir:             ".lexmine",
		Port:                8700,
		SimilarityBatchSize: 5,
		SimilarityDelayMS:   1000,
		SimilarityThreshold: 0.75,
		ChunkSize:           4000,
		RequestsPerMinute:   30,
		Ingest: IngestConfig{
			Include: DefaultIncludes,
			Exclude: DefaultExcludes,
		},
		Retention: RetentionConfig{
			ArchivedDays: 30,
			StaleDays:    1,
			ReviewedDays: 7,
		},
	}
}
