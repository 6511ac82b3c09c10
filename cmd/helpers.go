package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/lexmine/lexmine/internal/chunker"
	"github.com/lexmine/lexmine/internal/concepts"
	"github.com/lexmine/lexmine/internal/config"
	"github.com/lexmine/lexmine/internal/db"
	"github.com/lexmine/lexmine/internal/documents"
	"github.com/lexmine/lexmine/internal/extraction"
	"github.com/lexmine/lexmine/internal/judge"
	"github.com/lexmine/lexmine/internal/llm"
	"github.com/lexmine/lexmine/internal/session"
	"github.com/lexmine/lexmine/internal/similarity"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `lexmine init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openDatabase opens the SQLite database under the configured data dir,
// creating the directory on first use.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", cfg.DataDir, err)
	}
	return db.Open(filepath.Join(cfg.DataDir, "lexmine.db"))
}

// createLLMProviderFromConfig creates a rate-limited LLM provider based
// on config settings.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	provider, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
	if err != nil {
		return nil, err
	}
	return llm.NewRateLimitedProvider(provider, cfg.RequestsPerMinute), nil
}

// createEmbedderFromConfig returns an embedding function for duplicate
// flagging, or nil when the provider has no embedding credentials. A
// nil embedder just skips the pre-review duplicate pass.
func createEmbedderFromConfig(cfg *config.Config) chromem.EmbeddingFunc {
	switch cfg.Provider {
	case config.ProviderOllama:
		return chromem.NewEmbeddingFuncOllama("nomic-embed-text", "")
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil
		}
		return chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI3Small)
	default:
		return nil
	}
}

// buildOrchestrator assembles the full extraction pipeline from config.
func buildOrchestrator(cfg *config.Config, database *db.DB) (*extraction.Orchestrator, error) {
	provider, err := createLLMProviderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}

	docs := documents.NewStore(database)
	sessions := session.NewStore(database)
	library := concepts.NewStore(database)

	extractor := judge.NewExtractor(provider, cfg.Model)
	simJudge := judge.NewSimilarityJudge(provider, cfg.Model, cfg.SimilarityThreshold)
	processor := similarity.NewBatchProcessor(sessions, library, simJudge,
		cfg.SimilarityBatchSize, time.Duration(cfg.SimilarityDelayMS)*time.Millisecond)

	var detector *similarity.DuplicateDetector
	if embedder := createEmbedderFromConfig(cfg); embedder != nil {
		detector = similarity.NewDuplicateDetector(cfg.SimilarityThreshold, embedder)
	}

	return extraction.NewOrchestrator(docs, sessions, library, extractor, processor,
		detector, chunker.New(cfg.ChunkSize), string(cfg.Provider), cfg.Model), nil
}
