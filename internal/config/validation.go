package config

import (
	"fmt"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors checkable with errors.Is().
//
// The model-service credential (GEMINI_API_KEY) is deliberately not
// checked here: commands that never call the model (import, migrate,
// search) must load configuration without it, and the orchestrator
// reports a missing credential per request.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// Similarity is cosine in [0,1]; a threshold outside that range can
	// never match anything (or matches everything).
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: must be between 0.0 and 1.0, got %.2f",
			ErrInvalidThreshold, c.SimilarityThreshold)
	}

	if c.MatchCount < 1 || c.MatchCount > 100 {
		return fmt.Errorf("%w: must be between 1 and 100, got %d",
			ErrInvalidMatchCount, c.MatchCount)
	}

	if c.ContextTokens < 100 || c.ContextTokens > 1_000_000 {
		return fmt.Errorf("%w: must be between 100 and 1,000,000, got %d",
			ErrInvalidTokenBudget, c.ContextTokens)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d",
			ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// Modern SSL modes only; allow/prefer are deprecated (MITM vulnerable).
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("invalid postgres_ssl_mode %q, must be one of: %v",
			c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
