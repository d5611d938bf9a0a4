package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the settings a command needs before it starts. mode is
// one of "serve", "simulate", "catalog" or "migrate".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		errs = append(errs, c.pipelineErrors()...)
	case "simulate":
		errs = append(errs, c.pipelineErrors()...)
	case "catalog", "migrate":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) pipelineErrors() []string {
	var errs []string
	if c.Localize.NativeLanguage == "" {
		errs = append(errs, "localize.native_language is required")
	}
	if c.Localize.BatchSize < 1 {
		errs = append(errs, "localize.batch_size must be >= 1")
	}
	if c.Relevance.CacheSize < 1 {
		errs = append(errs, "relevance.cache_size must be >= 1")
	}
	if c.Relevance.SeniorAge < 0 {
		errs = append(errs, "relevance.senior_age must be >= 0")
	}
	return errs
}

// LLMEnabled reports whether an Anthropic key is configured.
func (c *Config) LLMEnabled() bool {
	return c.Anthropic.Key != ""
}
