package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if len(c.JWT.Secret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 characters")
	}

	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	if c.Gate.FreeLimit < 1 {
		errs = append(errs, fmt.Sprintf("GATE_FREE_LIMIT must be positive, got %d", c.Gate.FreeLimit))
	}
	if c.Gate.GracePeriod < 0 {
		errs = append(errs, "GATE_GRACE_PERIOD must not be negative")
	}
	if c.Gate.UsagePeriod <= 0 {
		errs = append(errs, "GATE_USAGE_PERIOD must be positive")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	// Missing vendor keys are surfaced per request as internal errors, so a
	// partially configured instance can still serve the other modalities.
	if c.Vendors.Groq.APIKey == "" {
		slog.Warn("GROQ_API_KEY is empty — code generation will fail")
	}
	if c.Vendors.HuggingFace.APIKey == "" {
		slog.Warn("HUGGINGFACE_API_KEY is empty — image generation will fail")
	}
	if c.Vendors.Segmind.APIKey == "" {
		slog.Warn("SEGMIND_API_KEY is empty — video generation will fail")
	}
	if c.Billing.PaddleAPIKey == "" || c.Billing.PaddleWebhookSecret == "" {
		slog.Warn("Paddle credentials are incomplete — billing endpoints disabled")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
