package config

import (
	"errors"
	"fmt"
	"strings"
)

// Location represents a configuration location
type Location struct {
	Field string
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Message   string
	Locations []Location
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	sb.WriteString("\n\n")
	for _, loc := range e.Locations {
		sb.WriteString("--> ")
		sb.WriteString(loc.Field)
		sb.WriteString("\n")
	}
	return sb.String()
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{
		Message:   fmt.Sprintf(format, args...),
		Locations: []Location{{Field: field}},
	}
}

// Validate validates an api server configuration after defaults were applied
func Validate(cfg *APIServerConfig) error {
	var errs []error

	switch cfg.Database.Type {
	case "sqlite", "mysql", "postgres":
	default:
		errs = append(errs, invalid("database.type", "unsupported database type %q", cfg.Database.Type))
	}

	switch cfg.Storage.Type {
	case "disk":
		if cfg.Storage.Disk.Path == "" {
			errs = append(errs, invalid("storage.disk.path", "disk storage requires a path"))
		}
	case "s3":
		if cfg.Storage.S3.Bucket == "" {
			errs = append(errs, invalid("storage.s3.bucket", "s3 storage requires a bucket"))
		}
	case "gcs":
		if cfg.Storage.GCS.Bucket == "" {
			errs = append(errs, invalid("storage.gcs.bucket", "gcs storage requires a bucket"))
		}
	default:
		errs = append(errs, invalid("storage.type", "unsupported storage type %q", cfg.Storage.Type))
	}

	p := cfg.Pipeline
	switch p.Runner {
	case "inline", "memory":
	case "redis":
		if cfg.Redis.Addr == "" {
			errs = append(errs, invalid("redis.addr", "redis runner requires redis.addr"))
		}
	default:
		errs = append(errs, invalid("pipeline.runner", "unsupported runner %q", p.Runner))
	}
	if p.Workers <= 0 {
		errs = append(errs, invalid("pipeline.workers", "workers must be positive, got %d", p.Workers))
	}
	if p.ChunkSize < 1000 {
		errs = append(errs, invalid("pipeline.chunk_size", "chunk size must be at least 1000, got %d", p.ChunkSize))
	}
	if p.StaleAfter < p.ProcessingTimeout {
		errs = append(errs, invalid("pipeline.stale_after", "stale_after (%s) must not be shorter than processing_timeout (%s)", p.StaleAfter, p.ProcessingTimeout))
	}
	switch p.DuplicatePolicy {
	case "allow", "reject":
	default:
		errs = append(errs, invalid("pipeline.duplicate_policy", "unsupported duplicate policy %q", p.DuplicatePolicy))
	}

	a := cfg.Analytics
	switch a.Provider {
	case "local", "none":
	case "http":
		if a.HTTP.URL == "" {
			errs = append(errs, invalid("analytics.http.url", "http analytics provider requires a url"))
		}
	default:
		errs = append(errs, invalid("analytics.provider", "unsupported analytics provider %q", a.Provider))
	}
	if a.ParetoCap <= 0 {
		errs = append(errs, invalid("analytics.pareto_cap", "pareto cap must be positive, got %d", a.ParetoCap))
	}
	switch a.InventoryReference {
	case "ledger", "now":
	default:
		errs = append(errs, invalid("analytics.inventory_reference", "unsupported inventory reference %q", a.InventoryReference))
	}
	for kind := range a.Visibility {
		switch kind {
		case "kpi", "pareto", "alert", "inventory", "peak_times":
		default:
			errs = append(errs, invalid("analytics.visibility."+kind, "unknown result kind %q", kind))
		}
	}

	if cfg.JWT.SecretKey == "" {
		errs = append(errs, invalid("jwt.secret_key", "jwt secret key is required"))
	}

	return errors.Join(errs...)
}
